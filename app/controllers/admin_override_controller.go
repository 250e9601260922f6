package controllers

import (
	"errors"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/inkwell-app/InkWell/internal/pkg/guard"
	"github.com/inkwell-app/InkWell/internal/pkg/usercontext"
)

// AdminOverrideController manages admin-granted tier overrides. The
// capability decision itself lives in the guard's injected check; this
// layer only shapes HTTP.
type AdminOverrideController struct {
	guard    *guard.Guard
	validate *validator.Validate
}

func NewAdminOverrideController(g *guard.Guard) *AdminOverrideController {
	return &AdminOverrideController{guard: g, validate: validator.New()}
}

type setOverrideRequest struct {
	Tier           string `json:"tier" validate:"required,oneof=free basic pro"`
	ExpiresInHours int    `json:"expires_in_hours" validate:"gte=0"`
}

// HandleSet grants or replaces a user's override.
func (ac *AdminOverrideController) HandleSet(c *fiber.Ctx) error {
	actor := usercontext.Get(c)
	userID, ok := parseUserID(c)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_user_id"})
	}

	var req setOverrideRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_request"})
	}
	if err := ac.validate.Struct(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_request", "message": err.Error()})
	}

	err := ac.guard.SetOverride(c.UserContext(), actor.UserID, userID, req.Tier, req.ExpiresInHours)
	if err != nil {
		if errors.Is(err, guard.ErrNotAuthorized) {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "forbidden"})
		}
		if errors.Is(err, guard.ErrUnknownTier) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "unknown_tier"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "override_update_failed"})
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true})
}

// HandleClear removes a user's override.
func (ac *AdminOverrideController) HandleClear(c *fiber.Ctx) error {
	actor := usercontext.Get(c)
	userID, ok := parseUserID(c)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_user_id"})
	}

	if err := ac.guard.ClearOverride(c.UserContext(), actor.UserID, userID); err != nil {
		if errors.Is(err, guard.ErrNotAuthorized) {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "forbidden"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "override_update_failed"})
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true})
}

// HandleGet reports a user's current override state.
func (ac *AdminOverrideController) HandleGet(c *fiber.Ctx) error {
	actor := usercontext.Get(c)
	userID, ok := parseUserID(c)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_user_id"})
	}

	state, err := ac.guard.GetOverride(c.UserContext(), actor.UserID, userID)
	if err != nil {
		if errors.Is(err, guard.ErrNotAuthorized) {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "forbidden"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "override_lookup_failed"})
	}
	return c.Status(fiber.StatusOK).JSON(state)
}

func parseUserID(c *fiber.Ctx) (uint, bool) {
	raw := c.Params("id")
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}
