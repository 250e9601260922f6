package controllers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/inkwell-app/InkWell/internal/pkg/guard"
	"github.com/inkwell-app/InkWell/internal/pkg/tier"
	"github.com/inkwell-app/InkWell/internal/pkg/usage"
	"github.com/inkwell-app/InkWell/internal/pkg/usercontext"
)

// UsageController exposes the guard API consumed by action handlers.
type UsageController struct {
	guard *guard.Guard
}

func NewUsageController(g *guard.Guard) *UsageController {
	return &UsageController{guard: g}
}

type usageRequest struct {
	Action string `json:"action"`
	Amount int64  `json:"amount"`
}

// HandleCheck answers whether the action would be allowed, without
// consuming quota.
func (uc *UsageController) HandleCheck(c *fiber.Ctx) error {
	return uc.handle(c, uc.guard.Check)
}

// HandleReserve is the atomic check-and-consume hot path.
func (uc *UsageController) HandleReserve(c *fiber.Ctx) error {
	return uc.handle(c, uc.guard.Reserve)
}

// HandleIncrement records usage for a side effect that already happened.
func (uc *UsageController) HandleIncrement(c *fiber.Ctx) error {
	return uc.handle(c, uc.guard.Increment)
}

// HandleDecrement releases previously-counted usage.
func (uc *UsageController) HandleDecrement(c *fiber.Ctx) error {
	return uc.handle(c, uc.guard.Decrement)
}

func (uc *UsageController) handle(c *fiber.Ctx, op func(context.Context, uint, tier.Action, int64) (usage.Result, error)) error {
	userCtx := usercontext.Get(c)
	if !userCtx.IsLoggedIn {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	var req usageRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_request"})
	}
	action, ok := tier.ParseAction(req.Action)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "unknown_action"})
	}

	res, err := op(c.UserContext(), userCtx.UserID, action, req.Amount)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "usage_accounting_failed"})
	}
	return c.Status(fiber.StatusOK).JSON(usageResponse(res))
}

// usageResponse renders a ledger result, with unlimited limits shown as ∞.
func usageResponse(res usage.Result) fiber.Map {
	limit := tier.Limit{Value: res.Limit, Unlimited: res.Unlimited}
	out := fiber.Map{
		"allowed":       res.Allowed,
		"limit":         res.Limit,
		"current":       res.Current,
		"remaining":     res.Remaining,
		"unlimited":     res.Unlimited,
		"limit_display": limit.String(),
	}
	if res.Reason != "" {
		out["reason"] = res.Reason
	}
	return out
}
