package controllers

import (
	"context"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/inkwell-app/InkWell/internal/pkg/billing"
)

// WebhookController terminates billing-provider deliveries. All decisions
// beyond transport concerns (size, rate budget) live in the reconciler.
type WebhookController struct {
	reconciler *billing.Reconciler
}

func NewWebhookController(reconciler *billing.Reconciler) *WebhookController {
	return &WebhookController{reconciler: reconciler}
}

// HandleBillingWebhook processes one provider delivery.
//
// 200 {received:true}  — dispatched (including unknown-type and duplicate)
// 400                  — malformed body or event type
// 401                  — signature missing or invalid
// 413                  — body over the fixed ceiling
func (wc *WebhookController) HandleBillingWebhook(c *fiber.Ctx) error {
	rawBody := append([]byte(nil), c.BodyRaw()...)
	if len(rawBody) > billing.MaxWebhookBodyBytes {
		return c.Status(fiber.StatusRequestEntityTooLarge).JSON(fiber.Map{"error": "payload_too_large"})
	}
	signature := strings.TrimSpace(c.Get("X-Billing-Signature"))

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	res, err := wc.reconciler.ProcessWebhook(ctx, rawBody, signature)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "webhook_processing_failed"})
	}

	switch res.Outcome {
	case billing.OutcomeUnauthorized:
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid_signature"})
	case billing.OutcomeRejected:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_payload"})
	case billing.OutcomeDuplicate:
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"received": true, "duplicate": true})
	case billing.OutcomeIgnored, billing.OutcomeDropped:
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"received": true, "ignored": true})
	default:
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"received": true})
	}
}
