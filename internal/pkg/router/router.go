package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/inkwell-app/InkWell/app/controllers"
	"github.com/inkwell-app/InkWell/internal/pkg/middleware"
	"github.com/inkwell-app/InkWell/internal/pkg/ratelimit"
)

// InstallRoutes wires the webhook endpoint and the guard API.
func InstallRoutes(
	app *fiber.App,
	webhooks *controllers.WebhookController,
	usage *controllers.UsageController,
	overrides *controllers.AdminOverrideController,
	webhookLimiter *ratelimit.Limiter,
) {
	app.Post("/webhooks/billing", webhookLimiter.Middleware(), webhooks.HandleBillingWebhook)

	api := app.Group("/api/v1", middleware.APIKeyAuthMiddleware())
	api.Post("/usage/check", usage.HandleCheck)
	api.Post("/usage/reserve", usage.HandleReserve)
	api.Post("/usage/increment", usage.HandleIncrement)
	api.Post("/usage/decrement", usage.HandleDecrement)

	admin := api.Group("/admin")
	admin.Put("/users/:id/override", overrides.HandleSet)
	admin.Delete("/users/:id/override", overrides.HandleClear)
	admin.Get("/users/:id/override", overrides.HandleGet)
}
