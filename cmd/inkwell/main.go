package main

import (
	"fmt"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/inkwell-app/InkWell/app/controllers"
	"github.com/inkwell-app/InkWell/app/models"
	"github.com/inkwell-app/InkWell/internal/pkg/billing"
	"github.com/inkwell-app/InkWell/internal/pkg/cache"
	"github.com/inkwell-app/InkWell/internal/pkg/database"
	"github.com/inkwell-app/InkWell/internal/pkg/env"
	"github.com/inkwell-app/InkWell/internal/pkg/guard"
	"github.com/inkwell-app/InkWell/internal/pkg/ratelimit"
	"github.com/inkwell-app/InkWell/internal/pkg/router"
	"github.com/inkwell-app/InkWell/internal/pkg/tier"
	"github.com/inkwell-app/InkWell/internal/pkg/usage"
	"gorm.io/gorm"
)

func main() {
	app := NewApplication()
	err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4100")))
	log.Fatal(err)
}

func NewApplication() *fiber.App {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()

	db := database.GetDB()
	policy := tier.PolicyFromEnv()
	ledger := usage.NewLedger(usage.NewGormStore(db))
	repo := billing.NewRepository(db)
	reconciler := billing.NewReconciler(repo, billing.ConfigFromEnv(), policy, ledger)
	entGuard := guard.New(repo, policy, ledger, adminCapability(db))

	// The in-memory counter is only correct for a single instance; any
	// horizontally scaled deployment shares the budget through Redis.
	var counter ratelimit.Counter = ratelimit.NewMemoryCounter()
	if env.GetEnvBool("WEBHOOK_RATE_LIMIT_SHARED", true) {
		counter = ratelimit.NewRedisCounter(cache.GetClient())
	}
	webhookLimiter := ratelimit.New(
		counter,
		env.GetEnvInt64("WEBHOOK_RATE_LIMIT_PER_MINUTE", 60),
		time.Minute,
		"ratelimit:webhook:ip:",
	)

	app := fiber.New(fiber.Config{
		AppName:   "InkWell",
		BodyLimit: 2 << 20,
	})

	app.Use(recover.New())
	if env.IsDev() {
		app.Use(logger.New(logger.Config{
			Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
		}))
	}

	router.InstallRoutes(
		app,
		controllers.NewWebhookController(reconciler),
		controllers.NewUsageController(entGuard),
		controllers.NewAdminOverrideController(entGuard),
		webhookLimiter,
	)

	return app
}

// adminCapability is the single authorization point for override
// management: active admins only.
func adminCapability(db *gorm.DB) guard.CapabilityCheck {
	return func(actorID uint) bool {
		if actorID == 0 {
			return false
		}
		var user models.User
		if err := db.Where("id = ?", actorID).First(&user).Error; err != nil {
			return false
		}
		return user.Role == models.ROLE_ADMIN && user.Status == models.STATUS_ACTIVE
	}
}
