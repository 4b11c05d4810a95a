package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/accessradar/accessradar/app/controllers"
	"github.com/accessradar/accessradar/internal/pkg/middleware"
)

type ApiRouter struct {
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group("/api")
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "accessradar api",
		})
	})

	v1 := api.Group("/v1")

	// Payment provider callbacks authenticate via HMAC signature, not API key.
	v1.Post("/webhooks/billing", controllers.HandleBillingWebhook)

	auth := middleware.APIKeyAuthMiddleware()

	scans := v1.Group("/scans", auth)
	scans.Post("/", controllers.HandleScanRun)

	audits := v1.Group("/audits", auth)
	audits.Get("/", controllers.HandleAuditHistory)
	audits.Get("/latest", controllers.HandleAuditLatest)
	audits.Get("/:uuid", controllers.HandleAuditDetail)

	monitoring := v1.Group("/monitoring", auth)
	monitoring.Post("/activate", controllers.HandleMonitoringActivate)
	monitoring.Get("/status", controllers.HandleMonitoringStatus)
	monitoring.Patch("/targets/:id", controllers.HandleMonitoringConfigure)
	monitoring.Delete("/targets/:id", controllers.HandleMonitoringDelete)
	monitoring.Get("/targets/:id/history", controllers.HandleMonitoringHistory)
	monitoring.Post("/targets/:id/run", controllers.HandleMonitoringRunNow)

	account := v1.Group("/account", auth)
	account.Post("/password", controllers.HandlePasswordChange)

	admin := v1.Group("/admin", auth, middleware.AdminOnlyMiddleware())
	admin.Get("/audits", controllers.HandleAdminAuditList)
	admin.Post("/monitoring/tick", controllers.HandleMonitoringTick)
	admin.Post("/users", controllers.HandleUserCreate)
	admin.Post("/users/:id/api-key", controllers.HandleUserAPIKeyIssue)
	admin.Delete("/users/:id/api-key", controllers.HandleUserAPIKeyRevoke)
}

func NewApiRouter() *ApiRouter {
	return &ApiRouter{}
}
