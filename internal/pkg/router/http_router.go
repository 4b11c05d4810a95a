package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/accessradar/accessradar/internal/pkg/cache"
	"github.com/accessradar/accessradar/internal/pkg/database"
)

type HttpRouter struct {
}

func (h HttpRouter) InstallRouter(app *fiber.App) {
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"service": "accessradar",
			"status":  "ok",
		})
	})

	app.Get("/health", handleHealth)
}

func NewHttpRouter() *HttpRouter {
	return &HttpRouter{}
}

func handleHealth(c *fiber.Ctx) error {
	status := fiber.StatusOK
	checks := fiber.Map{
		"database": "ok",
		"cache":    "ok",
	}

	sqlDB, err := database.GetDB().DB()
	if err != nil || sqlDB.Ping() != nil {
		checks["database"] = "unavailable"
		status = fiber.StatusServiceUnavailable
	}
	if err := cache.GetClient().Ping(c.UserContext()).Err(); err != nil {
		checks["cache"] = "unavailable"
		status = fiber.StatusServiceUnavailable
	}

	return c.Status(status).JSON(checks)
}
