package controllers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/accessradar/accessradar/internal/pkg/billing"
	"github.com/accessradar/accessradar/internal/pkg/database"
	"github.com/accessradar/accessradar/internal/pkg/env"
)

// HandleBillingWebhook receives payment provider callbacks. The route is
// unauthenticated, trust comes from the HMAC signature over the raw body.
// POST /api/v1/webhooks/billing
func HandleBillingWebhook(c *fiber.Ctx) error {
	secret := env.GetEnv("BILLING_WEBHOOK_SECRET", "")
	if secret == "" {
		log.Error("billing: BILLING_WEBHOOK_SECRET is not configured")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "internal_server_error",
			"message": "webhook processing unavailable",
		})
	}

	body := c.Body()
	signature := c.Get("X-Signature")
	if !billing.VerifyWebhookSignature(body, signature, secret) {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error":   "unauthorized",
			"message": "invalid webhook signature",
		})
	}

	event, err := billing.ParseEvent(body)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "bad_request",
			"message": "malformed webhook payload",
		})
	}

	service := billing.NewServiceFromDB(database.GetDB())
	if err := service.HandleWebhook(event, body, true); err != nil {
		log.Errorf("billing: webhook %s failed: %v", event.ProviderEventID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "internal_server_error",
			"message": "webhook processing failed",
		})
	}

	return c.JSON(fiber.Map{"received": true})
}
