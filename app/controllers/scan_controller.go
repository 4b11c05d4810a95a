package controllers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/accessradar/accessradar/internal/pkg/apperrors"
	"github.com/accessradar/accessradar/internal/pkg/database"
	"github.com/accessradar/accessradar/internal/pkg/entitlements"
	"github.com/accessradar/accessradar/internal/pkg/usercontext"
)

type scanRequest struct {
	URL string `json:"url"`
}

// HandleScanRun starts a manual scan for the authenticated user.
// POST /api/v1/scans
func HandleScanRun(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return respondError(c, &apperrors.AuthError{Reason: "authentication required"})
	}

	var req scanRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, &apperrors.ValidationError{Field: "url", Reason: "invalid request body"})
	}

	setupScanServices()
	canonical, err := urlValidator.Validate(c.UserContext(), req.URL)
	if err != nil {
		return respondError(c, err)
	}

	ents := entitlements.NewService(database.GetDB())
	snap, err := ents.Load(userCtx.UserID)
	if err != nil {
		return respondError(c, err)
	}
	// Admins bypass the credit gate and the rate window.
	if !userCtx.IsAdmin {
		if err := snap.CheckManualScan(); err != nil {
			return respondError(c, err)
		}
	}

	executor, err := scanExecutor()
	if err != nil {
		return respondError(c, err)
	}
	// Rate limit after entitlement so a blocked account does not burn its
	// window probing the limiter.
	if !userCtx.IsAdmin {
		if err := scanLimiter().Allow(userCtx.UserID, executor.Now()); err != nil {
			return respondError(c, err)
		}
	}

	outcome, err := executor.Execute(c.UserContext(), userCtx.UserID, snap, canonical)
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"audit_id":     outcome.AuditUUID,
		"access_level": outcome.AccessLevel,
		"report":       outcome.Report,
	})
}
