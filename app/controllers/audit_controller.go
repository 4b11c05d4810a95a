package controllers

import (
	"encoding/json"
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/accessradar/accessradar/app/models"
	"github.com/accessradar/accessradar/app/repository"
	"github.com/accessradar/accessradar/internal/pkg/apperrors"
	"github.com/accessradar/accessradar/internal/pkg/audit"
	"github.com/accessradar/accessradar/internal/pkg/database"
	"github.com/accessradar/accessradar/internal/pkg/entitlements"
	"github.com/accessradar/accessradar/internal/pkg/usercontext"
)

const (
	defaultHistoryLimit = 10
	maxHistoryLimit     = 50
)

// HandleAuditLatest returns the user's most recent audit.
// GET /api/v1/audits/latest
func HandleAuditLatest(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return respondError(c, &apperrors.AuthError{Reason: "authentication required"})
	}

	audits := repository.GetGlobalFactory().GetAuditRepository()
	latest, err := audits.LatestByUser(userCtx.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error":   "not_found",
				"message": "no audits yet",
			})
		}
		return respondError(c, &apperrors.PersistenceError{Op: "load latest audit", Err: err})
	}

	access, err := currentAccessLevel(userCtx.UserID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(renderAudit(latest, access))
}

// HandleAuditHistory returns a page of the user's audits, newest first.
// GET /api/v1/audits
func HandleAuditHistory(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return respondError(c, &apperrors.AuthError{Reason: "authentication required"})
	}

	offset, limit := pagination(c)
	audits := repository.GetGlobalFactory().GetAuditRepository()

	// One row past the limit tells us whether another page exists.
	rows, err := audits.ListByUser(userCtx.UserID, offset, limit+1)
	if err != nil {
		return respondError(c, &apperrors.PersistenceError{Op: "list audits", Err: err})
	}
	hasMore := len(rows) > limit
	if hasMore {
		rows = rows[:limit]
	}

	access, err := currentAccessLevel(userCtx.UserID)
	if err != nil {
		return respondError(c, err)
	}

	items := make([]fiber.Map, 0, len(rows))
	for i := range rows {
		items = append(items, renderAudit(&rows[i], access))
	}
	return c.JSON(fiber.Map{
		"audits":   items,
		"has_more": hasMore,
	})
}

// HandleAuditDetail returns one audit with the full issue list for paid
// accounts.
// GET /api/v1/audits/:uuid
func HandleAuditDetail(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return respondError(c, &apperrors.AuthError{Reason: "authentication required"})
	}

	audits := repository.GetGlobalFactory().GetAuditRepository()
	row, err := audits.GetByUUID(c.Params("uuid"))
	if err != nil || row.UserID != userCtx.UserID {
		// Hide other users' audits behind the same 404.
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error":   "not_found",
			"message": "audit not found",
		})
	}

	access, err := currentAccessLevel(userCtx.UserID)
	if err != nil {
		return respondError(c, err)
	}

	out := renderAudit(row, access)
	if access == entitlements.AccessPaid {
		if full, err := audits.GetFullByAuditID(row.ID); err == nil {
			var issues []audit.Issue
			if err := json.Unmarshal([]byte(full.FullIssuesJSON), &issues); err == nil {
				out["issues"] = issues
			}
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Warnf("audit detail %s: load full issues: %v", row.UUID, err)
		}
	}
	return c.JSON(out)
}

// HandleAdminAuditList lists audits across all users.
// GET /api/v1/admin/audits
func HandleAdminAuditList(c *fiber.Ctx) error {
	offset, limit := pagination(c)
	audits := repository.GetGlobalFactory().GetAuditRepository()

	rows, err := audits.ListAll(offset, limit+1)
	if err != nil {
		return respondError(c, &apperrors.PersistenceError{Op: "list audits", Err: err})
	}
	hasMore := len(rows) > limit
	if hasMore {
		rows = rows[:limit]
	}

	items := make([]fiber.Map, 0, len(rows))
	for i := range rows {
		item := renderAudit(&rows[i], entitlements.AccessPaid)
		item["user_id"] = rows[i].UserID
		items = append(items, item)
	}
	return c.JSON(fiber.Map{
		"audits":   items,
		"has_more": hasMore,
	})
}

// renderAudit decodes the stored report fragments and applies redaction.
func renderAudit(row *models.Audit, access entitlements.AccessLevel) fiber.Map {
	var summary audit.Summary
	if err := json.Unmarshal([]byte(row.SummaryJSON), &summary); err != nil {
		log.Warnf("audit %s: decode summary: %v", row.UUID, err)
	}
	var topIssues []audit.Issue
	if err := json.Unmarshal([]byte(row.TopIssuesJSON), &topIssues); err != nil {
		log.Warnf("audit %s: decode top issues: %v", row.UUID, err)
	}
	if access != entitlements.AccessPaid {
		topIssues = audit.RedactForFree(topIssues)
	}

	return fiber.Map{
		"audit_id":     row.UUID,
		"url":          row.URL,
		"kind":         row.Kind,
		"access_level": access,
		"summary":      summary,
		"top_issues":   topIssues,
		"created_at":   row.CreatedAt,
	}
}

// currentAccessLevel reads the caller's present entitlement, so a purchase
// retroactively unlocks full detail on earlier audits.
func currentAccessLevel(userID uint) (entitlements.AccessLevel, error) {
	snap, err := entitlements.NewService(database.GetDB()).Load(userID)
	if err != nil {
		return entitlements.AccessFree, err
	}
	return snap.AccessLevelFor(), nil
}

func pagination(c *fiber.Ctx) (offset, limit int) {
	offset, _ = strconv.Atoi(c.Query("offset", "0"))
	if offset < 0 {
		offset = 0
	}
	limit, _ = strconv.Atoi(c.Query("limit", strconv.Itoa(defaultHistoryLimit)))
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	return offset, limit
}
