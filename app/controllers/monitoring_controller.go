package controllers

import (
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/accessradar/accessradar/app/models"
	"github.com/accessradar/accessradar/app/repository"
	"github.com/accessradar/accessradar/internal/pkg/apperrors"
	"github.com/accessradar/accessradar/internal/pkg/database"
	"github.com/accessradar/accessradar/internal/pkg/entitlements"
	"github.com/accessradar/accessradar/internal/pkg/monitoring"
	"github.com/accessradar/accessradar/internal/pkg/usercontext"
)

type monitoringActivateRequest struct {
	URL          string `json:"url"`
	Profile      string `json:"profile"`
	CadenceMode  string `json:"cadence_mode"`
	CadenceValue int    `json:"cadence_value"`
}

type monitoringConfigRequest struct {
	CadenceMode  string `json:"cadence_mode"`
	CadenceValue int    `json:"cadence_value"`
	Profile      string `json:"profile"`
	Active       *bool  `json:"active"`
}

type monitoringRunNowRequest struct {
	URL string `json:"url"`
}

// HandleMonitoringActivate puts a URL under recurring observation.
// POST /api/v1/monitoring/activate
func HandleMonitoringActivate(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return respondError(c, &apperrors.AuthError{Reason: "authentication required"})
	}

	snap, err := entitlements.NewService(database.GetDB()).Load(userCtx.UserID)
	if err != nil {
		return respondError(c, err)
	}
	if !userCtx.IsAdmin {
		if err := snap.CheckMonitoringAccess(time.Now()); err != nil {
			return respondError(c, err)
		}
		if err := snap.CheckMonitoringPrerequisite(); err != nil {
			return respondError(c, err)
		}
	}

	var req monitoringActivateRequest
	if err := c.BodyParser(&req); err != nil && len(c.Body()) > 0 {
		return respondError(c, &apperrors.ValidationError{Field: "url", Reason: "invalid request body"})
	}

	repos := repository.GetGlobalFactory()

	// Without an explicit URL the last audited one is monitored.
	rawURL := req.URL
	if rawURL == "" {
		latest, err := repos.GetAuditRepository().LatestURLByUser(userCtx.UserID)
		if err != nil {
			return respondError(c, &apperrors.ValidationError{
				Field:  "url",
				Reason: "no url given and no previous audit to fall back to",
			})
		}
		rawURL = latest
	}

	setupScanServices()
	canonical, err := urlValidator.Validate(c.UserContext(), rawURL)
	if err != nil {
		return respondError(c, err)
	}
	normalized, err := models.NormalizeMonitoringURL(canonical)
	if err != nil {
		return respondError(c, err)
	}

	monRepo := repos.GetMonitoringRepository()
	if !userCtx.IsAdmin {
		if err := checkDomainCapacity(monRepo, userCtx.UserID, normalized, snap); err != nil {
			return respondError(c, err)
		}
	}

	now := time.Now().UTC()

	// The default cadence is the tier's weekly schedule; an explicit cadence
	// in the request overrides it.
	mode := models.CadenceModeWeekly
	value := monitoring.WeekdayMask(entitlements.WeekdaysForTier(snap.MonitoringTier))
	if req.CadenceMode != "" {
		mode = monitoring.NormalizeCadenceMode(req.CadenceMode)
		value = monitoring.NormalizeCadenceValue(mode, req.CadenceValue)
	}
	next := monitoring.NextRunAt(now, mode, value)

	target := &models.MonitoringTarget{
		UserID:        userCtx.UserID,
		DefaultURL:    canonical,
		URLNormalized: normalized,
		Profile:       models.NormalizeMonitoringProfile(req.Profile),
		Active:        true,
		CadenceMode:   mode,
		CadenceValue:  value,
		AnchorAt:      &now,
		NextRunAt:     &next,
	}
	stored, err := monRepo.UpsertTarget(target)
	if err != nil {
		return respondError(c, &apperrors.PersistenceError{Op: "activate monitoring target", Err: err})
	}

	return c.Status(fiber.StatusCreated).JSON(renderTarget(stored))
}

// checkDomainCapacity enforces the tier domain limit. Re-activating an
// already monitored URL always fits.
func checkDomainCapacity(monRepo repository.MonitoringRepository, userID uint, normalized string, snap entitlements.Snapshot) error {
	targets, err := monRepo.ListTargets(userID)
	if err != nil {
		return &apperrors.PersistenceError{Op: "list monitoring targets", Err: err}
	}
	active := 0
	for _, t := range targets {
		if t.URLNormalized == normalized {
			return nil
		}
		if t.Active {
			active++
		}
	}
	return snap.CheckDomainCapacity(active)
}

// HandleMonitoringStatus reports the package state and all targets.
// GET /api/v1/monitoring/status
func HandleMonitoringStatus(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return respondError(c, &apperrors.AuthError{Reason: "authentication required"})
	}

	snap, err := entitlements.NewService(database.GetDB()).Load(userCtx.UserID)
	if err != nil {
		return respondError(c, err)
	}

	targets, err := repository.GetGlobalFactory().GetMonitoringRepository().ListTargets(userCtx.UserID)
	if err != nil {
		return respondError(c, &apperrors.PersistenceError{Op: "list monitoring targets", Err: err})
	}

	items := make([]fiber.Map, 0, len(targets))
	for i := range targets {
		items = append(items, renderTarget(&targets[i]))
	}
	return c.JSON(fiber.Map{
		"active":        snap.MonitoringActive,
		"tier":          snap.MonitoringTier,
		"until":         snap.MonitoringUntil,
		"domains_limit": snap.MonitoringDomainsLimit,
		"monthly_runs":  snap.MonitoringMonthlyRuns,
		"targets":       items,
	})
}

// HandleMonitoringConfigure updates a target's cadence, profile or active
// flag.
// PATCH /api/v1/monitoring/targets/:id
func HandleMonitoringConfigure(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return respondError(c, &apperrors.AuthError{Reason: "authentication required"})
	}

	targetID, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil {
		return respondError(c, &apperrors.ValidationError{Field: "id", Reason: "invalid target id"})
	}

	var req monitoringConfigRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, &apperrors.ValidationError{Reason: "invalid request body"})
	}

	monRepo := repository.GetGlobalFactory().GetMonitoringRepository()
	target, err := monRepo.GetTarget(userCtx.UserID, uint(targetID))
	if err != nil {
		return targetNotFound(c)
	}

	if req.CadenceMode != "" {
		mode := monitoring.NormalizeCadenceMode(req.CadenceMode)
		value := monitoring.NormalizeCadenceValue(mode, req.CadenceValue)
		target.CadenceMode = mode
		target.CadenceValue = value
	}
	if req.Profile != "" {
		target.Profile = models.NormalizeMonitoringProfile(req.Profile)
	}
	if req.Active != nil {
		target.Active = *req.Active
	}

	// Reanchor the schedule at the change.
	now := time.Now().UTC()
	target.AnchorAt = &now
	if target.Active {
		next := monitoring.NextRunAt(now, target.CadenceMode, target.CadenceValue)
		target.NextRunAt = &next
	} else {
		target.NextRunAt = nil
	}

	if err := monRepo.UpdateTarget(target); err != nil {
		return respondError(c, &apperrors.PersistenceError{Op: "update monitoring target", Err: err})
	}
	return c.JSON(renderTarget(target))
}

// HandleMonitoringDelete removes a target.
// DELETE /api/v1/monitoring/targets/:id
func HandleMonitoringDelete(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return respondError(c, &apperrors.AuthError{Reason: "authentication required"})
	}

	targetID, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil {
		return respondError(c, &apperrors.ValidationError{Field: "id", Reason: "invalid target id"})
	}

	monRepo := repository.GetGlobalFactory().GetMonitoringRepository()
	if err := monRepo.DeleteTarget(userCtx.UserID, uint(targetID)); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return targetNotFound(c)
		}
		return respondError(c, &apperrors.PersistenceError{Op: "delete monitoring target", Err: err})
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// HandleMonitoringHistory returns a page of runs for a target.
// GET /api/v1/monitoring/targets/:id/history
func HandleMonitoringHistory(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return respondError(c, &apperrors.AuthError{Reason: "authentication required"})
	}

	targetID, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil {
		return respondError(c, &apperrors.ValidationError{Field: "id", Reason: "invalid target id"})
	}

	monRepo := repository.GetGlobalFactory().GetMonitoringRepository()
	if _, err := monRepo.GetTarget(userCtx.UserID, uint(targetID)); err != nil {
		return targetNotFound(c)
	}

	offset, limit := pagination(c)
	runs, hasMore, err := monRepo.HistoryPage(uint(targetID), offset, limit)
	if err != nil {
		return respondError(c, &apperrors.PersistenceError{Op: "load run history", Err: err})
	}

	items := make([]fiber.Map, 0, len(runs))
	for i := range runs {
		items = append(items, renderRun(&runs[i]))
	}
	return c.JSON(fiber.Map{
		"runs":     items,
		"has_more": hasMore,
	})
}

// HandleMonitoringRunNow executes a target immediately, optionally against a
// different URL than the target default.
// POST /api/v1/monitoring/targets/:id/run
func HandleMonitoringRunNow(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return respondError(c, &apperrors.AuthError{Reason: "authentication required"})
	}

	snap, err := entitlements.NewService(database.GetDB()).Load(userCtx.UserID)
	if err != nil {
		return respondError(c, err)
	}
	if !userCtx.IsAdmin {
		if err := snap.CheckMonitoringAccess(time.Now()); err != nil {
			return respondError(c, err)
		}
	}

	targetID, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil {
		return respondError(c, &apperrors.ValidationError{Field: "id", Reason: "invalid target id"})
	}

	monRepo := repository.GetGlobalFactory().GetMonitoringRepository()
	target, err := monRepo.GetTarget(userCtx.UserID, uint(targetID))
	if err != nil {
		return targetNotFound(c)
	}

	var req monitoringRunNowRequest
	if err := c.BodyParser(&req); err != nil && len(c.Body()) > 0 {
		return respondError(c, &apperrors.ValidationError{Field: "url", Reason: "invalid request body"})
	}
	override := ""
	if req.URL != "" {
		setupScanServices()
		override, err = urlValidator.Validate(c.UserContext(), req.URL)
		if err != nil {
			return respondError(c, err)
		}
		normalized, err := models.NormalizeMonitoringURL(override)
		if err != nil {
			return respondError(c, err)
		}
		// A different URL becomes the target's new default.
		if normalized != target.URLNormalized {
			target.DefaultURL = override
			target.URLNormalized = normalized
			if err := monRepo.UpdateTarget(target); err != nil {
				return respondError(c, &apperrors.PersistenceError{Op: "update monitoring target", Err: err})
			}
		}
	}

	sched, err := monitoringScheduler()
	if err != nil {
		return respondError(c, err)
	}
	run, err := sched.RunTarget(c.UserContext(), target, models.RunTriggerManual, override)
	if err != nil {
		// The failed run is recorded; surface the cause.
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(renderRun(run))
}

// HandleMonitoringTick triggers one scheduler pass.
// POST /api/v1/admin/monitoring/tick
func HandleMonitoringTick(c *fiber.Ctx) error {
	sched, err := monitoringScheduler()
	if err != nil {
		return respondError(c, err)
	}
	sum, err := sched.Tick(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(sum)
}

func targetNotFound(c *fiber.Ctx) error {
	return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
		"error":   "not_found",
		"message": "monitoring target not found",
	})
}

func renderTarget(t *models.MonitoringTarget) fiber.Map {
	return fiber.Map{
		"id":            t.ID,
		"url":           t.DefaultURL,
		"profile":       t.Profile,
		"active":        t.Active,
		"cadence_mode":  t.CadenceMode,
		"cadence_value": t.CadenceValue,
		"next_run_at":   t.NextRunAt,
		"last_run_at":   t.LastRunAt,
		"created_at":    t.CreatedAt,
	}
}

func renderRun(r *models.MonitoringRun) fiber.Map {
	out := fiber.Map{
		"id":          r.ID,
		"target_id":   r.TargetID,
		"trigger":     r.Trigger,
		"run_url":     r.RunURL,
		"status":      r.Status,
		"started_at":  r.StartedAt,
		"finished_at": r.FinishedAt,
	}
	if r.ErrorMessage != "" {
		out["error_message"] = r.ErrorMessage
	}
	if r.SummaryJSON != "" {
		var summary monitoring.RunSummary
		if err := json.Unmarshal([]byte(r.SummaryJSON), &summary); err == nil {
			out["summary"] = summary.Summary
		}
	}
	if r.DiffJSON != "" {
		var diff monitoring.Diff
		if err := json.Unmarshal([]byte(r.DiffJSON), &diff); err == nil {
			out["diff"] = diff
			out["worsening"] = diff.IsWorsening()
			out["improving"] = diff.IsImproving()
		}
	}
	return out
}
