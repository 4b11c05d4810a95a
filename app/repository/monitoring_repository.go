package repository

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/accessradar/accessradar/app/models"
	"github.com/accessradar/accessradar/internal/pkg/apperrors"
)

type monitoringRepository struct {
	db *gorm.DB
}

// NewMonitoringRepository creates a new monitoring repository instance
func NewMonitoringRepository(db *gorm.DB) MonitoringRepository {
	return &monitoringRepository{db: db}
}

// UpsertTarget creates the target or, when the user already monitors the same
// normalized URL, updates that row in place. Re-activating a URL never
// produces a duplicate.
func (r *monitoringRepository) UpsertTarget(target *models.MonitoringTarget) (*models.MonitoringTarget, error) {
	err := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "user_id"},
			{Name: "url_normalized"},
		},
		DoUpdates: clause.AssignmentColumns([]string{
			"default_url", "profile", "active", "cadence_mode", "cadence_value", "anchor_at", "next_run_at",
		}),
	}).Create(target).Error
	if err != nil {
		return nil, err
	}

	var stored models.MonitoringTarget
	err = r.db.Where("user_id = ? AND url_normalized = ?", target.UserID, target.URLNormalized).
		First(&stored).Error
	if err != nil {
		return nil, err
	}
	return &stored, nil
}

func (r *monitoringRepository) GetTarget(userID, targetID uint) (*models.MonitoringTarget, error) {
	var target models.MonitoringTarget
	err := r.db.Where("id = ? AND user_id = ?", targetID, userID).First(&target).Error
	if err != nil {
		return nil, err
	}
	return &target, nil
}

func (r *monitoringRepository) ListTargets(userID uint) ([]models.MonitoringTarget, error) {
	var targets []models.MonitoringTarget
	err := r.db.Where("user_id = ?", userID).Order("created_at ASC").Find(&targets).Error
	return targets, err
}

func (r *monitoringRepository) CountActiveTargets(userID uint) (int, error) {
	var count int64
	err := r.db.Model(&models.MonitoringTarget{}).
		Where("user_id = ? AND active = ?", userID, true).
		Count(&count).Error
	return int(count), err
}

func (r *monitoringRepository) UpdateTarget(target *models.MonitoringTarget) error {
	return r.db.Save(target).Error
}

func (r *monitoringRepository) DeleteTarget(userID, targetID uint) error {
	res := r.db.Where("id = ? AND user_id = ?", targetID, userID).
		Delete(&models.MonitoringTarget{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *monitoringRepository) DueTargets(now time.Time, limit int) ([]models.MonitoringTarget, error) {
	var targets []models.MonitoringTarget
	err := r.db.Where("active = ? AND next_run_at IS NOT NULL AND next_run_at <= ?", true, now).
		Order("next_run_at ASC").
		Limit(limit).
		Find(&targets).Error
	return targets, err
}

// ClaimDueTarget advances next_run_at with the same predicate the due
// selection used. Zero affected rows means another tick claimed the target
// between select and update; the caller skips it.
func (r *monitoringRepository) ClaimDueTarget(targetID uint, now, nextRunAt time.Time) error {
	res := r.db.Model(&models.MonitoringTarget{}).
		Where("id = ? AND active = ? AND next_run_at IS NOT NULL AND next_run_at <= ?", targetID, true, now).
		Update("next_run_at", nextRunAt)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperrors.ErrClaimLost
	}
	return nil
}

func (r *monitoringRepository) CreateRun(run *models.MonitoringRun) error {
	return r.db.Create(run).Error
}

func (r *monitoringRepository) UpdateRun(run *models.MonitoringRun) error {
	return r.db.Save(run).Error
}

// LatestSuccessfulRun returns the last successful run, or nil when the
// target has none yet.
func (r *monitoringRepository) LatestSuccessfulRun(targetID uint) (*models.MonitoringRun, error) {
	var run models.MonitoringRun
	err := r.db.Where("target_id = ? AND status = ?", targetID, models.RunStatusSuccess).
		Order("started_at DESC").
		First(&run).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &run, nil
}

func (r *monitoringRepository) SetLastRunAt(targetID uint, at time.Time) error {
	return r.db.Model(&models.MonitoringTarget{}).
		Where("id = ?", targetID).
		Update("last_run_at", at).Error
}

// HistoryPage returns one page of runs newest-first. It fetches one row past
// the limit to report whether another page exists.
func (r *monitoringRepository) HistoryPage(targetID uint, offset, limit int) ([]models.MonitoringRun, bool, error) {
	var runs []models.MonitoringRun
	err := r.db.Where("target_id = ?", targetID).
		Order("started_at DESC").
		Offset(offset).
		Limit(limit + 1).
		Find(&runs).Error
	if err != nil {
		return nil, false, err
	}
	hasMore := len(runs) > limit
	if hasMore {
		runs = runs[:limit]
	}
	return runs, hasMore, nil
}
