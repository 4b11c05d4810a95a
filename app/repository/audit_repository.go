package repository

import (
	"time"

	"gorm.io/gorm"

	"github.com/accessradar/accessradar/app/models"
)

type auditRepository struct {
	db *gorm.DB
}

// NewAuditRepository creates a new audit repository instance
func NewAuditRepository(db *gorm.DB) AuditRepository {
	return &auditRepository{db: db}
}

func (r *auditRepository) CreateAudit(a *models.Audit) error {
	return r.db.Create(a).Error
}

func (r *auditRepository) CreateAuditFull(f *models.AuditFull) error {
	return r.db.Create(f).Error
}

// DeleteAudit removes an audit row for good. Used as compensation when the
// detail write fails, so it bypasses the soft delete.
func (r *auditRepository) DeleteAudit(id uint) error {
	return r.db.Unscoped().Delete(&models.Audit{}, id).Error
}

func (r *auditRepository) GetByUUID(uuid string) (*models.Audit, error) {
	var a models.Audit
	if err := r.db.Where("uuid = ?", uuid).First(&a).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *auditRepository) GetFullByAuditID(auditID uint) (*models.AuditFull, error) {
	var f models.AuditFull
	if err := r.db.Where("audit_id = ?", auditID).First(&f).Error; err != nil {
		return nil, err
	}
	return &f, nil
}

func (r *auditRepository) LatestByUser(userID uint) (*models.Audit, error) {
	var a models.Audit
	err := r.db.Where("user_id = ?", userID).
		Order("created_at DESC").
		First(&a).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *auditRepository) LatestURLByUser(userID uint) (string, error) {
	a, err := r.LatestByUser(userID)
	if err != nil {
		return "", err
	}
	return a.URL, nil
}

func (r *auditRepository) ListByUser(userID uint, offset, limit int) ([]models.Audit, error) {
	var audits []models.Audit
	err := r.db.Where("user_id = ?", userID).
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&audits).Error
	return audits, err
}

func (r *auditRepository) ListAll(offset, limit int) ([]models.Audit, error) {
	var audits []models.Audit
	err := r.db.Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&audits).Error
	return audits, err
}

// CountByUserSince backs the sliding-window rate limiter: the number of scans
// the user started in the window, plus the start time of the oldest one.
func (r *auditRepository) CountByUserSince(userID uint, since time.Time) (int64, time.Time, error) {
	var count int64
	err := r.db.Model(&models.Audit{}).
		Where("user_id = ? AND created_at >= ?", userID, since).
		Count(&count).Error
	if err != nil || count == 0 {
		return count, time.Time{}, err
	}

	var oldest models.Audit
	err = r.db.Where("user_id = ? AND created_at >= ?", userID, since).
		Order("created_at ASC").
		First(&oldest).Error
	if err != nil {
		return count, time.Time{}, err
	}
	return count, oldest.CreatedAt, nil
}
