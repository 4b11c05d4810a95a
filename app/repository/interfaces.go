package repository

import (
	"time"

	"gorm.io/gorm"

	"github.com/accessradar/accessradar/app/models"
)

// UserRepository defines the interface for user-related database operations
type UserRepository interface {
	Create(user *models.User) error
	GetByID(id uint) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
	GetByAPIKeyHash(hash string) (*models.User, error)
	Update(user *models.User) error
	Count() (int64, error)
}

// AuditRepository defines the interface for audit persistence and history
type AuditRepository interface {
	CreateAudit(a *models.Audit) error
	CreateAuditFull(f *models.AuditFull) error
	DeleteAudit(id uint) error
	GetByUUID(uuid string) (*models.Audit, error)
	GetFullByAuditID(auditID uint) (*models.AuditFull, error)
	LatestByUser(userID uint) (*models.Audit, error)
	LatestURLByUser(userID uint) (string, error)
	ListByUser(userID uint, offset, limit int) ([]models.Audit, error)
	ListAll(offset, limit int) ([]models.Audit, error)
	CountByUserSince(userID uint, since time.Time) (int64, time.Time, error)
}

// MonitoringRepository defines the interface for monitoring targets and runs
type MonitoringRepository interface {
	UpsertTarget(target *models.MonitoringTarget) (*models.MonitoringTarget, error)
	GetTarget(userID, targetID uint) (*models.MonitoringTarget, error)
	ListTargets(userID uint) ([]models.MonitoringTarget, error)
	CountActiveTargets(userID uint) (int, error)
	UpdateTarget(target *models.MonitoringTarget) error
	DeleteTarget(userID, targetID uint) error
	DueTargets(now time.Time, limit int) ([]models.MonitoringTarget, error)
	ClaimDueTarget(targetID uint, now, nextRunAt time.Time) error
	CreateRun(run *models.MonitoringRun) error
	UpdateRun(run *models.MonitoringRun) error
	LatestSuccessfulRun(targetID uint) (*models.MonitoringRun, error)
	SetLastRunAt(targetID uint, at time.Time) error
	HistoryPage(targetID uint, offset, limit int) ([]models.MonitoringRun, bool, error)
}

// Repositories holds all repository instances
type Repositories struct {
	User       UserRepository
	Audit      AuditRepository
	Monitoring MonitoringRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		User:       NewUserRepository(db),
		Audit:      NewAuditRepository(db),
		Monitoring: NewMonitoringRepository(db),
	}
}
