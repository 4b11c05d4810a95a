package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	AuditKindFree = "free"
	AuditKindPaid = "paid"
)

// Audit is one persisted scan outcome. SummaryJSON and TopIssuesJSON hold the
// serialized report fragments returned to callers; the uncapped issue payload
// lives in AuditFull so free-tier reads never touch it.
type Audit struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	UUID          string         `gorm:"type:char(36);uniqueIndex" json:"uuid"`
	UserID        uint           `gorm:"not null;index:idx_audits_user_created,priority:1" json:"user_id"`
	URL           string         `gorm:"type:varchar(2048);not null" json:"url"`
	Kind          string         `gorm:"type:varchar(10);not null;default:'free';index" json:"kind"`
	SummaryJSON   string         `gorm:"type:longtext" json:"-"`
	TopIssuesJSON string         `gorm:"type:longtext" json:"-"`
	CreatedAt     time.Time      `gorm:"autoCreateTime;index:idx_audits_user_created,priority:2" json:"created_at"`
	UpdatedAt     time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`
}

// BeforeCreate assigns the public identifier.
func (a *Audit) BeforeCreate(tx *gorm.DB) error {
	if a.UUID == "" {
		a.UUID = uuid.New().String()
	}
	return nil
}

// AuditFull carries the full, unredacted issue list for one audit. Written in
// the same logical transaction as the Audit row; if this write fails the
// parent row is rolled back, an Audit without AuditFull must not persist.
type AuditFull struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	AuditID        uint      `gorm:"not null;uniqueIndex" json:"audit_id"`
	UserID         uint      `gorm:"not null;index" json:"user_id"`
	URL            string    `gorm:"type:varchar(2048);not null" json:"url"`
	FullIssuesJSON string    `gorm:"type:longtext" json:"-"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
}
