package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	PlanFree = "free"
	PlanPaid = "paid"
)

const (
	TierNone  = "none"
	TierBasic = "basic"
	TierPro   = "pro"
)

// AccountEntitlement holds the scan/monitoring entitlement state for one user.
// Credits and monitoring flags are mutated only through predicate-scoped
// updates (see entitlements.Service), never via blind saves.
type AccountEntitlement struct {
	ID                     uint       `gorm:"primaryKey" json:"id"`
	UserID                 uint       `gorm:"uniqueIndex" json:"user_id"`
	Plan                   string     `gorm:"type:varchar(20);not null;default:'free'" json:"plan"`
	FreeScanUsed           bool       `gorm:"default:false" json:"free_scan_used"`
	ScanCredits            int        `gorm:"not null;default:0" json:"scan_credits"`
	AuditTier              string     `gorm:"type:varchar(20);not null;default:'none'" json:"audit_tier"`
	PaidScanCompleted      bool       `gorm:"default:false" json:"paid_scan_completed"`
	MonitoringActive       bool       `gorm:"default:false" json:"monitoring_active"`
	MonitoringUntil        *time.Time `gorm:"type:timestamp;default:null" json:"monitoring_until,omitempty"`
	MonitoringTier         string     `gorm:"type:varchar(20);not null;default:'none'" json:"monitoring_tier"`
	MonitoringDomainsLimit int        `gorm:"not null;default:0" json:"monitoring_domains_limit"`
	MonitoringMonthlyRuns  int        `gorm:"not null;default:0" json:"monitoring_monthly_runs"`
	CreatedAt              time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt              time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// GetOrCreateAccountEntitlement returns existing entitlement state or creates
// the free-plan default row for the user.
func GetOrCreateAccountEntitlement(db *gorm.DB, userID uint) (*AccountEntitlement, error) {
	var ent AccountEntitlement
	if err := db.Where("user_id = ?", userID).First(&ent).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			ent = AccountEntitlement{UserID: userID, Plan: PlanFree, AuditTier: TierNone, MonitoringTier: TierNone}
			if err := db.Create(&ent).Error; err != nil {
				return nil, err
			}
			return &ent, nil
		}
		return nil, err
	}
	return &ent, nil
}
