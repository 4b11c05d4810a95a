package models

import (
	"strings"
	"time"

	"github.com/accessradar/accessradar/internal/pkg/apperrors"
)

const (
	MonitoringProfileWAD = "wad"
	MonitoringProfileEAA = "eaa"
)

const (
	CadenceModeWeekly       = "weekly"
	CadenceModeIntervalDays = "interval_days"
	CadenceModeMonthlyRuns  = "monthly_runs"
)

// MonitoringTarget is one URL under recurring observation for one user.
// URLNormalized backs the uniqueness invariant: re-activating an existing URL
// updates the row instead of duplicating it. NextRunAt drives due selection
// and is only ever advanced through the conditional claim update.
type MonitoringTarget struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	UserID        uint       `gorm:"not null;index:ux_monitoring_targets_user_url,unique,priority:1" json:"user_id"`
	DefaultURL    string     `gorm:"type:varchar(2048);not null" json:"default_url"`
	URLNormalized string     `gorm:"type:varchar(767);not null;index:ux_monitoring_targets_user_url,unique,priority:2" json:"-"`
	Profile       string     `gorm:"type:varchar(10);not null;default:'wad'" json:"profile"`
	Active        bool       `gorm:"default:true;index:idx_monitoring_targets_due,priority:1" json:"active"`
	CadenceMode   string     `gorm:"type:varchar(20);not null;default:'weekly'" json:"cadence_mode"`
	CadenceValue  int        `gorm:"not null;default:0" json:"cadence_value"`
	AnchorAt      *time.Time `gorm:"type:timestamp;default:null" json:"anchor_at,omitempty"`
	NextRunAt     *time.Time `gorm:"type:timestamp;default:null;index:idx_monitoring_targets_due,priority:2" json:"next_run_at,omitempty"`
	LastRunAt     *time.Time `gorm:"type:timestamp;default:null" json:"last_run_at,omitempty"`
	CreatedAt     time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// MonitoringURLMaxLen bounds the normalized URL so the composite unique
// index stays inside the InnoDB key size limit under utf8mb4.
const MonitoringURLMaxLen = 767

// NormalizeMonitoringURL reduces a canonical URL to the comparison form used
// by the (user, url) uniqueness constraint: trailing slashes dropped,
// lower-cased. Input is expected to already be a validated absolute URL.
func NormalizeMonitoringURL(canonical string) (string, error) {
	normalized := strings.ToLower(strings.TrimRight(strings.TrimSpace(canonical), "/"))
	if len(normalized) > MonitoringURLMaxLen {
		return "", &apperrors.ValidationError{
			Field:  "url",
			Reason: "url is too long to monitor",
		}
	}
	return normalized, nil
}

// NormalizeMonitoringProfile maps unknown profile values to the default.
func NormalizeMonitoringProfile(value string) string {
	if value == MonitoringProfileEAA {
		return MonitoringProfileEAA
	}
	return MonitoringProfileWAD
}
