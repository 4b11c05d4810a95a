package entitlements

import (
	"time"

	"github.com/accessradar/accessradar/app/models"
	"github.com/accessradar/accessradar/internal/pkg/apperrors"
)

// AccessLevel controls how much of a report the caller receives.
type AccessLevel string

const (
	AccessFree AccessLevel = "free"
	AccessPaid AccessLevel = "paid"
)

// Snapshot is the read-side view of an account's entitlement state. All
// checks below are pure functions over it so they can run anywhere without a
// database handle.
type Snapshot struct {
	Plan                   string
	FreeScanUsed           bool
	ScanCredits            int
	AuditTier              string
	PaidScanCompleted      bool
	MonitoringActive       bool
	MonitoringUntil        *time.Time
	MonitoringTier         string
	MonitoringDomainsLimit int
	MonitoringMonthlyRuns  int
}

// SnapshotOf copies the relevant fields out of a persisted entitlement row.
func SnapshotOf(ent *models.AccountEntitlement) Snapshot {
	return Snapshot{
		Plan:                   ent.Plan,
		FreeScanUsed:           ent.FreeScanUsed,
		ScanCredits:            ent.ScanCredits,
		AuditTier:              ent.AuditTier,
		PaidScanCompleted:      ent.PaidScanCompleted,
		MonitoringActive:       ent.MonitoringActive,
		MonitoringUntil:        ent.MonitoringUntil,
		MonitoringTier:         ent.MonitoringTier,
		MonitoringDomainsLimit: ent.MonitoringDomainsLimit,
		MonitoringMonthlyRuns:  ent.MonitoringMonthlyRuns,
	}
}

// AccessLevelFor returns the redaction level reports are rendered at.
func (s Snapshot) AccessLevelFor() AccessLevel {
	if s.Plan == models.PlanPaid {
		return AccessPaid
	}
	return AccessFree
}

// CheckManualScan reports whether the account may start a manual scan right
// now. Free accounts get exactly one scan, paid accounts spend credits.
func (s Snapshot) CheckManualScan() error {
	if s.Plan == models.PlanPaid {
		if s.ScanCredits <= 0 {
			return &apperrors.EntitlementError{
				Code:   apperrors.EntitlementNoCredits,
				Reason: "no scan credits remaining",
			}
		}
		return nil
	}
	if s.FreeScanUsed {
		return &apperrors.EntitlementError{
			Code:   apperrors.EntitlementFreeScanUsed,
			Reason: "free scan already used, purchase credits to continue",
		}
	}
	return nil
}

// CheckMonitoringPrerequisite reports whether the account may activate
// monitoring. Activation requires at least one completed paid scan, the
// first monitored URL defaults to that scan's target.
func (s Snapshot) CheckMonitoringPrerequisite() error {
	if !s.PaidScanCompleted {
		return &apperrors.EntitlementError{
			Code:   apperrors.EntitlementPrerequisiteMissing,
			Reason: "a completed paid scan is required before activating monitoring",
		}
	}
	return nil
}

// CheckMonitoringAccess reports whether the account's monitoring package is
// currently active.
func (s Snapshot) CheckMonitoringAccess(now time.Time) error {
	if !s.MonitoringActive {
		return &apperrors.EntitlementError{
			Code:   apperrors.EntitlementMonitoringInactive,
			Reason: "monitoring is not active on this account",
		}
	}
	if s.MonitoringUntil != nil && now.After(*s.MonitoringUntil) {
		return &apperrors.EntitlementError{
			Code:   apperrors.EntitlementMonitoringInactive,
			Reason: "monitoring period has expired",
		}
	}
	return nil
}

// CheckDomainCapacity reports whether another monitored domain fits within
// the tier limit given the current active count.
func (s Snapshot) CheckDomainCapacity(activeTargets int) error {
	if activeTargets >= s.MonitoringDomainsLimit {
		return &apperrors.EntitlementError{
			Code:   apperrors.EntitlementDomainLimitReached,
			Reason: "monitored domain limit reached for this tier",
		}
	}
	return nil
}
