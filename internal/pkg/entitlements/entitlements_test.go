package entitlements

import (
	"errors"
	"testing"
	"time"

	"github.com/accessradar/accessradar/app/models"
	"github.com/accessradar/accessradar/internal/pkg/apperrors"
)

func entCode(t *testing.T, err error) string {
	t.Helper()
	var ee *apperrors.EntitlementError
	if !errors.As(err, &ee) {
		t.Fatalf("expected EntitlementError, got %v", err)
	}
	return ee.Code
}

func TestCheckManualScanFreePlan(t *testing.T) {
	fresh := Snapshot{Plan: models.PlanFree}
	if err := fresh.CheckManualScan(); err != nil {
		t.Fatalf("fresh free account should scan: %v", err)
	}

	spent := Snapshot{Plan: models.PlanFree, FreeScanUsed: true}
	if got := entCode(t, spent.CheckManualScan()); got != apperrors.EntitlementFreeScanUsed {
		t.Fatalf("code = %q, want free_scan_used", got)
	}
}

func TestCheckManualScanPaidPlan(t *testing.T) {
	funded := Snapshot{Plan: models.PlanPaid, ScanCredits: 3}
	if err := funded.CheckManualScan(); err != nil {
		t.Fatalf("funded paid account should scan: %v", err)
	}

	broke := Snapshot{Plan: models.PlanPaid, ScanCredits: 0, FreeScanUsed: true}
	if got := entCode(t, broke.CheckManualScan()); got != apperrors.EntitlementNoCredits {
		t.Fatalf("code = %q, want no_credits", got)
	}
}

func TestCheckMonitoringPrerequisite(t *testing.T) {
	s := Snapshot{Plan: models.PlanPaid, ScanCredits: 5}
	if got := entCode(t, s.CheckMonitoringPrerequisite()); got != apperrors.EntitlementPrerequisiteMissing {
		t.Fatalf("code = %q, want prerequisite_missing", got)
	}

	s.PaidScanCompleted = true
	if err := s.CheckMonitoringPrerequisite(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCheckMonitoringAccess(t *testing.T) {
	now := time.Now()

	inactive := Snapshot{}
	if got := entCode(t, inactive.CheckMonitoringAccess(now)); got != apperrors.EntitlementMonitoringInactive {
		t.Fatalf("code = %q, want monitoring_inactive", got)
	}

	expired := now.Add(-time.Hour)
	lapsed := Snapshot{MonitoringActive: true, MonitoringUntil: &expired}
	if got := entCode(t, lapsed.CheckMonitoringAccess(now)); got != apperrors.EntitlementMonitoringInactive {
		t.Fatalf("code = %q, want monitoring_inactive", got)
	}

	future := now.Add(time.Hour)
	current := Snapshot{MonitoringActive: true, MonitoringUntil: &future}
	if err := current.CheckMonitoringAccess(now); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	openEnded := Snapshot{MonitoringActive: true}
	if err := openEnded.CheckMonitoringAccess(now); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCheckDomainCapacity(t *testing.T) {
	s := Snapshot{MonitoringDomainsLimit: 2}
	if err := s.CheckDomainCapacity(1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := entCode(t, s.CheckDomainCapacity(2)); got != apperrors.EntitlementDomainLimitReached {
		t.Fatalf("code = %q, want domain_limit_reached", got)
	}
}

func TestAccessLevelFor(t *testing.T) {
	if got := (Snapshot{Plan: models.PlanFree}).AccessLevelFor(); got != AccessFree {
		t.Fatalf("access level = %q, want free", got)
	}
	if got := (Snapshot{Plan: models.PlanPaid}).AccessLevelFor(); got != AccessPaid {
		t.Fatalf("access level = %q, want paid", got)
	}
}

func TestScanCreditsForTier(t *testing.T) {
	tests := []struct {
		tier string
		want int
	}{
		{tier: models.TierBasic, want: 5},
		{tier: models.TierPro, want: 15},
		{tier: "PRO", want: 15},
		{tier: models.TierNone, want: 0},
		{tier: "bogus", want: 0},
	}
	for _, tt := range tests {
		if got := ScanCreditsForTier(tt.tier); got != tt.want {
			t.Fatalf("ScanCreditsForTier(%q) = %d, want %d", tt.tier, got, tt.want)
		}
	}
}

func TestMonitoringLimitsForTier(t *testing.T) {
	if got := MonitoringLimitsForTier(models.TierBasic); got != (MonitoringLimits{Domains: 2, MonthlyRuns: 4}) {
		t.Fatalf("basic limits = %+v", got)
	}
	if got := MonitoringLimitsForTier(models.TierPro); got != (MonitoringLimits{Domains: 8, MonthlyRuns: 8}) {
		t.Fatalf("pro limits = %+v", got)
	}
	if got := MonitoringLimitsForTier("none"); got != (MonitoringLimits{}) {
		t.Fatalf("none limits = %+v", got)
	}
}

func TestWeekdaysForTier(t *testing.T) {
	basic := WeekdaysForTier(models.TierBasic)
	if len(basic) != 1 || basic[0] != time.Monday {
		t.Fatalf("basic weekdays = %v", basic)
	}
	pro := WeekdaysForTier(models.TierPro)
	if len(pro) != 2 || pro[0] != time.Monday || pro[1] != time.Thursday {
		t.Fatalf("pro weekdays = %v", pro)
	}
	if got := WeekdaysForTier("none"); got != nil {
		t.Fatalf("none weekdays = %v", got)
	}
}
