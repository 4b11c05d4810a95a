package entitlements

import (
	"testing"

	"github.com/accessradar/accessradar/app/models"
)

func TestMonitoringPrerequisiteMet(t *testing.T) {
	tests := []struct {
		name string
		role string
		snap Snapshot
		want bool
	}{
		{"plain user without paid scan", models.ROLE_USER, Snapshot{}, false},
		{"plain user after paid scan", models.ROLE_USER, Snapshot{PaidScanCompleted: true}, true},
		{"admin without paid scan", models.ROLE_ADMIN, Snapshot{}, true},
	}
	for _, tt := range tests {
		if got := monitoringPrerequisiteMet(tt.role, tt.snap); got != tt.want {
			t.Fatalf("%s: prerequisite met = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestMonitoringPurchaseUpdates(t *testing.T) {
	updates := monitoringPurchaseUpdates(models.TierPro)

	if updates["monitoring_active"] != true {
		t.Fatalf("monitoring_active = %v", updates["monitoring_active"])
	}
	if updates["monitoring_tier"] != models.TierPro {
		t.Fatalf("monitoring_tier = %v", updates["monitoring_tier"])
	}
	// Unset means the subscription stays active until refunded.
	if until, ok := updates["monitoring_until"]; !ok || until != nil {
		t.Fatalf("monitoring_until = %v, want stored null", until)
	}
	limits := MonitoringLimitsForTier(models.TierPro)
	if updates["monitoring_domains_limit"] != limits.Domains || updates["monitoring_monthly_runs"] != limits.MonthlyRuns {
		t.Fatalf("limits = %v / %v", updates["monitoring_domains_limit"], updates["monitoring_monthly_runs"])
	}
}

func TestAuditPurchaseUpdates(t *testing.T) {
	updates := auditPurchaseUpdates(models.TierBasic)

	if updates["plan"] != models.PlanPaid {
		t.Fatalf("plan = %v", updates["plan"])
	}
	if updates["audit_tier"] != models.TierBasic {
		t.Fatalf("audit_tier = %v", updates["audit_tier"])
	}
	if _, ok := updates["scan_credits"]; !ok {
		t.Fatal("scan_credits increment missing")
	}
	// A purchase grants credits, it never rewrites the free scan flag.
	if _, ok := updates["free_scan_used"]; ok {
		t.Fatal("purchase must not touch free_scan_used")
	}
	if _, ok := updates["paid_scan_completed"]; ok {
		t.Fatal("completion is recorded by the audit unlock, not the purchase")
	}
}
