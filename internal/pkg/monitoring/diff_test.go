package monitoring

import (
	"testing"

	"github.com/accessradar/accessradar/internal/pkg/audit"
)

func TestBuildDiffDeltas(t *testing.T) {
	prev := audit.Summary{Total: 10, Critical: 2, Serious: 3, Moderate: 3, Minor: 2}
	curr := audit.Summary{Total: 8, Critical: 1, Serious: 3, Moderate: 2, Minor: 2}

	d := BuildDiff(prev, curr,
		[]string{"image-alt", "label", "color-contrast"},
		[]string{"label", "color-contrast", "link-name"})

	if d.TotalDelta != -2 {
		t.Fatalf("total delta = %d, want -2", d.TotalDelta)
	}
	if d.ByImpactDelta.Critical != -1 || d.ByImpactDelta.Serious != 0 || d.ByImpactDelta.Moderate != -1 {
		t.Fatalf("impact delta = %+v", d.ByImpactDelta)
	}
	if d.NewIssues != 1 {
		t.Fatalf("new issues = %d, want 1 (link-name)", d.NewIssues)
	}
	if d.ResolvedIssues != 1 {
		t.Fatalf("resolved issues = %d, want 1 (image-alt)", d.ResolvedIssues)
	}
}

func TestIsWorsening(t *testing.T) {
	tests := []struct {
		name string
		d    Diff
		want bool
	}{
		{name: "more issues", d: Diff{TotalDelta: 1}, want: true},
		{name: "flat total but more critical", d: Diff{TotalDelta: 0, ByImpactDelta: ImpactDelta{Critical: 1, Minor: -1}}, want: true},
		{name: "flat total but more serious", d: Diff{TotalDelta: 0, ByImpactDelta: ImpactDelta{Serious: 2, Moderate: -2}}, want: true},
		{name: "unchanged", d: Diff{}, want: false},
		{name: "fewer issues", d: Diff{TotalDelta: -3}, want: false},
		{name: "more moderate only", d: Diff{TotalDelta: 0, ByImpactDelta: ImpactDelta{Moderate: 1, Minor: -1}}, want: false},
	}
	for _, tt := range tests {
		if got := tt.d.IsWorsening(); got != tt.want {
			t.Fatalf("%s: IsWorsening = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestIsImproving(t *testing.T) {
	if !(Diff{TotalDelta: -1}).IsImproving() {
		t.Fatal("negative delta should improve")
	}
	if (Diff{TotalDelta: 0}).IsImproving() {
		t.Fatal("flat delta is not improving")
	}
}

func TestIssueIDs(t *testing.T) {
	issues := []audit.Issue{
		{RuleID: "image-alt"},
		{RuleID: " image-alt "},
		{RuleID: ""},
		{RuleID: "label"},
	}
	ids := IssueIDs(issues)
	if len(ids) != 2 || ids[0] != "image-alt" || ids[1] != "label" {
		t.Fatalf("ids = %v", ids)
	}
}
