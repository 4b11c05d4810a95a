package monitoring

import (
	"strings"

	"github.com/accessradar/accessradar/internal/pkg/audit"
)

// ImpactDelta holds per-severity count changes between two runs.
type ImpactDelta struct {
	Critical int `json:"critical"`
	Serious  int `json:"serious"`
	Moderate int `json:"moderate"`
	Minor    int `json:"minor"`
}

// Diff compares a run against the previous successful run of the same target.
type Diff struct {
	TotalDelta     int         `json:"total_delta"`
	ByImpactDelta  ImpactDelta `json:"by_impact_delta"`
	NewIssues      int         `json:"new_issues"`
	ResolvedIssues int         `json:"resolved_issues"`
}

// IsWorsening reports whether the page regressed: more issues overall, or
// more critical or serious ones even at a flat total.
func (d Diff) IsWorsening() bool {
	return d.TotalDelta > 0 || d.ByImpactDelta.Critical > 0 || d.ByImpactDelta.Serious > 0
}

// IsImproving reports whether the total issue count dropped.
func (d Diff) IsImproving() bool {
	return d.TotalDelta < 0
}

// BuildDiff computes the delta between the previous and current summaries and
// the churn of rule ids between the two issue sets.
func BuildDiff(prev, curr audit.Summary, prevIssueIDs, currIssueIDs []string) Diff {
	prevSet := idSet(prevIssueIDs)
	currSet := idSet(currIssueIDs)

	newIssues := 0
	for id := range currSet {
		if _, ok := prevSet[id]; !ok {
			newIssues++
		}
	}
	resolved := 0
	for id := range prevSet {
		if _, ok := currSet[id]; !ok {
			resolved++
		}
	}

	return Diff{
		TotalDelta: curr.Total - prev.Total,
		ByImpactDelta: ImpactDelta{
			Critical: curr.Critical - prev.Critical,
			Serious:  curr.Serious - prev.Serious,
			Moderate: curr.Moderate - prev.Moderate,
			Minor:    curr.Minor - prev.Minor,
		},
		NewIssues:      newIssues,
		ResolvedIssues: resolved,
	}
}

// IssueIDs extracts the deduplicated rule ids of an issue list.
func IssueIDs(issues []audit.Issue) []string {
	seen := make(map[string]struct{})
	var ids []string
	for _, is := range issues {
		id := strings.TrimSpace(is.RuleID)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids
}

func idSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
