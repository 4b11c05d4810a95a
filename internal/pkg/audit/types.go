package audit

import (
	"math"
	"sort"
	"time"
)

// Impact severities, most severe first in ordering.
const (
	ImpactCritical = "critical"
	ImpactSerious  = "serious"
	ImpactModerate = "moderate"
	ImpactMinor    = "minor"
)

const (
	topIssueCount = 3
	maxIssueNodes = 5
)

var impactRank = map[string]int{
	ImpactCritical: 0,
	ImpactSerious:  1,
	ImpactModerate: 2,
	ImpactMinor:    3,
}

// NormalizeImpact maps unknown or missing impact values to minor so every
// issue lands in exactly one severity bucket.
func NormalizeImpact(impact string) string {
	if _, ok := impactRank[impact]; ok {
		return impact
	}
	return ImpactMinor
}

// IssueNode points at one DOM occurrence of an issue.
type IssueNode struct {
	Target string `json:"target"`
	HTML   string `json:"html,omitempty"`
}

// Issue is one accessibility finding on a scanned page.
type Issue struct {
	RuleID         string      `json:"rule_id"`
	Title          string      `json:"title"`
	Impact         string      `json:"impact"`
	Description    string      `json:"description"`
	Recommendation string      `json:"recommendation,omitempty"`
	WCAGRefs       []string    `json:"wcag_refs,omitempty"`
	WCAGLevel      string      `json:"wcag_level,omitempty"`
	Principle      string      `json:"principle,omitempty"`
	HelpURL        string      `json:"help_url,omitempty"`
	NodesCount     int         `json:"nodes_count"`
	Nodes          []IssueNode `json:"nodes,omitempty"`
}

// Summary aggregates a scan's findings by severity.
type Summary struct {
	Total    int `json:"total"`
	Critical int `json:"critical"`
	Serious  int `json:"serious"`
	Moderate int `json:"moderate"`
	Minor    int `json:"minor"`
	Score    int `json:"score"`
}

// Report is the full result of one scan.
type Report struct {
	URL       string    `json:"url"`
	ScannedAt time.Time `json:"scanned_at"`
	Summary   Summary   `json:"summary"`
	TopIssues []Issue   `json:"top_issues"`
	Issues    []Issue   `json:"issues,omitempty"`
}

// SortIssues orders issues by severity, then by occurrence count descending
// so widespread problems surface first within a severity.
func SortIssues(issues []Issue) {
	sort.SliceStable(issues, func(i, j int) bool {
		ri, rj := impactRank[issues[i].Impact], impactRank[issues[j].Impact]
		if ri != rj {
			return ri < rj
		}
		return issues[i].NodesCount > issues[j].NodesCount
	})
}

// Summarize recomputes the severity counts and score from the issue list.
func Summarize(issues []Issue) Summary {
	var s Summary
	for _, is := range issues {
		s.Total++
		switch is.Impact {
		case ImpactCritical:
			s.Critical++
		case ImpactSerious:
			s.Serious++
		case ImpactModerate:
			s.Moderate++
		default:
			s.Minor++
		}
	}
	s.Score = score(s)
	return s
}

// score weighs severities into a 0..100 accessibility score. The harmonic
// falloff keeps heavily broken pages apart instead of flooring them all at
// zero.
func score(s Summary) int {
	if s.Total == 0 {
		return 100
	}
	penalty := s.Critical*18 + s.Serious*10 + s.Moderate*5 + s.Minor*2
	v := int(math.Round(100 / (1 + float64(penalty)/60)))
	if v < 0 {
		return 0
	}
	return v
}

// TopIssuesOf returns the highest-impact issues for the report preview.
func TopIssuesOf(issues []Issue) []Issue {
	n := topIssueCount
	if len(issues) < n {
		n = len(issues)
	}
	top := make([]Issue, n)
	copy(top, issues[:n])
	return top
}

// RedactForFree strips the paid-tier detail from issues: remediation text and
// DOM locations go away, the occurrence count stays.
func RedactForFree(issues []Issue) []Issue {
	out := make([]Issue, len(issues))
	for i, is := range issues {
		is.Recommendation = ""
		is.Nodes = nil
		out[i] = is
	}
	return out
}
