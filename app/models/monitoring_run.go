package models

import "time"

const (
	RunTriggerManual    = "manual"
	RunTriggerScheduled = "scheduled"
)

const (
	RunStatusRunning = "running"
	RunStatusSuccess = "success"
	RunStatusFailed  = "failed"
)

// MonitoringRun records one execution cycle for a target. Created in running
// state and moved exactly once to success or failed; never reopened.
// SummaryJSON stores the summary plus the issue-id list the next run diffs
// against; DiffJSON stores the computed delta.
type MonitoringRun struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	TargetID     uint       `gorm:"not null;index:idx_monitoring_runs_target_started,priority:1" json:"target_id"`
	Trigger      string     `gorm:"type:varchar(10);not null" json:"trigger"`
	RunURL       string     `gorm:"type:varchar(2048);not null" json:"run_url"`
	Status       string     `gorm:"type:varchar(10);not null;default:'running';index" json:"status"`
	AuditID      *uint      `gorm:"default:null" json:"audit_id,omitempty"`
	SummaryJSON  string     `gorm:"type:longtext" json:"-"`
	DiffJSON     string     `gorm:"type:longtext" json:"-"`
	ErrorMessage string     `gorm:"type:text" json:"error_message,omitempty"`
	StartedAt    time.Time  `gorm:"not null;index:idx_monitoring_runs_target_started,priority:2,sort:desc" json:"started_at"`
	FinishedAt   *time.Time `gorm:"type:timestamp;default:null" json:"finished_at,omitempty"`
}

// IsTerminal reports whether the run already reached a final state.
func (r *MonitoringRun) IsTerminal() bool {
	return r.Status == RunStatusSuccess || r.Status == RunStatusFailed
}
