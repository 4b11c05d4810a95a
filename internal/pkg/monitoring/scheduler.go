package monitoring

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/accessradar/accessradar/app/models"
	"github.com/accessradar/accessradar/internal/pkg/apperrors"
	"github.com/accessradar/accessradar/internal/pkg/audit"
)

const defaultBatchSize = 10

// Repo is the storage surface the scheduler drives.
type Repo interface {
	DueTargets(now time.Time, limit int) ([]models.MonitoringTarget, error)
	ClaimDueTarget(targetID uint, now, nextRunAt time.Time) error
	CreateRun(run *models.MonitoringRun) error
	UpdateRun(run *models.MonitoringRun) error
	LatestSuccessfulRun(targetID uint) (*models.MonitoringRun, error)
	SetLastRunAt(targetID uint, at time.Time) error
}

// Runner executes one scan and stores it as an audit. Satisfied by
// audit.Executor.
type Runner interface {
	ExecuteStored(ctx context.Context, userID uint, url string) (*audit.Outcome, error)
}

// Notifier reacts to worsening runs. Implementations decide about cooldowns
// and delivery, the scheduler only reports the regression.
type Notifier interface {
	NotifyWorsening(ctx context.Context, target *models.MonitoringTarget, run *models.MonitoringRun, diff Diff)
}

// RunSummary is the payload stored in MonitoringRun.SummaryJSON: the severity
// summary plus the rule ids the next run diffs against.
type RunSummary struct {
	Summary  audit.Summary `json:"summary"`
	IssueIDs []string      `json:"issue_ids"`
}

// TickSummary reports what one scheduler pass did.
type TickSummary struct {
	Due       int `json:"due"`
	Processed int `json:"processed"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
}

// Scheduler advances due monitoring targets. Each tick claims targets with a
// conditional update, so concurrent ticks on separate instances process every
// due target exactly once.
type Scheduler struct {
	Repo      Repo
	Runner    Runner
	Notifier  Notifier
	BatchSize int
	Now       func() time.Time
}

func NewScheduler(repo Repo, runner Runner, notifier Notifier) *Scheduler {
	return &Scheduler{
		Repo:      repo,
		Runner:    runner,
		Notifier:  notifier,
		BatchSize: defaultBatchSize,
		Now:       time.Now,
	}
}

// Tick processes one batch of due targets.
func (s *Scheduler) Tick(ctx context.Context) (TickSummary, error) {
	now := s.Now().UTC()
	var sum TickSummary

	targets, err := s.Repo.DueTargets(now, s.BatchSize)
	if err != nil {
		return sum, &apperrors.PersistenceError{Op: "select due targets", Err: err}
	}
	sum.Due = len(targets)

	for i := range targets {
		target := &targets[i]
		next := NextRunAt(now, target.CadenceMode, target.CadenceValue)
		if err := s.Repo.ClaimDueTarget(target.ID, now, next); err != nil {
			if errors.Is(err, apperrors.ErrClaimLost) {
				log.Debugf("monitoring: target %d already claimed", target.ID)
				sum.Skipped++
				continue
			}
			log.Errorf("monitoring: claim of target %d failed: %v", target.ID, err)
			sum.Failed++
			continue
		}

		if _, err := s.RunTarget(ctx, target, models.RunTriggerScheduled, ""); err != nil {
			sum.Failed++
			continue
		}
		sum.Processed++
	}

	log.Infof("monitoring: tick due=%d processed=%d failed=%d skipped=%d",
		sum.Due, sum.Processed, sum.Failed, sum.Skipped)
	return sum, nil
}

// RunTarget executes one run for a target and records it. urlOverride, when
// set, scans a different URL than the target default without changing the
// target. A failed run is recorded as failed and returned as an error, the
// target's schedule stays advanced either way.
func (s *Scheduler) RunTarget(ctx context.Context, target *models.MonitoringTarget, trigger, urlOverride string) (*models.MonitoringRun, error) {
	now := s.Now().UTC()
	url := target.DefaultURL
	if urlOverride != "" {
		url = urlOverride
	}

	run := &models.MonitoringRun{
		TargetID:  target.ID,
		Trigger:   trigger,
		RunURL:    url,
		Status:    models.RunStatusRunning,
		StartedAt: now,
	}
	if err := s.Repo.CreateRun(run); err != nil {
		return nil, &apperrors.PersistenceError{Op: "create monitoring run", Err: err}
	}

	out, err := s.Runner.ExecuteStored(ctx, target.UserID, url)
	if err != nil {
		s.finishFailed(run, err)
		return run, err
	}
	report := out.Report
	run.AuditID = &out.AuditID

	diff := s.diffAgainstPrevious(target.ID, report)

	summaryJSON, encErr := json.Marshal(RunSummary{
		Summary:  report.Summary,
		IssueIDs: IssueIDs(report.Issues),
	})
	if encErr != nil {
		s.finishFailed(run, encErr)
		return run, &apperrors.PersistenceError{Op: "encode run summary", Err: encErr}
	}
	run.SummaryJSON = string(summaryJSON)
	if diffJSON, err := json.Marshal(diff); err == nil {
		run.DiffJSON = string(diffJSON)
	}

	finished := s.Now().UTC()
	run.Status = models.RunStatusSuccess
	run.FinishedAt = &finished
	if err := s.Repo.UpdateRun(run); err != nil {
		return run, &apperrors.PersistenceError{Op: "finish monitoring run", Err: err}
	}
	if err := s.Repo.SetLastRunAt(target.ID, now); err != nil {
		log.Warnf("monitoring: update last_run_at for target %d: %v", target.ID, err)
	}

	if diff.IsWorsening() && s.Notifier != nil {
		s.Notifier.NotifyWorsening(ctx, target, run, diff)
	}
	return run, nil
}

func (s *Scheduler) finishFailed(run *models.MonitoringRun, cause error) {
	finished := s.Now().UTC()
	run.Status = models.RunStatusFailed
	run.ErrorMessage = cause.Error()
	run.FinishedAt = &finished
	if err := s.Repo.UpdateRun(run); err != nil {
		log.Errorf("monitoring: record failure of run %d: %v", run.ID, err)
	}
}

// diffAgainstPrevious compares the fresh report with the target's last
// successful run. A target without one diffs against an empty baseline, so
// the first run's deltas equal the current counts.
func (s *Scheduler) diffAgainstPrevious(targetID uint, report *audit.Report) Diff {
	var prevSummary RunSummary

	prev, err := s.Repo.LatestSuccessfulRun(targetID)
	if err != nil {
		log.Warnf("monitoring: previous run lookup for target %d: %v", targetID, err)
	}
	if prev != nil && prev.SummaryJSON != "" {
		if err := json.Unmarshal([]byte(prev.SummaryJSON), &prevSummary); err != nil {
			log.Warnf("monitoring: decode previous summary of run %d: %v", prev.ID, err)
			prevSummary = RunSummary{}
		}
	}

	return BuildDiff(prevSummary.Summary, report.Summary, prevSummary.IssueIDs, IssueIDs(report.Issues))
}
