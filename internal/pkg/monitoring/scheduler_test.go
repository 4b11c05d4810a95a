package monitoring

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/accessradar/accessradar/app/models"
	"github.com/accessradar/accessradar/internal/pkg/apperrors"
	"github.com/accessradar/accessradar/internal/pkg/audit"
)

type fakeRepo struct {
	due        []models.MonitoringTarget
	claimed    map[uint]time.Time
	claimLost  map[uint]bool
	runs       []*models.MonitoringRun
	updated    []*models.MonitoringRun
	previous   map[uint]*models.MonitoringRun
	lastRunAt  map[uint]time.Time
	nextRunID  uint
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		claimed:   make(map[uint]time.Time),
		claimLost: make(map[uint]bool),
		previous:  make(map[uint]*models.MonitoringRun),
		lastRunAt: make(map[uint]time.Time),
	}
}

func (r *fakeRepo) DueTargets(now time.Time, limit int) ([]models.MonitoringTarget, error) {
	if len(r.due) > limit {
		return r.due[:limit], nil
	}
	return r.due, nil
}

func (r *fakeRepo) ClaimDueTarget(targetID uint, now, nextRunAt time.Time) error {
	if r.claimLost[targetID] {
		return apperrors.ErrClaimLost
	}
	r.claimed[targetID] = nextRunAt
	// A second claim attempt for the same target loses.
	r.claimLost[targetID] = true
	return nil
}

func (r *fakeRepo) CreateRun(run *models.MonitoringRun) error {
	r.nextRunID++
	run.ID = r.nextRunID
	r.runs = append(r.runs, run)
	return nil
}

func (r *fakeRepo) UpdateRun(run *models.MonitoringRun) error {
	r.updated = append(r.updated, run)
	return nil
}

func (r *fakeRepo) LatestSuccessfulRun(targetID uint) (*models.MonitoringRun, error) {
	return r.previous[targetID], nil
}

func (r *fakeRepo) SetLastRunAt(targetID uint, at time.Time) error {
	r.lastRunAt[targetID] = at
	return nil
}

type fakeRunner struct {
	report      *audit.Report
	err         error
	urls        []string
	userIDs     []uint
	nextAuditID uint
}

func (f *fakeRunner) ExecuteStored(_ context.Context, userID uint, url string) (*audit.Outcome, error) {
	f.urls = append(f.urls, url)
	f.userIDs = append(f.userIDs, userID)
	if f.err != nil {
		return nil, f.err
	}
	f.nextAuditID++
	return &audit.Outcome{
		AuditID:   f.nextAuditID,
		AuditUUID: "00000000-0000-0000-0000-000000000001",
		Report:    f.report,
	}, nil
}

type fakeNotifier struct {
	calls []Diff
}

func (f *fakeNotifier) NotifyWorsening(_ context.Context, _ *models.MonitoringTarget, _ *models.MonitoringRun, d Diff) {
	f.calls = append(f.calls, d)
}

func testReport(total, critical int) *audit.Report {
	issues := make([]audit.Issue, 0, total)
	for i := 0; i < critical; i++ {
		issues = append(issues, audit.Issue{RuleID: "image-alt", Impact: audit.ImpactCritical})
	}
	for i := critical; i < total; i++ {
		issues = append(issues, audit.Issue{RuleID: "label", Impact: audit.ImpactMinor})
	}
	return &audit.Report{
		URL:       "http://example.com",
		Summary:   audit.Summarize(issues),
		TopIssues: audit.TopIssuesOf(issues),
		Issues:    issues,
	}
}

func testTarget(id uint) models.MonitoringTarget {
	return models.MonitoringTarget{
		ID:           id,
		UserID:       1,
		DefaultURL:   "http://example.com",
		Active:       true,
		CadenceMode:  models.CadenceModeIntervalDays,
		CadenceValue: 14,
	}
}

func newTestScheduler(repo *fakeRepo, runner *fakeRunner, notifier *fakeNotifier) *Scheduler {
	s := NewScheduler(repo, runner, notifier)
	s.Now = func() time.Time { return time.Date(2026, 3, 2, 6, 0, 0, 0, time.UTC) }
	return s
}

func TestTickProcessesDueTargets(t *testing.T) {
	repo := newFakeRepo()
	repo.due = []models.MonitoringTarget{testTarget(1), testTarget(2)}
	runner := &fakeRunner{report: testReport(3, 1)}
	sched := newTestScheduler(repo, runner, &fakeNotifier{})

	sum, err := sched.Tick(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sum.Due != 2 || sum.Processed != 2 || sum.Failed != 0 || sum.Skipped != 0 {
		t.Fatalf("summary = %+v", sum)
	}
	if len(repo.runs) != 2 {
		t.Fatalf("runs = %d, want 2", len(repo.runs))
	}
	for _, run := range repo.runs {
		if run.Status != models.RunStatusSuccess || run.FinishedAt == nil {
			t.Fatalf("run not finished: %+v", run)
		}
		if run.Trigger != models.RunTriggerScheduled {
			t.Fatalf("trigger = %q", run.Trigger)
		}
	}
	// Schedules advanced through the claim.
	if len(repo.claimed) != 2 {
		t.Fatalf("claims = %v", repo.claimed)
	}
}

func TestTickClaimRaceSkipsSilently(t *testing.T) {
	repo := newFakeRepo()
	repo.due = []models.MonitoringTarget{testTarget(1), testTarget(2)}
	repo.claimLost[2] = true
	runner := &fakeRunner{report: testReport(1, 0)}
	sched := newTestScheduler(repo, runner, &fakeNotifier{})

	sum, err := sched.Tick(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sum.Processed != 1 || sum.Skipped != 1 || sum.Failed != 0 {
		t.Fatalf("summary = %+v", sum)
	}
	if len(repo.runs) != 1 || repo.runs[0].TargetID != 1 {
		t.Fatalf("runs = %+v", repo.runs)
	}
}

func TestConcurrentTicksProcessTargetOnce(t *testing.T) {
	repo := newFakeRepo()
	repo.due = []models.MonitoringTarget{testTarget(1)}
	runner := &fakeRunner{report: testReport(1, 0)}
	sched := newTestScheduler(repo, runner, &fakeNotifier{})

	first, err := sched.Tick(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// The fake marks claimed targets as lost for later attempts, mirroring
	// the conditional update already having advanced next_run_at.
	second, err := sched.Tick(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if first.Processed != 1 || second.Processed != 0 || second.Skipped != 1 {
		t.Fatalf("first = %+v second = %+v", first, second)
	}
	if len(repo.runs) != 1 {
		t.Fatalf("runs = %d, want exactly one", len(repo.runs))
	}
}

func TestFailedRunRecordedAndScheduleStaysAdvanced(t *testing.T) {
	repo := newFakeRepo()
	repo.due = []models.MonitoringTarget{testTarget(1)}
	runner := &fakeRunner{err: &apperrors.ExecutionError{Kind: apperrors.ExecNavigationTimeout, Err: errors.New("timeout")}}
	sched := newTestScheduler(repo, runner, &fakeNotifier{})

	sum, err := sched.Tick(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sum.Failed != 1 || sum.Processed != 0 {
		t.Fatalf("summary = %+v", sum)
	}
	if len(repo.runs) != 1 {
		t.Fatalf("runs = %d", len(repo.runs))
	}
	run := repo.runs[0]
	if run.Status != models.RunStatusFailed || run.ErrorMessage == "" || run.FinishedAt == nil {
		t.Fatalf("run = %+v", run)
	}
	// Claim happened before the failure, the target is not retried until
	// its next scheduled slot.
	if _, ok := repo.claimed[1]; !ok {
		t.Fatal("claim did not advance the schedule")
	}
}

func TestRunTargetDiffsAgainstPreviousRun(t *testing.T) {
	repo := newFakeRepo()
	prevSummary, _ := json.Marshal(RunSummary{
		Summary:  audit.Summary{Total: 1, Minor: 1},
		IssueIDs: []string{"label"},
	})
	repo.previous[1] = &models.MonitoringRun{ID: 99, Status: models.RunStatusSuccess, SummaryJSON: string(prevSummary)}
	runner := &fakeRunner{report: testReport(3, 1)}
	notifier := &fakeNotifier{}
	sched := newTestScheduler(repo, runner, notifier)

	target := testTarget(1)
	run, err := sched.RunTarget(context.Background(), &target, models.RunTriggerScheduled, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if run.DiffJSON == "" {
		t.Fatal("expected diff on run with a predecessor")
	}
	var d Diff
	if err := json.Unmarshal([]byte(run.DiffJSON), &d); err != nil {
		t.Fatalf("decode diff: %v", err)
	}
	if d.TotalDelta != 2 || d.ByImpactDelta.Critical != 1 {
		t.Fatalf("diff = %+v", d)
	}
	if len(notifier.calls) != 1 {
		t.Fatalf("worsening notifications = %d, want 1", len(notifier.calls))
	}
}

func TestRunTargetFirstRunDiffsAgainstEmptyBaseline(t *testing.T) {
	repo := newFakeRepo()
	runner := &fakeRunner{report: testReport(2, 1)}
	notifier := &fakeNotifier{}
	sched := newTestScheduler(repo, runner, notifier)

	target := testTarget(1)
	run, err := sched.RunTarget(context.Background(), &target, models.RunTriggerScheduled, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if run.DiffJSON == "" {
		t.Fatal("first run must still carry a diff")
	}
	var d Diff
	if err := json.Unmarshal([]byte(run.DiffJSON), &d); err != nil {
		t.Fatalf("decode diff: %v", err)
	}
	// With no predecessor the baseline is empty, every issue counts as new.
	if d.TotalDelta != 2 || d.ByImpactDelta.Critical != 1 || d.NewIssues != 2 {
		t.Fatalf("diff = %+v", d)
	}
	if len(notifier.calls) != 1 {
		t.Fatalf("worsening notifications = %d, want 1", len(notifier.calls))
	}
}

func TestRunTargetStoresAuditReference(t *testing.T) {
	repo := newFakeRepo()
	runner := &fakeRunner{report: testReport(1, 0)}
	sched := newTestScheduler(repo, runner, &fakeNotifier{})

	target := testTarget(1)
	run, err := sched.RunTarget(context.Background(), &target, models.RunTriggerScheduled, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if run.AuditID == nil || *run.AuditID != 1 {
		t.Fatalf("audit id = %v, want stored audit 1", run.AuditID)
	}
	if len(runner.userIDs) != 1 || runner.userIDs[0] != target.UserID {
		t.Fatalf("scan ran for users %v, want owner %d", runner.userIDs, target.UserID)
	}
}

func TestRunTargetURLOverride(t *testing.T) {
	repo := newFakeRepo()
	runner := &fakeRunner{report: testReport(1, 0)}
	sched := newTestScheduler(repo, runner, &fakeNotifier{})

	target := testTarget(1)
	run, err := sched.RunTarget(context.Background(), &target, models.RunTriggerManual, "http://example.com/pricing")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if run.RunURL != "http://example.com/pricing" {
		t.Fatalf("run url = %q", run.RunURL)
	}
	if runner.urls[0] != "http://example.com/pricing" {
		t.Fatalf("scanned url = %q", runner.urls[0])
	}
	if run.Trigger != models.RunTriggerManual {
		t.Fatalf("trigger = %q", run.Trigger)
	}
}

func TestNotifierCooldownSuppressesRepeat(t *testing.T) {
	sent := 0
	acquired := true
	n := &EmailNotifier{
		Mailer:  mailerFunc(func(to, subject, body string) error { sent++; return nil }),
		Lookup:  func(userID uint) (string, error) { return "owner@example.com", nil },
		Enabled: true,
		Cooldown: func(key string, ttl time.Duration) (bool, error) {
			ok := acquired
			acquired = false
			return ok, nil
		},
	}

	target := testTarget(1)
	run := &models.MonitoringRun{StartedAt: time.Now()}
	d := Diff{TotalDelta: 2}

	n.NotifyWorsening(context.Background(), &target, run, d)
	n.NotifyWorsening(context.Background(), &target, run, d)

	if sent != 1 {
		t.Fatalf("mails sent = %d, want 1", sent)
	}
}

func TestNotifierDisabled(t *testing.T) {
	sent := 0
	n := &EmailNotifier{
		Mailer:   mailerFunc(func(to, subject, body string) error { sent++; return nil }),
		Lookup:   func(userID uint) (string, error) { return "owner@example.com", nil },
		Enabled:  false,
		Cooldown: func(string, time.Duration) (bool, error) { return true, nil },
	}

	target := testTarget(1)
	n.NotifyWorsening(context.Background(), &target, &models.MonitoringRun{}, Diff{TotalDelta: 5})
	if sent != 0 {
		t.Fatalf("mails sent = %d, want 0", sent)
	}
}

type mailerFunc func(to, subject, body string) error

func (f mailerFunc) Send(to, subject, body string) error { return f(to, subject, body) }
