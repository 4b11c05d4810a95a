package audit

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/accessradar/accessradar/app/models"
	"github.com/accessradar/accessradar/internal/pkg/apperrors"
	"github.com/accessradar/accessradar/internal/pkg/entitlements"
)

const (
	defaultNavTimeout  = 45 * time.Second
	defaultNavAttempts = 2
	defaultNavBackoff  = time.Second
	defaultEvalTimeout = 90 * time.Second
)

// Store persists audit rows.
type Store interface {
	CreateAudit(a *models.Audit) error
	CreateAuditFull(f *models.AuditFull) error
	DeleteAudit(id uint) error
}

// Debiter settles entitlement consumption after a completed scan.
type Debiter interface {
	ConsumeFreeScan(userID uint) error
	DebitScanCredit(userID uint) error
}

// Archiver ships full reports to long-term object storage. Optional,
// failures never fail the scan.
type Archiver interface {
	StoreReport(ctx context.Context, auditUUID string, payload []byte) error
}

// Outcome is the result of one executed scan.
type Outcome struct {
	AuditID     uint
	AuditUUID   string
	AccessLevel entitlements.AccessLevel
	Report      *Report
}

// Executor runs a scan end to end: drive the browser, normalize findings,
// persist, settle entitlements, redact for the caller's access level.
type Executor struct {
	Browser     Browser
	Store       Store
	Debiter     Debiter
	Archive     Archiver
	NavTimeout  time.Duration
	NavAttempts int
	NavBackoff  time.Duration
	EvalTimeout time.Duration
	Sleep       func(time.Duration)
	Now         func() time.Time
}

func NewExecutor(browser Browser, store Store, debiter Debiter, archive Archiver) *Executor {
	return &Executor{
		Browser:     browser,
		Store:       store,
		Debiter:     debiter,
		Archive:     archive,
		NavTimeout:  defaultNavTimeout,
		NavAttempts: defaultNavAttempts,
		NavBackoff:  defaultNavBackoff,
		EvalTimeout: defaultEvalTimeout,
		Sleep:       time.Sleep,
		Now:         time.Now,
	}
}

// RunScan drives the browser against the URL and returns the normalized
// report. Navigation gets a bounded retry, rule evaluation does not.
func (e *Executor) RunScan(ctx context.Context, url string) (*Report, error) {
	page, err := e.openWithRetry(ctx, url)
	if err != nil {
		return nil, err
	}
	defer page.Close()

	results, err := page.RunRules(e.EvalTimeout)
	if err != nil {
		kind := apperrors.ExecGeneric
		if errors.Is(err, context.DeadlineExceeded) {
			kind = apperrors.ExecEvaluationTimeout
		}
		return nil, &apperrors.ExecutionError{Kind: kind, Err: err}
	}

	return e.buildReport(url, results), nil
}

func (e *Executor) openWithRetry(ctx context.Context, url string) (Page, error) {
	var lastErr error
	for attempt := 1; attempt <= e.NavAttempts; attempt++ {
		page, err := e.Browser.Open(ctx, url, e.NavTimeout)
		if err == nil {
			return page, nil
		}
		lastErr = err
		log.Warnf("audit: navigation attempt %d/%d failed for %s: %v", attempt, e.NavAttempts, url, err)
		if attempt < e.NavAttempts {
			e.Sleep(e.NavBackoff)
		}
	}
	kind := apperrors.ExecGeneric
	if errors.Is(lastErr, context.DeadlineExceeded) {
		kind = apperrors.ExecNavigationTimeout
	}
	return nil, &apperrors.ExecutionError{Kind: kind, Err: lastErr}
}

func (e *Executor) buildReport(url string, results *RuleResults) *Report {
	issues := make([]Issue, 0, len(results.Violations))
	for _, v := range results.Violations {
		g := GuidanceFor(v.ID, v.Description, v.Help)
		issue := Issue{
			RuleID:         v.ID,
			Title:          g.Title,
			Impact:         NormalizeImpact(v.Impact),
			Description:    g.Description,
			Recommendation: g.Recommendation,
			WCAGRefs:       []string{g.WCAG},
			WCAGLevel:      WCAGLevelFor(v.ID, g.WCAG),
			Principle:      g.Principle,
			HelpURL:        v.HelpURL,
			NodesCount:     len(v.Nodes),
		}
		for i, n := range v.Nodes {
			if i >= maxIssueNodes {
				break
			}
			target := ""
			if len(n.Target) > 0 {
				target = n.Target[0]
			}
			issue.Nodes = append(issue.Nodes, IssueNode{Target: target, HTML: n.HTML})
		}
		issues = append(issues, issue)
	}

	SortIssues(issues)

	return &Report{
		URL:       url,
		ScannedAt: e.Now().UTC(),
		Summary:   Summarize(issues),
		TopIssues: TopIssuesOf(issues),
		Issues:    issues,
	}
}

// Execute runs a scan for a user and settles all bookkeeping. The caller has
// already validated the URL and passed the entitlement and rate checks.
func (e *Executor) Execute(ctx context.Context, userID uint, snap entitlements.Snapshot, url string) (*Outcome, error) {
	report, err := e.RunScan(ctx, url)
	if err != nil {
		return nil, err
	}

	access := snap.AccessLevelFor()
	kind := models.AuditKindFree
	if access == entitlements.AccessPaid {
		kind = models.AuditKindPaid
	}

	auditRow, err := e.persist(userID, url, kind, report)
	if err != nil {
		return nil, err
	}

	e.settle(userID, access)
	e.archive(ctx, auditRow.UUID, report)

	out := &Outcome{
		AuditID:     auditRow.ID,
		AuditUUID:   auditRow.UUID,
		AccessLevel: access,
		Report:      RedactReport(report, access),
	}
	return out, nil
}

// ExecuteStored runs a scan on behalf of the monitoring scheduler and
// persists it like a paid audit. Monitoring runs consume no credits, the
// subscription already covers them.
func (e *Executor) ExecuteStored(ctx context.Context, userID uint, url string) (*Outcome, error) {
	report, err := e.RunScan(ctx, url)
	if err != nil {
		return nil, err
	}

	auditRow, err := e.persist(userID, url, models.AuditKindPaid, report)
	if err != nil {
		return nil, err
	}
	e.archive(ctx, auditRow.UUID, report)

	out := &Outcome{
		AuditID:     auditRow.ID,
		AuditUUID:   auditRow.UUID,
		AccessLevel: entitlements.AccessPaid,
		Report:      report,
	}
	return out, nil
}

// persist writes the summary row and the full issue payload. A failed full
// write deletes the summary row again so no half-audit survives. Free audits
// store the redacted top issues, an upgrade later flips only the kind.
func (e *Executor) persist(userID uint, url, kind string, report *Report) (*models.Audit, error) {
	summaryJSON, err := json.Marshal(report.Summary)
	if err != nil {
		return nil, &apperrors.PersistenceError{Op: "encode summary", Err: err}
	}
	storedTop := report.TopIssues
	if kind == models.AuditKindFree {
		storedTop = RedactForFree(report.TopIssues)
	}
	topJSON, err := json.Marshal(storedTop)
	if err != nil {
		return nil, &apperrors.PersistenceError{Op: "encode top issues", Err: err}
	}
	fullJSON, err := json.Marshal(report.Issues)
	if err != nil {
		return nil, &apperrors.PersistenceError{Op: "encode issues", Err: err}
	}

	auditRow := &models.Audit{
		UserID:        userID,
		URL:           url,
		Kind:          kind,
		SummaryJSON:   string(summaryJSON),
		TopIssuesJSON: string(topJSON),
	}
	if err := e.Store.CreateAudit(auditRow); err != nil {
		return nil, &apperrors.PersistenceError{Op: "create audit", Err: err}
	}

	full := &models.AuditFull{
		AuditID:        auditRow.ID,
		UserID:         userID,
		URL:            url,
		FullIssuesJSON: string(fullJSON),
	}
	if err := e.Store.CreateAuditFull(full); err != nil {
		if delErr := e.Store.DeleteAudit(auditRow.ID); delErr != nil {
			log.Errorf("audit: rollback of audit %d failed: %v", auditRow.ID, delErr)
		}
		return nil, &apperrors.PersistenceError{Op: "create audit detail", Err: err}
	}
	return auditRow, nil
}

// settle consumes the entitlement that paid for this scan. Losing a consume
// race after the scan already ran is logged, not surfaced.
func (e *Executor) settle(userID uint, access entitlements.AccessLevel) {
	var err error
	if access == entitlements.AccessPaid {
		err = e.Debiter.DebitScanCredit(userID)
	} else {
		err = e.Debiter.ConsumeFreeScan(userID)
	}
	if err != nil {
		log.Warnf("audit: entitlement settlement for user %d failed: %v", userID, err)
	}
}

func (e *Executor) archive(ctx context.Context, auditUUID string, report *Report) {
	if e.Archive == nil {
		return
	}
	payload, err := json.Marshal(report)
	if err != nil {
		log.Warnf("audit: encode archive payload for %s: %v", auditUUID, err)
		return
	}
	if err := e.Archive.StoreReport(ctx, auditUUID, payload); err != nil {
		log.Warnf("audit: archive upload for %s failed: %v", auditUUID, err)
	}
}

// RedactReport returns the view of a report appropriate to an access level.
// Free callers see redacted top issues and no full issue list.
func RedactReport(report *Report, access entitlements.AccessLevel) *Report {
	if access == entitlements.AccessPaid {
		return report
	}
	out := *report
	out.TopIssues = RedactForFree(report.TopIssues)
	out.Issues = nil
	return &out
}
