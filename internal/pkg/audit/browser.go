package audit

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"

	"github.com/accessradar/accessradar/internal/pkg/env"
)

// axeRunTags select the WCAG 2.0/2.1 A and AA rule sets plus best practices.
var axeRunTags = []string{"wcag2a", "wcag2aa", "wcag21a", "wcag21aa", "best-practice"}

// RuleNode is one raw DOM occurrence reported by the rule engine.
type RuleNode struct {
	Target []string `json:"target"`
	HTML   string   `json:"html"`
}

// RuleViolation is one raw violation reported by the rule engine.
type RuleViolation struct {
	ID          string     `json:"id"`
	Impact      string     `json:"impact"`
	Description string     `json:"description"`
	Help        string     `json:"help"`
	HelpURL     string     `json:"helpUrl"`
	Tags        []string   `json:"tags"`
	Nodes       []RuleNode `json:"nodes"`
}

// RuleResults is the raw output of one rule evaluation.
type RuleResults struct {
	Violations []RuleViolation `json:"violations"`
}

// Page is an open browser tab positioned on the target URL.
type Page interface {
	RunRules(timeout time.Duration) (*RuleResults, error)
	Close()
}

// Browser opens pages for scanning. The chromedp implementation drives a
// headless Chrome, tests substitute a fake.
type Browser interface {
	Open(ctx context.Context, url string, timeout time.Duration) (Page, error)
}

// ChromeBrowser runs scans in headless Chrome via the DevTools protocol.
type ChromeBrowser struct {
	axeSource string
}

// NewChromeBrowser loads the rule engine source from AXE_SCRIPT_PATH.
func NewChromeBrowser() (*ChromeBrowser, error) {
	path := env.GetEnv("AXE_SCRIPT_PATH", "./assets/axe.min.js")
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load rule engine script from %s: %w", path, err)
	}
	return &ChromeBrowser{axeSource: string(src)}, nil
}

func (b *ChromeBrowser) Open(ctx context.Context, url string, timeout time.Duration) (Page, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.NoSandbox,
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.WindowSize(1366, 900),
	)
	if execPath := env.GetEnv("CHROME_EXEC_PATH", ""); execPath != "" {
		opts = append(opts, chromedp.ExecPath(execPath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)
	cancel := func() {
		tabCancel()
		allocCancel()
	}

	navCtx, navCancel := context.WithTimeout(tabCtx, timeout)
	defer navCancel()
	err := chromedp.Run(navCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil {
		cancel()
		return nil, err
	}
	return &chromePage{ctx: tabCtx, cancel: cancel, axeSource: b.axeSource}, nil
}

type chromePage struct {
	ctx       context.Context
	cancel    context.CancelFunc
	axeSource string
}

func (p *chromePage) RunRules(timeout time.Duration) (*RuleResults, error) {
	runCtx, runCancel := context.WithTimeout(p.ctx, timeout)
	defer runCancel()

	runExpr := fmt.Sprintf(
		`axe.run(document, {runOnly: {type: "tag", values: %s}, resultTypes: ["violations"]})`,
		jsStringArray(axeRunTags),
	)

	var results RuleResults
	err := chromedp.Run(runCtx,
		chromedp.Evaluate(p.axeSource, nil),
		chromedp.Evaluate(runExpr, &results, func(ep *runtime.EvaluateParams) *runtime.EvaluateParams {
			return ep.WithAwaitPromise(true)
		}),
	)
	if err != nil {
		return nil, err
	}
	return &results, nil
}

func (p *chromePage) Close() {
	p.cancel()
}

func jsStringArray(items []string) string {
	out := "["
	for i, it := range items {
		if i > 0 {
			out += ","
		}
		out += fmt.Sprintf("%q", it)
	}
	return out + "]"
}
