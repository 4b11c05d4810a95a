package monitoring

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/accessradar/accessradar/app/models"
	"github.com/accessradar/accessradar/internal/pkg/cache"
	"github.com/accessradar/accessradar/internal/pkg/env"
	"github.com/accessradar/accessradar/internal/pkg/mail"
)

const notifyCooldown = 6 * time.Hour

// EmailLookup resolves the owner email of a target.
type EmailLookup func(userID uint) (string, error)

// CooldownFunc acquires a per-target notification slot. Returns false when a
// notification already went out inside the cooldown window.
type CooldownFunc func(key string, ttl time.Duration) (bool, error)

// EmailNotifier mails the target owner when a run worsens, at most once per
// cooldown window per target.
type EmailNotifier struct {
	Mailer   mail.Mailer
	Lookup   EmailLookup
	Cooldown CooldownFunc
	Enabled  bool
}

// NewEmailNotifier wires the notifier against SMTP and the Redis cooldown.
// MONITORING_EMAIL_NOTIFICATIONS=false disables delivery entirely.
func NewEmailNotifier(mailer mail.Mailer, lookup EmailLookup) *EmailNotifier {
	return &EmailNotifier{
		Mailer: mailer,
		Lookup: lookup,
		Cooldown: func(key string, ttl time.Duration) (bool, error) {
			return cache.SetNX(key, "1", ttl)
		},
		Enabled: env.GetEnv("MONITORING_EMAIL_NOTIFICATIONS", "true") == "true",
	}
}

func (n *EmailNotifier) NotifyWorsening(_ context.Context, target *models.MonitoringTarget, run *models.MonitoringRun, diff Diff) {
	if !n.Enabled {
		return
	}

	key := fmt.Sprintf("monitoring:notify:%d", target.ID)
	acquired, err := n.Cooldown(key, notifyCooldown)
	if err != nil {
		log.Warnf("monitoring: notification cooldown check for target %d: %v", target.ID, err)
		return
	}
	if !acquired {
		log.Debugf("monitoring: notification for target %d suppressed by cooldown", target.ID)
		return
	}

	email, err := n.Lookup(target.UserID)
	if err != nil || email == "" {
		log.Warnf("monitoring: cannot resolve owner email for target %d: %v", target.ID, err)
		return
	}

	subject := fmt.Sprintf("Accessibility regression detected on %s", target.DefaultURL)
	body := fmt.Sprintf(
		"<p>The latest monitoring run for <strong>%s</strong> found a regression.</p>"+
			"<p>Issue count change: %+d (critical %+d, serious %+d).</p>"+
			"<p>New issues: %d, resolved issues: %d.</p>"+
			"<p>Run started at %s.</p>",
		target.DefaultURL,
		diff.TotalDelta, diff.ByImpactDelta.Critical, diff.ByImpactDelta.Serious,
		diff.NewIssues, diff.ResolvedIssues,
		run.StartedAt.Format(time.RFC3339),
	)

	if err := n.Mailer.Send(email, subject, body); err != nil {
		log.Warnf("monitoring: regression mail for target %d failed: %v", target.ID, err)
	}
}
