package controllers

import (
	"context"
	"sync"

	"github.com/gofiber/fiber/v2/log"

	"github.com/accessradar/accessradar/app/repository"
	"github.com/accessradar/accessradar/internal/pkg/audit"
	"github.com/accessradar/accessradar/internal/pkg/database"
	"github.com/accessradar/accessradar/internal/pkg/entitlements"
	"github.com/accessradar/accessradar/internal/pkg/mail"
	"github.com/accessradar/accessradar/internal/pkg/monitoring"
	"github.com/accessradar/accessradar/internal/pkg/ratelimit"
	"github.com/accessradar/accessradar/internal/pkg/reportarchive"
	"github.com/accessradar/accessradar/internal/pkg/safeurl"
)

var (
	setupOnce    sync.Once
	urlValidator *safeurl.Validator
	scanBrowser  audit.Browser
	scanArchive  audit.Archiver
	browserErr   error
)

// setupScanServices wires the long-lived pieces of the scan pipeline once:
// the SSRF validator, the headless browser and the optional report archive.
func setupScanServices() {
	setupOnce.Do(func() {
		urlValidator = safeurl.NewValidator(nil)

		scanBrowser, browserErr = audit.NewChromeBrowser()
		if browserErr != nil {
			log.Errorf("scan browser unavailable: %v", browserErr)
		}

		cfg, err := reportarchive.LoadConfig()
		if err != nil {
			log.Warnf("report archive configuration invalid: %v", err)
			return
		}
		if cfg.IsEnabled() {
			client, err := reportarchive.NewClient(cfg)
			if err != nil {
				log.Warnf("report archive unavailable: %v", err)
				return
			}
			scanArchive = client
		}
	})
}

// scanExecutor builds the executor against the global repositories.
func scanExecutor() (*audit.Executor, error) {
	setupScanServices()
	if browserErr != nil {
		return nil, browserErr
	}
	db := database.GetDB()
	return audit.NewExecutor(
		scanBrowser,
		repository.GetGlobalFactory().GetAuditRepository(),
		entitlements.NewService(db),
		scanArchive,
	), nil
}

// scanLimiter builds the per-user sliding-window limiter over audit rows.
func scanLimiter() *ratelimit.Limiter {
	audits := repository.GetGlobalFactory().GetAuditRepository()
	return ratelimit.NewLimiterFromEnv(audits.CountByUserSince)
}

// monitoringScheduler wires the scheduler the tick endpoint and run-now use.
func monitoringScheduler() (*monitoring.Scheduler, error) {
	executor, err := scanExecutor()
	if err != nil {
		return nil, err
	}
	repo := repository.GetGlobalFactory().GetMonitoringRepository()
	users := repository.GetGlobalFactory().GetUserRepository()
	notifier := monitoring.NewEmailNotifier(mail.NewSMTPMailer(), func(userID uint) (string, error) {
		u, err := users.GetByID(userID)
		if err != nil {
			return "", err
		}
		return u.Email, nil
	})
	return monitoring.NewScheduler(repo, executor, notifier), nil
}

// RunScheduledMonitoringTick is the cron entry point. It builds the scheduler
// lazily so a missing browser at startup only disables monitoring runs, not
// the whole process.
func RunScheduledMonitoringTick(ctx context.Context) {
	sched, err := monitoringScheduler()
	if err != nil {
		log.Errorf("monitoring tick skipped: %v", err)
		return
	}
	sum, err := sched.Tick(ctx)
	if err != nil {
		log.Errorf("monitoring tick failed: %v", err)
		return
	}
	if sum.Due > 0 {
		log.Infof("monitoring tick: due=%d processed=%d failed=%d skipped=%d",
			sum.Due, sum.Processed, sum.Failed, sum.Skipped)
	}
}
