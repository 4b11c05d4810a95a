package entitlements

import (
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/accessradar/accessradar/app/models"
	"github.com/accessradar/accessradar/internal/pkg/apperrors"
)

// Purchase categories carried in webhook custom data.
const (
	PurchaseAudit      = "audit"
	PurchaseMonitoring = "monitoring"
)

// Service mutates entitlement state. Every decrement and consume runs as a
// predicate-scoped UPDATE so concurrent requests cannot double-spend.
type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// Load returns the entitlement snapshot for a user, creating the default
// free-plan row on first contact.
func (s *Service) Load(userID uint) (Snapshot, error) {
	ent, err := models.GetOrCreateAccountEntitlement(s.db, userID)
	if err != nil {
		return Snapshot{}, &apperrors.PersistenceError{Op: "load entitlement", Err: err}
	}
	return SnapshotOf(ent), nil
}

// ConsumeFreeScan marks the one-time free scan as used. The predicate makes
// the consume idempotent under races, losing the race is not an error here
// because a free scan already ran either way.
func (s *Service) ConsumeFreeScan(userID uint) error {
	err := s.db.Model(&models.AccountEntitlement{}).
		Where("user_id = ? AND free_scan_used = ?", userID, false).
		Update("free_scan_used", true).Error
	if err != nil {
		return &apperrors.PersistenceError{Op: "consume free scan", Err: err}
	}
	return nil
}

// DebitScanCredit spends one credit and records that a paid scan completed.
// A zero-row update means a concurrent request spent the last credit first.
func (s *Service) DebitScanCredit(userID uint) error {
	res := s.db.Model(&models.AccountEntitlement{}).
		Where("user_id = ? AND scan_credits > 0", userID).
		Updates(map[string]any{
			"scan_credits":        gorm.Expr("scan_credits - 1"),
			"paid_scan_completed": true,
		})
	if res.Error != nil {
		return &apperrors.PersistenceError{Op: "debit scan credit", Err: res.Error}
	}
	if res.RowsAffected == 0 {
		return &apperrors.EntitlementError{
			Code:   apperrors.EntitlementNoCredits,
			Reason: "no scan credits remaining",
		}
	}
	return nil
}

// ApplyPurchase grants the entitlements of a completed order.
func (s *Service) ApplyPurchase(userID uint, purchaseType, tier string) error {
	tier = NormalizeTier(tier)
	ent, err := models.GetOrCreateAccountEntitlement(s.db, userID)
	if err != nil {
		return &apperrors.PersistenceError{Op: "load entitlement", Err: err}
	}

	switch purchaseType {
	case PurchaseMonitoring:
		var buyer models.User
		if uerr := s.db.Select("role").First(&buyer, userID).Error; uerr != nil {
			return &apperrors.PersistenceError{Op: "load buyer", Err: uerr}
		}
		if !monitoringPrerequisiteMet(buyer.Role, SnapshotOf(ent)) {
			return &apperrors.EntitlementError{
				Code:   apperrors.EntitlementPrerequisiteMissing,
				Reason: "a completed paid scan is required before activating monitoring",
			}
		}
		err = s.db.Model(&models.AccountEntitlement{}).
			Where("user_id = ?", userID).
			Updates(monitoringPurchaseUpdates(tier)).Error
	default:
		err = s.db.Model(&models.AccountEntitlement{}).
			Where("user_id = ?", userID).
			Updates(auditPurchaseUpdates(tier)).Error
		if err == nil {
			s.unlockLatestFreeAudit(userID)
		}
	}
	if err != nil {
		return &apperrors.PersistenceError{Op: "apply purchase", Err: err}
	}
	log.Infof("entitlements: applied %s purchase tier=%s user=%d", purchaseType, tier, userID)
	return nil
}

// monitoringPrerequisiteMet mirrors the activation rule: admins may always
// buy monitoring, everyone else needs a completed paid scan first.
func monitoringPrerequisiteMet(role string, snap Snapshot) bool {
	return role == models.ROLE_ADMIN || snap.PaidScanCompleted
}

// monitoringPurchaseUpdates is the column set a monitoring order writes. A
// null monitoring_until means the subscription runs until refunded.
func monitoringPurchaseUpdates(tier string) map[string]any {
	limits := MonitoringLimitsForTier(tier)
	return map[string]any{
		"monitoring_active":        true,
		"monitoring_tier":          tier,
		"monitoring_until":         nil,
		"monitoring_domains_limit": limits.Domains,
		"monitoring_monthly_runs":  limits.MonthlyRuns,
	}
}

// auditPurchaseUpdates is the column set an audit credit order writes.
func auditPurchaseUpdates(tier string) map[string]any {
	return map[string]any{
		"plan":         models.PlanPaid,
		"audit_tier":   tier,
		"scan_credits": gorm.Expr("scan_credits + ?", ScanCreditsForTier(tier)),
	}
}

// unlockLatestFreeAudit upgrades the buyer's most recent free audit to paid
// so the already-run report opens fully after the purchase. Best effort, a
// missing free audit is not an error.
func (s *Service) unlockLatestFreeAudit(userID uint) {
	var latest models.Audit
	err := s.db.Where("user_id = ? AND kind = ?", userID, models.AuditKindFree).
		Order("created_at DESC").
		First(&latest).Error
	if err != nil {
		if err != gorm.ErrRecordNotFound {
			log.Warnf("entitlements: lookup free audit for user %d: %v", userID, err)
		}
		return
	}
	if err := s.db.Model(&models.Audit{}).
		Where("id = ?", latest.ID).
		Update("kind", models.AuditKindPaid).Error; err != nil {
		log.Warnf("entitlements: unlock audit %d: %v", latest.ID, err)
		return
	}
	// The unlocked audit counts as the completed paid scan monitoring needs.
	if err := s.db.Model(&models.AccountEntitlement{}).
		Where("user_id = ? AND paid_scan_completed = ?", userID, false).
		Update("paid_scan_completed", true).Error; err != nil {
		log.Warnf("entitlements: mark paid scan completed for user %d: %v", userID, err)
	}
}

// ApplyRefund reverses a purchase. Credits clamp at zero, the plan drops
// back to free only when no credits remain. Monitoring refunds deactivate
// the package but completed runs stay visible.
func (s *Service) ApplyRefund(userID uint, purchaseType, tier string) error {
	tier = NormalizeTier(tier)

	switch purchaseType {
	case PurchaseMonitoring:
		err := s.db.Model(&models.AccountEntitlement{}).
			Where("user_id = ?", userID).
			Updates(map[string]any{
				"monitoring_active":        false,
				"monitoring_tier":          models.TierNone,
				"monitoring_until":         nil,
				"monitoring_domains_limit": 0,
				"monitoring_monthly_runs":  0,
			}).Error
		if err != nil {
			return &apperrors.PersistenceError{Op: "apply monitoring refund", Err: err}
		}
		if err := s.db.Model(&models.MonitoringTarget{}).
			Where("user_id = ? AND active = ?", userID, true).
			Update("active", false).Error; err != nil {
			return &apperrors.PersistenceError{Op: "deactivate monitoring targets", Err: err}
		}
	default:
		credits := ScanCreditsForTier(tier)
		err := s.db.Transaction(func(tx *gorm.DB) error {
			ent, err := models.GetOrCreateAccountEntitlement(tx, userID)
			if err != nil {
				return err
			}
			remaining := ent.ScanCredits - credits
			if remaining < 0 {
				remaining = 0
			}
			updates := map[string]any{"scan_credits": remaining}
			if remaining == 0 {
				updates["plan"] = models.PlanFree
				updates["audit_tier"] = models.TierNone
			}
			return tx.Model(&models.AccountEntitlement{}).
				Where("user_id = ?", userID).
				Updates(updates).Error
		})
		if err != nil {
			return &apperrors.PersistenceError{Op: "apply audit refund", Err: err}
		}
	}
	log.Infof("entitlements: applied %s refund tier=%s user=%d", purchaseType, tier, userID)
	return nil
}
