package billing

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/accessradar/accessradar/app/models"
	"github.com/accessradar/accessradar/internal/pkg/apperrors"
	"github.com/accessradar/accessradar/internal/pkg/entitlements"
)

// Entitler is the slice of the entitlement service the webhook pipeline needs.
type Entitler interface {
	ApplyPurchase(userID uint, purchaseType, tier string) error
	ApplyRefund(userID uint, purchaseType, tier string) error
}

// Service turns verified webhook events into entitlement changes.
type Service struct {
	repo     Repository
	entitler Entitler
	variants *VariantMapping
}

func NewService(repo Repository, entitler Entitler, variants *VariantMapping) *Service {
	return &Service{repo: repo, entitler: entitler, variants: variants}
}

// NewServiceFromDB wires the service against a GORM handle with the env
// variant mapping.
func NewServiceFromDB(db *gorm.DB) *Service {
	return NewService(NewRepository(db), entitlements.NewService(db), LoadVariantMapping())
}

// HandleWebhook records the event idempotently and, when this delivery is the
// first, processes it. Redeliveries and non-entitlement event types are
// acknowledged without side effects.
func (s *Service) HandleWebhook(ev *Event, rawBody []byte, signatureValid bool) error {
	record := &models.BillingWebhookEvent{
		Provider:        models.BillingProviderLemon,
		ProviderEventID: ev.ProviderEventID,
		EventType:       ev.EventType,
		PayloadJSON:     string(rawBody),
		SignatureValid:  signatureValid,
	}
	created, stored, err := s.repo.CreateWebhookEventIfNotExists(record)
	if err != nil {
		return fmt.Errorf("record webhook event: %w", err)
	}
	if !created {
		log.Infof("billing: duplicate webhook delivery %s, skipping", ev.ProviderEventID)
		return nil
	}

	if !ev.IsEntitlementEvent() {
		if err := s.repo.MarkWebhookProcessed(stored.ID, ""); err != nil {
			log.Warnf("billing: failed to mark event %d processed: %v", stored.ID, err)
		}
		return nil
	}

	procErr := s.processEvent(ev)
	msg := ""
	if procErr != nil {
		msg = procErr.Error()
		var ee *apperrors.EntitlementError
		if errors.As(procErr, &ee) {
			// The buyer is not eligible, a redelivery would not change that.
			log.Warnf("billing: event %s skipped: %v", ev.ProviderEventID, procErr)
			procErr = nil
		}
	}
	if err := s.repo.MarkWebhookProcessed(stored.ID, msg); err != nil {
		log.Warnf("billing: failed to mark event %d processed: %v", stored.ID, err)
	}
	return procErr
}

func (s *Service) processEvent(ev *Event) error {
	userID, err := s.resolveUser(ev)
	if err != nil {
		return err
	}

	purchaseType, tier := ev.PurchaseType, ev.PurchaseTier
	if purchaseType == "" {
		purchaseType, tier = s.variants.Resolve(ev.VariantID)
	}

	switch ev.EventType {
	case EventOrderCreated:
		return s.entitler.ApplyPurchase(userID, purchaseType, tier)
	case EventOrderRefunded:
		return s.entitler.ApplyRefund(userID, purchaseType, tier)
	default:
		return nil
	}
}

// resolveUser prefers the user id carried in checkout custom data and falls
// back to the purchaser email.
func (s *Service) resolveUser(ev *Event) (uint, error) {
	if ev.UserID > 0 {
		return ev.UserID, nil
	}
	email := strings.TrimSpace(ev.UserEmail)
	if email == "" {
		return 0, fmt.Errorf("event %s carries neither user id nor email", ev.ProviderEventID)
	}
	userID, err := s.repo.FindUserIDByEmail(email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, fmt.Errorf("no account matches purchaser email for event %s", ev.ProviderEventID)
		}
		return 0, fmt.Errorf("resolve purchaser: %w", err)
	}
	return userID, nil
}
