package billing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/accessradar/accessradar/app/models"
	"github.com/accessradar/accessradar/internal/pkg/apperrors"
	"github.com/accessradar/accessradar/internal/pkg/entitlements"
)

func signBody(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestVerifyWebhookSignature(t *testing.T) {
	body := []byte(`{"meta":{"event_name":"order_created"}}`)
	secret := "whsec_test"
	sig := signBody(secret, body)

	assert.True(t, VerifyWebhookSignature(body, sig, secret))
	assert.True(t, VerifyWebhookSignature(body, "  "+sig+"  ", secret))
	assert.False(t, VerifyWebhookSignature(body, sig, "other-secret"))
	assert.False(t, VerifyWebhookSignature([]byte("tampered"), sig, secret))
	assert.False(t, VerifyWebhookSignature(body, "", secret))
	assert.False(t, VerifyWebhookSignature(body, sig, ""))
	assert.False(t, VerifyWebhookSignature(body, "not-hex!", secret))
}

func TestParseEvent(t *testing.T) {
	body := []byte(`{
		"meta": {
			"event_name": "order_created",
			"custom_data": {"user_id": "42", "purchase_type": "audit", "purchase_tier": "pro"}
		},
		"data": {
			"id": "9001",
			"attributes": {
				"user_email": "buyer@example.com",
				"first_order_item": {"variant_id": 555}
			}
		}
	}`)

	ev, err := ParseEvent(body)
	require.NoError(t, err)
	assert.Equal(t, "order_created:9001", ev.ProviderEventID)
	assert.Equal(t, EventOrderCreated, ev.EventType)
	assert.Equal(t, uint(42), ev.UserID)
	assert.Equal(t, "buyer@example.com", ev.UserEmail)
	assert.Equal(t, "audit", ev.PurchaseType)
	assert.Equal(t, "pro", ev.PurchaseTier)
	assert.Equal(t, int64(555), ev.VariantID)
	assert.True(t, ev.IsEntitlementEvent())
}

func TestParseEventMissingFields(t *testing.T) {
	_, err := ParseEvent([]byte(`{"data":{"id":"1"}}`))
	assert.Error(t, err, "missing event name")

	_, err = ParseEvent([]byte(`{"meta":{"event_name":"order_created"}}`))
	assert.Error(t, err, "missing order id")

	_, err = ParseEvent([]byte(`not json`))
	assert.Error(t, err)
}

func TestParseEventNonEntitlementType(t *testing.T) {
	ev, err := ParseEvent([]byte(`{"meta":{"event_name":"subscription_updated"},"data":{"id":"7"}}`))
	require.NoError(t, err)
	assert.False(t, ev.IsEntitlementEvent())
}

func TestVariantMappingResolve(t *testing.T) {
	m := &VariantMapping{
		auditBasic:      map[int64]struct{}{100: {}},
		auditPro:        map[int64]struct{}{101: {}},
		monitoringBasic: map[int64]struct{}{200: {}},
		monitoringPro:   map[int64]struct{}{201: {}},
	}

	pt, tier := m.Resolve(101)
	assert.Equal(t, entitlements.PurchaseAudit, pt)
	assert.Equal(t, models.TierPro, tier)

	pt, tier = m.Resolve(200)
	assert.Equal(t, entitlements.PurchaseMonitoring, pt)
	assert.Equal(t, models.TierBasic, tier)

	// Unknown variants default to the basic audit pack.
	pt, tier = m.Resolve(999)
	assert.Equal(t, entitlements.PurchaseAudit, pt)
	assert.Equal(t, models.TierBasic, tier)
}

func TestVariantMappingResolveMonitoringOnlyStore(t *testing.T) {
	m := &VariantMapping{
		auditBasic:      map[int64]struct{}{},
		auditPro:        map[int64]struct{}{},
		monitoringBasic: map[int64]struct{}{200: {}},
		monitoringPro:   map[int64]struct{}{},
	}

	pt, tier := m.Resolve(999)
	assert.Equal(t, entitlements.PurchaseMonitoring, pt)
	assert.Equal(t, models.TierBasic, tier)
}

type fakeRepo struct {
	existing  map[string]uint
	created   []*models.BillingWebhookEvent
	processed map[uint]string
	emailIDs  map[string]uint
	nextID    uint
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		existing:  make(map[string]uint),
		processed: make(map[uint]string),
		emailIDs:  make(map[string]uint),
		nextID:    1,
	}
}

func (f *fakeRepo) CreateWebhookEventIfNotExists(event *models.BillingWebhookEvent) (bool, *models.BillingWebhookEvent, error) {
	if id, ok := f.existing[event.ProviderEventID]; ok {
		return false, &models.BillingWebhookEvent{ID: id, ProviderEventID: event.ProviderEventID}, nil
	}
	event.ID = f.nextID
	f.nextID++
	f.existing[event.ProviderEventID] = event.ID
	f.created = append(f.created, event)
	return true, event, nil
}

func (f *fakeRepo) MarkWebhookProcessed(id uint, processingError string) error {
	f.processed[id] = processingError
	return nil
}

func (f *fakeRepo) FindUserIDByEmail(email string) (uint, error) {
	if id, ok := f.emailIDs[email]; ok {
		return id, nil
	}
	return 0, gorm.ErrRecordNotFound
}

type fakeEntitler struct {
	purchases   []string
	refunds     []string
	purchaseErr error
}

func (f *fakeEntitler) ApplyPurchase(userID uint, purchaseType, tier string) error {
	if f.purchaseErr != nil {
		return f.purchaseErr
	}
	f.purchases = append(f.purchases, purchaseType+"/"+tier)
	return nil
}

func (f *fakeEntitler) ApplyRefund(userID uint, purchaseType, tier string) error {
	f.refunds = append(f.refunds, purchaseType+"/"+tier)
	return nil
}

func TestHandleWebhookProcessesOnce(t *testing.T) {
	repo := newFakeRepo()
	ent := &fakeEntitler{}
	svc := NewService(repo, ent, &VariantMapping{})

	ev := &Event{
		ProviderEventID: "order_created:1",
		EventType:       EventOrderCreated,
		UserID:          5,
		PurchaseType:    entitlements.PurchaseAudit,
		PurchaseTier:    models.TierBasic,
	}

	require.NoError(t, svc.HandleWebhook(ev, []byte(`{}`), true))
	require.NoError(t, svc.HandleWebhook(ev, []byte(`{}`), true))

	assert.Len(t, ent.purchases, 1, "redelivery must not reapply the purchase")
	assert.Equal(t, "audit/basic", ent.purchases[0])
	assert.Equal(t, "", repo.processed[1])
}

func TestHandleWebhookRefund(t *testing.T) {
	repo := newFakeRepo()
	ent := &fakeEntitler{}
	svc := NewService(repo, ent, &VariantMapping{})

	ev := &Event{
		ProviderEventID: "order_refunded:1",
		EventType:       EventOrderRefunded,
		UserID:          5,
		PurchaseType:    entitlements.PurchaseMonitoring,
		PurchaseTier:    models.TierPro,
	}

	require.NoError(t, svc.HandleWebhook(ev, []byte(`{}`), true))
	assert.Equal(t, []string{"monitoring/pro"}, ent.refunds)
	assert.Empty(t, ent.purchases)
}

func TestHandleWebhookIgnoresOtherEventTypes(t *testing.T) {
	repo := newFakeRepo()
	ent := &fakeEntitler{}
	svc := NewService(repo, ent, &VariantMapping{})

	ev := &Event{ProviderEventID: "subscription_updated:3", EventType: "subscription_updated"}
	require.NoError(t, svc.HandleWebhook(ev, []byte(`{}`), true))
	assert.Empty(t, ent.purchases)
	assert.Empty(t, ent.refunds)
	// Still recorded and marked processed.
	assert.Len(t, repo.created, 1)
	assert.Contains(t, repo.processed, uint(1))
}

func TestHandleWebhookVariantFallback(t *testing.T) {
	repo := newFakeRepo()
	repo.emailIDs["buyer@example.com"] = 9
	ent := &fakeEntitler{}
	variants := &VariantMapping{auditPro: map[int64]struct{}{777: {}}}
	svc := NewService(repo, ent, variants)

	ev := &Event{
		ProviderEventID: "order_created:55",
		EventType:       EventOrderCreated,
		UserEmail:       "buyer@example.com",
		VariantID:       777,
	}

	require.NoError(t, svc.HandleWebhook(ev, []byte(`{}`), true))
	assert.Equal(t, []string{"audit/pro"}, ent.purchases)
}

func TestHandleWebhookUnknownVariantStillGrants(t *testing.T) {
	repo := newFakeRepo()
	ent := &fakeEntitler{}
	variants := &VariantMapping{auditPro: map[int64]struct{}{777: {}}}
	svc := NewService(repo, ent, variants)

	ev := &Event{
		ProviderEventID: "order_created:56",
		EventType:       EventOrderCreated,
		UserID:          9,
		VariantID:       31337,
	}

	require.NoError(t, svc.HandleWebhook(ev, []byte(`{}`), true))
	assert.Equal(t, []string{"audit/basic"}, ent.purchases)
}

func TestHandleWebhookIneligiblePurchaseAcknowledged(t *testing.T) {
	repo := newFakeRepo()
	ent := &fakeEntitler{purchaseErr: &apperrors.EntitlementError{
		Code:   apperrors.EntitlementPrerequisiteMissing,
		Reason: "a completed paid scan is required before activating monitoring",
	}}
	svc := NewService(repo, ent, &VariantMapping{})

	ev := &Event{
		ProviderEventID: "order_created:57",
		EventType:       EventOrderCreated,
		UserID:          5,
		PurchaseType:    entitlements.PurchaseMonitoring,
		PurchaseTier:    models.TierBasic,
	}

	// The provider gets a 200, retrying would not make the buyer eligible.
	require.NoError(t, svc.HandleWebhook(ev, []byte(`{}`), true))
	// The skip reason stays on the event row.
	assert.NotEmpty(t, repo.processed[1])
}

func TestHandleWebhookUnresolvableUser(t *testing.T) {
	repo := newFakeRepo()
	ent := &fakeEntitler{}
	svc := NewService(repo, ent, &VariantMapping{})

	ev := &Event{
		ProviderEventID: "order_created:88",
		EventType:       EventOrderCreated,
		PurchaseType:    entitlements.PurchaseAudit,
	}

	err := svc.HandleWebhook(ev, []byte(`{}`), true)
	assert.Error(t, err)
	assert.Empty(t, ent.purchases)
	// The failure is recorded on the event row.
	assert.NotEmpty(t, repo.processed[1])
}
