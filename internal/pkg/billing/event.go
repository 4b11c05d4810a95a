package billing

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Webhook event types that change entitlement state. Everything else is
// acknowledged and ignored.
const (
	EventOrderCreated  = "order_created"
	EventOrderRefunded = "order_refunded"
)

// Event is the normalized view of a provider webhook payload.
type Event struct {
	ProviderEventID string
	EventType       string
	UserID          uint
	UserEmail       string
	PurchaseType    string
	PurchaseTier    string
	VariantID       int64
}

// IsEntitlementEvent reports whether this event type mutates entitlements.
func (e *Event) IsEntitlementEvent() bool {
	return e.EventType == EventOrderCreated || e.EventType == EventOrderRefunded
}

type webhookPayload struct {
	Meta struct {
		EventName  string `json:"event_name"`
		CustomData struct {
			UserID       string `json:"user_id"`
			PurchaseType string `json:"purchase_type"`
			PurchaseTier string `json:"purchase_tier"`
		} `json:"custom_data"`
	} `json:"meta"`
	Data struct {
		ID         string `json:"id"`
		Attributes struct {
			UserEmail      string `json:"user_email"`
			FirstOrderItem struct {
				VariantID json.Number `json:"variant_id"`
			} `json:"first_order_item"`
			VariantID json.Number `json:"variant_id"`
		} `json:"attributes"`
	} `json:"data"`
}

// ParseEvent decodes a raw webhook body into a normalized event. The order id
// is combined with the event name so a created/refunded pair for the same
// order dedupes as two distinct events.
func ParseEvent(body []byte) (*Event, error) {
	var p webhookPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("decode webhook payload: %w", err)
	}

	eventName := strings.TrimSpace(p.Meta.EventName)
	if eventName == "" {
		return nil, fmt.Errorf("webhook payload missing event name")
	}
	orderID := strings.TrimSpace(p.Data.ID)
	if orderID == "" {
		return nil, fmt.Errorf("webhook payload missing order id")
	}

	ev := &Event{
		ProviderEventID: eventName + ":" + orderID,
		EventType:       eventName,
		UserEmail:       strings.TrimSpace(p.Data.Attributes.UserEmail),
		PurchaseType:    strings.ToLower(strings.TrimSpace(p.Meta.CustomData.PurchaseType)),
		PurchaseTier:    strings.ToLower(strings.TrimSpace(p.Meta.CustomData.PurchaseTier)),
	}

	if raw := strings.TrimSpace(p.Meta.CustomData.UserID); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid user_id in custom data: %w", err)
		}
		ev.UserID = uint(id)
	}

	// Variant id shows up in two places depending on provider payload
	// version, the first order item wins.
	for _, candidate := range []json.Number{p.Data.Attributes.FirstOrderItem.VariantID, p.Data.Attributes.VariantID} {
		if candidate == "" {
			continue
		}
		if v, err := candidate.Int64(); err == nil && v > 0 {
			ev.VariantID = v
			break
		}
	}

	return ev, nil
}
