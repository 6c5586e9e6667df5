package billing

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Event is one parsed provider lifecycle event. Exactly one of the object
// fields is set, matching Type.
type Event struct {
	ID           string
	Type         string
	Subscription *ProviderSubscription
	Checkout     *CheckoutSession
	Invoice      *Invoice
}

// expandableID unmarshals Stripe fields that arrive either as a bare id
// string or as an expanded object with an "id" key.
type expandableID string

func (e *expandableID) UnmarshalJSON(data []byte) error {
	if len(data) == 0 || string(data) == "null" {
		*e = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*e = expandableID(s)
		return nil
	}
	var obj struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	*e = expandableID(obj.ID)
	return nil
}

// ParseEvent decodes a raw webhook payload into an Event. Unhandled event
// types still parse (ID and Type are filled) so the boundary can acknowledge
// them; only malformed JSON is an error.
func ParseEvent(payload []byte) (*Event, error) {
	var envelope struct {
		ID   string `json:"id"`
		Type string `json:"type"`
		Data struct {
			Object json.RawMessage `json:"object"`
		} `json:"data"`
	}
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return nil, fmt.Errorf("invalid event payload: %w", err)
	}
	if strings.TrimSpace(envelope.Type) == "" {
		return nil, errors.New("event payload missing type")
	}

	ev := &Event{ID: envelope.ID, Type: envelope.Type}

	switch envelope.Type {
	case EventSubscriptionCreated, EventSubscriptionUpdated, EventSubscriptionDeleted:
		var raw struct {
			ID                 string       `json:"id"`
			Customer           expandableID `json:"customer"`
			Status             string       `json:"status"`
			CurrentPeriodStart int64        `json:"current_period_start"`
			CurrentPeriodEnd   int64        `json:"current_period_end"`
			CancelAtPeriodEnd  bool         `json:"cancel_at_period_end"`
		}
		if err := json.Unmarshal(envelope.Data.Object, &raw); err != nil {
			return nil, fmt.Errorf("invalid subscription object: %w", err)
		}
		if raw.ID == "" {
			return nil, errors.New("subscription event missing subscription id")
		}
		ev.Subscription = &ProviderSubscription{
			ID:                 raw.ID,
			CustomerID:         string(raw.Customer),
			Status:             raw.Status,
			CurrentPeriodStart: raw.CurrentPeriodStart,
			CurrentPeriodEnd:   raw.CurrentPeriodEnd,
			CancelAtPeriodEnd:  raw.CancelAtPeriodEnd,
		}
	case EventCheckoutCompleted:
		var raw struct {
			ID           string       `json:"id"`
			Customer     expandableID `json:"customer"`
			Subscription expandableID `json:"subscription"`
		}
		if err := json.Unmarshal(envelope.Data.Object, &raw); err != nil {
			return nil, fmt.Errorf("invalid checkout session object: %w", err)
		}
		ev.Checkout = &CheckoutSession{
			ID:             raw.ID,
			CustomerID:     string(raw.Customer),
			SubscriptionID: string(raw.Subscription),
		}
	case EventInvoicePaid:
		var raw struct {
			ID                string       `json:"id"`
			Customer          expandableID `json:"customer"`
			Subscription      expandableID `json:"subscription"`
			AmountPaid        int64        `json:"amount_paid"`
			Currency          string       `json:"currency"`
			PaymentIntent     expandableID `json:"payment_intent"`
			PeriodStart       int64        `json:"period_start"`
			PeriodEnd         int64        `json:"period_end"`
			StatusTransitions struct {
				PaidAt int64 `json:"paid_at"`
			} `json:"status_transitions"`
		}
		if err := json.Unmarshal(envelope.Data.Object, &raw); err != nil {
			return nil, fmt.Errorf("invalid invoice object: %w", err)
		}
		ev.Invoice = &Invoice{
			ID:              raw.ID,
			CustomerID:      string(raw.Customer),
			SubscriptionID:  string(raw.Subscription),
			AmountPaid:      raw.AmountPaid,
			Currency:        raw.Currency,
			PaymentIntentID: string(raw.PaymentIntent),
			PeriodStart:     raw.PeriodStart,
			PeriodEnd:       raw.PeriodEnd,
			PaidAt:          raw.StatusTransitions.PaidAt,
		}
	}

	return ev, nil
}

// IsHandledEventType reports whether the reconciler acts on this event type.
func IsHandledEventType(eventType string) bool {
	switch eventType {
	case EventSubscriptionCreated, EventSubscriptionUpdated, EventSubscriptionDeleted,
		EventCheckoutCompleted, EventInvoicePaid:
		return true
	default:
		return false
	}
}
