package billing

import "testing"

func TestParseEvent_SubscriptionUpdated(t *testing.T) {
	raw := []byte(`{
		"id": "evt_123",
		"type": "customer.subscription.updated",
		"data": {
			"object": {
				"id": "sub_123",
				"customer": "cus_456",
				"status": "past_due",
				"current_period_start": 1700000000,
				"current_period_end": 1702592000,
				"cancel_at_period_end": true
			}
		}
	}`)

	ev, err := ParseEvent(raw)
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	if ev.ID != "evt_123" || ev.Type != EventSubscriptionUpdated {
		t.Fatalf("unexpected envelope: id=%q type=%q", ev.ID, ev.Type)
	}
	if ev.Subscription == nil {
		t.Fatalf("expected subscription object")
	}
	if ev.Subscription.ID != "sub_123" || ev.Subscription.CustomerID != "cus_456" {
		t.Fatalf("unexpected ids: sub=%q customer=%q", ev.Subscription.ID, ev.Subscription.CustomerID)
	}
	if ev.Subscription.Status != "past_due" || !ev.Subscription.CancelAtPeriodEnd {
		t.Fatalf("unexpected status fields: %+v", ev.Subscription)
	}
	if ev.Subscription.CurrentPeriodEnd != 1702592000 {
		t.Fatalf("unexpected period end: %d", ev.Subscription.CurrentPeriodEnd)
	}
}

func TestParseEvent_ExpandedObjectReferences(t *testing.T) {
	raw := []byte(`{
		"id": "evt_exp",
		"type": "checkout.session.completed",
		"data": {
			"object": {
				"id": "cs_1",
				"customer": {"id": "cus_9", "email": "machinist@example.com"},
				"subscription": {"id": "sub_9"}
			}
		}
	}`)

	ev, err := ParseEvent(raw)
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	if ev.Checkout == nil {
		t.Fatalf("expected checkout object")
	}
	if ev.Checkout.CustomerID != "cus_9" || ev.Checkout.SubscriptionID != "sub_9" {
		t.Fatalf("expected expanded object ids, got %+v", ev.Checkout)
	}
}

func TestParseEvent_Invoice(t *testing.T) {
	raw := []byte(`{
		"id": "evt_inv",
		"type": "invoice.payment_succeeded",
		"data": {
			"object": {
				"id": "in_1",
				"customer": "cus_1",
				"subscription": "sub_1",
				"amount_paid": 4900,
				"currency": "usd",
				"payment_intent": "pi_1",
				"period_start": 1700000000,
				"period_end": 1702592000,
				"status_transitions": {"paid_at": 1700000100}
			}
		}
	}`)

	ev, err := ParseEvent(raw)
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	if ev.Invoice == nil {
		t.Fatalf("expected invoice object")
	}
	if ev.Invoice.AmountPaid != 4900 || ev.Invoice.PaidAt != 1700000100 {
		t.Fatalf("unexpected invoice fields: %+v", ev.Invoice)
	}
	if ev.Invoice.SubscriptionID != "sub_1" || ev.Invoice.PaymentIntentID != "pi_1" {
		t.Fatalf("unexpected invoice references: %+v", ev.Invoice)
	}
}

func TestParseEvent_UnhandledTypeStillParses(t *testing.T) {
	raw := []byte(`{"id": "evt_x", "type": "customer.updated", "data": {"object": {"id": "cus_1"}}}`)
	ev, err := ParseEvent(raw)
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	if ev.Type != "customer.updated" || ev.Subscription != nil || ev.Invoice != nil || ev.Checkout != nil {
		t.Fatalf("expected bare envelope for unhandled type, got %+v", ev)
	}
	if IsHandledEventType(ev.Type) {
		t.Fatalf("customer.updated should not be a handled type")
	}
}

func TestParseEvent_Malformed(t *testing.T) {
	if _, err := ParseEvent([]byte(`{not json`)); err == nil {
		t.Fatalf("expected error for malformed JSON")
	}
	if _, err := ParseEvent([]byte(`{"id":"evt","data":{}}`)); err == nil {
		t.Fatalf("expected error for missing type")
	}
	if _, err := ParseEvent([]byte(`{"id":"evt","type":"customer.subscription.updated","data":{"object":{"customer":"cus_1"}}}`)); err == nil {
		t.Fatalf("expected error for subscription event without subscription id")
	}
}

func TestIsHandledEventType(t *testing.T) {
	for _, typ := range []string{
		EventSubscriptionCreated, EventSubscriptionUpdated, EventSubscriptionDeleted,
		EventCheckoutCompleted, EventInvoicePaid,
	} {
		if !IsHandledEventType(typ) {
			t.Fatalf("expected %q to be handled", typ)
		}
	}
	for _, typ := range []string{"invoice.payment_failed", "customer.created", ""} {
		if IsHandledEventType(typ) {
			t.Fatalf("expected %q to be unhandled", typ)
		}
	}
}
