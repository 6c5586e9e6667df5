package billing

import (
	"context"
	"errors"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/LeVietHung/CNCademy/app/models"
	"github.com/LeVietHung/CNCademy/internal/pkg/entitlements"
)

type fakeRepo struct {
	subs     map[string]*models.Subscription
	payments map[string]*models.SubscriptionPayment
	events   map[string]*models.BillingWebhookEvent
	nextID   uint
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		subs:     make(map[string]*models.Subscription),
		payments: make(map[string]*models.SubscriptionPayment),
		events:   make(map[string]*models.BillingWebhookEvent),
	}
}

func (r *fakeRepo) UpsertSubscription(sub *models.Subscription) error {
	if existing, ok := r.subs[sub.StripeSubscriptionID]; ok {
		existing.UserID = sub.UserID
		existing.StripeCustomerID = sub.StripeCustomerID
		existing.Status = sub.Status
		existing.CurrentPeriodStart = sub.CurrentPeriodStart
		existing.CurrentPeriodEnd = sub.CurrentPeriodEnd
		existing.CancelAtPeriodEnd = sub.CancelAtPeriodEnd
		existing.UpdatedAt = time.Now()
		*sub = *existing
		return nil
	}
	r.nextID++
	sub.ID = r.nextID
	sub.CreatedAt = time.Now()
	sub.UpdatedAt = sub.CreatedAt
	stored := *sub
	r.subs[sub.StripeSubscriptionID] = &stored
	return nil
}

func (r *fakeRepo) GetSubscriptionByProviderID(id string) (*models.Subscription, error) {
	if sub, ok := r.subs[id]; ok {
		cp := *sub
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeRepo) ListSubscriptionsByUser(userID uint) ([]models.Subscription, error) {
	var out []models.Subscription
	for _, sub := range r.subs {
		if sub.UserID == userID {
			out = append(out, *sub)
		}
	}
	return out, nil
}

func (r *fakeRepo) MostRecentActiveSubscription(userID uint) (*models.Subscription, error) {
	var best *models.Subscription
	for _, sub := range r.subs {
		if sub.UserID != userID || sub.Status != models.SubscriptionStatusActive {
			continue
		}
		if best == nil || sub.UpdatedAt.After(best.UpdatedAt) {
			best = sub
		}
	}
	if best == nil {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *best
	return &cp, nil
}

func (r *fakeRepo) CreatePaymentIfNotExists(p *models.SubscriptionPayment) (bool, error) {
	if _, ok := r.payments[p.StripeInvoiceID]; ok {
		return false, nil
	}
	r.nextID++
	p.ID = r.nextID
	stored := *p
	r.payments[p.StripeInvoiceID] = &stored
	return true, nil
}

func (r *fakeRepo) CreateWebhookEventIfNotExists(event *models.BillingWebhookEvent) (bool, *models.BillingWebhookEvent, error) {
	if stored, ok := r.events[event.ProviderEventID]; ok {
		return false, stored, nil
	}
	r.nextID++
	event.ID = r.nextID
	stored := *event
	r.events[event.ProviderEventID] = &stored
	return true, &stored, nil
}

func (r *fakeRepo) RefreshWebhookSignature(id uint, signatureValid bool) error {
	for _, event := range r.events {
		if event.ID == id {
			event.SignatureValid = signatureValid
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (r *fakeRepo) MarkWebhookProcessed(id uint, processingError string) error {
	for _, event := range r.events {
		if event.ID == id {
			now := time.Now()
			event.ProcessedAt = &now
			event.ProcessingError = processingError
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

type fakeProvider struct {
	customers       map[string]*Customer
	subscriptions   map[string]*ProviderSubscription
	customerSubs    map[string][]string
	metadataUpdates int
	listErr         error
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		customers:     make(map[string]*Customer),
		subscriptions: make(map[string]*ProviderSubscription),
		customerSubs:  make(map[string][]string),
	}
}

func (p *fakeProvider) addCustomer(c *Customer) {
	p.customers[c.ID] = c
}

func (p *fakeProvider) addSubscription(sub *ProviderSubscription) {
	p.subscriptions[sub.ID] = sub
	p.customerSubs[sub.CustomerID] = append(p.customerSubs[sub.CustomerID], sub.ID)
}

func (p *fakeProvider) RetrieveCustomer(_ context.Context, id string) (*Customer, error) {
	if c, ok := p.customers[id]; ok {
		return c, nil
	}
	return nil, errors.New("no such customer: " + id)
}

func (p *fakeProvider) FindCustomerByEmail(_ context.Context, email string) (*Customer, error) {
	if p.listErr != nil {
		return nil, p.listErr
	}
	for _, c := range p.customers {
		if c.Email == email {
			return c, nil
		}
	}
	return nil, nil
}

func (p *fakeProvider) FindCustomerByUserID(_ context.Context, userID string) (*Customer, error) {
	if p.listErr != nil {
		return nil, p.listErr
	}
	for _, c := range p.customers {
		if c.Metadata["user_id"] == userID {
			return c, nil
		}
	}
	return nil, nil
}

func (p *fakeProvider) UpdateCustomerMetadata(_ context.Context, id string, metadata map[string]string) error {
	c, ok := p.customers[id]
	if !ok {
		return errors.New("no such customer: " + id)
	}
	c.Metadata = metadata
	p.metadataUpdates++
	return nil
}

func (p *fakeProvider) CreateCustomer(_ context.Context, email string, metadata map[string]string) (*Customer, error) {
	c := &Customer{ID: "cus_new", Email: email, Metadata: metadata}
	p.customers[c.ID] = c
	return c, nil
}

func (p *fakeProvider) ListSubscriptions(_ context.Context, customerID string) ([]ProviderSubscription, error) {
	if p.listErr != nil {
		return nil, p.listErr
	}
	var out []ProviderSubscription
	for _, id := range p.customerSubs[customerID] {
		out = append(out, *p.subscriptions[id])
	}
	return out, nil
}

func (p *fakeProvider) RetrieveSubscription(_ context.Context, id string) (*ProviderSubscription, error) {
	if sub, ok := p.subscriptions[id]; ok {
		cp := *sub
		return &cp, nil
	}
	return nil, errors.New("no such subscription: " + id)
}

func (p *fakeProvider) CreateCheckoutSession(_ context.Context, in CheckoutSessionInput) (string, error) {
	return "https://checkout.test/session/" + in.CustomerID, nil
}

func subscriptionUpdatedEvent(sub *ProviderSubscription) *Event {
	return &Event{ID: "evt_" + sub.ID, Type: EventSubscriptionUpdated, Subscription: sub}
}

func TestReconcileFromEvent_UpsertIsIdempotent(t *testing.T) {
	repo := newFakeRepo()
	provider := newFakeProvider()
	provider.addCustomer(&Customer{ID: "cus_1", Email: "a@b.c", Metadata: map[string]string{"user_id": "7"}})
	svc := NewService(repo, provider)

	first := &ProviderSubscription{
		ID: "sub_1", CustomerID: "cus_1", Status: "active",
		CurrentPeriodStart: 1700000000, CurrentPeriodEnd: 1702592000,
	}
	if err := svc.ReconcileFromEvent(context.Background(), subscriptionUpdatedEvent(first)); err != nil {
		t.Fatalf("first apply failed: %v", err)
	}

	second := &ProviderSubscription{
		ID: "sub_1", CustomerID: "cus_1", Status: "past_due",
		CurrentPeriodStart: 1702592000, CurrentPeriodEnd: 1705270400,
		CancelAtPeriodEnd: true,
	}
	if err := svc.ReconcileFromEvent(context.Background(), subscriptionUpdatedEvent(second)); err != nil {
		t.Fatalf("second apply failed: %v", err)
	}

	if len(repo.subs) != 1 {
		t.Fatalf("expected exactly one record, got %d", len(repo.subs))
	}
	stored := repo.subs["sub_1"]
	if stored.Status != models.SubscriptionStatusPastDue {
		t.Fatalf("expected fields from the second application, got status %q", stored.Status)
	}
	if !stored.CancelAtPeriodEnd || stored.CurrentPeriodEnd.Unix() != 1705270400 {
		t.Fatalf("expected second event's period fields, got %+v", stored)
	}
	if stored.UserID != 7 {
		t.Fatalf("expected user 7, got %d", stored.UserID)
	}
}

func TestReconcileFromEvent_NoUserIDNoWrite(t *testing.T) {
	repo := newFakeRepo()
	provider := newFakeProvider()
	provider.addCustomer(&Customer{ID: "cus_1", Email: "a@b.c", Metadata: map[string]string{"plan": "pro"}})
	provider.addSubscription(&ProviderSubscription{ID: "sub_1", CustomerID: "cus_1", Status: "active"})
	svc := NewService(repo, provider)

	ev := &Event{
		ID:   "evt_checkout",
		Type: EventCheckoutCompleted,
		Checkout: &CheckoutSession{
			ID: "cs_1", CustomerID: "cus_1", SubscriptionID: "sub_1",
		},
	}
	if err := svc.ReconcileFromEvent(context.Background(), ev); err != nil {
		t.Fatalf("expected soft no-op, got error: %v", err)
	}
	if len(repo.subs) != 0 {
		t.Fatalf("expected zero subscription writes, got %d", len(repo.subs))
	}
}

func TestReconcileFromEvent_PaymentRequiresSubscription(t *testing.T) {
	repo := newFakeRepo()
	provider := newFakeProvider()
	provider.addCustomer(&Customer{ID: "cus_1", Email: "a@b.c", Metadata: map[string]string{"user_id": "7"}})
	svc := NewService(repo, provider)

	invoice := &Event{
		ID:   "evt_inv",
		Type: EventInvoicePaid,
		Invoice: &Invoice{
			ID: "in_1", CustomerID: "cus_1", SubscriptionID: "sub_1",
			AmountPaid: 4900, Currency: "usd", PaidAt: 1700000100,
		},
	}

	// No local subscription yet: must not synthesize one from a payment.
	if err := svc.ReconcileFromEvent(context.Background(), invoice); err != nil {
		t.Fatalf("expected soft no-op, got error: %v", err)
	}
	if len(repo.payments) != 0 {
		t.Fatalf("expected zero payment writes, got %d", len(repo.payments))
	}

	sub := &ProviderSubscription{ID: "sub_1", CustomerID: "cus_1", Status: "active"}
	if err := svc.ReconcileFromEvent(context.Background(), subscriptionUpdatedEvent(sub)); err != nil {
		t.Fatalf("subscription sync failed: %v", err)
	}

	if err := svc.ReconcileFromEvent(context.Background(), invoice); err != nil {
		t.Fatalf("payment apply failed: %v", err)
	}
	if len(repo.payments) != 1 {
		t.Fatalf("expected one payment, got %d", len(repo.payments))
	}
	payment := repo.payments["in_1"]
	if payment.AmountPaid != 49.00 {
		t.Fatalf("expected minor units converted to 49.00, got %v", payment.AmountPaid)
	}
	if payment.UserID != 7 || payment.SubscriptionID != repo.subs["sub_1"].ID {
		t.Fatalf("payment not tied to the local record: %+v", payment)
	}

	// Re-delivery of the same invoice must not duplicate the ledger row.
	if err := svc.ReconcileFromEvent(context.Background(), invoice); err != nil {
		t.Fatalf("re-delivery failed: %v", err)
	}
	if len(repo.payments) != 1 {
		t.Fatalf("expected payment ledger to stay at one row, got %d", len(repo.payments))
	}
}

func TestReconcileFromEvent_DeletedForcesCancelled(t *testing.T) {
	repo := newFakeRepo()
	provider := newFakeProvider()
	provider.addCustomer(&Customer{ID: "cus_1", Email: "a@b.c", Metadata: map[string]string{"user_id": "7"}})
	svc := NewService(repo, provider)

	sub := &ProviderSubscription{ID: "sub_1", CustomerID: "cus_1", Status: "past_due"}
	if err := svc.ReconcileFromEvent(context.Background(), subscriptionUpdatedEvent(sub)); err != nil {
		t.Fatalf("subscription sync failed: %v", err)
	}

	deleted := &Event{
		ID:           "evt_del",
		Type:         EventSubscriptionDeleted,
		Subscription: &ProviderSubscription{ID: "sub_1", CustomerID: "cus_1", Status: "canceled"},
	}
	if err := svc.ReconcileFromEvent(context.Background(), deleted); err != nil {
		t.Fatalf("deleted apply failed: %v", err)
	}
	if got := repo.subs["sub_1"].Status; got != models.SubscriptionStatusCancelled {
		t.Fatalf("expected cancelled, got %q", got)
	}

	// Deleting an unknown subscription is a no-op, not an error.
	unknown := &Event{
		ID:           "evt_del2",
		Type:         EventSubscriptionDeleted,
		Subscription: &ProviderSubscription{ID: "sub_missing"},
	}
	if err := svc.ReconcileFromEvent(context.Background(), unknown); err != nil {
		t.Fatalf("expected no-op for unknown subscription, got %v", err)
	}
	if len(repo.subs) != 1 {
		t.Fatalf("expected no new records, got %d", len(repo.subs))
	}
}

func TestReconcile_EndToEndEntitlement(t *testing.T) {
	repo := newFakeRepo()
	provider := newFakeProvider()
	provider.addCustomer(&Customer{ID: "cus_1", Email: "a@b.c", Metadata: map[string]string{"user_id": "7"}})

	now := time.Now()
	provider.addSubscription(&ProviderSubscription{
		ID: "sub_1", CustomerID: "cus_1", Status: "active",
		CurrentPeriodStart: now.Unix(),
		CurrentPeriodEnd:   now.Add(30 * 24 * time.Hour).Unix(),
	})
	svc := NewService(repo, provider)

	checkout := &Event{
		ID:       "evt_cs",
		Type:     EventCheckoutCompleted,
		Checkout: &CheckoutSession{ID: "cs_1", CustomerID: "cus_1", SubscriptionID: "sub_1"},
	}
	if err := svc.ReconcileFromEvent(context.Background(), checkout); err != nil {
		t.Fatalf("checkout apply failed: %v", err)
	}

	active, err := repo.MostRecentActiveSubscription(7)
	if err != nil {
		t.Fatalf("expected an active record after checkout: %v", err)
	}
	if !entitlements.IsEntitled(active, now) {
		t.Fatalf("expected user to be entitled after checkout")
	}

	deleted := &Event{
		ID:           "evt_del",
		Type:         EventSubscriptionDeleted,
		Subscription: &ProviderSubscription{ID: "sub_1"},
	}
	if err := svc.ReconcileFromEvent(context.Background(), deleted); err != nil {
		t.Fatalf("deleted apply failed: %v", err)
	}
	if _, err := repo.MostRecentActiveSubscription(7); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("expected no active record after deletion, got %v", err)
	}
}

func TestReconcileForUser_ByEmail(t *testing.T) {
	repo := newFakeRepo()
	provider := newFakeProvider()
	provider.addCustomer(&Customer{
		ID: "cus_1", Email: "machinist@example.com",
		Metadata: map[string]string{"source": "landing_page"},
	})
	provider.addSubscription(&ProviderSubscription{ID: "sub_1", CustomerID: "cus_1", Status: "active"})
	provider.addSubscription(&ProviderSubscription{ID: "sub_2", CustomerID: "cus_1", Status: "canceled"})
	svc := NewService(repo, provider)

	res := svc.ReconcileForUser(context.Background(), 7, "machinist@example.com")
	if !res.Success {
		t.Fatalf("expected success, got %v", res.Err)
	}
	if len(repo.subs) != 2 {
		t.Fatalf("expected both subscriptions synced, got %d", len(repo.subs))
	}
	if repo.subs["sub_1"].Status != models.SubscriptionStatusActive {
		t.Fatalf("unexpected status for sub_1: %q", repo.subs["sub_1"].Status)
	}
	if repo.subs["sub_2"].Status != models.SubscriptionStatusCancelled {
		t.Fatalf("unexpected status for sub_2: %q", repo.subs["sub_2"].Status)
	}

	// One active record among several is enough for the entitlement verdict.
	active, err := repo.MostRecentActiveSubscription(7)
	if err != nil {
		t.Fatalf("expected an active record: %v", err)
	}
	if active.StripeSubscriptionID != "sub_1" {
		t.Fatalf("expected sub_1 to be the active record, got %q", active.StripeSubscriptionID)
	}
	if !entitlements.IsEntitled(active, time.Now()) {
		t.Fatalf("one active and one cancelled record must still entitle the user")
	}

	// Metadata linkage must be repaired while preserving existing keys.
	if provider.metadataUpdates != 1 {
		t.Fatalf("expected one metadata patch, got %d", provider.metadataUpdates)
	}
	customer := provider.customers["cus_1"]
	if customer.Metadata["user_id"] != "7" || customer.Metadata["source"] != "landing_page" {
		t.Fatalf("metadata patch lost keys: %v", customer.Metadata)
	}
}

func TestReconcileForUser_MetadataFallback(t *testing.T) {
	repo := newFakeRepo()
	provider := newFakeProvider()
	// Purchasing email differs from login email; only the metadata links them.
	provider.addCustomer(&Customer{
		ID: "cus_1", Email: "old-shop-address@example.com",
		Metadata: map[string]string{"user_id": "7"},
	})
	provider.addSubscription(&ProviderSubscription{ID: "sub_1", CustomerID: "cus_1", Status: "active"})
	svc := NewService(repo, provider)

	res := svc.ReconcileForUser(context.Background(), 7, "login@example.com")
	if !res.Success {
		t.Fatalf("expected success, got %v", res.Err)
	}
	if len(repo.subs) != 1 {
		t.Fatalf("expected subscription synced via metadata fallback, got %d", len(repo.subs))
	}
	if provider.metadataUpdates != 0 {
		t.Fatalf("metadata already linked, expected no patch, got %d", provider.metadataUpdates)
	}
}

func TestReconcileForUser_NeverPaid(t *testing.T) {
	repo := newFakeRepo()
	provider := newFakeProvider()
	svc := NewService(repo, provider)

	res := svc.ReconcileForUser(context.Background(), 7, "nobody@example.com")
	if !res.Success {
		t.Fatalf("no customer must be success-with-no-changes, got %v", res.Err)
	}
	if len(repo.subs) != 0 {
		t.Fatalf("expected no writes, got %d", len(repo.subs))
	}
}

func TestReconcileForUser_ProviderErrorIsSoft(t *testing.T) {
	repo := newFakeRepo()
	provider := newFakeProvider()
	provider.listErr = errors.New("rate limited")
	svc := NewService(repo, provider)

	res := svc.ReconcileForUser(context.Background(), 7, "machinist@example.com")
	if res.Success {
		t.Fatalf("expected soft failure")
	}
	if res.Err == nil {
		t.Fatalf("expected error details in the result")
	}
}

func TestRecordWebhookEvent_Dedupe(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, newFakeProvider())

	in := WebhookEventInput{
		Provider:        models.BillingProviderStripe,
		ProviderEventID: "evt_1",
		EventType:       EventSubscriptionUpdated,
		PayloadJSON:     `{"id":"evt_1"}`,
		SignatureValid:  true,
	}
	created, stored, err := svc.RecordWebhookEvent(context.Background(), in)
	if err != nil || !created || stored == nil {
		t.Fatalf("expected first insert to create: created=%v err=%v", created, err)
	}
	created, _, err = svc.RecordWebhookEvent(context.Background(), in)
	if err != nil || created {
		t.Fatalf("expected duplicate delivery to dedupe: created=%v err=%v", created, err)
	}
}

func TestWebhookRetryAfterFailedDelivery(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, newFakeProvider())

	// First delivery arrives while the webhook secret is misconfigured: the
	// audit row is written with signature_valid=false and a recorded error.
	in := WebhookEventInput{
		Provider:        models.BillingProviderStripe,
		ProviderEventID: "evt_1",
		EventType:       EventInvoicePaid,
		PayloadJSON:     `{"id":"evt_1"}`,
		SignatureValid:  false,
	}
	created, stored, err := svc.RecordWebhookEvent(context.Background(), in)
	if err != nil || !created {
		t.Fatalf("first insert: created=%v err=%v", created, err)
	}
	if err := svc.MarkWebhookProcessed(context.Background(), stored.ID, errors.New("invalid webhook signature")); err != nil {
		t.Fatalf("mark failed: %v", err)
	}

	// The provider retries the same event id, now validly signed. The stored
	// row must not absorb the retry.
	in.SignatureValid = true
	created, stored, err = svc.RecordWebhookEvent(context.Background(), in)
	if err != nil || created {
		t.Fatalf("retry insert: created=%v err=%v", created, err)
	}
	if !ShouldReprocessWebhookEvent(stored) {
		t.Fatal("retry of a failed delivery must be reprocessed, not acknowledged")
	}
	if err := svc.RefreshWebhookSignature(context.Background(), stored.ID, true); err != nil {
		t.Fatalf("signature refresh failed: %v", err)
	}
	if err := svc.MarkWebhookProcessed(context.Background(), stored.ID, nil); err != nil {
		t.Fatalf("mark failed: %v", err)
	}

	// A cleanly processed row settles the event id for good.
	created, stored, err = svc.RecordWebhookEvent(context.Background(), in)
	if err != nil || created {
		t.Fatalf("third delivery: created=%v err=%v", created, err)
	}
	if ShouldReprocessWebhookEvent(stored) {
		t.Fatal("cleanly processed event must dedupe")
	}
}

func TestShouldReprocessWebhookEvent(t *testing.T) {
	now := time.Now()
	cases := []struct {
		name   string
		event  *models.BillingWebhookEvent
		expect bool
	}{
		{"no stored row", nil, true},
		{"signature never verified", &models.BillingWebhookEvent{SignatureValid: false, ProcessedAt: &now}, true},
		{"recorded but never processed", &models.BillingWebhookEvent{SignatureValid: true}, true},
		{"transient reconcile failure", &models.BillingWebhookEvent{SignatureValid: true, ProcessedAt: &now, ProcessingError: "rate limited"}, true},
		{"processed clean", &models.BillingWebhookEvent{SignatureValid: true, ProcessedAt: &now}, false},
	}
	for _, tc := range cases {
		if got := ShouldReprocessWebhookEvent(tc.event); got != tc.expect {
			t.Errorf("%s: expected %v, got %v", tc.name, tc.expect, got)
		}
	}
}

func TestEnsureCustomerForUser(t *testing.T) {
	repo := newFakeRepo()
	provider := newFakeProvider()
	svc := NewService(repo, provider)

	customer, err := svc.EnsureCustomerForUser(context.Background(), 7, "machinist@example.com")
	if err != nil {
		t.Fatalf("expected customer creation, got %v", err)
	}
	if customer.Metadata["user_id"] != "7" {
		t.Fatalf("new customer missing user_id linkage: %v", customer.Metadata)
	}

	again, err := svc.EnsureCustomerForUser(context.Background(), 7, "machinist@example.com")
	if err != nil {
		t.Fatalf("expected existing customer, got %v", err)
	}
	if again.ID != customer.ID {
		t.Fatalf("expected the same customer, got %q and %q", customer.ID, again.ID)
	}
}
