package billing

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/LeVietHung/CNCademy/app/models"
	"github.com/LeVietHung/CNCademy/internal/pkg/entitlements"
)

// Service reconciles provider subscription state into local records. Both
// collaborators are injected; nothing here reaches for globals.
type Service struct {
	repo     Repository
	provider ProviderClient
}

// NewService creates a billing service from an injected repository and
// provider client.
func NewService(repo Repository, provider ProviderClient) *Service {
	return &Service{repo: repo, provider: provider}
}

// NewServiceFromDB wires the GORM repository and the env-configured Stripe
// client. Convenience for controllers.
func NewServiceFromDB(db *gorm.DB) *Service {
	return NewService(NewRepository(db), NewStripeClientFromEnv())
}

// ReconcileFromEvent applies one provider lifecycle event to local state.
// Missing-linkage and missing-record situations are logged no-ops, because
// provider and local state legitimately diverge during onboarding; returned
// errors are transient provider/store failures the webhook boundary should
// surface as retryable.
func (s *Service) ReconcileFromEvent(ctx context.Context, ev *Event) error {
	if ev == nil {
		return errors.New("event is required")
	}

	switch ev.Type {
	case EventSubscriptionCreated, EventSubscriptionUpdated:
		if ev.Subscription == nil {
			return errors.New("subscription event without subscription object")
		}
		return s.syncProviderSubscription(ctx, ev.Subscription)

	case EventCheckoutCompleted:
		return s.reconcileCheckout(ctx, ev.Checkout)

	case EventSubscriptionDeleted:
		return s.reconcileDeleted(ev.Subscription)

	case EventInvoicePaid:
		return s.recordInvoicePayment(ev.Invoice)

	default:
		log.Debugf("[Billing] ignoring unhandled event type %s", ev.Type)
		return nil
	}
}

// syncProviderSubscription resolves the owning user through the customer
// metadata and upserts the local record keyed by the provider subscription id.
func (s *Service) syncProviderSubscription(ctx context.Context, sub *ProviderSubscription) error {
	if strings.TrimSpace(sub.CustomerID) == "" {
		log.Warnf("[Billing] subscription %s event without customer id, skipping", sub.ID)
		return nil
	}

	customer, err := s.provider.RetrieveCustomer(ctx, sub.CustomerID)
	if err != nil {
		return err
	}
	if customer == nil || customer.Deleted {
		log.Warnf("[Billing] customer %s not found or deleted for subscription %s, skipping", sub.CustomerID, sub.ID)
		return nil
	}

	userID, ok := parseUserID(customer.UserID())
	if !ok {
		// No user_id metadata means the customer was never linked to a local
		// account; the event is acknowledged without writing anything.
		log.Warnf("[Billing] no user_id metadata on customer %s for subscription %s, skipping", customer.ID, sub.ID)
		return nil
	}

	return s.upsertSubscription(userID, customer.ID, sub)
}

func (s *Service) upsertSubscription(userID uint, customerID string, sub *ProviderSubscription) error {
	record := &models.Subscription{
		UserID:               userID,
		StripeCustomerID:     customerID,
		StripeSubscriptionID: sub.ID,
		Status:               MapStripeStatus(sub.Status),
		CurrentPeriodStart:   unixTime(sub.CurrentPeriodStart),
		CurrentPeriodEnd:     unixTime(sub.CurrentPeriodEnd),
		CancelAtPeriodEnd:    sub.CancelAtPeriodEnd,
	}
	if err := s.repo.UpsertSubscription(record); err != nil {
		log.Errorf("[Billing] failed to upsert subscription %s for user %d: %v", sub.ID, userID, err)
		return err
	}
	entitlements.InvalidateCache(userID)
	return nil
}

// reconcileCheckout resolves the subscription created by a completed checkout
// and runs the regular subscription sync for it.
func (s *Service) reconcileCheckout(ctx context.Context, checkout *CheckoutSession) error {
	if checkout == nil || checkout.CustomerID == "" || checkout.SubscriptionID == "" {
		log.Warnf("[Billing] checkout completed event missing customer or subscription id, skipping")
		return nil
	}

	sub, err := s.provider.RetrieveSubscription(ctx, checkout.SubscriptionID)
	if err != nil {
		return err
	}
	if sub.CustomerID == "" {
		sub.CustomerID = checkout.CustomerID
	}
	return s.syncProviderSubscription(ctx, sub)
}

// reconcileDeleted forces the matching local record to cancelled regardless
// of prior status. Unknown subscription ids are a no-op.
func (s *Service) reconcileDeleted(sub *ProviderSubscription) error {
	if sub == nil || sub.ID == "" {
		return errors.New("subscription deleted event without subscription id")
	}

	record, err := s.repo.GetSubscriptionByProviderID(sub.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Warnf("[Billing] deleted event for unknown subscription %s, skipping", sub.ID)
			return nil
		}
		return err
	}

	record.Status = models.SubscriptionStatusCancelled
	if err := s.repo.UpsertSubscription(record); err != nil {
		log.Errorf("[Billing] failed to cancel subscription %s for user %d: %v", sub.ID, record.UserID, err)
		return err
	}
	entitlements.InvalidateCache(record.UserID)
	return nil
}

// recordInvoicePayment appends a ledger row for a paid invoice. A payment
// never synthesizes a subscription: no matching local record, no write.
func (s *Service) recordInvoicePayment(invoice *Invoice) error {
	if invoice == nil || invoice.SubscriptionID == "" {
		log.Debugf("[Billing] invoice without subscription reference, skipping")
		return nil
	}

	record, err := s.repo.GetSubscriptionByProviderID(invoice.SubscriptionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Warnf("[Billing] payment for unknown subscription %s, skipping", invoice.SubscriptionID)
			return nil
		}
		return err
	}

	paidAt := time.Now()
	if invoice.PaidAt > 0 {
		paidAt = time.Unix(invoice.PaidAt, 0).UTC()
	}
	currency := strings.ToLower(strings.TrimSpace(invoice.Currency))
	if currency == "" {
		currency = "usd"
	}

	payment := &models.SubscriptionPayment{
		SubscriptionID:        record.ID,
		UserID:                record.UserID,
		AmountPaid:            float64(invoice.AmountPaid) / 100,
		Currency:              currency,
		StripeInvoiceID:       invoice.ID,
		StripePaymentIntentID: invoice.PaymentIntentID,
		Status:                "succeeded",
		BillingPeriodStart:    unixTime(invoice.PeriodStart),
		BillingPeriodEnd:      unixTime(invoice.PeriodEnd),
		PaidAt:                paidAt,
	}

	created, err := s.repo.CreatePaymentIfNotExists(payment)
	if err != nil {
		log.Errorf("[Billing] failed to record payment for subscription %s user %d: %v", invoice.SubscriptionID, record.UserID, err)
		return err
	}
	if !created {
		log.Debugf("[Billing] payment for invoice %s already recorded", invoice.ID)
	}
	return nil
}

// ReconcileForUser is the pull-based catch-up used at login/signup. It finds
// the provider customer for this user (by email, then by user_id metadata),
// repairs the metadata linkage, and syncs every subscription on the customer.
// Failures are soft: callers must never block sign-in on the result.
func (s *Service) ReconcileForUser(ctx context.Context, userID uint, userEmail string) SyncResult {
	if userID == 0 {
		return SyncResult{Success: false, Err: errors.New("user_id is required")}
	}
	userIDStr := strconv.FormatUint(uint64(userID), 10)

	customer, err := s.provider.FindCustomerByEmail(ctx, userEmail)
	if err != nil {
		log.Warnf("[Billing] customer lookup by email failed for user %d: %v", userID, err)
		return SyncResult{Success: false, Err: err}
	}

	// The purchasing email can differ from the login email; fall back to the
	// user_id metadata scan before concluding the user never paid.
	if customer == nil {
		customer, err = s.provider.FindCustomerByUserID(ctx, userIDStr)
		if err != nil {
			log.Warnf("[Billing] customer lookup by metadata failed for user %d: %v", userID, err)
			return SyncResult{Success: false, Err: err}
		}
	}
	if customer == nil {
		// Not an error: the user simply has never paid.
		return SyncResult{Success: true}
	}

	if customer.UserID() != userIDStr {
		merged := make(map[string]string, len(customer.Metadata)+1)
		for k, v := range customer.Metadata {
			merged[k] = v
		}
		merged["user_id"] = userIDStr
		if err := s.provider.UpdateCustomerMetadata(ctx, customer.ID, merged); err != nil {
			log.Warnf("[Billing] failed to link customer %s to user %d: %v", customer.ID, userID, err)
			return SyncResult{Success: false, Err: err}
		}
	}

	subs, err := s.provider.ListSubscriptions(ctx, customer.ID)
	if err != nil {
		log.Warnf("[Billing] subscription list failed for customer %s user %d: %v", customer.ID, userID, err)
		return SyncResult{Success: false, Err: err}
	}

	for i := range subs {
		if err := s.upsertSubscription(userID, customer.ID, &subs[i]); err != nil {
			return SyncResult{Success: false, Err: err}
		}
	}
	return SyncResult{Success: true}
}

// EnsureCustomerForUser returns the provider customer for a user, creating
// one with the user_id metadata linkage when none exists yet. Used by the
// checkout flow so every customer is linked before the first webhook fires.
func (s *Service) EnsureCustomerForUser(ctx context.Context, userID uint, email string) (*Customer, error) {
	userIDStr := strconv.FormatUint(uint64(userID), 10)

	customer, err := s.provider.FindCustomerByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if customer == nil {
		return s.provider.CreateCustomer(ctx, email, map[string]string{"user_id": userIDStr})
	}
	if customer.UserID() != userIDStr {
		merged := make(map[string]string, len(customer.Metadata)+1)
		for k, v := range customer.Metadata {
			merged[k] = v
		}
		merged["user_id"] = userIDStr
		if err := s.provider.UpdateCustomerMetadata(ctx, customer.ID, merged); err != nil {
			return nil, err
		}
		customer.Metadata = merged
	}
	return customer, nil
}

// CreateCheckoutSession creates a hosted checkout for the user and returns
// its URL.
func (s *Service) CreateCheckoutSession(ctx context.Context, userID uint, email, priceID, successURL, cancelURL string) (string, error) {
	customer, err := s.EnsureCustomerForUser(ctx, userID, email)
	if err != nil {
		return "", err
	}
	return s.provider.CreateCheckoutSession(ctx, CheckoutSessionInput{
		CustomerID: customer.ID,
		PriceID:    priceID,
		SuccessURL: successURL,
		CancelURL:  cancelURL,
		UserID:     strconv.FormatUint(uint64(userID), 10),
	})
}

// RecordWebhookEvent persists webhook payloads idempotently.
func (s *Service) RecordWebhookEvent(ctx context.Context, in WebhookEventInput) (bool, *models.BillingWebhookEvent, error) {
	_ = ctx
	provider := strings.ToLower(strings.TrimSpace(in.Provider))
	if provider == "" {
		return false, nil, errors.New("provider is required")
	}
	eventID := strings.TrimSpace(in.ProviderEventID)
	if eventID == "" {
		sum := sha256.Sum256([]byte(in.PayloadJSON))
		eventID = "hash:" + hex.EncodeToString(sum[:])
	}

	event := &models.BillingWebhookEvent{
		Provider:        provider,
		ProviderEventID: eventID,
		EventType:       strings.TrimSpace(in.EventType),
		PayloadJSON:     in.PayloadJSON,
		SignatureValid:  in.SignatureValid,
	}
	return s.repo.CreateWebhookEventIfNotExists(event)
}

// ShouldReprocessWebhookEvent reports whether a redelivered event still needs
// processing. A stored row only settles a delivery when its signature checked
// out and processing finished clean; a row left behind by a delivery that
// failed the signature check (secret misconfigured at the time), failed to
// parse, or hit a transient reconcile error must not absorb the provider's
// retries of the same event id.
func ShouldReprocessWebhookEvent(stored *models.BillingWebhookEvent) bool {
	if stored == nil {
		return true
	}
	return !stored.SignatureValid || stored.ProcessedAt == nil || stored.ProcessingError != ""
}

// RefreshWebhookSignature records that a redelivery of a stored event carried
// a valid signature.
func (s *Service) RefreshWebhookSignature(ctx context.Context, webhookEventID uint, valid bool) error {
	_ = ctx
	if webhookEventID == 0 {
		return errors.New("webhook_event_id is required")
	}
	return s.repo.RefreshWebhookSignature(webhookEventID, valid)
}

// MarkWebhookProcessed marks an event as processed and stores an optional error.
func (s *Service) MarkWebhookProcessed(ctx context.Context, webhookEventID uint, processingErr error) error {
	_ = ctx
	if webhookEventID == 0 {
		return errors.New("webhook_event_id is required")
	}
	errMsg := ""
	if processingErr != nil {
		errMsg = processingErr.Error()
	}
	return s.repo.MarkWebhookProcessed(webhookEventID, errMsg)
}

func parseUserID(raw string) (uint, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}
