package billing

// Provider event types handled by the reconciler. Everything else is
// acknowledged and ignored at the webhook boundary.
const (
	EventSubscriptionCreated = "customer.subscription.created"
	EventSubscriptionUpdated = "customer.subscription.updated"
	EventSubscriptionDeleted = "customer.subscription.deleted"
	EventCheckoutCompleted   = "checkout.session.completed"
	EventInvoicePaid         = "invoice.payment_succeeded"
)

// Customer is the provider-side customer record. The metadata map carries the
// back-reference to our user via the "user_id" key.
type Customer struct {
	ID       string
	Email    string
	Metadata map[string]string
	Deleted  bool
}

// UserID returns the local user id stored in the customer metadata, or ""
// when the customer was never linked.
func (c *Customer) UserID() string {
	if c == nil || c.Metadata == nil {
		return ""
	}
	return c.Metadata["user_id"]
}

// ProviderSubscription is the provider-side subscription state as carried in
// events and API responses. Period bounds are unix seconds; the provider can
// legitimately send 0 for both, the entitlement fallback covers that.
type ProviderSubscription struct {
	ID                 string
	CustomerID         string
	Status             string
	CurrentPeriodStart int64
	CurrentPeriodEnd   int64
	CancelAtPeriodEnd  bool
}

// CheckoutSession is the slice of a completed checkout we care about.
type CheckoutSession struct {
	ID             string
	CustomerID     string
	SubscriptionID string
}

// Invoice is the slice of a paid invoice we record in the payment ledger.
// AmountPaid is in the provider's minor currency unit (cents).
type Invoice struct {
	ID              string
	CustomerID      string
	SubscriptionID  string
	AmountPaid      int64
	Currency        string
	PaymentIntentID string
	PeriodStart     int64
	PeriodEnd       int64
	PaidAt          int64
}

// CheckoutSessionInput describes a checkout session to create for a customer.
type CheckoutSessionInput struct {
	CustomerID string
	PriceID    string
	SuccessURL string
	CancelURL  string
	UserID     string
}

// SyncResult is the soft-failure result of a login-time sync. A sync failure
// must never block sign-in, so callers branch on Success instead of an error
// return.
type SyncResult struct {
	Success bool
	Err     error
}

// WebhookEventInput is the normalized input for webhook event persistence.
type WebhookEventInput struct {
	Provider        string
	ProviderEventID string
	EventType       string
	PayloadJSON     string
	SignatureValid  bool
}
