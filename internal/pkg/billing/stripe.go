package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/LeVietHung/CNCademy/internal/pkg/env"
)

const defaultStripeAPIBaseURL = "https://api.stripe.com/v1"

// customerScanLimit caps the metadata fallback scan. The provider API has no
// metadata filter, so FindCustomerByUserID lists and filters client-side.
const customerScanLimit = 100

// ProviderClient is the payment-provider surface the reconciler depends on.
// Injected so the core is testable without a live network.
type ProviderClient interface {
	RetrieveCustomer(ctx context.Context, customerID string) (*Customer, error)
	FindCustomerByEmail(ctx context.Context, email string) (*Customer, error)
	FindCustomerByUserID(ctx context.Context, userID string) (*Customer, error)
	UpdateCustomerMetadata(ctx context.Context, customerID string, metadata map[string]string) error
	CreateCustomer(ctx context.Context, email string, metadata map[string]string) (*Customer, error)
	ListSubscriptions(ctx context.Context, customerID string) ([]ProviderSubscription, error)
	RetrieveSubscription(ctx context.Context, subscriptionID string) (*ProviderSubscription, error)
	CreateCheckoutSession(ctx context.Context, in CheckoutSessionInput) (string, error)
}

// StripeClient talks to the Stripe REST API with form-encoded requests.
type StripeClient struct {
	SecretKey  string
	APIBaseURL string

	HTTPClient *http.Client
}

func NewStripeClientFromEnv() *StripeClient {
	return &StripeClient{
		SecretKey:  strings.TrimSpace(env.GetEnv("STRIPE_SECRET_KEY", "")),
		APIBaseURL: strings.TrimSpace(env.GetEnv("STRIPE_API_BASE_URL", defaultStripeAPIBaseURL)),
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

type stripeCustomer struct {
	ID       string            `json:"id"`
	Email    string            `json:"email"`
	Metadata map[string]string `json:"metadata"`
	Deleted  bool              `json:"deleted"`
}

type stripeSubscription struct {
	ID                 string       `json:"id"`
	Customer           expandableID `json:"customer"`
	Status             string       `json:"status"`
	CurrentPeriodStart int64        `json:"current_period_start"`
	CurrentPeriodEnd   int64        `json:"current_period_end"`
	CancelAtPeriodEnd  bool         `json:"cancel_at_period_end"`
}

func (c *stripeCustomer) toCustomer() *Customer {
	return &Customer{ID: c.ID, Email: c.Email, Metadata: c.Metadata, Deleted: c.Deleted}
}

func (s *stripeSubscription) toProviderSubscription() ProviderSubscription {
	return ProviderSubscription{
		ID:                 s.ID,
		CustomerID:         string(s.Customer),
		Status:             s.Status,
		CurrentPeriodStart: s.CurrentPeriodStart,
		CurrentPeriodEnd:   s.CurrentPeriodEnd,
		CancelAtPeriodEnd:  s.CancelAtPeriodEnd,
	}
}

func (c *StripeClient) do(ctx context.Context, method, path string, form url.Values, out interface{}) error {
	if strings.TrimSpace(c.SecretKey) == "" {
		return errors.New("STRIPE_SECRET_KEY is not configured")
	}

	endpoint := strings.TrimRight(c.APIBaseURL, "/") + path
	var body io.Reader
	if method != http.MethodGet && form != nil {
		body = strings.NewReader(form.Encode())
	} else if method == http.MethodGet && form != nil {
		endpoint += "?" + form.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.SecretKey)
	req.Header.Set("Accept", "application/json")
	if method != http.MethodGet {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("stripe request %s %s failed: status=%d body=%s", method, path, resp.StatusCode, string(raw))
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(raw, out)
}

func (c *StripeClient) RetrieveCustomer(ctx context.Context, customerID string) (*Customer, error) {
	if strings.TrimSpace(customerID) == "" {
		return nil, errors.New("customer id is required")
	}
	var raw stripeCustomer
	if err := c.do(ctx, http.MethodGet, "/customers/"+url.PathEscape(customerID), nil, &raw); err != nil {
		return nil, err
	}
	return raw.toCustomer(), nil
}

// FindCustomerByEmail returns the first customer with this email, or nil
// when none exists.
func (c *StripeClient) FindCustomerByEmail(ctx context.Context, email string) (*Customer, error) {
	if strings.TrimSpace(email) == "" {
		return nil, errors.New("email is required")
	}
	form := url.Values{}
	form.Set("email", strings.TrimSpace(email))
	form.Set("limit", "1")

	var raw struct {
		Data []stripeCustomer `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, "/customers", form, &raw); err != nil {
		return nil, err
	}
	if len(raw.Data) == 0 {
		return nil, nil
	}
	return raw.Data[0].toCustomer(), nil
}

// FindCustomerByUserID lists customers and filters on the user_id metadata
// key client-side. Linear and capped at customerScanLimit; acceptable at the
// platform's current customer count.
func (c *StripeClient) FindCustomerByUserID(ctx context.Context, userID string) (*Customer, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, errors.New("user id is required")
	}
	form := url.Values{}
	form.Set("limit", fmt.Sprintf("%d", customerScanLimit))

	var raw struct {
		Data []stripeCustomer `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, "/customers", form, &raw); err != nil {
		return nil, err
	}
	for i := range raw.Data {
		if raw.Data[i].Metadata["user_id"] == userID {
			return raw.Data[i].toCustomer(), nil
		}
	}
	return nil, nil
}

func (c *StripeClient) UpdateCustomerMetadata(ctx context.Context, customerID string, metadata map[string]string) error {
	if strings.TrimSpace(customerID) == "" {
		return errors.New("customer id is required")
	}
	form := url.Values{}
	for k, v := range metadata {
		form.Set(fmt.Sprintf("metadata[%s]", k), v)
	}
	return c.do(ctx, http.MethodPost, "/customers/"+url.PathEscape(customerID), form, nil)
}

func (c *StripeClient) CreateCustomer(ctx context.Context, email string, metadata map[string]string) (*Customer, error) {
	form := url.Values{}
	form.Set("email", strings.TrimSpace(email))
	for k, v := range metadata {
		form.Set(fmt.Sprintf("metadata[%s]", k), v)
	}
	var raw stripeCustomer
	if err := c.do(ctx, http.MethodPost, "/customers", form, &raw); err != nil {
		return nil, err
	}
	return raw.toCustomer(), nil
}

// ListSubscriptions returns all subscriptions for a customer across every
// status, so cancelled and past-due records sync too.
func (c *StripeClient) ListSubscriptions(ctx context.Context, customerID string) ([]ProviderSubscription, error) {
	if strings.TrimSpace(customerID) == "" {
		return nil, errors.New("customer id is required")
	}
	form := url.Values{}
	form.Set("customer", customerID)
	form.Set("status", "all")
	form.Set("limit", "100")

	var raw struct {
		Data []stripeSubscription `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, "/subscriptions", form, &raw); err != nil {
		return nil, err
	}
	subs := make([]ProviderSubscription, 0, len(raw.Data))
	for i := range raw.Data {
		subs = append(subs, raw.Data[i].toProviderSubscription())
	}
	return subs, nil
}

func (c *StripeClient) RetrieveSubscription(ctx context.Context, subscriptionID string) (*ProviderSubscription, error) {
	if strings.TrimSpace(subscriptionID) == "" {
		return nil, errors.New("subscription id is required")
	}
	var raw stripeSubscription
	if err := c.do(ctx, http.MethodGet, "/subscriptions/"+url.PathEscape(subscriptionID), nil, &raw); err != nil {
		return nil, err
	}
	sub := raw.toProviderSubscription()
	return &sub, nil
}

// CreateCheckoutSession creates a subscription-mode checkout session and
// returns the hosted payment page URL.
func (c *StripeClient) CreateCheckoutSession(ctx context.Context, in CheckoutSessionInput) (string, error) {
	if strings.TrimSpace(in.CustomerID) == "" || strings.TrimSpace(in.PriceID) == "" {
		return "", errors.New("customer id and price id are required")
	}
	form := url.Values{}
	form.Set("mode", "subscription")
	form.Set("customer", in.CustomerID)
	form.Set("line_items[0][price]", in.PriceID)
	form.Set("line_items[0][quantity]", "1")
	form.Set("payment_method_types[0]", "card")
	form.Set("success_url", in.SuccessURL)
	form.Set("cancel_url", in.CancelURL)
	if in.UserID != "" {
		form.Set("metadata[user_id]", in.UserID)
	}

	var raw struct {
		ID  string `json:"id"`
		URL string `json:"url"`
	}
	if err := c.do(ctx, http.MethodPost, "/checkout/sessions", form, &raw); err != nil {
		return "", err
	}
	if raw.URL == "" {
		return "", errors.New("stripe checkout session response missing url")
	}
	return raw.URL, nil
}
