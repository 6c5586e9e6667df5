package controllers

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/LeVietHung/CNCademy/app/models"
	"github.com/LeVietHung/CNCademy/internal/pkg/billing"
	"github.com/LeVietHung/CNCademy/internal/pkg/database"
	"github.com/LeVietHung/CNCademy/internal/pkg/entitlements"
	"github.com/LeVietHung/CNCademy/internal/pkg/env"
	"github.com/LeVietHung/CNCademy/internal/pkg/usercontext"
)

// HandleStripeWebhook ingests provider lifecycle events. Every delivery is
// persisted before processing; unhandled types and retries of cleanly
// processed events are acknowledged with 200 so the provider stops retrying,
// invalid signatures get 400, and only transient reconcile failures return
// 5xx to trigger a provider retry.
func HandleStripeWebhook(c *fiber.Ctx) error {
	rawBody := append([]byte(nil), c.BodyRaw()...)
	signature := strings.TrimSpace(c.Get("Stripe-Signature"))
	secret := env.GetEnv("STRIPE_WEBHOOK_SECRET", "")

	svc := billing.NewServiceFromDB(database.GetDB())
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	signatureValid := billing.VerifyStripeWebhookSignature(rawBody, signature, secret, billing.DefaultSignatureTolerance)

	// Parse before recording so the audit row carries the provider event id.
	ev, parseErr := billing.ParseEvent(rawBody)
	eventID := ""
	eventType := ""
	if ev != nil {
		eventID = ev.ID
		eventType = ev.Type
	}

	created, stored, err := svc.RecordWebhookEvent(ctx, billing.WebhookEventInput{
		Provider:        models.BillingProviderStripe,
		ProviderEventID: eventID,
		EventType:       eventType,
		PayloadJSON:     string(rawBody),
		SignatureValid:  signatureValid,
	})
	if err != nil {
		log.Errorf("[Billing] failed to persist webhook event %s: %v", eventID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "webhook_persist_failed"})
	}
	if !created {
		// Stripe retries an event id until it gets a clean 200. Only a prior
		// delivery that verified and processed without error settles the id;
		// a row left by a failed delivery (bad signature, bad payload,
		// transient reconcile error) must not absorb the retry.
		if !billing.ShouldReprocessWebhookEvent(stored) {
			return c.Status(fiber.StatusOK).JSON(fiber.Map{"received": true, "duplicate": true})
		}
		if signatureValid && !stored.SignatureValid {
			if err := svc.RefreshWebhookSignature(ctx, stored.ID, true); err != nil {
				log.Warnf("[Billing] could not refresh signature verdict for event %s: %v", eventID, err)
			}
		}
	}
	if !signatureValid {
		_ = svc.MarkWebhookProcessed(ctx, stored.ID, errors.New("invalid webhook signature"))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_signature"})
	}
	if parseErr != nil {
		_ = svc.MarkWebhookProcessed(ctx, stored.ID, parseErr)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_payload"})
	}
	if !billing.IsHandledEventType(ev.Type) {
		// Unhandled types are acknowledged, not errors.
		_ = svc.MarkWebhookProcessed(ctx, stored.ID, nil)
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"received": true, "ignored": true})
	}

	reconcileErr := svc.ReconcileFromEvent(ctx, ev)
	_ = svc.MarkWebhookProcessed(ctx, stored.ID, reconcileErr)
	if reconcileErr != nil {
		// Plausibly transient (provider API or store failure): let Stripe retry.
		log.Errorf("[Billing] reconcile failed for event %s (%s): %v", ev.ID, ev.Type, reconcileErr)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "reconcile_failed"})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"received": true})
}

type checkoutRequest struct {
	PriceID    string `json:"price_id"`
	SuccessURL string `json:"success_url"`
	CancelURL  string `json:"cancel_url"`
}

// HandleCreateCheckoutSession starts a hosted checkout for the logged-in user.
func HandleCreateCheckoutSession(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return jsonError(c, fiber.StatusUnauthorized, "unauthorized", "login required")
	}

	var req checkoutRequest
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "invalid JSON body")
	}

	priceID := strings.TrimSpace(req.PriceID)
	if priceID == "" {
		priceID = env.GetEnv("STRIPE_PRICE_ID", "")
	}
	if priceID == "" {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "price_id missing")
	}

	base := strings.TrimRight(env.GetEnv("PUBLIC_DOMAIN", ""), "/")
	successURL := strings.TrimSpace(req.SuccessURL)
	if successURL == "" {
		successURL = base + "/billing/success"
	}
	cancelURL := strings.TrimSpace(req.CancelURL)
	if cancelURL == "" {
		cancelURL = base + "/pricing"
	}

	svc := billing.NewServiceFromDB(database.GetDB())
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	url, err := svc.CreateCheckoutSession(ctx, userCtx.UserID, userCtx.Email, priceID, successURL, cancelURL)
	if err != nil {
		log.Errorf("[Billing] checkout session failed for user %d: %v", userCtx.UserID, err)
		return jsonError(c, fiber.StatusBadGateway, "checkout_failed", "could not start checkout")
	}

	return c.JSON(fiber.Map{"url": url})
}

// HandleBillingResync re-pulls subscription state from the provider for the
// logged-in user. Used by the frontend right after checkout returns, before
// the webhook lands.
func HandleBillingResync(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return jsonError(c, fiber.StatusUnauthorized, "unauthorized", "login required")
	}

	svc := billing.NewServiceFromDB(database.GetDB())
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	res := svc.ReconcileForUser(ctx, userCtx.UserID, userCtx.Email)
	if !res.Success {
		log.Warnf("[Billing] resync failed for user %d: %v", userCtx.UserID, res.Err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"success": false})
	}

	entitlements.InvalidateCache(userCtx.UserID)
	db := database.GetDB()
	return c.JSON(fiber.Map{
		"success":  true,
		"entitled": entitlements.HasActiveSubscription(db, userCtx.UserID),
	})
}

// HandleSubscriptionStatus returns the user's subscription records and the
// current entitlement verdict.
func HandleSubscriptionStatus(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return jsonError(c, fiber.StatusUnauthorized, "unauthorized", "login required")
	}

	db := database.GetDB()
	var subs []models.Subscription
	if err := db.Where("user_id = ?", userCtx.UserID).Order("updated_at DESC").Find(&subs).Error; err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "could not load subscriptions")
	}

	return c.JSON(fiber.Map{
		"entitled":      entitlements.HasActiveSubscription(db, userCtx.UserID),
		"subscriptions": subs,
	})
}

// HandlePaymentHistory returns the append-only payment ledger for the user.
func HandlePaymentHistory(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return jsonError(c, fiber.StatusUnauthorized, "unauthorized", "login required")
	}

	var payments []models.SubscriptionPayment
	err := database.GetDB().
		Where("user_id = ?", userCtx.UserID).
		Order("paid_at DESC").
		Find(&payments).Error
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "could not load payments")
	}

	return c.JSON(fiber.Map{"payments": payments})
}
