package billing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"
	"time"
)

func signStripePayload(payload []byte, secret string, ts int64) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.", ts)
	mac.Write(payload)
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func TestVerifyStripeWebhookSignature(t *testing.T) {
	payload := []byte(`{"id":"evt_1","type":"customer.subscription.updated"}`)
	secret := "whsec_testsecret"
	now := time.Now().Unix()

	header := signStripePayload(payload, secret, now)
	if !VerifyStripeWebhookSignature(payload, header, secret, DefaultSignatureTolerance) {
		t.Fatalf("expected valid signature to verify")
	}

	if VerifyStripeWebhookSignature(payload, header, "whsec_other", DefaultSignatureTolerance) {
		t.Fatalf("expected signature with wrong secret to fail")
	}

	if VerifyStripeWebhookSignature([]byte(`{"tampered":true}`), header, secret, DefaultSignatureTolerance) {
		t.Fatalf("expected tampered payload to fail")
	}

	if VerifyStripeWebhookSignature(payload, "", secret, DefaultSignatureTolerance) {
		t.Fatalf("expected empty header to fail")
	}
	if VerifyStripeWebhookSignature(payload, header, "", DefaultSignatureTolerance) {
		t.Fatalf("expected empty secret to fail")
	}
}

func TestVerifyStripeWebhookSignature_StaleTimestamp(t *testing.T) {
	payload := []byte(`{"id":"evt_2"}`)
	secret := "whsec_testsecret"
	stale := time.Now().Add(-1 * time.Hour).Unix()

	header := signStripePayload(payload, secret, stale)
	if VerifyStripeWebhookSignature(payload, header, secret, DefaultSignatureTolerance) {
		t.Fatalf("expected stale timestamp to fail within tolerance")
	}
	if !VerifyStripeWebhookSignature(payload, header, secret, 0) {
		t.Fatalf("expected stale timestamp to pass with tolerance disabled")
	}
}

func TestVerifyStripeWebhookSignature_MultipleCandidates(t *testing.T) {
	payload := []byte(`{"id":"evt_3"}`)
	secret := "whsec_testsecret"
	now := time.Now().Unix()

	valid := signStripePayload(payload, secret, now)
	// Header with a bogus v1 before the valid one, as sent during secret rolls.
	header := fmt.Sprintf("t=%d,v1=%s,%s", now, hex.EncodeToString(make([]byte, 32)), valid[len(fmt.Sprintf("t=%d,", now)):])
	if !VerifyStripeWebhookSignature(payload, header, secret, DefaultSignatureTolerance) {
		t.Fatalf("expected any matching v1 candidate to verify")
	}
}
