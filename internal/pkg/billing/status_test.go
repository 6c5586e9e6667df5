package billing

import (
	"testing"
	"time"

	"github.com/LeVietHung/CNCademy/app/models"
)

func TestMapStripeStatus(t *testing.T) {
	tests := []struct {
		in   string
		want models.SubscriptionStatus
	}{
		{in: "active", want: models.SubscriptionStatusActive},
		{in: "canceled", want: models.SubscriptionStatusCancelled},
		{in: "past_due", want: models.SubscriptionStatusPastDue},
		{in: "trialing", want: models.SubscriptionStatusPaused},
		{in: "incomplete", want: models.SubscriptionStatusPaused},
		{in: "incomplete_expired", want: models.SubscriptionStatusPaused},
		{in: "unpaid", want: models.SubscriptionStatusPaused},
		{in: "", want: models.SubscriptionStatusPaused},
		{in: "ACTIVE", want: models.SubscriptionStatusActive},
		{in: "  past_due  ", want: models.SubscriptionStatusPastDue},
	}

	for _, tt := range tests {
		if got := MapStripeStatus(tt.in); got != tt.want {
			t.Fatalf("MapStripeStatus(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestMapStripeStatus_ClosedEnum(t *testing.T) {
	known := map[models.SubscriptionStatus]bool{
		models.SubscriptionStatusActive:    true,
		models.SubscriptionStatusCancelled: true,
		models.SubscriptionStatusPastDue:   true,
		models.SubscriptionStatusPaused:    true,
	}
	for _, in := range []string{"active", "canceled", "past_due", "trialing", "incomplete", "unpaid", "future_status"} {
		if got := MapStripeStatus(in); !known[got] {
			t.Fatalf("MapStripeStatus(%q) = %q, outside the closed enum", in, got)
		}
	}
}

func TestUnixTime(t *testing.T) {
	ts := unixTime(1700000000)
	if ts == nil || ts.Unix() != 1700000000 {
		t.Fatalf("unexpected conversion: %v", ts)
	}

	zero := unixTime(0)
	if zero == nil || !zero.Equal(time.Unix(0, 0).UTC()) {
		t.Fatalf("expected zero seconds to map to the epoch instant, got %v", zero)
	}
}
