package entitlements

import (
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/LeVietHung/CNCademy/app/models"
)

func subWith(status models.SubscriptionStatus, createdAt time.Time, periodEnd *time.Time) *models.Subscription {
	return &models.Subscription{
		ID:               1,
		UserID:           7,
		Status:           status,
		CurrentPeriodEnd: periodEnd,
		CreatedAt:        createdAt,
		UpdatedAt:        createdAt,
	}
}

func TestEffectivePeriodEnd_UsesProviderValue(t *testing.T) {
	created := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	end := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	sub := subWith(models.SubscriptionStatusActive, created, &end)

	if got := EffectivePeriodEnd(sub); !got.Equal(end) {
		t.Fatalf("expected provider period end %v, got %v", end, got)
	}
}

func TestEffectivePeriodEnd_FallbackWindow(t *testing.T) {
	created := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	want := created.AddDate(0, 1, 0)

	// Missing period end entirely.
	sub := subWith(models.SubscriptionStatusActive, created, nil)
	if got := EffectivePeriodEnd(sub); !got.Equal(want) {
		t.Fatalf("expected created_at + 1 month %v, got %v", want, got)
	}

	// Epoch sentinel from a provider payload with zero seconds.
	epoch := time.Unix(0, 0).UTC()
	sub = subWith(models.SubscriptionStatusActive, created, &epoch)
	if got := EffectivePeriodEnd(sub); !got.Equal(want) {
		t.Fatalf("expected epoch value to fall back to %v, got %v", want, got)
	}
}

func TestEffectivePeriodEnd_CalendarMonth(t *testing.T) {
	// AddDate normalizes overflow: Jan 31 + 1 month lands in early March.
	created := time.Date(2026, 1, 31, 9, 0, 0, 0, time.UTC)
	sub := subWith(models.SubscriptionStatusActive, created, nil)

	want := time.Date(2026, 3, 3, 9, 0, 0, 0, time.UTC)
	if got := EffectivePeriodEnd(sub); !got.Equal(want) {
		t.Fatalf("expected normalized calendar month %v, got %v", want, got)
	}
}

func TestIsEntitled(t *testing.T) {
	now := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	future := now.Add(24 * time.Hour)
	past := now.Add(-24 * time.Hour)

	tests := []struct {
		name string
		sub  *models.Subscription
		want bool
	}{
		{name: "nil record", sub: nil, want: false},
		{name: "active within period", sub: subWith(models.SubscriptionStatusActive, past, &future), want: true},
		{name: "active expired period", sub: subWith(models.SubscriptionStatusActive, past.AddDate(0, -2, 0), &past), want: false},
		{name: "past_due within period", sub: subWith(models.SubscriptionStatusPastDue, past, &future), want: false},
		{name: "cancelled within period", sub: subWith(models.SubscriptionStatusCancelled, past, &future), want: false},
		{name: "paused within period", sub: subWith(models.SubscriptionStatusPaused, past, &future), want: false},
	}
	for _, tt := range tests {
		if got := IsEntitled(tt.sub, now); got != tt.want {
			t.Fatalf("%s: IsEntitled = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestIsEntitled_FallbackWindowBoundary(t *testing.T) {
	created := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	sub := subWith(models.SubscriptionStatusActive, created, nil)

	inside := created.AddDate(0, 1, 0).Add(-time.Minute)
	outside := created.AddDate(0, 1, 0).Add(time.Minute)

	if !IsEntitled(sub, inside) {
		t.Fatalf("expected entitlement inside the one-month fallback window")
	}
	if IsEntitled(sub, outside) {
		t.Fatalf("expected no entitlement after the fallback window")
	}
}

func TestHasActiveSubscription_FailsClosed(t *testing.T) {
	if HasActiveSubscription(nil, 7) {
		t.Fatalf("nil database must mean no access")
	}
	if HasActiveSubscription(&gorm.DB{}, 0) {
		t.Fatalf("zero user id must mean no access")
	}
}
