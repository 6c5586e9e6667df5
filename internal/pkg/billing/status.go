package billing

import (
	"strings"
	"time"

	"github.com/LeVietHung/CNCademy/app/models"
)

// MapStripeStatus maps a provider subscription status onto the local closed
// enum. Only three provider statuses map onto their local counterparts;
// everything else (trialing, incomplete, unpaid, future additions) lands on
// the named paused variant.
func MapStripeStatus(status string) models.SubscriptionStatus {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "active":
		return models.SubscriptionStatusActive
	case "canceled":
		return models.SubscriptionStatusCancelled
	case "past_due":
		return models.SubscriptionStatusPastDue
	default:
		return models.SubscriptionStatusPaused
	}
}

// unixTime converts provider unix seconds to a stored timestamp. Zero values
// are kept as the epoch instant rather than NULL so the entitlement fallback
// can tell "provider sent zero" apart from "never synced".
func unixTime(secs int64) *time.Time {
	t := time.Unix(secs, 0).UTC()
	return &t
}
