package models

import "time"

// Billing provider constants used across billing-related models.
const (
	BillingProviderStripe = "stripe"
)

// SubscriptionStatus is the closed set of local subscription states. Any
// provider status outside the explicit mapping lands on StatusPaused so new
// provider states surface in review instead of silently granting access.
type SubscriptionStatus string

const (
	SubscriptionStatusActive    SubscriptionStatus = "active"
	SubscriptionStatusPastDue   SubscriptionStatus = "past_due"
	SubscriptionStatusCancelled SubscriptionStatus = "cancelled"
	SubscriptionStatusPaused    SubscriptionStatus = "paused"
)

// Subscription mirrors a Stripe subscription into local state. There is at
// most one row per stripe_subscription_id; rows are never hard-deleted,
// cancellation is a status transition.
type Subscription struct {
	ID                   uint               `gorm:"primaryKey" json:"id"`
	UserID               uint               `gorm:"not null;index:idx_subscriptions_user_status,priority:1" json:"user_id"`
	StripeCustomerID     string             `gorm:"type:varchar(191);not null;index" json:"stripe_customer_id"`
	StripeSubscriptionID string             `gorm:"type:varchar(191);not null;uniqueIndex:ux_subscriptions_stripe_sub_id" json:"stripe_subscription_id"`
	Status               SubscriptionStatus `gorm:"type:varchar(32);not null;default:'active';index:idx_subscriptions_user_status,priority:2" json:"status"`
	CurrentPeriodStart   *time.Time         `gorm:"type:timestamp;default:null" json:"current_period_start,omitempty"`
	CurrentPeriodEnd     *time.Time         `gorm:"type:timestamp;default:null" json:"current_period_end,omitempty"`
	CancelAtPeriodEnd    bool               `gorm:"default:false" json:"cancel_at_period_end"`
	CreatedAt            time.Time          `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt            time.Time          `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsEntitling reports whether the status alone (period checks aside) can
// grant paid access.
func (s SubscriptionStatus) IsEntitling() bool {
	return s == SubscriptionStatusActive
}
