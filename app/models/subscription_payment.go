package models

import "time"

// SubscriptionPayment is an append-only ledger row for a successful invoice.
// One row per stripe_invoice_id; rows are written once and never updated.
type SubscriptionPayment struct {
	ID                    uint       `gorm:"primaryKey" json:"id"`
	SubscriptionID        uint       `gorm:"not null;index" json:"subscription_id"`
	UserID                uint       `gorm:"not null;index" json:"user_id"`
	AmountPaid            float64    `gorm:"type:decimal(10,2);not null" json:"amount_paid"`
	Currency              string     `gorm:"type:varchar(10);not null;default:'usd'" json:"currency"`
	StripeInvoiceID       string     `gorm:"type:varchar(191);not null;uniqueIndex:ux_subscription_payments_invoice" json:"stripe_invoice_id"`
	StripePaymentIntentID string     `gorm:"type:varchar(191);default:''" json:"stripe_payment_intent_id"`
	Status                string     `gorm:"type:varchar(32);not null;default:'succeeded'" json:"status"`
	BillingPeriodStart    *time.Time `gorm:"type:timestamp;default:null" json:"billing_period_start,omitempty"`
	BillingPeriodEnd      *time.Time `gorm:"type:timestamp;default:null" json:"billing_period_end,omitempty"`
	PaidAt                time.Time  `gorm:"type:timestamp;not null" json:"paid_at"`
	CreatedAt             time.Time  `gorm:"autoCreateTime" json:"created_at"`
}
