package billing

import (
	"context"
	"time"
)

// Subscription statuses that grant access to a product.
const (
	StatusActive   = "active"
	StatusTrialing = "trialing"
)

// Checkout session statuses reported by the provider.
const (
	SessionStatusOpen     = "open"
	SessionStatusComplete = "complete"
	SessionStatusExpired  = "expired"
)

// Metadata keys written onto checkout sessions and their subscriptions.
const (
	MetadataUserID      = "user_id"
	MetadataProductName = "product_name"
)

// CheckoutRequest describes a subscription-mode checkout session.
type CheckoutRequest struct {
	UserID      string
	ProductName string
	PriceID     string
	SuccessURL  string
	CancelURL   string
	TrialDays   int64
}

// CheckoutSession is the provider's view of a checkout session.
type CheckoutSession struct {
	ID                string
	URL               string
	Status            string
	SubscriptionID    string
	ClientReferenceID string
	Metadata          map[string]string
}

// Complete reports whether the customer finished the hosted checkout.
func (s *CheckoutSession) Complete() bool {
	return s != nil && s.Status == SessionStatusComplete
}

// SubscriptionStatus is the live status of a subscription.
type SubscriptionStatus struct {
	ID                string     `json:"id"`
	Status            string     `json:"status"`
	CancelAtPeriodEnd bool       `json:"cancel_at_period_end"`
	TrialEnd          *time.Time `json:"trial_end,omitempty"`
}

// Entitled reports whether the status grants access.
func (s *SubscriptionStatus) Entitled() bool {
	if s == nil {
		return false
	}
	return IsEntitledStatus(s.Status)
}

// IsEntitledStatus reports whether the raw provider status grants access.
func IsEntitledStatus(status string) bool {
	return status == StatusActive || status == StatusTrialing
}

// Oracle exposes the billing provider operations used by checkout and the
// entitlement guard.
type Oracle interface {
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error)
	GetCheckoutSession(ctx context.Context, sessionID string) (*CheckoutSession, error)
	GetSubscriptionStatus(ctx context.Context, subscriptionID string) (*SubscriptionStatus, error)
}
