package billing

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/checkout/session"
	"github.com/stripe/stripe-go/v84/subscription"

	pkgerrors "github.com/angelmondragon/omni-backend/pkg/errors"
	"github.com/angelmondragon/omni-backend/pkg/metrics"
	"github.com/angelmondragon/omni-backend/pkg/retry"
)

// stripeAPI is the subset of stripe resource calls the oracle makes.
type stripeAPI interface {
	NewSession(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	GetSession(id string, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	GetSubscription(id string, params *stripe.SubscriptionParams) (*stripe.Subscription, error)
}

type stripeResources struct{}

func (stripeResources) NewSession(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	return session.New(params)
}

func (stripeResources) GetSession(id string, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	return session.Get(id, params)
}

func (stripeResources) GetSubscription(id string, params *stripe.SubscriptionParams) (*stripe.Subscription, error) {
	return subscription.Get(id, params)
}

// StripeOracleParams groups dependencies for the Stripe oracle.
type StripeOracleParams struct {
	Timeout time.Duration
	Retry   retry.Policy
	Metrics *metrics.ProviderMetrics

	api stripeAPI
}

// StripeOracle implements Oracle against Stripe Checkout and Subscriptions.
type StripeOracle struct {
	api     stripeAPI
	timeout time.Duration
	retry   retry.Policy
	metrics *metrics.ProviderMetrics
}

// NewStripeOracle builds the oracle. The Stripe API key must already be
// installed by pkg/stripe.
func NewStripeOracle(params StripeOracleParams) *StripeOracle {
	api := params.api
	if api == nil {
		api = stripeResources{}
	}
	timeout := params.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &StripeOracle{
		api:     api,
		timeout: timeout,
		retry:   params.Retry,
		metrics: params.Metrics,
	}
}

// CreateCheckoutSession is not retried: a retry could open a second session.
func (o *StripeOracle) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	metadata := map[string]string{
		MetadataUserID:      req.UserID,
		MetadataProductName: req.ProductName,
	}
	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(req.PriceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL:        stripe.String(req.SuccessURL),
		CancelURL:         stripe.String(req.CancelURL),
		ClientReferenceID: stripe.String(req.UserID),
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: metadata,
		},
		Metadata: metadata,
	}
	if req.TrialDays > 0 {
		params.SubscriptionData.TrialPeriodDays = stripe.Int64(req.TrialDays)
	}

	var created *stripe.CheckoutSession
	err := o.call(ctx, "checkout_session.create", nil, func(ctx context.Context) error {
		params.Context = ctx
		var err error
		created, err = o.api.NewSession(params)
		return err
	})
	if err != nil {
		return nil, pkgerrors.Upstream(err, "create checkout session")
	}
	return toCheckoutSession(created), nil
}

func (o *StripeOracle) GetCheckoutSession(ctx context.Context, sessionID string) (*CheckoutSession, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "session id is required")
	}

	var found *stripe.CheckoutSession
	err := o.call(ctx, "checkout_session.get", isTransient, func(ctx context.Context) error {
		params := &stripe.CheckoutSessionParams{}
		params.Context = ctx
		var err error
		found, err = o.api.GetSession(sessionID, params)
		return err
	})
	if err != nil {
		if isNotFound(err) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "checkout session not found")
		}
		return nil, pkgerrors.Upstream(err, "retrieve checkout session")
	}
	return toCheckoutSession(found), nil
}

func (o *StripeOracle) GetSubscriptionStatus(ctx context.Context, subscriptionID string) (*SubscriptionStatus, error) {
	subscriptionID = strings.TrimSpace(subscriptionID)
	if subscriptionID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "subscription id is required")
	}

	var found *stripe.Subscription
	err := o.call(ctx, "subscription.get", isTransient, func(ctx context.Context) error {
		params := &stripe.SubscriptionParams{}
		params.Context = ctx
		var err error
		found, err = o.api.GetSubscription(subscriptionID, params)
		return err
	})
	if err != nil {
		if isNotFound(err) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "subscription not found")
		}
		return nil, pkgerrors.Upstream(err, "retrieve subscription")
	}
	return toSubscriptionStatus(found), nil
}

// call bounds every attempt by the per-call timeout. A nil transient
// classifier disables retries.
func (o *StripeOracle) call(ctx context.Context, op string, transient func(error) bool, fn func(context.Context) error) error {
	started := time.Now()
	attempt := func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, o.timeout)
		defer cancel()
		return fn(callCtx)
	}

	var err error
	if transient == nil {
		err = attempt(ctx)
	} else {
		err = retry.Do(ctx, o.retry, transient, attempt)
	}
	o.metrics.Observe(metrics.ProviderStripe, op, started, err)
	return err
}

func isTransient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		return stripeErr.HTTPStatusCode == http.StatusTooManyRequests || stripeErr.HTTPStatusCode >= http.StatusInternalServerError
	}
	// Transport failures never reach Stripe and carry no status.
	return true
}

func isNotFound(err error) bool {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		return stripeErr.HTTPStatusCode == http.StatusNotFound
	}
	return false
}

func toCheckoutSession(s *stripe.CheckoutSession) *CheckoutSession {
	if s == nil {
		return nil
	}
	out := &CheckoutSession{
		ID:                s.ID,
		URL:               s.URL,
		Status:            string(s.Status),
		ClientReferenceID: s.ClientReferenceID,
		Metadata:          s.Metadata,
	}
	if s.Subscription != nil {
		out.SubscriptionID = s.Subscription.ID
	}
	return out
}

func toSubscriptionStatus(s *stripe.Subscription) *SubscriptionStatus {
	if s == nil {
		return nil
	}
	out := &SubscriptionStatus{
		ID:                s.ID,
		Status:            string(s.Status),
		CancelAtPeriodEnd: s.CancelAtPeriodEnd,
	}
	if s.TrialEnd > 0 {
		trialEnd := time.Unix(s.TrialEnd, 0).UTC()
		out.TrialEnd = &trialEnd
	}
	return out
}
