package stripewebhook

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/stripe/stripe-go/v84"

	"github.com/angelmondragon/omni-backend/internal/billing"
	"github.com/angelmondragon/omni-backend/internal/entitlements"
	"github.com/angelmondragon/omni-backend/pkg/catalog"
	pkgerrors "github.com/angelmondragon/omni-backend/pkg/errors"
	"github.com/angelmondragon/omni-backend/pkg/logger"
)

type cacheInvalidator interface {
	Invalidate(ctx context.Context, userID, productName string) error
}

type ServiceParams struct {
	Entitlements entitlements.Store
	Catalog      *catalog.Catalog
	Invalidator  cacheInvalidator
	Logger       *logger.Logger
}

// Service reconciles local entitlements with Stripe events. It backs up the
// redirect-driven checkout for users who never return to the success URL.
type Service struct {
	entitlements entitlements.Store
	catalog      *catalog.Catalog
	invalidator  cacheInvalidator
	logg         *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Entitlements == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "entitlement store required")
	}
	if params.Catalog == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "catalog required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &Service{
		entitlements: params.Entitlements,
		catalog:      params.Catalog,
		invalidator:  params.Invalidator,
		logg:         logg,
	}, nil
}

func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) error {
	if event == nil || event.Data == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}

	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted:
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode checkout session event")
		}
		return s.recordCheckout(ctx, &session)
	case stripe.EventTypeCustomerSubscriptionUpdated,
		stripe.EventTypeCustomerSubscriptionDeleted:
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode subscription event")
		}
		return s.invalidateSubscription(ctx, sub.ID)
	default:
		return nil
	}
}

func (s *Service) recordCheckout(ctx context.Context, session *stripe.CheckoutSession) error {
	if session.Mode != stripe.CheckoutSessionModeSubscription || session.Status != stripe.CheckoutSessionStatusComplete {
		return nil
	}
	userID := strings.TrimSpace(session.Metadata[billing.MetadataUserID])
	if userID == "" {
		userID = strings.TrimSpace(session.ClientReferenceID)
	}
	productName := strings.TrimSpace(session.Metadata[billing.MetadataProductName])
	if userID == "" || !s.catalog.Has(productName) {
		s.logg.Warn(s.logg.WithField(ctx, "session_id", session.ID), "checkout session without product metadata ignored")
		return nil
	}
	if session.Subscription == nil || session.Subscription.ID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "checkout session has no subscription")
	}

	if _, err := s.entitlements.Upsert(ctx, userID, productName, session.Subscription.ID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save entitlement")
	}
	s.invalidate(ctx, userID, productName)
	return nil
}

func (s *Service) invalidateSubscription(ctx context.Context, subscriptionID string) error {
	if subscriptionID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "subscription id missing")
	}
	rows, err := s.entitlements.ListBySubscription(ctx, subscriptionID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load entitlements")
	}
	for _, row := range rows {
		s.invalidate(ctx, row.UserID, row.ProductName)
	}
	return nil
}

func (s *Service) invalidate(ctx context.Context, userID, productName string) {
	if s.invalidator == nil {
		return
	}
	if err := s.invalidator.Invalidate(ctx, userID, productName); err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "entitlement cache invalidation failed")
	}
}
