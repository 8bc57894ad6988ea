package checkout

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/angelmondragon/omni-backend/internal/billing"
	"github.com/angelmondragon/omni-backend/internal/entitlements"
	"github.com/angelmondragon/omni-backend/internal/identity"
	pkgauth "github.com/angelmondragon/omni-backend/pkg/auth"
	"github.com/angelmondragon/omni-backend/pkg/catalog"
	"github.com/angelmondragon/omni-backend/pkg/config"
	"github.com/angelmondragon/omni-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/omni-backend/pkg/errors"
	"github.com/angelmondragon/omni-backend/pkg/logger"
)

const (
	completePath = "complete-purchase"
	// Stripe substitutes this placeholder with the session id on redirect.
	sessionPlaceholder = "{CHECKOUT_SESSION_ID}"
)

type cacheInvalidator interface {
	Invalidate(ctx context.Context, userID, productName string) error
}

// ServiceParams groups dependencies for the checkout service.
type ServiceParams struct {
	Config       config.CheckoutConfig
	App          config.AppConfig
	Catalog      *catalog.Catalog
	Billing      billing.Oracle
	Entitlements entitlements.Store
	Nonces       NonceStore
	Invalidator  cacheInvalidator
	Logger       *logger.Logger
	Now          func() time.Time
}

// Service runs the redirect-driven checkout protocol.
type Service struct {
	cfg          config.CheckoutConfig
	app          config.AppConfig
	catalog      *catalog.Catalog
	billing      billing.Oracle
	entitlements entitlements.Store
	nonces       NonceStore
	invalidator  cacheInvalidator
	logg         *logger.Logger
	now          func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Catalog == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "catalog required")
	}
	if params.Billing == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "billing oracle required")
	}
	if params.Entitlements == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "entitlement store required")
	}
	if params.Config.RequireState && params.Config.StateSecret == "" {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "checkout state secret required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &Service{
		cfg:          params.Config,
		app:          params.App,
		catalog:      params.Catalog,
		billing:      params.Billing,
		entitlements: params.Entitlements,
		nonces:       params.Nonces,
		invalidator:  params.Invalidator,
		logg:         logg,
		now:          now,
	}, nil
}

// InitiateInput identifies who is buying what.
type InitiateInput struct {
	UserID      string
	ProductName string
}

// Initiate opens a hosted checkout session and returns the URL the end
// user must be redirected to. No local state changes.
func (s *Service) Initiate(ctx context.Context, input InitiateInput) (string, error) {
	userID := strings.TrimSpace(input.UserID)
	if userID == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "user_id is required")
	}
	product, ok := s.catalog.Lookup(input.ProductName)
	if !ok {
		return "", pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}

	query := url.Values{}
	query.Set("user_id", userID)
	query.Set("product_name", product.Name)
	if s.cfg.StateSecret != "" {
		state, _, err := pkgauth.MintState(s.cfg.StateSecret, s.cfg.StateTTL, s.now(), pkgauth.StatePayload{
			UserID:      userID,
			ProductName: product.Name,
		})
		if err != nil {
			return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint checkout state")
		}
		query.Set("state", state)
	}
	successURL := s.app.URL(completePath) + "?session_id=" + sessionPlaceholder + "&" + query.Encode()

	session, err := s.billing.CreateCheckoutSession(ctx, billing.CheckoutRequest{
		UserID:      userID,
		ProductName: product.Name,
		PriceID:     product.PriceID,
		SuccessURL:  successURL,
		CancelURL:   s.app.HomeURL(),
		TrialDays:   s.cfg.TrialDays,
	})
	if err != nil {
		return "", err
	}
	if session == nil || session.URL == "" {
		return "", pkgerrors.New(pkgerrors.CodeDependency, "checkout session has no url")
	}
	return session.URL, nil
}

// CompleteInput carries the redirect query plus the optional caller
// resolved from a bearer credential.
type CompleteInput struct {
	UserID      string
	SessionID   string
	ProductName string
	State       string
	Caller      *identity.User
}

// Complete verifies the finished session and records the entitlement.
// Repeating it with the same session rewrites the same reference.
func (s *Service) Complete(ctx context.Context, input CompleteInput) (*models.ProductEntitlement, error) {
	userID := strings.TrimSpace(input.UserID)
	sessionID := strings.TrimSpace(input.SessionID)
	if userID == "" || sessionID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user_id and session_id are required")
	}
	product, ok := s.catalog.Lookup(input.ProductName)
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	if input.Caller != nil && input.Caller.ID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "checkout belongs to another user")
	}

	var claims *pkgauth.StateClaims
	if s.cfg.RequireState {
		parsed, err := pkgauth.ParseState(s.cfg.StateSecret, strings.TrimSpace(input.State))
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid checkout state")
		}
		if parsed.UserID != userID || parsed.ProductName != product.Name {
			return nil, pkgerrors.New(pkgerrors.CodeForbidden, "checkout state does not match request")
		}
		claims = parsed
	}

	session, err := s.billing.GetCheckoutSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := s.verifySession(session, userID); err != nil {
		return nil, err
	}

	if claims != nil && s.nonces != nil {
		ttl := claims.ExpiresAt.Time.Sub(s.now())
		if ttl < time.Minute {
			ttl = time.Minute
		}
		ok, err := s.nonces.Claim(ctx, claims.Nonce, session.ID, ttl)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim checkout state")
		}
		if !ok {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "checkout state already used")
		}
	}

	row, err := s.entitlements.Upsert(ctx, userID, product.Name, session.SubscriptionID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save entitlement")
	}

	if s.invalidator != nil {
		if err := s.invalidator.Invalidate(ctx, userID, product.Name); err != nil {
			s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "entitlement cache invalidation failed")
		}
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"user_id":         userID,
		"product_name":    product.Name,
		"subscription_id": session.SubscriptionID,
	}), "checkout completed")
	return row, nil
}

func (s *Service) verifySession(session *billing.CheckoutSession, userID string) error {
	if session == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "checkout session missing")
	}
	if s.cfg.RequireState {
		if !session.Complete() {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "checkout session is not complete").
				WithDetails(map[string]any{"status": session.Status})
		}
		if session.ClientReferenceID != userID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "checkout session belongs to another user")
		}
	}
	if strings.TrimSpace(session.SubscriptionID) == "" {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "checkout session has no subscription")
	}
	return nil
}
