package entitlements

import (
	"context"
	"strings"

	"github.com/angelmondragon/omni-backend/internal/billing"
	"github.com/angelmondragon/omni-backend/internal/identity"
	pkgerrors "github.com/angelmondragon/omni-backend/pkg/errors"
	"github.com/angelmondragon/omni-backend/pkg/logger"
)

// GuardParams groups dependencies for the entitlement guard.
type GuardParams struct {
	Identity identity.Gateway
	Store    Store
	Billing  billing.Oracle
	Cache    StatusCache
	Logger   *logger.Logger
}

// Guard admits a caller to a product only while its subscription is active
// or trialing.
type Guard struct {
	identity identity.Gateway
	store    Store
	billing  billing.Oracle
	cache    StatusCache
	logg     *logger.Logger
}

// NewGuard builds the guard. Cache is optional.
func NewGuard(params GuardParams) (*Guard, error) {
	if params.Identity == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "identity gateway required")
	}
	if params.Store == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "entitlement store required")
	}
	if params.Billing == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "billing oracle required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &Guard{
		identity: params.Identity,
		store:    params.Store,
		billing:  params.Billing,
		cache:    params.Cache,
		logg:     logg,
	}, nil
}

// Check resolves the credential and then checks the caller's entitlement.
func (g *Guard) Check(ctx context.Context, credential, productName string) (*identity.User, *billing.SubscriptionStatus, error) {
	user, err := g.identity.Verify(ctx, credential)
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil {
			return nil, nil, typed
		}
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token")
	}
	status, err := g.CheckUser(ctx, user.ID, productName)
	if err != nil {
		return nil, nil, err
	}
	return user, status, nil
}

// CheckUser checks an already authenticated user.
func (g *Guard) CheckUser(ctx context.Context, userID, productName string) (*billing.SubscriptionStatus, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}

	row, err := g.store.Find(ctx, userID, productName)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load entitlement")
	}
	if row == nil || strings.TrimSpace(row.StripeSubscriptionID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodePaymentRequired, "no subscription for product")
	}

	if g.cache != nil {
		if cached, ok := g.cache.Get(ctx, userID, productName); ok && cached.ID == row.StripeSubscriptionID {
			return admit(cached)
		}
	}

	status, err := g.billing.GetSubscriptionStatus(ctx, row.StripeSubscriptionID)
	if err != nil {
		logCtx := g.logg.WithFields(ctx, map[string]any{
			"product_name":    productName,
			"subscription_id": row.StripeSubscriptionID,
		})
		g.logg.Error(logCtx, "subscription status lookup failed", err)
		return nil, pkgerrors.Wrap(pkgerrors.CodePaymentRequired, err, "subscription status unavailable")
	}
	if g.cache != nil {
		g.cache.Set(ctx, userID, productName, status)
	}
	return admit(status)
}

// Invalidate drops any cached status for the pair.
func (g *Guard) Invalidate(ctx context.Context, userID, productName string) error {
	if g == nil || g.cache == nil {
		return nil
	}
	return g.cache.Invalidate(ctx, userID, productName)
}

// ForProduct returns the guard bound to one product.
func (g *Guard) ForProduct(productName string) ProductGuard {
	return ProductGuard{guard: g, product: productName}
}

// ProductGuard is a guard bound to a single product name.
type ProductGuard struct {
	guard   *Guard
	product string
}

func (p ProductGuard) Product() string {
	return p.product
}

func (p ProductGuard) Check(ctx context.Context, credential string) (*identity.User, *billing.SubscriptionStatus, error) {
	return p.guard.Check(ctx, credential, p.product)
}

func (p ProductGuard) CheckUser(ctx context.Context, userID string) (*billing.SubscriptionStatus, error) {
	return p.guard.CheckUser(ctx, userID, p.product)
}

func admit(status *billing.SubscriptionStatus) (*billing.SubscriptionStatus, error) {
	if !status.Entitled() {
		state := ""
		if status != nil {
			state = status.Status
		}
		return nil, pkgerrors.New(pkgerrors.CodePaymentRequired, "subscription is not active").
			WithDetails(map[string]any{"status": state})
	}
	return status, nil
}
