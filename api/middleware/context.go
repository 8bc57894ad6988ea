package middleware

import (
	"context"

	"github.com/angelmondragon/omni-backend/internal/billing"
	"github.com/angelmondragon/omni-backend/internal/identity"
)

type contextKey string

const (
	ctxUser         contextKey = "user"
	ctxSubscription contextKey = "subscription"
)

// WithUser injects the authenticated user into the context.
func WithUser(ctx context.Context, user *identity.User) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxUser, user)
}

func UserFromContext(ctx context.Context) *identity.User {
	if ctx == nil {
		return nil
	}
	if v, ok := ctx.Value(ctxUser).(*identity.User); ok {
		return v
	}
	return nil
}

func UserIDFromContext(ctx context.Context) string {
	if user := UserFromContext(ctx); user != nil {
		return user.ID
	}
	return ""
}

// WithSubscription stores the live status admitted by the entitlement guard.
func WithSubscription(ctx context.Context, status *billing.SubscriptionStatus) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxSubscription, status)
}

func SubscriptionFromContext(ctx context.Context) *billing.SubscriptionStatus {
	if ctx == nil {
		return nil
	}
	if v, ok := ctx.Value(ctxSubscription).(*billing.SubscriptionStatus); ok {
		return v
	}
	return nil
}
