package middleware

import (
	"context"
	"net/http"

	"github.com/angelmondragon/omni-backend/api/responses"
	"github.com/angelmondragon/omni-backend/internal/billing"
	"github.com/angelmondragon/omni-backend/pkg/logger"
)

type productChecker interface {
	Product() string
	CheckUser(ctx context.Context, userID string) (*billing.SubscriptionStatus, error)
}

// RequireProductSubscription admits only callers entitled to the guard's
// product. Must run after Auth.
func RequireProductSubscription(guard productChecker, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if logg != nil {
				ctx = logg.WithProduct(ctx, guard.Product())
			}
			status, err := guard.CheckUser(ctx, UserIDFromContext(ctx))
			if err != nil {
				responses.WriteError(ctx, logg, w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithSubscription(ctx, status)))
		})
	}
}
