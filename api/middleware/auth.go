package middleware

import (
	"context"
	"net/http"

	"github.com/angelmondragon/omni-backend/api/responses"
	"github.com/angelmondragon/omni-backend/internal/identity"
	pkgauth "github.com/angelmondragon/omni-backend/pkg/auth"
	pkgerrors "github.com/angelmondragon/omni-backend/pkg/errors"
	"github.com/angelmondragon/omni-backend/pkg/logger"
)

// Auth requires a bearer credential and seeds the request context with the
// resolved user.
func Auth(gateway identity.Gateway, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := pkgauth.BearerToken(r.Header.Get("Authorization"))
			if token == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}
			user, err := gateway.Verify(r.Context(), token)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(withUser(r, user, logg)))
		})
	}
}

// OptionalAuth resolves a credential when one is sent. A credential that
// fails verification is rejected; a missing one is not.
func OptionalAuth(gateway identity.Gateway, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := pkgauth.BearerToken(r.Header.Get("Authorization"))
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}
			user, err := gateway.Verify(r.Context(), token)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(withUser(r, user, logg)))
		})
	}
}

func withUser(r *http.Request, user *identity.User, logg *logger.Logger) context.Context {
	ctx := WithUser(r.Context(), user)
	if logg != nil {
		ctx = logg.WithUserID(ctx, user.ID)
	}
	return ctx
}
