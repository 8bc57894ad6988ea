package controllers

import (
	"context"
	"net/http"

	"github.com/angelmondragon/omni-backend/api/middleware"
	"github.com/angelmondragon/omni-backend/api/responses"
	"github.com/angelmondragon/omni-backend/api/validators"
	"github.com/angelmondragon/omni-backend/pkg/logger"
	"github.com/angelmondragon/omni-backend/pkg/types"
)

type settingsService interface {
	Get(ctx context.Context, userID, productName string, def map[string]any) (map[string]any, error)
	Set(ctx context.Context, userID, productName string, value map[string]any) error
}

func SettingsGet(svc settingsService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		settings, err := svc.Get(ctx, middleware.UserIDFromContext(ctx), productName(r), nil)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, settings)
	}
}

// SettingsSet replaces the stored object with the request body.
func SettingsSet(svc settingsService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		body, err := validators.DecodeJSONObject(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if err := svc.Set(ctx, middleware.UserIDFromContext(ctx), productName(r), body); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, types.OK())
	}
}
