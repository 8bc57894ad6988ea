package controllers

import (
	"net/http"

	"github.com/angelmondragon/omni-backend/api/middleware"
	"github.com/angelmondragon/omni-backend/api/responses"
	pkgerrors "github.com/angelmondragon/omni-backend/pkg/errors"
	"github.com/angelmondragon/omni-backend/pkg/logger"
)

// SubscriptionStatus echoes the live status admitted by the entitlement
// middleware.
func SubscriptionStatus(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := middleware.SubscriptionFromContext(r.Context())
		if status == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodePaymentRequired, "subscription required"))
			return
		}
		responses.WriteSuccess(w, status)
	}
}
