package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/angelmondragon/omni-backend/api/middleware"
	"github.com/angelmondragon/omni-backend/api/responses"
	"github.com/angelmondragon/omni-backend/api/validators"
	"github.com/angelmondragon/omni-backend/internal/checkout"
	"github.com/angelmondragon/omni-backend/pkg/catalog"
	"github.com/angelmondragon/omni-backend/pkg/db/models"
	"github.com/angelmondragon/omni-backend/pkg/logger"
)

type checkoutService interface {
	Initiate(ctx context.Context, input checkout.InitiateInput) (string, error)
	Complete(ctx context.Context, input checkout.CompleteInput) (*models.ProductEntitlement, error)
}

// Purchase starts a hosted checkout and redirects the browser to it.
func Purchase(svc checkoutService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID, err := validators.RequireQuery(r, "user_id")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		redirect, err := svc.Initiate(ctx, checkout.InitiateInput{
			UserID:      userID,
			ProductName: productName(r),
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteRedirect(w, r, redirect)
	}
}

// CompletePurchase records the entitlement for a finished checkout and
// sends the browser home.
func CompletePurchase(svc checkoutService, home string, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		q := r.URL.Query()
		_, err := svc.Complete(ctx, checkout.CompleteInput{
			UserID:      q.Get("user_id"),
			SessionID:   q.Get("session_id"),
			ProductName: productName(r),
			State:       q.Get("state"),
			Caller:      middleware.UserFromContext(ctx),
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteRedirect(w, r, home)
	}
}

// productName reads the optional product_name query parameter.
func productName(r *http.Request) string {
	if name := strings.TrimSpace(r.URL.Query().Get("product_name")); name != "" {
		return name
	}
	return catalog.DefaultProduct
}
