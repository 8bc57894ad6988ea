package controllers

import (
	"context"
	"net/http"

	"github.com/angelmondragon/omni-backend/api/middleware"
	"github.com/angelmondragon/omni-backend/api/responses"
	"github.com/angelmondragon/omni-backend/api/validators"
	"github.com/angelmondragon/omni-backend/internal/suggest"
	pkgerrors "github.com/angelmondragon/omni-backend/pkg/errors"
	"github.com/angelmondragon/omni-backend/pkg/logger"
)

type suggestService interface {
	Suggest(ctx context.Context, userID, itemID string, input suggest.Input) (*suggest.Result, error)
}

type suggestRequest struct {
	Content     *string `json:"content"`
	SaveContent bool    `json:"save_content"`
}

// ItemSuggest predicts a continuation of the posted text. A nil service
// means no completion provider is configured.
func ItemSuggest(svc suggestService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeDependency, "completion provider not configured"))
			return
		}
		var req suggestRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if req.Content == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "content is required").WithDetails(map[string]any{"field": "content"}))
			return
		}
		result, err := svc.Suggest(ctx, middleware.UserIDFromContext(ctx), itemID(r), suggest.Input{
			Content:     *req.Content,
			SaveContent: req.SaveContent,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
