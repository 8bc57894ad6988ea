package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/omni-backend/api/middleware"
	"github.com/angelmondragon/omni-backend/api/responses"
	"github.com/angelmondragon/omni-backend/api/validators"
	"github.com/angelmondragon/omni-backend/internal/items"
	"github.com/angelmondragon/omni-backend/pkg/logger"
	"github.com/angelmondragon/omni-backend/pkg/types"
)

const maxItemTypeLength = 64

type itemService interface {
	List(ctx context.Context, filter items.ListFilter, p items.Projection) ([]items.Item, error)
	Get(ctx context.Context, userID, itemID string, p items.Projection) (*items.Item, error)
	Create(ctx context.Context, input items.CreateInput) (*items.Item, error)
	SetMeta(ctx context.Context, userID, itemID string, meta map[string]any) error
	SetContent(ctx context.Context, userID, itemID, content string) error
	Delete(ctx context.Context, userID, itemID string) error
}

type createItemRequest struct {
	ItemType *string        `json:"item_type" validate:"omitempty,max=64"`
	Meta     map[string]any `json:"meta"`
	Content  *string        `json:"content"`
}

type contentRequest struct {
	Content *string `json:"content"`
}

func ItemList(svc itemService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		projection, err := parseProjection(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		itemType, err := validators.ParseQueryString(r, "item_type", maxItemTypeLength)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		filter := items.ListFilter{
			UserID:      middleware.UserIDFromContext(ctx),
			ProductName: productName(r),
		}
		if itemType != "" {
			filter.ItemType = &itemType
		}
		list, err := svc.List(ctx, filter, projection)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

func ItemGet(svc itemService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		projection, err := parseProjection(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		item, err := svc.Get(ctx, middleware.UserIDFromContext(ctx), itemID(r), projection)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, item)
	}
}

func ItemCreate(svc itemService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		var req createItemRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		input := items.CreateInput{
			UserID:      middleware.UserIDFromContext(ctx),
			ProductName: productName(r),
			ItemType:    req.ItemType,
			Meta:        req.Meta,
		}
		if req.Content != nil {
			input.Content = *req.Content
		}
		item, err := svc.Create(ctx, input)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, item)
	}
}

// ItemSetContent replaces the content. A missing content field clears it.
func ItemSetContent(svc itemService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		var req contentRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		content := ""
		if req.Content != nil {
			content = *req.Content
		}
		if err := svc.SetContent(ctx, middleware.UserIDFromContext(ctx), itemID(r), content); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, types.OK())
	}
}

// ItemSetMeta replaces the meta object with the request body.
func ItemSetMeta(svc itemService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		meta, err := validators.DecodeJSONObject(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if err := svc.SetMeta(ctx, middleware.UserIDFromContext(ctx), itemID(r), meta); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, types.OK())
	}
}

func ItemDelete(svc itemService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if err := svc.Delete(ctx, middleware.UserIDFromContext(ctx), itemID(r)); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, types.OK())
	}
}

func parseProjection(r *http.Request) (items.Projection, error) {
	meta, err := validators.ParseQueryBool(r, "include_meta", false)
	if err != nil {
		return items.Projection{}, err
	}
	content, err := validators.ParseQueryBool(r, "include_content", false)
	if err != nil {
		return items.Projection{}, err
	}
	return items.Projection{Meta: meta, Content: content}, nil
}

func itemID(r *http.Request) string {
	return strings.TrimSpace(chi.URLParam(r, "itemId"))
}
