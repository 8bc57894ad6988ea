package items

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/angelmondragon/omni-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/omni-backend/pkg/errors"
)

type store interface {
	List(ctx context.Context, filter ListFilter, p Projection) ([]models.UserItem, error)
	Get(ctx context.Context, userID, itemID string, p Projection) (*models.UserItem, error)
	Create(ctx context.Context, item *models.UserItem) error
	UpdateMeta(ctx context.Context, userID, itemID string, meta datatypes.JSON, now time.Time) (bool, error)
	UpdateContent(ctx context.Context, userID, itemID, content string, now time.Time) (bool, error)
	Delete(ctx context.Context, userID, itemID string) error
}

// CreateInput describes a new item. Meta defaults to {} and content to "".
type CreateInput struct {
	UserID      string
	ProductName string
	ItemType    *string
	Meta        map[string]any
	Content     string
}

// Service exposes scoped CRUD over user items.
type Service struct {
	store store
	now   func() time.Time
	newID func() string
}

func NewService(s store) (*Service, error) {
	if s == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "item store required")
	}
	return &Service{store: s, now: time.Now, newID: uuid.NewString}, nil
}

func (s *Service) List(ctx context.Context, filter ListFilter, p Projection) ([]Item, error) {
	if err := requireUser(filter.UserID); err != nil {
		return nil, err
	}
	rows, err := s.store.List(ctx, filter, p)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list items")
	}
	out := make([]Item, 0, len(rows))
	for _, row := range rows {
		out = append(out, toItem(row, p))
	}
	return out, nil
}

// Get returns NotFound when the user owns no item with that id.
func (s *Service) Get(ctx context.Context, userID, itemID string, p Projection) (*Item, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	row, err := s.store.Get(ctx, userID, itemID, p)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load item")
	}
	if row == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "item not found")
	}
	item := toItem(*row, p)
	return &item, nil
}

func (s *Service) Create(ctx context.Context, input CreateInput) (*Item, error) {
	if err := requireUser(input.UserID); err != nil {
		return nil, err
	}
	if strings.TrimSpace(input.ProductName) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product_name is required")
	}
	meta, err := encodeMeta(input.Meta)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	row := &models.UserItem{
		ItemID:      s.newID(),
		UserID:      input.UserID,
		ProductName: input.ProductName,
		ItemType:    input.ItemType,
		ItemMeta:    meta,
		ItemContent: input.Content,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.Create(ctx, row); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create item")
	}
	item := toItem(*row, Full)
	return &item, nil
}

func (s *Service) SetMeta(ctx context.Context, userID, itemID string, meta map[string]any) error {
	if err := requireUser(userID); err != nil {
		return err
	}
	blob, err := encodeMeta(meta)
	if err != nil {
		return err
	}
	changed, err := s.store.UpdateMeta(ctx, userID, itemID, blob, s.now().UTC())
	return updateResult(changed, err)
}

func (s *Service) SetContent(ctx context.Context, userID, itemID, content string) error {
	if err := requireUser(userID); err != nil {
		return err
	}
	changed, err := s.store.UpdateContent(ctx, userID, itemID, content, s.now().UTC())
	return updateResult(changed, err)
}

// Delete is a no-op for items the user does not own or that are gone.
func (s *Service) Delete(ctx context.Context, userID, itemID string) error {
	if err := requireUser(userID); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, userID, itemID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete item")
	}
	return nil
}

func updateResult(changed bool, err error) error {
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update item")
	}
	if !changed {
		return pkgerrors.New(pkgerrors.CodeNotFound, "item not found")
	}
	return nil
}

func encodeMeta(meta map[string]any) (datatypes.JSON, error) {
	if meta == nil {
		return datatypes.JSON(emptyObject), nil
	}
	blob, err := json.Marshal(meta)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "item_meta must be a JSON object")
	}
	return datatypes.JSON(blob), nil
}

func requireUser(userID string) error {
	if strings.TrimSpace(userID) == "" {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	return nil
}
