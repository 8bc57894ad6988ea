package items

import (
	"context"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/angelmondragon/omni-backend/internal/repo"
	"github.com/angelmondragon/omni-backend/pkg/db"
	"github.com/angelmondragon/omni-backend/pkg/db/models"
)

const emptyObject = "{}"

// monotonicUpdatedAt never moves updated_at backwards.
const monotonicUpdatedAt = "CASE WHEN updated_at > ? THEN updated_at ELSE ? END"

// ListFilter narrows a listing to one user and product.
type ListFilter struct {
	UserID      string
	ProductName string
	ItemType    *string
}

// Repository persists user items.
type Repository struct {
	repo.Base
}

func NewRepository(conn *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(conn)}
}

func (r *Repository) List(ctx context.Context, filter ListFilter, p Projection) ([]models.UserItem, error) {
	query := r.DB(ctx).
		Model(&models.UserItem{}).
		Select(p.columns()).
		Where("user_id = ? AND product_name = ?", filter.UserID, filter.ProductName)
	if filter.ItemType != nil {
		query = query.Where("item_type = ?", *filter.ItemType)
	}
	var rows []models.UserItem
	err := query.Order("updated_at DESC").Order("item_id").Find(&rows).Error
	return rows, err
}

// Get returns nil when the user owns no item with that id.
func (r *Repository) Get(ctx context.Context, userID, itemID string, p Projection) (*models.UserItem, error) {
	var row models.UserItem
	err := r.DB(ctx).
		Model(&models.UserItem{}).
		Select(p.columns()).
		Where("user_id = ? AND item_id = ?", userID, itemID).
		Take(&row).Error
	if db.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *Repository) Create(ctx context.Context, item *models.UserItem) error {
	return r.DB(ctx).Create(item).Error
}

// UpdateMeta reports whether a row owned by userID was changed.
func (r *Repository) UpdateMeta(ctx context.Context, userID, itemID string, meta datatypes.JSON, now time.Time) (bool, error) {
	return r.update(ctx, userID, itemID, map[string]any{"item_meta": meta}, now)
}

// UpdateContent reports whether a row owned by userID was changed.
func (r *Repository) UpdateContent(ctx context.Context, userID, itemID, content string, now time.Time) (bool, error) {
	return r.update(ctx, userID, itemID, map[string]any{"item_content": content}, now)
}

func (r *Repository) update(ctx context.Context, userID, itemID string, values map[string]any, now time.Time) (bool, error) {
	values["updated_at"] = gorm.Expr(monotonicUpdatedAt, now, now)
	res := r.DB(ctx).
		Model(&models.UserItem{}).
		Where("user_id = ? AND item_id = ?", userID, itemID).
		Updates(values)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// Delete removes the item only when userID owns it. Missing rows are not
// an error.
func (r *Repository) Delete(ctx context.Context, userID, itemID string) error {
	return r.DB(ctx).
		Where("user_id = ? AND item_id = ?", userID, itemID).
		Delete(&models.UserItem{}).Error
}
