package settings

import (
	"context"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/angelmondragon/omni-backend/internal/repo"
	"github.com/angelmondragon/omni-backend/pkg/db"
	"github.com/angelmondragon/omni-backend/pkg/db/models"
)

// Repository persists settings blobs keyed by (user, product).
type Repository struct {
	repo.Base
	now func() time.Time
}

func NewRepository(conn *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(conn), now: time.Now}
}

// Find returns nil when nothing was stored yet.
func (r *Repository) Find(ctx context.Context, userID, productName string) (*models.UserSetting, error) {
	var row models.UserSetting
	err := r.DB(ctx).
		Where("user_id = ? AND product_name = ?", userID, productName).
		First(&row).Error
	if db.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// Upsert replaces the whole blob in one statement.
func (r *Repository) Upsert(ctx context.Context, userID, productName string, blob datatypes.JSON) error {
	now := r.now().UTC()
	row := &models.UserSetting{
		UserID:      userID,
		ProductName: productName,
		Settings:    blob,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	return r.Base.Upsert(ctx, row, []string{"user_id", "product_name"}, []string{"settings", "updated_at"})
}
