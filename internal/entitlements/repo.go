package entitlements

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/omni-backend/internal/repo"
	"github.com/angelmondragon/omni-backend/pkg/db"
	"github.com/angelmondragon/omni-backend/pkg/db/models"
)

var (
	entitlementKey     = []string{"user_id", "product_name"}
	entitlementUpdates = []string{"stripe_subscription_id", "updated_at"}
)

// Store persists the (user, product) -> subscription mapping.
type Store interface {
	Find(ctx context.Context, userID, productName string) (*models.ProductEntitlement, error)
	Upsert(ctx context.Context, userID, productName, subscriptionID string) (*models.ProductEntitlement, error)
	ListBySubscription(ctx context.Context, subscriptionID string) ([]models.ProductEntitlement, error)
}

// Repository implements Store on GORM.
type Repository struct {
	repo.Base
	now func() time.Time
}

// NewRepository binds the repo to the provided GORM connection.
func NewRepository(conn *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(conn), now: time.Now}
}

// Find returns nil when the user has no row for the product.
func (r *Repository) Find(ctx context.Context, userID, productName string) (*models.ProductEntitlement, error) {
	var row models.ProductEntitlement
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

// Upsert writes the subscription reference atomically on the natural key.
func (r *Repository) Upsert(ctx context.Context, userID, productName, subscriptionID string) (*models.ProductEntitlement, error) {
	now := r.now().UTC()
	row := &models.ProductEntitlement{
		UserID:               userID,
		ProductName:          productName,
		StripeSubscriptionID: subscriptionID,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if err := r.Base.Upsert(ctx, row, entitlementKey, entitlementUpdates); err != nil {
		return nil, err
	}
	return row, nil
}

func (r *Repository) ListBySubscription(ctx context.Context, subscriptionID string) ([]models.ProductEntitlement, error) {
	var rows []models.ProductEntitlement
	err := r.DB(ctx).
		Where("stripe_subscription_id = ?", subscriptionID).
		Order("user_id, product_name").
		Find(&rows).Error
	return rows, err
}
