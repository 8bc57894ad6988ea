package models

import "time"

// ProductEntitlement links a user to the Stripe subscription that pays for a
// product. (user_id, product_name) is the natural key.
type ProductEntitlement struct {
	UserID               string    `gorm:"column:user_id;primaryKey"`
	ProductName          string    `gorm:"column:product_name;primaryKey"`
	StripeSubscriptionID string    `gorm:"column:stripe_subscription_id;not null;index"`
	CreatedAt            time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (ProductEntitlement) TableName() string { return "user_products" }
