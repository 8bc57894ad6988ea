package models

import (
	"time"

	"gorm.io/datatypes"
)

// UserItem is a generic typed record scoped to a user and product.
type UserItem struct {
	ItemID      string         `gorm:"column:item_id;primaryKey"`
	UserID      string         `gorm:"column:user_id;not null;index:idx_user_items_scope,priority:1"`
	ProductName string         `gorm:"column:product_name;not null;index:idx_user_items_scope,priority:2"`
	ItemType    *string        `gorm:"column:item_type;index:idx_user_items_scope,priority:3"`
	ItemMeta    datatypes.JSON `gorm:"column:item_meta;not null"`
	ItemContent string         `gorm:"column:item_content;not null;default:''"`
	CreatedAt   time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time      `gorm:"column:updated_at"`
}

func (UserItem) TableName() string { return "user_items" }
