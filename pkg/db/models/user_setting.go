package models

import (
	"time"

	"gorm.io/datatypes"
)

// UserSetting stores one opaque JSON settings object per user and product.
type UserSetting struct {
	UserID      string         `gorm:"column:user_id;primaryKey"`
	ProductName string         `gorm:"column:product_name;primaryKey"`
	Settings    datatypes.JSON `gorm:"column:settings;not null"`
	CreatedAt   time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}

func (UserSetting) TableName() string { return "user_settings" }
