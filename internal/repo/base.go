package repo

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Base provides a shared foundation for domain repositories.
type Base struct {
	db *gorm.DB
}

// NewBase constructs a Base repository backed by the provided GORM connection.
func NewBase(db *gorm.DB) Base {
	return Base{db: db}
}

// DB returns the GORM connection bound to the supplied context (if any).
func (b Base) DB(ctx context.Context) *gorm.DB {
	if ctx == nil {
		return b.db
	}
	return b.db.WithContext(ctx)
}

// Upsert inserts value or, when a row with the same key columns exists,
// overwrites updateColumns in a single statement.
func (b Base) Upsert(ctx context.Context, value any, keyColumns []string, updateColumns []string) error {
	conflict := make([]clause.Column, 0, len(keyColumns))
	for _, name := range keyColumns {
		conflict = append(conflict, clause.Column{Name: name})
	}
	return b.DB(ctx).
		Clauses(clause.OnConflict{
			Columns:   conflict,
			DoUpdates: clause.AssignmentColumns(updateColumns),
		}).
		Create(value).Error
}
