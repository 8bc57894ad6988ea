package models

// All lists every persisted model, in creation order.
func All() []any {
	return []any{
		&ProductEntitlement{},
		&UserSetting{},
		&UserItem{},
	}
}
