package settings

import (
	"context"
	"encoding/json"
	"strings"

	"gorm.io/datatypes"

	"github.com/angelmondragon/omni-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/omni-backend/pkg/errors"
)

type store interface {
	Find(ctx context.Context, userID, productName string) (*models.UserSetting, error)
	Upsert(ctx context.Context, userID, productName string, blob datatypes.JSON) error
}

// Service reads and writes per-user, per-product settings objects.
type Service struct {
	store store
}

func NewService(s store) (*Service, error) {
	if s == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "settings store required")
	}
	return &Service{store: s}, nil
}

// Get returns the stored object, or def (an empty object when nil) if the
// pair was never written.
func (s *Service) Get(ctx context.Context, userID, productName string, def map[string]any) (map[string]any, error) {
	if err := validateKey(userID, productName); err != nil {
		return nil, err
	}
	row, err := s.store.Find(ctx, userID, productName)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load settings")
	}
	if row == nil || len(row.Settings) == 0 {
		if def == nil {
			def = map[string]any{}
		}
		return def, nil
	}
	out := map[string]any{}
	if err := json.Unmarshal(row.Settings, &out); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decode settings")
	}
	return out, nil
}

// Set replaces the stored object. A nil object is stored as {}.
func (s *Service) Set(ctx context.Context, userID, productName string, value map[string]any) error {
	if err := validateKey(userID, productName); err != nil {
		return err
	}
	if value == nil {
		value = map[string]any{}
	}
	blob, err := json.Marshal(value)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "settings must be a JSON object")
	}
	if err := s.store.Upsert(ctx, userID, productName, datatypes.JSON(blob)); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save settings")
	}
	return nil
}

func validateKey(userID, productName string) error {
	if strings.TrimSpace(userID) == "" {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	if strings.TrimSpace(productName) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "product_name is required")
	}
	return nil
}
