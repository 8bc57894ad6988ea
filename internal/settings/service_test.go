package settings

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/omni-backend/pkg/db/dbtest"
	pkgerrors "github.com/angelmondragon/omni-backend/pkg/errors"
)

func newService(t *testing.T) *Service {
	t.Helper()
	svc, err := NewService(NewRepository(dbtest.Open(t)))
	require.NoError(t, err)
	return svc
}

func TestGetNeverWrittenReturnsDefault(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	got, err := svc.Get(ctx, "u1", "writer", nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{}, got)

	got, err = svc.Get(ctx, "u1", "writer", map[string]any{"theme": "dark"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"theme": "dark"}, got)
}

func TestSetReplacesWholeObject(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	require.NoError(t, svc.Set(ctx, "u1", "writer", map[string]any{"theme": "dark", "size": float64(12)}))
	require.NoError(t, svc.Set(ctx, "u1", "writer", map[string]any{"tone": "formal"}))

	got, err := svc.Get(ctx, "u1", "writer", nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"tone": "formal"}, got)

	other, err := svc.Get(ctx, "u2", "writer", nil)
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestSettingsAreProductScoped(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	require.NoError(t, svc.Set(ctx, "u1", "writer", map[string]any{"a": true}))

	got, err := svc.Get(ctx, "u1", "reader", nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSettingsRequireUser(t *testing.T) {
	svc := newService(t)
	_, err := svc.Get(context.Background(), "", "writer", nil)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))
}
