package entitlements

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/omni-backend/pkg/db/dbtest"
)

func TestRepositoryFindMissingReturnsNil(t *testing.T) {
	repo := NewRepository(dbtest.Open(t))
	row, err := repo.Find(context.Background(), "u1", "writer")
	require.NoError(t, err)
	assert.Nil(t, row)
}

func TestRepositoryUpsertKeepsOneRowPerPair(t *testing.T) {
	ctx := context.Background()
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	clock := time.Date(2025, 4, 1, 12, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return clock }

	_, err := repo.Upsert(ctx, "u1", "writer", "sub_1")
	require.NoError(t, err)
	clock = clock.Add(time.Hour)
	_, err = repo.Upsert(ctx, "u1", "writer", "sub_2")
	require.NoError(t, err)
	_, err = repo.Upsert(ctx, "u2", "writer", "sub_1")
	require.NoError(t, err)

	row, err := repo.Find(ctx, "u1", "writer")
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Equal(t, "sub_2", row.StripeSubscriptionID)
	assert.True(t, row.UpdatedAt.After(row.CreatedAt))

	var count int64
	require.NoError(t, conn.Table("user_products").Count(&count).Error)
	assert.EqualValues(t, 2, count)

	rows, err := repo.ListBySubscription(ctx, "sub_1")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "u2", rows[0].UserID)
}
