package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-copy-trader/internal/domain"
	"solana-copy-trader/internal/storage"
)

func TestTrackedWalletStore_UpsertAndGet(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewTrackedWalletStore(pool)

	w := &domain.TrackedWallet{
		Address:        "7xKXtg2CW87d97TXJSDpbD5jBkheTqA83TZRuJosgAsU",
		Label:          "whale-1",
		AddedAt:        1700000000,
		CopyPercentage: 25,
	}

	require.NoError(t, store.Upsert(ctx, w))

	got, err := store.GetByAddress(ctx, w.Address)
	require.NoError(t, err)
	assert.Equal(t, "whale-1", got.Label)
	assert.Equal(t, 25.0, got.CopyPercentage)
}

func TestTrackedWalletStore_UpsertUpdatesCounters(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewTrackedWalletStore(pool)

	w := &domain.TrackedWallet{Address: "WalletA", AddedAt: 1000}
	require.NoError(t, store.Upsert(ctx, w))

	w.SwapsDetected = 5
	w.Buys = 3
	w.Sells = 2
	w.LastActivity = 2000
	require.NoError(t, store.Upsert(ctx, w))

	got, err := store.GetByAddress(ctx, "WalletA")
	require.NoError(t, err)
	assert.Equal(t, int64(5), got.SwapsDetected)
	assert.Equal(t, int64(3), got.Buys)
	assert.Equal(t, int64(2), got.Sells)
}

func TestTrackedWalletStore_Delete(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewTrackedWalletStore(pool)

	require.NoError(t, store.Upsert(ctx, &domain.TrackedWallet{Address: "WalletA"}))
	require.NoError(t, store.Delete(ctx, "WalletA"))

	_, err := store.GetByAddress(ctx, "WalletA")
	assert.True(t, errors.Is(err, storage.ErrNotFound))

	err = store.Delete(ctx, "WalletA")
	assert.True(t, errors.Is(err, storage.ErrNotFound))
}

func TestTrackedWalletStore_GetAllOrdered(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewTrackedWalletStore(pool)

	for _, addr := range []string{"C", "A", "B"} {
		require.NoError(t, store.Upsert(ctx, &domain.TrackedWallet{Address: addr}))
	}

	all, err := store.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "A", all[0].Address)
	assert.Equal(t, "B", all[1].Address)
	assert.Equal(t, "C", all[2].Address)
}
