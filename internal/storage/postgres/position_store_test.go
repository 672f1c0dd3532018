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

func createTestPosition(id string, entryTime int64, status domain.PositionStatus) *domain.Position {
	return &domain.Position{
		ID:               id,
		Mint:             "MintA",
		Symbol:           "TOK",
		EntryPrice:       0.002,
		EntrySpendSOL:    1.0,
		EntryTokenAmount: 500,
		EntryTime:        entryTime,
		EntrySignature:   "entrysig-" + id,
		TakeProfitPct:    50,
		StopLossPct:      25,
		CurrentPrice:     0.002,
		Status:           status,
	}
}

func TestPositionStore_UpsertAndGetByID(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewPositionStore(pool)

	p := createTestPosition("pos-001", 1000, domain.PositionOpen)
	require.NoError(t, store.Upsert(ctx, p))

	got, err := store.GetByID(ctx, "pos-001")
	require.NoError(t, err)
	assert.Equal(t, *p, *got)
}

func TestPositionStore_GetByID_NotFound(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewPositionStore(pool)

	_, err := store.GetByID(context.Background(), "missing")
	assert.True(t, errors.Is(err, storage.ErrNotFound))
}

func TestPositionStore_UpsertTransition(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewPositionStore(pool)

	p := createTestPosition("pos-001", 1000, domain.PositionOpen)
	require.NoError(t, store.Upsert(ctx, p))

	p.Status = domain.PositionTPHit
	p.CurrentPrice = 0.0031
	p.ExitPrice = 0.0031
	p.ExitTime = 2000
	p.ExitSignature = "exitsig"
	require.NoError(t, store.Upsert(ctx, p))

	got, err := store.GetByID(ctx, "pos-001")
	require.NoError(t, err)
	assert.Equal(t, domain.PositionTPHit, got.Status)
	assert.Equal(t, 0.0031, got.ExitPrice)
	assert.Equal(t, "exitsig", got.ExitSignature)
}

func TestPositionStore_GetOpen(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewPositionStore(pool)

	require.NoError(t, store.Upsert(ctx, createTestPosition("pos-1", 3000, domain.PositionOpen)))
	require.NoError(t, store.Upsert(ctx, createTestPosition("pos-2", 1000, domain.PositionSLHit)))
	require.NoError(t, store.Upsert(ctx, createTestPosition("pos-3", 2000, domain.PositionOpen)))

	open, err := store.GetOpen(ctx)
	require.NoError(t, err)
	require.Len(t, open, 2)
	assert.Equal(t, "pos-3", open[0].ID)
	assert.Equal(t, "pos-1", open[1].ID)

	all, err := store.GetAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}
