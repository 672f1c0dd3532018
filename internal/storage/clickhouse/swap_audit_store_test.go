package clickhouse

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-copy-trader/internal/domain"
	"solana-copy-trader/internal/storage"
)

func TestSwapAuditStore_InsertAndGet(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewSwapAuditStore(conn)

	e := &domain.SwapEvent{
		Wallet:       "Wallet1",
		TxSignature:  "sig1",
		Slot:         100,
		BlockTime:    1000,
		InputMint:    domain.WSOLMint,
		InputAmount:  1.0,
		OutputMint:   "MintA",
		OutputAmount: 500,
		Direction:    domain.DirectionBuy,
		Venue:        "Raydium AMM",
		FeeSOL:       0.000005,
		Success:      true,
	}

	require.NoError(t, store.Insert(ctx, e))

	got, err := store.GetByWallet(ctx, "Wallet1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, *e, *got[0])
}

func TestSwapAuditStore_DuplicateKey(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewSwapAuditStore(conn)

	e := &domain.SwapEvent{Wallet: "Wallet1", TxSignature: "sig1", BlockTime: 1000}
	require.NoError(t, store.Insert(ctx, e))

	err := store.Insert(ctx, e)
	assert.True(t, errors.Is(err, storage.ErrDuplicateKey))
}

func TestSwapAuditStore_OrderingAndCount(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewSwapAuditStore(conn)

	events := []*domain.SwapEvent{
		{Wallet: "Wallet1", TxSignature: "sig3", BlockTime: 3000},
		{Wallet: "Wallet1", TxSignature: "sig1", BlockTime: 1000},
		{Wallet: "Wallet2", TxSignature: "sig2", BlockTime: 500},
	}
	for _, e := range events {
		require.NoError(t, store.Insert(ctx, e))
	}

	got, err := store.GetByWallet(ctx, "Wallet1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "sig1", got[0].TxSignature)
	assert.Equal(t, "sig3", got[1].TxSignature)

	n, err := store.CountByWallet(ctx, "Wallet1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}
