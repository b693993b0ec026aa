package walletstore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/chronocoders/ecash/ledger"
	"github.com/chronocoders/ecash/token"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "wallet.db")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleToken(denom uint64) token.Token {
	return token.Token{
		SerialNumber:  []byte{1, 2, 3},
		Denomination:  denom,
		Currency:      "USD",
		Signature:     []byte{4, 5, 6},
		IssuedAt:      time.Now().UTC(),
		ExpiresAt:     time.Now().Add(90 * 24 * time.Hour).UTC(),
		InstitutionID: "inst-1",
		KeyID:         "key-1",
	}
}

func TestPutAvailableAndBalance(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	require.NoError(t, s.PutAvailable(ctx, sampleToken(50)))
	require.NoError(t, s.PutAvailable(ctx, sampleToken(100)))

	balance, err := s.Balance(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(150), balance)

	available, err := s.Available(ctx)
	require.NoError(t, err)
	require.Len(t, available, 2)
}

func TestMarkSpentIsTransactional(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	require.NoError(t, s.PutAvailable(ctx, sampleToken(50)))
	require.NoError(t, s.PutAvailable(ctx, sampleToken(50)))

	available, err := s.Available(ctx)
	require.NoError(t, err)
	require.Len(t, available, 2)

	ids := []int64{available[0].ID, available[1].ID}
	require.NoError(t, s.MarkSpent(ctx, ids))

	stillAvailable, err := s.Available(ctx)
	require.NoError(t, err)
	require.Len(t, stillAvailable, 0)
}

func TestAppendTransaction(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	err := s.AppendTransaction(ctx, ledger.TransactionEntry{
		Kind:          ledger.TransactionWithdraw,
		Amount:        50,
		Denomination:  50,
		TokenCount:    1,
		InstitutionID: "inst-1",
		KeyID:         "key-1",
		Status:        "ok",
	})
	require.NoError(t, err)
}
