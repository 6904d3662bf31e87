//go:build integration

package mongostore

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/0xmhha/ownershipworker/internal/classify"
)

// These tests run against a real MongoDB instance, gated behind the
// `integration` build tag and MONGO_TEST_URI, matching the convention of
// not exercising networked dependencies in the default test run.
func requireTestStore(t *testing.T) *Store {
	t.Helper()
	uri := os.Getenv("MONGO_TEST_URI")
	if uri == "" {
		t.Skip("MONGO_TEST_URI not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	store, err := Connect(ctx, uri, testDBName(), zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, store.Ping(ctx))
	t.Cleanup(func() {
		_ = store.db.Drop(context.Background())
		_ = store.Close(context.Background())
	})
	return store
}

func testDBName() string {
	return "ownershipworker_test"
}

func TestStoreClassificationRoundTrip(t *testing.T) {
	store := requireTestStore(t)
	ctx := context.Background()
	addr := common.HexToAddress("0x1111111111111111111111111111111111111111")

	_, ok, err := store.Get(ctx, addr)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, store.Upsert(ctx, classify.Classification{Address: addr, Standard: classify.StandardERC721}))

	standard, ok, err := store.Get(ctx, addr)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, classify.StandardERC721, standard)
}

func TestStoreIncBalanceAccumulates(t *testing.T) {
	store := requireTestStore(t)
	ctx := context.Background()
	contract := common.HexToAddress("0x2222222222222222222222222222222222222222")
	owner := common.HexToAddress("0x3333333333333333333333333333333333333333")

	require.NoError(t, store.IncBalance(ctx, contract, owner, "", decimal.NewFromInt(100)))
	require.NoError(t, store.IncBalance(ctx, contract, owner, "", decimal.NewFromInt(-40)))

	var doc tokenOwnershipDoc
	err := store.ownerships.FindOne(ctx, map[string]interface{}{
		"contract_address": normalizeAddress(contract),
		"owner":             normalizeAddress(owner),
		"token_id":          "",
	}).Decode(&doc)
	require.NoError(t, err)
	require.Equal(t, "60", doc.Quantity.String())
}

func TestStoreCursorPersistence(t *testing.T) {
	store := requireTestStore(t)
	ctx := context.Background()

	_, ok, err := store.GetCursor(ctx)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, store.SaveCursor(ctx, 14282099))

	n, ok, err := store.GetCursor(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(14282099), n)
}
