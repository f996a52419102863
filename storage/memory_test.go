package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tobael/splitledger/crypto"
	"github.com/tobael/splitledger/identity"
	"github.com/tobael/splitledger/ledger"
)

func TestAppendEntryIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	e := ledger.Entry{EntryID: "e1", LamportClock: 1}

	require.NoError(t, s.AppendEntry(ctx, "group-1", e))
	require.NoError(t, s.AppendEntry(ctx, "group-1", e))

	all, err := s.GetAllEntries(ctx, "group-1")
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestGetEntriesAfterFiltersAndOrders(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.AppendEntry(ctx, "group-1", ledger.Entry{EntryID: "e3", LamportClock: 3}))
	require.NoError(t, s.AppendEntry(ctx, "group-1", ledger.Entry{EntryID: "e1", LamportClock: 1}))
	require.NoError(t, s.AppendEntry(ctx, "group-1", ledger.Entry{EntryID: "e2", LamportClock: 2}))

	after, err := s.GetEntriesAfter(ctx, "group-1", 1)
	require.NoError(t, err)
	require.Len(t, after, 2)
	assert.Equal(t, ledger.Entry{EntryID: "e2", LamportClock: 2}, after[0])
	assert.Equal(t, ledger.Entry{EntryID: "e3", LamportClock: 3}, after[1])
}

func TestGetLatestEntry(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	_, ok, err := s.GetLatestEntry(ctx, "group-1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.AppendEntry(ctx, "group-1", ledger.Entry{EntryID: "e1", LamportClock: 1}))
	require.NoError(t, s.AppendEntry(ctx, "group-1", ledger.Entry{EntryID: "e2", LamportClock: 2}))

	latest, ok, err := s.GetLatestEntry(ctx, "group-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, crypto.Hash("e2"), latest.EntryID)
}

func TestGroupStateRoundTripIsACopy(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	state := ledger.NewEmptyGroupState()
	state.GroupID = "group-1"
	require.NoError(t, s.SaveGroupState(ctx, "group-1", state))

	got, ok, err := s.GetGroupState(ctx, "group-1")
	require.NoError(t, err)
	require.True(t, ok)
	got.GroupID = "mutated"

	got2, _, err := s.GetGroupState(ctx, "group-1")
	require.NoError(t, err)
	assert.Equal(t, "group-1", got2.GroupID)
}

func TestStoreRootIdentityRejectsSecondCall(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	root, err := identity.NewRootIdentity()
	require.NoError(t, err)
	require.NoError(t, s.StoreRootIdentity(ctx, root))
	assert.Error(t, s.StoreRootIdentity(ctx, root))

	got, ok, err := s.GetRootIdentity(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, root.PublicKey(), got.PublicKey())
}
