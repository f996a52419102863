// Package storage defines the persistence contract the sync manager is
// built against (§6), and an in-memory reference implementation of it.
// Concrete backends (on-disk, database-backed) are outside this
// specification's scope; only this interface and the reference
// implementation live here.
package storage

import (
	"context"

	"github.com/tobael/splitledger/crypto"
	"github.com/tobael/splitledger/identity"
	"github.com/tobael/splitledger/ledger"
)

// Store is the persistence contract an implementer provides (§6). Every
// operation is safe for concurrent use; AppendEntry is idempotent on
// entry_id.
type Store interface {
	AppendEntry(ctx context.Context, groupID string, entry ledger.Entry) error
	GetEntry(ctx context.Context, entryID crypto.Hash) (ledger.Entry, bool, error)
	GetEntriesAfter(ctx context.Context, groupID string, afterLamportClock int64) ([]ledger.Entry, error)
	GetLatestEntry(ctx context.Context, groupID string) (ledger.Entry, bool, error)
	GetAllEntries(ctx context.Context, groupID string) ([]ledger.Entry, error)
	GetGroupIDs(ctx context.Context) ([]string, error)

	// GetGroupState/SaveGroupState are a cached projection (§9 open
	// question (b)). The sync manager overwrites it with a full replay of
	// the entry log after every accepted entry, but it validates each
	// incoming entry against the cached state and resumes gap-fill from
	// its CurrentLamport; with no cached state it accepts only a Genesis.
	GetGroupState(ctx context.Context, groupID string) (*ledger.GroupState, bool, error)
	SaveGroupState(ctx context.Context, groupID string, state *ledger.GroupState) error

	StoreRootIdentity(ctx context.Context, root identity.RootIdentity) error
	GetRootIdentity(ctx context.Context) (identity.RootIdentity, bool, error)
	StoreDeviceIdentity(ctx context.Context, device identity.DeviceIdentity) error
	GetDeviceIdentity(ctx context.Context) (identity.DeviceIdentity, bool, error)
}
