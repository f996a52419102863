package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/tobael/splitledger/crypto"
	"github.com/tobael/splitledger/identity"
	"github.com/tobael/splitledger/ledger"
)

// MemoryStore is an in-memory Store reference implementation, suitable for
// tests and single-process deployments. It is not durable across process
// restarts.
type MemoryStore struct {
	mu sync.Mutex

	entries    map[crypto.Hash]ledger.Entry
	byGroup    map[string][]crypto.Hash
	groupState map[string]*ledger.GroupState

	rootIdentity   *identity.RootIdentity
	deviceIdentity *identity.DeviceIdentity
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries:    make(map[crypto.Hash]ledger.Entry),
		byGroup:    make(map[string][]crypto.Hash),
		groupState: make(map[string]*ledger.GroupState),
	}
}

// AppendEntry records entry under groupID. A second append of an entry_id
// already present is a silent no-op (§5 append-idempotency).
func (s *MemoryStore) AppendEntry(ctx context.Context, groupID string, entry ledger.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.entries[entry.EntryID]; exists {
		return nil
	}
	s.entries[entry.EntryID] = entry
	s.byGroup[groupID] = append(s.byGroup[groupID], entry.EntryID)
	return nil
}

func (s *MemoryStore) GetEntry(ctx context.Context, entryID crypto.Hash) (ledger.Entry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[entryID]
	return e, ok, nil
}

func (s *MemoryStore) GetEntriesAfter(ctx context.Context, groupID string, afterLamportClock int64) ([]ledger.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []ledger.Entry
	for _, id := range s.byGroup[groupID] {
		e := s.entries[id]
		if e.LamportClock > afterLamportClock {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].LamportClock < out[j].LamportClock })
	return out, nil
}

func (s *MemoryStore) GetLatestEntry(ctx context.Context, groupID string) (ledger.Entry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := s.byGroup[groupID]
	if len(ids) == 0 {
		return ledger.Entry{}, false, nil
	}
	latest := s.entries[ids[0]]
	for _, id := range ids[1:] {
		e := s.entries[id]
		if e.LamportClock > latest.LamportClock {
			latest = e
		}
	}
	return latest, true, nil
}

func (s *MemoryStore) GetAllEntries(ctx context.Context, groupID string) ([]ledger.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ledger.Entry, 0, len(s.byGroup[groupID]))
	for _, id := range s.byGroup[groupID] {
		out = append(out, s.entries[id])
	}
	return out, nil
}

func (s *MemoryStore) GetGroupIDs(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.byGroup))
	for g := range s.byGroup {
		out = append(out, g)
	}
	sort.Strings(out)
	return out, nil
}

func (s *MemoryStore) GetGroupState(ctx context.Context, groupID string) (*ledger.GroupState, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.groupState[groupID]
	if !ok {
		return nil, false, nil
	}
	return st.Clone(), true, nil
}

func (s *MemoryStore) SaveGroupState(ctx context.Context, groupID string, state *ledger.GroupState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.groupState[groupID] = state.Clone()
	return nil
}

func (s *MemoryStore) StoreRootIdentity(ctx context.Context, root identity.RootIdentity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rootIdentity != nil {
		return fmt.Errorf("storage: root identity already stored")
	}
	s.rootIdentity = &root
	return nil
}

func (s *MemoryStore) GetRootIdentity(ctx context.Context) (identity.RootIdentity, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rootIdentity == nil {
		return identity.RootIdentity{}, false, nil
	}
	return *s.rootIdentity, true, nil
}

func (s *MemoryStore) StoreDeviceIdentity(ctx context.Context, device identity.DeviceIdentity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deviceIdentity != nil {
		return fmt.Errorf("storage: device identity already stored")
	}
	s.deviceIdentity = &device
	return nil
}

func (s *MemoryStore) GetDeviceIdentity(ctx context.Context) (identity.DeviceIdentity, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deviceIdentity == nil {
		return identity.DeviceIdentity{}, false, nil
	}
	return *s.deviceIdentity, true, nil
}

var _ Store = (*MemoryStore)(nil)
