package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tobael/splitledger/identity"
	"github.com/tobael/splitledger/ledger"
	"github.com/tobael/splitledger/storage"
)

// snapshot is the on-disk shape of one node's entire local state. It exists
// only so the CLI has something to persist between invocations;
// storage.Store itself ships only the in-memory reference implementation
// (§6 Non-goals put a durable backend out of scope), so the CLI loads a
// fresh MemoryStore from this file on every run and writes it back after
// any command that mutates state.
type snapshot struct {
	GroupEntries map[string][]ledger.Entry    `json:"group_entries"`
	GroupStates  map[string]*ledger.GroupState `json:"group_states"`
	Root         *identity.RootIdentity        `json:"root,omitempty"`
	Device       *identity.DeviceIdentity      `json:"device,omitempty"`
}

func snapshotPath(dir string) string {
	return filepath.Join(dir, "state.json")
}

func loadStore(ctx context.Context, dir string) (*storage.MemoryStore, error) {
	store := storage.NewMemoryStore()
	data, err := os.ReadFile(snapshotPath(dir))
	if os.IsNotExist(err) {
		return store, nil
	}
	if err != nil {
		return nil, fmt.Errorf("splitledger: read state: %w", err)
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("splitledger: decode state: %w", err)
	}
	for groupID, entries := range snap.GroupEntries {
		for _, e := range entries {
			if err := store.AppendEntry(ctx, groupID, e); err != nil {
				return nil, err
			}
		}
	}
	for groupID, state := range snap.GroupStates {
		if err := store.SaveGroupState(ctx, groupID, state); err != nil {
			return nil, err
		}
	}
	if snap.Root != nil {
		if err := store.StoreRootIdentity(ctx, *snap.Root); err != nil {
			return nil, err
		}
	}
	if snap.Device != nil {
		if err := store.StoreDeviceIdentity(ctx, *snap.Device); err != nil {
			return nil, err
		}
	}
	return store, nil
}

func saveStore(ctx context.Context, dir string, store *storage.MemoryStore) error {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("splitledger: create data dir: %w", err)
	}

	groupIDs, err := store.GetGroupIDs(ctx)
	if err != nil {
		return err
	}
	snap := snapshot{
		GroupEntries: make(map[string][]ledger.Entry, len(groupIDs)),
		GroupStates:  make(map[string]*ledger.GroupState, len(groupIDs)),
	}
	for _, groupID := range groupIDs {
		entries, err := store.GetAllEntries(ctx, groupID)
		if err != nil {
			return err
		}
		snap.GroupEntries[groupID] = entries

		state, ok, err := store.GetGroupState(ctx, groupID)
		if err != nil {
			return err
		}
		if ok {
			snap.GroupStates[groupID] = state
		}
	}
	if root, ok, err := store.GetRootIdentity(ctx); err != nil {
		return err
	} else if ok {
		snap.Root = &root
	}
	if device, ok, err := store.GetDeviceIdentity(ctx); err != nil {
		return err
	} else if ok {
		snap.Device = &device
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("splitledger: encode state: %w", err)
	}
	return os.WriteFile(snapshotPath(dir), data, 0o600)
}
