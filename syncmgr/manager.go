// Package syncmgr implements the sync manager: it holds per-group AEAD
// keys, encrypts and publishes locally produced entries, decrypts and
// validates remote entries, reconciles missing history, and emits
// lifecycle events (§4.8).
package syncmgr

import (
	"context"
	"encoding/base64"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tobael/splitledger/crypto"
	"github.com/tobael/splitledger/groupcipher"
	"github.com/tobael/splitledger/ledger"
	"github.com/tobael/splitledger/storage"
	"github.com/tobael/splitledger/transport"
)

const defaultBackgroundSyncInterval = 30 * time.Second

// Manager is the sync manager (§4.8). One Manager serves every group a
// local node participates in.
type Manager struct {
	transport transport.Transport
	store     storage.Store
	logger    *logrus.Logger
	events    eventRegistry

	keysMu sync.Mutex
	keys   map[string]groupcipher.GroupKey

	groupLocksMu sync.Mutex
	groupLocks   map[string]*sync.Mutex

	timersMu sync.Mutex
	timers   map[string]*time.Ticker
	stopCh   map[string]chan struct{}
}

// New wires a Manager to its transport and persistence backend.
func New(t transport.Transport, store storage.Store, logger *logrus.Logger) *Manager {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	m := &Manager{
		transport:  t,
		store:      store,
		logger:     logger,
		keys:       make(map[string]groupcipher.GroupKey),
		groupLocks: make(map[string]*sync.Mutex),
		timers:     make(map[string]*time.Ticker),
		stopCh:     make(map[string]chan struct{}),
	}
	t.OnEntry(func(groupID string, te transport.Entry) {
		ctx := context.Background()
		if _, err := m.handleIncoming(ctx, groupID, te); err != nil {
			m.logger.WithError(err).WithField("group_id", groupID).Warn("syncmgr: incoming entry handling failed")
		}
	})
	return m
}

// OnEvent subscribes handler to every lifecycle event this manager emits.
func (m *Manager) OnEvent(handler EventHandler) { m.events.Subscribe(handler) }

// RegisterGroupKey derives and retains groupID's AEAD key from a
// caller-supplied shared secret (§4.8 per-group key registration).
func (m *Manager) RegisterGroupKey(groupID string, sharedSecret []byte) error {
	key, err := groupcipher.DeriveGroupKey(sharedSecret, groupID)
	if err != nil {
		return fmt.Errorf("syncmgr: register group key: %w", err)
	}
	m.keysMu.Lock()
	m.keys[groupID] = key
	m.keysMu.Unlock()
	return nil
}

func (m *Manager) groupKey(groupID string) (groupcipher.GroupKey, error) {
	m.keysMu.Lock()
	defer m.keysMu.Unlock()
	key, ok := m.keys[groupID]
	if !ok {
		return groupcipher.GroupKey{}, fmt.Errorf("syncmgr: no group key registered for %s", groupID)
	}
	return key, nil
}

// groupLock returns the per-group mutex gating the validate-persist-apply-
// recompute critical section (§5, §9 concurrency note).
func (m *Manager) groupLock(groupID string) *sync.Mutex {
	m.groupLocksMu.Lock()
	defer m.groupLocksMu.Unlock()
	l, ok := m.groupLocks[groupID]
	if !ok {
		l = &sync.Mutex{}
		m.groupLocks[groupID] = l
	}
	return l
}

// BroadcastEntry canonically serializes, encrypts, and publishes a locally
// produced entry (§4.8 broadcast path).
func (m *Manager) BroadcastEntry(ctx context.Context, groupID string, entry ledger.Entry) error {
	key, err := m.groupKey(groupID)
	if err != nil {
		return err
	}
	canonical, err := crypto.Canonicalize(entry)
	if err != nil {
		return fmt.Errorf("syncmgr: canonicalize entry: %w", err)
	}
	frame, err := groupcipher.Encrypt(key, canonical)
	if err != nil {
		return fmt.Errorf("syncmgr: encrypt entry: %w", err)
	}
	te := transport.Entry{
		EncryptedEntryBase64: base64.StdEncoding.EncodeToString(frame),
		LamportClock:         entry.LamportClock,
		SenderDeviceKey:      string(entry.CreatorDevicePubkey),
	}
	if err := m.transport.PublishEntry(ctx, groupID, te); err != nil {
		return fmt.Errorf("syncmgr: publish entry: %w", err)
	}
	return nil
}

// handleIncoming runs the full incoming-entry pipeline (§4.8 incoming
// path) under the group's single-writer critical section, returning
// whether the entry was newly accepted.
func (m *Manager) handleIncoming(ctx context.Context, groupID string, te transport.Entry) (bool, error) {
	lock := m.groupLock(groupID)
	lock.Lock()
	defer lock.Unlock()

	key, err := m.groupKey(groupID)
	if err != nil {
		return false, err
	}

	frame, err := base64.StdEncoding.DecodeString(te.EncryptedEntryBase64)
	if err != nil {
		m.events.Emit(Event{Kind: EventEntryRejected, GroupID: groupID, Reason: RejectDecryption})
		return false, nil
	}
	plaintext, err := groupcipher.Decrypt(key, frame)
	if err != nil {
		m.events.Emit(Event{Kind: EventEntryRejected, GroupID: groupID, Reason: RejectDecryption})
		return false, nil
	}

	var entry ledger.Entry
	if err := entry.UnmarshalJSON(plaintext); err != nil {
		m.events.Emit(Event{Kind: EventEntryRejected, GroupID: groupID, Reason: RejectDecryption})
		return false, nil
	}

	if _, found, err := m.store.GetEntry(ctx, entry.EntryID); err != nil {
		return false, err
	} else if found {
		return false, nil // silent duplicate drop
	}

	preceding, err := m.store.GetAllEntries(ctx, groupID)
	if err != nil {
		return false, err
	}
	state, hasState, err := m.store.GetGroupState(ctx, groupID)
	if err != nil {
		return false, err
	}
	if !hasState {
		if entry.EntryType != ledger.EntryGenesis {
			m.events.Emit(Event{Kind: EventEntryRejected, GroupID: groupID, EntryID: string(entry.EntryID), Reason: RejectExpectedGenesis})
			return false, nil
		}
		state = ledger.NewEmptyGroupState()
	}

	if verr := ledger.ValidateEntry(entry, preceding, state); verr != nil {
		errs := make([]string, len(verr.Errors))
		for i, fe := range verr.Errors {
			errs[i] = fe.Error()
		}
		m.events.Emit(Event{Kind: EventEntryRejected, GroupID: groupID, EntryID: string(entry.EntryID), Errors: errs})
		return false, nil
	}

	if err := m.store.AppendEntry(ctx, groupID, entry); err != nil {
		return false, err
	}
	full, err := m.store.GetAllEntries(ctx, groupID)
	if err != nil {
		return false, err
	}
	result := ledger.ValidateAndReplay(full)
	if !result.Valid {
		return false, fmt.Errorf("syncmgr: full chain invalid after accepting %s", entry.EntryID)
	}
	if err := m.store.SaveGroupState(ctx, groupID, result.State); err != nil {
		return false, err
	}
	m.events.Emit(Event{Kind: EventEntryReceived, GroupID: groupID, EntryID: string(entry.EntryID)})
	return true, nil
}

// InitialSync fetches the full ledger, decrypts each frame (skipping
// undecryptable ones), validates the whole chain as a unit, and persists
// all of it only if the chain as a whole is valid (§4.8 initial sync).
func (m *Manager) InitialSync(ctx context.Context, groupID string) error {
	lock := m.groupLock(groupID)
	lock.Lock()
	defer lock.Unlock()

	key, err := m.groupKey(groupID)
	if err != nil {
		return err
	}
	remote, err := m.transport.GetFullLedger(ctx, groupID)
	if err != nil {
		return fmt.Errorf("syncmgr: get full ledger: %w", err)
	}

	var entries []ledger.Entry
	for _, te := range remote {
		frame, err := base64.StdEncoding.DecodeString(te.EncryptedEntryBase64)
		if err != nil {
			continue
		}
		plaintext, err := groupcipher.Decrypt(key, frame)
		if err != nil {
			continue
		}
		var entry ledger.Entry
		if err := entry.UnmarshalJSON(plaintext); err != nil {
			continue
		}
		entries = append(entries, entry)
	}

	result := ledger.ValidateAndReplay(entries)
	if !result.Valid {
		errs := make([]string, 0, len(result.Errors))
		for _, ce := range result.Errors {
			for _, fe := range ce.ValidationErrs {
				errs = append(errs, fe.Error())
			}
		}
		m.events.Emit(Event{Kind: EventSyncError, GroupID: groupID, Errors: errs})
		return nil
	}

	ordered := ledger.OrderEntries(entries)
	for _, e := range ordered {
		if err := m.store.AppendEntry(ctx, groupID, e); err != nil {
			return err
		}
	}
	return m.store.SaveGroupState(ctx, groupID, result.State)
}

// GapFillSync fetches entries newer than the persisted current lamport
// clock and feeds each through the incoming path (§4.8 gap-fill sync).
func (m *Manager) GapFillSync(ctx context.Context, groupID string) error {
	m.events.Emit(Event{Kind: EventSyncStart, GroupID: groupID})

	var afterClock int64 = -1
	if state, ok, err := m.store.GetGroupState(ctx, groupID); err != nil {
		return err
	} else if ok {
		afterClock = state.CurrentLamport
	}

	remote, err := m.transport.GetEntriesAfter(ctx, groupID, afterClock)
	if err != nil {
		m.events.Emit(Event{Kind: EventSyncError, GroupID: groupID, Err: err})
		return err
	}

	accepted := 0
	for _, te := range remote {
		ok, err := m.handleIncoming(ctx, groupID, te)
		if err != nil {
			m.events.Emit(Event{Kind: EventSyncError, GroupID: groupID, Err: err})
			continue
		}
		if ok {
			accepted++
		}
	}
	m.events.Emit(Event{Kind: EventSyncComplete, GroupID: groupID, Accepted: accepted, Total: len(remote)})
	return nil
}

// StartSync connects the transport, runs one gap-fill pass, then installs
// a background timer at interval (default 30s) that keeps running gap-fill
// passes (§4.8 background sync). Unhandled sync errors emit sync:error but
// never stop the timer.
func (m *Manager) StartSync(ctx context.Context, groupID string, interval time.Duration) error {
	if interval <= 0 {
		interval = defaultBackgroundSyncInterval
	}
	if err := m.transport.Connect(ctx, groupID); err != nil {
		return fmt.Errorf("syncmgr: connect: %w", err)
	}
	if err := m.GapFillSync(ctx, groupID); err != nil {
		m.logger.WithError(err).WithField("group_id", groupID).Warn("syncmgr: initial gap-fill failed")
	}

	m.timersMu.Lock()
	if _, running := m.timers[groupID]; running {
		m.timersMu.Unlock()
		return nil
	}
	ticker := time.NewTicker(interval)
	stop := make(chan struct{})
	m.timers[groupID] = ticker
	m.stopCh[groupID] = stop
	m.timersMu.Unlock()

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := m.GapFillSync(ctx, groupID); err != nil {
					m.events.Emit(Event{Kind: EventSyncError, GroupID: groupID, Err: err})
				}
			case <-stop:
				return
			}
		}
	}()
	return nil
}

// StopSync clears the background timer and disconnects the transport.
func (m *Manager) StopSync(groupID string) {
	m.timersMu.Lock()
	if stop, ok := m.stopCh[groupID]; ok {
		close(stop)
		delete(m.stopCh, groupID)
		delete(m.timers, groupID)
	}
	m.timersMu.Unlock()
	_ = m.transport.Disconnect(groupID)
}
