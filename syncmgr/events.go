package syncmgr

import "sync"

// EventKind discriminates the lifecycle events the sync manager emits
// (§4.8, §7 propagation policy: validation errors never escape as Go
// errors, they become entry:rejected events).
type EventKind string

const (
	EventEntryReceived EventKind = "entry:received"
	EventEntryRejected EventKind = "entry:rejected"
	EventSyncStart     EventKind = "sync:start"
	EventSyncComplete  EventKind = "sync:complete"
	EventSyncError     EventKind = "sync:error"
)

// RejectReason classifies why an inbound entry was rejected prior to
// reaching validation (§4.8 incoming path steps ii, v).
type RejectReason string

const (
	RejectDecryption     RejectReason = "decryption"
	RejectExpectedGenesis RejectReason = "expected genesis first"
)

// Event is one lifecycle notification. Only the fields relevant to Kind are
// populated.
type Event struct {
	Kind     EventKind
	GroupID  string
	EntryID  string
	Reason   RejectReason
	Errors   []string
	Accepted int
	Total    int
	Err      error
}

// EventHandler receives emitted events.
type EventHandler func(Event)

// eventRegistry is a snapshot-iterated observer registry (§9 "Event
// emission" design note): handlers may subscribe from within a
// notification because Emit always iterates a copy.
type eventRegistry struct {
	mu       sync.Mutex
	handlers []EventHandler
}

func (r *eventRegistry) Subscribe(h EventHandler) {
	r.mu.Lock()
	r.handlers = append(r.handlers, h)
	r.mu.Unlock()
}

func (r *eventRegistry) Emit(ev Event) {
	r.mu.Lock()
	snapshot := make([]EventHandler, len(r.handlers))
	copy(snapshot, r.handlers)
	r.mu.Unlock()
	for _, h := range snapshot {
		h(ev)
	}
}
