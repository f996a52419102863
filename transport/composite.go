package transport

import (
	"context"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

const defaultSeenSetCapacity = 10_000

// CompositeTransport wraps one relay and one peer transport, publishing to
// both and deduplicating entries arriving from either child (§4.7
// composite transport). The relay is required: its failures propagate to
// the caller. The peer is best-effort: its failures are swallowed.
type CompositeTransport struct {
	relay Transport
	peer  Transport

	seen *lru.Cache[string, struct{}]
	mu   sync.Mutex

	entryHandlers []EntryHandler
	stateHandlers []ConnectionStateHandler
}

// NewCompositeTransport wires relay and peer together with a bounded,
// LRU-evicted seen-set (§9 open question (c): an LRU, not insertion-order
// trimming, is what prevents a still-live key from being dropped under
// heavy concurrent input).
func NewCompositeTransport(relay, peer Transport) (*CompositeTransport, error) {
	seen, err := lru.New[string, struct{}](defaultSeenSetCapacity)
	if err != nil {
		return nil, fmt.Errorf("transport: new seen-set: %w", err)
	}
	c := &CompositeTransport{relay: relay, peer: peer, seen: seen}
	relay.OnEntry(c.handleChildEntry)
	peer.OnEntry(c.handleChildEntry)
	relay.OnConnectionState(c.handleChildState)
	peer.OnConnectionState(c.handleChildState)
	return c, nil
}

func (c *CompositeTransport) Connect(ctx context.Context, groupID string) error {
	if err := c.relay.Connect(ctx, groupID); err != nil {
		return fmt.Errorf("transport: relay connect: %w", err)
	}
	_ = c.peer.Connect(ctx, groupID) // best-effort
	return nil
}

func (c *CompositeTransport) Disconnect(groupID string) error {
	err := c.relay.Disconnect(groupID)
	_ = c.peer.Disconnect(groupID)
	return err
}

func (c *CompositeTransport) DisconnectAll() {
	c.relay.DisconnectAll()
	c.peer.DisconnectAll()
}

func (c *CompositeTransport) PublishEntry(ctx context.Context, groupID string, entry Entry) error {
	c.markSeen(groupID, entry)
	if err := c.relay.PublishEntry(ctx, groupID, entry); err != nil {
		return fmt.Errorf("transport: relay publish: %w", err)
	}
	_ = c.peer.PublishEntry(ctx, groupID, entry) // best-effort
	return nil
}

func (c *CompositeTransport) GetEntriesAfter(ctx context.Context, groupID string, afterLamportClock int64) ([]Entry, error) {
	return c.relay.GetEntriesAfter(ctx, groupID, afterLamportClock)
}

func (c *CompositeTransport) GetFullLedger(ctx context.Context, groupID string) ([]Entry, error) {
	return c.relay.GetFullLedger(ctx, groupID)
}

func (c *CompositeTransport) OnEntry(handler EntryHandler) {
	c.mu.Lock()
	c.entryHandlers = append(c.entryHandlers, handler)
	c.mu.Unlock()
}

func (c *CompositeTransport) OnConnectionState(handler ConnectionStateHandler) {
	c.mu.Lock()
	c.stateHandlers = append(c.stateHandlers, handler)
	c.mu.Unlock()
}

func (c *CompositeTransport) Connected(groupID string) bool {
	return c.relay.Connected(groupID)
}

// handleChildEntry is registered on both children; it forwards an entry to
// this composite's own handlers exactly once per dedup key, regardless of
// how many children observed it (S6).
func (c *CompositeTransport) handleChildEntry(groupID string, entry Entry) {
	key := dedupKey(groupID, entry)
	c.mu.Lock()
	if _, ok := c.seen.Get(key); ok {
		c.mu.Unlock()
		return
	}
	c.seen.Add(key, struct{}{})
	handlers := append([]EntryHandler(nil), c.entryHandlers...)
	c.mu.Unlock()
	for _, h := range handlers {
		h(groupID, entry)
	}
}

func (c *CompositeTransport) handleChildState(groupID string, state ConnectionState) {
	c.mu.Lock()
	handlers := append([]ConnectionStateHandler(nil), c.stateHandlers...)
	c.mu.Unlock()
	for _, h := range handlers {
		h(groupID, state)
	}
}

// markSeen records a locally published entry's dedup key up front, so an
// echo of it from the relay or peer is never re-emitted as if newly
// received (§4.7, S6).
func (c *CompositeTransport) markSeen(groupID string, entry Entry) {
	c.mu.Lock()
	c.seen.Add(dedupKey(groupID, entry), struct{}{})
	c.mu.Unlock()
}

func dedupKey(groupID string, entry Entry) string {
	prefix := entry.EncryptedEntryBase64
	if len(prefix) > 32 {
		prefix = prefix[:32]
	}
	return fmt.Sprintf("%s|%d|%s|%s", groupID, entry.LamportClock, entry.SenderDeviceKey, prefix)
}
