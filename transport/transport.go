// Package transport defines the publish/fetch/subscribe contract entries
// travel over, and the relay, peer, and composite implementations of it
// (§4.7). Transports move only already-encrypted bytes; the sync manager
// owns encryption, validation, and persistence.
package transport

import "context"

// ConnectionState mirrors the three states a transport's connection to a
// group may be in (§4.7).
type ConnectionState string

const (
	StateConnected    ConnectionState = "connected"
	StateDisconnected ConnectionState = "disconnected"
	StateReconnecting ConnectionState = "reconnecting"
)

// Entry is the encrypted-entry carrier exchanged over a transport (§4.7,
// GLOSSARY "Transport entry"): an opaque ciphertext plus the fields needed
// to order and deduplicate it without decrypting it.
type Entry struct {
	EncryptedEntryBase64 string
	LamportClock         int64
	SenderDeviceKey       string
}

// EntryHandler receives entries pushed by a transport (via server push or
// peer gossip) outside of an explicit fetch call.
type EntryHandler func(groupID string, entry Entry)

// ConnectionStateHandler receives connection lifecycle transitions for a
// group.
type ConnectionStateHandler func(groupID string, state ConnectionState)

// Transport is satisfied by the relay, peer, and composite transports
// (§4.7). All operations are safe to call from multiple goroutines;
// Connect/Disconnect are idempotent.
type Transport interface {
	Connect(ctx context.Context, groupID string) error
	Disconnect(groupID string) error
	DisconnectAll()

	PublishEntry(ctx context.Context, groupID string, entry Entry) error

	// GetEntriesAfter returns entries strictly newer than afterLamportClock.
	// Ordering is unspecified; callers re-order.
	GetEntriesAfter(ctx context.Context, groupID string, afterLamportClock int64) ([]Entry, error)

	// GetFullLedger returns every stored entry for the group.
	GetFullLedger(ctx context.Context, groupID string) ([]Entry, error)

	OnEntry(handler EntryHandler)
	OnConnectionState(handler ConnectionStateHandler)

	Connected(groupID string) bool
}
