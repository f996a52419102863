package transport

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTransport is a minimal in-memory Transport double used to exercise
// CompositeTransport's dedup behavior without a real relay or libp2p host.
type fakeTransport struct {
	connectErr error
	published  []Entry
	entryFn    EntryHandler
	stateFn    ConnectionStateHandler
	connected  bool
}

func (f *fakeTransport) Connect(ctx context.Context, groupID string) error {
	if f.connectErr != nil {
		return f.connectErr
	}
	f.connected = true
	return nil
}
func (f *fakeTransport) Disconnect(groupID string) error { f.connected = false; return nil }
func (f *fakeTransport) DisconnectAll()                  { f.connected = false }
func (f *fakeTransport) PublishEntry(ctx context.Context, groupID string, entry Entry) error {
	f.published = append(f.published, entry)
	return nil
}
func (f *fakeTransport) GetEntriesAfter(ctx context.Context, groupID string, after int64) ([]Entry, error) {
	return nil, nil
}
func (f *fakeTransport) GetFullLedger(ctx context.Context, groupID string) ([]Entry, error) {
	return nil, nil
}
func (f *fakeTransport) OnEntry(handler EntryHandler)                     { f.entryFn = handler }
func (f *fakeTransport) OnConnectionState(handler ConnectionStateHandler) { f.stateFn = handler }
func (f *fakeTransport) Connected(groupID string) bool                   { return f.connected }

func (f *fakeTransport) emit(groupID string, entry Entry) {
	if f.entryFn != nil {
		f.entryFn(groupID, entry)
	}
}

func TestCompositeDedupesAcrossChildren(t *testing.T) {
	relay := &fakeTransport{}
	peer := &fakeTransport{}
	composite, err := NewCompositeTransport(relay, peer)
	require.NoError(t, err)

	var received int
	composite.OnEntry(func(groupID string, entry Entry) { received++ })

	entry := Entry{EncryptedEntryBase64: "ciphertext-bytes-0123456789abcdef", LamportClock: 1, SenderDeviceKey: "dev-1"}
	relay.emit("group-1", entry)
	peer.emit("group-1", entry)

	assert.Equal(t, 1, received)
}

func TestCompositeSwallowsSelfPublishedEcho(t *testing.T) {
	relay := &fakeTransport{}
	peer := &fakeTransport{}
	composite, err := NewCompositeTransport(relay, peer)
	require.NoError(t, err)

	var received int
	composite.OnEntry(func(groupID string, entry Entry) { received++ })

	entry := Entry{EncryptedEntryBase64: "ciphertext-bytes-0123456789abcdef", LamportClock: 1, SenderDeviceKey: "dev-1"}
	require.NoError(t, composite.PublishEntry(context.Background(), "group-1", entry))

	// The relay echoes the entry back, as it would for any publish.
	relay.emit("group-1", entry)

	assert.Equal(t, 0, received)
}

func TestCompositeConnectRequiresRelayButNotPeer(t *testing.T) {
	relay := &fakeTransport{}
	peer := &fakeTransport{connectErr: assert.AnError}
	composite, err := NewCompositeTransport(relay, peer)
	require.NoError(t, err)

	require.NoError(t, composite.Connect(context.Background(), "group-1"))
	assert.True(t, relay.connected)
	assert.False(t, peer.connected)
}

func TestCompositeConnectFailsWhenRelayFails(t *testing.T) {
	relay := &fakeTransport{connectErr: assert.AnError}
	peer := &fakeTransport{}
	composite, err := NewCompositeTransport(relay, peer)
	require.NoError(t, err)

	assert.Error(t, composite.Connect(context.Background(), "group-1"))
}
