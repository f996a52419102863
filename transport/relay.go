package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/tobael/splitledger/relaywire"
)

// RelayConfig configures a RelayTransport (§5 cancellation/timeouts
// defaults).
type RelayConfig struct {
	URL               string
	RequestTimeout    time.Duration
	ReconnectDelay    time.Duration
	KeepaliveInterval time.Duration
	Logger            *logrus.Logger
}

func (c RelayConfig) withDefaults() RelayConfig {
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 10 * time.Second
	}
	if c.ReconnectDelay <= 0 {
		c.ReconnectDelay = 5 * time.Second
	}
	if c.KeepaliveInterval <= 0 {
		c.KeepaliveInterval = 20 * time.Second
	}
	if c.Logger == nil {
		c.Logger = logrus.StandardLogger()
	}
	return c
}

type pendingRequest struct {
	response chan json.RawMessage
}

// RelayTransport is the authoritative, reliable transport: one persistent
// websocket connection multiplexing every subscribed group, with automatic
// reconnect, keepalive, and per-request timeouts (§4.7 relay transport).
type RelayTransport struct {
	cfg RelayConfig

	mu            sync.Mutex
	conn          *websocket.Conn
	subscriptions map[string]struct{}
	pending       map[string]*pendingRequest
	connState     ConnectionState

	entryHandlers []EntryHandler
	stateHandlers []ConnectionStateHandler

	closing   chan struct{}
	closeOnce sync.Once
}

// NewRelayTransport returns a RelayTransport that has not yet dialed.
func NewRelayTransport(cfg RelayConfig) *RelayTransport {
	return &RelayTransport{
		cfg:           cfg.withDefaults(),
		subscriptions: make(map[string]struct{}),
		pending:       make(map[string]*pendingRequest),
		connState:     StateDisconnected,
		closing:       make(chan struct{}),
	}
}

// Connect ensures the relay socket is up and records groupID as
// subscribed. The underlying connection is shared across all groups; the
// first successful Connect dials it and starts the read/keepalive loops.
func (r *RelayTransport) Connect(ctx context.Context, groupID string) error {
	r.mu.Lock()
	r.subscriptions[groupID] = struct{}{}
	needDial := r.conn == nil
	r.mu.Unlock()

	if !needDial {
		return nil
	}
	return r.dial(ctx)
}

func (r *RelayTransport) dial(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: r.cfg.RequestTimeout}
	conn, _, err := dialer.DialContext(ctx, r.cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("transport: relay dial: %w", err)
	}

	r.mu.Lock()
	r.conn = conn
	r.connState = StateConnected
	r.mu.Unlock()
	r.notifyState("", StateConnected)

	go r.readLoop(conn)
	go r.keepaliveLoop(conn)
	return nil
}

// Disconnect removes groupID from the subscription set. The shared socket
// stays open as long as any group remains subscribed.
func (r *RelayTransport) Disconnect(groupID string) error {
	r.mu.Lock()
	delete(r.subscriptions, groupID)
	empty := len(r.subscriptions) == 0
	r.mu.Unlock()
	if empty {
		r.DisconnectAll()
	}
	return nil
}

// DisconnectAll tears down the socket and cancels any scheduled reconnect.
func (r *RelayTransport) DisconnectAll() {
	r.closeOnce.Do(func() {
		close(r.closing)
		r.mu.Lock()
		conn := r.conn
		r.conn = nil
		r.connState = StateDisconnected
		r.subscriptions = make(map[string]struct{})
		pending := r.pending
		r.pending = make(map[string]*pendingRequest)
		r.mu.Unlock()
		if conn != nil {
			_ = conn.Close()
		}
		for _, p := range pending {
			close(p.response)
		}
		r.notifyState("", StateDisconnected)
	})
}

func (r *RelayTransport) PublishEntry(ctx context.Context, groupID string, entry Entry) error {
	msg := relaywire.NewPublishEntry(groupID, entry.LamportClock, entry.SenderDeviceKey, entry.EncryptedEntryBase64)
	return r.send(msg)
}

func (r *RelayTransport) GetEntriesAfter(ctx context.Context, groupID string, afterLamportClock int64) ([]Entry, error) {
	msg := relaywire.NewGetEntriesAfter(groupID, afterLamportClock)
	key := requestKey(relaywire.TypeEntriesResponse, groupID)
	raw, err := r.request(ctx, key, msg)
	if err != nil {
		return nil, err
	}
	var resp relaywire.EntriesResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("transport: decode entries response: %w", err)
	}
	return toEntries(resp.Entries), nil
}

func (r *RelayTransport) GetFullLedger(ctx context.Context, groupID string) ([]Entry, error) {
	msg := relaywire.NewGetFullLedger(groupID)
	key := requestKey(relaywire.TypeFullLedger, groupID)
	raw, err := r.request(ctx, key, msg)
	if err != nil {
		return nil, err
	}
	var resp relaywire.FullLedgerResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("transport: decode full ledger response: %w", err)
	}
	return toEntries(resp.Entries), nil
}

func (r *RelayTransport) OnEntry(handler EntryHandler) {
	r.mu.Lock()
	r.entryHandlers = append(r.entryHandlers, handler)
	r.mu.Unlock()
}

func (r *RelayTransport) OnConnectionState(handler ConnectionStateHandler) {
	r.mu.Lock()
	r.stateHandlers = append(r.stateHandlers, handler)
	r.mu.Unlock()
}

func (r *RelayTransport) Connected(groupID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.connState == StateConnected
}

func (r *RelayTransport) send(v interface{}) error {
	r.mu.Lock()
	conn := r.conn
	r.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("transport: relay not connected")
	}
	return conn.WriteJSON(v)
}

// request sends msg and waits for the single in-flight response registered
// under key, honoring the configured per-request timeout (§5 cancellation).
func (r *RelayTransport) request(ctx context.Context, key string, msg interface{}) (json.RawMessage, error) {
	pr := &pendingRequest{response: make(chan json.RawMessage, 1)}
	r.mu.Lock()
	r.pending[key] = pr
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		delete(r.pending, key)
		r.mu.Unlock()
	}()

	if err := r.send(msg); err != nil {
		return nil, err
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, r.cfg.RequestTimeout)
	defer cancel()
	select {
	case raw, ok := <-pr.response:
		if !ok {
			return nil, fmt.Errorf("transport: connection closed")
		}
		return raw, nil
	case <-timeoutCtx.Done():
		return nil, fmt.Errorf("transport: request timed out")
	}
}

func (r *RelayTransport) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			r.cfg.Logger.WithError(err).Warn("relay transport: read failed, scheduling reconnect")
			r.handleDisconnect(conn)
			return
		}
		r.dispatch(data)
	}
}

func (r *RelayTransport) dispatch(data []byte) {
	var env relaywire.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		r.cfg.Logger.WithError(err).Warn("relay transport: undecodable frame")
		return
	}
	switch env.Type {
	case relaywire.TypeNewEntry:
		var m relaywire.NewEntry
		if err := json.Unmarshal(data, &m); err != nil {
			return
		}
		r.notifyEntry(m.GroupID, Entry{
			EncryptedEntryBase64: m.EncryptedEntry,
			LamportClock:         m.LamportClock,
			SenderDeviceKey:      m.SenderPubkey,
		})
	case relaywire.TypeEntriesResponse:
		var m relaywire.EntriesResponse
		if err := json.Unmarshal(data, &m); err != nil {
			return
		}
		r.resolveRequest(requestKey(relaywire.TypeEntriesResponse, m.GroupID), data)
	case relaywire.TypeFullLedger:
		var m relaywire.FullLedgerResponse
		if err := json.Unmarshal(data, &m); err != nil {
			return
		}
		r.resolveRequest(requestKey(relaywire.TypeFullLedger, m.GroupID), data)
	case relaywire.TypePong:
		// keepalive acknowledged, nothing to do
	case relaywire.TypeError:
		var m relaywire.ErrorMessage
		if err := json.Unmarshal(data, &m); err == nil {
			r.cfg.Logger.WithFields(logrus.Fields{"code": m.Code, "message": m.Message}).Warn("relay transport: server error")
		}
	}
}

func (r *RelayTransport) resolveRequest(key string, raw json.RawMessage) {
	r.mu.Lock()
	pr, ok := r.pending[key]
	r.mu.Unlock()
	if !ok {
		return
	}
	select {
	case pr.response <- raw:
	default:
	}
}

func (r *RelayTransport) handleDisconnect(stale *websocket.Conn) {
	r.mu.Lock()
	if r.conn == stale {
		r.conn = nil
		r.connState = StateReconnecting
	}
	pending := r.pending
	r.pending = make(map[string]*pendingRequest)
	groups := make([]string, 0, len(r.subscriptions))
	for g := range r.subscriptions {
		groups = append(groups, g)
	}
	r.mu.Unlock()

	for _, p := range pending {
		close(p.response)
	}
	r.notifyState("", StateReconnecting)

	if len(groups) == 0 {
		return
	}
	select {
	case <-r.closing:
		return
	case <-time.After(r.cfg.ReconnectDelay):
	}
	select {
	case <-r.closing:
		return
	default:
		if err := r.dial(context.Background()); err != nil {
			r.cfg.Logger.WithError(err).Warn("relay transport: reconnect failed")
		}
	}
}

func (r *RelayTransport) keepaliveLoop(conn *websocket.Conn) {
	ticker := time.NewTicker(r.cfg.KeepaliveInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := conn.WriteJSON(relaywire.NewPing()); err != nil {
				return
			}
		case <-r.closing:
			return
		}
	}
}

func (r *RelayTransport) notifyEntry(groupID string, entry Entry) {
	r.mu.Lock()
	handlers := append([]EntryHandler(nil), r.entryHandlers...)
	r.mu.Unlock()
	for _, h := range handlers {
		h(groupID, entry)
	}
}

func (r *RelayTransport) notifyState(groupID string, state ConnectionState) {
	r.mu.Lock()
	handlers := append([]ConnectionStateHandler(nil), r.stateHandlers...)
	r.mu.Unlock()
	for _, h := range handlers {
		h(groupID, state)
	}
}

func requestKey(kind relaywire.MessageType, groupID string) string {
	return string(kind) + ":" + groupID
}

func toEntries(in []relaywire.RelayEntry) []Entry {
	out := make([]Entry, len(in))
	for i, e := range in {
		out[i] = Entry{
			EncryptedEntryBase64: e.EncryptedEntry,
			LamportClock:         e.LamportClock,
			SenderDeviceKey:      e.SenderPubkey,
		}
	}
	return out
}
