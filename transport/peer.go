package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/libp2p/go-libp2p"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/sirupsen/logrus"
)

// PeerTransport is the best-effort transport: a libp2p gossipsub topic per
// group. It may deliver entries faster than the relay, but its history
// queries only return what it happened to observe while joined, and its
// own failures are never allowed to fail the caller's operation (§4.7 peer
// transport).
type PeerTransport struct {
	listenAddr string
	logger     *logrus.Logger

	mu       sync.Mutex
	host     host.Host
	ps       *pubsub.PubSub
	topics   map[string]*pubsub.Topic
	subs     map[string]*pubsub.Subscription
	cancels  map[string]context.CancelFunc
	observed map[string][]Entry

	entryHandlers []EntryHandler
	stateHandlers []ConnectionStateHandler
}

// NewPeerTransport returns a PeerTransport that has not yet started its
// libp2p host.
func NewPeerTransport(listenAddr string, logger *logrus.Logger) *PeerTransport {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &PeerTransport{
		listenAddr: listenAddr,
		logger:     logger,
		topics:     make(map[string]*pubsub.Topic),
		subs:       make(map[string]*pubsub.Subscription),
		cancels:    make(map[string]context.CancelFunc),
		observed:   make(map[string][]Entry),
	}
}

func (p *PeerTransport) ensureHost(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.host != nil {
		return nil
	}
	h, err := libp2p.New(libp2p.ListenAddrStrings(p.listenAddr))
	if err != nil {
		return fmt.Errorf("transport: peer host: %w", err)
	}
	ps, err := pubsub.NewGossipSub(ctx, h)
	if err != nil {
		_ = h.Close()
		return fmt.Errorf("transport: peer gossipsub: %w", err)
	}
	p.host = h
	p.ps = ps
	return nil
}

// Connect joins the gossipsub topic for groupID. Failure is reported to
// the caller here; the composite transport is responsible for swallowing
// it per the best-effort contract.
func (p *PeerTransport) Connect(ctx context.Context, groupID string) error {
	if err := p.ensureHost(ctx); err != nil {
		return err
	}
	p.mu.Lock()
	if _, ok := p.topics[groupID]; ok {
		p.mu.Unlock()
		return nil
	}
	topic, err := p.ps.Join(topicName(groupID))
	if err != nil {
		p.mu.Unlock()
		return fmt.Errorf("transport: join topic %s: %w", groupID, err)
	}
	sub, err := topic.Subscribe()
	if err != nil {
		p.mu.Unlock()
		return fmt.Errorf("transport: subscribe topic %s: %w", groupID, err)
	}
	subCtx, cancel := context.WithCancel(context.Background())
	p.topics[groupID] = topic
	p.subs[groupID] = sub
	p.cancels[groupID] = cancel
	p.mu.Unlock()

	go p.readLoop(subCtx, groupID, sub)
	p.notifyState(groupID, StateConnected)
	return nil
}

func (p *PeerTransport) readLoop(ctx context.Context, groupID string, sub *pubsub.Subscription) {
	for {
		msg, err := sub.Next(ctx)
		if err != nil {
			return
		}
		var entry Entry
		if err := json.Unmarshal(msg.Data, &entry); err != nil {
			p.logger.WithError(err).Debug("peer transport: undecodable gossip message")
			continue
		}
		p.mu.Lock()
		p.observed[groupID] = append(p.observed[groupID], entry)
		p.mu.Unlock()
		p.notifyEntry(groupID, entry)
	}
}

func (p *PeerTransport) Disconnect(groupID string) error {
	p.mu.Lock()
	if cancel, ok := p.cancels[groupID]; ok {
		cancel()
		delete(p.cancels, groupID)
	}
	if sub, ok := p.subs[groupID]; ok {
		sub.Cancel()
		delete(p.subs, groupID)
	}
	delete(p.topics, groupID)
	delete(p.observed, groupID)
	p.mu.Unlock()
	p.notifyState(groupID, StateDisconnected)
	return nil
}

func (p *PeerTransport) DisconnectAll() {
	p.mu.Lock()
	groups := make([]string, 0, len(p.topics))
	for g := range p.topics {
		groups = append(groups, g)
	}
	h := p.host
	p.mu.Unlock()
	for _, g := range groups {
		_ = p.Disconnect(g)
	}
	if h != nil {
		_ = h.Close()
	}
	p.mu.Lock()
	p.host = nil
	p.ps = nil
	p.mu.Unlock()
}

func (p *PeerTransport) PublishEntry(ctx context.Context, groupID string, entry Entry) error {
	p.mu.Lock()
	topic, ok := p.topics[groupID]
	p.mu.Unlock()
	if !ok {
		return fmt.Errorf("transport: not connected to group %s", groupID)
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("transport: marshal entry: %w", err)
	}
	if err := topic.Publish(ctx, data); err != nil {
		return fmt.Errorf("transport: publish to peer topic: %w", err)
	}
	return nil
}

// GetEntriesAfter returns only entries this peer happened to observe via
// gossip while joined — a peer transport keeps no authoritative history.
func (p *PeerTransport) GetEntriesAfter(ctx context.Context, groupID string, afterLamportClock int64) ([]Entry, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []Entry
	for _, e := range p.observed[groupID] {
		if e.LamportClock > afterLamportClock {
			out = append(out, e)
		}
	}
	return out, nil
}

func (p *PeerTransport) GetFullLedger(ctx context.Context, groupID string) ([]Entry, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Entry(nil), p.observed[groupID]...), nil
}

func (p *PeerTransport) OnEntry(handler EntryHandler) {
	p.mu.Lock()
	p.entryHandlers = append(p.entryHandlers, handler)
	p.mu.Unlock()
}

func (p *PeerTransport) OnConnectionState(handler ConnectionStateHandler) {
	p.mu.Lock()
	p.stateHandlers = append(p.stateHandlers, handler)
	p.mu.Unlock()
}

func (p *PeerTransport) Connected(groupID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.topics[groupID]
	return ok
}

func (p *PeerTransport) notifyEntry(groupID string, entry Entry) {
	p.mu.Lock()
	handlers := append([]EntryHandler(nil), p.entryHandlers...)
	p.mu.Unlock()
	for _, h := range handlers {
		h(groupID, entry)
	}
}

func (p *PeerTransport) notifyState(groupID string, state ConnectionState) {
	p.mu.Lock()
	handlers := append([]ConnectionStateHandler(nil), p.stateHandlers...)
	p.mu.Unlock()
	for _, h := range handlers {
		h(groupID, state)
	}
}

func topicName(groupID string) string { return "splitledger/" + groupID }
