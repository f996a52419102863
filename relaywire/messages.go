// Package relaywire defines the client-side wire messages exchanged with an
// untrusted relay over one text-framed JSON connection per §6. Each Go type
// mirrors exactly one message shape and carries a discriminating Type
// field so a single connection can multiplex every
// group a client has joined.
package relaywire

// MessageType discriminates relay wire messages in both directions.
type MessageType string

const (
	TypePublishEntry     MessageType = "PUBLISH_ENTRY"
	TypeGetEntriesAfter  MessageType = "GET_ENTRIES_AFTER"
	TypeGetFullLedger    MessageType = "GET_FULL_LEDGER"
	TypePing             MessageType = "PING"
	TypeSignalOffer      MessageType = "SIGNAL_OFFER"
	TypeSignalAnswer     MessageType = "SIGNAL_ANSWER"
	TypeSignalICE        MessageType = "SIGNAL_ICE"
	TypeNewEntry         MessageType = "NEW_ENTRY"
	TypeEntriesResponse  MessageType = "ENTRIES_RESPONSE"
	TypeFullLedger       MessageType = "FULL_LEDGER"
	TypePong             MessageType = "PONG"
	TypeError            MessageType = "ERROR"
)

// RelayEntry is one opaque entry as carried on the wire: an encrypted
// payload plus the ordering and provenance fields the relay needs to
// dedupe and replay it, but never the plaintext (§6, §4.7 transport_entry).
type RelayEntry struct {
	EncryptedEntry string `json:"encrypted_entry"`
	LamportClock   int64  `json:"lamport_clock"`
	SenderPubkey   string `json:"sender_pubkey"`
}

// PublishEntry is sent client -> server to append one entry (§6).
type PublishEntry struct {
	Type           MessageType `json:"type"`
	GroupID        string      `json:"group_id"`
	LamportClock   int64       `json:"lamport_clock"`
	SenderPubkey   string      `json:"sender_pubkey"`
	EncryptedEntry string      `json:"encrypted_entry"`
}

// NewPublishEntry builds a PublishEntry message with its Type field set.
func NewPublishEntry(groupID string, lamportClock int64, senderPubkey, encryptedEntry string) PublishEntry {
	return PublishEntry{
		Type:           TypePublishEntry,
		GroupID:        groupID,
		LamportClock:   lamportClock,
		SenderPubkey:   senderPubkey,
		EncryptedEntry: encryptedEntry,
	}
}

// GetEntriesAfter requests entries strictly newer than afterLamportClock.
type GetEntriesAfter struct {
	Type             MessageType `json:"type"`
	GroupID          string      `json:"group_id"`
	AfterLamportClock int64      `json:"after_lamport_clock"`
}

func NewGetEntriesAfter(groupID string, afterLamportClock int64) GetEntriesAfter {
	return GetEntriesAfter{Type: TypeGetEntriesAfter, GroupID: groupID, AfterLamportClock: afterLamportClock}
}

// GetFullLedger requests every stored entry for a group.
type GetFullLedger struct {
	Type    MessageType `json:"type"`
	GroupID string      `json:"group_id"`
}

func NewGetFullLedger(groupID string) GetFullLedger {
	return GetFullLedger{Type: TypeGetFullLedger, GroupID: groupID}
}

// Ping is the client keepalive probe.
type Ping struct {
	Type MessageType `json:"type"`
}

func NewPing() Ping { return Ping{Type: TypePing} }

// Signal carries WebRTC signaling payloads forwarded by peer id (§6).
type Signal struct {
	Type      MessageType `json:"type"`
	GroupID   string      `json:"group_id"`
	FromPeer  string      `json:"from_peer_id"`
	ToPeer    string      `json:"to_peer_id"`
	SDP       string      `json:"sdp,omitempty"`
	Candidate string      `json:"candidate,omitempty"`
}

// NewEntry is pushed server -> client to every group subscriber except the
// original sender.
type NewEntry struct {
	Type           MessageType `json:"type"`
	GroupID        string      `json:"group_id"`
	EncryptedEntry string      `json:"encrypted_entry"`
	LamportClock   int64       `json:"lamport_clock"`
	SenderPubkey   string      `json:"sender_pubkey"`
}

// EntriesResponse answers GetEntriesAfter.
type EntriesResponse struct {
	Type    MessageType  `json:"type"`
	GroupID string       `json:"group_id"`
	Entries []RelayEntry `json:"entries"`
}

// FullLedgerResponse answers GetFullLedger.
type FullLedgerResponse struct {
	Type    MessageType  `json:"type"`
	GroupID string       `json:"group_id"`
	Entries []RelayEntry `json:"entries"`
}

// Pong answers Ping.
type Pong struct {
	Type MessageType `json:"type"`
}

// ErrorMessage reports a relay-side failure, e.g. ENTRY_TOO_LARGE or
// GROUP_FULL (§6, relay storage semantics).
type ErrorMessage struct {
	Type    MessageType `json:"type"`
	Code    string      `json:"code"`
	Message string      `json:"message"`
}

const (
	ErrCodeEntryTooLarge = "ENTRY_TOO_LARGE"
	ErrCodeGroupFull     = "GROUP_FULL"
)

// Envelope is the minimal shape used to sniff an incoming frame's Type
// before unmarshaling it into its concrete message struct.
type Envelope struct {
	Type MessageType `json:"type"`
}
