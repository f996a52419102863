// Package ledger implements the entry data model, deterministic ordering,
// per-entry validation, full-chain replay, and the entry builder (§3, §4.1
// -§4.4). It depends on crypto and identity.
package ledger

import (
	"encoding/json"
	"fmt"

	"github.com/tobael/splitledger/crypto"
	"github.com/tobael/splitledger/identity"
)

// EntryType discriminates the nine entry variants (§3).
type EntryType string

const (
	EntryGenesis           EntryType = "Genesis"
	EntryMemberAdded       EntryType = "MemberAdded"
	EntryMemberRemoved     EntryType = "MemberRemoved"
	EntryDeviceAuthorized  EntryType = "DeviceAuthorized"
	EntryDeviceRevoked     EntryType = "DeviceRevoked"
	EntryExpenseCreated    EntryType = "ExpenseCreated"
	EntryExpenseCorrection EntryType = "ExpenseCorrection"
	EntryExpenseVoided     EntryType = "ExpenseVoided"
	EntryRootKeyRotation   EntryType = "RootKeyRotation"
)

// Payload is implemented by each entry variant's payload record. It is a
// marker interface: canonical serialization and validation dispatch on the
// concrete type, matching the discriminated-entry design note in §9.
type Payload interface {
	Type() EntryType
}

// Splits is an ordered-by-key mapping from member root key to a
// non-negative share of an expense. encoding/json already serializes
// map[string-kind]V with lexicographically sorted keys, and
// crypto.Canonicalize re-sorts independently, so Splits carries no
// hidden iteration-order dependency (§9 design note on dynamic-map splits).
type Splits map[crypto.PublicKey]int64

// GenesisPayload is the payload of the single Genesis entry (§3).
type GenesisPayload struct {
	GroupID             string           `json:"group_id"`
	GroupName           string           `json:"group_name"`
	CreatorRootPubkey   crypto.PublicKey `json:"creator_root_pubkey"`
	CreatorDisplayName  string           `json:"creator_display_name"`
}

func (GenesisPayload) Type() EntryType { return EntryGenesis }

// MemberAddedPayload admits a new member via an invite token.
type MemberAddedPayload struct {
	MemberRootPubkey  crypto.PublicKey      `json:"member_root_pubkey"`
	MemberDisplayName string                `json:"member_display_name"`
	InviteToken       identity.InviteToken `json:"invite_token"`
}

func (MemberAddedPayload) Type() EntryType { return EntryMemberAdded }

// MemberRemovedPayload logically deactivates a member.
type MemberRemovedPayload struct {
	MemberRootPubkey crypto.PublicKey `json:"member_root_pubkey"`
	Reason           string           `json:"reason"`
}

func (MemberRemovedPayload) Type() EntryType { return EntryMemberRemoved }

// DeviceAuthorizedPayload binds a new device key to an owning member.
type DeviceAuthorizedPayload struct {
	OwnerRootPubkey        crypto.PublicKey `json:"owner_root_pubkey"`
	DevicePublicKey        crypto.PublicKey `json:"device_public_key"`
	DeviceName             string           `json:"device_name"`
	AuthorizationSignature crypto.Signature `json:"authorization_signature"`
}

func (DeviceAuthorizedPayload) Type() EntryType { return EntryDeviceAuthorized }

// DeviceRevokedPayload removes a device key from an owning member.
type DeviceRevokedPayload struct {
	OwnerRootPubkey crypto.PublicKey `json:"owner_root_pubkey"`
	DevicePublicKey crypto.PublicKey `json:"device_public_key"`
	Reason          string           `json:"reason"`
}

func (DeviceRevokedPayload) Type() EntryType { return EntryDeviceRevoked }

// ExpenseCreatedPayload records a new expense and its splits.
type ExpenseCreatedPayload struct {
	Description      string           `json:"description"`
	AmountMinorUnits int64            `json:"amount_minor_units"`
	Currency         string           `json:"currency"`
	PaidByRootPubkey crypto.PublicKey `json:"paid_by_root_pubkey"`
	Splits           Splits           `json:"splits"`
}

func (ExpenseCreatedPayload) Type() EntryType { return EntryExpenseCreated }

// ExpenseCorrectionPayload replaces an earlier expense's effective values.
type ExpenseCorrectionPayload struct {
	ReferencedEntryID crypto.Hash           `json:"referenced_entry_id"`
	CorrectionReason  string                `json:"correction_reason"`
	CorrectedExpense  ExpenseCreatedPayload `json:"corrected_expense"`
}

func (ExpenseCorrectionPayload) Type() EntryType { return EntryExpenseCorrection }

// ExpenseVoidedPayload removes an expense's effect entirely.
type ExpenseVoidedPayload struct {
	VoidedEntryID crypto.Hash `json:"voided_entry_id"`
	Reason        string      `json:"reason,omitempty"`
}

func (ExpenseVoidedPayload) Type() EntryType { return EntryExpenseVoided }

// RootKeyRotationPayload rotates a member's root key, carried by enough
// co-signatures (§4.3, I8).
type RootKeyRotationPayload struct {
	PreviousRootPubkey crypto.PublicKey           `json:"previous_root_pubkey"`
	NewRootPubkey      crypto.PublicKey           `json:"new_root_pubkey"`
	CoSignatures       []identity.CoSignaturePair `json:"co_signatures"`
}

func (RootKeyRotationPayload) Type() EntryType { return EntryRootKeyRotation }

// Entry is one immutable record in a group's log (§3).
type Entry struct {
	EntryID             crypto.Hash      `json:"entry_id"`
	PreviousHash        crypto.Hash      `json:"previous_hash,omitempty"`
	LamportClock        int64            `json:"lamport_clock"`
	Timestamp           int64            `json:"timestamp"`
	EntryType           EntryType        `json:"entry_type"`
	CreatorDevicePubkey crypto.PublicKey `json:"creator_device_pubkey"`
	Signature           crypto.Signature `json:"signature"`
	Payload             Payload          `json:"payload"`
}

// hashedFields is exactly the field set hashed into entry_id (§4.1, I2):
// all entry fields except signature.
type hashedFields struct {
	PreviousHash        crypto.Hash      `json:"previous_hash,omitempty"`
	LamportClock        int64            `json:"lamport_clock"`
	Timestamp           int64            `json:"timestamp"`
	EntryType           EntryType        `json:"entry_type"`
	Payload             Payload          `json:"payload"`
	CreatorDevicePubkey crypto.PublicKey `json:"creator_device_pubkey"`
}

// ComputeEntryID recomputes entry_id from e's hashed fields (I2).
func ComputeEntryID(e Entry) (crypto.Hash, error) {
	return crypto.ComputeHash(hashedFields{
		PreviousHash:        e.PreviousHash,
		LamportClock:        e.LamportClock,
		Timestamp:           e.Timestamp,
		EntryType:           e.EntryType,
		Payload:             e.Payload,
		CreatorDevicePubkey: e.CreatorDevicePubkey,
	})
}

// VerifySignature checks I3: signature verifies against entry_id under
// creator_device_pubkey, where the signed message is the hex text of
// entry_id (§4.1).
func (e Entry) VerifySignature() bool {
	return crypto.VerifyHash(e.CreatorDevicePubkey, e.EntryID, e.Signature)
}

// entryWire is the JSON-serializable mirror used for marshal/unmarshal; the
// Payload field is raw so the concrete variant can be resolved from
// entry_type first.
type entryWire struct {
	EntryID             crypto.Hash      `json:"entry_id"`
	PreviousHash        crypto.Hash      `json:"previous_hash,omitempty"`
	LamportClock        int64            `json:"lamport_clock"`
	Timestamp           int64            `json:"timestamp"`
	EntryType           EntryType        `json:"entry_type"`
	CreatorDevicePubkey crypto.PublicKey `json:"creator_device_pubkey"`
	Signature           crypto.Signature `json:"signature"`
	Payload             json.RawMessage  `json:"payload"`
}

// MarshalJSON implements json.Marshaler for the polymorphic Entry.
func (e Entry) MarshalJSON() ([]byte, error) {
	payloadRaw, err := json.Marshal(e.Payload)
	if err != nil {
		return nil, fmt.Errorf("ledger: marshal payload: %w", err)
	}
	w := entryWire{
		EntryID:             e.EntryID,
		PreviousHash:        e.PreviousHash,
		LamportClock:        e.LamportClock,
		Timestamp:           e.Timestamp,
		EntryType:           e.EntryType,
		CreatorDevicePubkey: e.CreatorDevicePubkey,
		Signature:           e.Signature,
		Payload:             payloadRaw,
	}
	return json.Marshal(w)
}

// UnmarshalJSON implements json.Unmarshaler, dispatching the payload's
// concrete type on entry_type.
func (e *Entry) UnmarshalJSON(data []byte) error {
	var w entryWire
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("ledger: unmarshal entry: %w", err)
	}
	payload, err := decodePayload(w.EntryType, w.Payload)
	if err != nil {
		return err
	}
	e.EntryID = w.EntryID
	e.PreviousHash = w.PreviousHash
	e.LamportClock = w.LamportClock
	e.Timestamp = w.Timestamp
	e.EntryType = w.EntryType
	e.CreatorDevicePubkey = w.CreatorDevicePubkey
	e.Signature = w.Signature
	e.Payload = payload
	return nil
}

func decodePayload(t EntryType, raw json.RawMessage) (Payload, error) {
	var p Payload
	switch t {
	case EntryGenesis:
		p = &GenesisPayload{}
	case EntryMemberAdded:
		p = &MemberAddedPayload{}
	case EntryMemberRemoved:
		p = &MemberRemovedPayload{}
	case EntryDeviceAuthorized:
		p = &DeviceAuthorizedPayload{}
	case EntryDeviceRevoked:
		p = &DeviceRevokedPayload{}
	case EntryExpenseCreated:
		p = &ExpenseCreatedPayload{}
	case EntryExpenseCorrection:
		p = &ExpenseCorrectionPayload{}
	case EntryExpenseVoided:
		p = &ExpenseVoidedPayload{}
	case EntryRootKeyRotation:
		p = &RootKeyRotationPayload{}
	default:
		return nil, fmt.Errorf("ledger: unknown entry_type %q", t)
	}
	if err := json.Unmarshal(raw, p); err != nil {
		return nil, fmt.Errorf("ledger: unmarshal %s payload: %w", t, err)
	}
	// Dereference to the value form so Payload holds a plain value, not a
	// pointer — keeps Entry values comparable and avoids accidental
	// shared mutation across copies.
	switch v := p.(type) {
	case *GenesisPayload:
		return *v, nil
	case *MemberAddedPayload:
		return *v, nil
	case *MemberRemovedPayload:
		return *v, nil
	case *DeviceAuthorizedPayload:
		return *v, nil
	case *DeviceRevokedPayload:
		return *v, nil
	case *ExpenseCreatedPayload:
		return *v, nil
	case *ExpenseCorrectionPayload:
		return *v, nil
	case *ExpenseVoidedPayload:
		return *v, nil
	case *RootKeyRotationPayload:
		return *v, nil
	default:
		return nil, fmt.Errorf("ledger: unreachable payload type %T", p)
	}
}
