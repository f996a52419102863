package ledger

import (
	"fmt"

	"github.com/tobael/splitledger/crypto"
)

// BuildEntry computes hash and signature for a new entry given its
// unsigned fields, then returns the fully formed, signed Entry (§4.1's
// builder). previousHash is empty for Genesis.
func BuildEntry(
	secret crypto.SecretKey,
	creatorDevicePubkey crypto.PublicKey,
	previousHash crypto.Hash,
	lamportClock int64,
	timestamp int64,
	payload Payload,
) (Entry, error) {
	e := Entry{
		PreviousHash:        previousHash,
		LamportClock:        lamportClock,
		Timestamp:           timestamp,
		EntryType:           payload.Type(),
		CreatorDevicePubkey: creatorDevicePubkey,
		Payload:             payload,
	}
	id, err := ComputeEntryID(e)
	if err != nil {
		return Entry{}, fmt.Errorf("ledger: build entry: %w", err)
	}
	e.EntryID = id
	sig, err := crypto.SignHash(secret, id)
	if err != nil {
		return Entry{}, fmt.Errorf("ledger: sign entry: %w", err)
	}
	e.Signature = sig
	return e, nil
}
