package identity

import (
	"fmt"

	"github.com/tobael/splitledger/crypto"
)

// CoSignaturePair is the `(signer_root_pubkey, signature)` pair stored in a
// RootKeyRotation entry's `co_signatures` set (§3). The signed message
// itself — `{previous_root_pubkey, new_root_pubkey, group_id}` (§3(c)) — is
// reconstructed from the entry's own payload fields at verification time,
// not re-stored per signature.
type CoSignaturePair struct {
	SignerRootPubkey crypto.PublicKey `json:"signer_root_pubkey"`
	Signature        crypto.Signature `json:"signature"`
}

// recoverySignedFields is the canonical record a co-signer signs.
type recoverySignedFields struct {
	PreviousRootPubkey crypto.PublicKey `json:"previous_root_pubkey"`
	NewRootPubkey      crypto.PublicKey `json:"new_root_pubkey"`
	GroupID            string           `json:"group_id"`
}

// SignRecoveryCoSignature has signer endorse the rotation of previousRoot to
// newRoot for the named group, returning the pair to embed in the entry.
func SignRecoveryCoSignature(signer RootIdentity, previousRoot, newRoot crypto.PublicKey, groupID string) (CoSignaturePair, error) {
	fields := recoverySignedFields{
		PreviousRootPubkey: previousRoot,
		NewRootPubkey:      newRoot,
		GroupID:            groupID,
	}
	_, sig, err := signer.Sign(fields)
	if err != nil {
		return CoSignaturePair{}, fmt.Errorf("identity: sign recovery co-signature: %w", err)
	}
	return CoSignaturePair{SignerRootPubkey: signer.PublicKey(), Signature: sig}, nil
}

// VerifyRecoveryCoSignature checks pair against the rotation it claims to
// endorse.
func VerifyRecoveryCoSignature(pair CoSignaturePair, previousRoot, newRoot crypto.PublicKey, groupID string) bool {
	fields := recoverySignedFields{
		PreviousRootPubkey: previousRoot,
		NewRootPubkey:      newRoot,
		GroupID:            groupID,
	}
	return crypto.VerifyMessage(pair.SignerRootPubkey, fields, pair.Signature)
}

// RequiredCoSignatures returns the minimum number of valid, unique,
// non-self co-signatures a RootKeyRotation needs, given the number of
// currently active members including the rotating member (§4.3, I8):
// floor((activeMembers - 1) / 2) + 1.
func RequiredCoSignatures(activeMembers int) int {
	if activeMembers <= 0 {
		return 0
	}
	return (activeMembers-1)/2 + 1
}
