// Package identity implements the root identities, device authorizations,
// invite tokens and recovery co-signatures that the ledger engine's
// authorization rules (§3, §4.3) are built on. It depends only on crypto.
package identity

import (
	"fmt"

	"github.com/tobael/splitledger/crypto"
)

// RootIdentity is a member's long-lived keypair — the sole authority for
// that member, per the glossary.
type RootIdentity struct {
	KeyPair crypto.KeyPair
}

// NewRootIdentity generates a fresh root identity.
func NewRootIdentity() (RootIdentity, error) {
	kp, err := crypto.GenerateKeyPair()
	if err != nil {
		return RootIdentity{}, fmt.Errorf("identity: new root identity: %w", err)
	}
	return RootIdentity{KeyPair: kp}, nil
}

// PublicKey returns the root's public key.
func (r RootIdentity) PublicKey() crypto.PublicKey { return r.KeyPair.Public }

// Sign signs an arbitrary canonicalizable record with the root secret key,
// returning its hash and signature (see crypto.SignMessage).
func (r RootIdentity) Sign(v interface{}) (crypto.Hash, crypto.Signature, error) {
	return crypto.SignMessage(r.KeyPair.Secret, v)
}
