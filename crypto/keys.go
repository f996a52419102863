// Package crypto provides the Ed25519, SHA-256 and canonical-JSON
// primitives the ledger engine is built on. It depends only on the
// standard library so every higher tier (identity, ledger, balance,
// transport, syncmgr) can import it without creating cycles.
package crypto

import (
	"crypto/ed25519"
	crand "crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
)

const (
	// PublicKeySize is the byte length of an Ed25519 public key.
	PublicKeySize = ed25519.PublicKeySize
	// SecretKeySize is the byte length of an Ed25519 seed (private key).
	SecretKeySize = ed25519.SeedSize
	// SignatureSize is the byte length of an Ed25519 signature.
	SignatureSize = ed25519.SignatureSize
	// HashSize is the byte length of a SHA-256 digest.
	HashSize = 32
)

// PublicKey is a hex-encoded Ed25519 public key (64 hex characters).
type PublicKey string

// SecretKey is a hex-encoded Ed25519 seed (64 hex characters).
type SecretKey string

// Signature is a hex-encoded Ed25519 signature (128 hex characters).
type Signature string

// Hash is a hex-encoded SHA-256 digest (64 hex characters).
type Hash string

// KeyPair is a root or device Ed25519 keypair.
type KeyPair struct {
	Public PublicKey
	Secret SecretKey
}

// GenerateKeyPair creates a fresh Ed25519 keypair using crypto/rand.
func GenerateKeyPair() (KeyPair, error) {
	pub, priv, err := ed25519.GenerateKey(crand.Reader)
	if err != nil {
		return KeyPair{}, fmt.Errorf("crypto: generate keypair: %w", err)
	}
	seed := priv.Seed()
	return KeyPair{
		Public: PublicKey(hex.EncodeToString(pub)),
		Secret: SecretKey(hex.EncodeToString(seed)),
	}, nil
}

// PrivateKey reconstructs the full ed25519.PrivateKey from the seed.
func (k KeyPair) PrivateKey() (ed25519.PrivateKey, error) {
	raw, err := decodeFixed(string(k.Secret), SecretKeySize)
	if err != nil {
		return nil, fmt.Errorf("crypto: secret key: %w", err)
	}
	return ed25519.NewKeyFromSeed(raw), nil
}

// Bytes decodes a PublicKey to its raw 32 bytes.
func (p PublicKey) Bytes() ([]byte, error) {
	return decodeFixed(string(p), PublicKeySize)
}

// Valid reports whether p is well-formed hex of the expected length.
func (p PublicKey) Valid() bool {
	_, err := p.Bytes()
	return err == nil
}

// Bytes decodes a Signature to its raw 64 bytes.
func (s Signature) Bytes() ([]byte, error) {
	return decodeFixed(string(s), SignatureSize)
}

// Bytes decodes a Hash to its raw 32 bytes.
func (h Hash) Bytes() ([]byte, error) {
	return decodeFixed(string(h), HashSize)
}

// Valid reports whether h is well-formed hex of the expected length.
func (h Hash) Valid() bool {
	_, err := h.Bytes()
	return err == nil
}

func decodeFixed(s string, n int) ([]byte, error) {
	if s != strings.ToLower(s) {
		return nil, fmt.Errorf("invalid hex: upper-case digits")
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid hex: %w", err)
	}
	if len(raw) != n {
		return nil, fmt.Errorf("expected %d bytes, got %d", n, len(raw))
	}
	return raw, nil
}

// HashFromBytes hex-encodes a raw 32-byte digest.
func HashFromBytes(b [HashSize]byte) Hash {
	return Hash(hex.EncodeToString(b[:]))
}

// SignatureFromBytes hex-encodes a raw 64-byte signature.
func SignatureFromBytes(b []byte) Signature {
	return Signature(hex.EncodeToString(b))
}

// PublicKeyFromBytes hex-encodes a raw 32-byte public key.
func PublicKeyFromBytes(b []byte) PublicKey {
	return PublicKey(hex.EncodeToString(b))
}
