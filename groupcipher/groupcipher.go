// Package groupcipher derives a per-group AEAD key from a shared secret and
// encrypts/decrypts canonically serialized entries for transit over an
// untrusted relay (§4.6). Key derivation is HKDF-SHA256; the AEAD is
// AES-256-GCM with a random 12-byte nonce prefixed to the ciphertext.
package groupcipher

import (
	"crypto/aes"
	"crypto/cipher"
	crand "crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

const (
	keySize   = 32
	nonceSize = 12
	// minFrameSize is nonce(12) + the smallest possible GCM tag-only
	// ciphertext (16 bytes of tag, zero bytes of plaintext).
	minFrameSize = nonceSize + 16
	hkdfInfo     = "splitledger-relay-encryption"
)

// ErrDecryptionFailed is returned for every decrypt failure — short input,
// bad authentication tag, or wrong key are deliberately indistinguishable
// to the caller (§4.6).
var ErrDecryptionFailed = errors.New("groupcipher: decryption failed")

// GroupKey is a derived 32-byte AES-256-GCM key, one per group.
type GroupKey [keySize]byte

// DeriveGroupKey derives the group's AEAD key from a shared secret and the
// group id (§4.6, P6): deterministic in (sharedSecret, groupID); distinct
// inputs yield distinct keys with overwhelming probability.
func DeriveGroupKey(sharedSecret []byte, groupID string) (GroupKey, error) {
	var key GroupKey
	r := hkdf.New(sha256.New, sharedSecret, []byte(groupID), []byte(hkdfInfo))
	if _, err := io.ReadFull(r, key[:]); err != nil {
		return GroupKey{}, fmt.Errorf("groupcipher: derive group key: %w", err)
	}
	return key, nil
}

// Encrypt seals plaintext under key with a fresh random nonce, returning
// nonce(12) || ciphertext_with_tag(16+N) (§4.6).
func Encrypt(key GroupKey, plaintext []byte) ([]byte, error) {
	aead, err := newAEAD(key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(crand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("groupcipher: generate nonce: %w", err)
	}
	return aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Decrypt opens a frame produced by Encrypt. Any failure — short input, bad
// tag, or wrong key — surfaces uniformly as ErrDecryptionFailed (§4.6, P5).
func Decrypt(key GroupKey, frame []byte) ([]byte, error) {
	if len(frame) < minFrameSize {
		return nil, ErrDecryptionFailed
	}
	aead, err := newAEAD(key)
	if err != nil {
		return nil, err
	}
	nonce, ciphertext := frame[:nonceSize], frame[nonceSize:]
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return plaintext, nil
}

func newAEAD(key GroupKey) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("groupcipher: new cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("groupcipher: new gcm: %w", err)
	}
	return aead, nil
}
