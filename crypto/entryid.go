package crypto

import (
	"crypto/ed25519"
	"crypto/sha256"
	"fmt"
)

// ComputeHash canonicalizes v (see Canonicalize) and returns its SHA-256
// digest. This is the primitive behind entry_id computation (§4.1 /
// invariant I2): callers canonicalize the exact field set the spec names
// before hashing.
func ComputeHash(v interface{}) (Hash, error) {
	canon, err := Canonicalize(v)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canon)
	return HashFromBytes(sum), nil
}

// Sign signs msg with the Ed25519 key identified by secret.
func Sign(secret SecretKey, msg []byte) (Signature, error) {
	priv, err := KeyPair{Secret: secret}.PrivateKey()
	if err != nil {
		return "", err
	}
	return SignatureFromBytes(ed25519.Sign(priv, msg)), nil
}

// Verify reports whether sig is a valid Ed25519 signature of msg under pub.
// It never panics on malformed input; malformed keys/signatures simply fail
// verification.
func Verify(pub PublicKey, msg []byte, sig Signature) bool {
	pubBytes, err := pub.Bytes()
	if err != nil {
		return false
	}
	sigBytes, err := sig.Bytes()
	if err != nil {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(pubBytes), msg, sigBytes)
}

// SignHash signs the UTF-8 bytes of h's hex representation — not the raw
// hash bytes. The spec (§4.1) fixes this choice explicitly to keep
// signatures interoperable with the reference implementation; callers
// MUST NOT sign the raw digest instead.
func SignHash(secret SecretKey, h Hash) (Signature, error) {
	return Sign(secret, []byte(h))
}

// VerifyHash verifies a signature produced by SignHash.
func VerifyHash(pub PublicKey, h Hash, sig Signature) bool {
	return Verify(pub, []byte(h), sig)
}

// SignMessage signs an arbitrary canonicalizable record, returning both its
// hash and the signature over the hash's hex text. Used for the auxiliary
// authenticated records (DeviceAuthorization, InviteToken,
// RecoveryCoSignature) which sign a canonical record directly rather than
// an entry_id, but via the same hash-then-sign-hex shape for consistency.
func SignMessage(secret SecretKey, v interface{}) (Hash, Signature, error) {
	h, err := ComputeHash(v)
	if err != nil {
		return "", "", fmt.Errorf("crypto: sign message: %w", err)
	}
	sig, err := SignHash(secret, h)
	if err != nil {
		return "", "", err
	}
	return h, sig, nil
}

// VerifyMessage verifies a signature produced by SignMessage against a
// freshly canonicalized copy of v.
func VerifyMessage(pub PublicKey, v interface{}, sig Signature) bool {
	h, err := ComputeHash(v)
	if err != nil {
		return false
	}
	return VerifyHash(pub, h, sig)
}
