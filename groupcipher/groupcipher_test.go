package groupcipher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveGroupKeyDeterministicAndDistinct(t *testing.T) {
	secret := []byte("shared-secret-material")

	k1, err := DeriveGroupKey(secret, "group-1")
	require.NoError(t, err)
	k2, err := DeriveGroupKey(secret, "group-1")
	require.NoError(t, err)
	assert.Equal(t, k1, k2)

	k3, err := DeriveGroupKey(secret, "group-2")
	require.NoError(t, err)
	assert.NotEqual(t, k1, k3)

	k4, err := DeriveGroupKey([]byte("other-secret"), "group-1")
	require.NoError(t, err)
	assert.NotEqual(t, k1, k4)
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	key, err := DeriveGroupKey([]byte("shared-secret"), "group-1")
	require.NoError(t, err)

	plaintext := []byte(`{"entry_id":"deadbeef"}`)
	frame, err := Encrypt(key, plaintext)
	require.NoError(t, err)

	decrypted, err := Decrypt(key, frame)
	require.NoError(t, err)
	assert.Equal(t, plaintext, decrypted)
}

func TestDecryptFailsWithWrongKey(t *testing.T) {
	key, err := DeriveGroupKey([]byte("shared-secret"), "group-1")
	require.NoError(t, err)
	other, err := DeriveGroupKey([]byte("shared-secret"), "group-2")
	require.NoError(t, err)

	frame, err := Encrypt(key, []byte("hello"))
	require.NoError(t, err)

	_, err = Decrypt(other, frame)
	assert.ErrorIs(t, err, ErrDecryptionFailed)
}

func TestDecryptFailsOnMutatedCiphertext(t *testing.T) {
	key, err := DeriveGroupKey([]byte("shared-secret"), "group-1")
	require.NoError(t, err)

	frame, err := Encrypt(key, []byte("hello, group"))
	require.NoError(t, err)
	frame[len(frame)-1] ^= 0xFF

	_, err = Decrypt(key, frame)
	assert.ErrorIs(t, err, ErrDecryptionFailed)
}

func TestDecryptFailsOnShortFrame(t *testing.T) {
	key, err := DeriveGroupKey([]byte("shared-secret"), "group-1")
	require.NoError(t, err)

	_, err = Decrypt(key, []byte("too short"))
	assert.ErrorIs(t, err, ErrDecryptionFailed)
}

func TestEncryptProducesFreshNoncePerCall(t *testing.T) {
	key, err := DeriveGroupKey([]byte("shared-secret"), "group-1")
	require.NoError(t, err)

	f1, err := Encrypt(key, []byte("same plaintext"))
	require.NoError(t, err)
	f2, err := Encrypt(key, []byte("same plaintext"))
	require.NoError(t, err)
	assert.NotEqual(t, f1, f2)
}
