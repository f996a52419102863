package crypto

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSignVerifyRoundTrip(t *testing.T) {
	kp, err := GenerateKeyPair()
	require.NoError(t, err)
	require.True(t, kp.Public.Valid())

	h, err := ComputeHash(map[string]interface{}{"x": 1})
	require.NoError(t, err)

	sig, err := SignHash(kp.Secret, h)
	require.NoError(t, err)
	require.True(t, VerifyHash(kp.Public, h, sig))

	other, err := GenerateKeyPair()
	require.NoError(t, err)
	require.False(t, VerifyHash(other.Public, h, sig))
}

func TestSignMessageChangesWithField(t *testing.T) {
	kp, err := GenerateKeyPair()
	require.NoError(t, err)

	type rec struct {
		A int `json:"a"`
	}
	h1, sig1, err := SignMessage(kp.Secret, rec{A: 1})
	require.NoError(t, err)
	h2, _, err := SignMessage(kp.Secret, rec{A: 2})
	require.NoError(t, err)

	require.NotEqual(t, h1, h2)
	require.True(t, VerifyMessage(kp.Public, rec{A: 1}, sig1))
	require.False(t, VerifyMessage(kp.Public, rec{A: 2}, sig1))
}
