package invitelink

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleData() Data {
	relay := "wss://relay.example.com"
	secret := "deadbeef"
	return Data{
		Token: Token{
			GroupID:           "group-1",
			InviterRootPubkey: "abcd1234",
			ExpiresAtMs:       1234567890,
			Signature:         "sig-bytes",
		},
		RelayURL:       &relay,
		GroupSecretHex: &secret,
	}
}

func TestSerializeParseRoundTrip(t *testing.T) {
	d := sampleData()
	payload, err := Serialize(d)
	require.NoError(t, err)

	parsed, err := Parse(payload)
	require.NoError(t, err)
	assert.Equal(t, d.Token, parsed.Token)
	require.NotNil(t, parsed.RelayURL)
	assert.Equal(t, *d.RelayURL, *parsed.RelayURL)
}

func TestSerializeParseRoundTripWithoutOptionalFields(t *testing.T) {
	d := Data{Token: sampleData().Token}
	payload, err := Serialize(d)
	require.NoError(t, err)

	parsed, err := Parse(payload)
	require.NoError(t, err)
	assert.Equal(t, d.Token, parsed.Token)
	assert.Nil(t, parsed.RelayURL)
	assert.Nil(t, parsed.GroupSecretHex)
}

func TestParseRejectsBadBase64(t *testing.T) {
	_, err := Parse("not valid base64!!")
	assert.ErrorIs(t, err, ErrInvalidLink)
}

func TestParseRejectsBadJSON(t *testing.T) {
	payload := base64.RawURLEncoding.EncodeToString([]byte("not json"))
	_, err := Parse(payload)
	assert.ErrorIs(t, err, ErrInvalidLink)
}

func TestParseRejectsMissingTokenFields(t *testing.T) {
	d := sampleData()
	d.Token.Signature = ""
	payload, err := Serialize(d)
	require.NoError(t, err)

	_, err = Parse(payload)
	assert.ErrorIs(t, err, ErrInvalidLink)
}

func TestParseURLExtractsTokenParameter(t *testing.T) {
	d := sampleData()
	payload, err := Serialize(d)
	require.NoError(t, err)

	parsed, err := ParseURL("https://app.example.com/join?token=" + payload + "&other=1")
	require.NoError(t, err)
	assert.Equal(t, d.Token, parsed.Token)
}

func TestParseURLRejectsMissingTokenParameter(t *testing.T) {
	_, err := ParseURL("https://app.example.com/join")
	assert.ErrorIs(t, err, ErrInvalidLink)
}
