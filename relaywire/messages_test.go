package relaywire

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvelopeSniffsType(t *testing.T) {
	msg := NewPublishEntry("group-1", 3, "sender-pubkey", "ciphertext-b64")
	data, err := json.Marshal(msg)
	require.NoError(t, err)

	var env Envelope
	require.NoError(t, json.Unmarshal(data, &env))
	assert.Equal(t, TypePublishEntry, env.Type)

	var decoded PublishEntry
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, msg, decoded)
}

func TestNewEntryRoundTrip(t *testing.T) {
	msg := NewEntry{
		Type:           TypeNewEntry,
		GroupID:        "group-1",
		EncryptedEntry: "ciphertext-b64",
		LamportClock:   5,
		SenderPubkey:   "sender-pubkey",
	}
	data, err := json.Marshal(msg)
	require.NoError(t, err)
	var decoded NewEntry
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, msg, decoded)
}
