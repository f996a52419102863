// Package invitelink implements the URL-safe, base64-encoded JSON wire
// format used to hand an invite token (plus optional relay/group-secret
// hints) to a prospective member out of band (§6 invite-link wire format).
package invitelink

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidLink is returned for any malformed invite link: bad base64,
// bad JSON, or a missing required token field.
var ErrInvalidLink = errors.New("invitelink: invalid invite link")

// Token is the required inner `t` object of an invite link.
type Token struct {
	GroupID           string `json:"g"`
	InviterRootPubkey string `json:"i"`
	ExpiresAtMs       int64  `json:"e"`
	Signature         string `json:"s"`
}

// Data is the full invite link payload: the required Token plus optional
// relay and group-secret hints.
type Data struct {
	Token      Token   `json:"t"`
	RelayURL   *string `json:"r,omitempty"`
	GroupSecretHex *string `json:"k,omitempty"`
}

// Serialize encodes d as URL-safe, unpadded base64 of its UTF-8 JSON form.
func Serialize(d Data) (string, error) {
	raw, err := json.Marshal(d)
	if err != nil {
		return "", fmt.Errorf("invitelink: marshal: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// Parse decodes an invite link payload previously produced by Serialize. It
// rejects input that fails base64 decoding, fails JSON parsing, or lacks
// any of t.g, t.i, t.e, t.s (§6, P4).
func Parse(payload string) (Data, error) {
	raw, err := base64.RawURLEncoding.DecodeString(payload)
	if err != nil {
		return Data{}, fmt.Errorf("%w: bad base64: %v", ErrInvalidLink, err)
	}
	var d Data
	if err := json.Unmarshal(raw, &d); err != nil {
		return Data{}, fmt.Errorf("%w: bad json: %v", ErrInvalidLink, err)
	}
	if d.Token.GroupID == "" || d.Token.InviterRootPubkey == "" || d.Token.ExpiresAtMs == 0 || d.Token.Signature == "" {
		return Data{}, fmt.Errorf("%w: missing required token field", ErrInvalidLink)
	}
	return d, nil
}

// ParseURL extracts and parses the invite payload from a URL of the form
// "...?token=<payload>", accepted as syntactic sugar over the bare payload
// (§6).
func ParseURL(u string) (Data, error) {
	const marker = "token="
	idx := strings.Index(u, marker)
	if idx < 0 {
		return Data{}, fmt.Errorf("%w: no token parameter", ErrInvalidLink)
	}
	payload := u[idx+len(marker):]
	if amp := strings.IndexByte(payload, '&'); amp >= 0 {
		payload = payload[:amp]
	}
	return Parse(payload)
}
