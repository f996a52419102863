package identity

import (
	"fmt"

	"github.com/tobael/splitledger/crypto"
)

// InviteToken is the canonical signed message described in §3(b):
// `{group_id, inviter_root_pubkey, expires_at}`, signed by the inviter's
// root key. It grants the named joining device self-authorization when
// embedded in a MemberAdded entry.
type InviteToken struct {
	GroupID           string           `json:"group_id"`
	InviterRootPubkey crypto.PublicKey `json:"inviter_root_pubkey"`
	ExpiresAt         int64            `json:"expires_at"`
	Signature         crypto.Signature `json:"signature"`
}

// inviteSignedFields is the exact record that gets canonicalized and
// signed/verified — it excludes Signature itself.
type inviteSignedFields struct {
	GroupID           string           `json:"group_id"`
	InviterRootPubkey crypto.PublicKey `json:"inviter_root_pubkey"`
	ExpiresAt         int64            `json:"expires_at"`
}

func (t InviteToken) signedFields() inviteSignedFields {
	return inviteSignedFields{
		GroupID:           t.GroupID,
		InviterRootPubkey: t.InviterRootPubkey,
		ExpiresAt:         t.ExpiresAt,
	}
}

// NewInviteToken has inviter issue a signed invite for groupID, expiring at
// expiresAt (unix milliseconds).
func NewInviteToken(inviter RootIdentity, groupID string, expiresAt int64) (InviteToken, error) {
	t := InviteToken{
		GroupID:           groupID,
		InviterRootPubkey: inviter.PublicKey(),
		ExpiresAt:         expiresAt,
	}
	_, sig, err := inviter.Sign(t.signedFields())
	if err != nil {
		return InviteToken{}, fmt.Errorf("identity: sign invite token: %w", err)
	}
	t.Signature = sig
	return t, nil
}

// Verify checks the invite token's signature against its claimed inviter.
// It does not check expiry or group membership — those are validated by
// the ledger package against the chain's derived state (§4.3).
func (t InviteToken) Verify() bool {
	return crypto.VerifyMessage(t.InviterRootPubkey, t.signedFields(), t.Signature)
}
