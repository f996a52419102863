package ledger

import (
	"time"

	"github.com/tobael/splitledger/crypto"
	"github.com/tobael/splitledger/identity"
)

// inviteExpiryTolerance is the clock-skew tolerance granted to invite
// expiry checks (§4.3 MemberAdded rule).
const inviteExpiryTolerance = 5 * time.Minute

// ValidateEntry validates e against the ordered list of entries strictly
// preceding it and the group state obtained by applying those entries
// (§4.3). It never returns early: every applicable rule is checked and all
// failures are accumulated. A nil return means e is valid.
func ValidateEntry(e Entry, preceding []Entry, state *GroupState) *ValidationError {
	verr := &ValidationError{}

	// 1. Structural.
	if e.EntryID == "" {
		verr.add(KindStructural, "entry_id is empty")
	}
	if !e.CreatorDevicePubkey.Valid() {
		verr.add(KindStructural, "creator_device_pubkey is malformed")
	}
	if e.Signature == "" {
		verr.add(KindStructural, "signature is empty")
	} else if _, err := e.Signature.Bytes(); err != nil {
		verr.add(KindStructural, "signature is malformed: %v", err)
	}
	if e.LamportClock < 0 {
		verr.add(KindStructural, "lamport_clock is negative")
	}
	if e.Timestamp <= 0 {
		verr.add(KindStructural, "timestamp must be positive")
	}

	// 2. Hash integrity.
	if recomputed, err := ComputeEntryID(e); err != nil {
		verr.add(KindIntegrity, "failed to recompute entry_id: %v", err)
	} else if recomputed != e.EntryID {
		verr.add(KindIntegrity, "entry_id mismatch: expected %s got %s", recomputed, e.EntryID)
	}

	// 3. Signature.
	if e.CreatorDevicePubkey.Valid() && e.EntryID != "" {
		if !e.VerifySignature() {
			verr.add(KindIntegrity, "signature verification failed")
		}
	}

	// 4. Chain continuity.
	isGenesis := e.EntryType == EntryGenesis
	if isGenesis {
		if e.PreviousHash != "" {
			verr.add(KindStructural, "genesis entry must not set previous_hash")
		}
		if len(preceding) != 0 {
			verr.add(KindStructural, "genesis entry must be first in the chain")
		}
	} else {
		if !findByID(preceding, e.PreviousHash) {
			verr.add(KindIntegrity, "previous_hash %s does not reference a preceding entry", e.PreviousHash)
		}
	}

	// 5. Creator authorization.
	switch e.EntryType {
	case EntryGenesis, EntryMemberAdded:
		// self-authorizing
	default:
		if state == nil {
			verr.add(KindAuthorization, "no group state to authorize against")
		} else if _, _, ok := state.FindDeviceOwner(e.CreatorDevicePubkey); !ok {
			verr.add(KindAuthorization, "creator_device_pubkey %s is not an authorized device of any active member", e.CreatorDevicePubkey)
		}
	}

	// 6. Payload validation.
	validatePayload(verr, e, preceding, state)

	if verr.ok() {
		return nil
	}
	return verr
}

func findByID(entries []Entry, id crypto.Hash) bool {
	for _, e := range entries {
		if e.EntryID == id {
			return true
		}
	}
	return false
}

func findEntry(entries []Entry, id crypto.Hash) (Entry, bool) {
	for _, e := range entries {
		if e.EntryID == id {
			return e, true
		}
	}
	return Entry{}, false
}

func validatePayload(verr *ValidationError, e Entry, preceding []Entry, state *GroupState) {
	switch p := e.Payload.(type) {
	case GenesisPayload:
		validateGenesisPayload(verr, p)
	case MemberAddedPayload:
		validateMemberAddedPayload(verr, e, p, state)
	case MemberRemovedPayload:
		validateMemberRemovedPayload(verr, e, p, state)
	case DeviceAuthorizedPayload:
		validateDeviceAuthorizedPayload(verr, e, p, state)
	case DeviceRevokedPayload:
		validateDeviceRevokedPayload(verr, p, state)
	case ExpenseCreatedPayload:
		validateExpenseCreatedPayload(verr, p, state)
	case ExpenseCorrectionPayload:
		validateExpenseCorrectionPayload(verr, p, preceding, state)
	case ExpenseVoidedPayload:
		validateExpenseVoidedPayload(verr, p, preceding)
	case RootKeyRotationPayload:
		validateRootKeyRotationPayload(verr, p, state)
	default:
		verr.add(KindStructural, "unknown payload type %T", p)
	}
}

func validateGenesisPayload(verr *ValidationError, p GenesisPayload) {
	if p.GroupID == "" {
		verr.add(KindStructural, "group_id is empty")
	}
	if p.GroupName == "" {
		verr.add(KindStructural, "group_name is empty")
	}
	if !p.CreatorRootPubkey.Valid() {
		verr.add(KindStructural, "creator_root_pubkey is malformed")
	}
	if p.CreatorDisplayName == "" {
		verr.add(KindStructural, "creator_display_name is empty")
	}
}

func validateMemberAddedPayload(verr *ValidationError, e Entry, p MemberAddedPayload, state *GroupState) {
	if !p.MemberRootPubkey.Valid() {
		verr.add(KindStructural, "member_root_pubkey is malformed")
	}
	if p.MemberDisplayName == "" {
		verr.add(KindStructural, "member_display_name is empty")
	}
	if state == nil {
		verr.add(KindAuthorization, "no group state for MemberAdded")
		return
	}
	if m, ok := state.Members[p.MemberRootPubkey]; ok && m.IsActive {
		verr.add(KindDomain, "member %s is already active", p.MemberRootPubkey)
	}
	tok := p.InviteToken
	if !tok.Verify() {
		verr.add(KindAuthorization, "invite token signature is invalid")
	}
	inviter, ok := state.Members[tok.InviterRootPubkey]
	if !ok || !inviter.IsActive {
		verr.add(KindAuthorization, "invite inviter %s is not an active member", tok.InviterRootPubkey)
	}
	if tok.GroupID != state.GroupID {
		verr.add(KindAuthorization, "invite token group_id %s does not match group %s", tok.GroupID, state.GroupID)
	}
	deadline := tok.ExpiresAt + inviteExpiryTolerance.Milliseconds()
	if e.Timestamp > deadline {
		verr.add(KindAuthorization, "invite token expired: entry timestamp %d exceeds expires_at+tolerance %d", e.Timestamp, deadline)
	}
}

func validateMemberRemovedPayload(verr *ValidationError, e Entry, p MemberRemovedPayload, state *GroupState) {
	if state == nil {
		verr.add(KindAuthorization, "no group state for MemberRemoved")
		return
	}
	target, ok := state.Members[p.MemberRootPubkey]
	if !ok || !target.IsActive {
		verr.add(KindDomain, "member %s is not currently active", p.MemberRootPubkey)
		return
	}
	ownerRoot, _, ok := state.FindDeviceOwner(e.CreatorDevicePubkey)
	if !ok {
		verr.add(KindAuthorization, "creator device does not belong to an active member")
		return
	}
	if ownerRoot != p.MemberRootPubkey && ownerRoot != state.CreatorRootPubkey {
		verr.add(KindAuthorization, "member removal must be self-removal or performed by the group creator")
	}
}

func validateDeviceAuthorizedPayload(verr *ValidationError, e Entry, p DeviceAuthorizedPayload, state *GroupState) {
	if !p.DevicePublicKey.Valid() {
		verr.add(KindStructural, "device_public_key is malformed")
	}
	if state == nil {
		verr.add(KindAuthorization, "no group state for DeviceAuthorized")
		return
	}
	owner, ok := state.Members[p.OwnerRootPubkey]
	if !ok || !owner.IsActive {
		verr.add(KindAuthorization, "owner %s is not an active member", p.OwnerRootPubkey)
		return
	}
	msg := identity.DeviceAuthorizationMessage{
		DevicePublicKey: p.DevicePublicKey,
		RootPublicKey:   p.OwnerRootPubkey,
		AuthorizedAt:    e.Timestamp,
	}
	if !identity.VerifyDeviceAuthorization(msg, p.AuthorizationSignature) {
		verr.add(KindAuthorization, "device authorization signature is invalid or not bound to this entry's timestamp")
	}
}

func validateDeviceRevokedPayload(verr *ValidationError, p DeviceRevokedPayload, state *GroupState) {
	if state == nil {
		verr.add(KindAuthorization, "no group state for DeviceRevoked")
		return
	}
	owner, ok := state.Members[p.OwnerRootPubkey]
	if !ok {
		verr.add(KindDomain, "owner %s unknown", p.OwnerRootPubkey)
		return
	}
	if !owner.HasDevice(p.DevicePublicKey) {
		verr.add(KindDomain, "device %s is not currently authorized for owner %s", p.DevicePublicKey, p.OwnerRootPubkey)
	}
}

func validateExpenseCreatedPayload(verr *ValidationError, p ExpenseCreatedPayload, state *GroupState) {
	if p.Description == "" {
		verr.add(KindStructural, "description is empty")
	}
	if p.Currency == "" || len(p.Currency) != 3 {
		verr.add(KindStructural, "currency %q is not a 3-letter ISO-4217 code", p.Currency)
	}
	if p.AmountMinorUnits <= 0 {
		verr.add(KindDomain, "amount_minor_units must be positive, got %d", p.AmountMinorUnits)
	}
	if state == nil {
		verr.add(KindAuthorization, "no group state for expense validation")
		return
	}
	if m, ok := state.Members[p.PaidByRootPubkey]; !ok || !m.IsActive {
		verr.add(KindDomain, "payer %s is not an active member", p.PaidByRootPubkey)
	}
	var sum int64
	for member, share := range p.Splits {
		if share < 0 {
			verr.add(KindDomain, "split share for %s is negative", member)
		}
		if m, ok := state.Members[member]; !ok || !m.IsActive {
			verr.add(KindDomain, "split member %s is not an active member", member)
		}
		sum += share
	}
	if sum != p.AmountMinorUnits {
		verr.add(KindDomain, "splits sum %d does not equal amount %d", sum, p.AmountMinorUnits)
	}
}

func validateExpenseCorrectionPayload(verr *ValidationError, p ExpenseCorrectionPayload, preceding []Entry, state *GroupState) {
	referenced, ok := findEntry(preceding, p.ReferencedEntryID)
	if !ok {
		verr.add(KindDomain, "referenced_entry_id %s not found", p.ReferencedEntryID)
	} else if referenced.EntryType != EntryExpenseCreated && referenced.EntryType != EntryExpenseCorrection {
		verr.add(KindDomain, "referenced_entry_id %s is not an expense entry", p.ReferencedEntryID)
	}
	validateExpenseCreatedPayload(verr, p.CorrectedExpense, state)
}

func validateExpenseVoidedPayload(verr *ValidationError, p ExpenseVoidedPayload, preceding []Entry) {
	voided, ok := findEntry(preceding, p.VoidedEntryID)
	if !ok {
		verr.add(KindDomain, "voided_entry_id %s not found", p.VoidedEntryID)
		return
	}
	if voided.EntryType != EntryExpenseCreated && voided.EntryType != EntryExpenseCorrection {
		verr.add(KindDomain, "voided_entry_id %s is not an expense entry", p.VoidedEntryID)
	}
}

func validateRootKeyRotationPayload(verr *ValidationError, p RootKeyRotationPayload, state *GroupState) {
	if state == nil {
		verr.add(KindAuthorization, "no group state for RootKeyRotation")
		return
	}
	prev, ok := state.Members[p.PreviousRootPubkey]
	if !ok || !prev.IsActive {
		verr.add(KindAuthorization, "previous_root_pubkey %s is not an active member", p.PreviousRootPubkey)
		return
	}
	seen := make(map[crypto.PublicKey]struct{}, len(p.CoSignatures))
	valid := 0
	for _, pair := range p.CoSignatures {
		if _, dup := seen[pair.SignerRootPubkey]; dup {
			continue
		}
		seen[pair.SignerRootPubkey] = struct{}{}
		if pair.SignerRootPubkey == p.PreviousRootPubkey {
			continue
		}
		signer, ok := state.Members[pair.SignerRootPubkey]
		if !ok || !signer.IsActive {
			continue
		}
		if !identity.VerifyRecoveryCoSignature(pair, p.PreviousRootPubkey, p.NewRootPubkey, state.GroupID) {
			continue
		}
		valid++
	}
	required := identity.RequiredCoSignatures(state.ActiveMemberCount())
	if valid < required {
		verr.add(KindAuthorization, "insufficient co-signatures: have %d, need %d", valid, required)
	}
}
