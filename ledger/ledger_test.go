package ledger

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tobael/splitledger/crypto"
	"github.com/tobael/splitledger/identity"
)

type testActor struct {
	root   identity.RootIdentity
	device identity.DeviceIdentity
}

func newTestActor(t *testing.T) testActor {
	t.Helper()
	root, err := identity.NewRootIdentity()
	require.NoError(t, err)
	device, err := identity.NewDeviceIdentity()
	require.NoError(t, err)
	return testActor{root: root, device: device}
}

func buildAndSign(t *testing.T, signer testActor, previousHash crypto.Hash, lamport, ts int64, payload Payload) Entry {
	t.Helper()
	e, err := BuildEntry(signer.device.KeyPair.Secret, signer.device.PublicKey(), previousHash, lamport, ts, payload)
	require.NoError(t, err)
	return e
}

// buildSampleChain returns a four-entry, two-member chain covering Genesis,
// MemberAdded, ExpenseCreated and ExpenseCorrection, ready for replay.
func buildSampleChain(t *testing.T) (alice, bob testActor, chain []Entry) {
	t.Helper()
	alice = newTestActor(t)
	bob = newTestActor(t)

	genesis := buildAndSign(t, alice, "", 0, 1000, GenesisPayload{
		GroupID:            "group-1",
		GroupName:          "Roommates",
		CreatorRootPubkey:  alice.root.PublicKey(),
		CreatorDisplayName: "Alice",
	})

	invite, err := identity.NewInviteToken(alice.root, "group-1", 2000)
	require.NoError(t, err)

	memberAdded := buildAndSign(t, bob, genesis.EntryID, 1, 1100, MemberAddedPayload{
		MemberRootPubkey:  bob.root.PublicKey(),
		MemberDisplayName: "Bob",
		InviteToken:       invite,
	})

	splits := Splits{alice.root.PublicKey(): 500, bob.root.PublicKey(): 500}
	expense := buildAndSign(t, alice, memberAdded.EntryID, 2, 1200, ExpenseCreatedPayload{
		Description:      "Groceries",
		AmountMinorUnits: 1000,
		Currency:         "USD",
		PaidByRootPubkey: alice.root.PublicKey(),
		Splits:           splits,
	})

	correctedSplits := Splits{alice.root.PublicKey(): 400, bob.root.PublicKey(): 600}
	correction := buildAndSign(t, alice, expense.EntryID, 3, 1300, ExpenseCorrectionPayload{
		ReferencedEntryID: expense.EntryID,
		CorrectionReason:  "forgot the tax",
		CorrectedExpense: ExpenseCreatedPayload{
			Description:      "Groceries",
			AmountMinorUnits: 1000,
			Currency:         "USD",
			PaidByRootPubkey: alice.root.PublicKey(),
			Splits:           correctedSplits,
		},
	})

	return alice, bob, []Entry{genesis, memberAdded, expense, correction}
}

func TestBuildEntryRoundTrip(t *testing.T) {
	alice := newTestActor(t)
	e := buildAndSign(t, alice, "", 0, 1000, GenesisPayload{
		GroupID:            "g",
		GroupName:          "G",
		CreatorRootPubkey:  alice.root.PublicKey(),
		CreatorDisplayName: "Alice",
	})

	recomputed, err := ComputeEntryID(e)
	require.NoError(t, err)
	assert.Equal(t, recomputed, e.EntryID)
	assert.True(t, e.VerifySignature())

	// Changing a payload field must change entry_id.
	tampered := e
	payload := tampered.Payload.(GenesisPayload)
	payload.GroupName = "Tampered"
	tampered.Payload = payload
	recomputedTampered, err := ComputeEntryID(tampered)
	require.NoError(t, err)
	assert.NotEqual(t, e.EntryID, recomputedTampered)
}

func TestOrderEntriesStableUnderPermutation(t *testing.T) {
	_, _, chain := buildSampleChain(t)
	want := OrderEntries(chain)

	shuffled := make([]Entry, len(chain))
	copy(shuffled, chain)
	rng := rand.New(rand.NewSource(7))
	rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

	got := OrderEntries(shuffled)
	require.Len(t, got, len(want))
	for i := range want {
		assert.Equal(t, want[i].EntryID, got[i].EntryID)
	}
}

func TestValidateAndReplaySampleChain(t *testing.T) {
	alice, bob, chain := buildSampleChain(t)

	result := ValidateAndReplay(chain)
	require.True(t, result.Valid, "errors: %+v", result.Errors)
	require.NotNil(t, result.State)

	assert.Len(t, result.State.Members, 2)
	assert.True(t, result.State.Members[alice.root.PublicKey()].IsActive)
	assert.True(t, result.State.Members[bob.root.PublicKey()].IsActive)

	// After the correction, Alice paid 1000 and owes 400, Bob owes 600.
	assert.Equal(t, int64(600), result.State.Balances[alice.root.PublicKey()])
	assert.Equal(t, int64(-600), result.State.Balances[bob.root.PublicKey()])

	var sum int64
	for _, v := range result.State.Balances {
		sum += v
	}
	assert.Zero(t, sum, "balances must always sum to zero")
}

func TestValidateAndReplayRejectsNonGenesisFirst(t *testing.T) {
	_, _, chain := buildSampleChain(t)
	result := ValidateAndReplay(chain[1:])
	assert.False(t, result.Valid)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, 0, result.Errors[0].Index)
}

func TestValidateEntryRejectsExpiredInvite(t *testing.T) {
	alice := newTestActor(t)
	bob := newTestActor(t)

	genesis := buildAndSign(t, alice, "", 0, 1000, GenesisPayload{
		GroupID:            "group-1",
		GroupName:          "Roommates",
		CreatorRootPubkey:  alice.root.PublicKey(),
		CreatorDisplayName: "Alice",
	})

	invite, err := identity.NewInviteToken(alice.root, "group-1", 1050)
	require.NoError(t, err)

	// Entry timestamp is one millisecond past expires_at plus tolerance.
	memberAdded := buildAndSign(t, bob, genesis.EntryID, 1, 1050+inviteExpiryTolerance.Milliseconds()+1, MemberAddedPayload{
		MemberRootPubkey:  bob.root.PublicKey(),
		MemberDisplayName: "Bob",
		InviteToken:       invite,
	})

	result := ValidateAndReplay([]Entry{genesis, memberAdded})
	assert.False(t, result.Valid)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, 1, result.Errors[0].Index)
}

func TestValidateEntryRejectsSplitSumMismatch(t *testing.T) {
	alice := newTestActor(t)
	state := NewEmptyGroupState()
	state.GroupID = "group-1"
	state.Members[alice.root.PublicKey()] = &Member{DisplayName: "Alice", IsActive: true}

	genesis := buildAndSign(t, alice, "", 0, 1000, GenesisPayload{
		GroupID:            "group-1",
		GroupName:          "Roommates",
		CreatorRootPubkey:  alice.root.PublicKey(),
		CreatorDisplayName: "Alice",
	})
	expense := buildAndSign(t, alice, genesis.EntryID, 1, 1100, ExpenseCreatedPayload{
		Description:      "Groceries",
		AmountMinorUnits: 1000,
		Currency:         "USD",
		PaidByRootPubkey: alice.root.PublicKey(),
		Splits:           Splits{alice.root.PublicKey(): 900},
	})

	verr := ValidateEntry(expense, []Entry{genesis}, state)
	require.NotNil(t, verr)
	found := false
	for _, fe := range verr.Errors {
		if fe.Kind == KindDomain {
			found = true
		}
	}
	assert.True(t, found, "expected a domain error for the splits sum mismatch")
}

// TestRootKeyRotationThreshold builds a three-member group and rotates
// Alice's root key with exactly the required number of co-signatures.
func TestRootKeyRotationThreshold(t *testing.T) {
	alice := newTestActor(t)
	bob := newTestActor(t)
	carol := newTestActor(t)

	genesis := buildAndSign(t, alice, "", 0, 1000, GenesisPayload{
		GroupID:            "group-1",
		GroupName:          "Roommates",
		CreatorRootPubkey:  alice.root.PublicKey(),
		CreatorDisplayName: "Alice",
	})

	bobInvite, err := identity.NewInviteToken(alice.root, "group-1", 5000)
	require.NoError(t, err)
	bobAdded := buildAndSign(t, bob, genesis.EntryID, 1, 1100, MemberAddedPayload{
		MemberRootPubkey:  bob.root.PublicKey(),
		MemberDisplayName: "Bob",
		InviteToken:       bobInvite,
	})

	carolInvite, err := identity.NewInviteToken(alice.root, "group-1", 5000)
	require.NoError(t, err)
	carolAdded := buildAndSign(t, carol, bobAdded.EntryID, 2, 1200, MemberAddedPayload{
		MemberRootPubkey:  carol.root.PublicKey(),
		MemberDisplayName: "Carol",
		InviteToken:       carolInvite,
	})

	newAliceRoot, err := identity.NewRootIdentity()
	require.NoError(t, err)

	bobCoSig, err := identity.SignRecoveryCoSignature(bob.root, alice.root.PublicKey(), newAliceRoot.PublicKey(), "group-1")
	require.NoError(t, err)
	carolCoSig, err := identity.SignRecoveryCoSignature(carol.root, alice.root.PublicKey(), newAliceRoot.PublicKey(), "group-1")
	require.NoError(t, err)

	rotation := buildAndSign(t, alice, carolAdded.EntryID, 3, 1300, RootKeyRotationPayload{
		PreviousRootPubkey: alice.root.PublicKey(),
		NewRootPubkey:      newAliceRoot.PublicKey(),
		CoSignatures:       []identity.CoSignaturePair{bobCoSig, carolCoSig},
	})

	result := ValidateAndReplay([]Entry{genesis, bobAdded, carolAdded, rotation})
	require.True(t, result.Valid, "errors: %+v", result.Errors)
	assert.False(t, result.State.Members[alice.root.PublicKey()].IsActive)
	assert.True(t, result.State.Members[newAliceRoot.PublicKey()].IsActive)
	assert.Equal(t, newAliceRoot.PublicKey(), result.State.CreatorRootPubkey)
}

func TestRootKeyRotationInsufficientCoSignatures(t *testing.T) {
	alice := newTestActor(t)
	bob := newTestActor(t)
	carol := newTestActor(t)

	genesis := buildAndSign(t, alice, "", 0, 1000, GenesisPayload{
		GroupID:            "group-1",
		GroupName:          "Roommates",
		CreatorRootPubkey:  alice.root.PublicKey(),
		CreatorDisplayName: "Alice",
	})
	bobInvite, err := identity.NewInviteToken(alice.root, "group-1", 5000)
	require.NoError(t, err)
	bobAdded := buildAndSign(t, bob, genesis.EntryID, 1, 1100, MemberAddedPayload{
		MemberRootPubkey:  bob.root.PublicKey(),
		MemberDisplayName: "Bob",
		InviteToken:       bobInvite,
	})
	carolInvite, err := identity.NewInviteToken(alice.root, "group-1", 5000)
	require.NoError(t, err)
	carolAdded := buildAndSign(t, carol, bobAdded.EntryID, 2, 1200, MemberAddedPayload{
		MemberRootPubkey:  carol.root.PublicKey(),
		MemberDisplayName: "Carol",
		InviteToken:       carolInvite,
	})

	newAliceRoot, err := identity.NewRootIdentity()
	require.NoError(t, err)
	bobCoSig, err := identity.SignRecoveryCoSignature(bob.root, alice.root.PublicKey(), newAliceRoot.PublicKey(), "group-1")
	require.NoError(t, err)

	rotation := buildAndSign(t, alice, carolAdded.EntryID, 3, 1300, RootKeyRotationPayload{
		PreviousRootPubkey: alice.root.PublicKey(),
		NewRootPubkey:      newAliceRoot.PublicKey(),
		CoSignatures:       []identity.CoSignaturePair{bobCoSig},
	})

	result := ValidateAndReplay([]Entry{genesis, bobAdded, carolAdded, rotation})
	assert.False(t, result.Valid)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, 3, result.Errors[0].Index)
}

func TestEntryJSONRoundTrip(t *testing.T) {
	_, _, chain := buildSampleChain(t)
	for _, e := range chain {
		data, err := e.MarshalJSON()
		require.NoError(t, err)
		var decoded Entry
		require.NoError(t, decoded.UnmarshalJSON(data))
		assert.Equal(t, e.EntryID, decoded.EntryID)
		assert.Equal(t, e.Payload, decoded.Payload)
		assert.True(t, decoded.VerifySignature())
	}
}
