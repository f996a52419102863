package balance

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tobael/splitledger/crypto"
)

const (
	alice crypto.PublicKey = "alice"
	bob   crypto.PublicKey = "bob"
	carol crypto.PublicKey = "carol"
)

func TestComputeSumsToZero(t *testing.T) {
	ops := []Op{
		{
			Kind:    OpExpenseCreated,
			EntryID: "e1",
			Expense: Expense{PaidBy: alice, Amount: 900, Splits: map[crypto.PublicKey]int64{alice: 300, bob: 300, carol: 300}},
		},
		{
			Kind:    OpExpenseCreated,
			EntryID: "e2",
			Expense: Expense{PaidBy: bob, Amount: 200, Splits: map[crypto.PublicKey]int64{alice: 100, bob: 100}},
		},
	}
	balances, err := Compute(ops)
	require.NoError(t, err)

	var sum int64
	for _, v := range balances {
		sum += v
	}
	assert.Zero(t, sum)
	assert.Equal(t, int64(500), balances[alice])
	assert.Equal(t, int64(-200), balances[bob])
	assert.Equal(t, int64(-300), balances[carol])
}

func TestComputeAppliesCorrection(t *testing.T) {
	ops := []Op{
		{
			Kind:    OpExpenseCreated,
			EntryID: "e1",
			Expense: Expense{PaidBy: alice, Amount: 1000, Splits: map[crypto.PublicKey]int64{alice: 500, bob: 500}},
		},
		{
			Kind:         OpExpenseCorrection,
			EntryID:      "e2",
			ReferencedID: "e1",
			Expense:      Expense{PaidBy: alice, Amount: 1000, Splits: map[crypto.PublicKey]int64{alice: 400, bob: 600}},
		},
	}
	balances, err := Compute(ops)
	require.NoError(t, err)
	assert.Equal(t, int64(600), balances[alice])
	assert.Equal(t, int64(-600), balances[bob])
}

func TestComputeAppliesChainedCorrection(t *testing.T) {
	ops := []Op{
		{
			Kind:    OpExpenseCreated,
			EntryID: "e1",
			Expense: Expense{PaidBy: alice, Amount: 1000, Splits: map[crypto.PublicKey]int64{alice: 500, bob: 500}},
		},
		{
			Kind:         OpExpenseCorrection,
			EntryID:      "e2",
			ReferencedID: "e1",
			Expense:      Expense{PaidBy: alice, Amount: 1000, Splits: map[crypto.PublicKey]int64{alice: 400, bob: 600}},
		},
		{
			Kind:         OpExpenseCorrection,
			EntryID:      "e3",
			ReferencedID: "e2",
			Expense:      Expense{PaidBy: alice, Amount: 1000, Splits: map[crypto.PublicKey]int64{alice: 0, bob: 1000}},
		},
	}
	balances, err := Compute(ops)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), balances[alice])
	assert.Equal(t, int64(-1000), balances[bob])
}

func TestComputeAppliesVoid(t *testing.T) {
	ops := []Op{
		{
			Kind:    OpExpenseCreated,
			EntryID: "e1",
			Expense: Expense{PaidBy: alice, Amount: 1000, Splits: map[crypto.PublicKey]int64{alice: 500, bob: 500}},
		},
		{
			Kind:         OpExpenseVoided,
			EntryID:      "e2",
			ReferencedID: "e1",
		},
	}
	balances, err := Compute(ops)
	require.NoError(t, err)
	assert.Zero(t, balances[alice])
	assert.Zero(t, balances[bob])
}

func TestComputeVoidOfCorrectionVoidsOriginal(t *testing.T) {
	ops := []Op{
		{
			Kind:    OpExpenseCreated,
			EntryID: "e1",
			Expense: Expense{PaidBy: alice, Amount: 1000, Splits: map[crypto.PublicKey]int64{alice: 500, bob: 500}},
		},
		{
			Kind:         OpExpenseCorrection,
			EntryID:      "e2",
			ReferencedID: "e1",
			Expense:      Expense{PaidBy: alice, Amount: 1000, Splits: map[crypto.PublicKey]int64{alice: 400, bob: 600}},
		},
		{
			Kind:         OpExpenseVoided,
			EntryID:      "e3",
			ReferencedID: "e2",
		},
	}
	balances, err := Compute(ops)
	require.NoError(t, err)
	assert.Zero(t, balances[alice])
	assert.Zero(t, balances[bob])
}

func TestComputeDetectsCorrectionCycle(t *testing.T) {
	ops := []Op{
		{Kind: OpExpenseCorrection, EntryID: "e1", ReferencedID: "e2"},
		{Kind: OpExpenseCorrection, EntryID: "e2", ReferencedID: "e1"},
	}
	_, err := Compute(ops)
	assert.Error(t, err)
}

func TestComputeToleratesCorrectionOfMissingEntry(t *testing.T) {
	ops := []Op{
		{
			Kind:         OpExpenseCorrection,
			EntryID:      "e2",
			ReferencedID: "never-existed",
			Expense:      Expense{PaidBy: alice, Amount: 1000, Splits: map[crypto.PublicKey]int64{alice: 1000}},
		},
	}
	balances, err := Compute(ops)
	require.NoError(t, err)
	assert.Empty(t, balances)
}

func TestSettleIsMinimalAndBalanced(t *testing.T) {
	balances := map[crypto.PublicKey]int64{
		alice: 500,
		bob:   -200,
		carol: -300,
	}
	transfers := Settle(balances)
	require.Len(t, transfers, 2)

	net := map[crypto.PublicKey]int64{}
	for _, tr := range transfers {
		net[tr.From] -= tr.Amount
		net[tr.To] += tr.Amount
	}
	for who, bal := range balances {
		assert.Equal(t, bal, net[who], "settlement must reconcile %s's balance", who)
	}
}

func TestSettleSkipsZeroBalances(t *testing.T) {
	balances := map[crypto.PublicKey]int64{alice: 0, bob: 100, carol: -100}
	transfers := Settle(balances)
	require.Len(t, transfers, 1)
	assert.Equal(t, carol, transfers[0].From)
	assert.Equal(t, bob, transfers[0].To)
	assert.Equal(t, int64(100), transfers[0].Amount)
}

func TestSettleEmptyWhenAllZero(t *testing.T) {
	balances := map[crypto.PublicKey]int64{alice: 0, bob: 0}
	assert.Empty(t, Settle(balances))
}
