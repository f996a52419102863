// Package balance implements correction-chain resolution, signed per-member
// balance computation, and minimal greedy settlement (§4.5). It depends
// only on crypto so it can be imported by ledger without creating a cycle;
// ledger converts its own expense-bearing entries into the Op slice this
// package consumes.
package balance

import (
	"fmt"

	"github.com/tobael/splitledger/crypto"
)

// OpKind discriminates the three expense-affecting entry variants as seen
// by the balance engine.
type OpKind string

const (
	OpExpenseCreated    OpKind = "created"
	OpExpenseCorrection OpKind = "correction"
	OpExpenseVoided     OpKind = "voided"
)

// Expense is the effective payload of an expense at a point in time —
// either an ExpenseCreated payload or a correction's replacement payload
// (§4.5 "effective expense").
type Expense struct {
	PaidBy crypto.PublicKey
	Amount int64
	Splits map[crypto.PublicKey]int64
}

// Op is one expense-affecting entry in chain order, reduced to the fields
// the balance engine needs.
type Op struct {
	Kind OpKind
	// EntryID is this op's own entry id.
	EntryID crypto.Hash
	// ReferencedID is referenced_entry_id for a correction, or
	// voided_entry_id for a void. Unused for OpExpenseCreated.
	ReferencedID crypto.Hash
	// Expense is populated for OpExpenseCreated (the new expense) and
	// OpExpenseCorrection (the corrected_expense replacement). Unused
	// for OpExpenseVoided.
	Expense Expense
}

// resolveEffective walks ops once, maintaining the original-entry-id ->
// effective-expense mapping described in §4.5, and a correction-id ->
// original-id mapping used to chain corrections of corrections. Cycles
// (§9 Open Question (a)) are detected via a per-walk visited set and
// reported as an error rather than looping forever.
func resolveEffective(ops []Op) (map[crypto.Hash]Expense, error) {
	effective := make(map[crypto.Hash]Expense)
	// correctionOrigin maps a correction entry's own id to the original
	// ExpenseCreated id it ultimately corrects, so a later correction
	// that references this correction can be chased back to the root.
	correctionOrigin := make(map[crypto.Hash]crypto.Hash)

	resolveOriginal := func(id crypto.Hash) (crypto.Hash, error) {
		visited := make(map[crypto.Hash]struct{})
		cur := id
		for {
			if _, loop := visited[cur]; loop {
				return "", fmt.Errorf("balance: correction cycle detected at %s", cur)
			}
			visited[cur] = struct{}{}
			origin, isCorrection := correctionOrigin[cur]
			if !isCorrection {
				return cur, nil
			}
			cur = origin
		}
	}

	for _, op := range ops {
		switch op.Kind {
		case OpExpenseCreated:
			effective[op.EntryID] = op.Expense
		case OpExpenseCorrection:
			original, err := resolveOriginal(op.ReferencedID)
			if err != nil {
				return nil, err
			}
			if original == op.EntryID {
				return nil, fmt.Errorf("balance: correction cycle detected at %s", op.EntryID)
			}
			correctionOrigin[op.EntryID] = original
			if _, ok := effective[original]; ok {
				effective[original] = op.Expense
			}
			// A correction of an already-voided/not-present entry is a
			// tolerated no-op (§4.5).
		case OpExpenseVoided:
			original, err := resolveOriginal(op.ReferencedID)
			if err != nil {
				return nil, err
			}
			delete(effective, original)
		}
	}
	return effective, nil
}

// Compute returns the signed per-member balance (§4.5 balance sign
// convention: positive = net creditor, negative = net debtor) after
// resolving corrections and voids. The sum of all returned balances is
// always zero (I6), since each surviving effective expense contributes
// +amount to its payer and -share to each split member, which nets to
// zero by construction (I5: sum of splits == amount).
func Compute(ops []Op) (map[crypto.PublicKey]int64, error) {
	effective, err := resolveEffective(ops)
	if err != nil {
		return nil, err
	}
	balances := make(map[crypto.PublicKey]int64)
	for _, exp := range effective {
		balances[exp.PaidBy] += exp.Amount
		for member, share := range exp.Splits {
			balances[member] -= share
		}
	}
	return balances, nil
}
