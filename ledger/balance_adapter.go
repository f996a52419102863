package ledger

import (
	"github.com/tobael/splitledger/balance"
	"github.com/tobael/splitledger/crypto"
)

// toBalanceExpenses reduces the accepted, ordered entry list to the
// balance package's minimal Op representation (§4.5), preserving chain
// order so correction/void chains resolve correctly.
func toBalanceExpenses(entries []Entry) []balance.Op {
	var ops []balance.Op
	for _, e := range entries {
		switch p := e.Payload.(type) {
		case ExpenseCreatedPayload:
			ops = append(ops, balance.Op{
				Kind:    balance.OpExpenseCreated,
				EntryID: e.EntryID,
				Expense: expenseFromPayload(p),
			})
		case ExpenseCorrectionPayload:
			ops = append(ops, balance.Op{
				Kind:         balance.OpExpenseCorrection,
				EntryID:      e.EntryID,
				ReferencedID: p.ReferencedEntryID,
				Expense:      expenseFromPayload(p.CorrectedExpense),
			})
		case ExpenseVoidedPayload:
			ops = append(ops, balance.Op{
				Kind:         balance.OpExpenseVoided,
				EntryID:      e.EntryID,
				ReferencedID: p.VoidedEntryID,
			})
		}
	}
	return ops
}

func expenseFromPayload(p ExpenseCreatedPayload) balance.Expense {
	splits := make(map[crypto.PublicKey]int64, len(p.Splits))
	for k, v := range p.Splits {
		splits[k] = v
	}
	return balance.Expense{
		PaidBy: p.PaidByRootPubkey,
		Amount: p.AmountMinorUnits,
		Splits: splits,
	}
}
