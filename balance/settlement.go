package balance

import (
	"sort"

	"github.com/tobael/splitledger/crypto"
)

// Transfer is one leg of a minimal settlement: from owes amount to to.
type Transfer struct {
	From   crypto.PublicKey
	To     crypto.PublicKey
	Amount int64
}

type balanceEntry struct {
	who crypto.PublicKey
	amt int64 // always positive; magnitude of debt or credit
}

// Settle partitions members into debtors and creditors, sorts each
// descending by magnitude, then repeatedly pairs the largest debtor with
// the largest creditor, transferring min(debt, credit) and advancing
// whichever side reaches zero (§4.5). The result has length at most
// (non-zero member count) - 1.
func Settle(balances map[crypto.PublicKey]int64) []Transfer {
	var debtors, creditors []balanceEntry
	for who, bal := range balances {
		switch {
		case bal < 0:
			debtors = append(debtors, balanceEntry{who: who, amt: -bal})
		case bal > 0:
			creditors = append(creditors, balanceEntry{who: who, amt: bal})
		}
	}
	sortDesc := func(s []balanceEntry) {
		sort.SliceStable(s, func(i, j int) bool {
			if s[i].amt != s[j].amt {
				return s[i].amt > s[j].amt
			}
			return s[i].who < s[j].who
		})
	}
	sortDesc(debtors)
	sortDesc(creditors)

	var transfers []Transfer
	i, j := 0, 0
	for i < len(debtors) && j < len(creditors) {
		d := &debtors[i]
		c := &creditors[j]
		amt := d.amt
		if c.amt < amt {
			amt = c.amt
		}
		if amt > 0 {
			transfers = append(transfers, Transfer{From: d.who, To: c.who, Amount: amt})
		}
		d.amt -= amt
		c.amt -= amt
		if d.amt == 0 {
			i++
		}
		if c.amt == 0 {
			j++
		}
	}
	return transfers
}
