package ledger

import "github.com/tobael/splitledger/balance"

// ReplayResult is the outcome of validating and replaying a full chain
// (§4.4): whether it is valid as a whole, the per-entry errors found (if
// any), and the resulting state when valid.
type ReplayResult struct {
	Valid  bool
	Errors []ChainError
	State  *GroupState
}

// ValidateAndReplay orders entries per §4.2, walks them from an empty
// state, validates each against the preceding validated prefix, applies
// valid entries, and finally recomputes balances over the accepted
// prefix (§4.5). An empty chain is valid with an empty state. A
// non-empty chain whose first entry is not Genesis is invalid.
func ValidateAndReplay(entries []Entry) ReplayResult {
	ordered := OrderEntries(entries)

	if len(ordered) == 0 {
		return ReplayResult{Valid: true, State: NewEmptyGroupState()}
	}
	if ordered[0].EntryType != EntryGenesis {
		return ReplayResult{
			Valid: false,
			Errors: []ChainError{{
				Index:       0,
				TruncatedID: truncateID(string(ordered[0].EntryID)),
				ValidationErrs: []FieldError{{
					Kind:    KindStructural,
					Message: "first entry in chain is not Genesis",
				}},
			}},
		}
	}

	state := NewEmptyGroupState()
	var accepted []Entry
	var chainErrs []ChainError

	for i, e := range ordered {
		var stateArg *GroupState
		if i > 0 {
			stateArg = state
		}
		if verr := ValidateEntry(e, accepted, stateArg); verr != nil {
			chainErrs = append(chainErrs, ChainError{
				Index:          i,
				TruncatedID:    truncateID(string(e.EntryID)),
				ValidationErrs: verr.Errors,
			})
			continue
		}
		if err := apply(state, e); err != nil {
			chainErrs = append(chainErrs, ChainError{
				Index:       i,
				TruncatedID: truncateID(string(e.EntryID)),
				ValidationErrs: []FieldError{{
					Kind:    KindStructural,
					Message: err.Error(),
				}},
			})
			continue
		}
		accepted = append(accepted, e)
	}

	if len(chainErrs) > 0 {
		return ReplayResult{Valid: false, Errors: chainErrs, State: nil}
	}

	balances, err := balance.Compute(toBalanceExpenses(accepted))
	if err != nil {
		return ReplayResult{
			Valid: false,
			Errors: []ChainError{{
				ValidationErrs: []FieldError{{Kind: KindDomain, Message: err.Error()}},
			}},
		}
	}
	for k, v := range balances {
		state.Balances[k] = v
	}

	return ReplayResult{Valid: true, State: state}
}
