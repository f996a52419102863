package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/tobael/splitledger/crypto"
	"github.com/tobael/splitledger/ledger"
	"github.com/tobael/splitledger/storage"
	"github.com/tobael/splitledger/syncmgr"
)

func expenseCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "expense", Short: "record and correct expenses within a group"}
	cmd.AddCommand(expenseAddCmd())
	cmd.AddCommand(expenseCorrectCmd())
	return cmd
}

func parseSplits(raw []string) (ledger.Splits, error) {
	splits := make(ledger.Splits, len(raw))
	for _, entry := range raw {
		parts := strings.SplitN(entry, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("splitledger: invalid --split %q, want pubkey=amount", entry)
		}
		amount, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("splitledger: invalid --split amount %q: %w", parts[1], err)
		}
		splits[crypto.PublicKey(parts[0])] = amount
	}
	return splits, nil
}

func expenseAddCmd() *cobra.Command {
	var paidBy string
	var currency string
	var description string
	var splitFlags []string
	var groupSecret string

	cmd := &cobra.Command{
		Use:   "add <group-id> <amount-minor-units>",
		Short: "record a new expense in a group and broadcast it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			groupID := args[0]
			amount, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("splitledger: invalid amount %q: %w", args[1], err)
			}
			splits, err := parseSplits(splitFlags)
			if err != nil {
				return err
			}

			store, err := loadStore(ctx, dataDir)
			if err != nil {
				return err
			}
			_, device, err := requireIdentity(ctx, store)
			if err != nil {
				return err
			}
			state, ok, err := store.GetGroupState(ctx, groupID)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("splitledger: unknown group %s; run 'splitledger group join' first", groupID)
			}

			entry, err := ledger.BuildEntry(device.KeyPair.Secret, device.PublicKey(), state.LatestEntryHash, state.CurrentLamport+1, time.Now().UnixMilli(), ledger.ExpenseCreatedPayload{
				Description:      description,
				AmountMinorUnits: amount,
				Currency:         currency,
				PaidByRootPubkey: crypto.PublicKey(paidBy),
				Splits:           splits,
			})
			if err != nil {
				return err
			}

			if err := applyLocallyAndBroadcast(ctx, store, groupID, groupSecret, entry); err != nil {
				return err
			}
			fmt.Printf("recorded expense %s in group %s\n", entry.EntryID, groupID)
			return nil
		},
	}
	cmd.Flags().StringVar(&paidBy, "paid-by", "", "root public key of the member who paid")
	cmd.Flags().StringVar(&currency, "currency", "USD", "ISO currency code")
	cmd.Flags().StringVar(&description, "description", "", "expense description")
	cmd.Flags().StringArrayVar(&splitFlags, "split", nil, "member_root_pubkey=amount, repeatable")
	cmd.Flags().StringVar(&groupSecret, "group-secret", "", "group shared secret")
	cmd.MarkFlagRequired("paid-by")
	return cmd
}

func expenseCorrectCmd() *cobra.Command {
	var paidBy string
	var currency string
	var description string
	var splitFlags []string
	var reason string
	var groupSecret string

	cmd := &cobra.Command{
		Use:   "correct <group-id> <referenced-entry-id> <amount-minor-units>",
		Short: "replace an earlier expense's effective values",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			groupID, referencedID := args[0], args[1]
			amount, err := strconv.ParseInt(args[2], 10, 64)
			if err != nil {
				return fmt.Errorf("splitledger: invalid amount %q: %w", args[2], err)
			}
			splits, err := parseSplits(splitFlags)
			if err != nil {
				return err
			}

			store, err := loadStore(ctx, dataDir)
			if err != nil {
				return err
			}
			_, device, err := requireIdentity(ctx, store)
			if err != nil {
				return err
			}
			state, ok, err := store.GetGroupState(ctx, groupID)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("splitledger: unknown group %s; run 'splitledger group join' first", groupID)
			}

			entry, err := ledger.BuildEntry(device.KeyPair.Secret, device.PublicKey(), state.LatestEntryHash, state.CurrentLamport+1, time.Now().UnixMilli(), ledger.ExpenseCorrectionPayload{
				ReferencedEntryID: crypto.Hash(referencedID),
				CorrectionReason:  reason,
				CorrectedExpense: ledger.ExpenseCreatedPayload{
					Description:      description,
					AmountMinorUnits: amount,
					Currency:         currency,
					PaidByRootPubkey: crypto.PublicKey(paidBy),
					Splits:           splits,
				},
			})
			if err != nil {
				return err
			}

			if err := applyLocallyAndBroadcast(ctx, store, groupID, groupSecret, entry); err != nil {
				return err
			}
			fmt.Printf("corrected %s with %s in group %s\n", referencedID, entry.EntryID, groupID)
			return nil
		},
	}
	cmd.Flags().StringVar(&paidBy, "paid-by", "", "root public key of the member who paid")
	cmd.Flags().StringVar(&currency, "currency", "USD", "ISO currency code")
	cmd.Flags().StringVar(&description, "description", "", "expense description")
	cmd.Flags().StringArrayVar(&splitFlags, "split", nil, "member_root_pubkey=amount, repeatable")
	cmd.Flags().StringVar(&reason, "reason", "", "correction reason")
	cmd.Flags().StringVar(&groupSecret, "group-secret", "", "group shared secret")
	cmd.MarkFlagRequired("paid-by")
	return cmd
}

// applyLocallyAndBroadcast validates entry against the group's current
// persisted state, applies it locally, then connects and broadcasts it
// through the sync manager so other members receive it.
func applyLocallyAndBroadcast(ctx context.Context, store *storage.MemoryStore, groupID, groupSecretFlag string, entry ledger.Entry) error {
	preceding, err := store.GetAllEntries(ctx, groupID)
	if err != nil {
		return err
	}
	if verr := ledger.ValidateEntry(entry, preceding, mustState(ctx, store, groupID)); verr != nil {
		return fmt.Errorf("splitledger: entry failed local validation: %v", verr.Errors)
	}
	if err := store.AppendEntry(ctx, groupID, entry); err != nil {
		return err
	}
	full, err := store.GetAllEntries(ctx, groupID)
	if err != nil {
		return err
	}
	result := ledger.ValidateAndReplay(full)
	if !result.Valid {
		return fmt.Errorf("splitledger: chain invalid after local append: %+v", result.Errors)
	}
	if err := store.SaveGroupState(ctx, groupID, result.State); err != nil {
		return err
	}

	secret, err := resolveGroupSecret(groupSecretFlag)
	if err != nil {
		return err
	}
	tr, err := newTransport()
	if err != nil {
		return err
	}
	mgr := syncmgr.New(tr, store, nil)
	if err := mgr.RegisterGroupKey(groupID, []byte(secret)); err != nil {
		return err
	}
	if err := tr.Connect(ctx, groupID); err != nil {
		return fmt.Errorf("splitledger: connect to relay: %w", err)
	}
	defer tr.DisconnectAll()
	if err := mgr.BroadcastEntry(ctx, groupID, entry); err != nil {
		return fmt.Errorf("splitledger: broadcast entry: %w", err)
	}

	return saveStore(ctx, dataDir, store)
}

func mustState(ctx context.Context, store *storage.MemoryStore, groupID string) *ledger.GroupState {
	state, ok, err := store.GetGroupState(ctx, groupID)
	if err != nil || !ok {
		return ledger.NewEmptyGroupState()
	}
	return state
}
