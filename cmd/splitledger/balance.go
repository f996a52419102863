package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tobael/splitledger/balance"
)

func balanceCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "balance", Short: "inspect per-member balances and settlement"}
	cmd.AddCommand(balanceShowCmd())
	return cmd
}

func balanceShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <group-id>",
		Short: "print current balances and a minimal settlement plan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			groupID := args[0]

			store, err := loadStore(ctx, dataDir)
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

			if len(state.Balances) == 0 {
				fmt.Println("no balances recorded yet")
				return nil
			}
			fmt.Println("balances:")
			for who, amount := range state.Balances {
				fmt.Printf("  %s: %d\n", who, amount)
			}

			transfers := balance.Settle(state.Balances)
			if len(transfers) == 0 {
				fmt.Println("settlement: already even")
				return nil
			}
			fmt.Println("settlement:")
			for _, t := range transfers {
				fmt.Printf("  %s pays %s -> %d\n", t.From, t.To, t.Amount)
			}
			return nil
		},
	}
}
