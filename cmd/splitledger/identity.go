package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tobael/splitledger/identity"
)

func identityCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "identity", Short: "manage this node's root and device identity"}
	cmd.AddCommand(identityCreateCmd())
	cmd.AddCommand(identityShowCmd())
	return cmd
}

func identityCreateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create",
		Short: "generate a root identity and a device identity for this node",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			store, err := loadStore(ctx, dataDir)
			if err != nil {
				return err
			}
			if _, ok, err := store.GetRootIdentity(ctx); err != nil {
				return err
			} else if ok {
				return fmt.Errorf("a root identity already exists in %s", dataDir)
			}

			root, err := identity.NewRootIdentity()
			if err != nil {
				return err
			}
			device, err := identity.NewDeviceIdentity()
			if err != nil {
				return err
			}
			if err := store.StoreRootIdentity(ctx, root); err != nil {
				return err
			}
			if err := store.StoreDeviceIdentity(ctx, device); err != nil {
				return err
			}
			if err := saveStore(ctx, dataDir, store); err != nil {
				return err
			}

			fmt.Printf("root public key:   %s\n", root.PublicKey())
			fmt.Printf("device public key: %s\n", device.PublicKey())
			return nil
		},
	}
}

func identityShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "print this node's root and device public keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			store, err := loadStore(ctx, dataDir)
			if err != nil {
				return err
			}
			root, ok, err := store.GetRootIdentity(ctx)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("no identity in %s; run 'splitledger identity create' first", dataDir)
			}
			device, _, err := store.GetDeviceIdentity(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("root public key:   %s\n", root.PublicKey())
			fmt.Printf("device public key: %s\n", device.PublicKey())
			return nil
		},
	}
}
