package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/tobael/splitledger/crypto"
	"github.com/tobael/splitledger/identity"
	"github.com/tobael/splitledger/ledger"
)

func deviceCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "device", Short: "authorize additional devices for this node's root identity"}
	cmd.AddCommand(deviceAuthorizeCmd())
	return cmd
}

func deviceAuthorizeCmd() *cobra.Command {
	var groupSecret string

	cmd := &cobra.Command{
		Use:   "authorize <group-id> <new-device-pubkey> <device-name>",
		Short: "authorize a new device key under this node's root identity",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			groupID, newDevicePubkey, deviceName := args[0], args[1], args[2]

			store, err := loadStore(ctx, dataDir)
			if err != nil {
				return err
			}
			root, device, err := requireIdentity(ctx, store)
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

			authorizedAt := time.Now().UnixMilli()
			sig, err := identity.SignDeviceAuthorization(root, crypto.PublicKey(newDevicePubkey), authorizedAt)
			if err != nil {
				return err
			}

			entry, err := ledger.BuildEntry(device.KeyPair.Secret, device.PublicKey(), state.LatestEntryHash, state.CurrentLamport+1, authorizedAt, ledger.DeviceAuthorizedPayload{
				OwnerRootPubkey:        root.PublicKey(),
				DevicePublicKey:        crypto.PublicKey(newDevicePubkey),
				DeviceName:             deviceName,
				AuthorizationSignature: sig,
			})
			if err != nil {
				return err
			}

			if err := applyLocallyAndBroadcast(ctx, store, groupID, groupSecret, entry); err != nil {
				return err
			}
			fmt.Printf("authorized device %s (%s) in group %s\n", newDevicePubkey, deviceName, groupID)
			return nil
		},
	}
	cmd.Flags().StringVar(&groupSecret, "group-secret", "", "group shared secret")
	return cmd
}
