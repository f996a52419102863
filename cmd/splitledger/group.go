package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/tobael/splitledger/crypto"
	"github.com/tobael/splitledger/identity"
	"github.com/tobael/splitledger/invitelink"
	"github.com/tobael/splitledger/ledger"
	"github.com/tobael/splitledger/syncmgr"
)

func groupCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "group", Short: "create and join expense-sharing groups"}
	cmd.AddCommand(groupCreateCmd())
	cmd.AddCommand(groupInviteCmd())
	cmd.AddCommand(groupJoinCmd())
	return cmd
}

func groupCreateCmd() *cobra.Command {
	var displayName string
	cmd := &cobra.Command{
		Use:   "create <group-id> <group-name>",
		Short: "create a new group with this node as its sole member (pass \"auto\" as group-id to generate one)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			groupID, groupName := args[0], args[1]
			if groupID == "auto" {
				groupID = uuid.NewString()
			}

			store, err := loadStore(ctx, dataDir)
			if err != nil {
				return err
			}
			root, device, err := requireIdentity(ctx, store)
			if err != nil {
				return err
			}

			genesis, err := ledger.BuildEntry(device.KeyPair.Secret, device.PublicKey(), "", 0, time.Now().UnixMilli(), ledger.GenesisPayload{
				GroupID:            groupID,
				GroupName:          groupName,
				CreatorRootPubkey:  root.PublicKey(),
				CreatorDisplayName: displayName,
			})
			if err != nil {
				return err
			}
			if err := store.AppendEntry(ctx, groupID, genesis); err != nil {
				return err
			}
			result := ledger.ValidateAndReplay([]ledger.Entry{genesis})
			if !result.Valid {
				return fmt.Errorf("splitledger: genesis entry failed validation: %+v", result.Errors)
			}
			if err := store.SaveGroupState(ctx, groupID, result.State); err != nil {
				return err
			}
			if err := saveStore(ctx, dataDir, store); err != nil {
				return err
			}

			fmt.Printf("created group %s (%s)\n", groupID, groupName)
			return nil
		},
	}
	cmd.Flags().StringVar(&displayName, "display-name", "creator", "display name for this node within the group")
	return cmd
}

func groupInviteCmd() *cobra.Command {
	var expiresIn time.Duration
	var includeSecret bool
	var groupSecret string

	cmd := &cobra.Command{
		Use:   "invite <group-id>",
		Short: "produce an invite link for a group this node belongs to",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			groupID := args[0]

			store, err := loadStore(ctx, dataDir)
			if err != nil {
				return err
			}
			root, _, err := requireIdentity(ctx, store)
			if err != nil {
				return err
			}

			expiresAt := time.Now().Add(expiresIn).UnixMilli()
			tok, err := identity.NewInviteToken(root, groupID, expiresAt)
			if err != nil {
				return err
			}

			relay := resolveRelayURL()
			data := invitelink.Data{
				Token: invitelink.Token{
					GroupID:           tok.GroupID,
					InviterRootPubkey: string(tok.InviterRootPubkey),
					ExpiresAtMs:       tok.ExpiresAt,
					Signature:         string(tok.Signature),
				},
				RelayURL: &relay,
			}
			if includeSecret {
				secret, err := resolveGroupSecret(groupSecret)
				if err != nil {
					return err
				}
				hexSecret := fmt.Sprintf("%x", []byte(secret))
				data.GroupSecretHex = &hexSecret
			}

			payload, err := invitelink.Serialize(data)
			if err != nil {
				return err
			}
			fmt.Printf("splitledger://join?token=%s\n", payload)
			return nil
		},
	}
	cmd.Flags().DurationVar(&expiresIn, "expires-in", time.Hour, "how long the invite remains valid")
	cmd.Flags().BoolVar(&includeSecret, "include-secret", false, "embed the group's shared secret in the link")
	cmd.Flags().StringVar(&groupSecret, "group-secret", "", "group shared secret (required with --include-secret)")
	return cmd
}

func groupJoinCmd() *cobra.Command {
	var groupSecret string
	var displayName string

	cmd := &cobra.Command{
		Use:   "join <invite-link>",
		Short: "join a group using an invite link, syncing its history first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			link := args[0]

			data, err := invitelink.ParseURL(link)
			if err != nil {
				data, err = invitelink.Parse(link)
			}
			if err != nil {
				return fmt.Errorf("splitledger: parse invite link: %w", err)
			}
			tok := identity.InviteToken{
				GroupID:           data.Token.GroupID,
				InviterRootPubkey: crypto.PublicKey(data.Token.InviterRootPubkey),
				ExpiresAt:         data.Token.ExpiresAtMs,
				Signature:         crypto.Signature(data.Token.Signature),
			}
			if !tok.Verify() {
				return fmt.Errorf("splitledger: invite token signature does not verify")
			}

			secret := groupSecret
			if secret == "" && data.GroupSecretHex != nil {
				raw, err := hex.DecodeString(*data.GroupSecretHex)
				if err != nil {
					return fmt.Errorf("splitledger: invite link group secret is not valid hex: %w", err)
				}
				secret = string(raw)
			}
			resolvedSecret, err := resolveGroupSecret(secret)
			if err != nil {
				return err
			}

			if data.RelayURL != nil && relayURL == "" {
				relayURL = *data.RelayURL
			}

			store, err := loadStore(ctx, dataDir)
			if err != nil {
				return err
			}
			root, device, err := requireIdentity(ctx, store)
			if err != nil {
				return err
			}

			tr, err := newTransport()
			if err != nil {
				return err
			}
			mgr := syncmgr.New(tr, store, nil)
			if err := mgr.RegisterGroupKey(tok.GroupID, []byte(resolvedSecret)); err != nil {
				return err
			}
			if err := tr.Connect(ctx, tok.GroupID); err != nil {
				return fmt.Errorf("splitledger: connect to relay: %w", err)
			}
			defer tr.DisconnectAll()

			if err := mgr.InitialSync(ctx, tok.GroupID); err != nil {
				return fmt.Errorf("splitledger: initial sync: %w", err)
			}

			state, ok, err := store.GetGroupState(ctx, tok.GroupID)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("splitledger: group %s has no history on the relay yet", tok.GroupID)
			}

			memberAdded, err := ledger.BuildEntry(device.KeyPair.Secret, device.PublicKey(), state.LatestEntryHash, state.CurrentLamport+1, time.Now().UnixMilli(), ledger.MemberAddedPayload{
				MemberRootPubkey:  root.PublicKey(),
				MemberDisplayName: displayName,
				InviteToken:       tok,
			})
			if err != nil {
				return err
			}

			if err := mgr.BroadcastEntry(ctx, tok.GroupID, memberAdded); err != nil {
				return fmt.Errorf("splitledger: broadcast member-added entry: %w", err)
			}
			if err := mgr.GapFillSync(ctx, tok.GroupID); err != nil {
				return fmt.Errorf("splitledger: reconcile after join: %w", err)
			}

			if err := saveStore(ctx, dataDir, store); err != nil {
				return err
			}
			fmt.Printf("joined group %s\n", tok.GroupID)
			return nil
		},
	}
	cmd.Flags().StringVar(&groupSecret, "group-secret", "", "group shared secret (overrides any secret embedded in the link)")
	cmd.Flags().StringVar(&displayName, "display-name", "member", "display name to join under")
	return cmd
}

func requireIdentity(ctx context.Context, store interface {
	GetRootIdentity(context.Context) (identity.RootIdentity, bool, error)
	GetDeviceIdentity(context.Context) (identity.DeviceIdentity, bool, error)
}) (identity.RootIdentity, identity.DeviceIdentity, error) {
	root, ok, err := store.GetRootIdentity(ctx)
	if err != nil {
		return identity.RootIdentity{}, identity.DeviceIdentity{}, err
	}
	if !ok {
		return identity.RootIdentity{}, identity.DeviceIdentity{}, fmt.Errorf("no identity found; run 'splitledger identity create' first")
	}
	device, ok, err := store.GetDeviceIdentity(ctx)
	if err != nil {
		return identity.RootIdentity{}, identity.DeviceIdentity{}, err
	}
	if !ok {
		return identity.RootIdentity{}, identity.DeviceIdentity{}, fmt.Errorf("no device identity found; run 'splitledger identity create' first")
	}
	return root, device, nil
}
