package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	pkgconfig "github.com/tobael/splitledger/pkg/config"
	"github.com/tobael/splitledger/syncmgr"
)

func syncCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "sync", Short: "keep a group's ledger synchronized with the relay"}
	cmd.AddCommand(syncStartCmd())
	return cmd
}

func syncStartCmd() *cobra.Command {
	var groupSecret string
	var intervalSeconds int

	cmd := &cobra.Command{
		Use:   "start <group-id>",
		Short: "run the initial sync, then poll the relay for new entries until interrupted",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			groupID := args[0]

			store, err := loadStore(ctx, dataDir)
			if err != nil {
				return err
			}
			secret, err := resolveGroupSecret(groupSecret)
			if err != nil {
				return err
			}

			logger := logrus.New()
			tr, err := newTransport()
			if err != nil {
				return err
			}
			mgr := syncmgr.New(tr, store, logger)
			if err := mgr.RegisterGroupKey(groupID, []byte(secret)); err != nil {
				return err
			}
			mgr.OnEvent(func(ev syncmgr.Event) {
				switch ev.Kind {
				case syncmgr.EventEntryReceived:
					fmt.Printf("received entry %s in group %s\n", ev.EntryID, ev.GroupID)
				case syncmgr.EventEntryRejected:
					fmt.Printf("rejected entry in group %s: %s\n", ev.GroupID, ev.Reason)
				case syncmgr.EventSyncComplete:
					fmt.Printf("sync complete for group %s: %d/%d accepted\n", ev.GroupID, ev.Accepted, ev.Total)
				case syncmgr.EventSyncError:
					fmt.Printf("sync error in group %s: %v %v\n", ev.GroupID, ev.Err, ev.Errors)
				}
			})

			if err := tr.Connect(ctx, groupID); err != nil {
				return fmt.Errorf("splitledger: connect to relay: %w", err)
			}
			defer tr.DisconnectAll()

			if err := mgr.InitialSync(ctx, groupID); err != nil {
				return fmt.Errorf("splitledger: initial sync: %w", err)
			}
			if err := saveStore(ctx, dataDir, store); err != nil {
				return err
			}

			interval := time.Duration(intervalSeconds) * time.Second
			if intervalSeconds == 0 {
				if cfg, err := pkgconfig.LoadFromEnv(); err == nil && cfg.SplitLedger.BackgroundSyncInterval > 0 {
					interval = time.Duration(cfg.SplitLedger.BackgroundSyncInterval) * time.Second
				}
			}
			if interval <= 0 {
				interval = 30 * time.Second
			}
			if err := mgr.StartSync(ctx, groupID, interval); err != nil {
				return fmt.Errorf("splitledger: start background sync: %w", err)
			}

			fmt.Printf("syncing group %s every %s, press Ctrl+C to stop\n", groupID, interval)
			sig := make(chan os.Signal, 1)
			signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
			<-sig

			mgr.StopSync(groupID)
			return saveStore(ctx, dataDir, store)
		},
	}
	cmd.Flags().StringVar(&groupSecret, "group-secret", "", "group shared secret")
	cmd.Flags().IntVar(&intervalSeconds, "interval-seconds", 0, "background sync poll interval (defaults to config)")
	return cmd
}
