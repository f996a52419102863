// Command splitledger is the reference CLI for the peer-to-peer
// expense-sharing ledger. It is a thin wrapper: every operation below
// delegates to the identity, ledger, balance, groupcipher, transport,
// syncmgr, storage and invitelink packages; this file and its siblings
// only wire cobra commands to them.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

// dataDir is the local state directory shared by every subcommand.
var dataDir string

// relayURL overrides the config file's splitledger.relay_url.
var relayURL string

func main() {
	root := &cobra.Command{
		Use:   "splitledger",
		Short: "peer-to-peer expense-sharing ledger",
	}
	root.PersistentFlags().StringVar(&dataDir, "data-dir", defaultDataDir(), "local state directory")
	root.PersistentFlags().StringVar(&relayURL, "relay", "", "relay server URL (overrides config)")

	root.AddCommand(identityCmd())
	root.AddCommand(groupCmd())
	root.AddCommand(expenseCmd())
	root.AddCommand(deviceCmd())
	root.AddCommand(syncCmd())
	root.AddCommand(balanceCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "splitledger:", err)
		os.Exit(1)
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".splitledger"
	}
	return filepath.Join(home, ".splitledger")
}
