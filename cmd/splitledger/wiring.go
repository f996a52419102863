package main

import (
	"fmt"

	"github.com/spf13/viper"

	pkgconfig "github.com/tobael/splitledger/pkg/config"
	"github.com/tobael/splitledger/transport"
)

// resolveRelayURL prefers the --relay flag, then the config file's
// splitledger.relay_url, then a loopback default suitable for local
// experimentation against the teacher's relay server.
func resolveRelayURL() string {
	if relayURL != "" {
		return relayURL
	}
	if cfg, err := pkgconfig.LoadFromEnv(); err == nil && cfg.SplitLedger.RelayURL != "" {
		return cfg.SplitLedger.RelayURL
	}
	viper.Reset()
	return "ws://127.0.0.1:8765/ws"
}

// newTransport builds the composite relay+peer transport every group-aware
// command runs against.
func newTransport() (transport.Transport, error) {
	relay := transport.NewRelayTransport(transport.RelayConfig{URL: resolveRelayURL()})
	peer := transport.NewPeerTransport("/ip4/0.0.0.0/tcp/0", nil)
	composite, err := transport.NewCompositeTransport(relay, peer)
	if err != nil {
		return nil, fmt.Errorf("splitledger: build transport: %w", err)
	}
	return composite, nil
}

// resolveGroupSecret prefers an explicit flag value, then the config
// file's default group-secret source.
func resolveGroupSecret(flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	if cfg, err := pkgconfig.LoadFromEnv(); err == nil && cfg.SplitLedger.GroupSecretSource != "" {
		return cfg.SplitLedger.GroupSecretSource, nil
	}
	return "", fmt.Errorf("a group secret is required: pass --group-secret or set splitledger.group_secret_source")
}
