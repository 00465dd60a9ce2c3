// Package kernelconfig loads the bootstrap configuration a vkernel process
// needs before it can build a Kernel: the root session's entitlements and
// public key, the shared-memory arena size, and the module repository's
// base directory. It mirrors toolhive's environment-override-plus-YAML-file
// configuration layering, built on viper.
package kernelconfig

import (
	"encoding/hex"
	"fmt"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/stacklok/vkernel/pkg/session"
)

const (
	keyArenaBytes       = "arena_bytes"
	keyModuleRepoDir    = "module_repo_dir"
	keyRootEntitlements = "root_entitlements"
	keyRootPubkey       = "root_pubkey"
	keyConfigFile       = "config"

	defaultArenaBytes    = 256 * 1024 * 1024
	defaultModuleRepoDir = "."
)

// Config is the bootstrap configuration a Kernel is built from.
type Config struct {
	RootEntitlements []session.Capability
	RootPubkey       [32]byte
	ArenaBytes       uint64
	ModuleRepoDir    string
}

// Load builds a viper instance layering, in increasing priority: defaults,
// a YAML config file (if one is named by the "config" key), and
// VKERNEL_-prefixed environment variables, then binds flags (if supplied,
// typically cmd/vkernel's persistent flags) as the highest-priority layer.
func Load(flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("VKERNEL")
	v.AutomaticEnv()

	v.SetDefault(keyArenaBytes, defaultArenaBytes)
	v.SetDefault(keyModuleRepoDir, defaultModuleRepoDir)
	v.SetDefault(keyRootEntitlements, []string{"session_lifecycle"})

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("kernelconfig: binding flags: %w", err)
		}
	}

	if cfgFile := v.GetString(keyConfigFile); cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("kernelconfig: reading config file %s: %w", cfgFile, err)
		}
	}

	caps, err := parseCapabilities(v.GetStringSlice(keyRootEntitlements))
	if err != nil {
		return nil, err
	}

	pubkey, err := parsePubkey(v.GetString(keyRootPubkey))
	if err != nil {
		return nil, err
	}

	return &Config{
		RootEntitlements: caps,
		RootPubkey:       pubkey,
		ArenaBytes:       v.GetUint64(keyArenaBytes),
		ModuleRepoDir:    v.GetString(keyModuleRepoDir),
	}, nil
}

func parsePubkey(raw string) ([32]byte, error) {
	var pubkey [32]byte
	if raw == "" {
		return pubkey, nil
	}
	decoded, err := hex.DecodeString(raw)
	if err != nil {
		return pubkey, fmt.Errorf("kernelconfig: root_pubkey is not valid hex: %w", err)
	}
	if len(decoded) != len(pubkey) {
		return pubkey, fmt.Errorf("kernelconfig: root_pubkey must decode to %d bytes, got %d", len(pubkey), len(decoded))
	}
	copy(pubkey[:], decoded)
	return pubkey, nil
}

func parseCapabilities(names []string) ([]session.Capability, error) {
	caps := make([]session.Capability, 0, len(names))
	for _, name := range names {
		cap, ok := session.ParseCapability(name)
		if !ok {
			return nil, fmt.Errorf("kernelconfig: unknown capability %q", name)
		}
		caps = append(caps, cap)
	}
	return caps, nil
}
