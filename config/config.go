// Package config handles node configuration. It is split the way the
// teacher's config package is: protocol rules (Genesis, immutable, must
// match across every node on a network) versus node settings (Config,
// runtime, can vary per node without breaking consensus). CLI flag
// parsing and a config file format are intentionally out of scope (per
// spec.md §1, "CLI and configuration loading" is an external concern);
// this package only loads and validates already-structured configuration,
// the way the teacher's config.Genesis.Validate does for protocol rules.
package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// NetworkType identifies mainnet or testnet.
type NetworkType string

const (
	Mainnet NetworkType = "mainnet"
	Testnet NetworkType = "testnet"
)

// Config holds node-specific runtime configuration: settings that can
// vary between nodes without affecting consensus.
type Config struct {
	Network NetworkType
	DataDir string

	RPC     RPCConfig
	Mining  MiningConfig
	Log     LogConfig
	Freezer FreezerConfig
}

// RPCConfig holds the node's JSON-RPC listener settings. The surface
// itself is out of scope (spec.md §1); this only configures where it
// would bind if cmd/cellnoded wired one up.
type RPCConfig struct {
	Enabled bool
	Addr    string
	Port    int
}

// MiningConfig holds block-production settings. Whether to mine is an
// operational node choice; how a block is validated is protocol (Genesis).
type MiningConfig struct {
	Enabled  bool
	Coinbase string
}

// LogConfig holds logging settings, applied via internal/logging.Init.
type LogConfig struct {
	Level string
	File  string
	JSON  bool
}

// FreezerConfig controls the cold-archive tier (spec.md §4.9).
type FreezerConfig struct {
	Dir          string
	KeepHotBlocks uint64
}

// Default returns a Config with the stock defaults for network.
func Default(network NetworkType) *Config {
	dataDir := DefaultDataDir()
	return &Config{
		Network: network,
		DataDir: dataDir,
		RPC: RPCConfig{
			Enabled: true,
			Addr:    "127.0.0.1",
			Port:    8114,
		},
		Log: LogConfig{
			Level: "info",
		},
		Freezer: FreezerConfig{
			KeepHotBlocks: 90_000,
		},
	}
}

// DefaultDataDir returns the platform-specific default data directory.
//
//	Linux:   ~/.cellnode
//	macOS:   ~/Library/Application Support/Cellnode
//	Windows: %APPDATA%\Cellnode
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".cellnode"
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "Cellnode")
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, "Cellnode")
		}
		return filepath.Join(home, "AppData", "Roaming", "Cellnode")
	default:
		return filepath.Join(home, ".cellnode")
	}
}

// ChainDataDir returns the network-specific data directory.
func (c *Config) ChainDataDir() string {
	return filepath.Join(c.DataDir, string(c.Network))
}

// StoreDir returns the hot chain-store directory.
func (c *Config) StoreDir() string {
	return filepath.Join(c.ChainDataDir(), "store")
}

// FreezerDir returns the cold-archive directory, honoring an explicit
// override in FreezerConfig.Dir.
func (c *Config) FreezerDir() string {
	if c.Freezer.Dir != "" {
		return c.Freezer.Dir
	}
	return filepath.Join(c.ChainDataDir(), "freezer")
}

// LogsDir returns the logs directory.
func (c *Config) LogsDir() string {
	return filepath.Join(c.DataDir, "logs")
}
