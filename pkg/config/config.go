// Package config holds the node's persisted consensus parameters (spec §3)
// and the process configuration read via viper (spec §6).
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/viper"

	"github.com/gochain/ledgernode/pkg/nodeerr"
)

// Config is the persisted set of consensus parameters. It round-trips to a
// single JSON file in the data directory.
type Config struct {
	AdjustEvery         uint64 `json:"adjustEvery"`
	TargetBlockTimeSec  uint64 `json:"targetBlockTimeSec"`
	BlockSubsidy        uint64 `json:"blockSubsidy"`
	HalvingInterval     uint64 `json:"halvingInterval"`
	CoinbaseMaturity    uint64 `json:"coinbaseMaturity"`
	MaxBlockTx          int    `json:"maxBlockTx"`
	Bits                uint32 `json:"bits"`
}

// Default returns the reference node's starting configuration.
func Default() *Config {
	return &Config{
		AdjustEvery:        2016,
		TargetBlockTimeSec: 10,
		BlockSubsidy:       5000000000,
		HalvingInterval:    210000,
		CoinbaseMaturity:   100,
		MaxBlockTx:         2000,
		Bits:               0x207fffff,
	}
}

// Load reads a config file at path, falling back to Default() if the file
// does not exist yet (first run). A corrupted (present but unparsable) file
// is a Fatal startup error per spec §7.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, nodeerr.Fatal)
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, nodeerr.Fatal)
	}
	return &cfg, nil
}

// Save writes cfg to path as canonical, indented JSON.
func Save(path string, cfg *Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}
	return nil
}

// ProcessConfig is the process-level configuration read from environment
// and flags via viper (spec §6): listen ports and the seed peer list.
type ProcessConfig struct {
	HTTPPort   int
	PeerPort   int
	DataDir    string
	ConfigFile string
	PeerURLs   []string
}

// LoadProcess reads process configuration from viper, matching the
// teacher's cmd/gochain/main.go loadConfig() flow (config file optional,
// environment variables automatically bound).
func LoadProcess(v *viper.Viper) *ProcessConfig {
	v.SetDefault("http_port", 8080)
	v.SetDefault("peer_port", 9090)
	v.SetDefault("data_dir", "./data")
	v.AutomaticEnv()

	pc := &ProcessConfig{
		HTTPPort: v.GetInt("http_port"),
		PeerPort: v.GetInt("peer_port"),
		DataDir:  v.GetString("data_dir"),
	}
	if peers := v.GetStringSlice("peer_urls"); len(peers) > 0 {
		pc.PeerURLs = peers
	}
	return pc
}
