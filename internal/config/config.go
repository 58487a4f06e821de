// Package config loads node configuration: a small typed config struct
// with a TOML-backed Load() convention, plus a .properties
// override path for a node operator tuning maxTxsPerBlock etc. without
// recompiling.
package config

import (
	"os"

	"github.com/BurntSushi/toml"
	"github.com/magiconair/properties"
	"github.com/pkg/errors"
)

// MempoolConfig holds the pool sizing and pacing knobs an operator can
// tune without recompiling.
type MempoolConfig struct {
	MaxSharedTxs    int   `toml:"max_shared_txs"`
	WarningLimit    int   `toml:"warning_limit"`
	SequencePaceMS  int   `toml:"sequence_pace_ms"`
	ConflictExpireS int64 `toml:"conflict_expire_seconds"`
}

// BlockVerifierConfig holds the block-production constants.
type BlockVerifierConfig struct {
	MaxTxsPerBlock          int    `toml:"max_txs_per_block"`
	MaxPayloadLength        int    `toml:"max_payload_length"`
	BlockSlotWindow         int    `toml:"block_slot_window"`
	ActiveDelegates         int    `toml:"active_delegates"`
	EpochTimeUnix           int64  `toml:"epoch_time_unix"`
	SlotDurationSeconds     int64  `toml:"slot_duration_seconds"`
	MasterNodeMigratedBlock uint64 `toml:"master_node_migrated_block"`
}

// LedgerConfig points at the leveldb path backing internal/ledgerstore.
type LedgerConfig struct {
	StorePath string `toml:"store_path"`
}

// Config is the top-level node configuration.
type Config struct {
	Mempool       MempoolConfig       `toml:"mempool"`
	BlockVerifier BlockVerifierConfig `toml:"block_verifier"`
	Ledger        LedgerConfig        `toml:"ledger"`
}

// Default returns the configuration used when no file is supplied.
func Default() Config {
	return Config{
		Mempool: MempoolConfig{
			MaxSharedTxs:    1000,
			WarningLimit:    50,
			SequencePaceMS:  600,
			ConflictExpireS: 10800,
		},
		BlockVerifier: BlockVerifierConfig{
			MaxTxsPerBlock:          1000,
			MaxPayloadLength:        1 << 20,
			BlockSlotWindow:         5,
			ActiveDelegates:         101,
			SlotDurationSeconds:     10,
			MasterNodeMigratedBlock: 100_000,
		},
		Ledger: LedgerConfig{StorePath: "ddk-ledger.db"},
	}
}

// Load reads a TOML config file at path, falling back to Default()
// values for any field the file leaves unset. A missing file is not an
// error — Default() is returned as-is.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		return cfg, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "config: decode %s", path)
	}
	return cfg, nil
}

// LoadOverrides applies a .properties file on top of cfg, the way an
// operator might override a handful of knobs without touching the main
// TOML file (mirrors magiconair/properties' common use as a thin
// environment-specific overlay).
func LoadOverrides(cfg Config, propertiesPath string) (Config, error) {
	if propertiesPath == "" {
		return cfg, nil
	}
	if _, err := os.Stat(propertiesPath); os.IsNotExist(err) {
		return cfg, nil
	}

	p, err := properties.LoadFile(propertiesPath, properties.UTF8)
	if err != nil {
		return cfg, errors.Wrapf(err, "config: load overrides %s", propertiesPath)
	}

	cfg.Mempool.MaxSharedTxs = p.GetInt("mempool.max_shared_txs", cfg.Mempool.MaxSharedTxs)
	cfg.Mempool.WarningLimit = p.GetInt("mempool.warning_limit", cfg.Mempool.WarningLimit)
	cfg.BlockVerifier.MaxTxsPerBlock = p.GetInt("block_verifier.max_txs_per_block", cfg.BlockVerifier.MaxTxsPerBlock)

	return cfg, nil
}
