package blockverifier

// Config bundles the block producer limits, the migration height, and
// the DPoS slot schedule. Values default to conservative placeholders;
// a real deployment loads these from internal/config.
type Config struct {
	MaxTxsPerBlock      int
	MaxPayloadLength    int
	BlockSlotWindow     int
	EpochTimeUnix       int64
	SlotDurationSeconds int64

	// MasterNodeMigratedBlock is the height at which consensus rules
	// changed. Blocks at or below this height are accepted under
	// relaxed payload/signature checks; this gate must never be
	// removed, only extended.
	MasterNodeMigratedBlock uint64

	// MaxHeightWithReward caps issuance: past this height expected
	// reward is forced to zero.
	MaxHeightWithReward uint64
}

// DefaultConfig returns reasonable defaults; callers in cmd/node
// override via internal/config.
func DefaultConfig() Config {
	return Config{
		MaxTxsPerBlock:          1000,
		MaxPayloadLength:        1 << 20,
		BlockSlotWindow:         5,
		SlotDurationSeconds:     10,
		MasterNodeMigratedBlock: 100_000,
		MaxHeightWithReward:     21_000_000,
	}
}

// Slot returns the slot index for a unix timestamp under this config's
// epoch and slot duration — a fixed-duration time bucket in which
// exactly one delegate is entitled to produce a block.
func (c Config) Slot(unixSeconds int64) int64 {
	if c.SlotDurationSeconds <= 0 {
		return 0
	}
	return (unixSeconds - c.EpochTimeUnix) / c.SlotDurationSeconds
}
