package blockverifier

// RewardCalculator computes the expected block reward for a height.
type RewardCalculator interface {
	CalcReward(height uint64) uint64
}

// HalvingReward is the reference RewardCalculator: a fixed initial
// reward that halves every HalvingInterval blocks, the common DPoS/PoW
// issuance curve.
type HalvingReward struct {
	Initial         uint64
	HalvingInterval uint64
}

// NewHalvingReward returns a HalvingReward with the given initial
// issuance and halving interval (in blocks).
func NewHalvingReward(initial, interval uint64) *HalvingReward {
	return &HalvingReward{Initial: initial, HalvingInterval: interval}
}

// CalcReward implements RewardCalculator.
func (h *HalvingReward) CalcReward(height uint64) uint64 {
	if h.HalvingInterval == 0 {
		return h.Initial
	}
	halvings := height / h.HalvingInterval
	reward := h.Initial
	for i := uint64(0); i < halvings && reward > 0; i++ {
		reward /= 2
	}
	return reward
}
