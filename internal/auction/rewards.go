package auction

import (
	"math"

	"github.com/CELtd/filplus-autocap/internal/bid"
)

// RewardRecord is one bid's computed reward, carried in bid-insertion order.
type RewardRecord struct {
	Addr   string
	Amount uint64
}

// ComputeRewards implements §4.5.1: proportional floors plus deterministic
// one-byte-at-a-time remainder redistribution, scanning in bid-insertion
// order and skipping zero-stake bidders. Returns nil if total stake is 0.
func ComputeRewards(bids []bid.Bid, issuancePerRound uint64) []RewardRecord {
	total := 0.0
	for _, b := range bids {
		total += b.ValueFil
	}
	if total <= 0 {
		return nil
	}

	records := make([]RewardRecord, len(bids))
	remaining := issuancePerRound
	for i, b := range bids {
		records[i].Addr = b.From
		if b.ValueFil <= 0 {
			continue
		}
		floor := uint64(math.Floor((b.ValueFil / total) * float64(issuancePerRound)))
		records[i].Amount = floor
		remaining -= floor
	}

	for remaining > 0 {
		progressed := false
		for i := range bids {
			if remaining == 0 {
				break
			}
			if bids[i].ValueFil <= 0 {
				continue
			}
			records[i].Amount++
			remaining--
			progressed = true
		}
		if !progressed {
			break
		}
	}

	return records
}

// SumByAddr aggregates reward records into a per-address map, for Credit
// Ledger application.
func SumByAddr(records []RewardRecord) map[string]uint64 {
	out := make(map[string]uint64, len(records))
	for _, r := range records {
		out[r.Addr] += r.Amount
	}
	return out
}
