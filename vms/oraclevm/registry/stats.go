// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package registry

import (
	safemath "github.com/luxfi/oraclevm/utils/math"
	"github.com/luxfi/oraclevm/vms/oraclevm/oracle"
)

// Statistics summarizes the registry. Stake totals saturate rather than
// overflow.
func (r *Registry) Statistics() Statistics {
	r.lock.RLock()
	defer r.lock.RUnlock()

	stats := Statistics{
		TotalOracles: len(r.oracles),
		Blacklisted:  len(r.blacklist),
		Whitelisted:  len(r.whitelist),
	}

	var (
		activeScore float64
		accurate    uint64
	)
	for _, e := range r.oracles {
		switch e.Status {
		case oracle.Pending:
			stats.PendingOracles++
		case oracle.Active:
			stats.ActiveOracles++
			activeScore += e.Reputation.CurrentScore
		case oracle.Suspended:
			stats.SuspendedOracles++
		case oracle.Slashed:
			stats.SlashedOracles++
		}
		stats.TotalStake = saturatingAdd(stats.TotalStake, e.Stake.TotalAmount)
		stats.TotalLocked = saturatingAdd(stats.TotalLocked, e.Stake.LockedAmount)
		stats.TotalPendingSlash = saturatingAdd(stats.TotalPendingSlash, e.Stake.PendingSlash)
		stats.TotalResponses += e.Reputation.TotalResponses
		accurate += e.Reputation.AccurateResponses
	}
	if stats.ActiveOracles > 0 {
		stats.AverageReputation = activeScore / float64(stats.ActiveOracles)
	}
	if stats.TotalResponses > 0 {
		stats.OverallAccuracy = float64(accurate) / float64(stats.TotalResponses)
	}
	return stats
}

func saturatingAdd(a, b uint64) uint64 {
	sum, err := safemath.Add(a, b)
	if err != nil {
		return safemath.MaxUint[uint64]()
	}
	return sum
}
