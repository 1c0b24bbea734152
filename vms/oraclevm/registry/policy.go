// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package registry

import (
	"fmt"

	"github.com/luxfi/oraclevm/vms/oraclevm/config"
	"github.com/luxfi/oraclevm/vms/oraclevm/oracle"
)

// EvaluateSlashing decides whether an Active oracle should be slashed and
// why. It has no side effects and depends only on e and cfg.
//
// An oracle is slashed when it has failed ConsecutiveFailureThreshold reports
// in a row, when its score is below ReputationFloor, or when more than
// InvalidSignatureRatio of at least MinSampleSize responses carried invalid
// signatures.
func EvaluateSlashing(e *Entry, cfg config.SlashingConfig) (string, bool) {
	if e.Status != oracle.Active {
		return "", false
	}

	rep := e.Reputation
	switch {
	case e.Performance.ConsecutiveFailures >= cfg.ConsecutiveFailureThreshold:
		return fmt.Sprintf("consecutive failures: %d", e.Performance.ConsecutiveFailures), true
	case rep.CurrentScore < cfg.ReputationFloor:
		return fmt.Sprintf("low reputation: %.3f", rep.CurrentScore), true
	case rep.TotalResponses >= cfg.MinSampleSize && rep.TotalResponses > 0 && rep.InvalidSignatureRate() > cfg.InvalidSignatureRatio:
		return fmt.Sprintf("high invalid signature rate: %.1f%%", rep.InvalidSignatureRate()*100), true
	default:
		return "", false
	}
}
