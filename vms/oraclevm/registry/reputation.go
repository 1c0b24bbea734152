// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package registry

import (
	"fmt"

	"github.com/luxfi/log"

	safemath "github.com/luxfi/oraclevm/utils/math"
	"github.com/luxfi/oraclevm/vms/oraclevm/config"
	"github.com/luxfi/oraclevm/vms/oraclevm/oracle"
)

// Outcome is the result of one oracle report.
type Outcome struct {
	ResponseTimeMs uint64
	Accurate       bool
	SignatureValid bool
}

// observe maps an outcome to an observation in [0, 1] and an extra penalty.
// An accurate report answered within MaxResponseTimeMs observes 1. Slower
// accurate reports are scaled by MaxResponseTimeMs/ResponseTimeMs, floored
// at MinLatencyFactor.
func observe(cfg config.ReputationConfig, o Outcome) (observation, penalty float64) {
	switch {
	case !o.SignatureValid:
		return 0, cfg.InvalidSignaturePenalty
	case !o.Accurate:
		return cfg.InaccurateObservation, 0
	case o.ResponseTimeMs > cfg.MaxResponseTimeMs:
		factor := float64(cfg.MaxResponseTimeMs) / float64(o.ResponseTimeMs)
		return max(factor, cfg.MinLatencyFactor), 0
	default:
		return 1, 0
	}
}

// nextScore blends an outcome into score. The result is always within [0, 1].
func nextScore(cfg config.ReputationConfig, score float64, o Outcome) float64 {
	observation, penalty := observe(cfg, o)
	blended := (1-cfg.Alpha)*score + cfg.Alpha*observation - penalty
	return safemath.Clamp(blended, 0, 1)
}

// UpdateReputation records the outcome of one report by id.
func (r *Registry) UpdateReputation(id string, responseTimeMs uint64, accurate, signatureValid bool) error {
	_, err := r.RecordOutcome(id, Outcome{
		ResponseTimeMs: responseTimeMs,
		Accurate:       accurate,
		SignatureValid: signatureValid,
	})
	return err
}

// RecordOutcome records o against id and returns the updated entry.
func (r *Registry) RecordOutcome(id string, o Outcome) (*Entry, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	e, ok := r.oracles[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", oracle.ErrNotFound, id)
	}

	now := r.clock.Unix()
	next := e.clone()
	rep := &next.Reputation
	perf := &next.Performance

	rep.TotalResponses++
	if o.Accurate {
		rep.AccurateResponses++
	} else {
		rep.InaccurateResponses++
	}
	if !o.SignatureValid {
		rep.InvalidSignatureResponses++
	}
	rep.AvgResponseTimeMs += (float64(o.ResponseTimeMs) - rep.AvgResponseTimeMs) / float64(rep.TotalResponses)
	rep.CurrentScore = nextScore(r.reputationConfig, rep.CurrentScore, o)
	rep.MaxScore = max(rep.MaxScore, rep.CurrentScore)
	rep.LastUpdated = now

	if o.Accurate && o.SignatureValid {
		perf.ConsecutiveFailures = 0
	} else {
		perf.ConsecutiveFailures++
	}
	perf.Responses24h++
	perf.LastResponse = now
	next.LastActivity = now

	if err := r.publish(next); err != nil {
		return nil, err
	}
	r.metrics.reputationUpdates.Inc()

	r.log.Debug("reputation updated",
		log.String("oracleID", id),
		log.Bool("accurate", o.Accurate),
		log.Bool("signatureValid", o.SignatureValid),
		log.Uint64("responseTimeMs", o.ResponseTimeMs),
		log.Reflect("score", rep.CurrentScore),
	)
	return next.clone(), nil
}

// DailyMaintenance decays the score of every Active oracle, records each
// oracle's daily score, resets the 24h counters and then finalizes elapsed
// slashes.
func (r *Registry) DailyMaintenance() (MaintenanceReport, error) {
	decayed, err := r.decay()
	if err != nil {
		return MaintenanceReport{}, err
	}
	finalized, err := r.ProcessPendingSlashing()
	if err != nil {
		return MaintenanceReport{Decayed: decayed}, err
	}

	report := MaintenanceReport{
		Decayed:   decayed,
		Finalized: finalized,
	}
	r.log.Info("daily maintenance complete",
		log.Int("decayed", report.Decayed),
		log.Int("finalized", report.Finalized),
	)
	return report, nil
}

func (r *Registry) decay() (int, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	history := r.reputationConfig.DailyHistory
	next := make([]*Entry, 0, len(r.oracles))
	decayed := 0
	for _, e := range r.oracles {
		n := e.clone()
		if n.Status == oracle.Active {
			n.Reputation.CurrentScore = safemath.Clamp(n.Reputation.CurrentScore*r.reputationConfig.DecayFactor, 0, 1)
			decayed++
		}
		if history > 0 {
			n.Reputation.DailyScores = append(n.Reputation.DailyScores, n.Reputation.CurrentScore)
			if extra := len(n.Reputation.DailyScores) - history; extra > 0 {
				n.Reputation.DailyScores = n.Reputation.DailyScores[extra:]
			}
		}
		n.Performance.Responses24h = 0
		next = append(next, n)
	}
	if err := r.publishAll(next); err != nil {
		return 0, err
	}
	return decayed, nil
}
