// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package registry

import (
	"fmt"

	"github.com/luxfi/log"

	safemath "github.com/luxfi/oraclevm/utils/math"
	"github.com/luxfi/oraclevm/vms/oraclevm/oracle"
)

// Slash penalizes id by SlashingConfig.Percentage of its total stake.
//
// An immediate slash locks the amount and marks the oracle Slashed. Otherwise
// the oracle is suspended and the amount is recorded as pending until the
// grace period ends. No stake moves until ProcessPendingSlashing finalizes it.
func (r *Registry) Slash(id, reason string, immediate bool) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	e, ok := r.oracles[id]
	if !ok {
		return fmt.Errorf("%w: %q", oracle.ErrNotFound, id)
	}
	return r.slashLocked(e, reason, immediate)
}

// slashLocked requires r.lock to be held.
func (r *Registry) slashLocked(e *Entry, reason string, immediate bool) error {
	id := e.ID
	amount, err := safemath.Portion(e.Stake.TotalAmount, r.slashingConfig.Percentage)
	if err != nil {
		return err
	}

	next := e.clone()
	now := r.clock.Unix()
	next.LastActivity = now
	next.Stake.SlashReason = reason

	if immediate {
		// any scheduled slash is superseded
		next.Stake.PendingSlash = 0
		next.Stake.SlashGraceEnd = nil
		next.Stake.LockedAmount = min(e.Stake.TotalAmount, e.Stake.LockedAmount+amount)
		next.Status = oracle.Slashed
		if err := r.publish(next); err != nil {
			return err
		}
		r.metrics.immediateSlashes.Inc()

		r.log.Error("oracle slashed",
			log.String("oracleID", id),
			log.String("reason", reason),
			log.Uint64("amount", amount),
			log.Uint64("locked", next.Stake.LockedAmount),
		)
		return nil
	}

	switch {
	case e.Status == oracle.Slashed:
		return fmt.Errorf("%w: oracle %q is already slashed", oracle.ErrInvalidStatus, id)
	case e.Stake.SlashGraceEnd != nil:
		return fmt.Errorf("%w: oracle %q already has a pending slash", oracle.ErrInvalidStatus, id)
	}

	graceEnd, err := safemath.Add(now, r.slashingConfig.GracePeriod)
	if err != nil {
		return err
	}
	next.Stake.PendingSlash = amount
	next.Stake.SlashGraceEnd = &graceEnd
	next.Status = oracle.Suspended
	if err := r.publish(next); err != nil {
		return err
	}
	r.metrics.scheduledSlashes.Inc()

	r.log.Warn("oracle slash scheduled",
		log.String("oracleID", id),
		log.String("reason", reason),
		log.Uint64("amount", amount),
		log.Uint64("graceEnd", graceEnd),
	)
	return nil
}

// ProcessPendingSlashing finalizes every scheduled slash whose grace period
// has ended and returns how many were finalized. Running it again before
// another grace period ends is a no-op.
func (r *Registry) ProcessPendingSlashing() (int, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	now := r.clock.Unix()
	var next []*Entry
	for _, e := range r.oracles {
		if e.Status != oracle.Suspended || e.Stake.SlashGraceEnd == nil || now < *e.Stake.SlashGraceEnd {
			continue
		}
		n := e.clone()
		n.Stake.LockedAmount = min(n.Stake.TotalAmount, n.Stake.LockedAmount+n.Stake.PendingSlash)
		n.Stake.PendingSlash = 0
		n.Stake.SlashGraceEnd = nil
		n.Status = oracle.Slashed
		n.LastActivity = now
		next = append(next, n)
	}
	if err := r.publishAll(next); err != nil {
		return 0, err
	}

	for _, n := range next {
		r.metrics.finalizedSlashes.Inc()
		r.log.Error("scheduled slash finalized",
			log.String("oracleID", n.ID),
			log.String("reason", n.Stake.SlashReason),
			log.Uint64("locked", n.Stake.LockedAmount),
		)
	}
	return len(next), nil
}

// AutoSlash applies the slashing policy to id and schedules a slash when it
// fires. It reports whether a slash was scheduled. The policy is evaluated and
// the slash scheduled atomically, so concurrent callers schedule at most one.
func (r *Registry) AutoSlash(id string) (bool, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	e, ok := r.oracles[id]
	if !ok {
		return false, fmt.Errorf("%w: %q", oracle.ErrNotFound, id)
	}
	reason, ok := EvaluateSlashing(e, r.slashingConfig)
	if !ok {
		return false, nil
	}
	if err := r.slashLocked(e, reason, false); err != nil {
		return false, err
	}
	return true, nil
}
