// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package registry

import (
	"fmt"

	"github.com/luxfi/log"

	"github.com/luxfi/oraclevm/vms/oraclevm/oracle"
)

// Whitelist exempts id from the blacklist. Whitelisting neither activates
// the oracle nor undoes a slash.
func (r *Registry) Whitelist(id, note string) error {
	if id == "" {
		return fmt.Errorf("%w: empty oracle id", oracle.ErrInvalidRegistration)
	}

	r.lock.Lock()
	defer r.lock.Unlock()

	if err := r.state.putAccess(r.state.whitelist, id, note); err != nil {
		return fmt.Errorf("failed to persist whitelist entry %q: %w", id, err)
	}
	r.whitelist[id] = note

	r.log.Info("oracle whitelisted",
		log.String("oracleID", id),
		log.String("note", note),
	)
	return nil
}

// Blacklist bars id from registering. A registered oracle that is not
// whitelisted is suspended as well.
func (r *Registry) Blacklist(id, reason string) error {
	if id == "" {
		return fmt.Errorf("%w: empty oracle id", oracle.ErrInvalidRegistration)
	}

	r.lock.Lock()
	defer r.lock.Unlock()

	if err := r.state.putAccess(r.state.blacklist, id, reason); err != nil {
		return fmt.Errorf("failed to persist blacklist entry %q: %w", id, err)
	}
	r.blacklist[id] = reason

	r.log.Warn("oracle blacklisted",
		log.String("oracleID", id),
		log.String("reason", reason),
	)

	e, ok := r.oracles[id]
	if !ok || !r.barred(id) {
		return nil
	}
	if e.Status != oracle.Active && e.Status != oracle.Pending {
		return nil
	}
	next := e.clone()
	next.Status = oracle.Suspended
	next.LastActivity = r.clock.Unix()
	if err := r.publish(next); err != nil {
		return err
	}
	r.log.Warn("blacklisted oracle suspended",
		log.String("oracleID", id),
		log.Stringer("from", e.Status),
	)
	return nil
}

// RemoveFromBlacklist lifts a blacklist entry. The oracle's status is left
// unchanged.
func (r *Registry) RemoveFromBlacklist(id string) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	if _, ok := r.blacklist[id]; !ok {
		return nil
	}
	if err := r.state.deleteAccess(r.state.blacklist, id); err != nil {
		return fmt.Errorf("failed to delete blacklist entry %q: %w", id, err)
	}
	delete(r.blacklist, id)

	r.log.Info("oracle removed from blacklist", log.String("oracleID", id))
	return nil
}

// IsBlacklisted returns the blacklist reason of id.
func (r *Registry) IsBlacklisted(id string) (string, bool) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	reason, ok := r.blacklist[id]
	return reason, ok
}

// IsWhitelisted returns the whitelist note of id.
func (r *Registry) IsWhitelisted(id string) (string, bool) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	note, ok := r.whitelist[id]
	return note, ok
}

// barred reports whether the blacklist applies to id. Assumes the lock is
// held.
func (r *Registry) barred(id string) bool {
	if _, ok := r.whitelist[id]; ok {
		return false
	}
	_, ok := r.blacklist[id]
	return ok
}
