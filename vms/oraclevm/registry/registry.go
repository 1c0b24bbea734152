// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package registry implements the oracle trust registry: the authoritative
// record of every oracle's identity, stake, status and reputation.
//
// A single lock guards the entries and the access lists. Every mutation is
// applied to a copy of the entry, written through to the database and only
// then published, so a failed write leaves the registry unchanged.
package registry

import (
	"cmp"
	"fmt"
	"slices"
	"sync"

	"github.com/Masterminds/semver/v3"

	"github.com/luxfi/database"
	"github.com/luxfi/log"
	"github.com/luxfi/math/set"
	"github.com/luxfi/metric"

	"github.com/luxfi/oraclevm/vms/oraclevm/config"
	"github.com/luxfi/oraclevm/vms/oraclevm/oracle"
)

// Clock reports the current unix time in seconds.
type Clock interface {
	Unix() uint64
}

// Registry is safe for concurrent use.
type Registry struct {
	log     log.Logger
	clock   Clock
	state   *state
	metrics *metrics

	registryConfig   config.RegistryConfig
	reputationConfig config.ReputationConfig
	slashingConfig   config.SlashingConfig
	minVersion       *semver.Constraints

	lock      sync.RWMutex
	oracles   map[string]*Entry
	blacklist map[string]string
	whitelist map[string]string
}

// New returns a registry backed by db, restoring any previously persisted
// entries and access lists.
func New(
	logger log.Logger,
	db database.Database,
	cfg config.Config,
	clock Clock,
	registerer metric.Registerer,
) (*Registry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	minVersion, err := cfg.Registry.VersionConstraint()
	if err != nil {
		return nil, err
	}
	m, err := newMetrics(registerer)
	if err != nil {
		return nil, fmt.Errorf("failed to register registry metrics: %w", err)
	}

	r := &Registry{
		log:              logger,
		clock:            clock,
		state:            newState(db),
		metrics:          m,
		registryConfig:   cfg.Registry,
		reputationConfig: cfg.Reputation,
		slashingConfig:   cfg.Slashing,
		minVersion:       minVersion,
	}

	r.oracles, err = r.state.loadEntries()
	if err != nil {
		return nil, fmt.Errorf("failed to load oracles: %w", err)
	}
	r.blacklist, err = r.state.loadAccess(r.state.blacklist)
	if err != nil {
		return nil, fmt.Errorf("failed to load blacklist: %w", err)
	}
	r.whitelist, err = r.state.loadAccess(r.state.whitelist)
	if err != nil {
		return nil, fmt.Errorf("failed to load whitelist: %w", err)
	}
	r.metrics.observe(r.oracles)

	r.log.Info("oracle registry loaded",
		log.Int("oracles", len(r.oracles)),
		log.Int("blacklisted", len(r.blacklist)),
		log.Int("whitelisted", len(r.whitelist)),
	)
	return r, nil
}

// Register admits a new oracle in the Pending state with a full score.
func (r *Registry) Register(reg Registration) (*Entry, error) {
	if reg.ID == "" {
		return nil, fmt.Errorf("%w: empty oracle id", oracle.ErrInvalidRegistration)
	}
	if len(reg.PublicKey) == 0 {
		return nil, fmt.Errorf("%w: empty public key", oracle.ErrInvalidRegistration)
	}
	services := set.NewSet[string](len(reg.SupportedServices))
	services.Add(reg.SupportedServices...)
	if services.Len() != len(reg.SupportedServices) {
		return nil, fmt.Errorf("%w: duplicate supported service", oracle.ErrInvalidRegistration)
	}
	if !r.registryConfig.Supports(reg.Algorithm) {
		return nil, fmt.Errorf("%w: %q", oracle.ErrUnsupportedAlgo, reg.Algorithm)
	}
	if err := r.checkVersion(reg.Version); err != nil {
		return nil, err
	}

	r.lock.Lock()
	defer r.lock.Unlock()

	_, whitelisted := r.whitelist[reg.ID]
	if reason, ok := r.blacklist[reg.ID]; ok && !whitelisted {
		return nil, fmt.Errorf("%w: %q: %s", oracle.ErrBlacklisted, reg.ID, reason)
	}
	if r.registryConfig.RequireWhitelist && !whitelisted {
		return nil, fmt.Errorf("%w: %q", oracle.ErrNotWhitelisted, reg.ID)
	}
	if reg.StakeAmount < r.registryConfig.MinStake {
		return nil, fmt.Errorf("%w: staked %d, minimum is %d",
			oracle.ErrInsufficientStake, reg.StakeAmount, r.registryConfig.MinStake)
	}
	if _, ok := r.oracles[reg.ID]; ok {
		return nil, fmt.Errorf("%w: %q", oracle.ErrAlreadyRegistered, reg.ID)
	}
	if len(r.oracles) >= r.registryConfig.MaxOracleCount {
		return nil, fmt.Errorf("%w: limit is %d", oracle.ErrCapacityExceeded, r.registryConfig.MaxOracleCount)
	}

	now := r.clock.Unix()
	score := r.reputationConfig.InitialScore
	e := &Entry{
		ID:                reg.ID,
		Name:              reg.Name,
		Description:       reg.Description,
		PublicKey:         slices.Clone(reg.PublicKey),
		Algorithm:         reg.Algorithm,
		Version:           reg.Version,
		SupportedServices: slices.Clone(reg.SupportedServices),
		Contact:           reg.Contact,
		CertificateChain:  cloneCertificates(reg.CertificateChain),
		Status:            oracle.Pending,
		RegisteredAt:      now,
		LastActivity:      now,
		Stake: Stake{
			TotalAmount: reg.StakeAmount,
		},
		Reputation: Reputation{
			CurrentScore: score,
			MaxScore:     score,
			LastUpdated:  now,
		},
	}
	if err := r.state.putEntry(e); err != nil {
		return nil, fmt.Errorf("failed to persist oracle %q: %w", reg.ID, err)
	}
	r.oracles[e.ID] = e
	r.metrics.registrations.Inc()
	r.metrics.observe(r.oracles)

	r.log.Info("oracle registered",
		log.String("oracleID", e.ID),
		log.String("name", e.Name),
		log.String("version", e.Version),
		log.Uint64("stake", e.Stake.TotalAmount),
	)
	return e.clone(), nil
}

func (r *Registry) checkVersion(v string) error {
	version, err := semver.NewVersion(v)
	if err != nil {
		return fmt.Errorf("%w: %q: %w", oracle.ErrUnsupportedVersion, v, err)
	}
	if r.minVersion != nil && !r.minVersion.Check(version) {
		return fmt.Errorf("%w: %s does not satisfy %q",
			oracle.ErrUnsupportedVersion, version, r.registryConfig.MinOracleVersion)
	}
	return nil
}

// Activate moves a Pending or Suspended oracle to Active. Activating an
// oracle whose slash is still in its grace period cancels the slash.
func (r *Registry) Activate(id string) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	e, ok := r.oracles[id]
	if !ok {
		return fmt.Errorf("%w: %q", oracle.ErrNotFound, id)
	}
	if r.barred(id) {
		return fmt.Errorf("%w: %q", oracle.ErrBlacklisted, id)
	}
	if e.Status != oracle.Pending && e.Status != oracle.Suspended {
		return fmt.Errorf("%w: cannot activate %q from %s", oracle.ErrInvalidStatus, id, e.Status)
	}

	next := e.clone()
	cancelled := next.Stake.PendingSlash
	next.Status = oracle.Active
	next.Stake.PendingSlash = 0
	next.Stake.SlashGraceEnd = nil
	next.Stake.SlashReason = ""
	next.LastActivity = r.clock.Unix()
	if err := r.publish(next); err != nil {
		return err
	}

	r.log.Info("oracle activated",
		log.String("oracleID", id),
		log.Stringer("from", e.Status),
		log.Uint64("cancelledSlash", cancelled),
	)
	return nil
}

// Deactivate suspends an oracle without scheduling a slash.
func (r *Registry) Deactivate(id string) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	e, ok := r.oracles[id]
	if !ok {
		return fmt.Errorf("%w: %q", oracle.ErrNotFound, id)
	}
	switch e.Status {
	case oracle.Suspended:
		return nil
	case oracle.Slashed:
		return fmt.Errorf("%w: cannot deactivate slashed oracle %q", oracle.ErrInvalidStatus, id)
	}

	next := e.clone()
	next.Status = oracle.Suspended
	next.LastActivity = r.clock.Unix()
	if err := r.publish(next); err != nil {
		return err
	}

	r.log.Info("oracle deactivated", log.String("oracleID", id))
	return nil
}

// Reinstate returns a Slashed oracle to Pending, provided its unlocked stake
// still meets the minimum. The oracle must be activated again before its
// responses are trusted.
func (r *Registry) Reinstate(id string) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	e, ok := r.oracles[id]
	if !ok {
		return fmt.Errorf("%w: %q", oracle.ErrNotFound, id)
	}
	if e.Status != oracle.Slashed {
		return fmt.Errorf("%w: cannot reinstate %q from %s", oracle.ErrInvalidStatus, id, e.Status)
	}
	if available := e.Stake.Available(); available < r.registryConfig.MinStake {
		return fmt.Errorf("%w: %d unlocked, minimum is %d",
			oracle.ErrInsufficientStake, available, r.registryConfig.MinStake)
	}

	next := e.clone()
	next.Status = oracle.Pending
	next.Performance.ConsecutiveFailures = 0
	next.LastActivity = r.clock.Unix()
	if err := r.publish(next); err != nil {
		return err
	}

	r.log.Info("oracle reinstated",
		log.String("oracleID", id),
		log.Uint64("availableStake", next.Stake.Available()),
	)
	return nil
}

// Get returns a copy of the entry registered under id.
func (r *Registry) Get(id string) (*Entry, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	e, ok := r.oracles[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", oracle.ErrNotFound, id)
	}
	return e.clone(), nil
}

// List returns copies of every entry ordered by id.
func (r *Registry) List() []*Entry {
	return r.filter(func(*Entry) bool { return true })
}

// ActiveOracles returns the Active oracles that are not barred, ordered by id.
func (r *Registry) ActiveOracles() []*Entry {
	return r.filter(func(e *Entry) bool {
		return e.Status == oracle.Active && !r.barred(e.ID)
	})
}

// OraclesByReputation returns the Active oracles scoring at least minScore,
// best first.
func (r *Registry) OraclesByReputation(minScore float64) []*Entry {
	entries := r.filter(func(e *Entry) bool {
		return e.Status == oracle.Active && e.Reputation.CurrentScore >= minScore
	})
	slices.SortStableFunc(entries, func(a, b *Entry) int {
		return cmp.Compare(b.Reputation.CurrentScore, a.Reputation.CurrentScore)
	})
	return entries
}

func (r *Registry) filter(keep func(*Entry) bool) []*Entry {
	r.lock.RLock()
	defer r.lock.RUnlock()

	entries := make([]*Entry, 0, len(r.oracles))
	for _, e := range r.oracles {
		if keep(e) {
			entries = append(entries, e.clone())
		}
	}
	slices.SortFunc(entries, func(a, b *Entry) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return entries
}

// TrustView returns what the verification pipeline needs to know about id.
func (r *Registry) TrustView(id string) (TrustView, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	e, ok := r.oracles[id]
	if !ok {
		return TrustView{}, fmt.Errorf("%w: %q", oracle.ErrNotFound, id)
	}
	return TrustView{
		ID:        e.ID,
		Status:    e.Status,
		Score:     e.Reputation.CurrentScore,
		PublicKey: slices.Clone(e.PublicKey),
		Algorithm: e.Algorithm,
		Barred:    r.barred(id),
	}, nil
}

// publish persists next and replaces the stored entry. Assumes the lock is
// held.
func (r *Registry) publish(next *Entry) error {
	if err := r.state.putEntry(next); err != nil {
		r.log.Error("failed to persist oracle",
			log.String("oracleID", next.ID),
			log.Err(err),
		)
		return fmt.Errorf("failed to persist oracle %q: %w", next.ID, err)
	}
	r.oracles[next.ID] = next
	r.metrics.observe(r.oracles)
	return nil
}

// publishAll persists and replaces a set of entries in one batch. Assumes the
// lock is held.
func (r *Registry) publishAll(next []*Entry) error {
	if err := r.state.putEntries(next); err != nil {
		r.log.Error("failed to persist oracles",
			log.Int("count", len(next)),
			log.Err(err),
		)
		return fmt.Errorf("failed to persist %d oracles: %w", len(next), err)
	}
	for _, e := range next {
		r.oracles[e.ID] = e
	}
	r.metrics.observe(r.oracles)
	return nil
}
