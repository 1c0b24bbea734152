// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package registry

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/luxfi/database"
	"github.com/luxfi/database/memdb"
	"github.com/luxfi/log"
	"github.com/luxfi/metric"

	"github.com/luxfi/oraclevm/utils/timer/mockable"
	"github.com/luxfi/oraclevm/utils/units"
	"github.com/luxfi/oraclevm/vms/oraclevm/config"
	"github.com/luxfi/oraclevm/vms/oraclevm/oracle"
)

var genesisTime = time.Unix(1_700_000_000, 0)

type testEnv struct {
	registry *Registry
	clock    *mockable.Clock
	db       database.Database
	cfg      config.Config
}

func newTestEnv(t *testing.T, mutators ...func(*config.Config)) *testEnv {
	t.Helper()

	cfg := config.DefaultConfig()
	for _, mutate := range mutators {
		mutate(&cfg)
	}

	clock := &mockable.Clock{}
	clock.Set(genesisTime)
	db := memdb.New()

	r, err := New(log.NewNoOpLogger(), db, cfg, clock, metric.NewRegistry())
	require.NoError(t, err)

	return &testEnv{
		registry: r,
		clock:    clock,
		db:       db,
		cfg:      cfg,
	}
}

func testRegistration(id string) Registration {
	return Registration{
		ID:                id,
		Name:              "oracle " + id,
		Description:       "fraud scoring",
		PublicKey:         []byte("public-key-" + id),
		Algorithm:         oracle.MLDSA65,
		StakeAmount:       units.KiloLux,
		Version:           "1.2.0",
		SupportedServices: []string{"risk_assessment"},
		Contact:           "ops@example.com",
	}
}

func (env *testEnv) registerActive(t *testing.T, id string) {
	t.Helper()

	_, err := env.registry.Register(testRegistration(id))
	require.NoError(t, err)
	require.NoError(t, env.registry.Activate(id))
}

func TestRegister(t *testing.T) {
	require := require.New(t)
	env := newTestEnv(t)

	e, err := env.registry.Register(testRegistration("oracle-1"))
	require.NoError(err)
	require.Equal(oracle.Pending, e.Status)
	require.InDelta(1.0, e.Reputation.CurrentScore, 1e-9)
	require.Equal(units.KiloLux, e.Stake.TotalAmount)
	require.Zero(e.Stake.LockedAmount)
	require.Equal(genesisTime.Unix(), int64(e.RegisteredAt))

	got, err := env.registry.Get("oracle-1")
	require.NoError(err)
	require.Equal(e, got)

	// returned entries are copies
	got.PublicKey[0] = 'X'
	again, err := env.registry.Get("oracle-1")
	require.NoError(err)
	require.Equal(byte('p'), again.PublicKey[0])
}

func TestRegisterErrors(t *testing.T) {
	tests := []struct {
		name    string
		cfg     func(*config.Config)
		setup   func(*testing.T, *Registry)
		reg     func() Registration
		wantErr error
	}{
		{
			name: "insufficient stake",
			reg: func() Registration {
				reg := testRegistration("o")
				reg.StakeAmount = units.KiloLux - 1
				return reg
			},
			wantErr: oracle.ErrInsufficientStake,
		},
		{
			name: "already registered",
			setup: func(t *testing.T, r *Registry) {
				_, err := r.Register(testRegistration("o"))
				require.NoError(t, err)
			},
			reg:     func() Registration { return testRegistration("o") },
			wantErr: oracle.ErrAlreadyRegistered,
		},
		{
			name: "blacklisted",
			setup: func(t *testing.T, r *Registry) {
				require.NoError(t, r.Blacklist("o", "sybil cluster"))
			},
			reg:     func() Registration { return testRegistration("o") },
			wantErr: oracle.ErrBlacklisted,
		},
		{
			name: "blacklist wins over stake check",
			setup: func(t *testing.T, r *Registry) {
				require.NoError(t, r.Blacklist("o", "sybil cluster"))
			},
			reg: func() Registration {
				reg := testRegistration("o")
				reg.StakeAmount = 1
				return reg
			},
			wantErr: oracle.ErrBlacklisted,
		},
		{
			name: "capacity exceeded",
			cfg:  func(c *config.Config) { c.Registry.MaxOracleCount = 1 },
			setup: func(t *testing.T, r *Registry) {
				_, err := r.Register(testRegistration("first"))
				require.NoError(t, err)
			},
			reg:     func() Registration { return testRegistration("o") },
			wantErr: oracle.ErrCapacityExceeded,
		},
		{
			name:    "whitelist required",
			cfg:     func(c *config.Config) { c.Registry.RequireWhitelist = true },
			reg:     func() Registration { return testRegistration("o") },
			wantErr: oracle.ErrNotWhitelisted,
		},
		{
			name: "malformed version",
			reg: func() Registration {
				reg := testRegistration("o")
				reg.Version = "latest"
				return reg
			},
			wantErr: oracle.ErrUnsupportedVersion,
		},
		{
			name:    "version below constraint",
			cfg:     func(c *config.Config) { c.Registry.MinOracleVersion = ">= 2.0.0" },
			reg:     func() Registration { return testRegistration("o") },
			wantErr: oracle.ErrUnsupportedVersion,
		},
		{
			name: "unsupported algorithm",
			reg: func() Registration {
				reg := testRegistration("o")
				reg.Algorithm = "ECDSA"
				return reg
			},
			wantErr: oracle.ErrUnsupportedAlgo,
		},
		{
			name: "empty id",
			reg: func() Registration {
				return testRegistration("")
			},
			wantErr: oracle.ErrInvalidRegistration,
		},
		{
			name: "empty public key",
			reg: func() Registration {
				reg := testRegistration("o")
				reg.PublicKey = nil
				return reg
			},
			wantErr: oracle.ErrInvalidRegistration,
		},
		{
			name: "duplicate service",
			reg: func() Registration {
				reg := testRegistration("o")
				reg.SupportedServices = []string{"risk_assessment", "risk_assessment"}
				return reg
			},
			wantErr: oracle.ErrInvalidRegistration,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var mutators []func(*config.Config)
			if tt.cfg != nil {
				mutators = append(mutators, tt.cfg)
			}
			env := newTestEnv(t, mutators...)
			if tt.setup != nil {
				tt.setup(t, env.registry)
			}
			_, err := env.registry.Register(tt.reg())
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestWhitelistBypassesBlacklist(t *testing.T) {
	require := require.New(t)
	env := newTestEnv(t, func(c *config.Config) { c.Registry.RequireWhitelist = true })

	require.NoError(env.registry.Blacklist("o", "shared infrastructure"))
	require.NoError(env.registry.Whitelist("o", "audited operator"))

	_, err := env.registry.Register(testRegistration("o"))
	require.NoError(err)
	require.NoError(env.registry.Activate("o"))

	view, err := env.registry.TrustView("o")
	require.NoError(err)
	require.False(view.Barred)
}

func TestBlacklistSuspendsRegisteredOracle(t *testing.T) {
	require := require.New(t)
	env := newTestEnv(t)
	env.registerActive(t, "o")

	require.NoError(env.registry.Blacklist("o", "colluding"))

	e, err := env.registry.Get("o")
	require.NoError(err)
	require.Equal(oracle.Suspended, e.Status)

	err = env.registry.Activate("o")
	require.ErrorIs(err, oracle.ErrBlacklisted)

	view, err := env.registry.TrustView("o")
	require.NoError(err)
	require.True(view.Barred)

	reason, ok := env.registry.IsBlacklisted("o")
	require.True(ok)
	require.Equal("colluding", reason)

	require.NoError(env.registry.RemoveFromBlacklist("o"))
	require.NoError(env.registry.Activate("o"))
}

func TestBlacklistSparesWhitelistedOracle(t *testing.T) {
	require := require.New(t)
	env := newTestEnv(t)
	env.registerActive(t, "o")

	require.NoError(env.registry.Whitelist("o", "foundation node"))
	require.NoError(env.registry.Blacklist("o", "false report"))

	e, err := env.registry.Get("o")
	require.NoError(err)
	require.Equal(oracle.Active, e.Status)
}

func TestWhitelistDoesNotUndoSlash(t *testing.T) {
	require := require.New(t)
	env := newTestEnv(t)
	env.registerActive(t, "o")

	require.NoError(env.registry.Slash("o", "forged report", true))
	require.NoError(env.registry.Whitelist("o", "appeal filed"))

	e, err := env.registry.Get("o")
	require.NoError(err)
	require.Equal(oracle.Slashed, e.Status)
	require.Equal(units.KiloLux/10, e.Stake.LockedAmount)
}

func TestActivate(t *testing.T) {
	require := require.New(t)
	env := newTestEnv(t)

	err := env.registry.Activate("missing")
	require.ErrorIs(err, oracle.ErrNotFound)

	_, err = env.registry.Register(testRegistration("o"))
	require.NoError(err)
	require.NoError(env.registry.Activate("o"))

	err = env.registry.Activate("o")
	require.ErrorIs(err, oracle.ErrInvalidStatus)

	require.NoError(env.registry.Deactivate("o"))
	e, err := env.registry.Get("o")
	require.NoError(err)
	require.Equal(oracle.Suspended, e.Status)

	// deactivating twice is a no-op
	require.NoError(env.registry.Deactivate("o"))

	require.NoError(env.registry.Activate("o"))
	require.NoError(env.registry.Slash("o", "forged", true))
	err = env.registry.Activate("o")
	require.ErrorIs(err, oracle.ErrInvalidStatus)
	err = env.registry.Deactivate("o")
	require.ErrorIs(err, oracle.ErrInvalidStatus)
}

func TestUpdateReputationUnknown(t *testing.T) {
	env := newTestEnv(t)
	err := env.registry.UpdateReputation("missing", 10, true, true)
	require.ErrorIs(t, err, oracle.ErrNotFound)
}

func TestGoodReportsKeepHighScore(t *testing.T) {
	require := require.New(t)
	env := newTestEnv(t)
	env.registerActive(t, "o")

	for range 10 {
		require.NoError(env.registry.UpdateReputation("o", 100, true, true))
	}

	e, err := env.registry.Get("o")
	require.NoError(err)
	require.Greater(e.Reputation.CurrentScore, 0.9)
	require.Equal(uint64(10), e.Reputation.TotalResponses)
	require.Equal(uint64(10), e.Reputation.AccurateResponses)
	require.Zero(e.Reputation.InaccurateResponses)
	require.InDelta(100.0, e.Reputation.AvgResponseTimeMs, 1e-9)
	require.Zero(e.Performance.ConsecutiveFailures)
	require.Equal(uint64(10), e.Performance.Responses24h)
}

func TestInvalidSignatureDegradesMoreThanInaccuracy(t *testing.T) {
	require := require.New(t)
	env := newTestEnv(t)
	env.registerActive(t, "inaccurate")
	env.registerActive(t, "forger")

	require.NoError(env.registry.UpdateReputation("inaccurate", 100, false, true))
	require.NoError(env.registry.UpdateReputation("forger", 100, false, false))

	inaccurate, err := env.registry.Get("inaccurate")
	require.NoError(err)
	forger, err := env.registry.Get("forger")
	require.NoError(err)

	require.Less(inaccurate.Reputation.CurrentScore, 1.0)
	require.Less(forger.Reputation.CurrentScore, inaccurate.Reputation.CurrentScore)
	require.Equal(uint64(1), forger.Reputation.InvalidSignatureResponses)
	require.Equal(uint64(1), forger.Reputation.InaccurateResponses)
	require.Zero(inaccurate.Reputation.InvalidSignatureResponses)
}

func TestSlowResponsesLowerScore(t *testing.T) {
	require := require.New(t)
	env := newTestEnv(t)
	env.registerActive(t, "fast")
	env.registerActive(t, "slow")

	require.NoError(env.registry.UpdateReputation("fast", 1000, true, true))
	require.NoError(env.registry.UpdateReputation("slow", 20000, true, true))

	fast, err := env.registry.Get("fast")
	require.NoError(err)
	slow, err := env.registry.Get("slow")
	require.NoError(err)
	require.InDelta(1.0, fast.Reputation.CurrentScore, 1e-9)
	require.Less(slow.Reputation.CurrentScore, fast.Reputation.CurrentScore)
	require.Zero(slow.Performance.ConsecutiveFailures)
}

func TestScoreStaysInUnitInterval(t *testing.T) {
	require := require.New(t)
	env := newTestEnv(t, func(c *config.Config) {
		c.Reputation.InvalidSignaturePenalty = 1
		c.Reputation.Alpha = 1
	})
	env.registerActive(t, "o")

	outcomes := []Outcome{
		{ResponseTimeMs: 1, Accurate: true, SignatureValid: true},
		{ResponseTimeMs: 1, Accurate: false, SignatureValid: false},
		{ResponseTimeMs: 1, Accurate: false, SignatureValid: false},
		{ResponseTimeMs: 1 << 40, Accurate: true, SignatureValid: true},
		{ResponseTimeMs: 0, Accurate: true, SignatureValid: true},
	}
	for _, o := range outcomes {
		e, err := env.registry.RecordOutcome("o", o)
		require.NoError(err)
		require.GreaterOrEqual(e.Reputation.CurrentScore, 0.0)
		require.LessOrEqual(e.Reputation.CurrentScore, 1.0)
	}
}

func TestConsecutiveFailures(t *testing.T) {
	require := require.New(t)
	env := newTestEnv(t)
	env.registerActive(t, "o")

	for range 3 {
		require.NoError(env.registry.UpdateReputation("o", 10, false, true))
	}
	e, err := env.registry.Get("o")
	require.NoError(err)
	require.Equal(uint32(3), e.Performance.ConsecutiveFailures)

	require.NoError(env.registry.UpdateReputation("o", 10, true, true))
	e, err = env.registry.Get("o")
	require.NoError(err)
	require.Zero(e.Performance.ConsecutiveFailures)
}

func TestImmediateSlash(t *testing.T) {
	require := require.New(t)
	env := newTestEnv(t)
	env.registerActive(t, "o")

	require.NoError(env.registry.Slash("o", "forged report", true))

	e, err := env.registry.Get("o")
	require.NoError(err)
	require.Equal(oracle.Slashed, e.Status)
	require.Equal(units.KiloLux/10, e.Stake.LockedAmount)
	require.Zero(e.Stake.PendingSlash)
	require.Nil(e.Stake.SlashGraceEnd)
	require.Equal("forged report", e.Stake.SlashReason)

	err = env.registry.Slash("missing", "x", true)
	require.ErrorIs(err, oracle.ErrNotFound)
}

func TestGracePeriodSlash(t *testing.T) {
	require := require.New(t)
	env := newTestEnv(t)
	env.registerActive(t, "o")

	require.NoError(env.registry.Slash("o", "stale data", false))

	e, err := env.registry.Get("o")
	require.NoError(err)
	require.Equal(oracle.Suspended, e.Status)
	require.Equal(units.KiloLux/10, e.Stake.PendingSlash)
	require.Zero(e.Stake.LockedAmount)
	require.NotNil(e.Stake.SlashGraceEnd)
	require.Equal(uint64(genesisTime.Unix())+env.cfg.Slashing.GracePeriod, *e.Stake.SlashGraceEnd)

	err = env.registry.Slash("o", "again", false)
	require.ErrorIs(err, oracle.ErrInvalidStatus)

	// the sweep is a no-op before the grace period ends
	env.clock.Advance(time.Duration(env.cfg.Slashing.GracePeriod-1) * time.Second)
	finalized, err := env.registry.ProcessPendingSlashing()
	require.NoError(err)
	require.Zero(finalized)
	e, err = env.registry.Get("o")
	require.NoError(err)
	require.Zero(e.Stake.LockedAmount)

	env.clock.Advance(time.Second)
	finalized, err = env.registry.ProcessPendingSlashing()
	require.NoError(err)
	require.Equal(1, finalized)

	e, err = env.registry.Get("o")
	require.NoError(err)
	require.Equal(oracle.Slashed, e.Status)
	require.Equal(units.KiloLux/10, e.Stake.LockedAmount)
	require.Zero(e.Stake.PendingSlash)
	require.Nil(e.Stake.SlashGraceEnd)

	// finalizing twice never double-locks
	finalized, err = env.registry.ProcessPendingSlashing()
	require.NoError(err)
	require.Zero(finalized)
	e, err = env.registry.Get("o")
	require.NoError(err)
	require.Equal(units.KiloLux/10, e.Stake.LockedAmount)
}

func TestConcurrentSweepsFinalizeOnce(t *testing.T) {
	require := require.New(t)
	env := newTestEnv(t)
	for i := range 5 {
		id := fmt.Sprintf("o-%d", i)
		env.registerActive(t, id)
		require.NoError(env.registry.Slash(id, "stale data", false))
	}
	env.clock.Advance(time.Duration(env.cfg.Slashing.GracePeriod) * time.Second)

	var (
		eg     errgroup.Group
		counts = make([]int, 8)
	)
	for i := range counts {
		eg.Go(func() error {
			n, err := env.registry.ProcessPendingSlashing()
			counts[i] = n
			return err
		})
	}
	require.NoError(eg.Wait())

	total := 0
	for _, n := range counts {
		total += n
	}
	require.Equal(5, total)

	for _, e := range env.registry.List() {
		require.Equal(units.KiloLux/10, e.Stake.LockedAmount)
	}
}

func TestActivationCancelsPendingSlash(t *testing.T) {
	require := require.New(t)
	env := newTestEnv(t)
	env.registerActive(t, "o")

	require.NoError(env.registry.Slash("o", "disputed", false))
	require.NoError(env.registry.Activate("o"))

	e, err := env.registry.Get("o")
	require.NoError(err)
	require.Equal(oracle.Active, e.Status)
	require.Zero(e.Stake.PendingSlash)
	require.Nil(e.Stake.SlashGraceEnd)

	env.clock.Advance(48 * time.Hour)
	finalized, err := env.registry.ProcessPendingSlashing()
	require.NoError(err)
	require.Zero(finalized)
}

func TestImmediateSlashSupersedesPending(t *testing.T) {
	require := require.New(t)
	env := newTestEnv(t)
	env.registerActive(t, "o")

	require.NoError(env.registry.Slash("o", "late", false))
	require.NoError(env.registry.Slash("o", "forged", true))

	e, err := env.registry.Get("o")
	require.NoError(err)
	require.Equal(oracle.Slashed, e.Status)
	require.Equal(units.KiloLux/10, e.Stake.LockedAmount)
	require.Zero(e.Stake.PendingSlash)
}

func TestReinstate(t *testing.T) {
	require := require.New(t)
	env := newTestEnv(t, func(c *config.Config) { c.Registry.MinStake = units.KiloLux / 2 })

	_, err := env.registry.Register(testRegistration("o"))
	require.NoError(err)

	err = env.registry.Reinstate("o")
	require.ErrorIs(err, oracle.ErrInvalidStatus)

	require.NoError(env.registry.Activate("o"))
	require.NoError(env.registry.Slash("o", "forged", true))
	require.NoError(env.registry.Reinstate("o"))

	e, err := env.registry.Get("o")
	require.NoError(err)
	require.Equal(oracle.Pending, e.Status)
	require.Equal(units.KiloLux/10, e.Stake.LockedAmount)

	// six slashes leave less than half the stake unlocked
	require.NoError(env.registry.Activate("o"))
	for range 5 {
		require.NoError(env.registry.Slash("o", "forged", true))
	}
	err = env.registry.Reinstate("o")
	require.ErrorIs(err, oracle.ErrInsufficientStake)
}

func TestDailyMaintenance(t *testing.T) {
	require := require.New(t)
	env := newTestEnv(t, func(c *config.Config) { c.Reputation.DailyHistory = 2 })
	env.registerActive(t, "active")
	_, err := env.registry.Register(testRegistration("pending"))
	require.NoError(err)
	env.registerActive(t, "slashing")
	require.NoError(env.registry.UpdateReputation("active", 10, true, true))
	require.NoError(env.registry.Slash("slashing", "late", false))

	env.clock.Advance(24 * time.Hour)
	report, err := env.registry.DailyMaintenance()
	require.NoError(err)
	require.Equal(1, report.Decayed)
	require.Equal(1, report.Finalized)

	active, err := env.registry.Get("active")
	require.NoError(err)
	require.InDelta(0.99, active.Reputation.CurrentScore, 1e-9)
	require.Zero(active.Performance.Responses24h)
	require.Equal([]float64{active.Reputation.CurrentScore}, active.Reputation.DailyScores)

	pending, err := env.registry.Get("pending")
	require.NoError(err)
	require.InDelta(1.0, pending.Reputation.CurrentScore, 1e-9)

	slashed, err := env.registry.Get("slashing")
	require.NoError(err)
	require.Equal(oracle.Slashed, slashed.Status)

	for range 3 {
		_, err := env.registry.DailyMaintenance()
		require.NoError(err)
	}
	active, err = env.registry.Get("active")
	require.NoError(err)
	require.Len(active.Reputation.DailyScores, 2)
	require.InDelta(0.99*0.99*0.99*0.99, active.Reputation.CurrentScore, 1e-9)
}

func TestQueries(t *testing.T) {
	require := require.New(t)
	env := newTestEnv(t)
	env.registerActive(t, "b")
	env.registerActive(t, "a")
	env.registerActive(t, "c")
	_, err := env.registry.Register(testRegistration("d"))
	require.NoError(err)

	require.NoError(env.registry.UpdateReputation("a", 10, false, true))
	require.NoError(env.registry.UpdateReputation("c", 10, false, false))

	ids := func(entries []*Entry) []string {
		out := make([]string, len(entries))
		for i, e := range entries {
			out[i] = e.ID
		}
		return out
	}
	require.Equal([]string{"a", "b", "c", "d"}, ids(env.registry.List()))
	require.Equal([]string{"a", "b", "c"}, ids(env.registry.ActiveOracles()))
	require.Equal([]string{"b", "a", "c"}, ids(env.registry.OraclesByReputation(0)))
	require.Equal([]string{"b", "a"}, ids(env.registry.OraclesByReputation(0.8)))

	_, err = env.registry.TrustView("missing")
	require.ErrorIs(err, oracle.ErrNotFound)
}

func TestStatistics(t *testing.T) {
	require := require.New(t)
	env := newTestEnv(t)
	env.registerActive(t, "a")
	env.registerActive(t, "b")
	_, err := env.registry.Register(testRegistration("c"))
	require.NoError(err)
	require.NoError(env.registry.Blacklist("x", "spam"))
	require.NoError(env.registry.UpdateReputation("a", 10, true, true))
	require.NoError(env.registry.UpdateReputation("a", 10, false, true))
	require.NoError(env.registry.Slash("b", "forged", true))

	stats := env.registry.Statistics()
	require.Equal(3, stats.TotalOracles)
	require.Equal(1, stats.ActiveOracles)
	require.Equal(1, stats.PendingOracles)
	require.Equal(1, stats.SlashedOracles)
	require.Equal(1, stats.Blacklisted)
	require.Equal(3*units.KiloLux, stats.TotalStake)
	require.Equal(units.KiloLux/10, stats.TotalLocked)
	require.Equal(uint64(2), stats.TotalResponses)
	require.InDelta(0.5, stats.OverallAccuracy, 1e-9)
	require.InDelta(0.9, stats.AverageReputation, 1e-9)
}

func TestPersistence(t *testing.T) {
	require := require.New(t)
	env := newTestEnv(t)
	env.registerActive(t, "o")
	require.NoError(env.registry.UpdateReputation("o", 250, true, true))
	require.NoError(env.registry.Slash("o", "late", false))
	require.NoError(env.registry.Blacklist("bad", "spam"))
	require.NoError(env.registry.Whitelist("good", "partner"))

	before, err := env.registry.Get("o")
	require.NoError(err)

	restored, err := New(log.NewNoOpLogger(), env.db, env.cfg, env.clock, metric.NewRegistry())
	require.NoError(err)

	after, err := restored.Get("o")
	require.NoError(err)
	require.Equal(before, after)

	_, ok := restored.IsBlacklisted("bad")
	require.True(ok)
	note, ok := restored.IsWhitelisted("good")
	require.True(ok)
	require.Equal("partner", note)

	// the pending slash survives the restart
	env.clock.Advance(time.Duration(env.cfg.Slashing.GracePeriod) * time.Second)
	finalized, err := restored.ProcessPendingSlashing()
	require.NoError(err)
	require.Equal(1, finalized)
}

func TestConcurrentUpdates(t *testing.T) {
	require := require.New(t)
	env := newTestEnv(t)
	env.registerActive(t, "o")

	const updates = 64
	var eg errgroup.Group
	for i := range updates {
		eg.Go(func() error {
			return env.registry.UpdateReputation("o", uint64(i), i%2 == 0, true)
		})
	}
	require.NoError(eg.Wait())

	e, err := env.registry.Get("o")
	require.NoError(err)
	require.Equal(uint64(updates), e.Reputation.TotalResponses)
	require.Equal(uint64(updates/2), e.Reputation.AccurateResponses)
	require.Equal(uint64(updates/2), e.Reputation.InaccurateResponses)
}
