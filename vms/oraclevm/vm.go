// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package oraclevm implements the Oracle VM, which admits AI oracles into a
// staked trust registry and verifies the post-quantum signatures on their
// responses.
package oraclevm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/rpc/v2"

	"github.com/luxfi/database"
	"github.com/luxfi/database/prefixdb"
	"github.com/luxfi/database/versiondb"
	"github.com/luxfi/log"
	"github.com/luxfi/metric"
	"github.com/luxfi/version"

	vmcore "github.com/luxfi/oraclevm"
	"github.com/luxfi/oraclevm/utils/json"
	"github.com/luxfi/oraclevm/utils/timer/mockable"
	"github.com/luxfi/oraclevm/vms/oraclevm/config"
	"github.com/luxfi/oraclevm/vms/oraclevm/oracle"
	"github.com/luxfi/oraclevm/vms/oraclevm/pqc"
	"github.com/luxfi/oraclevm/vms/oraclevm/registry"
	"github.com/luxfi/oraclevm/vms/oraclevm/verify"
)

const VMID = "oraclevm"

var (
	metadataPrefix     = []byte("metadata")
	lastMaintenanceKey = []byte("last maintenance")

	Version = &version.Semantic{
		Major: 1,
		Minor: 0,
		Patch: 0,
	}

	errVMShutdown     = errors.New("VM is shutting down")
	errNotInitialized = errors.New("VM not initialized")

	_ vmcore.VM = (*VM)(nil)
)

// VM implements the Oracle VM.
type VM struct {
	config.Config

	log        log.Logger
	registerer metric.Registerer
	db         *versiondb.Database
	metadataDB database.Database

	registry *registry.Registry
	verifier *verify.Verifier

	// lastMaintenance is the block time, in unix seconds, of the last daily
	// maintenance run.
	lastMaintenance uint64
	blockLock       sync.Mutex

	rpcServer *rpc.Server

	initialized  bool
	shuttingDown bool
	shutdownLock sync.RWMutex

	clock mockable.Clock
}

// Initialize parses configBytes as JSON over the defaults and loads the
// registry from db. Registry changes are committed to db when a block is
// accepted and on shutdown.
func (vm *VM) Initialize(ctx context.Context, db database.Database, configBytes []byte) error {
	cfg, err := config.ParseConfig(configBytes)
	if err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	vm.Config = cfg

	if vm.log == nil {
		vm.log = log.NewNoOpLogger()
	}
	if vm.registerer == nil {
		vm.registerer = metric.NewRegistry()
	}
	vm.db = versiondb.New(db)
	vm.metadataDB = prefixdb.New(metadataPrefix, vm.db)

	vm.registry, err = registry.New(vm.log, vm.db, vm.Config, &vm.clock, vm.registerer)
	if err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}

	vm.verifier, err = verify.New(
		vm.log,
		vm.Config.Verification,
		&vm.clock,
		vm.registry,
		pqc.NewMLDSA(vm.Config.Verification.PublicKeyCacheSize),
		vm.registerer,
	)
	if err != nil {
		return fmt.Errorf("failed to create verifier: %w", err)
	}
	if err := vm.loadLastMaintenance(); err != nil {
		return fmt.Errorf("failed to load maintenance time: %w", err)
	}

	if err := vm.initializeHTTPHandlers(); err != nil {
		return fmt.Errorf("failed to initialize HTTP handlers: %w", err)
	}

	vm.shutdownLock.Lock()
	vm.initialized = true
	vm.shutdownLock.Unlock()

	vm.log.Info("Oracle VM initialized",
		log.Stringer("version", Version),
		log.Uint64("minStake", vm.Config.Registry.MinStake),
		log.Int("maxOracles", vm.Config.Registry.MaxOracleCount),
		log.Bool("autoSlashing", vm.Config.EnableAutoSlashing),
		log.Int("oracles", len(vm.registry.List())),
	)
	return nil
}

// loadLastMaintenance restores the time of the last maintenance run. A fresh
// database starts the cadence now.
func (vm *VM) loadLastMaintenance() error {
	lastMaintenance, err := database.GetUInt64(vm.metadataDB, lastMaintenanceKey)
	switch {
	case err == nil:
		vm.lastMaintenance = lastMaintenance
		return nil
	case errors.Is(err, database.ErrNotFound):
		vm.lastMaintenance = vm.clock.Unix()
		return database.PutUInt64(vm.metadataDB, lastMaintenanceKey, vm.lastMaintenance)
	default:
		return err
	}
}

// Registry returns the trust registry. It is nil before Initialize.
func (vm *VM) Registry() *registry.Registry {
	return vm.registry
}

// Verifier returns the verification pipeline. It is nil before Initialize.
func (vm *VM) Verifier() *verify.Verifier {
	return vm.verifier
}

func (vm *VM) ready() error {
	vm.shutdownLock.RLock()
	defer vm.shutdownLock.RUnlock()

	switch {
	case vm.shuttingDown:
		return errVMShutdown
	case !vm.initialized:
		return errNotInitialized
	default:
		return nil
	}
}

// VerifySignedResponse runs resp through the verification pipeline.
func (vm *VM) VerifySignedResponse(ctx context.Context, resp *oracle.SignedResponse, requestHash []byte) error {
	if err := vm.ready(); err != nil {
		return err
	}
	return vm.verifier.Verify(ctx, resp, requestHash)
}

// ReportOutcome records how a consumer judged a response from oracleID. When
// auto-slashing is enabled the slashing policy is applied afterwards.
func (vm *VM) ReportOutcome(oracleID string, o registry.Outcome) (*registry.Entry, bool, error) {
	if err := vm.ready(); err != nil {
		return nil, false, err
	}

	e, err := vm.registry.RecordOutcome(oracleID, o)
	if err != nil {
		return nil, false, err
	}
	if !vm.Config.EnableAutoSlashing {
		return e, false, nil
	}

	slashed, err := vm.registry.AutoSlash(oracleID)
	if err != nil {
		return nil, false, err
	}
	if slashed {
		e, err = vm.registry.Get(oracleID)
		if err != nil {
			return nil, false, err
		}
	}
	return e, slashed, nil
}

// OnBlockAccepted finalizes elapsed slashes, forgets expired nonces and runs
// daily maintenance once MaintenanceInterval has passed since the last run.
// Pending registry changes are then committed.
func (vm *VM) OnBlockAccepted(ctx context.Context, blockTime time.Time) error {
	if err := vm.ready(); err != nil {
		return err
	}

	vm.blockLock.Lock()
	defer vm.blockLock.Unlock()

	now := uint64(max(blockTime.Unix(), 0))
	finalized, err := vm.registry.ProcessPendingSlashing()
	if err != nil {
		return fmt.Errorf("failed to process pending slashes: %w", err)
	}
	pruned := vm.verifier.PruneNonces()

	if now >= vm.lastMaintenance+vm.Config.MaintenanceInterval {
		report, err := vm.registry.DailyMaintenance()
		if err != nil {
			return fmt.Errorf("failed to run daily maintenance: %w", err)
		}
		if err := database.PutUInt64(vm.metadataDB, lastMaintenanceKey, now); err != nil {
			return fmt.Errorf("failed to persist maintenance time: %w", err)
		}
		vm.lastMaintenance = now
		finalized += report.Finalized
	}

	if err := vm.db.Commit(); err != nil {
		return fmt.Errorf("failed to commit oracle state: %w", err)
	}

	vm.log.Debug("accepted block",
		log.Time("blockTime", blockTime),
		log.Int("finalizedSlashes", finalized),
		log.Int("prunedNonces", pruned),
	)
	return nil
}

// Shutdown commits outstanding registry changes and stops serving.
func (vm *VM) Shutdown(context.Context) error {
	vm.shutdownLock.Lock()
	if vm.shuttingDown {
		vm.shutdownLock.Unlock()
		return nil
	}
	vm.shuttingDown = true
	initialized := vm.initialized
	vm.shutdownLock.Unlock()

	if !initialized {
		return nil
	}

	vm.log.Info("shutting down Oracle VM")

	vm.blockLock.Lock()
	defer vm.blockLock.Unlock()

	if err := vm.db.Commit(); err != nil {
		vm.log.Error("failed to commit oracle state", log.Err(err))
		return err
	}
	return vm.db.Close()
}

// Version returns the VM version.
func (*VM) Version(context.Context) (string, error) {
	return Version.String(), nil
}

// HealthCheck returns VM health status.
func (vm *VM) HealthCheck(context.Context) (interface{}, error) {
	if err := vm.ready(); err != nil {
		return map[string]interface{}{
			"healthy": false,
			"version": Version.String(),
		}, err
	}

	stats := vm.registry.Statistics()
	verification := vm.verifier.Stats()
	return map[string]interface{}{
		"healthy":        true,
		"version":        Version.String(),
		"oracles":        stats.TotalOracles,
		"activeOracles":  stats.ActiveOracles,
		"nonceCacheSize": verification.NonceCacheSize,
		"verified":       verification.Verified,
	}, nil
}

// CreateHandlers returns HTTP handlers for the VM.
func (vm *VM) CreateHandlers(context.Context) (map[string]http.Handler, error) {
	if err := vm.ready(); err != nil {
		return nil, err
	}
	return map[string]http.Handler{
		"/rpc": vm.rpcServer,
	}, nil
}

func (vm *VM) initializeHTTPHandlers() error {
	vm.rpcServer = rpc.NewServer()

	service := &Service{vm: vm}
	vm.rpcServer.RegisterCodec(json.NewCodec(), "application/json")
	vm.rpcServer.RegisterCodec(json.NewCodec(), "application/json;charset=UTF-8")
	return vm.rpcServer.RegisterService(service, "oracle")
}
