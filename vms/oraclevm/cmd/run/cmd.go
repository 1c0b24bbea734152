// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package run

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/luxfi/database"
	"github.com/luxfi/database/badgerdb"
	"github.com/luxfi/database/corruptabledb"
	"github.com/luxfi/database/memdb"
	"github.com/luxfi/log"
	"github.com/luxfi/metric"

	"github.com/luxfi/oraclevm/api/server"
	"github.com/luxfi/oraclevm/vms/oraclevm"
)

func Command() *cobra.Command {
	c := &cobra.Command{
		Use:     oraclevm.VMID,
		Short:   "Runs the Oracle VM",
		Version: oraclevm.Version.String(),
		RunE:    runFunc,
	}
	flags := c.Flags()
	AddFlags(flags)
	return c
}

func runFunc(c *cobra.Command, args []string) error {
	config, err := ParseFlags(c.Flags(), args)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(c.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := log.NewLogger(oraclevm.VMID)
	registry := metric.NewRegistry()

	db, err := openDB(config.DBDir, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("failed to close database", log.Err(err))
		}
	}()

	vmIntf, err := oraclevm.NewFactory(registry).New(logger)
	if err != nil {
		return err
	}
	vm := vmIntf.(*oraclevm.VM)
	if err := vm.Initialize(ctx, db, config.VMConfig); err != nil {
		return err
	}
	defer func() {
		if err := vm.Shutdown(context.Background()); err != nil {
			logger.Error("failed to shut down VM", log.Err(err))
		}
	}()

	listener, err := net.Listen("tcp", config.HTTPAddress)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", config.HTTPAddress, err)
	}

	srv, err := server.New(
		logger,
		listener,
		config.AllowedOrigins,
		config.ShutdownTimeout,
		registry,
		server.HTTPConfig{
			ReadHeaderTimeout: 30 * time.Second,
		},
	)
	if err != nil {
		_ = listener.Close()
		return err
	}

	handlers, err := vm.CreateHandlers(ctx)
	if err != nil {
		_ = listener.Close()
		return err
	}
	for endpoint, handler := range handlers {
		if err := srv.AddRoute(handler, oraclevm.VMID, endpoint); err != nil {
			_ = listener.Close()
			return err
		}
	}

	logger.Info("serving Oracle VM",
		log.String("address", listener.Addr().String()),
		log.String("dbDir", config.DBDir),
		log.Duration("acceptInterval", config.AcceptInterval),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := srv.Dispatch()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-gctx.Done()
		return srv.Shutdown()
	})
	g.Go(func() error {
		return acceptBlocks(gctx, vm, config.AcceptInterval)
	})
	return g.Wait()
}

// acceptBlocks drives the VM's per-block work until ctx is canceled.
func acceptBlocks(ctx context.Context, vm *oraclevm.VM, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case blockTime := <-ticker.C:
			if err := vm.OnBlockAccepted(ctx, blockTime); err != nil {
				return err
			}
		}
	}
}

func openDB(dir string, logger log.Logger) (database.Database, error) {
	if dir == "" {
		return memdb.New(), nil
	}

	db, err := badgerdb.New(dir, nil, "", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database at %s: %w", dir, err)
	}
	return corruptabledb.New(db, logger), nil
}
