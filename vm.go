// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package vm defines the contract between a node and the oracle VM it hosts.
package vm

import (
	"context"
	"net/http"

	"github.com/luxfi/database"
)

// VM defines the interface for a virtual machine
type VM interface {
	HandlerProvider

	// Initialize loads state from db and applies configBytes over the
	// defaults.
	Initialize(ctx context.Context, db database.Database, configBytes []byte) error

	// Shutdown cleanly stops the VM
	Shutdown(context.Context) error

	// Version returns the VM version
	Version(context.Context) (string, error)

	// HealthCheck reports whether the VM is serving
	HealthCheck(context.Context) (interface{}, error)
}

// HandlerProvider is the interface that VMs must implement to provide HTTP handlers
type HandlerProvider interface {
	CreateHandlers(context.Context) (map[string]http.Handler, error)
}
