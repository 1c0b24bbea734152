// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package oraclevm

import (
	"github.com/luxfi/log"
	"github.com/luxfi/metric"

	vmcore "github.com/luxfi/oraclevm"
)

var _ vmcore.Factory = (*Factory)(nil)

// Factory creates Oracle VM instances.
type Factory struct {
	// Registerer receives the VM's metrics. A private registry is used when
	// nil.
	Registerer metric.Registerer
}

// New creates a new Oracle VM instance. Configuration is supplied to
// Initialize.
func (f *Factory) New(logger log.Logger) (interface{}, error) {
	return &VM{
		log:        logger,
		registerer: f.Registerer,
	}, nil
}

// NewFactory creates a factory whose VMs report metrics to registerer.
func NewFactory(registerer metric.Registerer) *Factory {
	return &Factory{Registerer: registerer}
}
