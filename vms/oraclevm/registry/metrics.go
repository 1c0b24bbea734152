// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package registry

import (
	"github.com/luxfi/metric"

	"github.com/luxfi/oraclevm/utils/wrappers"
	"github.com/luxfi/oraclevm/vms/oraclevm/oracle"
)

type metrics struct {
	numOracles        metric.Gauge
	numActive         metric.Gauge
	numSlashed        metric.Gauge
	registrations     metric.Counter
	reputationUpdates metric.Counter
	immediateSlashes  metric.Counter
	scheduledSlashes  metric.Counter
	finalizedSlashes  metric.Counter
}

func newMetrics(registerer metric.Registerer) (*metrics, error) {
	m := &metrics{
		numOracles: metric.NewGauge(metric.GaugeOpts{
			Name: "oracles",
			Help: "Number of registered oracles",
		}),
		numActive: metric.NewGauge(metric.GaugeOpts{
			Name: "oracles_active",
			Help: "Number of active oracles",
		}),
		numSlashed: metric.NewGauge(metric.GaugeOpts{
			Name: "oracles_slashed",
			Help: "Number of slashed oracles",
		}),
		registrations: metric.NewCounter(metric.CounterOpts{
			Name: "oracle_registrations",
			Help: "Number of accepted oracle registrations",
		}),
		reputationUpdates: metric.NewCounter(metric.CounterOpts{
			Name: "reputation_updates",
			Help: "Number of reputation updates applied",
		}),
		immediateSlashes: metric.NewCounter(metric.CounterOpts{
			Name: "slashes_immediate",
			Help: "Number of slashes applied immediately",
		}),
		scheduledSlashes: metric.NewCounter(metric.CounterOpts{
			Name: "slashes_scheduled",
			Help: "Number of slashes scheduled behind a grace period",
		}),
		finalizedSlashes: metric.NewCounter(metric.CounterOpts{
			Name: "slashes_finalized",
			Help: "Number of scheduled slashes finalized after their grace period",
		}),
	}

	errs := wrappers.Errs{}
	errs.Add(
		registerer.Register(metric.AsCollector(m.numOracles)),
		registerer.Register(metric.AsCollector(m.numActive)),
		registerer.Register(metric.AsCollector(m.numSlashed)),
		registerer.Register(metric.AsCollector(m.registrations)),
		registerer.Register(metric.AsCollector(m.reputationUpdates)),
		registerer.Register(metric.AsCollector(m.immediateSlashes)),
		registerer.Register(metric.AsCollector(m.scheduledSlashes)),
		registerer.Register(metric.AsCollector(m.finalizedSlashes)),
	)
	return m, errs.Err
}

// observe refreshes the status gauges. Assumes the registry lock is held.
func (m *metrics) observe(entries map[string]*Entry) {
	var active, slashed int
	for _, e := range entries {
		switch e.Status {
		case oracle.Active:
			active++
		case oracle.Slashed:
			slashed++
		}
	}
	m.numOracles.Set(float64(len(entries)))
	m.numActive.Set(float64(active))
	m.numSlashed.Set(float64(slashed))
}
