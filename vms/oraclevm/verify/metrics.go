// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package verify

import (
	"sync/atomic"

	"github.com/luxfi/metric"

	"github.com/luxfi/oraclevm/utils/wrappers"
	"github.com/luxfi/oraclevm/vms/oraclevm/oracle"
)

type metrics struct {
	verified  metric.Counter
	accepted  metric.Counter
	rejected  map[oracle.ErrorKind]metric.Counter
	nonceSize metric.Gauge

	// totals back Stats. The maps are populated once and only read after.
	totalVerified atomic.Uint64
	totalAccepted atomic.Uint64
	totalRejected map[oracle.ErrorKind]*atomic.Uint64
}

func newMetrics(registerer metric.Registerer) (*metrics, error) {
	m := &metrics{
		verified: metric.NewCounter(metric.CounterOpts{
			Name: "verifications",
			Help: "Number of signed responses submitted for verification",
		}),
		accepted: metric.NewCounter(metric.CounterOpts{
			Name: "verifications_accepted",
			Help: "Number of signed responses accepted",
		}),
		nonceSize: metric.NewGauge(metric.GaugeOpts{
			Name: "nonce_cache_size",
			Help: "Number of nonces held by the replay cache",
		}),
		rejected:      make(map[oracle.ErrorKind]metric.Counter),
		totalRejected: make(map[oracle.ErrorKind]*atomic.Uint64),
	}

	errs := wrappers.Errs{}
	errs.Add(
		registerer.Register(metric.AsCollector(m.verified)),
		registerer.Register(metric.AsCollector(m.accepted)),
		registerer.Register(metric.AsCollector(m.nonceSize)),
	)
	for _, kind := range append(oracle.Kinds(), oracle.KindUnknown) {
		counter := metric.NewCounter(metric.CounterOpts{
			Name: "verifications_rejected_" + kind.String(),
			Help: "Number of signed responses rejected with " + kind.String(),
		})
		errs.Add(registerer.Register(metric.AsCollector(counter)))
		m.rejected[kind] = counter
		m.totalRejected[kind] = &atomic.Uint64{}
	}
	return m, errs.Err
}

func (m *metrics) observe(err error, nonceCacheSize int) {
	m.verified.Inc()
	m.totalVerified.Add(1)
	m.nonceSize.Set(float64(nonceCacheSize))
	if err == nil {
		m.accepted.Inc()
		m.totalAccepted.Add(1)
		return
	}
	kind := oracle.KindOf(err)
	m.rejected[kind].Inc()
	m.totalRejected[kind].Add(1)
}
