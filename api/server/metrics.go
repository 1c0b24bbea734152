// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package server

import (
	"net/http"

	"github.com/luxfi/metric"
)

const (
	methodLabel = "method"
	routeLabel  = "route"
)

type serverMetrics struct {
	requests metric.CounterVec
	inflight metric.Gauge
}

func newMetrics(registerer metric.Registerer) (*serverMetrics, error) {
	m := &serverMetrics{
		requests: metric.NewCounterVec(
			metric.CounterOpts{
				Name: "api_requests",
				Help: "number of API requests",
			},
			[]string{methodLabel, routeLabel},
		),
		inflight: metric.NewGauge(metric.GaugeOpts{
			Name: "api_requests_inflight",
			Help: "number of API requests being served",
		}),
	}

	if err := registerer.Register(metric.AsCollector(m.requests)); err != nil {
		return nil, err
	}
	if err := registerer.Register(metric.AsCollector(m.inflight)); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *serverMetrics) wrapHandler(route string, handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.requests.With(metric.Labels{
			methodLabel: r.Method,
			routeLabel:  route,
		}).Inc()
		m.inflight.Inc()
		defer m.inflight.Dec()

		handler.ServeHTTP(w, r)
	})
}
