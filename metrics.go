// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ipc

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics is an Observer that exports Prometheus collectors.
type Metrics struct {
	deliveries *prometheus.CounterVec
	requests   *prometheus.CounterVec
	latency    prometheus.Histogram
	acks       *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		deliveries: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "ipc_deliveries_total", Help: "inbound datagrams by outcome"},
			[]string{"outcome"},
		),
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "ipc_requests_total", Help: "synchronous requests by outcome"},
			[]string{"outcome"},
		),
		latency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "ipc_request_duration_seconds",
				Help:    "time from send to reply or timeout.",
				Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
			},
		),
		acks: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "ipc_acks_total", Help: "acknowledgements sent by status"},
			[]string{"status"},
		),
	}
	if reg == nil {
		return m, nil
	}
	for _, c := range []prometheus.Collector{m.deliveries, m.requests, m.latency, m.acks} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) ObserveDelivery(d Delivery) {
	m.deliveries.WithLabelValues(d.Outcome.String()).Inc()
}

func (m *Metrics) ObserveRequest(outcome RequestOutcome, elapsed time.Duration) {
	m.requests.WithLabelValues(outcome.String()).Inc()
	m.latency.Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveAck(err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.acks.WithLabelValues(status).Inc()
}
