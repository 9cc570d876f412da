// Package metrics records Prometheus metrics for host command invocations.
package metrics

import (
	"context"
	"encoding/json"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tomyedwab/sqlitestore/bridge"
)

const (
	CommandLabel = "command"
	OutcomeLabel = "outcome"
	Succeeded    = "succeeded"
	Failed       = "failed"
)

type Metrics struct {
	invocations *prometheus.CounterVec
	duration    *prometheus.HistogramVec
}

// New creates the invocation metrics and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		invocations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sqlitestore_bridge_invocations_total",
				Help: "Number of host commands handled, partitioned by command and outcome.",
			},
			[]string{CommandLabel, OutcomeLabel},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sqlitestore_bridge_invocation_duration_seconds",
				Help:    "Time spent handling host commands.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{CommandLabel},
		),
	}
	reg.MustRegister(m.invocations, m.duration)
	return m
}

// Instrument wraps h so every command it handles is counted and timed.
func (m *Metrics) Instrument(h bridge.Handler) bridge.Handler {
	return bridge.HandlerFunc(func(ctx context.Context, cmd string, args json.RawMessage) (any, error) {
		start := time.Now()
		result, err := h.HandleInvoke(ctx, cmd, args)
		m.duration.WithLabelValues(cmd).Observe(time.Since(start).Seconds())

		outcome := Succeeded
		if err != nil {
			outcome = Failed
		}
		m.invocations.WithLabelValues(cmd, outcome).Inc()
		return result, err
	})
}
