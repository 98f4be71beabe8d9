// Package metrics exposes Prometheus collectors for the assistant: bridge
// call latency and outcome, message handling outcomes, and session occupancy.
//
// All methods are safe to call on a nil *Metrics so components can run
// without instrumentation.
package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "mqassist"

// Message outcomes.
const (
	OutcomeForwarded     = "forwarded"
	OutcomeClarification = "clarification"
)

// Metrics holds the assistant's collectors.
type Metrics struct {
	bridgeDuration *prometheus.HistogramVec
	bridgeCalls    *prometheus.CounterVec
	messages       *prometheus.CounterVec
	rewrites       *prometheus.CounterVec
	sessions       *prometheus.GaugeVec
	swept          prometheus.Counter
}

// MustNew constructs Metrics and registers them with reg, or with the
// default registerer when reg is nil. Collectors already registered under
// the same name are reused, so repeated construction against one registry
// is safe. Any other registration error panics.
func MustNew(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		bridgeDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "bridge",
				Name:      "request_duration_seconds",
				Help:      "Latency of bridge requests by outcome.",
				Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600, 1200},
			},
			[]string{"outcome"},
		),
		bridgeCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "bridge",
				Name:      "requests_total",
				Help:      "Bridge requests by outcome.",
			},
			[]string{"outcome"},
		),
		messages: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "agent",
				Name:      "messages_total",
				Help:      "Handled user messages by outcome.",
			},
			[]string{"outcome"},
		),
		rewrites: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "agent",
				Name:      "rewrites_total",
				Help:      "Context resolutions applied to questions, by kind.",
			},
			[]string{"kind"},
		),
		sessions: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "session",
				Name:      "sessions",
				Help:      "Registered sessions by state.",
			},
			[]string{"state"},
		),
		swept: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "session",
				Name:      "swept_total",
				Help:      "Expired sessions removed by sweeps.",
			},
		),
	}

	m.bridgeDuration = register(reg, m.bridgeDuration)
	m.bridgeCalls = register(reg, m.bridgeCalls)
	m.messages = register(reg, m.messages)
	m.rewrites = register(reg, m.rewrites)
	m.sessions = register(reg, m.sessions)
	m.swept = register(reg, m.swept)
	return m
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(C); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}

// ObserveBridgeCall records one bridge request.
func (m *Metrics) ObserveBridgeCall(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.bridgeCalls.WithLabelValues(outcome).Inc()
	m.bridgeDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

// IncMessage counts a handled message.
func (m *Metrics) IncMessage(outcome string) {
	if m == nil {
		return
	}
	m.messages.WithLabelValues(outcome).Inc()
}

// IncRewrite counts a context rewrite of the given kind.
func (m *Metrics) IncRewrite(kind string) {
	if m == nil {
		return
	}
	m.rewrites.WithLabelValues(kind).Inc()
}

// SetSessions publishes registry occupancy.
func (m *Metrics) SetSessions(total, active int) {
	if m == nil {
		return
	}
	m.sessions.WithLabelValues("total").Set(float64(total))
	m.sessions.WithLabelValues("active").Set(float64(active))
}

// AddSessionsSwept counts sessions removed by a sweep.
func (m *Metrics) AddSessionsSwept(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.swept.Add(float64(n))
}
