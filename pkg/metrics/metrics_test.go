package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gather(t *testing.T, reg *prometheus.Registry) map[string]*dto.MetricFamily {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	out := make(map[string]*dto.MetricFamily, len(families))
	for _, f := range families {
		out[f.GetName()] = f
	}
	return out
}

func labelValue(m *dto.Metric, name string) string {
	for _, lp := range m.GetLabel() {
		if lp.GetName() == name {
			return lp.GetValue()
		}
	}
	return ""
}

func TestMetricsRecorded(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := MustNew(reg)

	m.ObserveBridgeCall("ok", 2*time.Second)
	m.ObserveBridgeCall("timeout", 1200*time.Second)
	m.IncMessage(OutcomeForwarded)
	m.IncMessage(OutcomeClarification)
	m.IncMessage(OutcomeClarification)
	m.IncRewrite("annotate")
	m.SetSessions(3, 2)
	m.AddSessionsSwept(1)
	m.AddSessionsSwept(0)

	families := gather(t, reg)

	calls := families["mqassist_bridge_requests_total"]
	require.NotNil(t, calls)
	assert.Len(t, calls.GetMetric(), 2)

	messages := families["mqassist_agent_messages_total"]
	require.NotNil(t, messages)
	for _, metric := range messages.GetMetric() {
		switch labelValue(metric, "outcome") {
		case OutcomeClarification:
			assert.Equal(t, 2.0, metric.GetCounter().GetValue())
		case OutcomeForwarded:
			assert.Equal(t, 1.0, metric.GetCounter().GetValue())
		}
	}

	sessions := families["mqassist_session_sessions"]
	require.NotNil(t, sessions)
	for _, metric := range sessions.GetMetric() {
		switch labelValue(metric, "state") {
		case "total":
			assert.Equal(t, 3.0, metric.GetGauge().GetValue())
		case "active":
			assert.Equal(t, 2.0, metric.GetGauge().GetValue())
		}
	}

	swept := families["mqassist_session_swept_total"]
	require.NotNil(t, swept)
	assert.Equal(t, 1.0, swept.GetMetric()[0].GetCounter().GetValue())
}

func TestMustNewReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first := MustNew(reg)
	second := MustNew(reg)

	first.IncMessage(OutcomeForwarded)
	second.IncMessage(OutcomeForwarded)

	families := gather(t, reg)
	messages := families["mqassist_agent_messages_total"]
	require.NotNil(t, messages)
	assert.Equal(t, 2.0, messages.GetMetric()[0].GetCounter().GetValue())
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveBridgeCall("ok", time.Second)
		m.IncMessage(OutcomeForwarded)
		m.IncRewrite("substitute")
		m.SetSessions(1, 1)
		m.AddSessionsSwept(2)
	})
}
