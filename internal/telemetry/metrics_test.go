package telemetry

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, g.Write(&m))
	return m.GetGauge().GetValue()
}

func TestMetricsRecordsDemoModeAndBrokerConnected(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.SetDemoModeActive(true)
	assert.Equal(t, 1.0, gaugeValue(t, m.demoModeActive))

	m.SetDemoModeActive(false)
	assert.Equal(t, 0.0, gaugeValue(t, m.demoModeActive))

	m.SetBrokerConnected(true)
	assert.Equal(t, 1.0, gaugeValue(t, m.brokerConnected))
}

func TestMetricsSetBufferCountByModality(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.SetBufferCount("pcg", 3)
	g, err := m.bufferCount.GetMetricWithLabelValues("pcg")
	require.NoError(t, err)
	assert.Equal(t, 3.0, gaugeValue(t, g))
}

func TestMetricsNilReceiverIsNoOp(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.SetBufferCount("pcg", 1)
		m.SetDemoModeActive(true)
		m.SetBrokerConnected(true)
		m.ObserveInferenceLatency("ecg", 12.5)
	})
}
