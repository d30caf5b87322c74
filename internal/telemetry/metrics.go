// Package telemetry registers the Prometheus collectors spec.md §6
// declares the core must expose hooks for (live buffer count, demo-mode
// flag, broker-connected flag, inference latency), even though the HTTP
// /metrics surface itself is out of core scope. Shaped on the
// nil-checked, injected *PrometheusMetrics with RecordX(...) methods
// used throughout the reference corpus's decoder pipeline
// (other_examples/.../madpsy-ka9q_ubersdr__decoder.go.go).
package telemetry

import "github.com/prometheus/client_golang/prometheus"

// Metrics bundles every collector the session supervisor, the inference
// engine and cmd/ingestd update.
// A nil *Metrics is valid everywhere it's accepted: every method is a
// no-op on a nil receiver, so callers that don't want telemetry can
// pass nil instead of a no-op stub.
type Metrics struct {
	bufferCount       *prometheus.GaugeVec
	demoModeActive    prometheus.Gauge
	brokerConnected   prometheus.Gauge
	inferenceLatency  *prometheus.HistogramVec
}

// NewMetrics constructs and registers every collector against reg. Pass
// prometheus.NewRegistry() for an isolated registry in tests, or
// prometheus.DefaultRegisterer for the process-wide one.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		bufferCount: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "cardiosense",
			Subsystem: "ingest",
			Name:      "live_buffer_count",
			Help:      "Number of live session buffers, by modality.",
		}, []string{"modality"}),
		demoModeActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "cardiosense",
			Subsystem: "ingest",
			Name:      "demo_mode_active",
			Help:      "1 if the inference engine is running in demo-fallback mode, else 0.",
		}),
		brokerConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "cardiosense",
			Subsystem: "ingest",
			Name:      "broker_connected",
			Help:      "1 if the MQTT broker connection is up, else 0.",
		}),
		inferenceLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "cardiosense",
			Subsystem: "ingest",
			Name:      "inference_latency_ms",
			Help:      "Inference latency in milliseconds, by modality.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		}, []string{"modality"}),
	}
	reg.MustRegister(m.bufferCount, m.demoModeActive, m.brokerConnected, m.inferenceLatency)
	return m
}

// SetBufferCount records the current live buffer count for a modality.
func (m *Metrics) SetBufferCount(modality string, count int) {
	if m == nil {
		return
	}
	m.bufferCount.WithLabelValues(modality).Set(float64(count))
}

// SetDemoModeActive records whether the engine is running in demo mode.
func (m *Metrics) SetDemoModeActive(active bool) {
	if m == nil {
		return
	}
	if active {
		m.demoModeActive.Set(1)
	} else {
		m.demoModeActive.Set(0)
	}
}

// SetBrokerConnected records whether the MQTT connection is currently up.
func (m *Metrics) SetBrokerConnected(connected bool) {
	if m == nil {
		return
	}
	if connected {
		m.brokerConnected.Set(1)
	} else {
		m.brokerConnected.Set(0)
	}
}

// ObserveInferenceLatency records one prediction's latency_ms.
func (m *Metrics) ObserveInferenceLatency(modality string, latencyMS float64) {
	if m == nil {
		return
	}
	m.inferenceLatency.WithLabelValues(modality).Observe(latencyMS)
}
