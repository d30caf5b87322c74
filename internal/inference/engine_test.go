package inference

import (
	"io"
	"testing"

	"github.com/cardiosense/ingest/internal/logger"
	"github.com/cardiosense/ingest/internal/telemetry"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func histogramSampleCount(t *testing.T, reg *prometheus.Registry, name, labelValue string) uint64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		for _, metric := range fam.GetMetric() {
			for _, l := range metric.GetLabel() {
				if l.GetValue() == labelValue {
					var h dto.Histogram = *metric.GetHistogram()
					return h.GetSampleCount()
				}
			}
		}
	}
	return 0
}

func testLogger() *logger.Logger {
	return logger.New(logger.LevelOff, io.Discard)
}

func TestNewEngineFallsBackToDemoModeWhenModelsMissing(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PCGModelPath = "/nonexistent/pcg.onnx"
	cfg.SeverityModelPath = "/nonexistent/severity.onnx"
	cfg.ECGModelPath = "/nonexistent/ecg.onnx"
	cfg.EnableDemoMode = true

	e, err := NewEngine(cfg, testLogger())
	require.NoError(t, err)
	assert.True(t, e.DemoModeActive)
	assert.Nil(t, e.pcgModel)
	assert.Nil(t, e.severityModel)
	assert.Nil(t, e.ecgModel)
}

func TestNewEngineFailsStartupWhenModelsMissingAndDemoDisabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PCGModelPath = "/nonexistent/pcg.onnx"
	cfg.SeverityModelPath = "/nonexistent/severity.onnx"
	cfg.ECGModelPath = "/nonexistent/ecg.onnx"
	cfg.EnableDemoMode = false

	_, err := NewEngine(cfg, testLogger())
	require.Error(t, err)
}

func TestEngineRunsDemoPredictionsEndToEnd(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PCGModelPath = "/nonexistent/pcg.onnx"
	cfg.SeverityModelPath = "/nonexistent/severity.onnx"
	cfg.ECGModelPath = "/nonexistent/ecg.onnx"
	cfg.EnableDemoMode = true

	e, err := NewEngine(cfg, testLogger())
	require.NoError(t, err)

	audio := make([]float64, 22050)
	for i := range audio {
		audio[i] = 0.05
	}
	pcgPred, err := e.PredictPCG(audio, 22050)
	require.NoError(t, err)
	assert.True(t, pcgPred.Metadata.DemoMode)
	assert.Contains(t, PCGLabels, pcgPred.Label)

	sevPred, err := e.PredictMurmurSeverity(audio, 22050)
	require.NoError(t, err)
	assert.True(t, sevPred.Metadata.DemoMode)
	assert.Equal(t, "MV", sevPred.Location.Predicted)

	ecg := make([]float64, 500)
	ecgPred, err := e.PredictECG(ecg, 500)
	require.NoError(t, err)
	assert.True(t, ecgPred.Metadata.DemoMode)
	assert.Contains(t, ECGLabels, ecgPred.Label)

	e.Close()
}

// TestEnginePredictECGDemoUsesRawVarianceNotConditionedWindow pins down
// that PredictECG's demo fallback classifies on the raw input's
// variance, not dsp.ConditionECGWindow's band-pass-filtered, z-scored
// output (which drives variance to ~1.0 regardless of input and would
// make the VEB branch unreachable).
func TestEnginePredictECGDemoUsesRawVarianceNotConditionedWindow(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PCGModelPath = "/nonexistent/pcg.onnx"
	cfg.SeverityModelPath = "/nonexistent/severity.onnx"
	cfg.ECGModelPath = "/nonexistent/ecg.onnx"
	cfg.EnableDemoMode = true

	e, err := NewEngine(cfg, testLogger())
	require.NoError(t, err)

	ecg := make([]float64, 500)
	for i := range ecg {
		if i%2 == 0 {
			ecg[i] = 3.0
		} else {
			ecg[i] = -3.0
		}
	}

	pred, err := e.PredictECG(ecg, 500)
	require.NoError(t, err)
	assert.Equal(t, "VEB", pred.Label)

	e.Close()
}

// TestEnginePredictionsObserveInferenceLatency checks that every
// Predict method reports to telemetry when a Metrics sink is attached.
func TestEnginePredictionsObserveInferenceLatency(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PCGModelPath = "/nonexistent/pcg.onnx"
	cfg.SeverityModelPath = "/nonexistent/severity.onnx"
	cfg.ECGModelPath = "/nonexistent/ecg.onnx"
	cfg.EnableDemoMode = true

	e, err := NewEngine(cfg, testLogger())
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	e.SetMetrics(telemetry.NewMetrics(reg))

	audio := make([]float64, 22050)
	_, err = e.PredictPCG(audio, 22050)
	require.NoError(t, err)
	_, err = e.PredictMurmurSeverity(audio, 22050)
	require.NoError(t, err)
	_, err = e.PredictECG(make([]float64, 500), 500)
	require.NoError(t, err)

	const histName = "cardiosense_ingest_inference_latency_ms"
	assert.EqualValues(t, 1, histogramSampleCount(t, reg, histName, "pcg"))
	assert.EqualValues(t, 1, histogramSampleCount(t, reg, histName, "severity"))
	assert.EqualValues(t, 1, histogramSampleCount(t, reg, histName, "ecg"))

	e.Close()
}
