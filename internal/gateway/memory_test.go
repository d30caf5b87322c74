package gateway

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/cardiosense/ingest/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logger.Logger {
	return logger.New(logger.LevelOff, io.Discard)
}

func TestMemoryUpdateSessionStatus(t *testing.T) {
	m := NewMemory(testLogger())
	ctx := context.Background()

	require.NoError(t, m.UpdateSessionStatus(ctx, "s1", StatusStreaming, nil))
	status, ok := m.SessionStatus("s1")
	require.True(t, ok)
	assert.Equal(t, StatusStreaming, status)

	now := time.Now()
	require.NoError(t, m.UpdateSessionStatus(ctx, "s1", StatusDone, &now))
	status, ok = m.SessionStatus("s1")
	require.True(t, ok)
	assert.Equal(t, StatusDone, status)
}

func TestMemoryCreateRecordingAndPrediction(t *testing.T) {
	m := NewMemory(testLogger())
	ctx := context.Background()

	recID, err := m.CreateRecording(ctx, "org1", "s1", "pcg", "AV", 22050, 10.0, "org1/s1/pcg/recording.bin", "deadbeef")
	require.NoError(t, err)
	assert.NotEmpty(t, recID)

	predID, err := m.CreatePrediction(ctx, "org1", "s1", "pcg", "pcg_xgboost_classifier", "v1.0.0", "v1.0.0",
		PredictionOutput{Label: "Normal", Confidence: 0.82, Probabilities: map[string]float64{"Normal": 0.82, "Murmur": 0.1, "Artifact": 0.08}}, 12.5)
	require.NoError(t, err)
	assert.NotEmpty(t, predID)

	recs := m.Recordings()
	require.Len(t, recs, 1)
	assert.Equal(t, "pcg", recs[0].Modality)

	preds := m.Predictions()
	require.Len(t, preds, 1)
	assert.Equal(t, "Normal", preds[0].Output.Label)
}

func TestMemoryCreateMurmurSeverity(t *testing.T) {
	m := NewMemory(testLogger())
	ctx := context.Background()

	heads := SeverityHeads{
		Location: HeadOutput{Predicted: "MV", Probabilities: map[string]float64{"MV": 1.0}},
	}
	id, err := m.CreateMurmurSeverity(ctx, "org1", "s1", "demo", "v1.0.0", heads)
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.Len(t, m.Severities(), 1)
}

func TestMemoryCreateLiveMetricsAndAuditLog(t *testing.T) {
	m := NewMemory(testLogger())
	ctx := context.Background()

	require.NoError(t, m.CreateLiveMetrics(ctx, "org1", "s1", map[string]any{"buffer_count": 2}))
	assert.Equal(t, 1, m.LiveMetricsCount())

	require.NoError(t, m.CreateAuditLog(ctx, "org1", "", "pcg_inference_completed", "session", "s1", nil))
	logs := m.AuditLogs()
	require.Len(t, logs, 1)
	assert.Equal(t, "pcg_inference_completed", logs[0].Action)
}

func TestMemoryUploadFileAndDeviceLastSeen(t *testing.T) {
	m := NewMemory(testLogger())
	ctx := context.Background()

	require.NoError(t, m.UploadFile(ctx, "bucket", "org1/s1/pcg/recording.bin", []byte{1, 2, 3}, "application/octet-stream"))
	require.NoError(t, m.UpdateDeviceLastSeen(ctx, "dev1", time.Now()))
}
