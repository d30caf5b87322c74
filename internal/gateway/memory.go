package gateway

import (
	"context"
	"sync"
	"time"

	"github.com/cardiosense/ingest/internal/logger"
	"github.com/google/uuid"
)

// Compile-time interface check, mirroring the teacher's
// storage.MemoryStore assertion against domain.SessionStore.
var _ Gateway = (*Memory)(nil)

// RecordingRow, PredictionRow, SeverityRow, AuditLogRow are the rows
// Memory keeps, so tests and the demo profile can assert against what
// was actually persisted without a real database.
type RecordingRow struct {
	ID            string
	Org, Session  string
	Modality      string
	ValvePosition string
	SampleRateHz  float64
	DurationSec   float64
	StoragePath   string
	Checksum      string
}

type PredictionRow struct {
	ID                                                string
	Org, Session, Modality                            string
	ModelName, ModelVersion, PreprocessingVersion      string
	Output                                             PredictionOutput
	LatencyMS                                          float64
}

type SeverityRow struct {
	ID                                           string
	Org, Session                                 string
	ModelVersion, PreprocessingVersion           string
	Heads                                        SeverityHeads
}

type AuditLogRow struct {
	Org, User, Action, EntityType, EntityID string
	Metadata                                map[string]any
	RecordedAt                              time.Time
}

// Memory is an in-memory Gateway, modeled directly on the teacher's
// storage.MemoryStore: a single RWMutex guarding plain Go maps/slices,
// with a logger.Logger injected for debug tracing. Used by tests and
// by the demo/dev profile when no external store is configured.
type Memory struct {
	mu sync.RWMutex
	log *logger.Logger

	sessionStatus   map[string]SessionStatus
	deviceLastSeen  map[string]time.Time
	uploadedFiles   map[string][]byte
	recordings      map[string]RecordingRow
	predictions     map[string]PredictionRow
	severities      map[string]SeverityRow
	liveMetrics     []map[string]any
	auditLogs       []AuditLogRow
}

// NewMemory creates an empty in-memory gateway.
func NewMemory(log *logger.Logger) *Memory {
	return &Memory{
		log:            log,
		sessionStatus:  make(map[string]SessionStatus),
		deviceLastSeen: make(map[string]time.Time),
		uploadedFiles:  make(map[string][]byte),
		recordings:     make(map[string]RecordingRow),
		predictions:    make(map[string]PredictionRow),
		severities:     make(map[string]SeverityRow),
	}
}

func (m *Memory) UpdateSessionStatus(_ context.Context, sessionID string, status SessionStatus, _ *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.log.Debug("gateway: session %s -> %s", sessionID, status)
	m.sessionStatus[sessionID] = status
	return nil
}

func (m *Memory) UpdateDeviceLastSeen(_ context.Context, deviceID string, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deviceLastSeen[deviceID] = now
	return nil
}

func (m *Memory) UploadFile(_ context.Context, bucket, path string, data []byte, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := bucket + "/" + path
	cp := make([]byte, len(data))
	copy(cp, data)
	m.uploadedFiles[key] = cp
	return nil
}

func (m *Memory) CreateRecording(_ context.Context, org, session, modality, valvePosition string, sampleRateHz, durationSec float64, storagePath, checksum string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.NewString()
	m.recordings[id] = RecordingRow{
		ID: id, Org: org, Session: session, Modality: modality,
		ValvePosition: valvePosition, SampleRateHz: sampleRateHz,
		DurationSec: durationSec, StoragePath: storagePath, Checksum: checksum,
	}
	return id, nil
}

func (m *Memory) CreatePrediction(_ context.Context, org, session, modality, modelName, modelVersion, preprocessingVersion string, output PredictionOutput, latencyMS float64) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.NewString()
	m.predictions[id] = PredictionRow{
		ID: id, Org: org, Session: session, Modality: modality,
		ModelName: modelName, ModelVersion: modelVersion,
		PreprocessingVersion: preprocessingVersion, Output: output, LatencyMS: latencyMS,
	}
	return id, nil
}

func (m *Memory) CreateMurmurSeverity(_ context.Context, org, session, modelVersion, preprocessingVersion string, heads SeverityHeads) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.NewString()
	m.severities[id] = SeverityRow{
		ID: id, Org: org, Session: session,
		ModelVersion: modelVersion, PreprocessingVersion: preprocessingVersion, Heads: heads,
	}
	return id, nil
}

func (m *Memory) CreateLiveMetrics(_ context.Context, org, session string, metrics map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	row := map[string]any{"org": org, "session": session}
	for k, v := range metrics {
		row[k] = v
	}
	m.liveMetrics = append(m.liveMetrics, row)
	return nil
}

func (m *Memory) CreateAuditLog(_ context.Context, org, user, action, entityType, entityID string, metadata map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.auditLogs = append(m.auditLogs, AuditLogRow{
		Org: org, User: user, Action: action, EntityType: entityType,
		EntityID: entityID, Metadata: metadata, RecordedAt: time.Now(),
	})
	return nil
}

// SessionStatus returns the last recorded status for a session, for
// tests to assert against.
func (m *Memory) SessionStatus(sessionID string) (SessionStatus, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessionStatus[sessionID]
	return s, ok
}

// AuditLogs returns a copy of every audit log recorded so far, for
// tests to assert against.
func (m *Memory) AuditLogs() []AuditLogRow {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]AuditLogRow, len(m.auditLogs))
	copy(out, m.auditLogs)
	return out
}

// Recordings returns a copy of every recording row recorded so far.
func (m *Memory) Recordings() []RecordingRow {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]RecordingRow, 0, len(m.recordings))
	for _, r := range m.recordings {
		out = append(out, r)
	}
	return out
}

// Predictions returns a copy of every prediction row recorded so far.
func (m *Memory) Predictions() []PredictionRow {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]PredictionRow, 0, len(m.predictions))
	for _, p := range m.predictions {
		out = append(out, p)
	}
	return out
}

// Severities returns a copy of every severity row recorded so far.
func (m *Memory) Severities() []SeverityRow {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]SeverityRow, 0, len(m.severities))
	for _, s := range m.severities {
		out = append(out, s)
	}
	return out
}

// LiveMetricsCount returns how many live-metrics rows have been recorded.
func (m *Memory) LiveMetricsCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.liveMetrics)
}
