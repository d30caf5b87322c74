// Package gateway abstracts the external persistence store the session
// orchestrator writes finalized recordings, predictions, and audit
// records to. It generalizes the teacher's session-store abstraction
// (internal/domain.SessionStore) from a single Save/Load/Delete/
// ListActive surface to the eight typed operations spec.md §4.5 needs.
package gateway

import (
	"context"
	"time"
)

// SessionStatus is the lifecycle status recorded against a session row.
type SessionStatus string

const (
	StatusStreaming  SessionStatus = "streaming"
	StatusProcessing SessionStatus = "processing"
	StatusDone       SessionStatus = "done"
	StatusError      SessionStatus = "error"
)

// PredictionOutput is the generic payload stored alongside a prediction
// row: label/prediction plus its probability distribution. Severity
// heads are persisted separately via CreateMurmurSeverity.
type PredictionOutput struct {
	Label         string
	Confidence    float64
	Probabilities map[string]float64
}

// SeverityHeads bundles the six murmur-severity sub-outputs for a single
// create_murmur_severity call.
type SeverityHeads struct {
	Location HeadOutput
	Timing   HeadOutput
	Shape    HeadOutput
	Grading  HeadOutput
	Pitch    HeadOutput
	Quality  HeadOutput
}

// HeadOutput is one severity head: predicted label plus its distribution.
type HeadOutput struct {
	Predicted     string
	Probabilities map[string]float64
}

// Gateway is the persistence surface the orchestrator drives at the end
// of a session's lifecycle. Every operation is fire-once: the core
// never retries, and a PersistenceError is the caller's signal to mark
// the session status error at the first unrecoverable failure (spec.md
// §7).
type Gateway interface {
	UpdateSessionStatus(ctx context.Context, sessionID string, status SessionStatus, endedAt *time.Time) error
	UpdateDeviceLastSeen(ctx context.Context, deviceID string, now time.Time) error
	UploadFile(ctx context.Context, bucket, path string, data []byte, contentType string) error
	CreateRecording(ctx context.Context, org, session, modality, valvePosition string, sampleRateHz float64, durationSec float64, storagePath, checksum string) (string, error)
	CreatePrediction(ctx context.Context, org, session, modality, modelName, modelVersion, preprocessingVersion string, output PredictionOutput, latencyMS float64) (string, error)
	CreateMurmurSeverity(ctx context.Context, org, session, modelVersion, preprocessingVersion string, heads SeverityHeads) (string, error)
	CreateLiveMetrics(ctx context.Context, org, session string, metrics map[string]any) error
	CreateAuditLog(ctx context.Context, org, user, action, entityType, entityID string, metadata map[string]any) error
}
