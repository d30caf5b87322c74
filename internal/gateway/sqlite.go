package gateway

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cardiosense/ingest/internal/logger"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Compile-time interface check.
var _ Gateway = (*SQLite)(nil)

// SQLite is a reference Gateway implementation against the pure-Go
// modernc.org/sqlite driver. It stands in for the out-of-scope remote
// store so the finalize pipeline has something real to drive
// end-to-end in tests and local runs; production deployments swap in
// whatever backs spec.md §3's persisted rows.
type SQLite struct {
	db  *sql.DB
	log *logger.Logger
}

// OpenSQLite opens (creating if absent) a SQLite database at path and
// ensures the schema exists.
func OpenSQLite(path string, log *logger.Logger) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("gateway: opening sqlite at %s: %w", path, err)
	}
	s := &SQLite{db: db, log: log}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("gateway: migrating schema: %w", err)
	}
	return s, nil
}

// Close releases the underlying database handle.
func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			session_id TEXT PRIMARY KEY,
			status TEXT NOT NULL,
			ended_at TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS devices (
			device_id TEXT PRIMARY KEY,
			last_seen_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS recordings (
			id TEXT PRIMARY KEY,
			org_id TEXT NOT NULL,
			session_id TEXT NOT NULL,
			modality TEXT NOT NULL,
			valve_position TEXT,
			sample_rate_hz REAL NOT NULL,
			duration_sec REAL NOT NULL,
			storage_path TEXT NOT NULL,
			checksum TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS predictions (
			id TEXT PRIMARY KEY,
			org_id TEXT NOT NULL,
			session_id TEXT NOT NULL,
			modality TEXT NOT NULL,
			model_name TEXT NOT NULL,
			model_version TEXT NOT NULL,
			preprocessing_version TEXT NOT NULL,
			label TEXT NOT NULL,
			confidence REAL NOT NULL,
			probabilities TEXT NOT NULL,
			latency_ms REAL NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS murmur_severity (
			id TEXT PRIMARY KEY,
			org_id TEXT NOT NULL,
			session_id TEXT NOT NULL,
			model_version TEXT NOT NULL,
			preprocessing_version TEXT NOT NULL,
			heads TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS live_metrics (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			org_id TEXT NOT NULL,
			session_id TEXT NOT NULL,
			recorded_at TEXT NOT NULL,
			metrics TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS audit_logs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			org_id TEXT NOT NULL,
			user_id TEXT,
			action TEXT NOT NULL,
			entity_type TEXT NOT NULL,
			entity_id TEXT,
			metadata TEXT,
			recorded_at TEXT NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLite) UpdateSessionStatus(ctx context.Context, sessionID string, status SessionStatus, endedAt *time.Time) error {
	var endedAtStr sql.NullString
	if endedAt != nil {
		endedAtStr = sql.NullString{String: endedAt.UTC().Format(time.RFC3339Nano), Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (session_id, status, ended_at) VALUES (?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET status=excluded.status, ended_at=excluded.ended_at
	`, sessionID, string(status), endedAtStr)
	if err != nil {
		s.log.Warn("gateway: update_session_status(%s) failed: %v", sessionID, err)
	}
	return err
}

func (s *SQLite) UpdateDeviceLastSeen(ctx context.Context, deviceID string, now time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO devices (device_id, last_seen_at) VALUES (?, ?)
		ON CONFLICT(device_id) DO UPDATE SET last_seen_at=excluded.last_seen_at
	`, deviceID, now.UTC().Format(time.RFC3339Nano))
	return err
}

// UploadFile writes bytes to the local filesystem under bucket/path,
// standing in for the blob store spec.md §6 leaves as an external
// collaborator. contentType is accepted for interface parity but
// unused by this reference implementation.
func (s *SQLite) UploadFile(_ context.Context, bucket, path string, data []byte, _ string) error {
	full := bucket + "/" + path
	if err := writeFileAll(full, data); err != nil {
		s.log.Warn("gateway: upload_file(%s) failed: %v", full, err)
		return err
	}
	return nil
}

func (s *SQLite) CreateRecording(ctx context.Context, org, session, modality, valvePosition string, sampleRateHz, durationSec float64, storagePath, checksum string) (string, error) {
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO recordings (id, org_id, session_id, modality, valve_position, sample_rate_hz, duration_sec, storage_path, checksum)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, id, org, session, modality, valvePosition, sampleRateHz, durationSec, storagePath, checksum)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (s *SQLite) CreatePrediction(ctx context.Context, org, session, modality, modelName, modelVersion, preprocessingVersion string, output PredictionOutput, latencyMS float64) (string, error) {
	probsJSON, err := json.Marshal(output.Probabilities)
	if err != nil {
		return "", fmt.Errorf("gateway: marshaling probabilities: %w", err)
	}
	id := uuid.NewString()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO predictions (id, org_id, session_id, modality, model_name, model_version, preprocessing_version, label, confidence, probabilities, latency_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, id, org, session, modality, modelName, modelVersion, preprocessingVersion, output.Label, output.Confidence, string(probsJSON), latencyMS)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (s *SQLite) CreateMurmurSeverity(ctx context.Context, org, session, modelVersion, preprocessingVersion string, heads SeverityHeads) (string, error) {
	headsJSON, err := json.Marshal(heads)
	if err != nil {
		return "", fmt.Errorf("gateway: marshaling severity heads: %w", err)
	}
	id := uuid.NewString()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO murmur_severity (id, org_id, session_id, model_version, preprocessing_version, heads)
		VALUES (?, ?, ?, ?, ?, ?)
	`, id, org, session, modelVersion, preprocessingVersion, string(headsJSON))
	if err != nil {
		return "", err
	}
	return id, nil
}

func (s *SQLite) CreateLiveMetrics(ctx context.Context, org, session string, metrics map[string]any) error {
	metricsJSON, err := json.Marshal(metrics)
	if err != nil {
		return fmt.Errorf("gateway: marshaling live metrics: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO live_metrics (org_id, session_id, recorded_at, metrics) VALUES (?, ?, ?, ?)
	`, org, session, time.Now().UTC().Format(time.RFC3339Nano), string(metricsJSON))
	return err
}

func (s *SQLite) CreateAuditLog(ctx context.Context, org, user, action, entityType, entityID string, metadata map[string]any) error {
	var metadataJSON sql.NullString
	if metadata != nil {
		b, err := json.Marshal(metadata)
		if err != nil {
			return fmt.Errorf("gateway: marshaling audit metadata: %w", err)
		}
		metadataJSON = sql.NullString{String: string(b), Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (org_id, user_id, action, entity_type, entity_id, metadata, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, org, user, action, entityType, entityID, metadataJSON, time.Now().UTC().Format(time.RFC3339Nano))
	return err
}
