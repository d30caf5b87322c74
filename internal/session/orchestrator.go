// Package session implements the per-(session_id, modality) state
// machine described in spec.md §4.7: Absent -> Streaming -> (Ending |
// Timeout) -> Finalizing -> Absent, the nine-step finalize pipeline,
// and the two background tasks of §4.8.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cardiosense/ingest/internal/buffer"
	"github.com/cardiosense/ingest/internal/codec"
	"github.com/cardiosense/ingest/internal/dsp"
	"github.com/cardiosense/ingest/internal/gateway"
	"github.com/cardiosense/ingest/internal/inference"
	"github.com/cardiosense/ingest/internal/logger"
	"github.com/cardiosense/ingest/internal/topic"
)

// Orchestrator owns the live buffer map and is the single mutator of
// it (spec.md §5's concurrency discipline, model (b): one dispatcher
// plus two timer goroutines, one mutex). It implements
// topic.Dispatcher.
type Orchestrator struct {
	cfg    Config
	gw     gateway.Gateway
	engine *inference.Engine
	log    *logger.Logger

	mu      sync.Mutex
	buffers map[buffer.Key]*buffer.Buffer

	wg sync.WaitGroup
}

var _ topic.Dispatcher = (*Orchestrator)(nil)

// New builds an Orchestrator with an empty live buffer map.
func New(cfg Config, gw gateway.Gateway, engine *inference.Engine, log *logger.Logger) *Orchestrator {
	return &Orchestrator{
		cfg:     cfg,
		gw:      gw,
		engine:  engine,
		log:     log,
		buffers: make(map[buffer.Key]*buffer.Buffer),
	}
}

func formatFor(modality buffer.Modality, raw string) (buffer.Format, error) {
	switch raw {
	case string(buffer.FormatPCMS16LE):
		return buffer.FormatPCMS16LE, nil
	case string(buffer.FormatInt16):
		return buffer.FormatInt16, nil
	case "":
		if modality == buffer.PCG {
			return buffer.FormatPCMS16LE, nil
		}
		return buffer.FormatInt16, nil
	default:
		return "", fmt.Errorf("session: unknown format %q", raw)
	}
}

// Start creates a buffer for (session, modality). sessionID is always
// the topic-path segment, not meta.SessionID from the decoded body:
// Chunk/End key off the topic-derived id too, so using
// anything else here would let a mismatched or empty body field split
// one session across two buffer keys. A duplicate start while the
// buffer is already live is an idempotent no-op (logged, not returned
// as an error), per spec.md §4.7.
func (o *Orchestrator) Start(sessionID, orgID, deviceID string, modality buffer.Modality, meta topic.MetaEnvelope, now time.Time) error {
	key := buffer.Key{SessionID: sessionID, Modality: modality}

	o.mu.Lock()
	if _, exists := o.buffers[key]; exists {
		o.mu.Unlock()
		o.log.Warn("session: duplicate start for %s, ignoring", key)
		return nil
	}

	format, err := formatFor(modality, meta.Format)
	if err != nil {
		o.mu.Unlock()
		return err
	}
	sampleRate := meta.SampleRateHz
	if sampleRate <= 0 {
		if modality == buffer.PCG {
			sampleRate = 22050
		} else {
			sampleRate = 500
		}
	}

	b, err := buffer.New(sessionID, orgID, deviceID, modality, sampleRate, format, meta.ValvePosition, now)
	if err != nil {
		o.mu.Unlock()
		return err
	}
	o.buffers[key] = b
	o.mu.Unlock()

	ctx := context.Background()
	if err := o.gw.UpdateSessionStatus(ctx, sessionID, gateway.StatusStreaming, nil); err != nil {
		o.log.Warn("session: update_session_status(streaming, %s): %v", sessionID, err)
	}
	return nil
}

// Chunk appends data to a live buffer and, if the modality's max
// duration has been reached, triggers a forced-end finalize (treated
// as a successful end per spec.md §7 DurationExceeded).
func (o *Orchestrator) Chunk(sessionID string, modality buffer.Modality, data []byte, now time.Time) error {
	key := buffer.Key{SessionID: sessionID, Modality: modality}

	o.mu.Lock()
	b, ok := o.buffers[key]
	if !ok {
		o.mu.Unlock()
		o.log.Warn("session: %v: %s", ErrUnknownBuffer, key)
		return nil
	}
	if b.Ended {
		o.mu.Unlock()
		return nil
	}
	b.AddChunk(data, now)
	overCap := b.DurationSec() >= o.cfg.maxDuration(string(modality)).Seconds()
	if overCap {
		b.Ended = true
	}
	o.mu.Unlock()

	if overCap {
		o.spawnFinalize(key, b, now, reasonDurationExceeded)
	}
	return nil
}

// End marks a buffer as ending and spawns finalization. A duplicate
// end after completion (buffer already removed, or already marked
// Ended) is a no-op.
func (o *Orchestrator) End(sessionID string, modality buffer.Modality, now time.Time) error {
	key := buffer.Key{SessionID: sessionID, Modality: modality}

	o.mu.Lock()
	b, ok := o.buffers[key]
	if !ok {
		o.mu.Unlock()
		o.log.Warn("session: end for unknown buffer %s", key)
		return nil
	}
	if b.Ended {
		o.mu.Unlock()
		return nil
	}
	b.Ended = true
	o.mu.Unlock()

	o.spawnFinalize(key, b, now, reasonNormalEnd)
	return nil
}

// Heartbeat updates the device's last-seen timestamp.
func (o *Orchestrator) Heartbeat(deviceID string, now time.Time) error {
	if err := o.gw.UpdateDeviceLastSeen(context.Background(), deviceID, now); err != nil {
		o.log.Warn("session: update_device_last_seen(%s): %v", deviceID, err)
	}
	return nil
}

// BufferKeys returns a snapshot of every live buffer's key, for the
// background tasks to iterate without holding the lock.
func (o *Orchestrator) BufferKeys() []buffer.Key {
	o.mu.Lock()
	defer o.mu.Unlock()
	keys := make([]buffer.Key, 0, len(o.buffers))
	for k := range o.buffers {
		keys = append(keys, k)
	}
	return keys
}

// Lookup re-resolves a buffer by key, returning (nil, false) if it has
// since been removed. Background tasks must re-resolve rather than
// hold onto pointers from a stale snapshot (spec.md §5).
func (o *Orchestrator) Lookup(key buffer.Key) (*buffer.Buffer, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	b, ok := o.buffers[key]
	return b, ok
}

func (o *Orchestrator) removeBuffer(key buffer.Key) {
	o.mu.Lock()
	delete(o.buffers, key)
	o.mu.Unlock()
}

func (o *Orchestrator) pcgAbsent(sessionID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, ok := o.buffers[buffer.Key{SessionID: sessionID, Modality: buffer.PCG}]
	return !ok
}

func (o *Orchestrator) spawnFinalize(key buffer.Key, b *buffer.Buffer, now time.Time, reason finalizeReason) {
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.finalize(key, b, now, reason)
	}()
}

type finalizeReason int

const (
	reasonNormalEnd finalizeReason = iota
	reasonDurationExceeded
	reasonTimeout
)

// finalize runs the nine-step pipeline of spec.md §4.7 and always
// removes the buffer from the live map as its final act (step 10),
// even on failure.
func (o *Orchestrator) finalize(key buffer.Key, b *buffer.Buffer, now time.Time, reason finalizeReason) {
	defer o.removeBuffer(key)
	ctx := context.Background()
	modality := string(key.Modality)

	if reason == reasonTimeout {
		lastChunkSecAgo := now.Sub(b.LastChunkAt).Seconds()
		if err := o.gw.UpdateSessionStatus(ctx, key.SessionID, gateway.StatusError, nil); err != nil {
			o.log.Warn("session: update_session_status(error, %s): %v", key.SessionID, err)
		}
		if err := o.gw.CreateAuditLog(ctx, b.OrgID, "", "session_timeout", "session", key.SessionID, map[string]any{
			"modality":            modality,
			"timeout_sec":         o.cfg.StreamTimeout.Seconds(),
			"last_chunk_sec_ago":  lastChunkSecAgo,
		}); err != nil {
			o.log.Warn("session: create_audit_log(session_timeout, %s): %v", key.SessionID, err)
		}
		return
	}

	if err := o.gw.UpdateSessionStatus(ctx, key.SessionID, gateway.StatusProcessing, nil); err != nil {
		o.log.Warn("session: update_session_status(processing, %s): %v", key.SessionID, err)
	}

	signal, err := b.ReconstructSignal()
	if err != nil {
		o.failFinalize(ctx, key, b.OrgID, modality, fmt.Errorf("%w: %v", ErrPreprocessing, err))
		return
	}

	encoded := codec.EncodeInt16LE(signal)
	checksum := codec.SHA256Hex(encoded)

	ext, contentType := "bin", "application/octet-stream"
	if key.Modality == buffer.PCG {
		ext, contentType = "wav", "audio/wav"
	}
	storagePath := fmt.Sprintf("%s/%s/%s/recording.%s", b.OrgID, key.SessionID, modality, ext)

	gatewayFailed := false
	if err := o.gw.UploadFile(ctx, "recordings", storagePath, encoded, contentType); err != nil {
		o.log.Warn("session: upload_file(%s): %v", storagePath, err)
		gatewayFailed = true
	} else if _, err := o.gw.CreateRecording(ctx, b.OrgID, key.SessionID, modality, b.ValvePosition, b.SampleRateHz, b.DurationSec(), storagePath, checksum); err != nil {
		o.log.Warn("session: create_recording(%s): %v", key.SessionID, err)
		gatewayFailed = true
	}

	var label string
	var predictErr error
	var predOutput gateway.PredictionOutput
	var modelName, modelVersion string
	var latencyMS float64
	var demoMode bool

	if key.Modality == buffer.PCG {
		pred, err := o.engine.PredictPCG(signal, b.SampleRateHz)
		if err != nil {
			predictErr = err
		} else {
			label = pred.Label
			predOutput = gateway.PredictionOutput{Label: pred.Label, Confidence: pred.Probabilities[pred.Label], Probabilities: pred.Probabilities}
			modelName, modelVersion, latencyMS, demoMode = pred.Metadata.ModelName, pred.Metadata.ModelVersion, pred.Metadata.LatencyMS, pred.Metadata.DemoMode
		}
	} else {
		pred, err := o.engine.PredictECG(signal, b.SampleRateHz)
		if err != nil {
			predictErr = err
		} else {
			label = pred.Label
			predOutput = gateway.PredictionOutput{Label: pred.Label, Confidence: pred.Confidence, Probabilities: pred.Probabilities}
			modelName, modelVersion, latencyMS, demoMode = pred.Metadata.ModelName, pred.Metadata.ModelVersion, pred.Metadata.LatencyMS, pred.Metadata.DemoMode
		}
	}

	if predictErr != nil {
		o.failFinalize(ctx, key, b.OrgID, modality, fmt.Errorf("%w: %v", ErrInference, predictErr))
		return
	}

	preprocessingVersion := dsp.PreprocessingVersion
	if _, err := o.gw.CreatePrediction(ctx, b.OrgID, key.SessionID, modality, modelName, modelVersion, preprocessingVersion, predOutput, latencyMS); err != nil {
		o.log.Warn("session: create_prediction(%s): %v", key.SessionID, err)
		gatewayFailed = true
	}

	if key.Modality == buffer.PCG && label == "Murmur" {
		sev, err := o.engine.PredictMurmurSeverity(signal, b.SampleRateHz)
		if err != nil {
			o.log.Warn("session: predict_murmur_severity(%s): %v", key.SessionID, err)
		} else {
			heads := gateway.SeverityHeads{
				Location: gateway.HeadOutput{Predicted: sev.Location.Predicted, Probabilities: sev.Location.Probabilities},
				Timing:   gateway.HeadOutput{Predicted: sev.Timing.Predicted, Probabilities: sev.Timing.Probabilities},
				Shape:    gateway.HeadOutput{Predicted: sev.Shape.Predicted, Probabilities: sev.Shape.Probabilities},
				Grading:  gateway.HeadOutput{Predicted: sev.Grading.Predicted, Probabilities: sev.Grading.Probabilities},
				Pitch:    gateway.HeadOutput{Predicted: sev.Pitch.Predicted, Probabilities: sev.Pitch.Probabilities},
				Quality:  gateway.HeadOutput{Predicted: sev.Quality.Predicted, Probabilities: sev.Quality.Probabilities},
			}
			if _, err := o.gw.CreateMurmurSeverity(ctx, b.OrgID, key.SessionID, sev.Metadata.ModelVersion, sev.Metadata.PreprocessingVersion, heads); err != nil {
				o.log.Warn("session: create_murmur_severity(%s): %v", key.SessionID, err)
				gatewayFailed = true
			}
		}
	}

	if err := o.gw.CreateAuditLog(ctx, b.OrgID, "", fmt.Sprintf("%s_inference_completed", modality), "session", key.SessionID, map[string]any{
		"result":    label,
		"demo_mode": demoMode,
	}); err != nil {
		o.log.Warn("session: create_audit_log(%s_inference_completed, %s): %v", modality, key.SessionID, err)
		gatewayFailed = true
	}

	switch {
	case gatewayFailed:
		if err := o.gw.UpdateSessionStatus(ctx, key.SessionID, gateway.StatusError, nil); err != nil {
			o.log.Warn("session: update_session_status(error, %s): %v", key.SessionID, err)
		}
	case key.Modality == buffer.ECG && o.pcgAbsent(key.SessionID):
		endedAt := now
		if err := o.gw.UpdateSessionStatus(ctx, key.SessionID, gateway.StatusDone, &endedAt); err != nil {
			o.log.Warn("session: update_session_status(done, %s): %v", key.SessionID, err)
		}
	}
}

func (o *Orchestrator) failFinalize(ctx context.Context, key buffer.Key, orgID, modality string, cause error) {
	o.log.Warn("session: finalize(%s, %s) failed: %v", key.SessionID, modality, cause)
	if err := o.gw.UpdateSessionStatus(ctx, key.SessionID, gateway.StatusError, nil); err != nil {
		o.log.Warn("session: update_session_status(error, %s): %v", key.SessionID, err)
	}
	if err := o.gw.CreateAuditLog(ctx, orgID, "", fmt.Sprintf("%s_inference_failed", modality), "session", key.SessionID, map[string]any{
		"error": cause.Error(),
	}); err != nil {
		o.log.Warn("session: create_audit_log(%s_inference_failed, %s): %v", modality, key.SessionID, err)
	}
}

// Wait blocks until every in-flight finalize goroutine has returned.
// Used by shutdown to drain with a bounded grace period (spec.md §5).
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}
