package session

import (
	"context"
	"sync"
	"time"

	"github.com/cardiosense/ingest/internal/buffer"
	"github.com/cardiosense/ingest/internal/logger"
	"github.com/cardiosense/ingest/internal/telemetry"
)

// Supervisor runs the two background tasks of spec.md §4.8 (timeout
// sweeper, live-metrics publisher) as ticker-driven goroutines, shaped
// after the teacher's timer.Supervisor tick loop: a context-cancellable
// goroutine per task started from Start and stopped from Stop, guarded
// by a running flag under its own mutex.
type Supervisor struct {
	orch    *Orchestrator
	cfg     Config
	gw      publisherGateway
	log     *logger.Logger
	metrics *telemetry.Metrics

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
}

// publisherGateway is the live-metrics sink the Supervisor writes to;
// satisfied by gateway.Gateway (kept narrow here to avoid a second
// import cycle risk as the session package grows).
type publisherGateway interface {
	CreateLiveMetrics(ctx context.Context, org, session string, metrics map[string]any) error
}

// NewSupervisor builds a Supervisor bound to an Orchestrator's live
// buffer map. metrics may be nil (every Metrics method no-ops on a nil
// receiver).
func NewSupervisor(orch *Orchestrator, cfg Config, gw publisherGateway, log *logger.Logger, metrics *telemetry.Metrics) *Supervisor {
	return &Supervisor{orch: orch, cfg: cfg, gw: gw, log: log, metrics: metrics}
}

// Start begins both background loops. Non-blocking, idempotent.
func (s *Supervisor) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		s.log.Warn("session: supervisor already running")
		return
	}
	childCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true

	go s.sweepLoop(childCtx)
	go s.metricsLoop(childCtx)

	s.log.Info("session: supervisor started (sweep=%s, metrics_hz=%.1f)", s.cfg.SweepInterval, s.cfg.MetricsUpdateHz)
}

// Stop cancels both background loops.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.cancel()
	s.running = false
	s.log.Info("session: supervisor stopped")
}

func (s *Supervisor) sweepLoop(ctx context.Context) {
	interval := s.cfg.SweepInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweepOnce(time.Now())
		}
	}
}

// sweepOnce finalizes-as-timeout any buffer whose last chunk predates
// stream_timeout_sec and which has not already ended. Takes a snapshot
// of keys, then re-resolves each buffer to avoid acting on a stale
// reference (spec.md §5).
func (s *Supervisor) sweepOnce(now time.Time) {
	for _, key := range s.orch.BufferKeys() {
		b, ok := s.orch.Lookup(key)
		if !ok || b.Ended {
			continue
		}
		if now.Sub(b.LastChunkAt) <= s.cfg.StreamTimeout {
			continue
		}

		s.orch.mu.Lock()
		if b.Ended {
			s.orch.mu.Unlock()
			continue
		}
		b.Ended = true
		s.orch.mu.Unlock()

		s.orch.spawnFinalize(key, b, now, reasonTimeout)
	}
}

func (s *Supervisor) metricsLoop(ctx context.Context) {
	hz := s.cfg.MetricsUpdateHz
	if hz <= 0 {
		hz = 2.0
	}
	interval := time.Duration(float64(time.Second) / hz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.publishOnce(ctx, time.Now())
		}
	}
}

// publishOnce emits one create_live_metrics call per live, non-ended
// buffer, tolerating individual failures, and refreshes the
// live_buffer_count gauge per modality (spec.md's "expose hooks" for a
// read-only metrics view, SPEC_FULL.md §4.9).
func (s *Supervisor) publishOnce(ctx context.Context, now time.Time) {
	counts := map[buffer.Modality]int{}
	for _, key := range s.orch.BufferKeys() {
		b, ok := s.orch.Lookup(key)
		if !ok || b.Ended {
			continue
		}
		counts[key.Modality]++

		qm, err := b.Metrics()
		if err != nil {
			s.log.Warn("session: quality_metrics(%s) failed: %v", key, err)
			continue
		}

		payload := map[string]any{
			"buffer_fill": map[string]any{
				string(key.Modality) + "_seconds": b.DurationSec(),
				string(key.Modality) + "_samples": b.TotalSamples(),
			},
			"quality":   qm,
			"timestamp": now,
		}
		if err := s.gw.CreateLiveMetrics(ctx, b.OrgID, key.SessionID, payload); err != nil {
			s.log.Warn("session: create_live_metrics(%s) failed: %v", key.SessionID, err)
		}
	}
	s.metrics.SetBufferCount(string(buffer.PCG), counts[buffer.PCG])
	s.metrics.SetBufferCount(string(buffer.ECG), counts[buffer.ECG])
}
