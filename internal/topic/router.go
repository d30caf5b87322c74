package topic

import (
	"time"

	"github.com/cardiosense/ingest/internal/buffer"
	"github.com/cardiosense/ingest/internal/logger"
)

// Dispatcher is the subset of session.Orchestrator the router drives.
// Defined here (rather than importing internal/session) to avoid an
// import cycle: session imports topic's types for meta decoding context,
// router only needs these four verbs.
//
// sessionID on Start is always the topic-path segment (parsed.SessionID),
// never meta.SessionID from the decoded body, so that Start/Chunk/End
// all key the same buffer off the topic grammar, not a
// device-supplied body field that could omit or mismatch it.
// original_source/.../mqtt_handler.py's _on_message does the same:
// session_id always comes from the topic.
type Dispatcher interface {
	Start(sessionID, orgID, deviceID string, modality buffer.Modality, meta MetaEnvelope, now time.Time) error
	Chunk(sessionID string, modality buffer.Modality, data []byte, now time.Time) error
	End(sessionID string, modality buffer.Modality, now time.Time) error
	Heartbeat(deviceID string, now time.Time) error
}

// defaultMaxPayloadBytes bounds a single MQTT payload at 1 MiB. The
// source system's security guard (see original_source/.../security.py)
// rejected oversized messages before they reached JSON/base64 decoding;
// this carries the same guard forward since nothing in spec.md's core
// scope supersedes it.
const defaultMaxPayloadBytes = 1 << 20

// Router validates topics, decodes payloads, and forwards decoded
// operations to a Dispatcher. It holds no session state itself.
type Router struct {
	Dispatcher      Dispatcher
	MaxPayloadBytes int
	log             *logger.Logger
}

// NewRouter builds a Router with the default payload-size guard.
func NewRouter(d Dispatcher, log *logger.Logger) *Router {
	return &Router{Dispatcher: d, MaxPayloadBytes: defaultMaxPayloadBytes, log: log}
}

// Handle is the broker client's message callback. now is the wall-clock
// time of receipt (injected for determinism in tests).
func (r *Router) Handle(topicStr string, payload []byte, now time.Time) {
	if r.MaxPayloadBytes > 0 && len(payload) > r.MaxPayloadBytes {
		r.log.Warn("topic: payload too large on %s (%d bytes), dropping", topicStr, len(payload))
		return
	}

	parsed, err := Parse(topicStr)
	if err != nil {
		r.log.Warn("topic: %v", err)
		return
	}

	switch parsed.Kind {
	case KindMeta:
		r.handleMeta(parsed, payload, now)
	case KindPCG:
		r.handleData(parsed, buffer.PCG, payload, now)
	case KindECG:
		r.handleData(parsed, buffer.ECG, payload, now)
	case KindHeartbeat:
		if err := r.Dispatcher.Heartbeat(parsed.DeviceID, now); err != nil {
			r.log.Warn("topic: heartbeat(%s): %v", parsed.DeviceID, err)
		}
	}
}

func (r *Router) handleMeta(parsed Parsed, payload []byte, now time.Time) {
	env, err := DecodeMeta(payload)
	if err != nil {
		r.log.Warn("topic: %v", err)
		return
	}

	switch env.Type {
	case MetaStartPCG:
		if err := r.Dispatcher.Start(parsed.SessionID, parsed.OrgID, parsed.DeviceID, buffer.PCG, env, now); err != nil {
			r.log.Warn("topic: start_pcg(%s): %v", parsed.SessionID, err)
		}
	case MetaStartECG:
		if err := r.Dispatcher.Start(parsed.SessionID, parsed.OrgID, parsed.DeviceID, buffer.ECG, env, now); err != nil {
			r.log.Warn("topic: start_ecg(%s): %v", parsed.SessionID, err)
		}
	case MetaEndPCG:
		if err := r.Dispatcher.End(parsed.SessionID, buffer.PCG, now); err != nil {
			r.log.Warn("topic: end_pcg(%s): %v", parsed.SessionID, err)
		}
	case MetaEndECG:
		if err := r.Dispatcher.End(parsed.SessionID, buffer.ECG, now); err != nil {
			r.log.Warn("topic: end_ecg(%s): %v", parsed.SessionID, err)
		}
	}
}

func (r *Router) handleData(parsed Parsed, modality buffer.Modality, payload []byte, now time.Time) {
	data, err := DecodeDataPayload(payload)
	if err != nil {
		r.log.Warn("topic: %v", err)
		return
	}
	if err := r.Dispatcher.Chunk(parsed.SessionID, modality, data, now); err != nil {
		r.log.Warn("topic: chunk(%s, %s): %v", parsed.SessionID, modality, err)
	}
}
