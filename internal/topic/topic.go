// Package topic parses and validates MQTT topic strings of the form
// org/{org}/device/{dev}/session/{sid}/{kind} and decodes their
// payloads, handing decoded operations to a topic.Dispatcher
// (implemented by session.Orchestrator). It
// never touches session state directly (spec.md §5's single-mutator
// discipline).
package topic

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// Kind is the final topic segment, identifying the payload's purpose.
type Kind string

const (
	KindMeta      Kind = "meta"
	KindPCG       Kind = "pcg"
	KindECG       Kind = "ecg"
	KindHeartbeat Kind = "heartbeat"
)

// Parsed is a validated topic broken into its named segments.
type Parsed struct {
	OrgID     string
	DeviceID  string
	SessionID string
	Kind      Kind
}

// Parse validates and splits a topic string. The topic must split on
// '/' into exactly 7 segments
// (org/{org}/device/{dev}/session/{sid}/{kind}) with every id segment
// nonempty and kind one of the four known values.
func Parse(t string) (Parsed, error) {
	segs := splitTopic(t)
	if len(segs) != 7 {
		return Parsed{}, fmt.Errorf("topic: expected 7 segments, got %d: %q", len(segs), t)
	}
	if segs[0] != "org" || segs[2] != "device" || segs[4] != "session" {
		return Parsed{}, fmt.Errorf("topic: malformed shape: %q", t)
	}
	org, dev, sid := segs[1], segs[3], segs[5]
	if org == "" || dev == "" || sid == "" {
		return Parsed{}, fmt.Errorf("topic: empty id segment: %q", t)
	}

	kind := Kind(segs[6])
	switch kind {
	case KindMeta, KindPCG, KindECG, KindHeartbeat:
	default:
		return Parsed{}, fmt.Errorf("topic: unknown kind %q: %q", kind, t)
	}

	return Parsed{OrgID: org, DeviceID: dev, SessionID: sid, Kind: kind}, nil
}

func splitTopic(t string) []string {
	var segs []string
	start := 0
	for i := 0; i < len(t); i++ {
		if t[i] == '/' {
			segs = append(segs, t[start:i])
			start = i + 1
		}
	}
	segs = append(segs, t[start:])
	return segs
}

// MetaType is the `type` field of a meta-topic JSON payload.
type MetaType string

const (
	MetaStartPCG MetaType = "start_pcg"
	MetaEndPCG   MetaType = "end_pcg"
	MetaStartECG MetaType = "start_ecg"
	MetaEndECG   MetaType = "end_ecg"
)

// MetaEnvelope is the union of every meta payload shape: fields unused
// by a given type are left zero. Mirrors the JSON wire shapes of
// spec.md §6 directly rather than introducing per-type Go structs,
// since the router only needs to read a handful of fields before
// forwarding to the orchestrator.
type MetaEnvelope struct {
	Type              MetaType `json:"type"`
	SessionID         string   `json:"session_id"`
	ValvePosition     string   `json:"valve_position"`
	SampleRateHz      float64  `json:"sample_rate_hz"`
	Format            string   `json:"format"`
	Channels          int      `json:"channels"`
	ChunkMS           int      `json:"chunk_ms"`
	ChunkSamples      int      `json:"chunk_samples"`
	TargetDurationSec int      `json:"target_duration_sec"`
	Lead              string   `json:"lead"`
	WindowSize        int      `json:"window_size"`
	TimestampMS       int64    `json:"timestamp_ms"`
}

// DecodeMeta parses a meta payload. Unknown `type` values are reported
// as an error; the caller drops the message per spec.md §4.6.
func DecodeMeta(payload []byte) (MetaEnvelope, error) {
	var env MetaEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return MetaEnvelope{}, fmt.Errorf("topic: malformed meta JSON: %w", err)
	}
	switch env.Type {
	case MetaStartPCG, MetaEndPCG, MetaStartECG, MetaEndECG:
		return env, nil
	default:
		return MetaEnvelope{}, fmt.Errorf("topic: unknown meta type %q", env.Type)
	}
}

type jsonDataPayload struct {
	Data string `json:"data"`
}

// DecodeDataPayload returns the raw sample bytes for a pcg/ecg topic
// payload. Payloads are binary unless the first byte is '{', in which
// case they're decoded as {"data": "<base64>"} JSON (spec.md §4.6,
// preserving compatibility with two device firmwares).
func DecodeDataPayload(payload []byte) ([]byte, error) {
	if len(payload) == 0 || payload[0] != '{' {
		return payload, nil
	}
	var env jsonDataPayload
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, fmt.Errorf("topic: malformed JSON data payload: %w", err)
	}
	data, err := base64.StdEncoding.DecodeString(env.Data)
	if err != nil {
		return nil, fmt.Errorf("topic: malformed base64 data payload: %w", err)
	}
	return data, nil
}
