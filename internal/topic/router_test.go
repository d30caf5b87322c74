package topic

import (
	"io"
	"testing"
	"time"

	"github.com/cardiosense/ingest/internal/buffer"
	"github.com/cardiosense/ingest/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDispatcher struct {
	started      []buffer.Modality
	startedBySID []string
	chunks       [][]byte
	ended        []buffer.Modality
	heartbeats   []string
}

func (f *fakeDispatcher) Start(sessionID, orgID, deviceID string, modality buffer.Modality, meta MetaEnvelope, now time.Time) error {
	f.started = append(f.started, modality)
	f.startedBySID = append(f.startedBySID, sessionID)
	return nil
}

func (f *fakeDispatcher) Chunk(sessionID string, modality buffer.Modality, data []byte, now time.Time) error {
	f.chunks = append(f.chunks, data)
	return nil
}

func (f *fakeDispatcher) End(sessionID string, modality buffer.Modality, now time.Time) error {
	f.ended = append(f.ended, modality)
	return nil
}

func (f *fakeDispatcher) Heartbeat(deviceID string, now time.Time) error {
	f.heartbeats = append(f.heartbeats, deviceID)
	return nil
}

func testLogger() *logger.Logger {
	return logger.New(logger.LevelOff, io.Discard)
}

func TestRouterDispatchesStartPCG(t *testing.T) {
	d := &fakeDispatcher{}
	r := NewRouter(d, testLogger())
	payload := []byte(`{"type":"start_pcg","session_id":"s1","valve_position":"AV","sample_rate_hz":22050,"format":"pcm_s16le"}`)
	r.Handle("org/org1/device/dev1/session/s1/meta", payload, time.Now())
	require.Len(t, d.started, 1)
	assert.Equal(t, buffer.PCG, d.started[0])
	assert.Equal(t, "s1", d.startedBySID[0])
}

// TestRouterStartUsesTopicSessionIDNotBody locks in that Start is keyed
// by the topic path segment, not the JSON body's session_id: a device
// that sends a mismatched or empty body field must still land in the
// same buffer as its own Chunk/End calls (which are always keyed by
// the topic segment).
func TestRouterStartUsesTopicSessionIDNotBody(t *testing.T) {
	d := &fakeDispatcher{}
	r := NewRouter(d, testLogger())
	payload := []byte(`{"type":"start_pcg","session_id":"wrong-id","valve_position":"AV","sample_rate_hz":22050,"format":"pcm_s16le"}`)
	r.Handle("org/org1/device/dev1/session/s1/meta", payload, time.Now())
	require.Len(t, d.startedBySID, 1)
	assert.Equal(t, "s1", d.startedBySID[0])
}

func TestRouterDispatchesChunk(t *testing.T) {
	d := &fakeDispatcher{}
	r := NewRouter(d, testLogger())
	r.Handle("org/org1/device/dev1/session/s1/ecg", []byte{1, 2, 3, 4}, time.Now())
	require.Len(t, d.chunks, 1)
	assert.Equal(t, []byte{1, 2, 3, 4}, d.chunks[0])
}

func TestRouterDispatchesHeartbeat(t *testing.T) {
	d := &fakeDispatcher{}
	r := NewRouter(d, testLogger())
	r.Handle("org/org1/device/dev1/session/s1/heartbeat", nil, time.Now())
	require.Len(t, d.heartbeats, 1)
	assert.Equal(t, "dev1", d.heartbeats[0])
}

func TestRouterDropsMalformedTopic(t *testing.T) {
	d := &fakeDispatcher{}
	r := NewRouter(d, testLogger())
	r.Handle("not/a/valid/topic", []byte{1}, time.Now())
	assert.Empty(t, d.started)
	assert.Empty(t, d.chunks)
}

func TestRouterDropsOversizedPayload(t *testing.T) {
	d := &fakeDispatcher{}
	r := NewRouter(d, testLogger())
	r.MaxPayloadBytes = 4
	r.Handle("org/org1/device/dev1/session/s1/ecg", []byte{1, 2, 3, 4, 5}, time.Now())
	assert.Empty(t, d.chunks)
}
