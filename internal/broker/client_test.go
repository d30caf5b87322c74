package broker

import (
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

// TestSubscriptionTopicsMatchTopicGrammar locks in the four filters and
// their QoS levels against spec.md §6. A real broker round-trip isn't
// exercised here (paho.mqtt.golang's Client is a concrete type, not an
// interface seam, so there's nothing to fake without a live broker);
// this pins the one part of the wiring that's a plain data table.
func TestSubscriptionTopicsMatchTopicGrammar(t *testing.T) {
	want := map[string]byte{
		"org/+/device/+/session/+/meta":      1,
		"org/+/device/+/session/+/pcg":       0,
		"org/+/device/+/session/+/ecg":       0,
		"org/+/device/+/session/+/heartbeat": 0,
	}
	require.Len(t, subscriptionTopics, len(want))
	for _, sub := range subscriptionTopics {
		qos, ok := want[sub.filter]
		require.True(t, ok, "unexpected filter %q", sub.filter)
		assert.Equal(t, qos, sub.qos, "wrong qos for %q", sub.filter)
	}
}

// TestNewBuildsDisconnectedClient checks that New only constructs the
// client (no dial happens until Connect is called explicitly).
func TestNewBuildsDisconnectedClient(t *testing.T) {
	called := false
	c := New(Config{
		Broker:    "127.0.0.1",
		Port:      1883,
		ClientID:  "test-client",
		Keepalive: 30 * time.Second,
	}, func(topicStr string, payload []byte, now time.Time) {
		called = true
	}, testLogger())

	require.NotNil(t, c)
	require.NotNil(t, c.Connected)
	assert.False(t, c.Connected())
	assert.False(t, called)
}
