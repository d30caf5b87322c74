package buffer

import (
	"math"
	"testing"
	"time"

	"github.com/cardiosense/ingest/internal/codec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsUnknownFormat(t *testing.T) {
	_, err := New("s1", "org1", "dev1", PCG, 22050, Format("float32"), "AV", time.Now())
	require.Error(t, err)
}

func TestBufferAccounting(t *testing.T) {
	b, err := New("s1", "org1", "dev1", PCG, 22050, FormatPCMS16LE, "AV", time.Now())
	require.NoError(t, err)

	samples := make([]float64, 4410)
	for i := range samples {
		samples[i] = 0.1
	}
	chunk := codec.EncodeInt16LE(samples)

	for i := 0; i < 50; i++ {
		b.AddChunk(chunk, time.Now())
	}

	expected := float64(50*4410) / 22050.0
	assert.InDelta(t, expected, b.DurationSec(), 0.01)
}

func TestDurationSecZeroWhenNoSamples(t *testing.T) {
	b, err := New("s1", "org1", "dev1", ECG, 500, FormatInt16, "", time.Now())
	require.NoError(t, err)
	assert.Equal(t, 0.0, b.DurationSec())
}

func TestLastChunkAtNeverBeforeStartedAt(t *testing.T) {
	start := time.Now()
	b, err := New("s1", "org1", "dev1", ECG, 500, FormatInt16, "", start)
	require.NoError(t, err)
	b.AddChunk([]byte{1, 2}, start.Add(time.Second))
	assert.False(t, b.LastChunkAt.Before(b.StartedAt))
}

func TestMetricsOnSilentBuffer(t *testing.T) {
	b, err := New("s1", "org1", "dev1", PCG, 22050, FormatPCMS16LE, "AV", time.Now())
	require.NoError(t, err)

	silence := make([]float64, 22050)
	b.AddChunk(codec.EncodeInt16LE(silence), time.Now())

	m, err := b.Metrics()
	require.NoError(t, err)
	assert.Equal(t, 30.0, m.SNREstimate)
	assert.Equal(t, 0.0, m.ClippingPct)
}

func TestMetricsDetectsClipping(t *testing.T) {
	b, err := New("s1", "org1", "dev1", PCG, 22050, FormatPCMS16LE, "AV", time.Now())
	require.NoError(t, err)

	samples := make([]float64, 1000)
	for i := range samples {
		if i%2 == 0 {
			samples[i] = 1.0
		} else {
			samples[i] = 0.05
		}
	}
	b.AddChunk(codec.EncodeInt16LE(samples), time.Now())

	m, err := b.Metrics()
	require.NoError(t, err)
	assert.InDelta(t, 50.0, m.ClippingPct, 1.0)
	assert.False(t, math.IsNaN(m.SNREstimate))
}

func TestReconstructSignalDropsTrailingPartialSample(t *testing.T) {
	b, err := New("s1", "org1", "dev1", ECG, 500, FormatInt16, "", time.Now())
	require.NoError(t, err)

	b.AddChunk([]byte{1, 2, 3, 4, 5}, time.Now()) // 5 bytes -> 2 full samples + 1 trailing byte
	x, err := b.ReconstructSignal()
	require.NoError(t, err)
	assert.Len(t, x, 2)
}
