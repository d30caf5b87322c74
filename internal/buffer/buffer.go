// Package buffer implements the per-(session, modality) byte
// accumulator described in the data model: an in-memory record that
// grows as chunks arrive and reconstructs into a decoded signal plus
// quality metrics at finalization time.
package buffer

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/cardiosense/ingest/internal/codec"
	"gonum.org/v1/gonum/stat"
)

// Modality distinguishes the two biosignal types this service handles.
type Modality string

const (
	PCG Modality = "pcg"
	ECG Modality = "ecg"
)

// Format names the accepted wire encodings. Unknown formats are
// rejected at construction time rather than silently defaulting to a
// bytes-per-sample guess (spec.md §9 open question, resolved this way).
type Format string

const (
	FormatPCMS16LE Format = "pcm_s16le"
	FormatInt16    Format = "int16"
)

func bytesPerSample(f Format) (int, error) {
	switch f {
	case FormatPCMS16LE, FormatInt16:
		return 2, nil
	default:
		return 0, fmt.Errorf("buffer: unknown sample format %q", f)
	}
}

// Key identifies a live buffer uniquely.
type Key struct {
	SessionID string
	Modality  Modality
}

func (k Key) String() string {
	return k.SessionID + "_" + string(k.Modality)
}

// Buffer accumulates raw chunks for one (session, modality) stream.
type Buffer struct {
	SessionID     string
	OrgID         string
	DeviceID      string
	Modality      Modality
	SampleRateHz  float64
	Format        Format
	ValvePosition string // PCG only, may be empty

	chunks         [][]byte
	bytesPerSample int
	totalBytes     int

	StartedAt   time.Time
	LastChunkAt time.Time
	Ended       bool
}

// New constructs a buffer and stamps StartedAt. Returns an error if the
// format is not one this service can decode.
func New(sessionID, orgID, deviceID string, modality Modality, sampleRateHz float64, format Format, valvePosition string, now time.Time) (*Buffer, error) {
	bps, err := bytesPerSample(format)
	if err != nil {
		return nil, err
	}
	return &Buffer{
		SessionID:      sessionID,
		OrgID:          orgID,
		DeviceID:       deviceID,
		Modality:       modality,
		SampleRateHz:   sampleRateHz,
		Format:         format,
		ValvePosition:  valvePosition,
		bytesPerSample: bps,
		StartedAt:      now,
		LastChunkAt:    now,
	}, nil
}

// AddChunk appends a raw chunk and updates accounting.
func (b *Buffer) AddChunk(data []byte, now time.Time) {
	b.chunks = append(b.chunks, data)
	b.totalBytes += len(data)
	b.LastChunkAt = now
}

// TotalSamples returns the whole-sample count accumulated so far; a
// trailing partial sample (when total bytes is not a clean multiple of
// bytesPerSample) is dropped rather than corrupting the count.
func (b *Buffer) TotalSamples() int {
	if b.bytesPerSample == 0 {
		return 0
	}
	return b.totalBytes / b.bytesPerSample
}

// DurationSec returns total_samples / sample_rate_hz, or 0 if either is 0.
func (b *Buffer) DurationSec() float64 {
	if b.SampleRateHz == 0 {
		return 0
	}
	return float64(b.TotalSamples()) / b.SampleRateHz
}

// ReconstructSignal concatenates every chunk and decodes it to [-1, 1]
// floats per Format.
func (b *Buffer) ReconstructSignal() ([]float64, error) {
	raw := make([]byte, 0, b.totalBytes)
	for _, c := range b.chunks {
		raw = append(raw, c...)
	}
	usable := (len(raw) / b.bytesPerSample) * b.bytesPerSample
	return codec.DecodeInt16LE(raw[:usable])
}

// QualityMetrics is the snapshot reported in live-metrics and used for
// buffer health assessment.
type QualityMetrics struct {
	TotalSamples int
	DurationSec  float64
	SampleRate   float64
	SNREstimate  float64
	ClippingPct  float64
	MissingPct   float64
	BufferHealth string
}

// Metrics computes the quality snapshot for the buffer's current
// contents. Returns an error only if the signal cannot be decoded.
func (b *Buffer) Metrics() (QualityMetrics, error) {
	x, err := b.ReconstructSignal()
	if err != nil {
		return QualityMetrics{}, err
	}
	snr := estimateSNR(x)
	clip := detectClipping(x)
	health := "good"
	if snr < 10 || clip > 5 {
		health = "poor"
	}
	return QualityMetrics{
		TotalSamples: b.TotalSamples(),
		DurationSec:  b.DurationSec(),
		SampleRate:   b.SampleRateHz,
		SNREstimate:  snr,
		ClippingPct:  clip,
		MissingPct:   0.0,
		BufferHealth: health,
	}, nil
}

// estimateSNR implements snr_estimate = clamp(10*log10(mean(x^2) /
// percentile(|x|,10)^2), 0, 60), returning 30.0 if the noise floor is 0.
func estimateSNR(x []float64) float64 {
	if len(x) == 0 {
		return 30.0
	}
	meanSq := 0.0
	abs := make([]float64, len(x))
	for i, v := range x {
		meanSq += v * v
		abs[i] = math.Abs(v)
	}
	meanSq /= float64(len(x))

	sort.Float64s(abs)
	noiseFloor := stat.Quantile(0.10, stat.Empirical, abs, nil)
	if noiseFloor == 0 {
		return 30.0
	}
	snr := 10 * math.Log10(meanSq/(noiseFloor*noiseFloor))
	return clamp(snr, 0, 60)
}

// detectClipping implements clipping_pct = 100 * |{i: |x[i]| > 0.99}| / N.
func detectClipping(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	count := 0
	for _, v := range x {
		if math.Abs(v) > 0.99 {
			count++
		}
	}
	return 100 * float64(count) / float64(len(x))
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
