package dsp

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sineWave(n int, freq, amp, sr float64) []float64 {
	x := make([]float64, n)
	for i := range x {
		x[i] = amp * math.Sin(2*math.Pi*freq*float64(i)/sr)
	}
	return x
}

func TestExtractPCGFeaturesIsDeterministic(t *testing.T) {
	cfg := DefaultPCGFeatureConfig()
	x := sineWave(int(cfg.SampleRate*2), 150, 0.3, cfg.SampleRate)

	f1 := ExtractPCGFeatures(x, cfg.SampleRate, cfg)
	f2 := ExtractPCGFeatures(x, cfg.SampleRate, cfg)
	assert.Equal(t, f1, f2)
}

func TestExtractPCGFeaturesShape(t *testing.T) {
	cfg := DefaultPCGFeatureConfig()
	x := sineWave(int(cfg.SampleRate*2), 150, 0.3, cfg.SampleRate)
	f := ExtractPCGFeatures(x, cfg.SampleRate, cfg)
	require.Len(t, f, 34)
	for i, v := range f {
		assert.False(t, math.IsNaN(v), "feature %d is NaN", i)
		assert.False(t, math.IsInf(v, 0), "feature %d is Inf", i)
	}
}

func TestExtractPCGSpectrogramShape(t *testing.T) {
	cfg := DefaultPCGSpectrogramConfig()
	samples := int(cfg.SampleRate * 3)
	x := sineWave(samples, 150, 0.3, cfg.SampleRate)

	spec := ExtractPCGSpectrogram(x, cfg.SampleRate, cfg)
	require.Len(t, spec, cfg.NMels)

	expectedFrames := (samples + cfg.HopLength - 1) / cfg.HopLength
	assert.Equal(t, expectedFrames, len(spec[0]))

	for _, row := range spec {
		for _, v := range row {
			assert.LessOrEqual(t, v, 0.01) // dB with ref=max never exceeds ~0
			assert.GreaterOrEqual(t, v, -80.01)
		}
	}
}

func TestConditionECGWindowShapeAndDeterminism(t *testing.T) {
	cfg := DefaultECGWindowConfig()
	x := sineWave(800, 1.2, 1.0, cfg.SampleRate)

	w1 := ConditionECGWindow(x, cfg.SampleRate, cfg)
	w2 := ConditionECGWindow(x, cfg.SampleRate, cfg)
	require.Len(t, w1, cfg.WindowSize)
	assert.Equal(t, w1, w2)
}

func TestConditionECGWindowPadsShortInput(t *testing.T) {
	cfg := DefaultECGWindowConfig()
	x := sineWave(100, 1.2, 1.0, cfg.SampleRate)
	w := ConditionECGWindow(x, cfg.SampleRate, cfg)
	assert.Len(t, w, cfg.WindowSize)
}

func TestApplyFiltfiltPassesDCNearZeroThroughBandpass(t *testing.T) {
	bp := designBandpass(4, 20, 400, 22050)
	x := make([]float64, 4096)
	for i := range x {
		x[i] = 1.0 // pure DC, well below the passband
	}
	out := applyFiltfilt(bp, x)
	mean, std := meanStd(out)
	assert.Less(t, math.Abs(mean), 0.05, "DC component should be heavily attenuated by a [20,400]Hz bandpass")
	assert.Less(t, std, 0.5, "DC component should be heavily attenuated by a [20,400]Hz bandpass")
}

func TestZeroCrossingRateCountsAlternatingSignal(t *testing.T) {
	x := []float64{1, -1, 1, -1, 1, -1, 1, -1}
	rate := zeroCrossingRate(x, len(x), len(x))
	require.Len(t, rate, 1)
	assert.Greater(t, rate[0], 0.5)
}
