package dsp

// ECGWindowConfig parameterizes the ECG window conditioning pipeline.
type ECGWindowConfig struct {
	SampleRate   float64
	WindowSize   int
	BandpassLow  float64
	BandpassHigh float64
}

// DefaultECGWindowConfig returns the config named in the spec: 500 Hz,
// 500-sample window, [0.5, 50] Hz bandpass.
func DefaultECGWindowConfig() ECGWindowConfig {
	return ECGWindowConfig{
		SampleRate:   500,
		WindowSize:   500,
		BandpassLow:  0.5,
		BandpassHigh: 50,
	}
}

// ECGWindow is a fixed-length conditioned ECG window.
type ECGWindow []float64

// ConditionECGWindow runs resample -> zero-phase bandpass (order 4) ->
// baseline correction (zero-phase highpass at 0.5 Hz, order 1) ->
// 5-sample moving-average denoise (reflect-padded) -> right-align to
// WindowSize -> z-score normalize.
func ConditionECGWindow(ecg []float64, originalSR float64, cfg ECGWindowConfig) ECGWindow {
	x := resampleLinear(ecg, originalSR, cfg.SampleRate)

	bp := designBandpass(4, cfg.BandpassLow, cfg.BandpassHigh, cfg.SampleRate)
	x = applyFiltfilt(bp, x)

	hp := designHighpass(1, cfg.BandpassLow, cfg.SampleRate)
	x = applyFiltfilt(hp, x)

	x = movingAverageDenoise(x, 5)
	x = rightAlign(x, cfg.WindowSize)
	x = zScoreNormalize(x)

	return ECGWindow(x)
}

// movingAverageDenoise applies a same-length k-tap moving average using
// reflect padding at the edges. k must be odd.
func movingAverageDenoise(x []float64, k int) []float64 {
	half := k / 2
	padded := reflectPad(x, half)
	out := make([]float64, len(x))
	for i := range out {
		sum := 0.0
		for j := 0; j < k; j++ {
			sum += padded[i+j]
		}
		out[i] = sum / float64(k)
	}
	return out
}
