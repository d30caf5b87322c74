package dsp

// PCGSpectrogramConfig parameterizes the PCG mel-spectrogram
// preprocessor used for the severity model.
type PCGSpectrogramConfig struct {
	SampleRate float64
	NMels      int
	NFFT       int
	HopLength  int
}

// DefaultPCGSpectrogramConfig returns the config named in the spec:
// 22050 Hz, 128 mel bands, 2048-point FFT, 512 hop.
func DefaultPCGSpectrogramConfig() PCGSpectrogramConfig {
	return PCGSpectrogramConfig{
		SampleRate: 22050,
		NMels:      128,
		NFFT:       2048,
		HopLength:  512,
	}
}

// Spectrogram is a [mels][frames] dB-scaled mel power spectrogram.
type Spectrogram [][]float64

// ExtractPCGSpectrogram runs resample -> z-score normalize -> mel power
// spectrogram -> dB (ref=max), producing a [n_mels][T] array where
// T = ceil(len(audio) / hop_length).
func ExtractPCGSpectrogram(audio []float64, originalSR float64, cfg PCGSpectrogramConfig) Spectrogram {
	x := resampleLinear(audio, originalSR, cfg.SampleRate)
	x = zScoreNormalize(x)
	spec := melSpectrogramDB(x, cfg.SampleRate, cfg.NFFT, cfg.HopLength, cfg.NMels)
	frames := (len(x) + cfg.HopLength - 1) / cfg.HopLength
	for m := range spec {
		if len(spec[m]) > frames {
			spec[m] = spec[m][:frames]
		}
	}
	return Spectrogram(spec)
}
