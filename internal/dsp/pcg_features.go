package dsp


// PCGFeatureConfig parameterizes the PCG scalar-feature preprocessor.
type PCGFeatureConfig struct {
	SampleRate     float64
	TargetDuration float64 // seconds
	BandpassLow    float64
	BandpassHigh   float64
	NMFCC          int
	NFFT           int
	HopLength      int
}

// DefaultPCGFeatureConfig returns the config named in the spec:
// 22050 Hz, 10 s target duration, [20, 400] Hz bandpass, 13 MFCCs.
func DefaultPCGFeatureConfig() PCGFeatureConfig {
	return PCGFeatureConfig{
		SampleRate:     22050,
		TargetDuration: 10,
		BandpassLow:    20,
		BandpassHigh:   400,
		NMFCC:          13,
		NFFT:           2048,
		HopLength:      512,
	}
}

// PCGFeatures is the fixed-order 34-scalar feature vector: MFCC mean
// (13) + MFCC stddev (13) + centroid mean/std + rolloff mean/std +
// bandwidth mean/std + ZCR mean/std.
type PCGFeatures [34]float64

// ExtractPCGFeatures runs the full PCG feature pipeline: resample, pad
// or truncate to the target duration, zero-phase Butterworth bandpass,
// z-score normalize, then extract the 34-scalar vector. audio must
// already be decoded to [-1, 1] floats at originalSR.
func ExtractPCGFeatures(audio []float64, originalSR float64, cfg PCGFeatureConfig) PCGFeatures {
	x := resampleLinear(audio, originalSR, cfg.SampleRate)
	targetSamples := int(cfg.TargetDuration * cfg.SampleRate)
	x = padOrTruncate(x, targetSamples)

	bp := designBandpass(4, cfg.BandpassLow, cfg.BandpassHigh, cfg.SampleRate)
	x = applyFiltfilt(bp, x)
	x = zScoreNormalize(x)

	melDB := melSpectrogramDB(x, cfg.SampleRate, cfg.NFFT, cfg.HopLength, 128)
	mfccFrames := mfcc(melDB, cfg.NMFCC)
	mfccByCoeff := transpose(mfccFrames)

	mags := stftMagnitude(x, cfg.NFFT, cfg.HopLength)
	centroid := spectralCentroid(mags, cfg.SampleRate, cfg.NFFT)
	rolloff := spectralRolloff(mags, cfg.SampleRate, cfg.NFFT, 0.85)
	bandwidth := spectralBandwidth(mags, cfg.SampleRate, cfg.NFFT, centroid)
	zcr := zeroCrossingRate(x, cfg.NFFT, cfg.HopLength)

	var out PCGFeatures
	idx := 0
	for c := 0; c < cfg.NMFCC; c++ {
		mean, std := meanStd(mfccByCoeff[c])
		out[idx] = mean
		out[idx+cfg.NMFCC] = std
		idx++
	}
	idx = 2 * cfg.NMFCC

	cMean, cStd := meanStd(centroid)
	out[idx], out[idx+1] = cMean, cStd
	idx += 2

	rMean, rStd := meanStd(rolloff)
	out[idx], out[idx+1] = rMean, rStd
	idx += 2

	bMean, bStd := meanStd(bandwidth)
	out[idx], out[idx+1] = bMean, bStd
	idx += 2

	zMean, zStd := meanStd(zcr)
	out[idx], out[idx+1] = zMean, zStd

	return out
}

func zScoreNormalize(x []float64) []float64 {
	mean, std := meanStd(x)
	out := make([]float64, len(x))
	for i, v := range x {
		if std > 0 {
			out[i] = (v - mean) / std
		} else {
			out[i] = v - mean
		}
	}
	return out
}

func transpose(frames [][]float64) [][]float64 {
	if len(frames) == 0 {
		return nil
	}
	nCols := len(frames[0])
	out := make([][]float64, nCols)
	for c := 0; c < nCols; c++ {
		out[c] = make([]float64, len(frames))
		for t, row := range frames {
			out[c][t] = row[c]
		}
	}
	return out
}
