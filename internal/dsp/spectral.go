package dsp

import (
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
)

// hannWindow returns a periodic Hann window of length n.
func hannWindow(n int) []float64 {
	w := make([]float64, n)
	if n == 1 {
		w[0] = 1
		return w
	}
	for i := range w {
		w[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(n))
	}
	return w
}

// reflectPad pads x by padLen samples on each side using edge reflection.
func reflectPad(x []float64, padLen int) []float64 {
	out := make([]float64, len(x)+2*padLen)
	for i := 0; i < padLen; i++ {
		src := padLen - i
		if src >= len(x) {
			src = len(x) - 1
		}
		out[i] = x[src]
	}
	copy(out[padLen:padLen+len(x)], x)
	for i := 0; i < padLen; i++ {
		src := len(x) - 2 - i
		if src < 0 {
			src = 0
		}
		out[padLen+len(x)+i] = x[src]
	}
	return out
}

// stftMagnitude computes the one-sided STFT magnitude spectrogram of x,
// framed as librosa's default "centered" framing: reflect-padded by
// nFFT/2 on each side, windowed with a periodic Hann window. Returns
// frames x (nFFT/2+1) magnitudes.
func stftMagnitude(x []float64, nFFT, hop int) [][]float64 {
	padded := reflectPad(x, nFFT/2)
	window := hannWindow(nFFT)
	fft := fourier.NewFFT(nFFT)

	numFrames := 1 + (len(padded)-nFFT)/hop
	if numFrames < 1 {
		numFrames = 1
	}

	out := make([][]float64, numFrames)
	frame := make([]float64, nFFT)
	for i := 0; i < numFrames; i++ {
		start := i * hop
		for j := 0; j < nFFT; j++ {
			v := 0.0
			if start+j < len(padded) {
				v = padded[start+j]
			}
			frame[j] = v * window[j]
		}
		coeffs := fft.Coefficients(nil, frame)
		mags := make([]float64, len(coeffs))
		for k, c := range coeffs {
			mags[k] = math.Hypot(real(c), imag(c))
		}
		out[i] = mags
	}
	return out
}

// hzToMel converts Hz to the HTK mel scale (2595 * log10(1 + f/700)).
func hzToMel(hz float64) float64 {
	return 2595 * math.Log10(1+hz/700)
}

func melToHz(mel float64) float64 {
	return 700 * (math.Pow(10, mel/2595) - 1)
}

// melFilterbank builds a (nMels x (nFFT/2+1)) triangular filterbank
// spanning 0..sampleRate/2.
func melFilterbank(sampleRate float64, nFFT, nMels int) [][]float64 {
	nBins := nFFT/2 + 1
	minMel := hzToMel(0)
	maxMel := hzToMel(sampleRate / 2)

	points := make([]float64, nMels+2)
	for i := range points {
		mel := minMel + (maxMel-minMel)*float64(i)/float64(nMels+1)
		points[i] = melToHz(mel)
	}
	binFreqs := make([]float64, nBins)
	for i := range binFreqs {
		binFreqs[i] = float64(i) * sampleRate / float64(nFFT)
	}

	fb := make([][]float64, nMels)
	for m := 0; m < nMels; m++ {
		lo, mid, hi := points[m], points[m+1], points[m+2]
		row := make([]float64, nBins)
		for k, f := range binFreqs {
			switch {
			case f < lo || f > hi:
				row[k] = 0
			case f <= mid:
				if mid-lo > 0 {
					row[k] = (f - lo) / (mid - lo)
				}
			default:
				if hi-mid > 0 {
					row[k] = (hi - f) / (hi - mid)
				}
			}
		}
		fb[m] = row
	}
	return fb
}

// melSpectrogramDB computes the dB-scaled (ref=max) mel power spectrogram,
// shape [nMels][frames].
func melSpectrogramDB(x []float64, sampleRate float64, nFFT, hop, nMels int) [][]float64 {
	mags := stftMagnitude(x, nFFT, hop)
	fb := melFilterbank(sampleRate, nFFT, nMels)

	power := make([][]float64, nMels)
	for m := range power {
		power[m] = make([]float64, len(mags))
	}
	for t, frame := range mags {
		for m, filt := range fb {
			sum := 0.0
			for k, w := range filt {
				if w == 0 {
					continue
				}
				sum += w * frame[k] * frame[k]
			}
			power[m][t] = sum
		}
	}
	return powerToDB(power)
}

// powerToDB converts a power spectrogram to dB with ref = global max,
// floored at -80 dB below the peak, mirroring librosa.power_to_db's
// default top_db behavior.
func powerToDB(power [][]float64) [][]float64 {
	const eps = 1e-10
	maxVal := eps
	for _, row := range power {
		for _, v := range row {
			if v > maxVal {
				maxVal = v
			}
		}
	}
	out := make([][]float64, len(power))
	for i, row := range power {
		out[i] = make([]float64, len(row))
		for j, v := range row {
			db := 10 * math.Log10(math.Max(v, eps)/maxVal)
			if db < -80 {
				db = -80
			}
			out[i][j] = db
		}
	}
	return out
}

// dctII returns the first nOut orthonormal type-II DCT coefficients of x.
func dctII(x []float64, nOut int) []float64 {
	n := len(x)
	out := make([]float64, nOut)
	for k := 0; k < nOut; k++ {
		sum := 0.0
		for i, v := range x {
			sum += v * math.Cos(math.Pi/float64(n)*(float64(i)+0.5)*float64(k))
		}
		scale := math.Sqrt(2.0 / float64(n))
		if k == 0 {
			scale = math.Sqrt(1.0 / float64(n))
		}
		out[k] = sum * scale
	}
	return out
}

// mfcc computes n_mfcc cepstral coefficients per frame from a dB-scaled
// mel spectrogram shaped [nMels][frames]. Returns [frames][nMFCC].
func mfcc(melDB [][]float64, nMFCC int) [][]float64 {
	if len(melDB) == 0 {
		return nil
	}
	frames := len(melDB[0])
	nMels := len(melDB)
	out := make([][]float64, frames)
	col := make([]float64, nMels)
	for t := 0; t < frames; t++ {
		for m := 0; m < nMels; m++ {
			col[m] = melDB[m][t]
		}
		out[t] = dctII(col, nMFCC)
	}
	return out
}

// meanStd returns the mean and population standard deviation of x.
func meanStd(x []float64) (mean, std float64) {
	if len(x) == 0 {
		return 0, 0
	}
	sum := 0.0
	for _, v := range x {
		sum += v
	}
	mean = sum / float64(len(x))
	var sq float64
	for _, v := range x {
		d := v - mean
		sq += d * d
	}
	std = math.Sqrt(sq / float64(len(x)))
	return mean, std
}

// spectralCentroid returns the per-frame spectral centroid (Hz) for a
// magnitude spectrogram.
func spectralCentroid(mags [][]float64, sampleRate float64, nFFT int) []float64 {
	out := make([]float64, len(mags))
	binFreqs := binFrequencies(sampleRate, nFFT)
	for t, frame := range mags {
		num, den := 0.0, 0.0
		for k, m := range frame {
			num += binFreqs[k] * m
			den += m
		}
		if den > 0 {
			out[t] = num / den
		}
	}
	return out
}

// spectralBandwidth returns the per-frame spectral bandwidth (p=2) given
// the centroid.
func spectralBandwidth(mags [][]float64, sampleRate float64, nFFT int, centroid []float64) []float64 {
	out := make([]float64, len(mags))
	binFreqs := binFrequencies(sampleRate, nFFT)
	for t, frame := range mags {
		num, den := 0.0, 0.0
		for k, m := range frame {
			d := binFreqs[k] - centroid[t]
			num += m * d * d
			den += m
		}
		if den > 0 {
			out[t] = math.Sqrt(num / den)
		}
	}
	return out
}

// spectralRolloff returns the per-frame frequency (Hz) below which
// `rolloffPct` of the spectral energy is contained.
func spectralRolloff(mags [][]float64, sampleRate float64, nFFT int, rolloffPct float64) []float64 {
	out := make([]float64, len(mags))
	binFreqs := binFrequencies(sampleRate, nFFT)
	for t, frame := range mags {
		total := 0.0
		for _, m := range frame {
			total += m
		}
		threshold := total * rolloffPct
		cum := 0.0
		idx := len(frame) - 1
		for k, m := range frame {
			cum += m
			if cum >= threshold {
				idx = k
				break
			}
		}
		out[t] = binFreqs[idx]
	}
	return out
}

func binFrequencies(sampleRate float64, nFFT int) []float64 {
	nBins := nFFT/2 + 1
	out := make([]float64, nBins)
	for i := range out {
		out[i] = float64(i) * sampleRate / float64(nFFT)
	}
	return out
}

// zeroCrossingRate returns the per-frame zero-crossing rate of the raw
// (time-domain) signal, using the same frame/hop grid as the STFT.
func zeroCrossingRate(x []float64, frameLen, hop int) []float64 {
	if len(x) < frameLen {
		frameLen = len(x)
	}
	if frameLen < 2 {
		return []float64{0}
	}
	numFrames := 1 + (len(x)-frameLen)/hop
	if numFrames < 1 {
		numFrames = 1
	}
	out := make([]float64, numFrames)
	for i := 0; i < numFrames; i++ {
		start := i * hop
		crossings := 0
		for j := start + 1; j < start+frameLen && j < len(x); j++ {
			if (x[j-1] >= 0) != (x[j] >= 0) {
				crossings++
			}
		}
		out[i] = float64(crossings) / float64(frameLen)
	}
	return out
}
