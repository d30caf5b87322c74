package dsp

import (
	"math"
	"math/cmplx"
)

// This file hand-rolls Butterworth IIR filter design (lowpass-prototype
// pole placement, analog-to-analog band transforms, and the bilinear
// transform) plus zero-phase (forward-backward) application. No library
// in the reference corpus offers Butterworth design or filtfilt; the
// numeric behavior here is part of PreprocessingVersion and must not
// change without bumping it.

// digitalFilter is a direct-form transfer function: b (numerator) and a
// (denominator) coefficients, both ordered b[0]..b[M] for z^0..z^-M,
// with a[0] == 1.
type digitalFilter struct {
	b []float64
	a []float64
}

// butterworthPrototype returns the N poles of the analog Butterworth
// lowpass prototype with unit cutoff, in the left half-plane.
func butterworthPrototype(order int) []complex128 {
	poles := make([]complex128, order)
	for k := 1; k <= order; k++ {
		theta := (2*float64(k) - 1 + float64(order)) / (2 * float64(order))
		poles[k-1] = cmplx.Exp(complex(0, math.Pi*theta))
	}
	return poles
}

// prewarp converts a digital cutoff frequency in Hz to the pre-warped
// analog angular frequency used by the bilinear transform.
func prewarp(hz, sampleRate float64) float64 {
	return 2 * sampleRate * math.Tan(math.Pi*hz/sampleRate)
}

// polyFromRoots expands prod(x - r_i) into coefficients ordered highest
// power first (length len(roots)+1).
func polyFromRoots(roots []complex128) []complex128 {
	coeffs := []complex128{1}
	for _, r := range roots {
		next := make([]complex128, len(coeffs)+1)
		for i, c := range coeffs {
			next[i] += c
			next[i+1] += c * -r
		}
		coeffs = next
	}
	return coeffs
}

func realPart(cs []complex128) []float64 {
	out := make([]float64, len(cs))
	for i, c := range cs {
		out[i] = real(c)
	}
	return out
}

// designBandpass builds a 2*order pole digital Butterworth bandpass
// filter between lowHz and highHz, sampled at sampleRate.
func designBandpass(order int, lowHz, highHz, sampleRate float64) digitalFilter {
	protoPoles := butterworthPrototype(order)

	wl := prewarp(lowHz, sampleRate)
	wh := prewarp(highHz, sampleRate)
	bw := wh - wl
	wo := sqrtC(wl * wh)

	// Analog lowpass -> bandpass: each prototype pole becomes two poles;
	// the prototype has no zeros, so `order` zeros land at the origin.
	bpPoles := make([]complex128, 0, 2*order)
	for _, p := range protoPoles {
		ps := p * complex(bw/2, 0)
		disc := sqrtC2(ps*ps - wo*wo)
		bpPoles = append(bpPoles, ps+disc, ps-disc)
	}
	bpZeros := make([]complex128, order) // all zero (origin)
	kBP := powReal(bw, order)

	return bilinearZPK(bpZeros, bpPoles, kBP, sampleRate)
}

// designHighpass builds an `order`-pole digital Butterworth highpass
// filter above cutoffHz, sampled at sampleRate.
func designHighpass(order int, cutoffHz, sampleRate float64) digitalFilter {
	protoPoles := butterworthPrototype(order)
	wo := prewarp(cutoffHz, sampleRate)

	hpPoles := make([]complex128, order)
	for i, p := range protoPoles {
		hpPoles[i] = complex(wo, 0) / p
	}
	hpZeros := make([]complex128, order) // all at origin (degree == order, no proto zeros)

	return bilinearZPK(hpZeros, hpPoles, 1.0, sampleRate)
}

// bilinearZPK applies the bilinear transform to an analog zero-pole-gain
// system and returns direct-form digital filter coefficients. Zeros are
// padded with -1 to keep numerator/denominator degree equal, matching
// the standard analog-to-digital zpk recipe.
func bilinearZPK(zeros, poles []complex128, k float64, sampleRate float64) digitalFilter {
	fs2 := complex(2*sampleRate, 0)

	prodNumFS := complex(1, 0)
	for _, z := range zeros {
		prodNumFS *= fs2 - z
	}
	prodDenFS := complex(1, 0)
	for _, p := range poles {
		prodDenFS *= fs2 - p
	}

	digitalZeros := make([]complex128, 0, len(poles))
	for _, z := range zeros {
		digitalZeros = append(digitalZeros, (fs2+z)/(fs2-z))
	}
	degree := len(poles) - len(zeros)
	for i := 0; i < degree; i++ {
		digitalZeros = append(digitalZeros, complex(-1, 0))
	}

	digitalPoles := make([]complex128, len(poles))
	for i, p := range poles {
		digitalPoles[i] = (fs2 + p) / (fs2 - p)
	}

	kz := k * real(prodNumFS/prodDenFS)

	numPoly := polyFromRoots(digitalZeros)
	for i := range numPoly {
		numPoly[i] *= complex(kz, 0)
	}
	denPoly := polyFromRoots(digitalPoles)

	return digitalFilter{b: realPart(numPoly), a: realPart(denPoly)}
}

func sqrtC(x float64) complex128 {
	if x >= 0 {
		return complex(math.Sqrt(x), 0)
	}
	return cmplx.Sqrt(complex(x, 0))
}

func sqrtC2(x complex128) complex128 {
	return cmplx.Sqrt(x)
}

func powReal(base float64, n int) float64 {
	out := 1.0
	for i := 0; i < n; i++ {
		out *= base
	}
	return out
}

// applyFiltfilt performs zero-phase filtering: forward pass, reverse,
// forward pass again, reverse again. The input is mirror-padded at both
// ends to damp startup transients before the two passes and trimmed
// back afterward.
func applyFiltfilt(f digitalFilter, x []float64) []float64 {
	padLen := 3 * (len(f.a) - 1)
	if padLen >= len(x) {
		padLen = len(x) - 1
	}
	if padLen < 0 {
		padLen = 0
	}

	padded := mirrorPad(x, padLen)
	forward := applyDirectForm(f, padded)
	reverse(forward)
	backward := applyDirectForm(f, forward)
	reverse(backward)

	return backward[padLen : len(backward)-padLen]
}

// mirrorPad extends x by reflecting padLen samples from each end.
func mirrorPad(x []float64, padLen int) []float64 {
	if padLen == 0 {
		out := make([]float64, len(x))
		copy(out, x)
		return out
	}
	out := make([]float64, len(x)+2*padLen)
	for i := 0; i < padLen; i++ {
		out[i] = 2*x[0] - x[padLen-i]
	}
	copy(out[padLen:padLen+len(x)], x)
	for i := 0; i < padLen; i++ {
		out[padLen+len(x)+i] = 2*x[len(x)-1] - x[len(x)-2-i]
	}
	return out
}

func reverse(x []float64) {
	for i, j := 0, len(x)-1; i < j; i, j = i+1, j-1 {
		x[i], x[j] = x[j], x[i]
	}
}

// applyDirectForm runs the direct-form-II-transposed difference equation.
func applyDirectForm(f digitalFilter, x []float64) []float64 {
	n := len(f.a)
	if len(f.b) > n {
		n = len(f.b)
	}
	b := padTo(f.b, n)
	a := padTo(f.a, n)

	w := make([]float64, n)
	out := make([]float64, len(x))
	for i, xi := range x {
		y := b[0]*xi + w[0]
		for j := 0; j < n-1; j++ {
			w[j] = b[j+1]*xi - a[j+1]*y + w[j+1]
		}
		out[i] = y
	}
	return out
}

func padTo(v []float64, n int) []float64 {
	if len(v) == n {
		return v
	}
	out := make([]float64, n)
	copy(out, v)
	return out
}
