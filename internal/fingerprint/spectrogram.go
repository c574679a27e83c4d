package fingerprint

import (
	"errors"
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
)

// Hann returns a symmetric Hann window of length n.
func Hann(n int) []float64 {
	w := make([]float64, n)
	if n == 1 {
		w[0] = 1
		return w
	}
	for i := 0; i < n; i++ {
		w[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(n-1))
	}
	return w
}

func FFTReal(frame []float64) []complex128 {
	return fft.FFTReal(frame)
}

// MagnitudeSpectrum keeps the non-negative frequency half of spectrum.
func MagnitudeSpectrum(spectrum []complex128) []float64 {
	half := len(spectrum) / 2
	mag := make([]float64, half)
	for i := 0; i < half; i++ {
		mag[i] = cmplx.Abs(spectrum[i])
	}
	return mag
}

// forEachFrame streams one magnitude frame per hop to fn. samples must hold
// at least one full window; callers pad short input with padTo.
func forEachFrame(samples []float64, windowSize, hopSize int, window []float64, fn func(idx int, mag []float64)) error {
	if len(window) != windowSize {
		return errors.New("window length must equal windowSize")
	}
	if hopSize <= 0 {
		return errors.New("hop size must be positive")
	}
	if len(samples) < windowSize {
		return errors.New("input shorter than window size")
	}

	frame := make([]float64, windowSize)
	idx := 0
	for start := 0; start+windowSize <= len(samples); start += hopSize {
		for i := 0; i < windowSize; i++ {
			frame[i] = samples[start+i] * window[i]
		}
		fn(idx, MagnitudeSpectrum(FFTReal(frame)))
		idx++
	}
	return nil
}

func frameCount(n, windowSize, hopSize int) int {
	if n < windowSize || hopSize <= 0 {
		return 0
	}
	return (n-windowSize)/hopSize + 1
}

// padTo returns samples zero-extended to at least n values.
func padTo(samples []float64, n int) []float64 {
	if len(samples) >= n {
		return samples
	}
	out := make([]float64, n)
	copy(out, samples)
	return out
}

// binFrequency is the centre frequency of FFT bin k.
func binFrequency(k, windowSize, sampleRate int) float64 {
	return float64(k) * float64(sampleRate) / float64(windowSize)
}
