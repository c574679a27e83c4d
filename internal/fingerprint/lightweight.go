package fingerprint

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

const (
	lightweightTargetRate = 11025
	lightweightWindow     = 2048
	lightweightHop        = lightweightWindow / 4
	lightweightBands      = 32
	lightweightMinFreq    = 60.0
	lightweightMaxFreq    = 6000.0
	lightweightKeepSecs   = 60
)

// lightweight is a cheap 32-band log-spaced energy profile of the middle
// minute of the recording, unit length.
func lightweight(samples []float64, sampleRate int) Vector {
	factor := int(math.Round(float64(sampleRate) / lightweightTargetRate))
	if factor < 1 {
		factor = 1
	}
	x := decimate(samples, factor)
	rate := sampleRate / factor

	if keep := lightweightKeepSecs * rate; len(x) > keep {
		start := (len(x) - keep) / 2
		x = x[start : start+keep]
	}

	out := make(Vector, lightweightBands)
	hi := math.Min(lightweightMaxFreq, float64(rate)/2)
	if hi <= lightweightMinFreq {
		return out
	}

	bandOf := logBandMap(lightweightWindow/2, lightweightWindow, rate, lightweightMinFreq, hi, lightweightBands)
	frames := 0
	err := forEachFrame(padTo(x, lightweightWindow), lightweightWindow, lightweightHop, Hann(lightweightWindow), func(_ int, mag []float64) {
		frames++
		for k, m := range mag {
			if b := bandOf[k]; b >= 0 {
				out[b] += m * m
			}
		}
	})
	if err != nil || frames == 0 {
		return out
	}

	for b := range out {
		out[b] = math.Log1p(out[b] / float64(frames))
	}
	if norm := floats.Norm(out, 2); norm > 0 {
		floats.Scale(1/norm, out)
	}
	return out
}

// decimate low-passes with a box filter of width factor and keeps one
// sample per block.
func decimate(samples []float64, factor int) []float64 {
	if factor <= 1 {
		return samples
	}
	out := make([]float64, 0, len(samples)/factor+1)
	for start := 0; start < len(samples); start += factor {
		end := start + factor
		if end > len(samples) {
			end = len(samples)
		}
		var sum float64
		for _, s := range samples[start:end] {
			sum += s
		}
		out = append(out, sum/float64(end-start))
	}
	return out
}

// logBandMap assigns each of bins FFT bins to one of n log-spaced bands
// between lo and hi Hz, or -1 when the bin is outside the range.
func logBandMap(bins, windowSize, sampleRate int, lo, hi float64, n int) []int {
	ratio := math.Log(hi / lo)
	bandOf := make([]int, bins)
	for k := range bandOf {
		f := binFrequency(k, windowSize, sampleRate)
		if f < lo || f >= hi {
			bandOf[k] = -1
			continue
		}
		b := int(float64(n) * math.Log(f/lo) / ratio)
		if b >= n {
			b = n - 1
		}
		bandOf[k] = b
	}
	return bandOf
}
