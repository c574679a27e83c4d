package fingerprint

const (
	spectralBands      = 12
	spectralMaxLength  = 144
	spectralMinSegment = 1024
)

// spectral is the default algorithm: per-segment band energy profiles,
// each normalised to sum to one so recording level does not matter.
func spectral(samples []float64, sampleRate int) Vector {
	segment := sampleRate / 2
	if eighth := len(samples) / 8; eighth < segment {
		segment = eighth
	}
	if segment < spectralMinSegment {
		segment = spectralMinSegment
	}
	hop := segment / 4

	samples = padTo(samples, segment)
	features := make([]float64, 0, frameCount(len(samples), segment, hop)*spectralBands)
	err := forEachFrame(samples, segment, hop, Hann(segment), func(_ int, mag []float64) {
		bands := bandSums(mag, spectralBands)
		var total float64
		for _, b := range bands {
			total += b
		}
		if total > 0 {
			for i := range bands {
				bands[i] /= total
			}
		}
		features = append(features, bands...)
	})
	if err != nil {
		return nil
	}
	return blockAverage(features, spectralMaxLength)
}

// bandSums splits mag into n contiguous, near-equal ranges and sums each.
func bandSums(mag []float64, n int) []float64 {
	out := make([]float64, n)
	bins := len(mag)
	for b := 0; b < n; b++ {
		lo, hi := b*bins/n, (b+1)*bins/n
		for k := lo; k < hi; k++ {
			out[b] += mag[k]
		}
	}
	return out
}

// blockAverage shrinks v to at most max values by averaging contiguous blocks.
func blockAverage(v []float64, max int) Vector {
	n := len(v)
	if n <= max {
		out := make(Vector, n)
		copy(out, v)
		return out
	}
	out := make(Vector, max)
	for i := 0; i < max; i++ {
		lo, hi := i*n/max, (i+1)*n/max
		var sum float64
		for _, x := range v[lo:hi] {
			sum += x
		}
		out[i] = sum / float64(hi-lo)
	}
	return out
}
