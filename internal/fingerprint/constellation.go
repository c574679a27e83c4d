package fingerprint

import (
	"math"
	"sort"
)

const (
	constellationWindow      = 2048
	constellationHop         = constellationWindow / 4
	constellationMinFreq     = 300.0
	constellationMaxFreq     = 2000.0
	constellationPeakRatio   = 0.3
	constellationPeaksFrame  = 5
	constellationTargetZone  = 10 // frames
	constellationFanOut      = 8
	constellationHashSpace   = 65536
	constellationDeltaFactor = 4096
	constellationLength      = 256
)

type peak struct {
	bin int
	mag float64
}

// constellation pairs spectral peaks within a short time window into
// landmark hashes, audfprint style, and resamples them to a fixed length.
func constellation(samples []float64, sampleRate int) Vector {
	lo := int(math.Ceil(constellationMinFreq * constellationWindow / float64(sampleRate)))
	hi := int(math.Floor(constellationMaxFreq * constellationWindow / float64(sampleRate)))
	if lo < 1 {
		lo = 1
	}
	if hi > constellationWindow/2-2 {
		hi = constellationWindow/2 - 2
	}
	if hi < lo {
		return make(Vector, constellationLength)
	}

	var framePeaks [][]peak
	err := forEachFrame(padTo(samples, constellationWindow), constellationWindow, constellationHop, Hann(constellationWindow), func(_ int, mag []float64) {
		framePeaks = append(framePeaks, pickPeaks(mag, lo, hi))
	})
	if err != nil {
		return make(Vector, constellationLength)
	}

	var hashes []float64
	for t, anchors := range framePeaks {
		for _, a := range anchors {
			paired := 0
			for dt := 1; dt <= constellationTargetZone && t+dt < len(framePeaks) && paired < constellationFanOut; dt++ {
				for _, b := range framePeaks[t+dt] {
					if paired >= constellationFanOut {
						break
					}
					freqHash := ((a.bin-lo)&63)<<6 | ((b.bin - lo) & 63)
					h := (freqHash + dt*constellationDeltaFactor) % constellationHashSpace
					hashes = append(hashes, float64(h)/constellationHashSpace)
					paired++
				}
			}
		}
	}
	return resample(hashes, constellationLength)
}

// pickPeaks returns up to constellationPeaksFrame local maxima in [lo, hi]
// that exceed constellationPeakRatio of the frame's strongest bin, ordered
// by bin.
func pickPeaks(mag []float64, lo, hi int) []peak {
	var frameMax float64
	for k := lo; k <= hi; k++ {
		frameMax = math.Max(frameMax, mag[k])
	}
	if frameMax <= 0 {
		return nil
	}

	floor := constellationPeakRatio * frameMax
	var peaks []peak
	for k := lo; k <= hi; k++ {
		m := mag[k]
		if m > floor && m > mag[k-1] && m >= mag[k+1] {
			peaks = append(peaks, peak{bin: k, mag: m})
		}
	}

	sort.Slice(peaks, func(i, j int) bool {
		if peaks[i].mag != peaks[j].mag {
			return peaks[i].mag > peaks[j].mag
		}
		return peaks[i].bin < peaks[j].bin
	})
	if len(peaks) > constellationPeaksFrame {
		peaks = peaks[:constellationPeaksFrame]
	}
	sort.Slice(peaks, func(i, j int) bool { return peaks[i].bin < peaks[j].bin })
	return peaks
}

// resample strides over v to produce exactly n values; short input is
// padded by cycling through it, empty input gives zeros.
func resample(v []float64, n int) Vector {
	out := make(Vector, n)
	if len(v) == 0 {
		return out
	}
	if len(v) >= n {
		for i := range out {
			out[i] = v[i*len(v)/n]
		}
		return out
	}
	for i := range out {
		out[i] = v[i%len(v)]
	}
	return out
}
