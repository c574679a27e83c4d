package fingerprint

import "math"

const (
	chromaWindow        = 4096
	chromaHop           = chromaWindow / 4
	chromaMinFreq       = 80.0
	chromaMaxFreq       = 5000.0
	chromaClasses       = 12
	chromaSegments      = 12
	chromaLength        = chromaClasses * chromaSegments
	chromaMoveThreshold = 0.1
)

// chroma describes how each pitch class moves over time rather than how
// loud it is: for 12 time segments it records, per class, the fraction of
// frame-to-frame steps whose change exceeds chromaMoveThreshold.
func chroma(samples []float64, sampleRate int) Vector {
	classOf := make([]int, chromaWindow/2)
	for k := range classOf {
		classOf[k] = pitchClass(binFrequency(k, chromaWindow, sampleRate))
	}

	var frames [][chromaClasses]float64
	err := forEachFrame(padTo(samples, chromaWindow), chromaWindow, chromaHop, Hann(chromaWindow), func(_ int, mag []float64) {
		var c [chromaClasses]float64
		for k, m := range mag {
			if cls := classOf[k]; cls >= 0 {
				c[cls] += m
			}
		}
		var peak float64
		for _, v := range c {
			peak = math.Max(peak, v)
		}
		if peak > 0 {
			for i := range c {
				c[i] /= peak
			}
		}
		frames = append(frames, c)
	})

	out := make(Vector, chromaLength)
	if err != nil || len(frames) < 2 {
		return out
	}

	steps := len(frames) - 1
	for seg := 0; seg < chromaSegments; seg++ {
		lo, hi := seg*steps/chromaSegments, (seg+1)*steps/chromaSegments
		if hi <= lo {
			continue
		}
		for cls := 0; cls < chromaClasses; cls++ {
			moved := 0
			for t := lo; t < hi; t++ {
				if math.Abs(frames[t+1][cls]-frames[t][cls]) > chromaMoveThreshold {
					moved++
				}
			}
			out[seg*chromaClasses+cls] = float64(moved) / float64(hi-lo)
		}
	}
	return out
}

// pitchClass maps a frequency to 0..11 (C=0), or -1 outside the analysed range.
func pitchClass(freq float64) int {
	if freq < chromaMinFreq || freq > chromaMaxFreq {
		return -1
	}
	midi := int(math.Round(12*math.Log2(freq/440) + 69))
	return ((midi % 12) + 12) % 12
}
