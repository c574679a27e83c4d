package fingerprint

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// Algorithm identifies one fingerprint extraction method. Vectors produced by
// different algorithms are never compared with each other.
type Algorithm string

const (
	Spectral      Algorithm = "spectral"
	Lightweight   Algorithm = "lightweight_stft"
	Chroma        Algorithm = "chroma"
	Constellation Algorithm = "constellation"
)

// DefaultAlgorithm is used when nothing else is configured, and is the id
// legacy single-fingerprint records are migrated under.
const DefaultAlgorithm = Spectral

var ErrUnknownAlgorithm = errors.New("unknown fingerprint algorithm")

// Vector is an algorithm-specific feature vector.
type Vector []float64

// Logger is the subset of pkg/logger used here.
type Logger interface {
	Debugf(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

type descriptor struct {
	length  int  // exact length when fixed, upper bound otherwise
	fixed   bool // spectral may return fewer values on short input
	compute func(samples []float64, sampleRate int) Vector
}

var registry = map[Algorithm]descriptor{
	Spectral:      {length: spectralMaxLength, fixed: false, compute: spectral},
	Lightweight:   {length: lightweightBands, fixed: true, compute: lightweight},
	Chroma:        {length: chromaLength, fixed: true, compute: chroma},
	Constellation: {length: constellationLength, fixed: true, compute: constellation},
}

// Algorithms returns every supported algorithm in a stable order.
func Algorithms() []Algorithm {
	return []Algorithm{Spectral, Lightweight, Chroma, Constellation}
}

// Parse resolves an algorithm id, accepting a few common aliases.
func Parse(s string) (Algorithm, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "spectral", "default":
		return Spectral, nil
	case "lightweight_stft", "lightweight", "stft":
		return Lightweight, nil
	case "chroma":
		return Chroma, nil
	case "constellation", "audfprint":
		return Constellation, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownAlgorithm, s)
}

func (a Algorithm) Valid() bool {
	_, ok := registry[a]
	return ok
}

// Length is the fixed length, or the upper bound for bounded algorithms.
func (a Algorithm) Length() int {
	return registry[a].length
}

func (a Algorithm) Fixed() bool {
	return registry[a].fixed
}

func (a Algorithm) String() string { return string(a) }

// Fallback is the fixed vector stored when extraction cannot produce a real
// one. It is all zeros so it never scores above 0 against anything.
func Fallback(a Algorithm) Vector {
	return make(Vector, a.Length())
}

// Extractor runs algorithms and guarantees a well-formed vector comes back.
type Extractor struct {
	log Logger
}

func NewExtractor(log Logger) *Extractor {
	return &Extractor{log: log}
}

// Compute runs one algorithm. The only error is ErrUnknownAlgorithm; panics
// inside the numeric code are logged and replaced by Fallback.
func (e *Extractor) Compute(a Algorithm, samples []float64, sampleRate int) (v Vector, err error) {
	desc, ok := registry[a]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, a)
	}
	if sampleRate <= 0 {
		e.warnf("%s: invalid sample rate %d, using fallback vector", a, sampleRate)
		return Fallback(a), nil
	}

	defer func() {
		if r := recover(); r != nil {
			e.errorf("%s: extraction panicked: %v; using fallback vector", a, r)
			v, err = Fallback(a), nil
		}
	}()

	v = desc.compute(samples, sampleRate)
	if len(v) == 0 || len(v) > desc.length || (desc.fixed && len(v) != desc.length) {
		e.errorf("%s: produced %d values (want %d), using fallback vector", a, len(v), desc.length)
		return Fallback(a), nil
	}
	if n := sanitize(v); n > 0 {
		e.warnf("%s: replaced %d non-finite values", a, n)
	}
	return v, nil
}

// ComputeAll runs each requested algorithm over the same samples.
func (e *Extractor) ComputeAll(algos []Algorithm, samples []float64, sampleRate int) (map[Algorithm]Vector, error) {
	out := make(map[Algorithm]Vector, len(algos))
	for _, a := range algos {
		v, err := e.Compute(a, samples, sampleRate)
		if err != nil {
			return nil, err
		}
		out[a] = v
	}
	return out, nil
}

func (e *Extractor) warnf(format string, args ...any) {
	if e != nil && e.log != nil {
		e.log.Warnf(format, args...)
	}
}

func (e *Extractor) errorf(format string, args ...any) {
	if e != nil && e.log != nil {
		e.log.Errorf(format, args...)
	}
}

// sanitize zeroes NaN and Inf in place and returns how many it touched.
func sanitize(v Vector) int {
	n := 0
	for i, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			v[i] = 0
			n++
		}
	}
	return n
}
