package fingerprint

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// MismatchRatio is the relative length difference above which two vectors
// are suspected to come from different algorithms.
const MismatchRatio = 0.5

// Similarity is the cosine similarity of a and b over their common prefix.
// Empty or all-zero input scores 0.
func Similarity(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	if n == 0 {
		return 0
	}
	a, b = a[:n], b[:n]

	na, nb := floats.Norm(a, 2), floats.Norm(b, 2)
	if na == 0 || nb == 0 {
		return 0
	}
	s := floats.Dot(a, b) / (na * nb)
	switch {
	case math.IsNaN(s):
		return 0
	case s > 1:
		return 1
	case s < -1:
		return -1
	}
	return s
}

// LengthMismatch reports whether the lengths of a and b differ by more than
// MismatchRatio of the longer one.
func LengthMismatch(a, b []float64) bool {
	la, lb := len(a), len(b)
	if la == lb {
		return false
	}
	longer, diff := la, la-lb
	if lb > la {
		longer, diff = lb, lb-la
	}
	return float64(diff) > MismatchRatio*float64(longer)
}
