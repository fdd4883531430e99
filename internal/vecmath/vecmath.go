// Package vecmath implements similarity and distance measures over
// fixed-length embedding vectors, plus ranking of candidates against a query.
//
// Inputs are []float32 as produced by embedding models; all accumulation is
// done in float64. Functions never mutate or retain their arguments.
package vecmath

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/floats"
)

var (
	// ErrDimensionMismatch is returned when two vectors have different lengths.
	ErrDimensionMismatch = errors.New("vecmath: dimension mismatch")
	// ErrEmptyInput is returned when a ranking operation receives no candidates.
	ErrEmptyInput = errors.New("vecmath: empty input")
	// ErrUndefinedSimilarity is returned when a vector has zero norm.
	ErrUndefinedSimilarity = errors.New("vecmath: undefined similarity")
)

// CosineSimilarity returns dot(a,b) / (‖a‖·‖b‖), a value in [-1, 1].
func CosineSimilarity(a, b []float32) (float64, error) {
	if err := checkDims(a, b); err != nil {
		return 0, err
	}
	fa, fb := widen(a), widen(b)
	na, nb := floats.Norm(fa, 2), floats.Norm(fb, 2)
	if na == 0 || nb == 0 {
		return 0, fmt.Errorf("%w: zero-norm vector (norms %g, %g)", ErrUndefinedSimilarity, na, nb)
	}
	sim := floats.Dot(fa, fb) / (na * nb)
	// rounding can push parallel vectors slightly past the bounds
	if sim > 1 {
		sim = 1
	} else if sim < -1 {
		sim = -1
	}
	return sim, nil
}

// EuclideanDistance returns the L2 distance between a and b.
func EuclideanDistance(a, b []float32) (float64, error) {
	if err := checkDims(a, b); err != nil {
		return 0, err
	}
	return floats.Distance(widen(a), widen(b), 2), nil
}

// Norm returns the L2 norm of v. The norm of an empty vector is 0.
func Norm(v []float32) float64 {
	return floats.Norm(widen(v), 2)
}

// Normalize returns a new unit-length vector pointing in the direction of v.
func Normalize(v []float32) ([]float32, error) {
	n := Norm(v)
	if n == 0 {
		return nil, fmt.Errorf("%w: cannot normalize zero-norm vector of length %d", ErrUndefinedSimilarity, len(v))
	}
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / n)
	}
	return out, nil
}

func checkDims(a, b []float32) error {
	if len(a) != len(b) {
		return fmt.Errorf("%w: %d vs %d", ErrDimensionMismatch, len(a), len(b))
	}
	return nil
}

func widen(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}
