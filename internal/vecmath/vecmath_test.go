package vecmath

import (
	"errors"
	"math"
	"testing"
)

const eps = 1e-6

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 2}, []float32{-1, -2}, -1},
		{"scaled", []float32{1, 1}, []float32{5, 5}, 1},
		{"diagonal", []float32{1, 0, 0}, []float32{0.7, 0.7, 0}, 1 / math.Sqrt2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CosineSimilarity(tt.a, tt.b)
			if err != nil {
				t.Fatalf("CosineSimilarity: %v", err)
			}
			if math.Abs(got-tt.want) > eps {
				t.Errorf("CosineSimilarity = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCosineSimilarity_SelfIsOne(t *testing.T) {
	vectors := [][]float32{
		{0.1, 0.2, 0.3},
		{-4, 7.5, 1e-3, 12},
		{1e-4, 1e-4},
		{3},
	}
	for _, v := range vectors {
		got, err := CosineSimilarity(v, v)
		if err != nil {
			t.Fatalf("CosineSimilarity(%v, %v): %v", v, v, err)
		}
		if math.Abs(got-1) > eps {
			t.Errorf("CosineSimilarity(%v, self) = %v, want 1", v, got)
		}
	}
}

func TestCosineSimilarity_Symmetric(t *testing.T) {
	a := []float32{0.3, -1.2, 4.4, 0}
	b := []float32{2.1, 0.5, -0.7, 9}
	ab, err := CosineSimilarity(a, b)
	if err != nil {
		t.Fatal(err)
	}
	ba, err := CosineSimilarity(b, a)
	if err != nil {
		t.Fatal(err)
	}
	if ab != ba {
		t.Errorf("cosine not symmetric: %v vs %v", ab, ba)
	}
	if ab < -1 || ab > 1 {
		t.Errorf("cosine out of range: %v", ab)
	}
}

func TestCosineSimilarity_DimensionMismatch(t *testing.T) {
	_, err := CosineSimilarity([]float32{1, 2, 3}, []float32{1, 2})
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Fatalf("err = %v, want ErrDimensionMismatch", err)
	}
	if want := "vecmath: dimension mismatch: 3 vs 2"; err.Error() != want {
		t.Errorf("err = %q, want %q", err.Error(), want)
	}
}

func TestCosineSimilarity_ZeroNorm(t *testing.T) {
	_, err := CosineSimilarity([]float32{0, 0}, []float32{1, 0})
	if !errors.Is(err, ErrUndefinedSimilarity) {
		t.Fatalf("err = %v, want ErrUndefinedSimilarity", err)
	}
	_, err = CosineSimilarity([]float32{1, 0}, []float32{0, 0})
	if !errors.Is(err, ErrUndefinedSimilarity) {
		t.Fatalf("err = %v, want ErrUndefinedSimilarity", err)
	}
	_, err = CosineSimilarity(nil, nil)
	if !errors.Is(err, ErrUndefinedSimilarity) {
		t.Fatalf("empty vectors: err = %v, want ErrUndefinedSimilarity", err)
	}
}

func TestEuclideanDistance(t *testing.T) {
	a := []float32{1, 2, 3}
	b := []float32{4, 6, 3}

	d, err := EuclideanDistance(a, b)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(d-5) > eps {
		t.Errorf("distance = %v, want 5", d)
	}

	back, _ := EuclideanDistance(b, a)
	if back != d {
		t.Errorf("distance not symmetric: %v vs %v", d, back)
	}

	self, _ := EuclideanDistance(a, a)
	if self != 0 {
		t.Errorf("distance(a, a) = %v, want 0", self)
	}

	if _, err := EuclideanDistance(a, []float32{1}); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("err = %v, want ErrDimensionMismatch", err)
	}
}

func TestNorm(t *testing.T) {
	if got := Norm([]float32{3, 4}); math.Abs(got-5) > eps {
		t.Errorf("Norm = %v, want 5", got)
	}
	if got := Norm(nil); got != 0 {
		t.Errorf("Norm(nil) = %v, want 0", got)
	}
	if got := Norm([]float32{-2}); got != 2 {
		t.Errorf("Norm([-2]) = %v, want 2", got)
	}
}

func TestNormalize(t *testing.T) {
	v := []float32{3, 4, 0}
	n, err := Normalize(v)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(Norm(n)-1) > eps {
		t.Errorf("Norm(Normalize(v)) = %v, want 1", Norm(n))
	}
	if math.Abs(float64(n[0])-0.6) > eps || math.Abs(float64(n[1])-0.8) > eps {
		t.Errorf("Normalize = %v, want [0.6 0.8 0]", n)
	}
	if v[0] != 3 || v[1] != 4 {
		t.Errorf("input mutated: %v", v)
	}

	if _, err := Normalize([]float32{0, 0, 0}); !errors.Is(err, ErrUndefinedSimilarity) {
		t.Errorf("err = %v, want ErrUndefinedSimilarity", err)
	}
}
