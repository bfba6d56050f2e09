// Package feature holds the image feature vector and the similarity measure
// used to compare two vectors.
package feature

import "math"

// Vector is a fixed-length image embedding produced by an extractor.
// A Vector is never mutated after it has been produced.
type Vector []float32

// Dim returns the vector length.
func (v Vector) Dim() int { return len(v) }

// Clone returns an independent copy of the vector.
func (v Vector) Clone() Vector {
	if v == nil {
		return nil
	}
	c := make(Vector, len(v))
	copy(c, v)
	return c
}

// Cosine returns the cosine similarity of a and b.
// Vectors of different length, zero-norm vectors and NaN inputs score 0.
func Cosine(a, b Vector) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	s := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	if math.IsNaN(s) {
		return 0
	}
	return s
}
