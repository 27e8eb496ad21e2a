// Package vectormath provides the small numeric primitives the memory
// engine is built on: cosine similarity over embedding vectors, the
// sigmoid squash used by the gate score, Box-Muller Gaussian noise, and
// identifier normalization for agent/user slugs.
package vectormath

import (
	"math"
	"math/rand"
	"regexp"
	"strings"
)

// Cosine returns the cosine similarity of a and b in [-1, 1].
// Mismatched lengths or zero-magnitude vectors yield 0.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// Sigmoid returns 1 / (1 + e^-x).
func Sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

// GaussianNoise draws a sample from N(mean, stddev²) via Box-Muller.
func GaussianNoise(mean, stddev float64) float64 {
	u1 := rand.Float64()
	u2 := rand.Float64()
	for u1 == 0 {
		u1 = rand.Float64()
	}
	z := math.Sqrt(-2*math.Log(u1)) * math.Cos(2*math.Pi*u2)
	return mean + stddev*z
}

var slugRe = regexp.MustCompile(`[^a-z0-9_-]+`)

// NormalizeID lowercases an identifier and collapses anything that is not
// [a-z0-9_-] into single hyphens. Returns "" for inputs with no usable
// characters, which callers treat as invalid.
func NormalizeID(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = slugRe.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	return s
}
