// Package similarity provides pure vector math for comparing embedding vectors.
// None of the functions perform I/O.
package similarity

// SimilarityFunc computes a closeness score between two embedding vectors.
// Higher values indicate greater similarity.
type SimilarityFunc func(a, b []float32) float64
