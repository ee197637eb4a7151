package llm

import (
	"math"
	"testing"
)

func TestCosineSimilarity(t *testing.T) {
	a := []float64{1, 0, 0}
	b := []float64{1, 0, 0}
	if got := CosineSimilarity(a, b); math.Abs(got-1.0) > 1e-9 {
		t.Errorf("Expected identical vectors to score 1.0, got %f", got)
	}

	c := []float64{0, 1, 0}
	if got := CosineSimilarity(a, c); math.Abs(got) > 1e-9 {
		t.Errorf("Expected orthogonal vectors to score 0.0, got %f", got)
	}

	d := []float64{-1, 0, 0}
	if got := CosineSimilarity(a, d); math.Abs(got+1.0) > 1e-9 {
		t.Errorf("Expected opposite vectors to score -1.0, got %f", got)
	}
}

func TestCosineSimilarityEdgeCases(t *testing.T) {
	if got := CosineSimilarity([]float64{1, 2}, []float64{1, 2, 3}); got != 0 {
		t.Errorf("Expected 0 for mismatched lengths, got %f", got)
	}
	if got := CosineSimilarity([]float64{0, 0}, []float64{1, 1}); got != 0 {
		t.Errorf("Expected 0 for zero-norm vector, got %f", got)
	}
}
