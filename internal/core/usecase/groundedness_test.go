package usecase

import (
	"math"
	"testing"
)

func TestGroundednessEmptyScores(t *testing.T) {
	if got := groundedness(nil); got != 0.0 {
		t.Fatalf("expected 0.0 for no scores, got %v", got)
	}
}

func TestGroundednessSinglePassage(t *testing.T) {
	if got := groundedness([]float64{0.42}); got != 1.0 {
		t.Fatalf("expected 1.0 for a single passage, got %v", got)
	}
}

func TestGroundednessEvenScores(t *testing.T) {
	got := groundedness([]float64{2.0, 2.0, 2.0})
	want := 1.0 / 3.0
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("expected 1/k for even scores, got %v", got)
	}
}

func TestGroundednessDominantPassage(t *testing.T) {
	got := groundedness([]float64{10.0, -10.0, -10.0})
	if got < 0.99 {
		t.Fatalf("one dominant passage should drive the score near 1, got %v", got)
	}
}

func TestGroundednessRange(t *testing.T) {
	cases := [][]float64{
		{0.1, 0.2, 0.3},
		{-5, 0, 5},
		{100, 100}, // clamped, still even
		{-1000, 1000},
	}
	for _, scores := range cases {
		got := groundedness(scores)
		low := 1.0 / float64(len(scores))
		if got < low-1e-9 || got > 1.0+1e-9 {
			t.Fatalf("groundedness(%v) = %v, outside [1/k, 1]", scores, got)
		}
	}
}

func TestGroundednessClampNeutralizesExtremes(t *testing.T) {
	// Both pairs sit beyond the clamp, so their gap collapses to the
	// same clamped interval and the scores agree.
	a := groundedness([]float64{1000, -1000})
	b := groundedness([]float64{25, -25})
	if math.Abs(a-b) > 1e-9 {
		t.Fatalf("clamped extremes should score identically: %v vs %v", a, b)
	}
}

func TestGroundednessNaNTreatedAsZero(t *testing.T) {
	got := groundedness([]float64{math.NaN(), 0})
	want := groundedness([]float64{0, 0})
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("NaN must score as zero: got %v, want %v", got, want)
	}
}
