package usecase

import "math"

const groundednessScoreClamp = 20.0

// groundedness is a relevance-concentration heuristic over the top-k
// rerank scores, not a faithfulness measure: it says nothing about
// whether the generated answer is supported by the retrieved text.
// Scores are clamped, converted to softmax weights with the max
// subtracted for stability, and folded into the weights' self-weighted
// average (sum of squared weights). The result lies in (0, 1]: 1.0 when
// a single passage carries all relevance, 1/k when scores are even.
func groundedness(scores []float64) float64 {
	if len(scores) == 0 {
		return 0.0
	}

	maxScore := math.Inf(-1)
	clamped := make([]float64, len(scores))
	for i, s := range scores {
		if math.IsNaN(s) {
			s = 0
		}
		s = math.Max(-groundednessScoreClamp, math.Min(groundednessScoreClamp, s))
		clamped[i] = s
		if s > maxScore {
			maxScore = s
		}
	}

	var sum float64
	weights := make([]float64, len(clamped))
	for i, s := range clamped {
		weights[i] = math.Exp(s - maxScore)
		sum += weights[i]
	}

	var concentration float64
	for _, w := range weights {
		w /= sum
		concentration += w * w
	}
	return concentration
}
