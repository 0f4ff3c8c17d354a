package cosineproxy

import (
	"context"
	"fmt"
	"math"

	"github.com/kirillkom/compliance-copilot/internal/core/ports"
)

// Reranker approximates cross-encoder scoring with bi-encoder cosine
// similarity. It reuses whatever embedder the pipeline already runs,
// which makes it the fallback when no dedicated rerank service is
// deployed. Scores land in [-1, 1].
type Reranker struct {
	embedder ports.Embedder
}

func New(embedder ports.Embedder) *Reranker {
	return &Reranker{embedder: embedder}
}

func (r *Reranker) Score(ctx context.Context, query string, passages []string) ([]float64, error) {
	if len(passages) == 0 {
		return nil, nil
	}

	queryVec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed rerank query: %w", err)
	}
	passageVecs, err := r.embedder.EmbedBatch(ctx, passages)
	if err != nil {
		return nil, fmt.Errorf("embed rerank passages: %w", err)
	}
	if len(passageVecs) != len(passages) {
		return nil, fmt.Errorf("vectors/passages mismatch: %d/%d", len(passageVecs), len(passages))
	}

	scores := make([]float64, len(passages))
	for i, vec := range passageVecs {
		scores[i] = cosine(queryVec, vec)
	}
	return scores, nil
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
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
