package usecase

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/kirillkom/compliance-copilot/internal/core/domain"
)

// retrievalStep is one attempt in the fallback cascade. Steps run in
// order; the first non-empty result wins.
type retrievalStep struct {
	name string
	run  func(ctx context.Context) ([]domain.ScoredChunk, error)
}

func (uc *QueryUseCase) retrieve(
	ctx context.Context,
	queryVector []float32,
	queryText, sourceFilter string,
) ([]domain.ScoredChunk, string, error) {
	for _, step := range uc.retrievalPlan(queryVector, queryText, sourceFilter) {
		chunks, err := step.run(ctx)
		if err != nil {
			return nil, step.name, fmt.Errorf("retrieval step %s: %w", step.name, err)
		}
		if len(chunks) > 0 {
			return chunks, step.name, nil
		}
	}
	return nil, "", nil
}

// retrievalPlan builds the declarative fallback ladder. Without a
// source filter only the unfiltered hybrid search applies.
func (uc *QueryUseCase) retrievalPlan(queryVector []float32, queryText, sourceFilter string) []retrievalStep {
	hybrid := func(alpha float64, filter domain.ChunkFilter) func(context.Context) ([]domain.ScoredChunk, error) {
		return func(ctx context.Context) ([]domain.ScoredChunk, error) {
			return uc.store.HybridSearch(ctx, domain.HybridQuery{
				Vector: queryVector,
				Text:   queryText,
				Alpha:  alpha,
				Limit:  uc.opts.CandidateLimit,
				Filter: filter,
			})
		}
	}

	unfiltered := retrievalStep{
		name: "hybrid_unfiltered",
		run:  hybrid(uc.opts.HybridAlpha, domain.ChunkFilter{}),
	}
	if sourceFilter == "" {
		return []retrievalStep{unfiltered}
	}

	base := filepath.Base(sourceFilter)
	return []retrievalStep{
		{name: "hybrid_basename", run: hybrid(uc.opts.HybridAlpha, domain.ChunkFilter{Source: base})},
		{name: "keyword_basename", run: hybrid(0, domain.ChunkFilter{Source: base})},
		{name: "hybrid_raw_path", run: hybrid(uc.opts.HybridAlpha, domain.ChunkFilter{Source: sourceFilter})},
		unfiltered,
		{
			name: "fetch_by_source",
			run: func(ctx context.Context) ([]domain.ScoredChunk, error) {
				return uc.store.Fetch(ctx, domain.ChunkFilter{Source: base}, uc.opts.CandidateLimit)
			},
		},
		{
			name: "fetch_broad",
			run: func(ctx context.Context) ([]domain.ScoredChunk, error) {
				chunks, err := uc.store.Fetch(ctx, domain.ChunkFilter{}, uc.opts.BroadFetchLimit)
				if err != nil {
					return nil, err
				}
				return filterBySource(chunks, sourceFilter), nil
			},
		},
	}
}

func filterBySource(chunks []domain.ScoredChunk, sourceFilter string) []domain.ScoredChunk {
	out := make([]domain.ScoredChunk, 0, len(chunks))
	for _, chunk := range chunks {
		if matchesSource(chunk.Source, sourceFilter) {
			out = append(out, chunk)
		}
	}
	return out
}

// matchesSource accepts the filter verbatim, its basename, or a
// substring overlap in either direction with the basename.
func matchesSource(source, want string) bool {
	if source == "" || want == "" {
		return false
	}
	if source == want {
		return true
	}
	base := filepath.Base(want)
	return source == base || strings.Contains(source, base) || strings.Contains(base, source)
}
