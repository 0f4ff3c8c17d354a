package usecase

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/kirillkom/compliance-copilot/internal/core/domain"
	"github.com/kirillkom/compliance-copilot/internal/core/ports"
)

// NoResultsAnswer is returned verbatim when every retrieval attempt
// comes back empty.
const NoResultsAnswer = "No results found."

type QueryOptions struct {
	TopK            int
	CandidateLimit  int
	BroadFetchLimit int
	HybridAlpha     float64
}

func (o QueryOptions) normalize() QueryOptions {
	out := o
	if out.TopK <= 0 {
		out.TopK = 3
	}
	if out.CandidateLimit <= 0 {
		out.CandidateLimit = 50
	}
	if out.BroadFetchLimit <= 0 {
		out.BroadFetchLimit = 100
	}
	if out.HybridAlpha <= 0 || out.HybridAlpha > 1 {
		out.HybridAlpha = 0.5
	}
	return out
}

type QueryUseCase struct {
	embedder  ports.Embedder
	store     ports.VectorStore
	reranker  ports.Reranker
	generator ports.AnswerGenerator
	redactor  ports.Redactor
	opts      QueryOptions
}

func NewQueryUseCase(
	embedder ports.Embedder,
	store ports.VectorStore,
	reranker ports.Reranker,
	generator ports.AnswerGenerator,
	redactor ports.Redactor,
	opts QueryOptions,
) *QueryUseCase {
	return &QueryUseCase{
		embedder:  embedder,
		store:     store,
		reranker:  reranker,
		generator: generator,
		redactor:  redactor,
		opts:      opts.normalize(),
	}
}

// Query runs the full pipeline: embed, cascading retrieval, rerank,
// dedupe, redact, generate, groundedness. No state survives the call.
func (uc *QueryUseCase) Query(
	ctx context.Context,
	question, sourceFilter string,
	strictPrivacy bool,
) (*domain.QueryResult, error) {
	if strings.TrimSpace(question) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "query", fmt.Errorf("empty question"))
	}

	queryVector, err := uc.embedder.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	candidates, stepUsed, err := uc.retrieve(ctx, queryVector, question, sourceFilter)
	if err != nil {
		return nil, fmt.Errorf("retrieve candidates: %w", err)
	}
	if sourceFilter != "" {
		// Guard against any upstream filter miss.
		candidates = filterBySource(candidates, sourceFilter)
	}
	if len(candidates) == 0 {
		return &domain.QueryResult{
			Answer:       NoResultsAnswer,
			Citations:    []domain.Citation{},
			TraceID:      uuid.NewString(),
			Groundedness: 0.0,
		}, nil
	}

	passages := make([]string, len(candidates))
	for i := range candidates {
		passages[i] = candidates[i].Content
	}
	scores, err := uc.reranker.Score(ctx, question, passages)
	if err != nil {
		return nil, fmt.Errorf("rerank candidates: %w", err)
	}
	if len(scores) != len(candidates) {
		return nil, fmt.Errorf("rerank scores/candidates mismatch: %d/%d", len(scores), len(candidates))
	}
	for i := range candidates {
		candidates[i].RerankScore = scores[i]
	}

	// Stable sort keeps original retrieval order among equal scores.
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].RerankScore > candidates[j].RerankScore
	})

	top := dedupeChunks(candidates)
	if len(top) > uc.opts.TopK {
		top = top[:uc.opts.TopK]
	}

	skipKinds := skipKindsForQuery(question, strictPrivacy)
	redacted := make([]string, len(top))
	for i := range top {
		redacted[i] = uc.redactor.Redact(ctx, top[i].Content, skipKinds)
	}

	system, user := buildAnswerPrompt(question, top, redacted)
	raw, err := uc.generator.Generate(ctx, system, user)
	if err != nil {
		return nil, fmt.Errorf("generate answer: %w", err)
	}
	answer := uc.redactor.Redact(ctx, raw, skipKinds)

	rerankScores := make([]float64, len(top))
	citations := make([]domain.Citation, len(top))
	for i := range top {
		rerankScores[i] = top[i].RerankScore
		text := top[i].Content
		if strictPrivacy {
			text = redacted[i]
		}
		citations[i] = domain.Citation{
			Source:     top[i].Source,
			PageNumber: top[i].PageNumber,
			Text:       text,
			Score:      top[i].RerankScore,
		}
	}

	return &domain.QueryResult{
		Answer:        answer,
		Citations:     citations,
		TraceID:       uuid.NewString(),
		Groundedness:  groundedness(rerankScores),
		RetrievalStep: stepUsed,
	}, nil
}

// dedupeChunks drops candidates sharing an identical
// (source, page_number, content) triple, keeping the first occurrence.
func dedupeChunks(chunks []domain.ScoredChunk) []domain.ScoredChunk {
	seen := make(map[string]struct{}, len(chunks))
	out := make([]domain.ScoredChunk, 0, len(chunks))
	for _, chunk := range chunks {
		key := chunk.Key()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, chunk)
	}
	return out
}
