package memstore

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/kirillkom/compliance-copilot/internal/core/domain"
)

const keywordTFSaturation = 1.2

// Store is the in-process fallback used when the real vector store is
// unreachable at startup. Data lives only as long as the process.
// Hybrid scoring blends cosine similarity with a saturated term
// frequency overlap, weighted by the query alpha like the server-side
// implementation.
type Store struct {
	mu     sync.RWMutex
	chunks []domain.EmbeddedChunk
}

func New() *Store {
	return &Store{}
}

func (s *Store) Upsert(ctx context.Context, chunks []domain.EmbeddedChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	s.mu.Lock()
	s.chunks = append(s.chunks, chunks...)
	s.mu.Unlock()
	return nil
}

func (s *Store) HybridSearch(ctx context.Context, query domain.HybridQuery) ([]domain.ScoredChunk, error) {
	if query.Limit <= 0 {
		return nil, nil
	}
	queryTokens := tokenizeAlphaNum(query.Text)

	s.mu.RLock()
	scored := make([]domain.ScoredChunk, 0, len(s.chunks))
	for _, chunk := range s.chunks {
		if query.Filter.Source != "" && chunk.Source != query.Filter.Source {
			continue
		}
		dense := cosine(query.Vector, chunk.Vector)
		sparse := keywordScore(queryTokens, chunk.Content)
		scored = append(scored, domain.ScoredChunk{
			Chunk:          chunk.Chunk,
			RetrievalScore: query.Alpha*dense + (1-query.Alpha)*sparse,
		})
	}
	s.mu.RUnlock()

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].RetrievalScore > scored[j].RetrievalScore
	})
	if len(scored) > query.Limit {
		scored = scored[:query.Limit]
	}
	return scored, nil
}

func (s *Store) Fetch(ctx context.Context, filter domain.ChunkFilter, limit int) ([]domain.ScoredChunk, error) {
	if limit <= 0 {
		return nil, nil
	}

	s.mu.RLock()
	out := make([]domain.ScoredChunk, 0, len(s.chunks))
	for _, chunk := range s.chunks {
		if filter.Source != "" && chunk.Source != filter.Source {
			continue
		}
		out = append(out, domain.ScoredChunk{Chunk: chunk.Chunk})
	}
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].PageNumber < out[j].PageNumber
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// keywordScore is a BM25-flavored term frequency overlap normalized by
// query length, landing in [0, 1].
func keywordScore(queryTokens []string, content string) float64 {
	if len(queryTokens) == 0 {
		return 0
	}
	contentFreq := make(map[string]float64, 32)
	for _, token := range tokenizeAlphaNum(content) {
		contentFreq[token]++
	}

	var total float64
	for _, token := range queryTokens {
		tf := contentFreq[token]
		total += (tf * (keywordTFSaturation + 1)) / (tf + keywordTFSaturation)
	}
	return total / float64(len(queryTokens)) / (keywordTFSaturation + 1)
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

func tokenizeAlphaNum(s string) []string {
	if s == "" {
		return nil
	}
	out := make([]string, 0, 24)
	var b strings.Builder
	for _, r := range s {
		r = unicode.ToLower(r)
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			continue
		}
		if b.Len() > 0 {
			out = append(out, b.String())
			b.Reset()
		}
	}
	if b.Len() > 0 {
		out = append(out, b.String())
	}
	return out
}
