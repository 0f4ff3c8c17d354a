package memstore

import (
	"context"
	"testing"

	"github.com/kirillkom/compliance-copilot/internal/core/domain"
)

func seed(t *testing.T, s *Store) {
	t.Helper()
	err := s.Upsert(context.Background(), []domain.EmbeddedChunk{
		{Chunk: domain.Chunk{Content: "data retention schedule", Source: "policy.pdf", PageNumber: 3}, Vector: []float32{1, 0}},
		{Chunk: domain.Chunk{Content: "incident response runbook", Source: "runbook.pdf", PageNumber: 1}, Vector: []float32{0, 1}},
		{Chunk: domain.Chunk{Content: "retention exceptions for legal hold", Source: "policy.pdf", PageNumber: 7}, Vector: []float32{0.9, 0.1}},
	})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
}

func TestHybridSearchRanksVectorAndKeywordMatches(t *testing.T) {
	s := New()
	seed(t, s)

	got, err := s.HybridSearch(context.Background(), domain.HybridQuery{
		Vector: []float32{1, 0},
		Text:   "retention",
		Alpha:  0.5,
		Limit:  10,
	})
	if err != nil {
		t.Fatalf("HybridSearch: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 hits, got %d", len(got))
	}
	if got[0].Source != "policy.pdf" {
		t.Fatalf("expected policy chunk first, got %s", got[0].Source)
	}
	if got[0].RetrievalScore < got[1].RetrievalScore {
		t.Fatal("results not sorted by score")
	}
}

func TestHybridSearchSourceFilter(t *testing.T) {
	s := New()
	seed(t, s)

	got, err := s.HybridSearch(context.Background(), domain.HybridQuery{
		Vector: []float32{1, 0},
		Text:   "retention",
		Alpha:  0.5,
		Limit:  10,
		Filter: domain.ChunkFilter{Source: "runbook.pdf"},
	})
	if err != nil {
		t.Fatalf("HybridSearch: %v", err)
	}
	if len(got) != 1 || got[0].Source != "runbook.pdf" {
		t.Fatalf("filter not applied: %v", got)
	}
}

func TestHybridSearchKeywordOnly(t *testing.T) {
	s := New()
	seed(t, s)

	// Alpha 0 ignores vectors entirely.
	got, err := s.HybridSearch(context.Background(), domain.HybridQuery{
		Vector: []float32{0, 1},
		Text:   "legal hold",
		Alpha:  0,
		Limit:  1,
	})
	if err != nil {
		t.Fatalf("HybridSearch: %v", err)
	}
	if len(got) != 1 || got[0].PageNumber != 7 {
		t.Fatalf("expected keyword match on page 7, got %v", got)
	}
}

func TestFetchSortsByPage(t *testing.T) {
	s := New()
	seed(t, s)

	got, err := s.Fetch(context.Background(), domain.ChunkFilter{Source: "policy.pdf"}, 50)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(got))
	}
	if got[0].PageNumber != 3 || got[1].PageNumber != 7 {
		t.Fatalf("not sorted by page: %v", got)
	}
}

func TestFetchLimit(t *testing.T) {
	s := New()
	seed(t, s)

	got, err := s.Fetch(context.Background(), domain.ChunkFilter{}, 2)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("limit not applied, got %d", len(got))
	}
}

func TestEmptyStore(t *testing.T) {
	s := New()
	got, err := s.HybridSearch(context.Background(), domain.HybridQuery{Vector: []float32{1}, Text: "x", Alpha: 0.5, Limit: 5})
	if err != nil {
		t.Fatalf("HybridSearch: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no hits, got %v", got)
	}
}
