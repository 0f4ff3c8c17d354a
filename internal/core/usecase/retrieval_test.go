package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/kirillkom/compliance-copilot/internal/core/domain"
)

func TestRetrieveUnfilteredOnlyWithoutSource(t *testing.T) {
	store := &fakeVectorStore{}
	uc := newTestQueryUseCase(store, &stubReranker{}, &stubGenerator{}, &markingRedactor{})

	_, step, err := uc.retrieve(context.Background(), []float32{1}, "q", "")
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if step != "" {
		t.Fatalf("expected no winning step, got %q", step)
	}
	if len(store.hybridCalls) != 1 {
		t.Fatalf("expected a single hybrid call, got %d", len(store.hybridCalls))
	}
	if store.hybridCalls[0].Filter.Source != "" {
		t.Fatalf("expected unfiltered call, got filter %q", store.hybridCalls[0].Filter.Source)
	}
	if len(store.fetchCalls) != 0 {
		t.Fatalf("fetch steps must not run without a source filter, got %d calls", len(store.fetchCalls))
	}
}

func TestRetrieveCascadeOrderWithSource(t *testing.T) {
	store := &fakeVectorStore{
		fetchFn: func(filter domain.ChunkFilter, _ int) ([]domain.ScoredChunk, error) {
			if filter.Source != "" {
				return nil, nil
			}
			return []domain.ScoredChunk{
				scored("match", "policy.pdf", 1),
				scored("noise", "other.pdf", 1),
			}, nil
		},
	}
	uc := newTestQueryUseCase(store, &stubReranker{}, &stubGenerator{}, &markingRedactor{})

	chunks, step, err := uc.retrieve(context.Background(), []float32{1}, "q", "/uploads/policy.pdf")
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if step != "fetch_broad" {
		t.Fatalf("expected fetch_broad to win, got %q", step)
	}

	if len(store.hybridCalls) != 4 {
		t.Fatalf("expected 4 hybrid attempts, got %d", len(store.hybridCalls))
	}
	if got := store.hybridCalls[0].Filter.Source; got != "policy.pdf" {
		t.Fatalf("step 1 must filter on the basename, got %q", got)
	}
	if store.hybridCalls[0].Alpha != 0.5 {
		t.Fatalf("step 1 alpha: got %v, want 0.5", store.hybridCalls[0].Alpha)
	}
	if store.hybridCalls[1].Alpha != 0 || store.hybridCalls[1].Filter.Source != "policy.pdf" {
		t.Fatalf("step 2 must be keyword-only over the basename, got alpha=%v filter=%q",
			store.hybridCalls[1].Alpha, store.hybridCalls[1].Filter.Source)
	}
	if got := store.hybridCalls[2].Filter.Source; got != "/uploads/policy.pdf" {
		t.Fatalf("step 3 must use the raw path, got %q", got)
	}
	if store.hybridCalls[3].Filter.Source != "" {
		t.Fatalf("step 4 must be unfiltered, got %q", store.hybridCalls[3].Filter.Source)
	}

	if len(store.fetchCalls) != 2 {
		t.Fatalf("expected 2 fetch attempts, got %d", len(store.fetchCalls))
	}
	if store.fetchCalls[0].filter.Source != "policy.pdf" || store.fetchCalls[0].limit != 50 {
		t.Fatalf("step 5 fetch: got %+v", store.fetchCalls[0])
	}
	if store.fetchCalls[1].filter.Source != "" || store.fetchCalls[1].limit != 100 {
		t.Fatalf("step 6 broad fetch: got %+v", store.fetchCalls[1])
	}

	// The broad fetch filters client-side on the requested source.
	if len(chunks) != 1 || chunks[0].Source != "policy.pdf" {
		t.Fatalf("expected only policy.pdf chunks, got %#v", chunks)
	}
}

func TestRetrieveFirstNonEmptyStepWins(t *testing.T) {
	store := &fakeVectorStore{
		hybridFn: func(q domain.HybridQuery) ([]domain.ScoredChunk, error) {
			if q.Alpha == 0 && q.Filter.Source == "policy.pdf" {
				return []domain.ScoredChunk{scored("keyword hit", "policy.pdf", 2)}, nil
			}
			return nil, nil
		},
	}
	uc := newTestQueryUseCase(store, &stubReranker{}, &stubGenerator{}, &markingRedactor{})

	chunks, step, err := uc.retrieve(context.Background(), []float32{1}, "q", "policy.pdf")
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if step != "keyword_basename" {
		t.Fatalf("expected keyword_basename, got %q", step)
	}
	if len(chunks) != 1 || chunks[0].Content != "keyword hit" {
		t.Fatalf("unexpected chunks: %#v", chunks)
	}
	if len(store.hybridCalls) != 2 {
		t.Fatalf("later steps must not run after a hit, got %d hybrid calls", len(store.hybridCalls))
	}
}

func TestRetrieveStopsOnStepError(t *testing.T) {
	storeErr := errors.New("store down")
	store := &fakeVectorStore{
		hybridFn: func(domain.HybridQuery) ([]domain.ScoredChunk, error) {
			return nil, storeErr
		},
	}
	uc := newTestQueryUseCase(store, &stubReranker{}, &stubGenerator{}, &markingRedactor{})

	_, _, err := uc.retrieve(context.Background(), []float32{1}, "q", "policy.pdf")
	if !errors.Is(err, storeErr) {
		t.Fatalf("expected store error, got %v", err)
	}
	if len(store.hybridCalls) != 1 {
		t.Fatalf("errors must stop the cascade, got %d calls", len(store.hybridCalls))
	}
}

func TestMatchesSource(t *testing.T) {
	cases := []struct {
		source, want string
		match        bool
	}{
		{"policy.pdf", "policy.pdf", true},
		{"policy.pdf", "/uploads/policy.pdf", true},
		{"archive/policy.pdf", "policy.pdf", true},
		{"policy", "policy.pdf", true},
		{"other.pdf", "policy.pdf", false},
		{"", "policy.pdf", false},
		{"policy.pdf", "", false},
	}
	for _, tc := range cases {
		if got := matchesSource(tc.source, tc.want); got != tc.match {
			t.Fatalf("matchesSource(%q, %q) = %v, want %v", tc.source, tc.want, got, tc.match)
		}
	}
}
