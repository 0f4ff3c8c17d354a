package ports

import (
	"context"
	"io"

	"github.com/kirillkom/compliance-copilot/internal/core/domain"
)

// DocumentRepository persists and reads document registry state.
type DocumentRepository interface {
	Create(ctx context.Context, doc *domain.Document) error
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus, errMessage string) error
	SaveCounts(ctx context.Context, id string, chunkCount, ocrPageCount int) error
}

// ObjectStorage stores uploaded source documents.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// MessageQueue publishes/consumes ingestion events.
type MessageQueue interface {
	PublishDocumentUploaded(ctx context.Context, documentID string) error
	SubscribeDocumentUploaded(ctx context.Context, handler func(context.Context, string) error) error
}

// DocumentParser extracts ordered per-page text and document-level
// metadata from a stored source file. Malformed input fails the parse
// as a whole; there is no partial extraction.
type DocumentParser interface {
	Parse(ctx context.Context, r io.Reader) (*domain.ParsedDocument, error)
}

// Chunker splits page text into overlapping chunks.
type Chunker interface {
	Split(text string) []string
}

// Embedder turns text into fixed-length vectors. EmbedBatch is
// order-preserving and 1:1 with its input. A backend is selected once
// at construction and never mixed within a call.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Reranker scores (query, passage) pairs, 1:1 with passages. Only the
// relative ordering within one call is meaningful; absolute scales
// differ between backends.
type Reranker interface {
	Score(ctx context.Context, query string, passages []string) ([]float64, error)
}

// VectorStore indexes embedded chunks and serves hybrid search and
// plain filtered fetches. Implementations perform no internal
// vectorization; vectors are always supplied by the caller.
type VectorStore interface {
	Upsert(ctx context.Context, chunks []domain.EmbeddedChunk) error
	HybridSearch(ctx context.Context, query domain.HybridQuery) ([]domain.ScoredChunk, error)
	Fetch(ctx context.Context, filter domain.ChunkFilter, limit int) ([]domain.ScoredChunk, error)
}

// AnswerGenerator runs one single-turn chat completion with
// deterministic sampling.
type AnswerGenerator interface {
	Generate(ctx context.Context, system, user string) (string, error)
}

// Redactor replaces detected PII spans with placeholder tokens. It
// never fails past its boundary: on any internal detector error the
// original text is returned unchanged.
type Redactor interface {
	Redact(ctx context.Context, text string, skipKinds []domain.EntityKind) string
}
