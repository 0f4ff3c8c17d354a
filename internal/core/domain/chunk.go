package domain

import "fmt"

// Chunk is the unit of storage and retrieval: a bounded span of one
// source document's text. PageNumber 0 is reserved for the synthetic
// document-level metadata chunk.
type Chunk struct {
	Content    string `json:"content"`
	Source     string `json:"source"`
	PageNumber int    `json:"page_number"`
}

// Key identifies a chunk for query-time deduplication. Duplicates
// across ingestions are expected and are not rejected at write time.
func (c Chunk) Key() string {
	return fmt.Sprintf("%s|%d|%s", c.Source, c.PageNumber, c.Content)
}

type EmbeddedChunk struct {
	Chunk
	Vector []float32 `json:"vector"`
}

// ScoredChunk exists only within one query's execution.
type ScoredChunk struct {
	Chunk
	RetrievalScore float64 `json:"retrieval_score"`
	RerankScore    float64 `json:"rerank_score"`
}

// Citation is the externally visible projection of a scored chunk.
type Citation struct {
	Source     string  `json:"source"`
	PageNumber int     `json:"page_number"`
	Text       string  `json:"text"`
	Score      float64 `json:"score"`
}

type QueryResult struct {
	Answer       string     `json:"answer"`
	Citations    []Citation `json:"citations"`
	TraceID      string     `json:"trace_id"`
	Groundedness float64    `json:"groundedness"`

	// RetrievalStep names the fallback step that produced the
	// candidates. Observability only, never serialized.
	RetrievalStep string `json:"-"`
}

// DocumentMetadata carries the PDF Info dictionary fields used to build
// the page-0 metadata chunk.
type DocumentMetadata struct {
	Title    string
	Author   string
	Subject  string
	Keywords string
}

func (m DocumentMetadata) Empty() bool {
	return m.Title == "" && m.Author == "" && m.Subject == "" && m.Keywords == ""
}

// ParsedDocument is the parser output: ordered per-page text plus
// whatever document-level metadata the file carried.
type ParsedDocument struct {
	Pages    []string
	Metadata DocumentMetadata
}

// ChunkFilter restricts a store search or fetch to one source document.
// The zero value matches everything.
type ChunkFilter struct {
	Source string
}

// HybridQuery blends vector similarity and keyword scoring: Alpha=1 is
// pure vector, Alpha=0 pure keyword.
type HybridQuery struct {
	Vector []float32
	Text   string
	Alpha  float64
	Limit  int
	Filter ChunkFilter
}

// IngestReport is returned once per ingestion. OCRPageCount is kept for
// interface compatibility and is always zero: no OCR stage exists.
type IngestReport struct {
	Status       IngestStatus `json:"status"`
	DocumentID   string       `json:"document_id"`
	ChunkCount   int          `json:"chunk_count"`
	OCRPageCount int          `json:"ocr_page_count"`
}

type IngestStatus string

const (
	IngestSuccess    IngestStatus = "success"
	IngestParseError IngestStatus = "parse_error"
	IngestNoText     IngestStatus = "no_text"
)
