package ports

import (
	"context"
	"io"

	"github.com/kirillkom/compliance-copilot/internal/core/domain"
)

// DocumentIngestor is the inbound contract for document upload.
type DocumentIngestor interface {
	Upload(ctx context.Context, filename, mimeType string, body io.Reader) (*domain.Document, error)
}

// DocumentProcessor is the inbound contract for running the ingestion
// pipeline over an uploaded document.
type DocumentProcessor interface {
	ProcessByID(ctx context.Context, documentID string) (*domain.IngestReport, error)
}

// DocumentReader is the inbound read model for registry state.
type DocumentReader interface {
	GetByID(ctx context.Context, id string) (*domain.Document, error)
}

// ComplianceQuerier is the inbound contract for the query pipeline.
type ComplianceQuerier interface {
	Query(ctx context.Context, question, sourceFilter string, strictPrivacy bool) (*domain.QueryResult, error)
}
