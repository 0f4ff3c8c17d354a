package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kirillkom/compliance-copilot/internal/core/domain"
	"github.com/kirillkom/compliance-copilot/internal/core/ports"
)

// MetadataPageNumber tags the synthetic document-level metadata chunk.
const MetadataPageNumber = 0

type ProcessDocumentUseCase struct {
	repo     ports.DocumentRepository
	storage  ports.ObjectStorage
	parser   ports.DocumentParser
	chunker  ports.Chunker
	embedder ports.Embedder
	store    ports.VectorStore
}

func NewProcessDocumentUseCase(
	repo ports.DocumentRepository,
	storage ports.ObjectStorage,
	parser ports.DocumentParser,
	chunker ports.Chunker,
	embedder ports.Embedder,
	store ports.VectorStore,
) *ProcessDocumentUseCase {
	return &ProcessDocumentUseCase{
		repo:     repo,
		storage:  storage,
		parser:   parser,
		chunker:  chunker,
		embedder: embedder,
		store:    store,
	}
}

// ProcessByID runs the ingestion pipeline for one uploaded document:
// parse per page, chunk, append the metadata chunk, embed, write.
// The pipeline is strictly sequential; the OCR page counter is carried
// for interface compatibility and stays zero.
func (uc *ProcessDocumentUseCase) ProcessByID(ctx context.Context, documentID string) (*domain.IngestReport, error) {
	doc, err := uc.repo.GetByID(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("fetch document by id: %w", err)
	}
	if err := uc.repo.UpdateStatus(ctx, documentID, domain.StatusProcessing, ""); err != nil {
		return nil, fmt.Errorf("set status=processing: %w", err)
	}

	report, err := uc.runPipeline(ctx, doc)
	if err != nil {
		if failErr := uc.repo.UpdateStatus(ctx, documentID, domain.StatusFailed, err.Error()); failErr != nil {
			return nil, fmt.Errorf("%w; mark failed status: %v", err, failErr)
		}
		if report != nil {
			return report, err
		}
		return nil, err
	}

	if err := uc.repo.SaveCounts(ctx, documentID, report.ChunkCount, report.OCRPageCount); err != nil {
		return nil, fmt.Errorf("save chunk counts: %w", err)
	}
	if err := uc.repo.UpdateStatus(ctx, documentID, domain.StatusReady, ""); err != nil {
		return nil, fmt.Errorf("set status=ready: %w", err)
	}
	return report, nil
}

func (uc *ProcessDocumentUseCase) runPipeline(ctx context.Context, doc *domain.Document) (*domain.IngestReport, error) {
	parsed, err := uc.parse(ctx, doc)
	if err != nil {
		return &domain.IngestReport{
			Status:     domain.IngestParseError,
			DocumentID: doc.Filename,
		}, err
	}

	chunks := uc.buildChunks(doc.Filename, parsed)
	if len(chunks) == 0 {
		return &domain.IngestReport{
				Status:     domain.IngestNoText,
				DocumentID: doc.Filename,
			}, domain.WrapError(domain.ErrNoExtractableText, "chunk document",
				errors.New("document produced zero chunks"))
	}

	vectors, err := uc.embed(ctx, chunks)
	if err != nil {
		return nil, err
	}

	embedded := make([]domain.EmbeddedChunk, len(chunks))
	for i := range chunks {
		embedded[i] = domain.EmbeddedChunk{Chunk: chunks[i], Vector: vectors[i]}
	}
	if err := uc.store.Upsert(ctx, embedded); err != nil {
		return nil, fmt.Errorf("index chunks in vector store: %w", err)
	}

	return &domain.IngestReport{
		Status:       domain.IngestSuccess,
		DocumentID:   doc.Filename,
		ChunkCount:   len(chunks),
		OCRPageCount: 0,
	}, nil
}

func (uc *ProcessDocumentUseCase) parse(ctx context.Context, doc *domain.Document) (*domain.ParsedDocument, error) {
	reader, err := uc.storage.Open(ctx, doc.StoragePath)
	if err != nil {
		return nil, domain.WrapError(domain.ErrParseFailure, "open source document", err)
	}
	defer reader.Close()

	parsed, err := uc.parser.Parse(ctx, reader)
	if err != nil {
		return nil, domain.WrapError(domain.ErrParseFailure, "parse document", err)
	}
	return parsed, nil
}

// buildChunks splits each page and appends the synthetic page-0 chunk
// carrying any document-level metadata lines, so that authorship
// queries work without real text recognition.
func (uc *ProcessDocumentUseCase) buildChunks(source string, parsed *domain.ParsedDocument) []domain.Chunk {
	var out []domain.Chunk
	for pageIdx, pageText := range parsed.Pages {
		for _, piece := range uc.chunker.Split(pageText) {
			out = append(out, domain.Chunk{
				Content:    piece,
				Source:     source,
				PageNumber: pageIdx + 1,
			})
		}
	}

	if meta := metadataLines(parsed.Metadata); meta != "" {
		out = append(out, domain.Chunk{
			Content:    meta,
			Source:     source,
			PageNumber: MetadataPageNumber,
		})
	}
	return out
}

func metadataLines(meta domain.DocumentMetadata) string {
	if meta.Empty() {
		return ""
	}
	lines := make([]string, 0, 4)
	add := func(label, value string) {
		if strings.TrimSpace(value) != "" {
			lines = append(lines, label+": "+strings.TrimSpace(value))
		}
	}
	add("Title", meta.Title)
	add("Author", meta.Author)
	add("Subject", meta.Subject)
	add("Keywords", meta.Keywords)
	return strings.Join(lines, "\n")
}

func (uc *ProcessDocumentUseCase) embed(ctx context.Context, chunks []domain.Chunk) ([][]float32, error) {
	texts := make([]string, len(chunks))
	for i := range chunks {
		texts[i] = chunks[i].Content
	}
	vectors, err := uc.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return nil, domain.WrapError(
			domain.ErrInvalidInput,
			"embed chunks",
			fmt.Errorf("vectors/chunks mismatch: %d/%d", len(vectors), len(chunks)),
		)
	}
	return vectors, nil
}
