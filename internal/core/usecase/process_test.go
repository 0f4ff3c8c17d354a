package usecase

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/kirillkom/compliance-copilot/internal/core/domain"
)

type statusChange struct {
	status domain.DocumentStatus
	errMsg string
}

type fakeDocumentRepo struct {
	doc        *domain.Document
	getErr     error
	statuses   []statusChange
	chunkCount int
	ocrCount   int
	savedCount bool
}

func (f *fakeDocumentRepo) Create(_ context.Context, _ *domain.Document) error { return nil }

func (f *fakeDocumentRepo) GetByID(_ context.Context, _ string) (*domain.Document, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.doc, nil
}

func (f *fakeDocumentRepo) UpdateStatus(_ context.Context, _ string, status domain.DocumentStatus, errMessage string) error {
	f.statuses = append(f.statuses, statusChange{status: status, errMsg: errMessage})
	return nil
}

func (f *fakeDocumentRepo) SaveCounts(_ context.Context, _ string, chunkCount, ocrPageCount int) error {
	f.savedCount = true
	f.chunkCount = chunkCount
	f.ocrCount = ocrPageCount
	return nil
}

type fakeObjectStorage struct {
	content string
	openErr error
}

func (f *fakeObjectStorage) Save(_ context.Context, _ string, _ io.Reader) error { return nil }

func (f *fakeObjectStorage) Open(_ context.Context, _ string) (io.ReadCloser, error) {
	if f.openErr != nil {
		return nil, f.openErr
	}
	return io.NopCloser(strings.NewReader(f.content)), nil
}

type fakeParser struct {
	parsed *domain.ParsedDocument
	err    error
}

func (f *fakeParser) Parse(_ context.Context, _ io.Reader) (*domain.ParsedDocument, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.parsed, nil
}

// lineChunker splits on newlines, dropping blanks. Enough structure to
// observe per-page chunk boundaries without real windowing.
type lineChunker struct{}

func (lineChunker) Split(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) != "" {
			out = append(out, line)
		}
	}
	return out
}

func testDocument() *domain.Document {
	return &domain.Document{
		ID:          "doc-1",
		Filename:    "policy.pdf",
		StoragePath: "doc-1_policy.pdf",
		Status:      domain.StatusUploaded,
	}
}

func newProcessUseCase(repo *fakeDocumentRepo, parser *fakeParser, store *fakeVectorStore, embedder *stubEmbedder) *ProcessDocumentUseCase {
	return NewProcessDocumentUseCase(
		repo,
		&fakeObjectStorage{content: "raw bytes"},
		parser,
		lineChunker{},
		embedder,
		store,
	)
}

func TestProcessByIDSuccess(t *testing.T) {
	repo := &fakeDocumentRepo{doc: testDocument()}
	parser := &fakeParser{parsed: &domain.ParsedDocument{
		Pages: []string{"page one text", "page two text"},
		Metadata: domain.DocumentMetadata{
			Title:  "Data Retention Policy",
			Author: "Jane Roe",
		},
	}}
	store := &fakeVectorStore{}

	uc := newProcessUseCase(repo, parser, store, &stubEmbedder{vector: []float32{0.1}})
	report, err := uc.ProcessByID(context.Background(), "doc-1")
	if err != nil {
		t.Fatalf("ProcessByID: %v", err)
	}

	if report.Status != domain.IngestSuccess {
		t.Fatalf("expected success status, got %q", report.Status)
	}
	if report.ChunkCount != 3 {
		t.Fatalf("expected 3 chunks (2 pages + metadata), got %d", report.ChunkCount)
	}
	if report.OCRPageCount != 0 {
		t.Fatalf("ocr page count must stay zero, got %d", report.OCRPageCount)
	}

	if len(store.upserted) != 3 {
		t.Fatalf("expected 3 upserted chunks, got %d", len(store.upserted))
	}
	if store.upserted[0].PageNumber != 1 || store.upserted[1].PageNumber != 2 {
		t.Fatalf("page numbering broken: %d, %d", store.upserted[0].PageNumber, store.upserted[1].PageNumber)
	}
	meta := store.upserted[2]
	if meta.PageNumber != MetadataPageNumber {
		t.Fatalf("metadata chunk must use page %d, got %d", MetadataPageNumber, meta.PageNumber)
	}
	if meta.Content != "Title: Data Retention Policy\nAuthor: Jane Roe" {
		t.Fatalf("unexpected metadata chunk content: %q", meta.Content)
	}
	if meta.Source != "policy.pdf" {
		t.Fatalf("metadata chunk source: got %q", meta.Source)
	}

	if !repo.savedCount || repo.chunkCount != 3 || repo.ocrCount != 0 {
		t.Fatalf("counts not persisted: %+v", repo)
	}
	wantStatuses := []domain.DocumentStatus{domain.StatusProcessing, domain.StatusReady}
	if len(repo.statuses) != len(wantStatuses) {
		t.Fatalf("status transitions: got %v", repo.statuses)
	}
	for i, want := range wantStatuses {
		if repo.statuses[i].status != want {
			t.Fatalf("status %d: got %q, want %q", i, repo.statuses[i].status, want)
		}
	}
}

func TestProcessByIDParseFailure(t *testing.T) {
	repo := &fakeDocumentRepo{doc: testDocument()}
	parser := &fakeParser{err: errors.New("corrupt xref table")}
	store := &fakeVectorStore{}

	uc := newProcessUseCase(repo, parser, store, &stubEmbedder{vector: []float32{0.1}})
	report, err := uc.ProcessByID(context.Background(), "doc-1")

	if !domain.IsKind(err, domain.ErrParseFailure) {
		t.Fatalf("expected parse failure kind, got %v", err)
	}
	if report == nil || report.Status != domain.IngestParseError {
		t.Fatalf("expected parse_error report, got %#v", report)
	}
	if len(store.upserted) != 0 {
		t.Fatal("nothing may reach the vector store on parse failure")
	}

	last := repo.statuses[len(repo.statuses)-1]
	if last.status != domain.StatusFailed || last.errMsg == "" {
		t.Fatalf("expected failed status with message, got %+v", last)
	}
	if repo.savedCount {
		t.Fatal("counts must not be saved on failure")
	}
}

func TestProcessByIDNoExtractableText(t *testing.T) {
	repo := &fakeDocumentRepo{doc: testDocument()}
	parser := &fakeParser{parsed: &domain.ParsedDocument{Pages: []string{"", "  \n "}}}
	store := &fakeVectorStore{}

	uc := newProcessUseCase(repo, parser, store, &stubEmbedder{vector: []float32{0.1}})
	report, err := uc.ProcessByID(context.Background(), "doc-1")

	if !domain.IsKind(err, domain.ErrNoExtractableText) {
		t.Fatalf("expected no-extractable-text kind, got %v", err)
	}
	if report == nil || report.Status != domain.IngestNoText {
		t.Fatalf("expected no_text report, got %#v", report)
	}
	if len(store.upserted) != 0 {
		t.Fatal("empty documents must not touch the vector store")
	}
	if repo.statuses[len(repo.statuses)-1].status != domain.StatusFailed {
		t.Fatalf("expected failed status, got %v", repo.statuses)
	}
}

func TestProcessByIDEmbedCountMismatch(t *testing.T) {
	repo := &fakeDocumentRepo{doc: testDocument()}
	parser := &fakeParser{parsed: &domain.ParsedDocument{Pages: []string{"one line"}}}
	store := &fakeVectorStore{}
	embedder := &stubEmbedder{batch: [][]float32{{0.1}, {0.2}}} // 2 vectors for 1 chunk

	uc := newProcessUseCase(repo, parser, store, embedder)
	report, err := uc.ProcessByID(context.Background(), "doc-1")

	if err == nil {
		t.Fatal("expected mismatch error")
	}
	if report != nil {
		t.Fatalf("no report expected on embedding failure, got %#v", report)
	}
	if len(store.upserted) != 0 {
		t.Fatal("mismatched vectors must not be written")
	}
}

func TestProcessByIDUnknownDocument(t *testing.T) {
	repo := &fakeDocumentRepo{getErr: domain.ErrDocumentNotFound}
	uc := newProcessUseCase(repo, &fakeParser{}, &fakeVectorStore{}, &stubEmbedder{})

	_, err := uc.ProcessByID(context.Background(), "missing")
	if !domain.IsKind(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected not-found kind, got %v", err)
	}
	if len(repo.statuses) != 0 {
		t.Fatalf("no status change expected for an unknown document, got %v", repo.statuses)
	}
}
