package usecase

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/kirillkom/compliance-copilot/internal/core/domain"
)

type recordingRepo struct {
	fakeDocumentRepo
	created   []*domain.Document
	createErr error
}

func (r *recordingRepo) Create(_ context.Context, doc *domain.Document) error {
	if r.createErr != nil {
		return r.createErr
	}
	r.created = append(r.created, doc)
	return nil
}

type recordingStorage struct {
	keys    []string
	saveErr error
}

func (r *recordingStorage) Save(_ context.Context, key string, _ io.Reader) error {
	if r.saveErr != nil {
		return r.saveErr
	}
	r.keys = append(r.keys, key)
	return nil
}

func (r *recordingStorage) Open(_ context.Context, _ string) (io.ReadCloser, error) {
	return nil, errors.New("not implemented")
}

type recordingQueue struct {
	published  []string
	publishErr error
}

func (r *recordingQueue) PublishDocumentUploaded(_ context.Context, documentID string) error {
	if r.publishErr != nil {
		return r.publishErr
	}
	r.published = append(r.published, documentID)
	return nil
}

func (r *recordingQueue) SubscribeDocumentUploaded(_ context.Context, _ func(context.Context, string) error) error {
	return nil
}

func TestUploadRegistersAndPublishes(t *testing.T) {
	repo := &recordingRepo{}
	storage := &recordingStorage{}
	queue := &recordingQueue{}
	uc := NewIngestDocumentUseCase(repo, storage, queue)

	doc, err := uc.Upload(context.Background(), "/tmp/My Policy.pdf", "application/pdf", strings.NewReader("%PDF-1.7"))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}

	if doc.ID == "" {
		t.Fatal("expected generated document id")
	}
	if doc.Filename != "My Policy.pdf" {
		t.Fatalf("filename must drop the directory, got %q", doc.Filename)
	}
	if doc.Status != domain.StatusUploaded {
		t.Fatalf("expected uploaded status, got %q", doc.Status)
	}

	if len(storage.keys) != 1 {
		t.Fatalf("expected one storage write, got %d", len(storage.keys))
	}
	wantKey := doc.ID + "_My_Policy.pdf"
	if storage.keys[0] != wantKey {
		t.Fatalf("storage key: got %q, want %q", storage.keys[0], wantKey)
	}
	if doc.StoragePath != wantKey {
		t.Fatalf("storage path on the document: got %q", doc.StoragePath)
	}

	if len(repo.created) != 1 || repo.created[0].ID != doc.ID {
		t.Fatalf("registry row not created: %#v", repo.created)
	}
	if len(queue.published) != 1 || queue.published[0] != doc.ID {
		t.Fatalf("expected one publish with the document id, got %v", queue.published)
	}
}

func TestUploadStorageFailureSkipsRegistryAndQueue(t *testing.T) {
	repo := &recordingRepo{}
	queue := &recordingQueue{}
	uc := NewIngestDocumentUseCase(repo, &recordingStorage{saveErr: errors.New("disk full")}, queue)

	if _, err := uc.Upload(context.Background(), "a.pdf", "application/pdf", strings.NewReader("x")); err == nil {
		t.Fatal("expected storage error")
	}
	if len(repo.created) != 0 || len(queue.published) != 0 {
		t.Fatal("failed uploads must leave no registry row or event")
	}
}

func TestUploadPublishFailurePropagates(t *testing.T) {
	uc := NewIngestDocumentUseCase(&recordingRepo{}, &recordingStorage{}, &recordingQueue{publishErr: errors.New("broker down")})

	if _, err := uc.Upload(context.Background(), "a.pdf", "application/pdf", strings.NewReader("x")); err == nil {
		t.Fatal("expected publish error")
	}
}

func TestSanitizeFilename(t *testing.T) {
	cases := []struct{ in, want string }{
		{"report.pdf", "report.pdf"},
		{"My Policy v2.pdf", "My_Policy_v2.pdf"},
		{"../../etc/passwd", "passwd"},
		{"weird$name!.pdf", "weird_name_.pdf"},
		{"", "document.bin"},
	}
	for _, tc := range cases {
		if got := sanitizeFilename(tc.in); got != tc.want {
			t.Fatalf("sanitizeFilename(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
