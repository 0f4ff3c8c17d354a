package pdfparse

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/kirillkom/compliance-copilot/internal/core/domain"
)

// Parser extracts ordered per-page text plus trailer metadata from PDF
// files. A broken cross-reference table or encrypted body fails the
// parse as a whole.
type Parser struct{}

func New() *Parser {
	return &Parser{}
}

func (p *Parser) Parse(ctx context.Context, r io.Reader) (*domain.ParsedDocument, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read document body: %w", err)
	}

	reader, err := pdf.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}

	total := reader.NumPage()
	pages := make([]string, 0, total)
	for i := 1; i <= total; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		pages = append(pages, extractPageText(reader.Page(i)))
	}

	return &domain.ParsedDocument{
		Pages:    pages,
		Metadata: extractMetadata(reader),
	}, nil
}

// extractPageText tolerates per-page decode failures; a page that
// cannot be decoded contributes an empty string and keeps page
// numbering aligned with the source file.
func extractPageText(page pdf.Page) string {
	if page.V.IsNull() {
		return ""
	}
	text, err := page.GetPlainText(nil)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(text)
}

func extractMetadata(reader *pdf.Reader) domain.DocumentMetadata {
	info := reader.Trailer().Key("Info")
	if info.IsNull() {
		return domain.DocumentMetadata{}
	}
	return domain.DocumentMetadata{
		Title:    infoString(info, "Title"),
		Author:   infoString(info, "Author"),
		Subject:  infoString(info, "Subject"),
		Keywords: infoString(info, "Keywords"),
	}
}

func infoString(info pdf.Value, key string) string {
	v := info.Key(key)
	if v.Kind() != pdf.String {
		return ""
	}
	return strings.TrimSpace(v.Text())
}
