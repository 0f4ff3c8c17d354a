package pii

import (
	"context"

	"github.com/kirillkom/compliance-copilot/internal/core/domain"
)

// Detector finds PII spans in text. Span offsets are rune positions
// into the analyzed text; spans may arrive unordered and overlapping.
// Kind filtering happens in the redactor, so a detector is free to
// report entity kinds beyond the well-known set.
type Detector interface {
	Detect(ctx context.Context, text string) ([]domain.EntitySpan, error)
}
