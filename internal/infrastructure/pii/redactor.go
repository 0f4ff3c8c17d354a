package pii

import (
	"context"
	"log/slog"
	"sort"

	"github.com/kirillkom/compliance-copilot/internal/core/domain"
)

var placeholders = map[domain.EntityKind]string{
	domain.EntityPerson: "<PERSON>",
	domain.EntityEmail:  "<EMAIL>",
	domain.EntityIP:     "<IP>",
}

const defaultPlaceholder = "<REDACTED>"

// Redactor replaces detected spans with placeholder tokens. Redaction
// never fails past this boundary: any detector error is logged and the
// original text returned unchanged, so a down analyzer degrades
// privacy rather than availability.
type Redactor struct {
	detector Detector
	logger   *slog.Logger
}

func NewRedactor(detector Detector, logger *slog.Logger) *Redactor {
	return &Redactor{detector: detector, logger: logger}
}

func (r *Redactor) Redact(ctx context.Context, text string, skipKinds []domain.EntityKind) string {
	if text == "" {
		return text
	}

	spans, err := r.detector.Detect(ctx, text)
	if err != nil {
		r.logger.WarnContext(ctx, "pii_detection_failed, returning text unchanged",
			slog.String("error", err.Error()))
		return text
	}
	spans = dropSkipped(spans, skipKinds)
	if len(spans) == 0 {
		return text
	}

	redacted, applied := applySpans(text, spans)
	if len(applied) > 0 {
		r.logger.InfoContext(ctx, "pii_redaction_applied", kindCounts(applied)...)
	}
	return redacted
}

func dropSkipped(spans []domain.EntitySpan, skipKinds []domain.EntityKind) []domain.EntitySpan {
	if len(skipKinds) == 0 {
		return spans
	}
	skip := make(map[domain.EntityKind]bool, len(skipKinds))
	for _, k := range skipKinds {
		skip[k] = true
	}
	kept := spans[:0]
	for _, s := range spans {
		if !skip[s.Kind] {
			kept = append(kept, s)
		}
	}
	return kept
}

// applySpans rewrites back to front so earlier offsets stay valid.
// Spans overlapping an already-applied replacement are dropped.
func applySpans(text string, spans []domain.EntitySpan) (string, []domain.EntitySpan) {
	runes := []rune(text)

	sort.Slice(spans, func(i, j int) bool {
		if spans[i].Start != spans[j].Start {
			return spans[i].Start > spans[j].Start
		}
		return spans[i].End > spans[j].End
	})

	applied := make([]domain.EntitySpan, 0, len(spans))
	lastStart := len(runes) + 1
	for _, span := range spans {
		if span.Start < 0 || span.End > len(runes) || span.Start >= span.End {
			continue
		}
		if span.End > lastStart {
			continue
		}
		replacement := placeholders[span.Kind]
		if replacement == "" {
			replacement = defaultPlaceholder
		}
		runes = append(runes[:span.Start], append([]rune(replacement), runes[span.End:]...)...)
		applied = append(applied, span)
		lastStart = span.Start
	}
	return string(runes), applied
}

func kindCounts(applied []domain.EntitySpan) []any {
	counts := make(map[domain.EntityKind]int, len(applied))
	for _, s := range applied {
		counts[s.Kind]++
	}
	attrs := make([]any, 0, len(counts)+2)
	attrs = append(attrs, slog.Int("total", len(applied)))
	known := 0
	for _, k := range domain.AllEntityKinds() {
		if n := counts[k]; n > 0 {
			attrs = append(attrs, slog.Int(string(k), n))
			known += n
		}
	}
	if other := len(applied) - known; other > 0 {
		attrs = append(attrs, slog.Int("other", other))
	}
	return attrs
}
