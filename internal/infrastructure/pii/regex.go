package pii

import (
	"context"
	"regexp"
	"unicode/utf8"

	"github.com/kirillkom/compliance-copilot/internal/core/domain"
)

var (
	emailPattern  = regexp.MustCompile(`[\w.%-]+@[\w.-]+\.[A-Za-z]{2,}`)
	ipPattern     = regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`)
	personPattern = regexp.MustCompile(`\b([A-Z][a-z]+\s+[A-Z][a-z]+)\b`)
)

// RegexDetector is the offline fallback strategy. It trades recall for
// zero dependencies: capitalized word pairs stand in for person names,
// which over-matches headings and product names.
type RegexDetector struct{}

func NewRegexDetector() *RegexDetector {
	return &RegexDetector{}
}

func (d *RegexDetector) Detect(ctx context.Context, text string) ([]domain.EntitySpan, error) {
	runes := []rune(text)
	var spans []domain.EntitySpan
	for kind, pattern := range patterns() {
		for _, loc := range pattern.FindAllStringIndex(text, -1) {
			spans = append(spans, domain.EntitySpan{
				Start: byteToRune(runes, text, loc[0]),
				End:   byteToRune(runes, text, loc[1]),
				Kind:  kind,
			})
		}
	}
	return spans, nil
}

func patterns() map[domain.EntityKind]*regexp.Regexp {
	return map[domain.EntityKind]*regexp.Regexp{
		domain.EntityEmail:  emailPattern,
		domain.EntityIP:     ipPattern,
		domain.EntityPerson: personPattern,
	}
}

// byteToRune converts a byte offset from regexp into the rune offset
// used by the redactor.
func byteToRune(runes []rune, text string, byteOff int) int {
	if byteOff >= len(text) {
		return len(runes)
	}
	return utf8.RuneCountInString(text[:byteOff])
}
