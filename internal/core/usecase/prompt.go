package usecase

import (
	"fmt"
	"strings"

	"github.com/kirillkom/compliance-copilot/internal/core/domain"
)

const answerSystemPrompt = `You are a compliance assistant. Answer the question using only the provided context passages.
Cite every statement inline in the form [Source: X, Page: Y], matching the source and page of the passage it came from.
If the context does not contain the answer, say so plainly.`

// buildAnswerPrompt composes the fixed template: each redacted passage
// prefixed with its source and page number, followed by the raw query.
func buildAnswerPrompt(question string, chunks []domain.ScoredChunk, redacted []string) (system, user string) {
	var b strings.Builder
	b.WriteString("Context:\n\n")
	for i, chunk := range chunks {
		text := chunk.Content
		if i < len(redacted) {
			text = redacted[i]
		}
		fmt.Fprintf(&b, "[Source: %s, Page: %d]\n%s\n\n", chunk.Source, chunk.PageNumber, text)
	}
	fmt.Fprintf(&b, "Question: %s\n", question)
	return answerSystemPrompt, b.String()
}
