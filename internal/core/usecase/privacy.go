package usecase

import (
	"strings"

	"github.com/kirillkom/compliance-copilot/internal/core/domain"
)

// identityPhrases mark queries that are explicitly asking about
// authorship or identity; redacting PERSON there would destroy the
// answer.
var identityPhrases = []string{"author", "who is", "who's", "person", "name"}

// skipKindsForQuery decides once per query which entity kinds the
// redactor must leave alone, for both the context passages and the
// final answer. Under strict privacy nothing is ever skipped.
func skipKindsForQuery(question string, strictPrivacy bool) []domain.EntityKind {
	if strictPrivacy {
		return nil
	}
	lowered := strings.ToLower(question)
	for _, phrase := range identityPhrases {
		if strings.Contains(lowered, phrase) {
			return []domain.EntityKind{domain.EntityPerson}
		}
	}
	return nil
}
