package domain

// EntityKind names a category of personally identifiable information
// recognised by the redaction service.
type EntityKind string

const (
	EntityPerson EntityKind = "PERSON"
	EntityEmail  EntityKind = "EMAIL_ADDRESS"
	EntityIP     EntityKind = "IP_ADDRESS"
)

// AllEntityKinds is the fixed set considered for redaction, in
// detection order.
func AllEntityKinds() []EntityKind {
	return []EntityKind{EntityPerson, EntityEmail, EntityIP}
}

// EntitySpan is one detected PII occurrence, as rune offsets into the
// analysed text.
type EntitySpan struct {
	Start int
	End   int
	Kind  EntityKind
}
