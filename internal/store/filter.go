package store

// Filter is either a Match or an AnyOf. Backends switch on the concrete type.
type Filter interface {
	Matches(doc Document) bool
	isFilter()
}

// Term is a single equality condition. A nil Value matches an absent field.
type Term struct {
	Field string
	Value any
}

// Match is a conjunction of equality terms. An empty Match matches everything.
type Match []Term

// AnyOf matches a document when at least one sub-filter matches.
// An empty AnyOf matches nothing.
type AnyOf []Match

// Eq builds a Term.
func Eq(field string, value any) Term { return Term{Field: field, Value: value} }

// Where builds a Match from terms.
func Where(terms ...Term) Match { return Match(terms) }

func (m Match) Matches(doc Document) bool {
	for _, t := range m {
		if !Equal(doc[t.Field], Normalize(t.Value)) {
			return false
		}
	}
	return true
}

func (a AnyOf) Matches(doc Document) bool {
	for _, m := range a {
		if m.Matches(doc) {
			return true
		}
	}
	return false
}

func (Match) isFilter() {}
func (AnyOf) isFilter() {}
