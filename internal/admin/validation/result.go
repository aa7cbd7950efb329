// Package validation implements the pre-persistence validation engine. Given
// a view's declared fields and an input payload it produces a structured map
// of field name to error list. The engine is pure and synchronous: identical
// inputs always produce identical results.
package validation

import (
	"sort"

	"github.com/panelkit/panelkit/internal/admin/schema"
)

// Result maps field names to the errors found on them. An empty result means
// the payload is valid. Results are created fresh per validation call and are
// not mutated after being returned.
type Result map[string][]schema.FieldError

// NewResult creates an empty Result.
func NewResult() Result {
	return make(Result)
}

// Add appends an error for a field.
func (r Result) Add(field string, err schema.FieldError) {
	r[field] = append(r[field], err)
}

// Valid returns true when no errors were recorded.
func (r Result) Valid() bool {
	return len(r) == 0
}

// Count returns the total number of errors across all fields.
func (r Result) Count() int {
	n := 0
	for _, errs := range r {
		n += len(errs)
	}
	return n
}

// Fields returns the names of the offending fields, sorted.
func (r Result) Fields() []string {
	names := make([]string, 0, len(r))
	for name := range r {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Has returns true if the field has at least one error with the given code.
func (r Result) Has(field, code string) bool {
	for _, err := range r[field] {
		if err.Code == code {
			return true
		}
	}
	return false
}
