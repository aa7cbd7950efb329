package query

import "fmt"

// Direction is a sort direction.
type Direction int

const (
	Ascending Direction = iota
	Descending
)

// String returns the SQL keyword for the direction.
func (d Direction) String() string {
	if d == Descending {
		return "DESC"
	}
	return "ASC"
}

// Filter is one (field, operator, value) predicate. For OpIn the value is an
// []any; for OpIsNull it is a bool.
type Filter struct {
	Field    string
	Operator Operator
	Value    any
}

// SortKey is one (field, direction) ordering term.
type SortKey struct {
	Field     string
	Direction Direction
}

// Descriptor is a normalized, injection-safe description of one list request.
// It is created fresh per request and never persisted.
type Descriptor struct {
	Filters []Filter
	Sort    []SortKey

	Page     int
	PageSize int

	// Fields and Exclude are the projection sets resolved against the
	// view's declared fields. An explicit include wins over an exclude of
	// the same field.
	Fields  []string
	Exclude []string
}

// Offset returns the row offset implied by Page and PageSize.
func (d *Descriptor) Offset() int {
	return (d.Page - 1) * d.PageSize
}

// Projection resolves the effective field list from the declared names,
// applying the include/exclude sets. Explicit includes win over excludes.
func (d *Descriptor) Projection(declared []string) []string {
	include := make(map[string]bool, len(d.Fields))
	for _, name := range d.Fields {
		include[name] = true
	}
	exclude := make(map[string]bool, len(d.Exclude))
	for _, name := range d.Exclude {
		exclude[name] = true
	}

	var out []string
	for _, name := range declared {
		if len(include) > 0 {
			if include[name] {
				out = append(out, name)
			}
			continue
		}
		if !exclude[name] {
			out = append(out, name)
		}
	}
	return out
}

// InvalidFilterError reports a malformed query parameter. It is recovered by
// the service layer into a typed client error, never a crash.
type InvalidFilterError struct {
	Param  string
	Reason string
}

// Error implements the error interface.
func (e *InvalidFilterError) Error() string {
	return fmt.Sprintf("invalid filter %q: %s", e.Param, e.Reason)
}

func invalidf(param, format string, args ...any) error {
	return &InvalidFilterError{Param: param, Reason: fmt.Sprintf(format, args...)}
}
