// Package query parses raw list-request parameters into a normalized,
// injection-safe query descriptor and translates descriptors into
// parameterized SQL for the persistence layer.
package query

import (
	"fmt"

	"github.com/panelkit/panelkit/internal/admin/schema"
)

// Operator is a filter comparison operator.
type Operator int

const (
	OpEq Operator = iota
	OpContains
	OpIContains
	OpStartsWith
	OpEndsWith
	OpGt
	OpGte
	OpLt
	OpLte
	OpIn
	OpIsNull
)

// String returns the string representation of the operator.
func (o Operator) String() string {
	switch o {
	case OpEq:
		return "eq"
	case OpContains:
		return "contains"
	case OpIContains:
		return "icontains"
	case OpStartsWith:
		return "startswith"
	case OpEndsWith:
		return "endswith"
	case OpGt:
		return "gt"
	case OpGte:
		return "gte"
	case OpLt:
		return "lt"
	case OpLte:
		return "lte"
	case OpIn:
		return "in"
	case OpIsNull:
		return "isnull"
	default:
		return "unknown"
	}
}

// ParseOperator converts an operator suffix to an Operator. Unknown operators
// are an error, never silently ignored: a caller must not be led to believe a
// filter was applied when it was not.
func ParseOperator(s string) (Operator, error) {
	switch s {
	case "eq":
		return OpEq, nil
	case "contains":
		return OpContains, nil
	case "icontains":
		return OpIContains, nil
	case "startswith":
		return OpStartsWith, nil
	case "endswith":
		return OpEndsWith, nil
	case "gt":
		return OpGt, nil
	case "gte":
		return OpGte, nil
	case "lt":
		return OpLt, nil
	case "lte":
		return OpLte, nil
	case "in":
		return OpIn, nil
	case "isnull":
		return OpIsNull, nil
	default:
		return 0, fmt.Errorf("unknown filter operator: %s", s)
	}
}

// ApplicableTo reports whether the operator makes sense for a field type.
func (o Operator) ApplicableTo(t schema.FieldType) bool {
	if t == schema.TypeManyToMany || t == schema.TypeMultiChoice {
		// List-valued fields are not directly filterable columns.
		return false
	}
	switch o {
	case OpContains, OpIContains, OpStartsWith, OpEndsWith:
		return t.IsText() || t == schema.TypeChoice
	case OpGt, OpGte, OpLt, OpLte:
		return t.Comparable()
	case OpEq, OpIn, OpIsNull:
		return true
	default:
		return false
	}
}
