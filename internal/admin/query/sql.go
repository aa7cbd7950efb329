package query

import (
	"fmt"
	"strings"

	"github.com/panelkit/panelkit/internal/admin/registry"
)

// Statement is a parameterized SQL statement ready for execution.
type Statement struct {
	SQL  string
	Args []any
}

// BuildSelect builds a paginated SELECT over the given columns. Sort keys are
// applied left to right; a primary-key ascending tiebreak is appended unless
// the caller already sorts by the primary key, so identical requests always
// page through rows in the same order.
func BuildSelect(model *registry.Model, columns []string, desc *Descriptor) (*Statement, error) {
	if len(columns) == 0 {
		return nil, fmt.Errorf("select on %s: no columns", model.Name)
	}

	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(strings.Join(columns, ", "))
	sb.WriteString(" FROM ")
	sb.WriteString(model.Table)

	paramCounter := 1
	args := make([]any, 0, len(desc.Filters))

	where, err := buildWhere(desc.Filters, &paramCounter, &args)
	if err != nil {
		return nil, err
	}
	if where != "" {
		sb.WriteString(" WHERE ")
		sb.WriteString(where)
	}

	sb.WriteString(" ORDER BY ")
	sb.WriteString(buildOrderBy(model.PrimaryKey, desc.Sort))

	sb.WriteString(fmt.Sprintf(" LIMIT $%d OFFSET $%d", paramCounter, paramCounter+1))
	args = append(args, desc.PageSize, desc.Offset())

	return &Statement{SQL: sb.String(), Args: args}, nil
}

// BuildCount builds a COUNT(*) over the same filter set as BuildSelect, so a
// page and its total can be read under one transaction snapshot.
func BuildCount(model *registry.Model, desc *Descriptor) (*Statement, error) {
	var sb strings.Builder
	sb.WriteString("SELECT COUNT(*) FROM ")
	sb.WriteString(model.Table)

	paramCounter := 1
	args := make([]any, 0, len(desc.Filters))

	where, err := buildWhere(desc.Filters, &paramCounter, &args)
	if err != nil {
		return nil, err
	}
	if where != "" {
		sb.WriteString(" WHERE ")
		sb.WriteString(where)
	}

	return &Statement{SQL: sb.String(), Args: args}, nil
}

func buildWhere(filters []Filter, paramCounter *int, args *[]any) (string, error) {
	if len(filters) == 0 {
		return "", nil
	}
	parts := make([]string, 0, len(filters))
	for _, f := range filters {
		sql, err := filterToSQL(&f, paramCounter, args)
		if err != nil {
			return "", err
		}
		parts = append(parts, sql)
	}
	return strings.Join(parts, " AND "), nil
}

// filterToSQL converts one filter to parameterized SQL.
func filterToSQL(f *Filter, paramCounter *int, args *[]any) (string, error) {
	switch f.Operator {
	case OpEq:
		return compareSQL(f.Field, "=", f.Value, paramCounter, args), nil
	case OpGt:
		return compareSQL(f.Field, ">", f.Value, paramCounter, args), nil
	case OpGte:
		return compareSQL(f.Field, ">=", f.Value, paramCounter, args), nil
	case OpLt:
		return compareSQL(f.Field, "<", f.Value, paramCounter, args), nil
	case OpLte:
		return compareSQL(f.Field, "<=", f.Value, paramCounter, args), nil

	case OpContains:
		return likeSQL(f.Field, "LIKE", "%"+escapeLike(stringValue(f.Value))+"%", paramCounter, args), nil
	case OpIContains:
		return likeSQL(f.Field, "ILIKE", "%"+escapeLike(stringValue(f.Value))+"%", paramCounter, args), nil
	case OpStartsWith:
		return likeSQL(f.Field, "LIKE", escapeLike(stringValue(f.Value))+"%", paramCounter, args), nil
	case OpEndsWith:
		return likeSQL(f.Field, "LIKE", "%"+escapeLike(stringValue(f.Value)), paramCounter, args), nil

	case OpIn:
		values, ok := f.Value.([]any)
		if !ok {
			return "", fmt.Errorf("in operator on %s requires a list value", f.Field)
		}
		if len(values) == 0 {
			// IN with an empty list matches nothing.
			return "FALSE", nil
		}
		placeholders := make([]string, len(values))
		for i, v := range values {
			*args = append(*args, v)
			placeholders[i] = fmt.Sprintf("$%d", *paramCounter)
			*paramCounter++
		}
		return fmt.Sprintf("%s IN (%s)", f.Field, strings.Join(placeholders, ", ")), nil

	case OpIsNull:
		wantNull, ok := f.Value.(bool)
		if !ok {
			return "", fmt.Errorf("isnull operator on %s requires a boolean value", f.Field)
		}
		if wantNull {
			return fmt.Sprintf("%s IS NULL", f.Field), nil
		}
		return fmt.Sprintf("%s IS NOT NULL", f.Field), nil

	default:
		return "", fmt.Errorf("unsupported operator: %v", f.Operator)
	}
}

func compareSQL(field, op string, value any, paramCounter *int, args *[]any) string {
	*args = append(*args, value)
	sql := fmt.Sprintf("%s %s $%d", field, op, *paramCounter)
	*paramCounter++
	return sql
}

func likeSQL(field, op, pattern string, paramCounter *int, args *[]any) string {
	*args = append(*args, pattern)
	sql := fmt.Sprintf("%s %s $%d", field, op, *paramCounter)
	*paramCounter++
	return sql
}

func buildOrderBy(primaryKey string, sort []SortKey) string {
	parts := make([]string, 0, len(sort)+1)
	sawPK := false
	for _, key := range sort {
		if key.Field == primaryKey {
			sawPK = true
		}
		parts = append(parts, fmt.Sprintf("%s %s", key.Field, key.Direction))
	}
	if !sawPK {
		parts = append(parts, fmt.Sprintf("%s %s", primaryKey, Ascending))
	}
	return strings.Join(parts, ", ")
}

// escapeLike escapes LIKE metacharacters in a user-supplied substring so it
// matches literally.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "%", `\%`)
	s = strings.ReplaceAll(s, "_", `\_`)
	return s
}

func stringValue(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
