package query

import (
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/panelkit/panelkit/internal/admin/schema"
)

// filterPattern matches query parameters like filter[key].
var filterPattern = regexp.MustCompile(`^filter\[([^\]]+)\]$`)

// Limits bounds pagination. MaxPageSize is a hard cap; requests outside
// [1, MaxPageSize] are rejected rather than clamped.
type Limits struct {
	DefaultPageSize int
	MaxPageSize     int
}

// DefaultLimits are used when the embedding application supplies none.
var DefaultLimits = Limits{DefaultPageSize: 20, MaxPageSize: 100}

// Parser parses raw query parameters against one view's declared field set.
// Field selection is resolved against the view only: callers cannot request
// attributes the view does not declare, which keeps undeclared columns out of
// responses by construction.
type Parser struct {
	view   *schema.View
	limits Limits
}

// NewParser creates a parser for a view.
func NewParser(view *schema.View, limits Limits) *Parser {
	if limits.DefaultPageSize <= 0 {
		limits.DefaultPageSize = DefaultLimits.DefaultPageSize
	}
	if limits.MaxPageSize <= 0 {
		limits.MaxPageSize = DefaultLimits.MaxPageSize
	}
	return &Parser{view: view, limits: limits}
}

// Parse builds a Descriptor from raw query parameters.
//
// Recognized parameters:
//
//	filter[name]=v          equality filter
//	filter[name__op]=v      operator filter (eq, contains, icontains,
//	                        startswith, endswith, gt, gte, lt, lte, in, isnull)
//	sort=-created_at,title  ordering; "-" prefix means descending
//	fields=a,b / exclude=c  projection sets
//	page / page_size        pagination, page_size bounded by Limits
func (p *Parser) Parse(params url.Values) (*Descriptor, error) {
	desc := &Descriptor{
		Page:     1,
		PageSize: p.limits.DefaultPageSize,
	}

	if err := p.parsePagination(params, desc); err != nil {
		return nil, err
	}
	if err := p.parseFilters(params, desc); err != nil {
		return nil, err
	}
	if err := p.parseSort(params.Get("sort"), desc); err != nil {
		return nil, err
	}

	var err error
	if desc.Fields, err = p.parseProjection("fields", params.Get("fields")); err != nil {
		return nil, err
	}
	if desc.Exclude, err = p.parseProjection("exclude", params.Get("exclude")); err != nil {
		return nil, err
	}

	return desc, nil
}

func (p *Parser) parsePagination(params url.Values, desc *Descriptor) error {
	if raw := params.Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return invalidf("page", "must be a positive integer")
		}
		desc.Page = n
	}
	if raw := params.Get("page_size"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return invalidf("page_size", "must be an integer")
		}
		if n < 1 || n > p.limits.MaxPageSize {
			return invalidf("page_size", "must be between 1 and %d", p.limits.MaxPageSize)
		}
		desc.PageSize = n
	}
	return nil
}

func (p *Parser) parseFilters(params url.Values, desc *Descriptor) error {
	// url.Values iteration order is not stable; collect and sort the raw
	// keys so filter order - and therefore placeholder numbering - is
	// deterministic across identical requests.
	keys := make([]string, 0, len(params))
	for key := range params {
		if filterPattern.MatchString(key) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	for _, key := range keys {
		expr := filterPattern.FindStringSubmatch(key)[1]
		raw := params.Get(key)

		name, opName := expr, "eq"
		if i := strings.LastIndex(expr, "__"); i > 0 {
			name, opName = expr[:i], expr[i+2:]
		}

		field, ok := p.view.Field(name)
		if !ok {
			return invalidf(key, "unknown field %q", name)
		}
		op, err := ParseOperator(opName)
		if err != nil {
			return invalidf(key, "%v", err)
		}
		if !op.ApplicableTo(field.Type) {
			return invalidf(key, "operator %s is not applicable to %s field %q", op, field.Type, name)
		}

		value, err := p.filterValue(key, field, op, raw)
		if err != nil {
			return err
		}
		desc.Filters = append(desc.Filters, Filter{Field: name, Operator: op, Value: value})
	}
	return nil
}

// filterValue coerces the raw parameter to the operand type the operator
// expects for the field.
func (p *Parser) filterValue(param string, field *schema.Field, op Operator, raw string) (any, error) {
	switch op {
	case OpIsNull:
		switch strings.ToLower(raw) {
		case "true", "1":
			return true, nil
		case "false", "0":
			return false, nil
		}
		return nil, invalidf(param, "isnull expects a boolean value")

	case OpContains, OpIContains, OpStartsWith, OpEndsWith:
		return raw, nil

	case OpIn:
		parts := strings.Split(raw, ",")
		values := make([]any, 0, len(parts))
		for _, part := range parts {
			v, err := p.scalarValue(param, field, strings.TrimSpace(part))
			if err != nil {
				return nil, err
			}
			values = append(values, v)
		}
		return values, nil

	default:
		return p.scalarValue(param, field, raw)
	}
}

func (p *Parser) scalarValue(param string, field *schema.Field, raw string) (any, error) {
	coerced, ferr := schema.CoerceValue(field, raw)
	if ferr != nil {
		return nil, invalidf(param, "malformed value for %s field %q", field.Type, field.Name)
	}
	return coerced, nil
}

func (p *Parser) parseSort(raw string, desc *Descriptor) error {
	if raw == "" {
		return nil
	}
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key := SortKey{Direction: Ascending}
		if strings.HasPrefix(part, "-") {
			key.Direction = Descending
			part = part[1:]
		}
		f, ok := p.view.Field(part)
		if !ok {
			return invalidf("sort", "unknown field %q", part)
		}
		if f.Type == schema.TypeManyToMany {
			// Links live in a join table; there is no column to order by.
			return invalidf("sort", "field %q is not sortable", part)
		}
		key.Field = part
		desc.Sort = append(desc.Sort, key)
	}
	return nil
}

func (p *Parser) parseProjection(param, raw string) ([]string, error) {
	if raw == "" {
		return nil, nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if _, ok := p.view.Field(part); !ok {
			return nil, invalidf(param, "unknown field %q", part)
		}
		out = append(out, part)
	}
	return out, nil
}
