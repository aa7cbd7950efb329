package validation

import (
	"time"

	"github.com/panelkit/panelkit/internal/admin/schema"
)

// checkRules evaluates a field's declarative rules against an
// already-coerced value. Each violated rule contributes one error.
func checkRules(f *schema.Field, value any) []schema.FieldError {
	var errs []schema.FieldError
	r := f.Rules

	if r.MinLength != nil || r.MaxLength != nil || r.Pattern != nil {
		if s, ok := value.(string); ok {
			length := len([]rune(s))
			if r.MinLength != nil && length < *r.MinLength {
				errs = append(errs, schema.MinLengthError(f.Label(), *r.MinLength))
			}
			if r.MaxLength != nil && length > *r.MaxLength {
				errs = append(errs, schema.MaxLengthError(f.Label(), *r.MaxLength))
			}
			if r.Pattern != nil && !r.Pattern.MatchString(s) {
				errs = append(errs, schema.PatternError(f.Label()))
			}
		}
	}

	if r.MinValue != nil || r.MaxValue != nil {
		if n, ok := asFloat(value); ok {
			if r.MinValue != nil && n < *r.MinValue {
				errs = append(errs, schema.MinValueError(f.Label(), *r.MinValue))
			}
			if r.MaxValue != nil && n > *r.MaxValue {
				errs = append(errs, schema.MaxValueError(f.Label(), *r.MaxValue))
			}
		}
	}

	return errs
}

func asFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case int64:
		return float64(v), true
	case float64:
		return v, true
	case int:
		return float64(v), true
	case time.Duration:
		return float64(v), true
	default:
		return 0, false
	}
}
