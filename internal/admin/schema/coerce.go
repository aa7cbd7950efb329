package schema

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var colorPattern = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

// Temporal layouts accepted on input. Datetime additionally accepts RFC3339.
const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04:05"
)

// CoerceValue normalizes a raw payload value to the field's declared type.
// It returns the normalized value, or a type-mismatch FieldError when the
// value cannot represent the type. The switch is exhaustive over FieldType;
// adding a type without a case here is a compile-visible TODO for the author.
func CoerceValue(f *Field, value any) (any, *FieldError) {
	if value == nil {
		return nil, nil
	}

	switch f.Type {
	case TypeString, TypeFile, TypeImage:
		s, ok := value.(string)
		if !ok {
			e := TypeError(f.Type, f.Label())
			return nil, &e
		}
		return s, nil

	case TypeNumber:
		return coerceInt(f, value)

	case TypeFloat:
		return coerceFloat(f, value)

	case TypeBoolean:
		return coerceBool(f, value)

	case TypeDate:
		return coerceTemporal(f, value, dateLayout)

	case TypeTime:
		return coerceTemporal(f, value, timeLayout)

	case TypeDateTime:
		return coerceTemporal(f, value, time.RFC3339)

	case TypeChoice:
		s, ok := value.(string)
		if !ok || !containsString(f.Choices, s) {
			e := ChoiceError(f.Label())
			return nil, &e
		}
		return s, nil

	case TypeMultiChoice:
		return coerceMultiChoice(f, value)

	case TypeForeignKey, TypeOneToOne:
		// A scalar primary key of the related record.
		switch value.(type) {
		case string, int, int64, float64:
			return value, nil
		}
		e := TypeError(f.Type, f.Label())
		return nil, &e

	case TypeManyToMany:
		// A list of related primary keys.
		vs, ok := toSlice(value)
		if !ok {
			e := TypeError(f.Type, f.Label())
			return nil, &e
		}
		return vs, nil

	case TypeJSON:
		if s, ok := value.(string); ok {
			if !json.Valid([]byte(s)) {
				e := TypeError(TypeJSON, f.Label())
				return nil, &e
			}
			return s, nil
		}
		// Any structured value is representable as JSON.
		return value, nil

	case TypeColor:
		s, ok := value.(string)
		if !ok || !colorPattern.MatchString(s) {
			e := TypeError(TypeColor, f.Label())
			return nil, &e
		}
		return s, nil

	case TypePrimaryKey:
		switch value.(type) {
		case string, int, int64, float64:
			return value, nil
		}
		e := TypeError(TypePrimaryKey, f.Label())
		return nil, &e

	default:
		e := FieldError{Code: CodeCustom, Message: fmt.Sprintf("%s has unsupported type", f.Label())}
		return nil, &e
	}
}

func coerceInt(f *Field, value any) (any, *FieldError) {
	switch v := value.(type) {
	case int:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int64:
		return v, nil
	case float64:
		if v == float64(int64(v)) {
			return int64(v), nil
		}
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return n, nil
		}
	case string:
		if n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
			return n, nil
		}
	}
	e := TypeError(TypeNumber, f.Label())
	return nil, &e
}

func coerceFloat(f *Field, value any) (any, *FieldError) {
	switch v := value.(type) {
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case float32:
		return float64(v), nil
	case float64:
		return v, nil
	case json.Number:
		if n, err := v.Float64(); err == nil {
			return n, nil
		}
	case string:
		if n, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return n, nil
		}
	}
	e := TypeError(TypeFloat, f.Label())
	return nil, &e
}

// coerceBool accepts booleans, the strings "true"/"false", and 0/1.
func coerceBool(f *Field, value any) (any, *FieldError) {
	switch v := value.(type) {
	case bool:
		return v, nil
	case string:
		switch strings.ToLower(v) {
		case "true":
			return true, nil
		case "false":
			return false, nil
		}
	case int:
		if v == 0 || v == 1 {
			return v == 1, nil
		}
	case int64:
		if v == 0 || v == 1 {
			return v == 1, nil
		}
	case float64:
		if v == 0 || v == 1 {
			return v == 1, nil
		}
	}
	e := TypeError(TypeBoolean, f.Label())
	return nil, &e
}

func coerceTemporal(f *Field, value any, layout string) (any, *FieldError) {
	switch v := value.(type) {
	case time.Time:
		return v, nil
	case string:
		if t, err := time.Parse(layout, v); err == nil {
			return t, nil
		}
		// Datetime fields also accept a plain date.
		if layout == time.RFC3339 {
			if t, err := time.Parse(dateLayout, v); err == nil {
				return t, nil
			}
		}
	}
	e := TypeError(f.Type, f.Label())
	return nil, &e
}

func coerceMultiChoice(f *Field, value any) (any, *FieldError) {
	vs, ok := toSlice(value)
	if !ok {
		e := ChoiceError(f.Label())
		return nil, &e
	}
	out := make([]string, 0, len(vs))
	for _, v := range vs {
		s, ok := v.(string)
		if !ok || !containsString(f.Choices, s) {
			e := ChoiceError(f.Label())
			return nil, &e
		}
		out = append(out, s)
	}
	return out, nil
}

func toSlice(value any) ([]any, bool) {
	switch v := value.(type) {
	case []any:
		return v, true
	case []string:
		out := make([]any, len(v))
		for i, s := range v {
			out[i] = s
		}
		return out, true
	case []int:
		out := make([]any, len(v))
		for i, n := range v {
			out[i] = n
		}
		return out, true
	case []int64:
		out := make([]any, len(v))
		for i, n := range v {
			out[i] = n
		}
		return out, true
	default:
		return nil, false
	}
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
