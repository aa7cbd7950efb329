// Package schema defines the declarative metadata for admin models: field
// descriptors, field types, validation rules, and view descriptors. Descriptors
// are built once at startup, checked for internal consistency, and treated as
// immutable configuration afterwards.
package schema

import "fmt"

// FieldType represents the closed set of supported field types.
type FieldType int

const (
	TypeString FieldType = iota
	TypeNumber
	TypeFloat
	TypeBoolean
	TypeDate
	TypeTime
	TypeDateTime
	TypeChoice
	TypeMultiChoice
	TypeForeignKey
	TypeManyToMany
	TypeOneToOne
	TypeFile
	TypeImage
	TypeJSON
	TypeColor
	TypePrimaryKey
)

// String returns the string representation of the field type.
func (t FieldType) String() string {
	switch t {
	case TypeString:
		return "string"
	case TypeNumber:
		return "number"
	case TypeFloat:
		return "float"
	case TypeBoolean:
		return "boolean"
	case TypeDate:
		return "date"
	case TypeTime:
		return "time"
	case TypeDateTime:
		return "datetime"
	case TypeChoice:
		return "choice"
	case TypeMultiChoice:
		return "multichoice"
	case TypeForeignKey:
		return "foreignkey"
	case TypeManyToMany:
		return "many_to_many"
	case TypeOneToOne:
		return "one_to_one"
	case TypeFile:
		return "file"
	case TypeImage:
		return "image"
	case TypeJSON:
		return "json"
	case TypeColor:
		return "color"
	case TypePrimaryKey:
		return "primarykey"
	default:
		return "unknown"
	}
}

// ParseFieldType converts a string to a FieldType.
func ParseFieldType(s string) (FieldType, error) {
	switch s {
	case "string":
		return TypeString, nil
	case "number":
		return TypeNumber, nil
	case "float":
		return TypeFloat, nil
	case "boolean":
		return TypeBoolean, nil
	case "date":
		return TypeDate, nil
	case "time":
		return TypeTime, nil
	case "datetime":
		return TypeDateTime, nil
	case "choice":
		return TypeChoice, nil
	case "multichoice":
		return TypeMultiChoice, nil
	case "foreignkey":
		return TypeForeignKey, nil
	case "many_to_many":
		return TypeManyToMany, nil
	case "one_to_one":
		return TypeOneToOne, nil
	case "file":
		return TypeFile, nil
	case "image":
		return TypeImage, nil
	case "json":
		return TypeJSON, nil
	case "color":
		return TypeColor, nil
	case "primarykey":
		return TypePrimaryKey, nil
	default:
		return 0, fmt.Errorf("unknown field type: %s", s)
	}
}

// IsText returns true for types whose values are free-form text.
func (t FieldType) IsText() bool {
	return t == TypeString || t == TypeColor || t == TypeFile || t == TypeImage
}

// IsNumeric returns true for number and float fields.
func (t FieldType) IsNumeric() bool {
	return t == TypeNumber || t == TypeFloat
}

// IsTemporal returns true for date, time and datetime fields.
func (t FieldType) IsTemporal() bool {
	return t == TypeDate || t == TypeTime || t == TypeDateTime
}

// IsRelation returns true for fields that reference another model.
func (t FieldType) IsRelation() bool {
	return t == TypeForeignKey || t == TypeManyToMany || t == TypeOneToOne
}

// Comparable returns true for types that admit an ordering, and therefore
// support the gt/gte/lt/lte filter operators.
func (t FieldType) Comparable() bool {
	return t.IsNumeric() || t.IsTemporal() || t == TypePrimaryKey || t == TypeString
}
