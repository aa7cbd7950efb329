package schema

import "fmt"

// Error codes attached to FieldError values. Codes are stable identifiers a
// client can switch on; messages are human-readable.
const (
	CodeRequired        = "REQUIRED"
	CodeTypeString      = "TYPE_STRING"
	CodeTypeNumber      = "TYPE_NUMBER"
	CodeTypeBoolean     = "TYPE_BOOLEAN"
	CodeTypeDate        = "TYPE_DATE"
	CodeTypeTime        = "TYPE_TIME"
	CodeTypeDateTime    = "TYPE_DATETIME"
	CodeTypeJSON        = "TYPE_JSON"
	CodeTypeColor       = "TYPE_COLOR"
	CodeTypeRelation    = "TYPE_RELATION"
	CodeMinLength       = "MIN_LENGTH"
	CodeMaxLength       = "MAX_LENGTH"
	CodeMinValue        = "MIN_VALUE"
	CodeMaxValue        = "MAX_VALUE"
	CodePattern         = "PATTERN"
	CodeChoice          = "CHOICE"
	CodeFieldNotAllowed = "FIELD_NOT_ALLOWED"
	CodeCustom          = "CUSTOM"
)

// FieldError is one validation failure on one field. Validation failures are
// data returned to the caller, never panics or hard errors.
type FieldError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// RequiredError builds the REQUIRED error for a field.
func RequiredError(label string) FieldError {
	return FieldError{Code: CodeRequired, Message: fmt.Sprintf("%s is required", label)}
}

// TypeError builds the type-mismatch error for a field type.
func TypeError(t FieldType, label string) FieldError {
	switch t {
	case TypeNumber, TypeFloat:
		return FieldError{Code: CodeTypeNumber, Message: fmt.Sprintf("%s must be a number", label)}
	case TypeBoolean:
		return FieldError{Code: CodeTypeBoolean, Message: fmt.Sprintf("%s must be a boolean", label)}
	case TypeDate:
		return FieldError{Code: CodeTypeDate, Message: fmt.Sprintf("%s must be a date string", label)}
	case TypeTime:
		return FieldError{Code: CodeTypeTime, Message: fmt.Sprintf("%s must be a time string", label)}
	case TypeDateTime:
		return FieldError{Code: CodeTypeDateTime, Message: fmt.Sprintf("%s must be a datetime string", label)}
	case TypeJSON:
		return FieldError{Code: CodeTypeJSON, Message: fmt.Sprintf("%s must be a JSON value", label)}
	case TypeColor:
		return FieldError{Code: CodeTypeColor, Message: fmt.Sprintf("%s must be a hex color", label)}
	case TypeForeignKey, TypeManyToMany, TypeOneToOne:
		return FieldError{Code: CodeTypeRelation, Message: fmt.Sprintf("%s must reference an existing record", label)}
	default:
		return FieldError{Code: CodeTypeString, Message: fmt.Sprintf("%s must be a string", label)}
	}
}

// MinLengthError builds the MIN_LENGTH error.
func MinLengthError(label string, min int) FieldError {
	return FieldError{Code: CodeMinLength, Message: fmt.Sprintf("%s must be at least %d characters", label, min)}
}

// MaxLengthError builds the MAX_LENGTH error.
func MaxLengthError(label string, max int) FieldError {
	return FieldError{Code: CodeMaxLength, Message: fmt.Sprintf("%s must be no more than %d characters", label, max)}
}

// MinValueError builds the MIN_VALUE error.
func MinValueError(label string, min float64) FieldError {
	return FieldError{Code: CodeMinValue, Message: fmt.Sprintf("%s must be at least %v", label, min)}
}

// MaxValueError builds the MAX_VALUE error.
func MaxValueError(label string, max float64) FieldError {
	return FieldError{Code: CodeMaxValue, Message: fmt.Sprintf("%s must be no more than %v", label, max)}
}

// PatternError builds the PATTERN error.
func PatternError(label string) FieldError {
	return FieldError{Code: CodePattern, Message: fmt.Sprintf("%s format is invalid", label)}
}

// ChoiceError builds the CHOICE error.
func ChoiceError(label string) FieldError {
	return FieldError{Code: CodeChoice, Message: fmt.Sprintf("%s is not a valid choice", label)}
}

// NotAllowedError builds the FIELD_NOT_ALLOWED error.
func NotAllowedError(name string) FieldError {
	return FieldError{Code: CodeFieldNotAllowed, Message: fmt.Sprintf("Field '%s' is not allowed", name)}
}
