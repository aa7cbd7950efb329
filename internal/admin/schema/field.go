package schema

import (
	"fmt"
	"regexp"
)

// ValidatorFunc is a custom validation predicate. It receives the value under
// validation and the full record the value belongs to. For updates the record
// is the merged view of the stored record and the incoming payload, so
// cross-field checks always see complete post-update state. A nil return means
// the value passed.
type ValidatorFunc func(value any, record map[string]any) *FieldError

// Validator pairs a named predicate with the error it reports on failure.
// Validators run in declaration order after the field's rules.
type Validator struct {
	Name  string
	Check ValidatorFunc
}

// Rules holds the declarative constraints of a field. Zero values mean
// "no constraint"; pointers distinguish "unset" from "zero".
type Rules struct {
	MinLength *int
	MaxLength *int
	MinValue  *float64
	MaxValue  *float64
	Pattern   *regexp.Regexp
}

// Relation describes the target of a relationship field. The descriptor holds
// a reference to the related model by name, never the related data itself.
type Relation struct {
	// Model is the lowercase name of the related model in the registry.
	Model string
	// DisplayField is the related model's field shown to users.
	DisplayField string

	// JoinTable, SourceColumn and TargetColumn describe the link table of a
	// many_to_many field: SourceColumn holds the owning record's key,
	// TargetColumn the related record's key. Required for many_to_many,
	// unused for the scalar relation types.
	JoinTable    string
	SourceColumn string
	TargetColumn string
}

// Field is the declarative description of one form or list field.
// Fields are constructed at startup and never mutated afterwards.
type Field struct {
	Name     string
	Title    string
	Type     FieldType
	Widget   string
	Required bool
	ReadOnly bool
	Disabled bool
	Default  any

	Rules      Rules
	Validators []Validator

	// Choices enumerates the legal values for choice and multichoice fields.
	Choices []string

	// Relation is set for foreignkey, many_to_many and one_to_one fields.
	Relation *Relation
}

// Label returns the user-facing name of the field.
func (f *Field) Label() string {
	if f.Title != "" {
		return f.Title
	}
	return f.Name
}

// defaultWidgets maps each field type to its default rendering hint.
var defaultWidgets = map[FieldType]string{
	TypeString:      "text",
	TypeNumber:      "input",
	TypeFloat:       "input",
	TypeBoolean:     "switch",
	TypeDate:        "calendar",
	TypeTime:        "calendar",
	TypeDateTime:    "calendar",
	TypeChoice:      "dropdown",
	TypeMultiChoice: "multiSelect",
	TypeForeignKey:  "dropdown",
	TypeManyToMany:  "multiSelect",
	TypeOneToOne:    "dropdown",
	TypeFile:        "upload",
	TypeImage:       "image",
	TypeJSON:        "editor",
	TypeColor:       "colorPicker",
}

// DefaultWidget returns the default widget hint for a field type.
func DefaultWidget(t FieldType) string {
	if w, ok := defaultWidgets[t]; ok {
		return w
	}
	return "text"
}

// Check verifies that the field descriptor is internally consistent. It is
// called at registration time; a failure is a configuration mistake, not a
// runtime condition.
func (f *Field) Check() error {
	if f.Name == "" {
		return fmt.Errorf("field has no name")
	}

	if f.Type == TypePrimaryKey && (!f.ReadOnly || !f.Disabled) {
		return fmt.Errorf("field %s: primarykey fields must be readonly and disabled", f.Name)
	}

	if f.Type.IsRelation() {
		if f.Relation == nil || f.Relation.Model == "" {
			return fmt.Errorf("field %s: %s fields require a related model", f.Name, f.Type)
		}
		if f.Type == TypeManyToMany {
			r := f.Relation
			if r.JoinTable == "" || r.SourceColumn == "" || r.TargetColumn == "" {
				return fmt.Errorf("field %s: many_to_many fields require a join table with source and target columns", f.Name)
			}
		}
	} else if f.Relation != nil {
		return fmt.Errorf("field %s: relation set on non-relationship type %s", f.Name, f.Type)
	}

	if (f.Type == TypeChoice || f.Type == TypeMultiChoice) && len(f.Choices) == 0 {
		return fmt.Errorf("field %s: %s fields require choices", f.Name, f.Type)
	}

	if err := f.checkRules(); err != nil {
		return err
	}

	if f.Default != nil {
		if _, ferr := CoerceValue(f, f.Default); ferr != nil {
			return fmt.Errorf("field %s: default value does not match type %s", f.Name, f.Type)
		}
	}

	for _, v := range f.Validators {
		if v.Check == nil {
			return fmt.Errorf("field %s: validator %q has no check function", f.Name, v.Name)
		}
	}

	return nil
}

// checkRules verifies rule/type compatibility.
func (f *Field) checkRules() error {
	r := f.Rules

	if r.MinLength != nil || r.MaxLength != nil {
		if !f.Type.IsText() && f.Type != TypeChoice {
			return fmt.Errorf("field %s: length rules are not applicable to type %s", f.Name, f.Type)
		}
	}
	if r.MinLength != nil && r.MaxLength != nil && *r.MinLength > *r.MaxLength {
		return fmt.Errorf("field %s: min length %d exceeds max length %d", f.Name, *r.MinLength, *r.MaxLength)
	}

	if r.MinValue != nil || r.MaxValue != nil {
		if !f.Type.IsNumeric() {
			return fmt.Errorf("field %s: value rules are not applicable to type %s", f.Name, f.Type)
		}
	}
	if r.MinValue != nil && r.MaxValue != nil && *r.MinValue > *r.MaxValue {
		return fmt.Errorf("field %s: min value %v exceeds max value %v", f.Name, *r.MinValue, *r.MaxValue)
	}

	if r.Pattern != nil && !f.Type.IsText() {
		return fmt.Errorf("field %s: pattern rule is not applicable to type %s", f.Name, f.Type)
	}

	return nil
}

// Writable reports whether the field may be set by a caller. Primary keys and
// read-only or disabled fields are never writable.
func (f *Field) Writable() bool {
	return f.Type != TypePrimaryKey && !f.ReadOnly && !f.Disabled
}
