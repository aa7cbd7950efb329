package schema

import "fmt"

// ViewKind distinguishes form views from list views.
type ViewKind int

const (
	KindForm ViewKind = iota
	KindList
)

// String returns the string representation of the view kind.
func (k ViewKind) String() string {
	switch k {
	case KindForm:
		return "form"
	case KindList:
		return "list"
	default:
		return "unknown"
	}
}

// RecordRule is a view-level validation rule that examines the whole record.
// The field name controls which field the resulting error is reported under.
type RecordRule struct {
	Name  string
	Field string
	Check func(record map[string]any) *FieldError
}

// View is a named, model-bound, ordered collection of field descriptors
// representing one use case. Views are created at startup, stored in the
// registry, and never mutated after registration completes.
type View struct {
	// Name is unique across the registry.
	Name string
	// Model is the lowercase name of the owning model.
	Model string
	Kind  ViewKind

	// Fields is ordered; names are unique within the view.
	Fields []*Field

	// CreationFields and AllowedUpdateFields restrict which fields the
	// create and update operations may set. Empty means unrestricted.
	CreationFields      []string
	AllowedUpdateFields []string

	// RecordRules run against the full (merged) record after per-field
	// validation.
	RecordRules []RecordRule

	byName map[string]*Field
}

// Field returns the descriptor for the named field, if declared. The lookup
// map is built once by Check, so after registration this is a pure read and
// any number of goroutines may call it. A view that never passed Check falls
// back to a linear scan.
func (v *View) Field(name string) (*Field, bool) {
	if v.byName != nil {
		f, ok := v.byName[name]
		return f, ok
	}
	for _, f := range v.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return nil, false
}

// FieldNames returns the declared field names in order.
func (v *View) FieldNames() []string {
	names := make([]string, len(v.Fields))
	for i, f := range v.Fields {
		names[i] = f.Name
	}
	return names
}

// PrimaryKeyField returns the view's primarykey field, if declared.
func (v *View) PrimaryKeyField() (*Field, bool) {
	for _, f := range v.Fields {
		if f.Type == TypePrimaryKey {
			return f, true
		}
	}
	return nil, false
}

// Check validates the view descriptor for internal consistency. It is invoked
// during registration; any failure is a fatal configuration error, raised
// immediately rather than at request time.
func (v *View) Check() error {
	if v.Name == "" {
		return fmt.Errorf("view has no name")
	}
	if v.Model == "" {
		return fmt.Errorf("view %s: no model", v.Name)
	}
	if len(v.Fields) == 0 {
		return fmt.Errorf("view %s: no fields declared", v.Name)
	}

	byName := make(map[string]*Field, len(v.Fields))
	for _, f := range v.Fields {
		if f == nil {
			return fmt.Errorf("view %s: nil field descriptor", v.Name)
		}
		if _, dup := byName[f.Name]; dup {
			return fmt.Errorf("view %s: duplicate field %s", v.Name, f.Name)
		}
		byName[f.Name] = f
		if err := f.Check(); err != nil {
			return fmt.Errorf("view %s: %w", v.Name, err)
		}
	}

	if err := v.checkAllowList("creation_fields", v.CreationFields, byName); err != nil {
		return err
	}
	if err := v.checkAllowList("allowed_update_fields", v.AllowedUpdateFields, byName); err != nil {
		return err
	}

	for _, r := range v.RecordRules {
		if r.Check == nil {
			return fmt.Errorf("view %s: record rule %q has no check function", v.Name, r.Name)
		}
		if _, declared := byName[r.Field]; r.Field != "" && !declared {
			return fmt.Errorf("view %s: record rule %q reports on undeclared field %s", v.Name, r.Name, r.Field)
		}
	}

	// The lookup map is the last write to the view; every later Field call
	// is read-only.
	v.byName = byName
	return nil
}

func (v *View) checkAllowList(list string, names []string, declared map[string]*Field) error {
	var missing []string
	for _, name := range names {
		if _, ok := declared[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("view %s: %s reference undeclared fields: %v", v.Name, list, missing)
	}
	return nil
}
