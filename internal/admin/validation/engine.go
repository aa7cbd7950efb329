package validation

import (
	"github.com/panelkit/panelkit/internal/admin/schema"
)

// Engine validates payloads against a view's declared fields. It holds no
// per-request state and is safe for concurrent use.
type Engine struct{}

// NewEngine creates a validation engine.
func NewEngine() *Engine {
	return &Engine{}
}

// ValidateForCreate validates a full creation payload against the view.
//
// Payload keys outside the view's creation fields are rejected with
// FIELD_NOT_ALLOWED. Declared creation fields are then checked in declaration
// order: required fields must be present and non-empty; present values are
// coerced to the field's type (a mismatch ends that field's evaluation), then
// each rule and custom validator contributes at most one error. Validators
// receive the payload as their record context.
func (e *Engine) ValidateForCreate(view *schema.View, payload map[string]any) Result {
	result := NewResult()

	allowed := e.allowedSet(view, view.CreationFields)
	e.rejectUnknown(payload, allowed, result)

	for _, f := range view.Fields {
		if !allowed[f.Name] {
			continue
		}
		value, present := payload[f.Name]
		if !present || isEmpty(value) {
			if f.Required {
				result.Add(f.Name, schema.RequiredError(f.Label()))
			}
			continue
		}
		e.validateField(f, value, payload, result)
	}

	e.runRecordRules(view, payload, result)

	return result
}

// ValidateForUpdate validates a partial update payload against the view,
// using the stored record for cross-field visibility.
//
// The allow-list check runs against the raw payload, before merging, so a
// forbidden field cannot be smuggled in as a no-op write of its current
// value. Semantic validation then runs against the merged view of the stored
// record and the payload (payload values win), so every validator - single-
// or multi-field - sees the full post-update state. The merged record exists
// for validation visibility only; what gets written is the caller's concern.
func (e *Engine) ValidateForUpdate(view *schema.View, existing, payload map[string]any) Result {
	result := NewResult()

	allowed := e.allowedSet(view, view.AllowedUpdateFields)
	e.rejectUnknown(payload, allowed, result)

	merged := Merge(existing, payload)

	for _, f := range view.Fields {
		value, present := merged[f.Name]
		if !present {
			continue
		}
		if isEmpty(value) {
			// Only flag emptiness on fields the caller may actually set;
			// absent stored values of untouchable fields are not re-flagged.
			if f.Required && allowed[f.Name] {
				result.Add(f.Name, schema.RequiredError(f.Label()))
			}
			continue
		}
		e.validateField(f, value, merged, result)
	}

	e.runRecordRules(view, merged, result)

	return result
}

// Merge builds the merged view of a stored record and a partial payload, with
// payload values taking precedence. Neither input is mutated.
func Merge(existing, payload map[string]any) map[string]any {
	merged := make(map[string]any, len(existing)+len(payload))
	for k, v := range existing {
		merged[k] = v
	}
	for k, v := range payload {
		merged[k] = v
	}
	return merged
}

// allowedSet resolves the effective allow-list: the explicit list when given,
// otherwise every writable declared field.
func (e *Engine) allowedSet(view *schema.View, names []string) map[string]bool {
	allowed := make(map[string]bool)
	if len(names) > 0 {
		for _, name := range names {
			allowed[name] = true
		}
		return allowed
	}
	for _, f := range view.Fields {
		if f.Writable() {
			allowed[f.Name] = true
		}
	}
	return allowed
}

// rejectUnknown flags raw payload keys outside the allow-list. Undeclared
// keys are rejected the same way: callers cannot write attributes the view
// does not declare.
func (e *Engine) rejectUnknown(payload map[string]any, allowed map[string]bool, result Result) {
	for name := range payload {
		if !allowed[name] {
			result.Add(name, schema.NotAllowedError(name))
		}
	}
}

// validateField coerces the value, then runs rules and custom validators in
// declaration order. A type mismatch ends the field's evaluation; after a
// successful coercion every violated rule and validator contributes one
// message, so a client sees all failures in a single round trip.
func (e *Engine) validateField(f *schema.Field, value any, record map[string]any, result Result) {
	coerced, ferr := schema.CoerceValue(f, value)
	if ferr != nil {
		result.Add(f.Name, *ferr)
		return
	}

	for _, err := range checkRules(f, coerced) {
		result.Add(f.Name, err)
	}

	for _, v := range f.Validators {
		if err := v.Check(coerced, record); err != nil {
			result.Add(f.Name, *err)
		}
	}
}

func (e *Engine) runRecordRules(view *schema.View, record map[string]any, result Result) {
	for _, rule := range view.RecordRules {
		if err := rule.Check(record); err != nil {
			field := rule.Field
			if field == "" {
				field = rule.Name
			}
			result.Add(field, *err)
		}
	}
}

// isEmpty reports whether a payload value counts as absent for required-field
// checks: nil or the empty string.
func isEmpty(value any) bool {
	if value == nil {
		return true
	}
	if s, ok := value.(string); ok {
		return s == ""
	}
	return false
}
