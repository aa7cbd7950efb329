package validation

import (
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/panelkit/panelkit/internal/admin/schema"
)

func intPtr(n int) *int { return &n }

func floatPtr(f float64) *float64 { return &f }

// accountForm declares a user form with a cross-field validator: the email
// local part must match the username.
func accountForm() *schema.View {
	emailMatchesUsername := schema.Validator{
		Name: "email_matches_username",
		Check: func(value any, record map[string]any) *schema.FieldError {
			email, _ := value.(string)
			username, _ := record["username"].(string)
			if username != "" && !strings.HasPrefix(email, username+"@") {
				return &schema.FieldError{Code: schema.CodeCustom, Message: "email must start with the username"}
			}
			return nil
		},
	}

	return &schema.View{
		Name:  "account_form",
		Model: "user",
		Kind:  schema.KindForm,
		Fields: []*schema.Field{
			{Name: "id", Type: schema.TypePrimaryKey, ReadOnly: true, Disabled: true},
			{
				Name: "username", Type: schema.TypeString, Required: true,
				Rules: schema.Rules{MinLength: intPtr(3), Pattern: regexp.MustCompile(`^[a-z0-9_]+$`)},
			},
			{
				Name: "email", Type: schema.TypeString, Required: true,
				Validators: []schema.Validator{emailMatchesUsername},
			},
			{
				Name: "age", Type: schema.TypeNumber,
				Rules: schema.Rules{MinValue: floatPtr(13), MaxValue: floatPtr(130)},
			},
		},
		CreationFields:      []string{"username", "email", "age"},
		AllowedUpdateFields: []string{"email", "age"},
	}
}

func TestValidateForCreate(t *testing.T) {
	engine := NewEngine()
	view := accountForm()

	t.Run("valid payload", func(t *testing.T) {
		result := engine.ValidateForCreate(view, map[string]any{
			"username": "bob",
			"email":    "bob@example.com",
			"age":      30,
		})
		assert.True(t, result.Valid())
	})

	t.Run("missing required field", func(t *testing.T) {
		result := engine.ValidateForCreate(view, map[string]any{
			"username": "bob",
		})
		require.False(t, result.Valid())
		assert.True(t, result.Has("email", schema.CodeRequired))
		assert.NotContains(t, result, "age") // optional, absent is fine
	})

	t.Run("empty string counts as missing", func(t *testing.T) {
		result := engine.ValidateForCreate(view, map[string]any{
			"username": "bob",
			"email":    "",
		})
		assert.True(t, result.Has("email", schema.CodeRequired))
	})

	t.Run("unknown field rejected", func(t *testing.T) {
		result := engine.ValidateForCreate(view, map[string]any{
			"username": "bob",
			"email":    "bob@example.com",
			"is_admin": true,
		})
		require.False(t, result.Valid())
		assert.True(t, result.Has("is_admin", schema.CodeFieldNotAllowed))
	})

	t.Run("readonly field rejected even when declared", func(t *testing.T) {
		result := engine.ValidateForCreate(view, map[string]any{
			"username": "bob",
			"email":    "bob@example.com",
			"id":       7,
		})
		assert.True(t, result.Has("id", schema.CodeFieldNotAllowed))
	})

	t.Run("type mismatch short-circuits the field", func(t *testing.T) {
		result := engine.ValidateForCreate(view, map[string]any{
			"username": "bob",
			"email":    "bob@example.com",
			"age":      "not a number",
		})
		require.Len(t, result["age"], 1)
		assert.True(t, result.Has("age", schema.CodeTypeNumber))
	})

	t.Run("every violated rule reports", func(t *testing.T) {
		result := engine.ValidateForCreate(view, map[string]any{
			"username": "B!", // too short and pattern mismatch
			"email":    "B!@example.com",
		})
		require.Len(t, result["username"], 2)
		assert.True(t, result.Has("username", schema.CodeMinLength))
		assert.True(t, result.Has("username", schema.CodePattern))
	})

	t.Run("rule bounds", func(t *testing.T) {
		result := engine.ValidateForCreate(view, map[string]any{
			"username": "bob",
			"email":    "bob@example.com",
			"age":      7,
		})
		assert.True(t, result.Has("age", schema.CodeMinValue))

		result = engine.ValidateForCreate(view, map[string]any{
			"username": "bob",
			"email":    "bob@example.com",
			"age":      200,
		})
		assert.True(t, result.Has("age", schema.CodeMaxValue))
	})

	t.Run("deterministic", func(t *testing.T) {
		payload := map[string]any{"username": "B!"}
		first := engine.ValidateForCreate(view, payload)
		second := engine.ValidateForCreate(view, payload)
		assert.Equal(t, first, second)
	})
}

func TestValidateForUpdate(t *testing.T) {
	engine := NewEngine()
	view := accountForm()

	existing := map[string]any{
		"id":       1,
		"username": "bob",
		"email":    "bob@example.com",
		"age":      int64(30),
	}

	t.Run("partial payload sees stored context", func(t *testing.T) {
		// Only the email changes; the cross-field validator still sees the
		// stored username through the merged record.
		result := engine.ValidateForUpdate(view, existing, map[string]any{
			"email": "bob@corp.example.com",
		})
		assert.True(t, result.Valid())
	})

	t.Run("cross-field violation against stored value", func(t *testing.T) {
		result := engine.ValidateForUpdate(view, existing, map[string]any{
			"email": "alice@example.com",
		})
		require.False(t, result.Valid())
		assert.True(t, result.Has("email", schema.CodeCustom))
	})

	t.Run("forbidden field rejected before merge", func(t *testing.T) {
		// username is not in the update allow-list, even as a no-op write
		// of its current value.
		result := engine.ValidateForUpdate(view, existing, map[string]any{
			"username": "bob",
			"email":    "bob@example.com",
		})
		require.False(t, result.Valid())
		assert.True(t, result.Has("username", schema.CodeFieldNotAllowed))
	})

	t.Run("clearing a required allowed field", func(t *testing.T) {
		result := engine.ValidateForUpdate(view, existing, map[string]any{
			"email": "",
		})
		assert.True(t, result.Has("email", schema.CodeRequired))
	})

	t.Run("stored fields are revalidated", func(t *testing.T) {
		stale := Merge(existing, map[string]any{"age": int64(7)})
		result := engine.ValidateForUpdate(view, stale, map[string]any{
			"email": "bob@example.com",
		})
		assert.True(t, result.Has("age", schema.CodeMinValue))
	})

	t.Run("inputs are not mutated", func(t *testing.T) {
		payload := map[string]any{"email": "bob@new.example.com"}
		engine.ValidateForUpdate(view, existing, payload)
		assert.Equal(t, "bob@example.com", existing["email"])
		assert.Len(t, payload, 1)
	})
}

func TestMerge(t *testing.T) {
	existing := map[string]any{"a": 1, "b": 2}
	payload := map[string]any{"b": 20, "c": 3}

	merged := Merge(existing, payload)
	assert.Equal(t, map[string]any{"a": 1, "b": 20, "c": 3}, merged)
	assert.Equal(t, map[string]any{"a": 1, "b": 2}, existing)
	assert.Equal(t, map[string]any{"b": 20, "c": 3}, payload)
}

func TestRecordRules(t *testing.T) {
	engine := NewEngine()
	view := accountForm()
	view.RecordRules = []schema.RecordRule{{
		Name:  "adult_needs_email",
		Field: "email",
		Check: func(record map[string]any) *schema.FieldError {
			age, _ := record["age"].(int64)
			email, _ := record["email"].(string)
			if age >= 18 && email == "" {
				return &schema.FieldError{Code: schema.CodeCustom, Message: "adults need an email"}
			}
			return nil
		},
	}}

	result := engine.ValidateForUpdate(view,
		map[string]any{"id": 1, "username": "bob", "email": "bob@x.io", "age": int64(30)},
		map[string]any{"email": ""},
	)
	require.False(t, result.Valid())
	assert.True(t, result.Has("email", schema.CodeCustom))
}

func TestResult(t *testing.T) {
	r := NewResult()
	assert.True(t, r.Valid())
	assert.Zero(t, r.Count())

	r.Add("b", schema.RequiredError("b"))
	r.Add("a", schema.RequiredError("a"))
	r.Add("a", schema.PatternError("a"))

	assert.False(t, r.Valid())
	assert.Equal(t, 3, r.Count())
	assert.Equal(t, []string{"a", "b"}, r.Fields())
	assert.True(t, r.Has("a", schema.CodePattern))
	assert.False(t, r.Has("b", schema.CodePattern))
}
