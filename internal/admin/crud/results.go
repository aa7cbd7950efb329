package crud

import (
	"errors"
	"fmt"

	"github.com/panelkit/panelkit/internal/admin/query"
	"github.com/panelkit/panelkit/internal/admin/registry"
	"github.com/panelkit/panelkit/internal/admin/store"
	"github.com/panelkit/panelkit/internal/admin/validation"
)

// Page is one page of serialized records plus pagination metadata. Total is
// counted under the same transaction snapshot as the items.
type Page struct {
	Items      []map[string]any `json:"items"`
	Total      int64            `json:"total"`
	Page       int              `json:"page"`
	PageSize   int              `json:"page_size"`
	TotalPages int              `json:"total_pages"`
	HasNext    bool             `json:"has_next"`
	HasPrev    bool             `json:"has_prev"`
}

func newPage(items []map[string]any, total int64, desc *query.Descriptor) *Page {
	totalPages := int((total + int64(desc.PageSize) - 1) / int64(desc.PageSize))
	return &Page{
		Items:      items,
		Total:      total,
		Page:       desc.Page,
		PageSize:   desc.PageSize,
		TotalPages: totalPages,
		HasNext:    desc.Page < totalPages,
		HasPrev:    desc.Page > 1 && total > 0,
	}
}

// ValidationError reports a payload rejected by the validation engine. Result
// carries every error found, grouped by field.
type ValidationError struct {
	Result validation.Result
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %d errors on %d fields", e.Result.Count(), len(e.Result))
}

// IsValidationFailed reports whether err is a validation rejection.
func IsValidationFailed(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// ValidationResult extracts the per-field errors from a validation rejection.
func ValidationResult(err error) (validation.Result, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Result, true
	}
	return nil, false
}

// IsNotFound reports whether err means a missing record, model, or view.
func IsNotFound(err error) bool {
	return store.IsNotFound(err) || registry.IsNotFound(err)
}

// IsInvalidFilter reports whether err is a malformed list parameter.
func IsInvalidFilter(err error) bool {
	var fe *query.InvalidFilterError
	return errors.As(err, &fe)
}
