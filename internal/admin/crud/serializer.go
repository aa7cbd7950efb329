package crud

import (
	"context"
	"database/sql"
	"time"

	"github.com/panelkit/panelkit/internal/admin/registry"
	"github.com/panelkit/panelkit/internal/admin/schema"
	"github.com/panelkit/panelkit/internal/admin/store"
)

// serializer shapes stored records for the response, resolving relation
// display values through the transaction the caller holds. Serialization
// happens before commit so a failed lookup fails the whole operation instead
// of producing a half-shaped response.
type serializer struct {
	svc   *Service
	tx    store.Querier
	model *registry.Model
}

// serialize projects a stored record onto the view's fields, restricted to
// the given projection. Relation fields are expanded to an id/display pair
// when the target model declares a display field; many_to_many fields are
// resolved through their join table.
func (sz *serializer) serialize(ctx context.Context, view *schema.View, projection []string, record map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(projection))
	for _, name := range projection {
		f, ok := view.Field(name)
		if !ok {
			continue
		}

		if f.Type == schema.TypeManyToMany {
			// Links live in the join table, not the record. Without the
			// owner's key in the record there is nothing to resolve.
			ownerID, ok := record[sz.model.PrimaryKey]
			if !ok {
				continue
			}
			linked, err := sz.expandLinks(ctx, f, ownerID)
			if err != nil {
				return nil, err
			}
			out[name] = linked
			continue
		}

		value, present := record[name]
		if !present {
			continue
		}

		if f.Type.IsRelation() && value != nil {
			expanded, err := sz.expandRelation(ctx, f, value)
			if err != nil {
				return nil, err
			}
			out[name] = expanded
			continue
		}

		out[name] = presentValue(value)
	}
	return out, nil
}

// expandRelation resolves a foreign key to {id, display} using the target
// model's display field. A missing display field keeps the bare key.
func (sz *serializer) expandRelation(ctx context.Context, f *schema.Field, value any) (any, error) {
	target, err := sz.svc.registry.Model(f.Relation.Model)
	if err != nil {
		return nil, err
	}

	displayField := f.Relation.DisplayField
	if displayField == "" {
		displayField = target.DisplayField
	}
	if displayField == "" {
		return value, nil
	}

	row, err := sz.svc.store.GetByID(ctx, sz.tx, target, []string{target.PrimaryKey, displayField}, value)
	if err != nil {
		if store.IsNotFound(err) {
			// Dangling key: keep the bare value rather than failing the
			// read of the owning record.
			return value, nil
		}
		return nil, err
	}

	return map[string]any{
		"id":      row[target.PrimaryKey],
		"display": presentValue(row[displayField]),
	}, nil
}

// expandLinks resolves a many_to_many field to the list of linked records,
// each an {id, display} pair. Targets without a display field come back as
// bare keys.
func (sz *serializer) expandLinks(ctx context.Context, f *schema.Field, ownerID any) ([]any, error) {
	target, err := sz.svc.registry.Model(f.Relation.Model)
	if err != nil {
		return nil, err
	}

	displayField := f.Relation.DisplayField
	if displayField == "" {
		displayField = target.DisplayField
	}

	columns := []string{target.PrimaryKey}
	if displayField != "" {
		columns = append(columns, displayField)
	}

	rows, err := sz.svc.store.SelectLinked(ctx, sz.tx, f.Relation, target, columns, ownerID)
	if err != nil {
		return nil, err
	}

	linked := make([]any, 0, len(rows))
	for _, row := range rows {
		if displayField == "" {
			linked = append(linked, row[target.PrimaryKey])
			continue
		}
		linked = append(linked, map[string]any{
			"id":      row[target.PrimaryKey],
			"display": presentValue(row[displayField]),
		})
	}
	return linked, nil
}

// presentValue unwraps driver values into plain response values.
func presentValue(v any) any {
	switch t := v.(type) {
	case time.Time:
		return t.UTC().Format(time.RFC3339)
	case sql.NullString:
		if t.Valid {
			return t.String
		}
		return nil
	case []byte:
		return string(t)
	default:
		return v
	}
}
