// Package crud implements the generic persistence operations. A single
// Service covers every registered model: each call names a view, and the
// view's metadata drives validation, write scope, and response shape.
package crud

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/panelkit/panelkit/internal/admin/query"
	"github.com/panelkit/panelkit/internal/admin/registry"
	"github.com/panelkit/panelkit/internal/admin/schema"
	"github.com/panelkit/panelkit/internal/admin/store"
	"github.com/panelkit/panelkit/internal/admin/validation"
)

// Service executes metadata-driven CRUD against the registry's models.
type Service struct {
	registry *registry.Registry
	store    store.Store
	tx       *store.TxManager
	engine   *validation.Engine
	limits   query.Limits
	logger   *zap.Logger
}

// NewService wires a CRUD service. A nil logger disables logging.
func NewService(reg *registry.Registry, st store.Store, tx *store.TxManager, limits query.Limits, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		registry: reg,
		store:    st,
		tx:       tx,
		engine:   validation.NewEngine(),
		limits:   limits,
		logger:   logger,
	}
}

// Create validates a creation payload against the named view and persists it.
// Declared defaults fill absent fields before validation. On success the
// stored record is returned, serialized through the view.
func (s *Service) Create(ctx context.Context, viewName string, payload map[string]any) (map[string]any, error) {
	view, model, err := s.resolve(viewName)
	if err != nil {
		return nil, err
	}
	log := s.opLogger("create", model, view)

	data := applyDefaults(view, payload)

	if result := s.engine.ValidateForCreate(view, data); !result.Valid() {
		log.Info("create rejected", zap.Int("errors", result.Count()), zap.Strings("fields", result.Fields()))
		return nil, &ValidationError{Result: result}
	}

	allowed := creationAllowed(view)
	values, err := columnValues(view, model, data, allowed)
	if err != nil {
		return nil, err
	}
	links, err := linkWrites(view, data, allowed)
	if err != nil {
		return nil, err
	}

	var out map[string]any
	err = s.tx.WithTransaction(ctx, func(tx *sql.Tx) error {
		inserted, err := s.store.Insert(ctx, tx, model, values)
		if err != nil {
			return err
		}
		for _, lw := range links {
			if err := s.store.ReplaceLinks(ctx, tx, lw.field.Relation, inserted[model.PrimaryKey], lw.targets); err != nil {
				return err
			}
		}
		sz := &serializer{svc: s, tx: tx, model: model}
		out, err = sz.serialize(ctx, view, viewShape(view, model), inserted)
		return err
	})
	if err != nil {
		log.Error("create failed", zap.Error(err))
		return nil, err
	}

	log.Info("record created", zap.Any("id", out[model.PrimaryKey]))
	return out, nil
}

// Read fetches one record by primary key, serialized through the view.
func (s *Service) Read(ctx context.Context, viewName string, id any) (map[string]any, error) {
	view, model, err := s.resolve(viewName)
	if err != nil {
		return nil, err
	}

	columns := viewColumns(view, model)

	var out map[string]any
	err = s.tx.WithReadTransaction(ctx, func(tx *sql.Tx) error {
		record, err := s.store.GetByID(ctx, tx, model, columns, id)
		if err != nil {
			return err
		}
		sz := &serializer{svc: s, tx: tx, model: model}
		out, err = sz.serialize(ctx, view, viewShape(view, model), record)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Update applies a partial payload to a stored record. The payload is merged
// over the stored record for validation visibility, but only the payload's
// own writable fields are written back.
func (s *Service) Update(ctx context.Context, viewName string, id any, payload map[string]any) (map[string]any, error) {
	view, model, err := s.resolve(viewName)
	if err != nil {
		return nil, err
	}
	log := s.opLogger("update", model, view)

	var out map[string]any
	err = s.tx.WithTransaction(ctx, func(tx *sql.Tx) error {
		existing, err := s.store.GetByID(ctx, tx, model, nil, id)
		if err != nil {
			return err
		}

		if result := s.engine.ValidateForUpdate(view, existing, payload); !result.Valid() {
			log.Info("update rejected", zap.Any("id", id), zap.Int("errors", result.Count()), zap.Strings("fields", result.Fields()))
			return &ValidationError{Result: result}
		}

		// The write delta contains only fields the caller actually sent;
		// merged values that came from the stored record are not rewritten.
		allowed := updateAllowed(view)
		delta, err := columnValues(view, model, payload, allowed)
		if err != nil {
			return err
		}
		links, err := linkWrites(view, payload, allowed)
		if err != nil {
			return err
		}

		updated, err := s.store.Update(ctx, tx, model, id, delta)
		if err != nil {
			return err
		}
		for _, lw := range links {
			if err := s.store.ReplaceLinks(ctx, tx, lw.field.Relation, id, lw.targets); err != nil {
				return err
			}
		}
		sz := &serializer{svc: s, tx: tx, model: model}
		out, err = sz.serialize(ctx, view, viewShape(view, model), updated)
		return err
	})
	if err != nil {
		if !IsValidationFailed(err) {
			log.Error("update failed", zap.Any("id", id), zap.Error(err))
		}
		return nil, err
	}

	log.Info("record updated", zap.Any("id", id))
	return out, nil
}

// Delete removes one record by primary key.
func (s *Service) Delete(ctx context.Context, viewName string, id any) error {
	view, model, err := s.resolve(viewName)
	if err != nil {
		return err
	}
	log := s.opLogger("delete", model, view)

	err = s.tx.WithTransaction(ctx, func(tx *sql.Tx) error {
		return s.store.Delete(ctx, tx, model, id)
	})
	if err != nil {
		if !store.IsNotFound(err) {
			log.Error("delete failed", zap.Any("id", id), zap.Error(err))
		}
		return err
	}

	log.Info("record deleted", zap.Any("id", id))
	return nil
}

// List fetches one page of records matching the raw query parameters. The
// page and its total count are read under a single snapshot, so the metadata
// is consistent with the items even under concurrent writes.
func (s *Service) List(ctx context.Context, viewName string, params url.Values) (*Page, error) {
	view, model, err := s.resolve(viewName)
	if err != nil {
		return nil, err
	}

	desc, err := query.NewParser(view, s.limits).Parse(params)
	if err != nil {
		return nil, err
	}

	// The projection shapes the response; only its persisted columns go
	// into the SELECT (many_to_many fields resolve through their join
	// tables during serialization).
	projection := desc.Projection(viewShape(view, model))
	columns := make([]string, 0, len(projection))
	for _, name := range projection {
		if model.HasColumn(name) {
			columns = append(columns, name)
		}
	}

	var page *Page
	err = s.tx.WithReadTransaction(ctx, func(tx *sql.Tx) error {
		total, err := s.store.Count(ctx, tx, model, desc)
		if err != nil {
			return err
		}

		records, err := s.store.Select(ctx, tx, model, columns, desc)
		if err != nil {
			return err
		}

		sz := &serializer{svc: s, tx: tx, model: model}
		items := make([]map[string]any, 0, len(records))
		for _, record := range records {
			item, err := sz.serialize(ctx, view, projection, record)
			if err != nil {
				return err
			}
			items = append(items, item)
		}

		page = newPage(items, total, desc)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return page, nil
}

// resolve maps a view name to its view and owning model.
func (s *Service) resolve(viewName string) (*schema.View, *registry.Model, error) {
	view, err := s.registry.FindView(viewName)
	if err != nil {
		return nil, nil, err
	}
	model, err := s.registry.Model(view.Model)
	if err != nil {
		return nil, nil, err
	}
	return view, model, nil
}

func (s *Service) opLogger(op string, model *registry.Model, view *schema.View) *zap.Logger {
	return s.logger.With(
		zap.String("request_id", uuid.NewString()),
		zap.String("operation", op),
		zap.String("model", model.Name),
		zap.String("view", view.Name),
	)
}

// applyDefaults copies the payload and fills declared defaults for absent
// creation fields. The caller's map is never mutated.
func applyDefaults(view *schema.View, payload map[string]any) map[string]any {
	allowed := creationAllowed(view)
	data := make(map[string]any, len(payload))
	for k, v := range payload {
		data[k] = v
	}
	for _, f := range view.Fields {
		if f.Default == nil || !allowed[f.Name] {
			continue
		}
		if _, present := data[f.Name]; !present {
			data[f.Name] = f.Default
		}
	}
	return data
}

// columnValues extracts the persistable write set from a payload: allowed
// declared fields that are stored columns, with values coerced to their
// declared types. Runs after validation, so coercion failures are internal
// errors.
func columnValues(view *schema.View, model *registry.Model, payload map[string]any, allowed map[string]bool) (map[string]any, error) {
	values := make(map[string]any)
	for _, f := range view.Fields {
		if !allowed[f.Name] || !model.HasColumn(f.Name) {
			continue
		}
		raw, present := payload[f.Name]
		if !present {
			continue
		}
		if raw == nil {
			values[f.Name] = nil
			continue
		}
		coerced, ferr := schema.CoerceValue(f, raw)
		if ferr != nil {
			return nil, fmt.Errorf("coerce %s.%s: %s", model.Name, f.Name, ferr.Message)
		}
		values[f.Name] = coerced
	}
	return values, nil
}

// linkWrite pairs a many_to_many field with the target keys the caller sent.
type linkWrite struct {
	field   *schema.Field
	targets []any
}

// linkWrites extracts the join-table write set from a payload: allowed
// many_to_many fields the caller actually sent, their values coerced to key
// lists. A nil value clears the field's links.
func linkWrites(view *schema.View, payload map[string]any, allowed map[string]bool) ([]linkWrite, error) {
	var links []linkWrite
	for _, f := range view.Fields {
		if f.Type != schema.TypeManyToMany || !allowed[f.Name] {
			continue
		}
		raw, present := payload[f.Name]
		if !present {
			continue
		}
		if raw == nil {
			links = append(links, linkWrite{field: f})
			continue
		}
		coerced, ferr := schema.CoerceValue(f, raw)
		if ferr != nil {
			return nil, fmt.Errorf("coerce %s: %s", f.Name, ferr.Message)
		}
		targets, _ := coerced.([]any)
		links = append(links, linkWrite{field: f, targets: targets})
	}
	return links, nil
}

// viewColumns lists the view's declared fields that the model persists, in
// declaration order.
func viewColumns(view *schema.View, model *registry.Model) []string {
	var columns []string
	for _, f := range view.Fields {
		if model.HasColumn(f.Name) {
			columns = append(columns, f.Name)
		}
	}
	return columns
}

// viewShape lists the view's response fields in declaration order: persisted
// columns plus many_to_many fields, which serialize from their join tables.
func viewShape(view *schema.View, model *registry.Model) []string {
	var names []string
	for _, f := range view.Fields {
		if model.HasColumn(f.Name) || f.Type == schema.TypeManyToMany {
			names = append(names, f.Name)
		}
	}
	return names
}

func creationAllowed(view *schema.View) map[string]bool {
	return allowedSet(view, view.CreationFields)
}

func updateAllowed(view *schema.View) map[string]bool {
	return allowedSet(view, view.AllowedUpdateFields)
}

func allowedSet(view *schema.View, names []string) map[string]bool {
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
