package registry

import (
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/panelkit/panelkit/internal/admin/schema"
)

// App groups models under a named application.
type App struct {
	Name        string
	VerboseName string
}

// Model is the admin registration of one entity type. Field metadata lives on
// the views; the model carries what the persistence layer needs.
type Model struct {
	// Name is the lowercase registry key.
	Name string
	// Label is the human-readable admin label.
	Label string
	// App is the owning application name.
	App string
	// Table is the storage table name.
	Table string
	// PrimaryKey is the primary key column.
	PrimaryKey string
	// DisplayField is the field shown when this model appears as a
	// relationship target. Empty means only the primary key is shown.
	DisplayField string
	// Columns are the persisted column names, in declaration order.
	Columns []string
}

// HasColumn reports whether the model persists the named column.
func (m *Model) HasColumn(name string) bool {
	if name == m.PrimaryKey {
		return true
	}
	for _, c := range m.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// Registry maps model names to their admin registration and views, and app
// names to their owned models. It is an explicit, constructed value injected
// into services, not a package-level global, so tests can build isolated
// registries.
//
// Registration happens once at process initialization, in dependency order:
// apps, then models, then views. Freeze seals the registry; afterwards
// registration fails and reads need no locking.
type Registry struct {
	mu     sync.RWMutex
	frozen atomic.Bool

	apps   map[string]*App
	models map[string]*Model
	views  map[string][]*schema.View
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		apps:   make(map[string]*App),
		models: make(map[string]*Model),
		views:  make(map[string][]*schema.View),
	}
}

// RegisterApp registers an application.
func (r *Registry) RegisterApp(app *App) error {
	if app.Name == "" {
		return configErr("app", "app has no name")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Checked under the lock: a registration racing Freeze must not land
	// after the cross-checks ran.
	if r.frozen.Load() {
		return configErr(app.Name, "registry is frozen")
	}
	if _, exists := r.apps[app.Name]; exists {
		return configErr(app.Name, "app is already registered")
	}
	r.apps[app.Name] = app
	return nil
}

// RegisterModel registers an entity type. The owning app must already exist.
func (r *Registry) RegisterModel(m *Model) error {
	if m.Name == "" {
		return configErr("model", "model has no name")
	}
	if m.Name != strings.ToLower(m.Name) {
		return configErr(m.Name, "model names must be lowercase")
	}
	if m.Table == "" {
		return configErr(m.Name, "model has no table")
	}
	if m.PrimaryKey == "" {
		return configErr(m.Name, "model has no primary key")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen.Load() {
		return configErr(m.Name, "registry is frozen")
	}
	if _, exists := r.models[m.Name]; exists {
		return configErr(m.Name, "model is already registered")
	}
	if m.App != "" {
		if _, exists := r.apps[m.App]; !exists {
			return configErr(m.Name, "unknown app %q", m.App)
		}
	}
	if m.DisplayField != "" && !m.HasColumn(m.DisplayField) {
		return configErr(m.Name, "display field %q is not a column", m.DisplayField)
	}
	r.models[m.Name] = m
	return nil
}

// RegisterView registers a view for an already-registered model. The view's
// internal consistency (allow-lists, field checks) is verified here; a
// violation is a fatal configuration error, raised immediately.
func (r *Registry) RegisterView(v *schema.View) error {
	if err := v.Check(); err != nil {
		return &ConfigurationError{Subject: v.Name, Reason: err.Error()}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen.Load() {
		return configErr(v.Name, "registry is frozen")
	}
	if _, exists := r.models[v.Model]; !exists {
		return configErr(v.Name, "unknown model %q", v.Model)
	}
	for _, views := range r.views {
		for _, existing := range views {
			if existing.Name == v.Name {
				return configErr(v.Name, "view name collides with an existing view of model %q", existing.Model)
			}
		}
	}
	r.views[v.Model] = append(r.views[v.Model], v)
	return nil
}

// Freeze runs cross-registration checks and seals the registry. After a
// successful freeze all registration calls fail and reads are safe for
// unlimited concurrency without locking.
func (r *Registry) Freeze() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen.Load() {
		return configErr("registry", "already frozen")
	}

	// Relationship fields may reference models registered after the view
	// (forward references), so the check runs here rather than per view.
	for model, views := range r.views {
		for _, v := range views {
			for _, f := range v.Fields {
				if !f.Type.IsRelation() {
					continue
				}
				target, exists := r.models[f.Relation.Model]
				if !exists {
					return configErr(v.Name, "field %s references unregistered model %q", f.Name, f.Relation.Model)
				}
				if f.Relation.DisplayField != "" && !target.HasColumn(f.Relation.DisplayField) {
					return configErr(v.Name, "field %s display field %q is not a column of %q", f.Name, f.Relation.DisplayField, target.Name)
				}
			}
			if m := r.models[model]; m != nil {
				for _, f := range v.Fields {
					if f.Type.IsRelation() {
						continue
					}
					if !m.HasColumn(f.Name) {
						return configErr(v.Name, "field %s is not a column of model %q", f.Name, model)
					}
				}
			}
		}
	}

	r.frozen.Store(true)
	return nil
}

// Frozen reports whether startup registration has completed.
func (r *Registry) Frozen() bool {
	return r.frozen.Load()
}

// Model returns the registration for the named model.
func (r *Registry) Model(name string) (*Model, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, exists := r.models[strings.ToLower(name)]
	if !exists {
		return nil, &NotFoundError{Resource: "model", Identifier: name}
	}
	return m, nil
}

// Views returns all views registered for a model.
func (r *Registry) Views(model string) ([]*schema.View, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	views, exists := r.views[strings.ToLower(model)]
	if !exists || len(views) == 0 {
		return nil, &NotFoundError{Resource: "model", Identifier: model}
	}
	return views, nil
}

// View returns the named view of a model.
func (r *Registry) View(model, name string) (*schema.View, error) {
	views, err := r.Views(model)
	if err != nil {
		return nil, err
	}
	for _, v := range views {
		if v.Name == name {
			return v, nil
		}
	}
	return nil, &NotFoundError{Resource: "view", Identifier: name}
}

// FindView returns the view with the given registry-unique name, searching
// across all models.
func (r *Registry) FindView(name string) (*schema.View, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, views := range r.views {
		for _, v := range views {
			if v.Name == name {
				return v, nil
			}
		}
	}
	return nil, &NotFoundError{Resource: "view", Identifier: name}
}

// AppModels returns the names of the models owned by an app, sorted.
func (r *Registry) AppModels(app string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, exists := r.apps[app]; !exists {
		return nil, &NotFoundError{Resource: "app", Identifier: app}
	}
	var names []string
	for name, m := range r.models {
		if m.App == app {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// Apps returns all registered apps, sorted by name.
func (r *Registry) Apps() []*App {
	r.mu.RLock()
	defer r.mu.RUnlock()

	apps := make([]*App, 0, len(r.apps))
	for _, a := range r.apps {
		apps = append(apps, a)
	}
	sort.Slice(apps, func(i, j int) bool { return apps[i].Name < apps[j].Name })
	return apps
}

// Models returns all registered model names, sorted.
func (r *Registry) Models() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.models))
	for name := range r.models {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Mode selects which allow-list LookupForm matches against.
type Mode int

const (
	ModeCreate Mode = iota
	ModeUpdate
)

// String returns the string representation of the mode.
func (m Mode) String() string {
	switch m {
	case ModeCreate:
		return "create"
	case ModeUpdate:
		return "update"
	default:
		return "unknown"
	}
}

// LookupForm returns the form view of a model whose allow-list covers every
// payload field with the fewest extra fields. When several forms tie, the
// first registered wins.
func (r *Registry) LookupForm(model string, fieldNames []string, mode Mode) (*schema.View, error) {
	views, err := r.Views(model)
	if err != nil {
		return nil, err
	}

	var best *schema.View
	bestExtra := -1
	for _, v := range views {
		if v.Kind != schema.KindForm {
			continue
		}
		allowed := v.CreationFields
		if mode == ModeUpdate {
			allowed = v.AllowedUpdateFields
		}
		allowedSet := make(map[string]bool, len(allowed))
		for _, name := range allowed {
			allowedSet[name] = true
		}
		covered := true
		for _, name := range fieldNames {
			if !allowedSet[name] {
				covered = false
				break
			}
		}
		if !covered {
			continue
		}
		extra := len(allowed) - len(fieldNames)
		if best == nil || extra < bestExtra {
			best = v
			bestExtra = extra
		}
	}

	if best == nil {
		return nil, &NotFoundError{Resource: "form view", Identifier: model}
	}
	return best, nil
}
