// Package panelkit is a metadata-driven admin kernel. Applications register
// apps, models and views once at startup, freeze the registry, and get
// validation, querying and CRUD for every registered model from a single
// service.
package panelkit

import (
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/panelkit/panelkit/internal/admin/crud"
	"github.com/panelkit/panelkit/internal/admin/query"
	"github.com/panelkit/panelkit/internal/admin/registry"
	"github.com/panelkit/panelkit/internal/admin/store"
	"github.com/panelkit/panelkit/internal/config"
	"github.com/panelkit/panelkit/internal/log"
)

// Admin owns one registry and the service operating over it.
type Admin struct {
	registry *registry.Registry
	service  *crud.Service
	logger   *zap.Logger
}

// Option customizes Admin construction.
type Option func(*options)

type options struct {
	cfg    *config.Config
	logger *zap.Logger
}

// WithConfig supplies settings instead of loading panelkit.yml.
func WithConfig(cfg *config.Config) Option {
	return func(o *options) { o.cfg = cfg }
}

// WithLogger supplies a logger instead of building one from settings.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// New builds an Admin over the database handle. register is called with the
// fresh registry; the registry is frozen when it returns, so all
// configuration mistakes surface here, before the first request.
func New(db *sql.DB, register func(*registry.Registry) error, opts ...Option) (*Admin, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	if o.cfg == nil {
		cfg, err := config.Load()
		if err != nil {
			return nil, err
		}
		o.cfg = cfg
	}
	if o.logger == nil {
		logger, err := log.New(o.cfg.Log)
		if err != nil {
			return nil, err
		}
		o.logger = logger
	}

	reg := registry.New()
	if err := register(reg); err != nil {
		return nil, fmt.Errorf("registration failed: %w", err)
	}
	if err := reg.Freeze(); err != nil {
		return nil, err
	}
	o.logger.Info("registry frozen",
		zap.Int("apps", len(reg.Apps())),
		zap.Strings("models", reg.Models()),
	)

	limits := query.Limits{
		DefaultPageSize: o.cfg.Pagination.DefaultPageSize,
		MaxPageSize:     o.cfg.Pagination.MaxPageSize,
	}
	service := crud.NewService(reg, store.NewSQLStore(), store.NewTxManager(db), limits, o.logger)

	return &Admin{registry: reg, service: service, logger: o.logger}, nil
}

// Registry returns the frozen registry.
func (a *Admin) Registry() *registry.Registry {
	return a.registry
}

// Service returns the CRUD service.
func (a *Admin) Service() *crud.Service {
	return a.service
}

// Logger returns the process logger.
func (a *Admin) Logger() *zap.Logger {
	return a.logger
}
