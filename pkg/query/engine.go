package query

import (
	"sync"

	"github.com/dd0wney/cluso-graphquery/pkg/logging"
	"github.com/dd0wney/cluso-graphquery/pkg/metrics"
	"github.com/dd0wney/cluso-graphquery/pkg/storage"
	"github.com/dd0wney/cluso-graphquery/pkg/wire"
)

// EngineConfig configures an Engine. Zero values are usable.
type EngineConfig struct {
	// DefaultLimit applies to queries that give no limit; 0 leaves them unlimited
	DefaultLimit int
	// MaxLimit caps every query limit; 0 means no cap
	MaxLimit int

	Logger  logging.Logger
	Metrics *metrics.Registry
}

// Engine is the store shared by every Handler, together with the lock that
// serializes their transactions. A transaction holds the lock from its first
// command to its commit or rollback.
type Engine struct {
	store   *storage.GraphStorage
	mu      sync.Mutex
	cfg     EngineConfig
	logger  logging.Logger
	metrics *metrics.Registry
}

// NewEngine wraps store
func NewEngine(store *storage.GraphStorage, cfg EngineConfig) *Engine {
	e := &Engine{store: store, cfg: cfg, logger: cfg.Logger, metrics: cfg.Metrics}
	if e.logger == nil {
		e.logger = logging.NewNopLogger()
	}
	if e.metrics == nil {
		e.metrics = metrics.NewRegistry()
	}
	e.metrics.UpdateStoreSize(store.NodeCount(), store.EdgeCount())
	return e
}

// Store returns the underlying graph store
func (e *Engine) Store() *storage.GraphStorage {
	return e.store
}

// NewHandler creates a handler bound to this engine. Each connection or worker
// owns exactly one handler; fields are added to its log lines.
func (e *Engine) NewHandler(fields ...logging.Field) *Handler {
	return &Handler{
		engine: e,
		logger: e.logger.With(append([]logging.Field{logging.Component("handler")}, fields...)...),
		refs:   NewReferenceCache(),
	}
}

// limitFor applies the configured default and cap to a requested limit
func (e *Engine) limitFor(spec wire.ResultSpec) wire.ResultSpec {
	switch {
	case spec.Limit == nil && e.cfg.DefaultLimit > 0:
		spec.Limit = wire.Limit(e.cfg.DefaultLimit)
	case spec.Limit == nil && e.cfg.MaxLimit > 0:
		spec.Limit = wire.Limit(e.cfg.MaxLimit)
	}
	if e.cfg.MaxLimit > 0 && spec.Limit != nil && *spec.Limit > e.cfg.MaxLimit {
		spec.Limit = wire.Limit(e.cfg.MaxLimit)
	}
	return spec
}
