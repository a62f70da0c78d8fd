package cache

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"golang.org/x/sync/singleflight"

	"github.com/Konsultn-Engineering/accessorcache/displayname"
)

var (
	// ErrInvalidCapacity is returned by New for a negative capacity.
	ErrInvalidCapacity = errors.New("cache: capacity must not be negative")
	// ErrAccessorType is returned when a member is already cached with a
	// different result type than the one requested.
	ErrAccessorType = errors.New("cache: cached accessor has a different type")
)

// AccessorCache holds compiled accessors per model type and member.
type AccessorCache struct {
	policy   *displayname.Policy
	log      logr.Logger
	metrics  *metrics
	capacity int
	coalesce bool

	newTable func() table
	stores   *xsync.MapOf[reflect.Type, *typeStore]
	flight   singleflight.Group
}

type config struct {
	policy        *displayname.Policy
	logger        logr.Logger
	meterProvider metric.MeterProvider
	capacity      int
	coalesce      bool
}

type Option func(*config)

// WithPolicy shares a display name policy instead of creating one.
func WithPolicy(p *displayname.Policy) Option {
	return func(c *config) { c.policy = p }
}

// WithLogger sets the logger. Lookups log at V(1).
func WithLogger(l logr.Logger) Option {
	return func(c *config) { c.logger = l }
}

// WithMeterProvider enables hit/miss counters.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(c *config) { c.meterProvider = mp }
}

// WithCapacity bounds every per-type store to n entries, evicting the least
// recently used. Zero means unbounded.
func WithCapacity(n int) Option {
	return func(c *config) { c.capacity = n }
}

// WithMissCoalescing makes concurrent misses for the same member share one
// compilation.
func WithMissCoalescing() Option {
	return func(c *config) { c.coalesce = true }
}

// New creates an AccessorCache.
func New(opts ...Option) (*AccessorCache, error) {
	cfg := &config{
		logger:        logr.Discard(),
		meterProvider: noop.NewMeterProvider(),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.capacity < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidCapacity, cfg.capacity)
	}
	if cfg.policy == nil {
		cfg.policy = displayname.NewPolicy()
	}

	m, err := newMetrics(cfg.meterProvider)
	if err != nil {
		return nil, fmt.Errorf("cache: metrics: %w", err)
	}

	newTable := newMapTable
	if size := cfg.capacity; size > 0 {
		newTable = func() table {
			t, _ := newLRUTable(size) // size > 0 never fails
			return t
		}
	}

	return &AccessorCache{
		policy:   cfg.policy,
		log:      cfg.logger.WithName("accessorcache"),
		metrics:  m,
		capacity: cfg.capacity,
		coalesce: cfg.coalesce,
		newTable: newTable,
		stores:   xsync.NewMapOf[reflect.Type, *typeStore](),
	}, nil
}

// Policy returns the display name policy consulted on every miss.
func (c *AccessorCache) Policy() *displayname.Policy {
	return c.policy
}

func (c *AccessorCache) store(t reflect.Type) *typeStore {
	s, _ := c.stores.LoadOrCompute(t, func() *typeStore {
		return newTypeStore(t, c.newTable)
	})
	return s
}

// ClearType drops every entry for model type t. Accessors already returned
// stay usable; only later lookups are affected.
func (c *AccessorCache) ClearType(t reflect.Type) {
	epoch := c.store(t).clear()
	c.metrics.add(c.metrics.clears, t)
	c.log.V(1).Info("store cleared", "type", t.String(), "epoch", epoch.String())
}

// ClearAll clears the store of every model type seen so far.
func (c *AccessorCache) ClearAll() {
	c.stores.Range(func(t reflect.Type, _ *typeStore) bool {
		c.ClearType(t)
		return true
	})
}

// Stats describes one per-type store.
type Stats struct {
	Type     reflect.Type
	Entries  int
	Capacity int
	// Epoch changes on every clear.
	Epoch uuid.UUID
}

func (c *AccessorCache) Stats(t reflect.Type) Stats {
	g := c.store(t).current()
	return Stats{
		Type:     t,
		Entries:  g.table.len(),
		Capacity: c.capacity,
		Epoch:    g.epoch,
	}
}
