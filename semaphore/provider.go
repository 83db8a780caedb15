package semaphore

import (
	"github.com/nodecore/resync/event"
	"github.com/nodecore/resync/namespace"
	"github.com/nodecore/resync/timespan"
)

// Provider is the factory yielding Semaphore handles, analogous to
// lock.Provider but parametrized by a slot limit.
type Provider struct {
	adapter Adapter
	ns      *namespace.Namespace
	ttl     timespan.Duration
	limit   int
	bus     *event.Bus[Event]
}

type ProviderOption func(*Provider)

func WithDefaultTTL(ttl timespan.Duration) ProviderOption {
	return func(p *Provider) { p.ttl = ttl }
}

func WithNamespace(ns *namespace.Namespace) ProviderOption {
	return func(p *Provider) { p.ns = ns }
}

func WithEventBus(bus *event.Bus[Event]) ProviderOption {
	return func(p *Provider) { p.bus = bus }
}

// NewProvider builds a Provider for semaphores with the given slot limit.
func NewProvider(adapter Adapter, limit int, opts ...ProviderOption) *Provider {
	p := &Provider{
		adapter: adapter,
		ns:      namespace.New("semaphore"),
		ttl:     timespan.Of(defaultTTL),
		limit:   limit,
		bus:     event.NewBus[Event](),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Provider) Events(buffer int) (<-chan Event, func()) {
	return p.bus.Subscribe(buffer)
}

// New creates a lazy Semaphore handle for key, defaulting its slotId to a
// server-unique UUIDv7 and its ttl/limit to the provider's defaults.
func (p *Provider) New(key string, opts ...Option) *Semaphore {
	s := &Semaphore{
		provider: p,
		key:      key,
		slotID:   newSlotID(),
		limit:    p.limit,
		ttl:      p.ttl,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}
