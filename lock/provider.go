package lock

import (
	"github.com/google/uuid"

	"github.com/nodecore/resync/event"
	"github.com/nodecore/resync/namespace"
	"github.com/nodecore/resync/timespan"
)

// Provider is the factory of spec.md §4.7.3's "provider/factory that yields
// handles, accepting a namespace, a default TTL, an event bus, and an
// adapter."
type Provider struct {
	adapter Adapter
	ns      *namespace.Namespace
	ttl     timespan.Duration
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

func NewProvider(adapter Adapter, opts ...ProviderOption) *Provider {
	p := &Provider{
		adapter: adapter,
		ns:      namespace.New("lock"),
		ttl:     timespan.Of(defaultTTL),
		bus:     event.NewBus[Event](),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Events returns a subscription to this provider's lifecycle event stream.
func (p *Provider) Events(buffer int) (<-chan Event, func()) {
	return p.bus.Subscribe(buffer)
}

// New creates a lazy Lock handle for key, defaulting its lockId to a
// server-unique UUIDv7 and its ttl/refresh ratio to the provider's
// defaults.
func (p *Provider) New(key string, opts ...Option) *Lock {
	l := &Lock{
		provider:     p,
		key:          key,
		lockID:       uuid.Must(uuid.NewV7()).String(),
		ttl:          p.ttl,
		refreshRatio: defaultRefreshRatio,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// FromHandle deserializes a Handle produced by Lock.Handle (possibly on a
// different node) into an equivalent Lock sharing the same identity, so
// that e.g. a release issued from the reconstructed handle matches a
// runOrFail started elsewhere.
func (p *Provider) FromHandle(h Handle) *Lock {
	return &Lock{
		provider:     p,
		key:          h.Key,
		lockID:       h.LockID,
		ttl:          h.TTL,
		refreshRatio: defaultRefreshRatio,
	}
}
