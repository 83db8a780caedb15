// Package namespace provides deterministic key prefixing with a reserved
// root marker, so that keys belonging to different subsystems (locks,
// semaphores, caches) sharing one backing store can never collide, grounded
// on storage/cache.Key's prefix-formatting idiom but generalized from a
// single printf-style template into a delimited, round-trippable segment
// path.
package namespace

import (
	"errors"
	"strings"
)

// DefaultIdentifier is the reserved token marking the boundary between a
// namespace's root path and a user-supplied key.
const DefaultIdentifier = "_rt"

// DefaultDelim separates segments within a namespaced key.
const DefaultDelim = ":"

// ErrReservedIdentifier is returned by Create when a user key contains the
// namespace's root identifier token. A root path containing it makes New
// panic instead.
var ErrReservedIdentifier = errors.New("namespace: key contains reserved root identifier")

// Namespace formats user keys into a namespaced form
// "<root><delim><identifier><delim><key>", rejecting any root or key segment
// that itself contains the identifier token so the round-trip in Parse stays
// injective.
type Namespace struct {
	root       string
	delim      string
	identifier string
}

type Option func(*Namespace)

// WithDelim overrides the default ":" segment delimiter.
func WithDelim(delim string) Option {
	return func(n *Namespace) { n.delim = delim }
}

// WithIdentifier overrides the default "_rt" root identifier token.
func WithIdentifier(id string) Option {
	return func(n *Namespace) { n.identifier = id }
}

// New builds a Namespace rooted at root. It panics if root itself contains
// the root identifier, since every key formatted from a broken namespace
// would be unparseable.
func New(root string, opts ...Option) *Namespace {
	n := &Namespace{root: root, delim: DefaultDelim, identifier: DefaultIdentifier}
	for _, opt := range opts {
		opt(n)
	}
	if strings.Contains(root, n.identifier) {
		panic("namespace: root contains reserved identifier " + n.identifier)
	}
	return n
}

// Root returns the namespace's root path.
func (n *Namespace) Root() string {
	return n.root
}

// Key is a namespaced key: Original is the caller-supplied form, Namespaced
// is the fully qualified form safe to use against a shared backing store.
type Key struct {
	Original   string
	Namespaced string
}

// Create builds a Key for key under n, rejecting key if it contains n's
// root identifier token.
func (n *Namespace) Create(key string) (Key, error) {
	if strings.Contains(key, n.identifier) {
		return Key{}, ErrReservedIdentifier
	}

	return Key{
		Original:   key,
		Namespaced: n.root + n.delim + n.identifier + n.delim + key,
	}, nil
}

// MustCreate is Create but panics on error, for call sites that construct
// keys from compile-time-known strings.
func (n *Namespace) MustCreate(key string) Key {
	k, err := n.Create(key)
	if err != nil {
		panic(err)
	}
	return k
}

// Parse recovers the original user key from a namespaced key produced by
// this Namespace, reversing Create. It fails if namespaced does not carry
// this namespace's root and identifier.
func (n *Namespace) Parse(namespaced string) (string, error) {
	prefix := n.root + n.delim + n.identifier + n.delim
	if !strings.HasPrefix(namespaced, prefix) {
		return "", errors.New("namespace: key does not belong to this namespace")
	}
	return strings.TrimPrefix(namespaced, prefix), nil
}
