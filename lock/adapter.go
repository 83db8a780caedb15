// Package lock implements the distributed-lock core of spec.md §4.7: a raw
// Adapter contract with Memory/Redis/SQL implementations, and a Provider
// producing lazy Lock handles (acquire/release/refresh/run variants, blocking
// acquisition, lifecycle events), grounded throughout on dsync/lock.Locker's
// shape generalized off a single hardcoded Redis backend.
package lock

import (
	"context"

	"github.com/nodecore/resync/timespan"
)

// Adapter is the raw ILockAdapter contract of spec.md §4.7.1: every method
// is atomic with respect to concurrent callers racing the same key.
type Adapter interface {
	// Acquire succeeds iff no non-expired entry exists for key. A zero ttl
	// means the entry never expires on its own.
	Acquire(ctx context.Context, key, owner string, ttl timespan.Duration) (bool, error)

	// Release succeeds iff a non-expired entry exists for key with owner
	// matching.
	Release(ctx context.Context, key, owner string) (bool, error)

	// ForceRelease deletes key's entry unconditionally, reporting whether
	// one existed.
	ForceRelease(ctx context.Context, key string) (bool, error)

	// Refresh extends key's expiration to ttl iff an entry exists, is
	// non-expired, and matches owner.
	Refresh(ctx context.Context, key, owner string, ttl timespan.Duration) (bool, error)

	// Find reports the current holder and remaining ttl of key, if any live
	// entry exists.
	Find(ctx context.Context, key string) (owner string, remaining timespan.Duration, ok bool, err error)
}
