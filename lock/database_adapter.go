package lock

import (
	"context"
	"errors"

	"github.com/nodecore/resync/timespan"
)

// Row is one persisted lock entry as seen by a DatabaseLockAdapter.
type Row struct {
	Key       string
	Owner     string
	ExpiresAt timespan.Duration // remaining ttl at read time; zero means never expires
}

// DatabaseLockAdapter is the CRUD contract of spec.md §4.7.2: insert/update/
// refresh/remove/find, expressed the way a concrete storage backend (SQL,
// Redis) naturally provides them, one layer below the atomic Adapter
// contract.
type DatabaseLockAdapter interface {
	// Insert creates a fresh row for key. It must fail with
	// ErrUniqueViolation if a row for key already exists, live or expired.
	Insert(ctx context.Context, key, owner string, ttl timespan.Duration) error

	// UpdateExpired replaces an existing, currently-expired row's owner and
	// ttl. It reports false (no error) if the row is missing or not
	// expired.
	UpdateExpired(ctx context.Context, key, owner string, ttl timespan.Duration) (bool, error)

	// Refresh extends an existing row's ttl iff it is live and owned by
	// owner.
	Refresh(ctx context.Context, key, owner string, ttl timespan.Duration) (bool, error)

	// Remove deletes the row for key iff it is live and owned by owner.
	Remove(ctx context.Context, key, owner string) (bool, error)

	// RemoveAny deletes the row for key regardless of owner or expiry,
	// reporting whether one existed.
	RemoveAny(ctx context.Context, key string) (bool, error)

	// Find returns the current live row for key, if any; an expired row is
	// reported as absent.
	Find(ctx context.Context, key string) (Row, bool, error)
}

// ErrUniqueViolation is the sentinel a DatabaseLockAdapter.Insert
// implementation must wrap or be Is-compatible with when key already has a
// row, so DatabaseAdapter.Acquire can distinguish "already present" from a
// genuine storage failure. SQLAdapter translates the Postgres 23505
// unique-violation error into this sentinel.
var ErrUniqueViolation = errors.New("lock: row already exists")

// DatabaseAdapter lifts a DatabaseLockAdapter into the atomic Adapter
// contract per spec.md §4.7.2: acquire attempts Insert; on conflict it
// falls back to UpdateExpired, which only succeeds against an expired row.
// The combined effect is acquire-if-absent-or-expired.
type DatabaseAdapter struct {
	db DatabaseLockAdapter
}

func NewDatabaseAdapter(db DatabaseLockAdapter) *DatabaseAdapter {
	return &DatabaseAdapter{db: db}
}

var _ Adapter = (*DatabaseAdapter)(nil)

func (a *DatabaseAdapter) Acquire(ctx context.Context, key, owner string, ttl timespan.Duration) (bool, error) {
	err := a.db.Insert(ctx, key, owner, ttl)
	if err == nil {
		return true, nil
	}
	if !errors.Is(err, ErrUniqueViolation) {
		return false, err
	}

	return a.db.UpdateExpired(ctx, key, owner, ttl)
}

func (a *DatabaseAdapter) Release(ctx context.Context, key, owner string) (bool, error) {
	return a.db.Remove(ctx, key, owner)
}

func (a *DatabaseAdapter) ForceRelease(ctx context.Context, key string) (bool, error) {
	return a.db.RemoveAny(ctx, key)
}

func (a *DatabaseAdapter) Refresh(ctx context.Context, key, owner string, ttl timespan.Duration) (bool, error) {
	return a.db.Refresh(ctx, key, owner, ttl)
}

func (a *DatabaseAdapter) Find(ctx context.Context, key string) (string, timespan.Duration, bool, error) {
	row, ok, err := a.db.Find(ctx, key)
	if err != nil || !ok {
		return "", 0, ok, err
	}
	return row.Owner, row.ExpiresAt, true, nil
}
