package lock

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"

	"github.com/nodecore/resync/storage/pg"
	"github.com/nodecore/resync/timespan"
)

// lockRow is the bun model backing SQLAdapter: one row per lock key, table
// "(key TEXT PRIMARY KEY, owner TEXT, expires_at TIMESTAMPTZ NULL)" per
// SPEC_FULL.md §4.7, grounded on database/postgres's bun.DB wiring.
type lockRow struct {
	bun.BaseModel `bun:"table:locks"`

	Key       string    `bun:"key,pk"`
	Owner     string    `bun:"owner"`
	ExpiresAt time.Time `bun:"expires_at,nullzero"`
}

// SQLAdapter is a DatabaseLockAdapter backed by a Postgres table, grounded on
// storage/pg's pq.Error unique-violation detection and database/postgres's
// bun.DB wiring.
type SQLAdapter struct {
	db  *bun.DB
	now func() time.Time
}

func NewSQLAdapter(db *bun.DB) *SQLAdapter {
	return &SQLAdapter{db: db, now: time.Now}
}

var _ DatabaseLockAdapter = (*SQLAdapter)(nil)

func (a *SQLAdapter) Insert(ctx context.Context, key, owner string, ttl timespan.Duration) error {
	row := lockRow{Key: key, Owner: owner, ExpiresAt: expiryAt(a.now(), ttl)}
	_, err := a.db.NewInsert().Model(&row).Exec(ctx)
	if pg.IsUniqueViolation(err) {
		return ErrUniqueViolation
	}
	return err
}

func (a *SQLAdapter) UpdateExpired(ctx context.Context, key, owner string, ttl timespan.Duration) (bool, error) {
	now := a.now()
	res, err := a.db.NewUpdate().Model((*lockRow)(nil)).
		Set("owner = ?", owner).
		Set("expires_at = ?", expiryAt(now, ttl)).
		Where("key = ? AND expires_at IS NOT NULL AND expires_at <= ?", key, now).
		Exec(ctx)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (a *SQLAdapter) Refresh(ctx context.Context, key, owner string, ttl timespan.Duration) (bool, error) {
	now := a.now()
	res, err := a.db.NewUpdate().Model((*lockRow)(nil)).
		Set("expires_at = ?", expiryAt(now, ttl)).
		Where("key = ? AND owner = ? AND (expires_at IS NULL OR expires_at > ?)", key, owner, now).
		Exec(ctx)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (a *SQLAdapter) Remove(ctx context.Context, key, owner string) (bool, error) {
	res, err := a.db.NewDelete().Model((*lockRow)(nil)).
		Where("key = ? AND owner = ? AND (expires_at IS NULL OR expires_at > ?)", key, owner, a.now()).
		Exec(ctx)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (a *SQLAdapter) RemoveAny(ctx context.Context, key string) (bool, error) {
	res, err := a.db.NewDelete().Model((*lockRow)(nil)).Where("key = ?", key).Exec(ctx)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (a *SQLAdapter) Find(ctx context.Context, key string) (Row, bool, error) {
	var row lockRow
	err := a.db.NewSelect().Model(&row).Where("key = ?", key).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return Row{}, false, nil
	}
	if err != nil {
		return Row{}, false, err
	}

	now := a.now()
	if !row.ExpiresAt.IsZero() && now.After(row.ExpiresAt) {
		return Row{}, false, nil
	}

	remaining := timespan.Zero
	if !row.ExpiresAt.IsZero() {
		remaining = timespan.Of(row.ExpiresAt.Sub(now))
	}
	return Row{Key: row.Key, Owner: row.Owner, ExpiresAt: remaining}, true, nil
}
