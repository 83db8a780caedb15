package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/uptrace/bun"

	"github.com/nodecore/resync/storage/pg"
	"github.com/nodecore/resync/timespan"
)

// cacheRow is the bun model backing SQLAdapter: table
// "(key TEXT, value TEXT, expires_at TIMESTAMPTZ NULL)" with a unique index
// on key, per SPEC_FULL.md §4.10, grounded on database/postgres's bun.DB
// wiring and storage/pg's unique-violation detection.
type cacheRow struct {
	bun.BaseModel `bun:"table:caches"`

	Key       string    `bun:"key,pk"`
	Value     string    `bun:"value"`
	ExpiresAt time.Time `bun:"expires_at,nullzero"`
}

// SQLAdapter is a DatabaseCacheAdapter[T] backed by a Postgres table,
// serializing T to JSON text per row.
type SQLAdapter[T any] struct {
	db  *bun.DB
	now func() time.Time
}

func NewSQLAdapter[T any](db *bun.DB) *SQLAdapter[T] {
	return &SQLAdapter[T]{db: db, now: time.Now}
}

var _ DatabaseCacheAdapter[int] = (*SQLAdapter[int])(nil)

func decodeRow[T any](row cacheRow, now time.Time) (Row[T], error) {
	var v T
	if err := json.Unmarshal([]byte(row.Value), &v); err != nil {
		return Row[T]{}, err
	}

	expired := !row.ExpiresAt.IsZero() && now.After(row.ExpiresAt)
	remaining := timespan.Zero
	if !row.ExpiresAt.IsZero() && !expired {
		remaining = timespan.Of(row.ExpiresAt.Sub(now))
	}
	return Row[T]{Key: row.Key, Value: v, ExpiresAt: remaining, Expired: expired}, nil
}

func (a *SQLAdapter[T]) Find(ctx context.Context, key string) (Row[T], bool, error) {
	var row cacheRow
	err := a.db.NewSelect().Model(&row).Where("key = ?", key).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return Row[T]{}, false, nil
	}
	if err != nil {
		return Row[T]{}, false, err
	}

	r, err := decodeRow[T](row, a.now())
	if err != nil {
		return Row[T]{}, false, err
	}
	return r, true, nil
}

func (a *SQLAdapter[T]) Insert(ctx context.Context, key string, value T, ttl timespan.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}

	row := cacheRow{Key: key, Value: string(raw), ExpiresAt: expiryAt(a.now(), ttl)}
	_, err = a.db.NewInsert().Model(&row).Exec(ctx)
	if pg.IsUniqueViolation(err) {
		return ErrUniqueViolation
	}
	return err
}

func (a *SQLAdapter[T]) Upsert(ctx context.Context, key string, value T, ttl timespan.Duration) (bool, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return false, err
	}

	now := a.now()
	var hadLive bool
	err = a.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var existing cacheRow
		err := tx.NewSelect().Model(&existing).Where("key = ?", key).For("UPDATE").Scan(ctx)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			hadLive = false
		case err != nil:
			return err
		default:
			hadLive = existing.ExpiresAt.IsZero() || now.Before(existing.ExpiresAt)
		}

		row := cacheRow{Key: key, Value: string(raw), ExpiresAt: expiryAt(now, ttl)}
		_, err = tx.NewInsert().Model(&row).
			On("CONFLICT (key) DO UPDATE").
			Set("value = EXCLUDED.value").
			Set("expires_at = EXCLUDED.expires_at").
			Exec(ctx)
		return err
	})
	return hadLive, err
}

func (a *SQLAdapter[T]) UpdateExpired(ctx context.Context, key string, value T, ttl timespan.Duration) (bool, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return false, err
	}

	now := a.now()
	res, err := a.db.NewUpdate().Model((*cacheRow)(nil)).
		Set("value = ?", string(raw)).
		Set("expires_at = ?", expiryAt(now, ttl)).
		Where("key = ? AND expires_at IS NOT NULL AND expires_at <= ?", key, now).
		Exec(ctx)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (a *SQLAdapter[T]) UpdateUnexpired(ctx context.Context, key string, value T) (bool, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return false, err
	}

	res, err := a.db.NewUpdate().Model((*cacheRow)(nil)).
		Set("value = ?", string(raw)).
		Where("key = ? AND (expires_at IS NULL OR expires_at > ?)", key, a.now()).
		Exec(ctx)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (a *SQLAdapter[T]) IncrementUnexpired(ctx context.Context, key string, delta int64) (bool, error) {
	now := a.now()
	var ok bool
	err := a.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var row cacheRow
		err := tx.NewSelect().Model(&row).Where("key = ?", key).For("UPDATE").Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		if !row.ExpiresAt.IsZero() && now.After(row.ExpiresAt) {
			return nil
		}

		r, err := decodeRow[T](row, now)
		if err != nil {
			return err
		}
		next, err := incrementValue(r.Value, delta)
		if err != nil {
			return err
		}
		raw, err := json.Marshal(next)
		if err != nil {
			return err
		}

		_, err = tx.NewUpdate().Model((*cacheRow)(nil)).
			Set("value = ?", string(raw)).
			Where("key = ?", key).
			Exec(ctx)
		if err != nil {
			return err
		}
		ok = true
		return nil
	})
	return ok, err
}

func (a *SQLAdapter[T]) RemoveExpiredMany(ctx context.Context, keys []string) (int, error) {
	res, err := a.db.NewDelete().Model((*cacheRow)(nil)).
		Where("key IN (?) AND expires_at IS NOT NULL AND expires_at <= ?", bun.In(keys), a.now()).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (a *SQLAdapter[T]) RemoveUnexpiredMany(ctx context.Context, keys []string) (int, error) {
	res, err := a.db.NewDelete().Model((*cacheRow)(nil)).
		Where("key IN (?) AND (expires_at IS NULL OR expires_at > ?)", bun.In(keys), a.now()).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (a *SQLAdapter[T]) RemoveAll(ctx context.Context) error {
	_, err := a.db.NewDelete().Model((*cacheRow)(nil)).Where("1 = 1").Exec(ctx)
	return err
}

func (a *SQLAdapter[T]) RemoveByKeyPrefix(ctx context.Context, prefix string) error {
	_, err := a.db.NewDelete().Model((*cacheRow)(nil)).Where("key LIKE ?", prefix+"%").Exec(ctx)
	return err
}
