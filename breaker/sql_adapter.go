package breaker

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/uptrace/bun"

	"github.com/nodecore/resync/storage/pg"
)

// breakerRow is the bun model backing SQLAdapter, one row per breaker key
// with an optimistic-concurrency Version column guarding concurrent writers,
// generalizing database/postgres's bun.DB usage and storage/pg's unique
// violation detection from row-level locking into circuit-breaker state.
type breakerRow struct {
	bun.BaseModel `bun:"table:circuit_breakers"`

	Key     string `bun:"key,pk"`
	State   []byte `bun:"state,type:jsonb"`
	Version int64  `bun:"version"`
}

// SQLAdapter is a StorageAdapter backed by a Postgres table, one row per key,
// mutated under optimistic concurrency (UPDATE ... WHERE version = ?) rather
// than row locks, grounded on database/postgres's bun.DB wiring and
// storage/pg's pq.Error code inspection for detecting lost races.
type SQLAdapter[M any] struct {
	db *bun.DB
}

func NewSQLAdapter[M any](db *bun.DB) *SQLAdapter[M] {
	return &SQLAdapter[M]{db: db}
}

func (a *SQLAdapter[M]) Find(ctx context.Context, key string) (Record[M], bool, error) {
	row, ok, err := a.find(ctx, a.db, key)
	if err != nil || !ok {
		return Record[M]{}, ok, err
	}

	var r Record[M]
	if err := json.Unmarshal(row.State, &r); err != nil {
		return Record[M]{}, false, err
	}
	return r, true, nil
}

func (a *SQLAdapter[M]) find(ctx context.Context, db bun.IDB, key string) (breakerRow, bool, error) {
	var row breakerRow
	err := db.NewSelect().Model(&row).Where("key = ?", key).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return breakerRow{}, false, nil
	}
	if err != nil {
		return breakerRow{}, false, err
	}
	return row, true, nil
}

func (a *SQLAdapter[M]) Remove(ctx context.Context, key string) error {
	_, err := a.db.NewDelete().Model((*breakerRow)(nil)).Where("key = ?", key).Exec(ctx)
	return err
}

// Transaction retries the whole read-modify-write loop whenever the
// optimistic UPDATE affects zero rows, i.e. another writer advanced the
// version first.
func (a *SQLAdapter[M]) Transaction(ctx context.Context, key string, fn func(current Record[M], ok bool) (Record[M], error)) (Record[M], error) {
	for {
		next, done, err := a.attempt(ctx, key, fn)
		if err != nil {
			return Record[M]{}, err
		}
		if done {
			return next, nil
		}
	}
}

func (a *SQLAdapter[M]) attempt(ctx context.Context, key string, fn func(current Record[M], ok bool) (Record[M], error)) (Record[M], bool, error) {
	var result Record[M]
	var done bool

	err := a.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		row, ok, err := a.find(ctx, tx, key)
		if err != nil {
			return err
		}

		var current Record[M]
		if ok {
			if err := json.Unmarshal(row.State, &current); err != nil {
				return err
			}
		}

		next, err := fn(current, ok)
		if err != nil {
			return err
		}

		raw, err := json.Marshal(next)
		if err != nil {
			return err
		}

		if !ok {
			_, err := tx.NewInsert().Model(&breakerRow{Key: key, State: raw, Version: 1}).Exec(ctx)
			if pg.IsUniqueViolation(err) {
				done = false
				return nil
			}
			if err != nil {
				return err
			}
			result, done = next, true
			return nil
		}

		res, err := tx.NewUpdate().Model((*breakerRow)(nil)).
			Set("state = ?", raw).
			Set("version = version + 1").
			Where("key = ? AND version = ?", key, row.Version).
			Exec(ctx)
		if err != nil {
			return err
		}

		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			done = false
			return nil
		}
		result, done = next, true
		return nil
	})
	if err != nil {
		return Record[M]{}, false, err
	}
	return result, done, nil
}
