// Package sqlxrepos implements the core repositories on top of sqlx.
// Queries use "?" placeholders and are rebound for the connected driver,
// so the same SQL runs against postgres and sqlite.
package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"
)

type queryer interface {
	sqlx.ExtContext
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
}

var (
	_ queryer = (*sqlx.DB)(nil)
	_ queryer = (*sqlx.Tx)(nil)
)

// likeOp is the case-insensitive LIKE of the driver.
func likeOp(db *sqlx.DB) string {
	if db.DriverName() == "postgres" {
		return "ILIKE"
	}
	return "LIKE" // case-insensitive for ASCII in sqlite
}

func dbTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}

func nullTime(t time.Time) null.Time {
	return null.NewTime(dbTime(t), !t.IsZero())
}

func nullID(id int64) null.Int64 {
	return null.NewInt64(id, id != 0)
}

// insert runs an INSERT ... RETURNING id.
func insert(ctx context.Context, q queryer, query string, args ...interface{}) (int64, error) {
	var id int64
	err := q.QueryRowxContext(ctx, q.Rebind(query+" RETURNING id"), args...).Scan(&id)
	return id, err
}

// in expands "IN (?)" arguments and rebinds the query.
func in(q queryer, query string, args ...interface{}) (string, []interface{}, error) {
	query, args, err := sqlx.In(query, args...)
	if err != nil {
		return "", nil, err
	}
	return q.Rebind(query), args, nil
}

func deleteByID(ctx context.Context, q queryer, table string, ids []int64) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	query, args, err := in(q, "DELETE FROM "+table+" WHERE id IN (?)", ids)
	if err != nil {
		return 0, errors.Wrap(err, "building delete query")
	}
	res, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, errors.Wrap(err, "deleting from "+table)
	}
	n, err := res.RowsAffected()
	return int(n), errors.Wrap(err, "counting deleted rows")
}

func exists(ctx context.Context, q queryer, query string, args ...interface{}) (bool, error) {
	var n int
	if err := q.GetContext(ctx, &n, q.Rebind(query), args...); err != nil {
		return false, err
	}
	return n > 0, nil
}

// excludeIDs appends an "AND id NOT IN (...)" condition when ids is not empty.
func excludeIDs(query string, args []interface{}, ids []int64) (string, []interface{}, error) {
	if len(ids) == 0 {
		return query, args, nil
	}
	return sqlx.In(query+" AND id NOT IN (?)", append(args, ids)...)
}

// trapNoRowsErr maps sql.ErrNoRows to notFound.
func trapNoRowsErr(err error, notFound error, msg string) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return notFound
	}
	return errors.Wrap(err, msg)
}

// withTx runs fn in a transaction, committing only if it succeeds.
func withTx(ctx context.Context, db *sqlx.DB, fn func(tx *sqlx.Tx) error) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	if err = fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return errors.Wrap(tx.Commit(), "committing transaction")
}
