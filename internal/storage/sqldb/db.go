// Package sqldb stores tours, bookings, users and reviews in a relational
// database through sqlx. SQLite (modernc.org/sqlite, pure Go) and PostgreSQL
// (lib/pq) are supported.
//
// Seat counts are only ever changed by conditional UPDATE statements, so the
// database refuses an oversell even if two transactions read the same count.
// Booking rows read for a status change are locked: PostgreSQL uses
// SELECT ... FOR UPDATE, SQLite transactions begin IMMEDIATE and therefore
// hold the single write lock from their first statement.
package sqldb

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/avstrong/tours/internal/domain"
	"github.com/avstrong/tours/internal/logger"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type Config struct {
	L      *logger.Logger
	Driver string
	DSN    string
	// MaxOpenConns defaults to 1 for SQLite and 10 for PostgreSQL.
	MaxOpenConns int
}

type DB struct {
	db         *sqlx.DB
	l          *logger.Logger
	driver     string
	lockClause string
}

func Open(ctx context.Context, conf Config) (*DB, error) {
	var (
		dsn          = conf.DSN
		lockClause   string
		maxOpenConns = conf.MaxOpenConns
	)

	switch conf.Driver {
	case DriverSQLite:
		dsn = sqliteDSN(conf.DSN)

		if maxOpenConns <= 0 {
			maxOpenConns = 1
		}
	case DriverPostgres:
		lockClause = " FOR UPDATE"

		if maxOpenConns <= 0 {
			maxOpenConns = 10 //nolint:gomnd
		}
	default:
		return nil, fmt.Errorf("driver %q: %w", conf.Driver, ErrUnsupportedDriver)
	}

	db, err := sqlx.Open(conf.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", conf.Driver, err)
	}

	db.SetMaxOpenConns(maxOpenConns)

	if err = db.PingContext(ctx); err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("ping %s database: %w", conf.Driver, err)
	}

	store := &DB{
		db:         db,
		l:          conf.L,
		driver:     conf.Driver,
		lockClause: lockClause,
	}

	if err = store.migrate(ctx); err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("migrate schema: %w", err)
	}

	conf.L.LogInfo("Connected to %s database", conf.Driver)

	return store, nil
}

func (db *DB) Close() error {
	return db.db.Close()
}

// sqliteDSN adds the connection parameters the store relies on unless the
// caller already set them.
func sqliteDSN(dsn string) string {
	base, rawQuery, _ := strings.Cut(dsn, "?")

	query, err := url.ParseQuery(rawQuery)
	if err != nil {
		query = url.Values{}
	}

	if !query.Has("_txlock") {
		query.Set("_txlock", "immediate")
	}

	if !query.Has("_time_format") {
		query.Set("_time_format", "sqlite")
	}

	query.Add("_pragma", "foreign_keys(1)")
	query.Add("_pragma", "busy_timeout(5000)")

	return base + "?" + query.Encode()
}

type txKey struct{}

func (db *DB) BeginTransaction(ctx context.Context) (context.Context, error) {
	if _, ok := ctx.Value(txKey{}).(*sqlx.Tx); ok {
		return nil, ErrNestedTransaction
	}

	tx, err := db.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}

	return context.WithValue(ctx, txKey{}, tx), nil
}

func (db *DB) CommitTransaction(ctx context.Context) error {
	tx, ok := ctx.Value(txKey{}).(*sqlx.Tx)
	if !ok {
		return ErrTransactionNotFoundInCtx
	}

	return tx.Commit()
}

func (db *DB) RollbackTransaction(ctx context.Context) error {
	tx, ok := ctx.Value(txKey{}).(*sqlx.Tx)
	if !ok {
		return ErrTransactionNotFoundInCtx
	}

	return tx.Rollback()
}

// ext returns the transaction carried by ctx, or the pool.
func (db *DB) ext(ctx context.Context) sqlx.ExtContext {
	if tx, ok := ctx.Value(txKey{}).(*sqlx.Tx); ok {
		return tx
	}

	return db.db
}

func (db *DB) get(ctx context.Context, dest any, query string, args ...any) error {
	err := sqlx.GetContext(ctx, db.ext(ctx), dest, db.db.Rebind(query), args...)
	if isNoRows(err) {
		return domain.ErrRecordNotFound
	}

	return err
}

func (db *DB) selectAll(ctx context.Context, dest any, query string, args ...any) error {
	return sqlx.SelectContext(ctx, db.ext(ctx), dest, db.db.Rebind(query), args...)
}

// execOne runs a statement that must touch exactly one row.
func (db *DB) execOne(ctx context.Context, query string, args ...any) error {
	res, err := db.ext(ctx).ExecContext(ctx, db.db.Rebind(query), args...)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}

	if affected == 0 {
		return domain.ErrRecordNotFound
	}

	return nil
}

// insert runs an INSERT ... RETURNING id statement.
func (db *DB) insert(ctx context.Context, query string, args ...any) (int64, error) {
	var id int64

	err := db.ext(ctx).QueryRowxContext(ctx, db.db.Rebind(query+" RETURNING id"), args...).Scan(&id)
	if isUniqueViolation(err) {
		return 0, fmt.Errorf("%w: %v", domain.ErrDuplicate, err.Error())
	}

	if err != nil {
		return 0, err
	}

	return id, nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code.Name() == "unique_violation"
	}

	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		code := liteErr.Code()

		return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE ||
			code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY ||
			(code&0xff == sqlite3.SQLITE_CONSTRAINT && strings.Contains(liteErr.Error(), "UNIQUE"))
	}

	return false
}
