// Package sqlstore implements store.Repository on a relational database.
// The same queries run on PostgreSQL (pgx) and on SQLite (modernc); the
// differences are captured in a dialect. Money columns are never summed in
// SQL so that both engines round the same way.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"dukaan/backend/internal/store"
)

// dialect holds what differs between engines. forUpdate is appended to
// row-locking selects.
type dialect struct {
	name      string
	forUpdate string
	txOptions *sql.TxOptions
	schema    []string
	uniqueErr func(error) bool
	retryable func(error) bool
}

var postgresDialect = dialect{
	name:      "postgres",
	forUpdate: " FOR UPDATE",
	txOptions: &sql.TxOptions{Isolation: sql.LevelSerializable},
	schema:    schemaFor("NUMERIC(14,2)", "TIMESTAMPTZ"),
	uniqueErr: func(err error) bool {
		var pgErr *pgconn.PgError
		return errors.As(err, &pgErr) && pgErr.Code == "23505"
	},
	retryable: func(err error) bool {
		var pgErr *pgconn.PgError
		return errors.As(err, &pgErr) && (pgErr.Code == "40001" || pgErr.Code == "40P01")
	},
}

// SQLite serializes writers on its single connection, so no row locks and
// no isolation level are requested.
var sqliteDialect = dialect{
	name:   "sqlite",
	schema: schemaFor("TEXT", "TIMESTAMP"),
	uniqueErr: func(err error) bool {
		var liteErr *sqlite.Error
		if !errors.As(err, &liteErr) {
			return false
		}
		return liteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE || liteErr.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	},
	retryable: func(err error) bool {
		var liteErr *sqlite.Error
		return errors.As(err, &liteErr) && (liteErr.Code()&0xff) == sqlite3.SQLITE_BUSY
	},
}

type Store struct {
	db      *sqlx.DB
	dialect dialect
}

func NewPostgres(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sqlx.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	return open(ctx, db, postgresDialect)
}

// NewSQLite opens (and creates) a database file. A single connection is
// kept so that transactions never interleave.
func NewSQLite(ctx context.Context, path string) (*Store, error) {
	db, err := sqlx.Open("sqlite", "file:"+path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	return open(ctx, db, sqliteDialect)
}

func open(ctx context.Context, db *sqlx.DB, d dialect) (*Store, error) {
	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &Store{db: db, dialect: d}
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range s.dialect.schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate %s: %w", s.dialect.name, err)
		}
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Dialect() string {
	return s.dialect.name
}

// inTx runs fn in one transaction. Begin and commit failures, and
// serialization conflicts, are reported as store.ErrTransactionFailure.
func (s *Store) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, s.dialect.txOptions)
	if err != nil {
		return fmt.Errorf("%w: begin: %v", store.ErrTransactionFailure, err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		if s.dialect.retryable(err) {
			return fmt.Errorf("%w: %v", store.ErrTransactionFailure, err)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", store.ErrTransactionFailure, err)
	}
	return nil
}

func (s *Store) lock(query string) string {
	return query + s.dialect.forUpdate
}

func (s *Store) mapWriteErr(err error, what string) error {
	if s.dialect.uniqueErr(err) {
		return fmt.Errorf("%s: %w", what, store.ErrConflict)
	}
	return err
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	return err
}

func nullIfEmpty(val string) any {
	if val == "" {
		return nil
	}
	return val
}

func nullTime(val *time.Time) any {
	if val == nil {
		return nil
	}
	return val.UTC()
}

var _ store.Repository = (*Store)(nil)
