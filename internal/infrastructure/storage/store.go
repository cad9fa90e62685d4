package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"SkeetShelf/internal/domain"
	"SkeetShelf/internal/metrics"
	"SkeetShelf/internal/ports"
)

// Dialect names double as database/sql driver names.
const (
	Postgres = "postgres"
	SQLite   = "sqlite"
)

// Store persists the shelf (posts, genres, classifications, books, saves)
// in Postgres or SQLite. Every ensure/read call runs in its own short
// transaction.
type Store struct {
	db      *sql.DB
	dialect string
	sb      sq.StatementBuilderType
	logger  *slog.Logger
	now     func() time.Time
}

var _ ports.ShelfStore = (*Store)(nil)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Open connects to the configured database and verifies the connection.
func Open(ctx context.Context, driver, dsn string, logger *slog.Logger) (*Store, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}

	if driver == SQLite {
		// single writer; foreign_keys is per connection
		db.SetMaxOpenConns(1)
		for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA foreign_keys=ON", "PRAGMA busy_timeout=5000"} {
			if _, err := db.ExecContext(ctx, pragma); err != nil {
				_ = db.Close()
				return nil, fmt.Errorf("%s: %w", pragma, err)
			}
		}
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}

	return New(db, driver, logger)
}

// New wraps an already opened handle.
func New(db *sql.DB, dialect string, logger *slog.Logger) (*Store, error) {
	var format sq.PlaceholderFormat
	switch dialect {
	case Postgres:
		format = sq.Dollar
	case SQLite:
		format = sq.Question
	default:
		return nil, fmt.Errorf("unsupported database dialect %q", dialect)
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Store{
		db:      db,
		dialect: dialect,
		sb:      sq.StatementBuilder.PlaceholderFormat(format),
		logger:  logger.With("component", "storage", "dialect", dialect),
		now:     func() time.Time { return time.Now().UTC() },
	}, nil
}

// Close releases the underlying pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return s.translate(err)
	}

	if err := tx.Commit(); err != nil {
		return s.translate(fmt.Errorf("commit: %w", err))
	}
	return nil
}

// ensure runs lookup -> create in one transaction. When create loses a
// uniqueness race the transaction is rolled back and the lookup is re-run
// once outside it. onFound, when set, may update an existing row.
func ensure[T any](
	ctx context.Context,
	s *Store,
	table string,
	lookup func(q querier) (T, bool, error),
	create func(q querier) (T, error),
	onFound func(q querier, found T) (T, error),
) (T, error) {
	var out T
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		found, ok, err := lookup(tx)
		if err != nil {
			return err
		}
		if !ok {
			out, err = create(tx)
			return err
		}
		if onFound != nil {
			found, err = onFound(tx, found)
			if err != nil {
				return err
			}
		}
		out = found
		return nil
	})
	if err == nil {
		return out, nil
	}

	var zero T
	if !errors.Is(err, domain.ErrConflict) {
		return zero, fmt.Errorf("ensure %s: %w", table, err)
	}

	metrics.StoreConflicts.WithLabelValues(table).Inc()
	s.logger.Debug("uniqueness conflict, re-running lookup", "table", table)

	found, ok, lerr := lookup(s.db)
	if lerr != nil {
		return zero, fmt.Errorf("ensure %s re-lookup: %w", table, s.translate(lerr))
	}
	if !ok {
		return zero, fmt.Errorf("ensure %s: %w", table, err)
	}
	if onFound != nil {
		if found, err = onFound(s.db, found); err != nil {
			return zero, fmt.Errorf("ensure %s: %w", table, s.translate(err))
		}
	}
	return found, nil
}

// translate maps driver uniqueness violations onto domain.ErrConflict.
func (s *Store) translate(err error) error {
	if err == nil || errors.Is(err, domain.ErrConflict) {
		return err
	}
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %v", domain.ErrConflict, err)
	}
	return err
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}

	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return true
		case sqlite3.SQLITE_CONSTRAINT:
			return strings.Contains(liteErr.Error(), "UNIQUE constraint failed")
		}
	}
	return false
}

// storedTimeLayout keeps every stored timestamp the same width, so TEXT
// columns order chronologically.
const storedTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(storedTimeLayout)
}

func parseTime(raw string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse stored time %q: %w", raw, err)
	}
	return t, nil
}
