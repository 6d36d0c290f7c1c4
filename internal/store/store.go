package store

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// Dialect names a supported relational backend.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
	DialectMySQL    Dialect = "mysql"
)

// Config selects and tunes the backing database.
type Config struct {
	Driver          Dialect
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	Logger          *slog.Logger
}

// Store persists admin identities, one-time codes, and content buckets.
// Every mutation is a single-row upsert or update keyed by a primary or
// unique key; multi-statement operations run inside one transaction.
type Store struct {
	db      *sqlx.DB
	dialect Dialect
	logger  *slog.Logger
}

// Open connects to the configured database and applies pending migrations.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}

	var (
		driverName string
		dsn        = cfg.DSN
	)
	switch cfg.Driver {
	case DialectSQLite, "":
		cfg.Driver = DialectSQLite
		driverName = "sqlite"
	case DialectPostgres:
		driverName = "pgx"
	case DialectMySQL:
		driverName = "mysql"
		mc, err := mysql.ParseDSN(dsn)
		if err != nil {
			return nil, fmt.Errorf("parse mysql dsn: %w", err)
		}
		// Timestamps must come back as time.Time.
		mc.ParseTime = true
		// RowsAffected must count matched rows, not changed ones.
		mc.ClientFoundRows = true
		mc.Loc = time.UTC
		dsn = mc.FormatDSN()
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := sqlx.ConnectContext(ctx, driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", cfg.Driver, err)
	}

	if cfg.Driver == DialectSQLite {
		db.SetMaxOpenConns(1) // SQLite doesn't support concurrent writes
	} else {
		if cfg.MaxOpenConns > 0 {
			db.SetMaxOpenConns(cfg.MaxOpenConns)
		}
		if cfg.MaxIdleConns > 0 {
			db.SetMaxIdleConns(cfg.MaxIdleConns)
		}
		if cfg.ConnMaxLifetime > 0 {
			db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
		}
	}

	s := &Store{db: db, dialect: cfg.Driver, logger: cfg.Logger}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate %s database: %w", cfg.Driver, err)
	}
	return s, nil
}

// NewSQLiteStore opens a SQLite store under dataDir. Pass empty string for
// an in-memory database.
func NewSQLiteStore(dataDir string) (*Store, error) {
	dsn, err := SQLiteDSN(dataDir)
	if err != nil {
		return nil, err
	}
	return Open(context.Background(), Config{Driver: DialectSQLite, DSN: dsn})
}

// SQLiteDSN returns the modernc DSN for a data directory, creating the
// directory if needed. Empty dataDir yields an in-memory database.
func SQLiteDSN(dataDir string) (string, error) {
	if dataDir == "" {
		return ":memory:", nil
	}
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return "", fmt.Errorf("create data dir: %w", err)
	}
	return "file:" + filepath.Join(dataDir, "folio.db") +
		"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies the database connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Dialect reports which backend the store is talking to.
func (s *Store) Dialect() Dialect {
	return s.dialect
}

// rebind converts ?-style placeholders to the driver's native form.
func (s *Store) rebind(q string) string {
	return s.db.Rebind(q)
}

// forUpdate is the row-lock suffix for SELECTs inside a transaction. SQLite
// runs on a single connection, so its transactions are already serialized.
func (s *Store) forUpdate() string {
	if s.dialect == DialectSQLite {
		return ""
	}
	return " FOR UPDATE"
}

// insertReturningID runs an INSERT and returns the generated id. PostgreSQL
// has no LastInsertId, so the statement gets a RETURNING clause there.
func (s *Store) insertReturningID(ctx context.Context, ext sqlx.ExtContext, q string, args ...any) (int64, error) {
	if s.dialect == DialectPostgres {
		var id int64
		if err := ext.QueryRowxContext(ctx, s.rebind(q+" RETURNING id"), args...).Scan(&id); err != nil {
			return 0, err
		}
		return id, nil
	}
	result, err := ext.ExecContext(ctx, s.rebind(q), args...)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}
