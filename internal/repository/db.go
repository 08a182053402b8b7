package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/joseph-ayodele/gauge-tracker/internal/common"
)

type Config struct {
	DSN              string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// DB is an ent SQL driver plus the pool behind it, when there is one.
type DB struct {
	drv    *entsql.Driver
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// Open creates a pgx pool and wraps it for the ent SQL driver.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*DB, error) {
	if logger == nil {
		logger = slog.Default()
	}
	pc, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		logger.Error("failed to parse database dsn", "error", err)
		return nil, err
	}
	if cfg.MaxConns > 0 {
		pc.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		pc.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		pc.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		pc.MaxConnIdleTime = cfg.MaxConnIdleTime
	}
	pc.ConnConfig.RuntimeParams["application_name"] = "gauge-tracker"
	if cfg.StatementTimeout > 0 {
		pc.ConnConfig.RuntimeParams["statement_timeout"] = fmt.Sprint(cfg.StatementTimeout.Milliseconds())
	}

	if cfg.DialTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.DialTimeout)
		defer cancel()
	}
	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		return nil, err
	}

	// Wrap pool as *sql.DB for the ent driver
	db := stdlib.OpenDBFromPool(pool)
	logger.Info("successfully connected to database", "driver", "postgres")
	return &DB{drv: entsql.OpenDB(dialect.Postgres, db), pool: pool, logger: logger}, nil
}

// OpenSQLite opens a SQLite database (pure Go driver). ":memory:" databases are
// pinned to one connection so every query sees the same data.
func OpenSQLite(ctx context.Context, dsn string, logger *slog.Logger) (*DB, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		logger.Error("failed to open sqlite database", "dsn", dsn, "error", err)
		return nil, err
	}
	logger.Info("successfully connected to database", "driver", "sqlite", "dsn", dsn)
	return &DB{drv: entsql.OpenDB(dialect.SQLite, db), logger: logger}, nil
}

// InitDatabase opens the configured database (or a private in-memory SQLite one)
// and makes sure the schema exists.
func InitDatabase(ctx context.Context, cfg *common.Config, inmem bool, logger *slog.Logger) (*DB, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var (
		db  *DB
		err error
	)
	switch {
	case inmem:
		db, err = OpenSQLite(ctx, "file::memory:?_pragma=foreign_keys(1)", logger)
	case cfg.Database.Driver == "postgres":
		db, err = Open(ctx, Config{
			DSN:              cfg.Database.DSN,
			MaxConns:         cfg.Database.MaxConns,
			MinConns:         cfg.Database.MinConns,
			MaxConnLifetime:  cfg.Database.MaxConnLifetime,
			MaxConnIdleTime:  cfg.Database.MaxConnIdleTime,
			DialTimeout:      cfg.Database.DialTimeout,
			StatementTimeout: cfg.Database.StatementTimeout,
		}, logger)
	default:
		db, err = OpenSQLite(ctx, cfg.Database.DSN, logger)
	}
	if err != nil {
		return nil, common.NewAppError("DATABASE_ERROR", "failed to open database", err)
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, common.NewAppError("DATABASE_ERROR", "failed to create schema", err)
	}
	return db, nil
}

func (db *DB) Dialect() string { return db.drv.Dialect() }

// Close closes the database connections gracefully
func (db *DB) Close() {
	db.logger.Info("closing database connections")
	if err := db.drv.Close(); err != nil {
		db.logger.Error("failed to close database", "error", err)
	}
	if db.pool != nil {
		db.pool.Close()
	}
	db.logger.Info("database connections closed")
}

// HealthCheck pings the database within timeout.
func (db *DB) HealthCheck(ctx context.Context, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	if db.pool != nil {
		return db.pool.Ping(ctx)
	}
	return db.drv.DB().PingContext(ctx)
}

// Migrate creates the readings table and its indexes when missing.
func (db *DB) Migrate(ctx context.Context) error {
	stmts, ok := schema[db.drv.Dialect()]
	if !ok {
		return fmt.Errorf("no schema for dialect %q", db.drv.Dialect())
	}
	for _, stmt := range stmts {
		if err := db.drv.Exec(ctx, stmt, []any{}, nil); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	db.logger.Debug("database schema ready", "dialect", db.drv.Dialect())
	return nil
}
