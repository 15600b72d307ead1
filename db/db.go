// Package db provides database connectivity for the application.
// It selects the engine from configuration (sqlite, mysql or postgres), builds a bounded
// connection pool, creates tables from declarative definitions and hands out request-scoped
// sessions. A session is a transaction on a dedicated pooled connection: it commits when the
// work succeeds, rolls back otherwise and is always returned to the pool.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	// `pgxpool` is part of the `jackc/pgx` suite, providing a robust connection pool for PostgreSQL.
	"github.com/jackc/pgx/v5/pgxpool"
	// `stdlib` exposes a pgxpool through database/sql so that sqlx can sit on top of it.
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"

	"github.com/user/layered-api-go/apperror"
	"github.com/user/layered-api-go/config"
)

// Session is the query surface a repository works against. Both *sqlx.Tx and *sqlx.DB satisfy it.
type Session interface {
	sqlx.ExtContext
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
}

// Manager owns the connection pool for the configured engine.
type Manager struct {
	db          *sqlx.DB
	dialect     string
	poolTimeout time.Duration
	closePool   func()
	log         zerolog.Logger
}

// Open builds the connection pool described by cfg and verifies it with a ping.
func Open(ctx context.Context, cfg config.DatabaseConfig, logger zerolog.Logger) (*Manager, error) {
	dialect := config.NormalizeDBType(cfg.DBType)
	dsn, err := DSN(cfg)
	if err != nil {
		return nil, err
	}

	m := &Manager{
		dialect:     dialect,
		poolTimeout: cfg.PoolTimeoutDuration(),
		log:         logger.With().Str("component", "db").Str("dialect", dialect).Logger(),
	}
	if m.poolTimeout <= 0 {
		m.poolTimeout = 30 * time.Second
	}

	switch dialect {
	case config.SQLite:
		m.db, err = sqlx.Open(sqliteDriverName, dsn)
		if err != nil {
			return nil, apperror.NewDatabaseError("failed to open sqlite database", err)
		}
		// SQLite allows one writer at a time; a single connection serializes sessions
		// instead of surfacing "database is locked" errors.
		m.db.SetMaxOpenConns(1)
		m.db.SetMaxIdleConns(1)

	case config.MySQL:
		m.db, err = sqlx.Open(mysqlDriverName, dsn)
		if err != nil {
			return nil, apperror.NewDatabaseError("failed to open mysql database", err)
		}
		m.configurePool(cfg)

	case config.Postgres:
		pool, err := createPgxPool(ctx, cfg, dsn)
		if err != nil {
			return nil, err
		}
		m.closePool = pool.Close
		// The "pgx" driver name makes sqlx rebind `?` placeholders to `$1, $2, ...`.
		m.db = sqlx.NewDb(stdlib.OpenDBFromPool(pool), postgresDriverName)
		m.configurePool(cfg)
	}

	if err := m.Ping(ctx); err != nil {
		_ = m.Close()
		return nil, err
	}

	m.log.Info().
		Int("pool_size", cfg.PoolSize).
		Int("max_open", cfg.MaxOpenConns()).
		Dur("pool_timeout", m.poolTimeout).
		Msg("database connection pool ready")
	return m, nil
}

// configurePool applies base size, overflow and recycle settings to the database/sql pool.
func (m *Manager) configurePool(cfg config.DatabaseConfig) {
	m.db.SetMaxOpenConns(cfg.MaxOpenConns())
	m.db.SetMaxIdleConns(cfg.PoolSize)
	m.db.SetConnMaxLifetime(cfg.PoolRecycleDuration())
}

// createPgxPool establishes a pgxpool connection pool sized like the database/sql pool above it.
func createPgxPool(ctx context.Context, cfg config.DatabaseConfig, dsn string) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, apperror.NewDatabaseError(fmt.Sprintf("error parsing DSN for database %s", cfg.Database), err)
	}
	poolConfig.MaxConns = int32(cfg.MaxOpenConns())
	poolConfig.MaxConnLifetime = cfg.PoolRecycleDuration()
	poolConfig.MaxConnIdleTime = 10 * time.Minute

	// Use a context with a timeout so an unreachable server cannot block startup forever.
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, apperror.NewDatabaseError(fmt.Sprintf("error creating pgxpool for database %s", cfg.Database), err)
	}
	return pool, nil
}

// Dialect returns the canonical engine name ("sqlite", "mysql" or "postgres").
func (m *Manager) Dialect() string {
	return m.dialect
}

// DB exposes the underlying pool. Request handlers should use WithSession instead.
func (m *Manager) DB() *sqlx.DB {
	return m.db
}

// Ping verifies that a connection can be established.
func (m *Manager) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := m.db.PingContext(ctx); err != nil {
		return apperror.NewDatabaseError(fmt.Sprintf("error connecting to the %s database", m.dialect), err)
	}
	return nil
}

// Close releases every pooled connection.
func (m *Manager) Close() error {
	var err error
	if m.db != nil {
		err = m.db.Close()
	}
	if m.closePool != nil {
		m.closePool()
	}
	m.log.Info().Msg("database connection pool closed")
	return err
}

// CreateTables issues CREATE TABLE IF NOT EXISTS for every table definition.
func (m *Manager) CreateTables(ctx context.Context, tables ...Table) error {
	for _, t := range tables {
		ddl, err := t.CreateSQL(m.dialect)
		if err != nil {
			return apperror.NewDatabaseError(fmt.Sprintf("failed to render table %s", t.Name), err)
		}
		m.log.Debug().Str("table", t.Name).Str("sql", ddl).Msg("creating table")
		if _, err := m.db.ExecContext(ctx, ddl); err != nil {
			return apperror.NewDatabaseError(fmt.Sprintf("failed to create table %s", t.Name), err)
		}
	}
	return nil
}

// WithSession runs fn inside a transaction on a dedicated pooled connection.
//
// The connection must be acquired within the configured pool timeout, otherwise a database
// error "connection pool exhausted" is returned. The transaction commits when fn returns nil
// and rolls back when fn returns an error or panics; the panic is re-raised after rollback.
// The connection goes back to the pool on every path.
func (m *Manager) WithSession(ctx context.Context, fn func(Session) error) (err error) {
	acquireCtx, cancel := context.WithTimeout(ctx, m.poolTimeout)
	conn, err := m.db.Connx(acquireCtx)
	cancel()
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			m.log.Error().Dur("pool_timeout", m.poolTimeout).Msg("timed out waiting for a database connection")
			return apperror.NewDatabaseError("connection pool exhausted", err)
		}
		return apperror.NewDatabaseError("failed to acquire database connection", err)
	}
	// `defer conn.Close()` returns the connection to the pool; it runs after the
	// commit/rollback handler below because defers execute in reverse order.
	defer conn.Close()

	tx, err := conn.BeginTxx(ctx, nil)
	if err != nil {
		return apperror.NewDatabaseError("failed to begin transaction", err)
	}

	defer func() {
		if p := recover(); p != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				m.log.Error().Err(rbErr).Msg("rollback after panic failed")
			}
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				m.log.Error().Err(rbErr).Msg("rollback failed")
			}
			return
		}
		if cErr := tx.Commit(); cErr != nil {
			err = apperror.NewDatabaseError("failed to commit transaction", cErr)
		}
	}()

	return fn(tx)
}
