// Package db provides database connectivity and migration functionality for the blogpress application.
// It handles establishing the connection pool and running schema migrations.
package db

import (
	"context"
	"errors"
	"fmt"
	// `time` is used for setting timeouts and connection pool configurations.
	"time"

	// `golang-migrate` applies the versioned SQL files under migrations/.
	"github.com/golang-migrate/migrate/v4"
	// The postgres database driver for golang-migrate; it talks to the server through lib/pq.
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	// The file source driver reads migrations from the local filesystem.
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	// `pgxpool` is part of the `jackc/pgx` suite, providing a robust connection pool for PostgreSQL.
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq" // database/sql driver used by migrate's postgres driver

	"github.com/user/blogpress-go/apperror"
	"github.com/user/blogpress-go/config"
)

// UniqueViolation is the PostgreSQL error code for unique constraint violations.
const UniqueViolation = "23505"

// DBTX is the subset of *pgxpool.Pool the stores use. Accepting it instead of
// the concrete pool lets tests substitute a mock connection.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// IsUniqueViolation reports whether err is a PostgreSQL unique constraint violation.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == UniqueViolation
}

// NewPool establishes the application's PostgreSQL connection pool and pings it.
func NewPool(cfg *config.DatabaseConfig) (*pgxpool.Pool, error) {
	// `pgxpool.ParseConfig` parses the DSN string into a `pgxpool.Config` struct.
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, apperror.NewConfigError("error parsing DATABASE_URL", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxSize)
	poolConfig.MaxConnIdleTime = 10 * time.Minute
	poolConfig.MaxConnLifetime = 30 * time.Minute

	// Use a context with a timeout so an unreachable database fails startup instead of hanging it.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, apperror.NewDatabaseError("error creating pgxpool", err)
	}

	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer pingCancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close() // Clean up on connection failure
		return nil, apperror.NewDatabaseError(fmt.Sprintf("error connecting to database %s", poolConfig.ConnConfig.Database), err)
	}

	return pool, nil
}

// RunMigrations applies any pending database migrations from the specified migrations directory.
// The directory holds golang-migrate pairs such as 000001_create_users.up.sql / .down.sql.
// It returns whether anything was applied.
func RunMigrations(cfg *config.DatabaseConfig) (bool, error) {
	m, err := migrate.New("file://"+cfg.MigrationsDir, cfg.URL)
	if err != nil {
		return false, apperror.NewMigrationError("failed to create migrator", err)
	}
	defer m.Close()

	// `migrate.ErrNoChange` is returned if there are no new migrations to apply, which is not an actual error.
	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			return false, nil
		}
		return false, apperror.NewMigrationError("failed to run migrations", err)
	}
	return true, nil
}
