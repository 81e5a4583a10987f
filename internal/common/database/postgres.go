// internal/common/database/postgres.go
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"registration-workflow/internal/common/config"
	"registration-workflow/internal/common/errors"

	_ "github.com/lib/pq"
)

// PostgresClient holds the pool shared by the draft store and the
// delegation gateway.
type PostgresClient struct {
	DB *sql.DB
}

func NewPostgres(cfg config.PostgresConfig) (*PostgresClient, error) {
	db, err := sql.Open("postgres", cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.MaxIdle)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)

	return &PostgresClient{DB: db}, nil
}

// Ping reports DATABASE_CONNECTION_FAILED when the pool cannot reach the server.
func (c *PostgresClient) Ping(ctx context.Context) error {
	if err := c.DB.PingContext(ctx); err != nil {
		return errors.NewDatabaseConnectionFailedError(err)
	}
	return nil
}

// Ready pings and then checks that the registration tables exist.
func (c *PostgresClient) Ready(ctx context.Context) error {
	if err := c.Ping(ctx); err != nil {
		return err
	}
	for _, table := range schemaTables {
		var found bool
		err := c.DB.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name = $1)`,
			table).Scan(&found)
		if err != nil {
			return errors.NewQueryExecutionFailedError("schema check", err)
		}
		if !found {
			return fmt.Errorf("table %s is missing", table)
		}
	}
	return nil
}

func (c *PostgresClient) Close() error {
	if c.DB != nil {
		return c.DB.Close()
	}
	return nil
}

// EnsureSchema creates the registration tables when they are missing.
func (c *PostgresClient) EnsureSchema(ctx context.Context) error {
	return EnsureSchema(ctx, c.DB)
}

func (c *PostgresClient) GetDB() *sql.DB {
	return c.DB
}
