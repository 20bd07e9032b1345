// Package database provides the shared PostgreSQL connection pool and the
// embedded schema migrations used by the datasource and transparency log.
package database

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/polis-ai/polis/pkg/config"
)

// Client wraps a pgx connection pool with lifecycle helpers.
type Client struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewClient connects, applies pool settings from configuration, pings, and
// runs pending migrations. The returned client owns the pool.
func NewClient(ctx context.Context, cfg *config.DBConfig) (*Client, error) {
	dsn := cfg.DSN()

	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		poolCfg.MaxConns = int32(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		poolCfg.MinConns = int32(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.ConnMaxLifetime
	}
	if cfg.ConnMaxIdleTime > 0 {
		poolCfg.MaxConnIdleTime = cfg.ConnMaxIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open database pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := Migrate(dsn, cfg.Database); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	client := &Client{
		pool:   pool,
		logger: slog.Default().With("component", "database"),
	}
	client.logger.Info("Database connected",
		"max_conns", poolCfg.MaxConns, "min_conns", poolCfg.MinConns)
	return client, nil
}

// NewClientFromPool wraps an existing pool without running migrations
// (useful for tests that manage their own schema).
func NewClientFromPool(pool *pgxpool.Pool) *Client {
	return &Client{
		pool:   pool,
		logger: slog.Default().With("component", "database"),
	}
}

// Pool returns the underlying connection pool for queries and health checks.
func (c *Client) Pool() *pgxpool.Pool {
	return c.pool
}

// Close releases all pooled connections.
func (c *Client) Close() {
	c.pool.Close()
}
