// Package postgres implements the platform persistence collaborator and the
// audit log on top of a pgx connection pool.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Config holds the connection settings.
type Config struct {
	DSN             string `json:"dsn"`
	MaxConns        int32  `json:"max_conns"`
	ConnectTimeoutS int    `json:"connect_timeout_s"`
	// EnsureSchema creates audit_logs when it does not exist.
	EnsureSchema bool `json:"ensure_schema"`
}

// Enabled reports whether a DSN is configured.
func (c Config) Enabled() bool { return c.DSN != "" }

// SetDefaults fills unset fields.
func (c *Config) SetDefaults() {
	if c.MaxConns <= 0 {
		c.MaxConns = 10
	}
	if c.ConnectTimeoutS <= 0 {
		c.ConnectTimeoutS = 5
	}
}

// Validate checks the settings when a DSN is configured.
func (c Config) Validate() error {
	if !c.Enabled() {
		return nil
	}
	if _, err := pgxpool.ParseConfig(c.DSN); err != nil {
		return fmt.Errorf("postgres dsn: %w", err)
	}
	return nil
}

// Open creates a pool and verifies connectivity.
func Open(ctx context.Context, cfg Config) (*pgxpool.Pool, error) {
	if !cfg.Enabled() {
		return nil, errors.New("postgres: dsn is required")
	}
	cfg.SetDefaults()
	pcfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("postgres dsn: %w", err)
	}
	pcfg.MaxConns = cfg.MaxConns
	ctx, cancel := context.WithTimeout(ctx, time.Duration(cfg.ConnectTimeoutS)*time.Second)
	defer cancel()
	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, fmt.Errorf("postgres connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	return pool, nil
}
