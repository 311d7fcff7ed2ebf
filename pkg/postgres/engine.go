package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	maxConns        = 4
	maxConnLifetime = time.Hour
	maxConnIdleTime = 30 * time.Minute
)

// Open validates p, creates a connection pool for it and pings the server.
// The caller owns the returned pool and must close it.
func Open(ctx context.Context, log *slog.Logger, p Params) (*pgxpool.Pool, error) {
	p = p.WithDefaults()
	if err := p.Validate(); err != nil {
		return nil, err
	}

	poolConfig, err := pgxpool.ParseConfig(p.URI())
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse connection string: %w", ErrInvalidParams, err)
	}
	poolConfig.MaxConns = maxConns
	poolConfig.MaxConnLifetime = maxConnLifetime
	poolConfig.MaxConnIdleTime = maxConnIdleTime

	log.Debug("postgres: connecting", "host", p.Host, "port", p.Port, "database", p.Database, "user", p.User)

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, Classify(fmt.Errorf("failed to create postgres pool: %w", err))
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, Classify(fmt.Errorf("failed to ping postgres: %w", err))
	}

	log.Info("postgres: connected", "uri", p.RedactedURI())
	return pool, nil
}
