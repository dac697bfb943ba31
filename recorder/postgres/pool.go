package postgres

import (
	"context"
	"fmt"

	"github.com/exaring/otelpgx"
	"github.com/jackc/pgx/v5/pgxpool"
)

// NewPool opens a pgxpool.Pool against connURI, instrumented with otelpgx —
// the exact `otelpgx.NewTracer()` wiring every Postgres-backed teacher
// service applies to its pool (iam-service, discovery-service, trm-service,
// notification-service, audit-service).
func NewPool(ctx context.Context, connURI string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(connURI)
	if err != nil {
		return nil, fmt.Errorf("postgres: parsing connection uri: %w", err)
	}
	cfg.ConnConfig.Tracer = otelpgx.NewTracer()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: opening pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return pool, nil
}
