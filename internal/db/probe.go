package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PingProbe is a health probe that verifies database connectivity.
type PingProbe struct {
	pool *pgxpool.Pool
}

// NewPingProbe creates a health probe for the given pool.
func NewPingProbe(pool *pgxpool.Pool) *PingProbe {
	return &PingProbe{pool: pool}
}

// Name identifies the probe in the health report.
func (p *PingProbe) Name() string { return "database" }

// Check pings the database.
func (p *PingProbe) Check(ctx context.Context) error {
	return p.pool.Ping(ctx)
}
