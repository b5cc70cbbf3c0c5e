// Package postgres stores battle reports in PostgreSQL using pgx v5.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/cory-johannsen/battlegrid/internal/config"
)

// HealthTimeout bounds the ping Start performs.
const HealthTimeout = 5 * time.Second

// Pool owns the connection pool of the report store and the repositories
// built on it. It runs as a lifecycle service: Start checks health, Stop closes.
type Pool struct {
	pool    *pgxpool.Pool
	reports *ReportRepository
	logger  *zap.Logger
}

// NewPool connects to the report database described by cfg.
//
// Precondition: cfg passed config validation with Enabled set; logger is non-nil.
// Postcondition: Returns a pinged Pool or a non-nil error.
func NewPool(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (*Pool, error) {
	start := time.Now()
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parsing database config: %w", err)
	}
	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging report database %s:%d/%s: %w", cfg.Host, cfg.Port, cfg.Name, err)
	}

	logger = logger.With(zap.String("database", cfg.Name))
	logger.Info("report database connected",
		zap.String("host", cfg.Host),
		zap.Int32("max_conns", cfg.MaxConns),
		zap.Duration("elapsed", time.Since(start)),
	)
	return &Pool{
		pool:    pool,
		reports: NewReportRepository(pool),
		logger:  logger,
	}, nil
}

// Reports returns the battle event log repository.
func (p *Pool) Reports() *ReportRepository { return p.reports }

// Health checks that the database answers within timeout.
//
// Precondition: The pool must not be closed.
func (p *Pool) Health(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := p.pool.Ping(ctx); err != nil {
		return fmt.Errorf("report database health: %w", err)
	}
	return nil
}

// Start implements lifecycle.Service by checking health once.
func (p *Pool) Start(ctx context.Context) error {
	return p.Health(ctx, HealthTimeout)
}

// Stop implements lifecycle.Service.
func (p *Pool) Stop() { p.Close() }

// Close releases all pool resources.
//
// Postcondition: The pool and its repositories are no longer usable.
func (p *Pool) Close() {
	p.pool.Close()
	p.logger.Debug("report database closed")
}

// DB returns the underlying pgxpool.Pool.
func (p *Pool) DB() *pgxpool.Pool {
	return p.pool
}
