// File: internal/store/provider.go
package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/FLUSEC-25-26/flusec-cloud/api/schemas"
	"github.com/FLUSEC-25-26/flusec-cloud/internal/config"
)

// NewPool creates a pgx connection pool with the configured sizing. It does
// not verify connectivity; New does that when the pool is first handed to a
// Store.
func NewPool(ctx context.Context, cfg config.DatabaseConfig) (DBPool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database url: %w", err)
	}

	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	poolCfg.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	return pool, nil
}

// Provider hands out one Store shared by reference, dialing the database the
// first time anything needs it. A failed dial is not remembered, so the next
// caller simply tries again. Close is safe whether or not a connection was
// ever made.
type Provider struct {
	cfg  config.DatabaseConfig
	log  *zap.Logger
	dial func(ctx context.Context) (DBPool, error)

	mu    sync.Mutex
	store *Store
	pool  DBPool
}

// NewProvider creates a Provider that dials with NewPool on first use.
func NewProvider(cfg config.DatabaseConfig, logger *zap.Logger) *Provider {
	return &Provider{
		cfg: cfg,
		log: logger,
		dial: func(ctx context.Context) (DBPool, error) {
			return NewPool(ctx, cfg)
		},
	}
}

// Get returns the shared Store, establishing the connection on first use.
func (p *Provider) Get(ctx context.Context) (*Store, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.store != nil {
		return p.store, nil
	}

	pool, err := p.dial(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	st, err := New(ctx, pool, p.log, p.cfg)
	if err != nil {
		pool.Close()
		return nil, err
	}

	p.pool = pool
	p.store = st
	st.log.Info("Database connection established")
	return st, nil
}

// InsertBatches delegates to the shared Store, dialing on first use.
func (p *Provider) InsertBatches(ctx context.Context, docs []schemas.BatchDocument) ([]string, error) {
	st, err := p.Get(ctx)
	if err != nil {
		return nil, err
	}
	return st.InsertBatches(ctx, docs)
}

// InsertEvents delegates to the shared Store, dialing on first use.
func (p *Provider) InsertEvents(ctx context.Context, events []schemas.IngestEvent) error {
	st, err := p.Get(ctx)
	if err != nil {
		return err
	}
	return st.InsertEvents(ctx, events)
}

// Close releases the connection pool if one was ever opened. A closed
// Provider dials again on the next Get.
func (p *Provider) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.pool == nil {
		return
	}
	p.pool.Close()
	p.pool = nil
	p.store = nil
}
