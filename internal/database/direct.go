package database

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"tripbase/internal/config"
	"tripbase/internal/types"
)

// connPool abstracts the pgx pool so statement paths are testable without a
// live server.
type connPool interface {
	Acquire(ctx context.Context) (poolConn, error)
	Ping(ctx context.Context) error
	Close()
}

// poolConn is one checked-out physical connection. Checkout is exclusive; a
// connection is either serving a single statement or pinned to a
// transaction session until Release.
type poolConn interface {
	DBTX
	Begin(ctx context.Context) (txHandle, error)
	Release()
}

// pgxPool adapts *pgxpool.Pool to connPool.
type pgxPool struct {
	pool *pgxpool.Pool
}

func (p *pgxPool) Acquire(ctx context.Context) (poolConn, error) {
	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	return &pgxConn{conn: conn}, nil
}

func (p *pgxPool) Ping(ctx context.Context) error { return p.pool.Ping(ctx) }

func (p *pgxPool) Close() { p.pool.Close() }

// pgxConn adapts *pgxpool.Conn to poolConn.
type pgxConn struct {
	conn *pgxpool.Conn
}

func (c *pgxConn) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return c.conn.Exec(ctx, sql, args...)
}

func (c *pgxConn) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return c.conn.Query(ctx, sql, args...)
}

func (c *pgxConn) Begin(ctx context.Context) (txHandle, error) {
	return c.conn.Begin(ctx)
}

func (c *pgxConn) Release() { c.conn.Release() }

// DirectProvider implements Provider over a pooled binary-protocol
// PostgreSQL connection.
type DirectProvider struct {
	cfg      config.DatabaseConfig
	logger   *slog.Logger
	registry *txRegistry

	mu   sync.RWMutex
	pool connPool

	// newPool is swapped in tests to avoid a live server.
	newPool func(ctx context.Context) (connPool, error)
}

// NewDirectProvider creates an unconnected direct-protocol provider.
func NewDirectProvider(cfg config.DatabaseConfig, logger *slog.Logger) *DirectProvider {
	if logger == nil {
		logger = slog.Default()
	}
	p := &DirectProvider{
		cfg:      cfg,
		logger:   logger,
		registry: newTxRegistry(),
	}
	p.newPool = p.openPool
	return p
}

// openPool builds the pgx pool from configuration.
func (p *DirectProvider) openPool(ctx context.Context) (connPool, error) {
	poolCfg, err := pgxpool.ParseConfig(p.cfg.URL.Unmask())
	if err != nil {
		return nil, err
	}
	poolCfg.MinConns = p.cfg.MinConns
	poolCfg.MaxConns = p.cfg.MaxConns
	poolCfg.MaxConnIdleTime = p.cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, err
	}
	return &pgxPool{pool: pool}, nil
}

// Connect creates the connection pool and verifies liveness with a
// round-trip ping. A partially created pool is closed on failure. Calling
// Connect on an already connected provider is a no-op.
func (p *DirectProvider) Connect(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.pool != nil {
		return nil
	}

	pool, err := p.newPool(ctx)
	if err != nil {
		return types.NewConnectionError("failed to create connection pool", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return types.NewConnectionError("database liveness check failed", err)
	}

	p.pool = pool
	p.logger.Info("connected to database",
		"backend", "direct",
		"min_conns", p.cfg.MinConns,
		"max_conns", p.cfg.MaxConns,
	)
	return nil
}

// Disconnect rolls back and releases every connection still pinned by an
// open transaction, then closes the pool. It is idempotent.
func (p *DirectProvider) Disconnect(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.pool == nil {
		return nil
	}

	for _, s := range p.registry.drain() {
		if err := s.tx.Rollback(context.WithoutCancel(ctx)); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			p.logger.Error("rollback during disconnect failed", "tx_id", s.id, "error", err)
		}
		s.conn.Release()
	}

	p.pool.Close()
	p.pool = nil
	p.logger.Info("disconnected from database", "backend", "direct")
	return nil
}

// IsConnected reports whether the pool is open.
func (p *DirectProvider) IsConnected() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.pool != nil
}

// Table returns a fluent query builder bound to this provider.
func (p *DirectProvider) Table(name string) Table {
	return newQueryBuilder(name, p)
}

// ExecuteSQL runs raw SQL after translating :name placeholders to the $n
// positional convention.
func (p *DirectProvider) ExecuteSQL(ctx context.Context, query string, params map[string]any) (*Result, error) {
	sql, args, err := translateNamed(query, params)
	if err != nil {
		return nil, types.NewQueryError("invalid named parameters", err, query, nil)
	}
	return p.executeStatement(ctx, sql, args)
}

// ExecutePreparedSQL runs SQL that already uses $n positional placeholders.
func (p *DirectProvider) ExecutePreparedSQL(ctx context.Context, query string, args ...any) (*Result, error) {
	return p.executeStatement(ctx, query, args)
}

// TablesExist probes each name against information_schema.
func (p *DirectProvider) TablesExist(ctx context.Context, names []string) (map[string]bool, error) {
	out := make(map[string]bool, len(names))
	for _, name := range names {
		res, err := p.ExecuteSQL(ctx, tableExistsQuery, map[string]any{"table_name": name})
		if err != nil {
			return nil, err
		}
		out[name] = existsFromResult(res)
	}
	return out, nil
}

// executeStatement runs one statement on the calling context's pinned
// transaction connection when present, otherwise on a fresh pool checkout
// released right after the call. A command timeout bounds the statement.
func (p *DirectProvider) executeStatement(ctx context.Context, sql string, args []any) (*Result, error) {
	dbtx, release, err := p.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	cctx := ctx
	if p.cfg.CommandTimeout > 0 {
		var cancel context.CancelFunc
		cctx, cancel = context.WithTimeout(ctx, p.cfg.CommandTimeout)
		defer cancel()
	}

	rows, err := dbtx.Query(cctx, sql, args...)
	if err != nil {
		return nil, types.NewQueryError("statement execution failed", err, sql, args)
	}
	res, err := collectRows(rows)
	if err != nil {
		return nil, types.NewQueryError("failed to read result rows", err, sql, args)
	}
	return res, nil
}

// acquire returns the statement target for ctx: the pinned transaction when
// ctx carries a session owned by this provider, otherwise a pool checkout
// with a release function the caller must invoke.
func (p *DirectProvider) acquire(ctx context.Context) (DBTX, func(), error) {
	if s := sessionFrom(ctx); s != nil && s.owner == p {
		return s.tx, func() {}, nil
	}

	p.mu.RLock()
	pool := p.pool
	p.mu.RUnlock()
	if pool == nil {
		return nil, nil, types.NewNotConnectedError("statement execution")
	}

	actx := ctx
	if p.cfg.AcquireTimeout > 0 {
		var cancel context.CancelFunc
		actx, cancel = context.WithTimeout(ctx, p.cfg.AcquireTimeout)
		defer cancel()
	}

	conn, err := pool.Acquire(actx)
	if err != nil {
		return nil, nil, types.NewQueryError("failed to acquire connection from pool", err, "", nil)
	}
	return conn, conn.Release, nil
}

// Transaction acquires one connection, begins a transaction on it, and runs
// fn with a context carrying the pinned session. Statements issued through
// this provider with that context execute on the same physical connection,
// in program order. On fn error the transaction is rolled back (best
// effort, rollback failures are logged) and fn's error is returned
// unchanged; otherwise the transaction commits.
func (p *DirectProvider) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if !p.IsConnected() {
		return types.NewNotConnectedError("transaction")
	}
	if sessionFrom(ctx) != nil {
		return types.NewDatabaseError("transaction already in progress")
	}

	p.mu.RLock()
	pool := p.pool
	p.mu.RUnlock()
	if pool == nil {
		return types.NewNotConnectedError("transaction")
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return types.NewQueryError("failed to acquire connection for transaction", err, "", nil)
	}

	tx, err := conn.Begin(ctx)
	if err != nil {
		conn.Release()
		return types.NewQueryError("failed to begin transaction", err, "BEGIN", nil)
	}

	session := &txSession{
		id:    uuid.NewString(),
		owner: p,
		tx:    tx,
		conn:  conn,
	}
	p.registry.add(session)
	defer func() {
		p.registry.remove(session.id)
		conn.Release()
	}()

	if fnErr := fn(withSession(ctx, session)); fnErr != nil {
		// Rollback must run even when ctx is already cancelled, so the
		// pinned connection is never leaked in an open transaction.
		if rbErr := tx.Rollback(context.WithoutCancel(ctx)); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			p.logger.Error("transaction rollback failed", "tx_id", session.id, "error", rbErr)
		}
		return fnErr
	}

	if err := tx.Commit(ctx); err != nil {
		return types.NewQueryError("failed to commit transaction", err, "COMMIT", nil)
	}
	return nil
}
