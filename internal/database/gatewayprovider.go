package database

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"tripbase/internal/config"
	"tripbase/internal/gateway"
	"tripbase/internal/types"
)

// queryPayloadKey is the reserved payload key carrying the SQL text on
// exec_sql calls. Named parameters must not use this name.
const queryPayloadKey = "query"

// GatewayProvider implements Provider over the REST gateway. It holds no
// local connection pool: every statement is one RPC to the server-side
// exec_sql function, and transactions are emulated with literal
// BEGIN/COMMIT/ROLLBACK statements guarded by an in-transaction flag.
type GatewayProvider struct {
	cfg    config.GatewayConfig
	logger *slog.Logger

	mu     sync.RWMutex
	client *gateway.Client
	inTx   atomic.Bool

	// newClient is swapped in tests to tune retry behavior.
	newClient func() *gateway.Client
}

// NewGatewayProvider creates an unconnected REST-gateway provider.
func NewGatewayProvider(cfg config.GatewayConfig, logger *slog.Logger) *GatewayProvider {
	if logger == nil {
		logger = slog.Default()
	}
	p := &GatewayProvider{cfg: cfg, logger: logger}
	p.newClient = func() *gateway.Client {
		return gateway.NewClient(cfg.URL, cfg.APIKey, cfg.Timeout, logger,
			gateway.WithRetryPolicy(gateway.RetryPolicy{
				MaxRetries: cfg.MaxRetries,
				MinWait:    gateway.DefaultRetryPolicy().MinWait,
				MaxWait:    gateway.DefaultRetryPolicy().MaxWait,
			}),
		)
	}
	return p
}

// Connect builds the HTTP client and verifies the gateway answers a trivial
// round-trip query. Calling Connect on an already connected provider is a
// no-op.
func (p *GatewayProvider) Connect(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.client != nil {
		return nil
	}

	client := p.newClient()
	if _, err := client.RPC(ctx, gateway.ExecSQLFunction, map[string]any{queryPayloadKey: "SELECT 1"}); err != nil {
		client.Close()
		return types.NewConnectionError("gateway liveness check failed", err)
	}

	p.client = client
	p.logger.Info("connected to database", "backend", "gateway", "gateway_url", p.cfg.URL)
	return nil
}

// Disconnect rolls back any emulated transaction still open, then drops the
// HTTP client. It is idempotent.
func (p *GatewayProvider) Disconnect(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.client == nil {
		return nil
	}

	if p.inTx.Load() {
		if _, err := p.execOn(context.WithoutCancel(ctx), p.client, "ROLLBACK", nil); err != nil {
			p.logger.Error("rollback during disconnect failed", "error", err)
		}
		p.inTx.Store(false)
	}

	p.client.Close()
	p.client = nil
	p.logger.Info("disconnected from database", "backend", "gateway")
	return nil
}

// IsConnected reports whether the gateway client is live.
func (p *GatewayProvider) IsConnected() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.client != nil
}

// Table returns the gateway's native table query, which satisfies the same
// Table contract as the direct variant's SQL builder.
func (p *GatewayProvider) Table(name string) Table {
	return newGatewayTable(name, p)
}

// ExecuteSQL sends the query text and named parameters to the reserved
// exec_sql function.
func (p *GatewayProvider) ExecuteSQL(ctx context.Context, query string, params map[string]any) (*Result, error) {
	return p.rpcSQL(ctx, query, params)
}

// preparedPlaceholder matches $n positional placeholders.
var preparedPlaceholder = regexp.MustCompile(`\$(\d+)`)

// ExecutePreparedSQL adapts positional parameters to the gateway's named
// convention: $n becomes :pn in the text and each value is sent as pn.
func (p *GatewayProvider) ExecutePreparedSQL(ctx context.Context, query string, args ...any) (*Result, error) {
	named := preparedPlaceholder.ReplaceAllString(query, ":p$1")
	params := make(map[string]any, len(args))
	for i, arg := range args {
		params[fmt.Sprintf("p%d", i+1)] = arg
	}
	return p.rpcSQL(ctx, named, params)
}

// TablesExist fans the per-table probes out concurrently; each probe is an
// independent RPC.
func (p *GatewayProvider) TablesExist(ctx context.Context, names []string) (map[string]bool, error) {
	out := make(map[string]bool, len(names))
	var outMu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for _, name := range names {
		g.Go(func() error {
			res, err := p.rpcSQL(gctx, tableExistsQuery, map[string]any{"table_name": name})
			if err != nil {
				return err
			}
			outMu.Lock()
			out[name] = existsFromResult(res)
			outMu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Transaction emulates a transaction scope by issuing literal BEGIN, then
// COMMIT or ROLLBACK, through exec_sql. The gateway has no native
// transaction primitive, so an in-transaction flag (not a pinned
// connection) guards against nested BEGIN.
func (p *GatewayProvider) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if !p.IsConnected() {
		return types.NewNotConnectedError("transaction")
	}
	if !p.inTx.CompareAndSwap(false, true) {
		return types.NewDatabaseError("transaction already in progress")
	}
	defer p.inTx.Store(false)

	if _, err := p.rpcSQL(ctx, "BEGIN", nil); err != nil {
		return err
	}

	if fnErr := fn(ctx); fnErr != nil {
		if _, rbErr := p.rpcSQL(context.WithoutCancel(ctx), "ROLLBACK", nil); rbErr != nil {
			p.logger.Error("transaction rollback failed", "error", rbErr)
		}
		return fnErr
	}

	if _, err := p.rpcSQL(ctx, "COMMIT", nil); err != nil {
		return err
	}
	return nil
}

// rpcSQL issues one exec_sql call and normalizes the response.
func (p *GatewayProvider) rpcSQL(ctx context.Context, query string, params map[string]any) (*Result, error) {
	p.mu.RLock()
	client := p.client
	p.mu.RUnlock()
	if client == nil {
		return nil, types.NewNotConnectedError("statement execution")
	}
	return p.execOn(ctx, client, query, params)
}

// execOn runs one exec_sql call on an already-resolved client. Disconnect
// calls it directly while holding the write lock.
func (p *GatewayProvider) execOn(ctx context.Context, client *gateway.Client, query string, params map[string]any) (*Result, error) {
	if _, reserved := params[queryPayloadKey]; reserved {
		return nil, types.NewQueryError(
			fmt.Sprintf("parameter name %q is reserved for the statement text", queryPayloadKey),
			nil, query, paramValues(params))
	}

	payload := make(map[string]any, len(params)+1)
	payload[queryPayloadKey] = query
	for k, v := range params {
		payload[k] = v
	}

	raw, err := client.RPC(ctx, gateway.ExecSQLFunction, payload)
	if err != nil {
		return nil, types.NewQueryError("statement execution failed", err, query, paramValues(params))
	}

	res, err := decodeJSONRows(raw)
	if err != nil {
		return nil, types.NewQueryError("failed to decode gateway response", err, query, paramValues(params))
	}
	return res, nil
}

// paramValues flattens named parameters for error reporting.
func paramValues(params map[string]any) []any {
	if len(params) == 0 {
		return nil
	}
	out := make([]any, 0, len(params))
	for k, v := range params {
		out = append(out, fmt.Sprintf("%s=%v", k, v))
	}
	return out
}
