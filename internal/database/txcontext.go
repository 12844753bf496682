package database

import (
	"context"
	"sync"
)

// txHandle is the subset of pgx.Tx the transaction scope needs. Kept
// minimal so tests can stand in for a live transaction.
type txHandle interface {
	DBTX
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// txSession binds one open transaction to the physical connection it is
// pinned to. The session travels inside the context handed to the
// transaction callback; every statement issued with that context runs on
// session.tx instead of a fresh pool checkout.
type txSession struct {
	id    string
	owner *DirectProvider
	tx    txHandle
	conn  poolConn
}

type sessionCtxKey struct{}

// withSession derives a context carrying the transaction binding.
func withSession(ctx context.Context, s *txSession) context.Context {
	return context.WithValue(ctx, sessionCtxKey{}, s)
}

// sessionFrom returns the transaction binding carried by ctx, if any.
func sessionFrom(ctx context.Context) *txSession {
	s, _ := ctx.Value(sessionCtxKey{}).(*txSession)
	return s
}

// txRegistry tracks every session with an open transaction so Disconnect
// can roll back and release still-pinned connections. Entries are added at
// BEGIN and removed at COMMIT/ROLLBACK, always, even on error.
type txRegistry struct {
	mu     sync.Mutex
	active map[string]*txSession
}

func newTxRegistry() *txRegistry {
	return &txRegistry{active: make(map[string]*txSession)}
}

func (r *txRegistry) add(s *txSession) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active[s.id] = s
}

func (r *txRegistry) remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.active, id)
}

// drain removes and returns every registered session.
func (r *txRegistry) drain() []*txSession {
	r.mu.Lock()
	defer r.mu.Unlock()
	sessions := make([]*txSession, 0, len(r.active))
	for _, s := range r.active {
		sessions = append(sessions, s)
	}
	r.active = make(map[string]*txSession)
	return sessions
}

// size reports the number of open transactions.
func (r *txRegistry) size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.active)
}
