// Package tx carries the request-scoped unit of work through context.
//
// The tenant scope opens a SQL transaction per request and threads it here so
// stores can join it without plumbing *sql.Tx through every signature. The
// unit of work also collects after-commit hooks: the activity bus registers
// its dispatch step as a hook so a rolled-back mutation never becomes
// observable to subscribers.
package tx

import (
	"context"
	"database/sql"
	"sync"
)

type ctxKey struct{}

var uowKey = ctxKey{}

// UnitOfWork is one request-scoped transactional unit. The SQL transaction is
// nil when an in-memory store backs the request (tests, dev mode); hooks still
// run on Commit so dispatch semantics stay identical.
type UnitOfWork struct {
	tx *sql.Tx

	mu    sync.Mutex
	hooks []func()
	done  bool
}

// Begin wraps an optional SQL transaction into a unit of work and stores it in
// the context for downstream store usage.
func Begin(ctx context.Context, sqlTx *sql.Tx) (context.Context, *UnitOfWork) {
	u := &UnitOfWork{tx: sqlTx}
	return context.WithValue(ctx, uowKey, u), u
}

// Current extracts the ambient unit of work if present.
func Current(ctx context.Context) (*UnitOfWork, bool) {
	u, ok := ctx.Value(uowKey).(*UnitOfWork)
	return u, ok
}

// SQL extracts the ambient SQL transaction if one is open.
func SQL(ctx context.Context) (*sql.Tx, bool) {
	u, ok := Current(ctx)
	if !ok || u.tx == nil {
		return nil, false
	}
	return u.tx, true
}

// OnCommit registers a hook to run after a successful Commit. Hooks never run
// on rollback.
func (u *UnitOfWork) OnCommit(fn func()) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.hooks = append(u.hooks, fn)
}

// Commit commits the SQL transaction (if any) and then runs the registered
// hooks in order. Hook panics or failures are the hook's own concern; the
// commit has already happened.
func (u *UnitOfWork) Commit() error {
	u.mu.Lock()
	if u.done {
		u.mu.Unlock()
		return nil
	}
	u.done = true
	hooks := u.hooks
	u.hooks = nil
	u.mu.Unlock()

	if u.tx != nil {
		if err := u.tx.Commit(); err != nil {
			return err
		}
	}
	for _, fn := range hooks {
		fn()
	}
	return nil
}

// Rollback aborts the SQL transaction and discards all hooks. Safe to call
// after Commit; it becomes a no-op, which makes deferred teardown trivial.
func (u *UnitOfWork) Rollback() error {
	u.mu.Lock()
	if u.done {
		u.mu.Unlock()
		return nil
	}
	u.done = true
	u.hooks = nil
	u.mu.Unlock()

	if u.tx != nil {
		return u.tx.Rollback()
	}
	return nil
}
