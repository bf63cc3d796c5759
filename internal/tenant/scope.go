package tenant

import (
	"context"
	"database/sql"
	"fmt"

	dErrors "syncline/pkg/domain-errors"
	txcontext "syncline/pkg/platform/tx"
	"syncline/pkg/requestcontext"
)

// Scope opens the per-request transactional unit of work with the session
// variables the storage layer's row-level security policies read:
// app.tenant_id always, plus app.user_id on the member path or
// app.unauthenticated on the public path (where only rows explicitly flagged
// public are visible).
//
// Run guarantees teardown on every exit path: the transaction commits only
// when fn returns nil, and rolls back otherwise - including on panic.
type Scope struct {
	db *sql.DB
}

// NewScope creates a scope manager. db may be nil for in-memory mode, where
// the unit of work carries no SQL transaction but commit hooks still fire.
func NewScope(db *sql.DB) *Scope {
	return &Scope{db: db}
}

// Run executes fn inside a member-scoped unit of work.
func (s *Scope) Run(ctx context.Context, tenantID string, fn func(ctx context.Context) error) error {
	userID := requestcontext.UserID(ctx)
	if userID == "" {
		return dErrors.New(dErrors.CodeUnauthorized, "caller identity not resolved")
	}
	return s.run(ctx, tenantID, func(ctx context.Context, sqlTx *sql.Tx) error {
		if sqlTx != nil {
			if _, err := sqlTx.ExecContext(ctx, `SELECT set_config('app.user_id', $1, true)`, userID); err != nil {
				return fmt.Errorf("set session user: %w", err)
			}
		}
		return fn(ctx)
	})
}

// RunPublic executes fn inside a public-scoped unit of work, where row
// visibility is restricted to rows explicitly marked public.
func (s *Scope) RunPublic(ctx context.Context, tenantID string, fn func(ctx context.Context) error) error {
	return s.run(ctx, tenantID, func(ctx context.Context, sqlTx *sql.Tx) error {
		if sqlTx != nil {
			if _, err := sqlTx.ExecContext(ctx, `SELECT set_config('app.unauthenticated', 'on', true)`); err != nil {
				return fmt.Errorf("set public session flag: %w", err)
			}
		}
		return fn(ctx)
	})
}

func (s *Scope) run(ctx context.Context, tenantID string, fn func(ctx context.Context, sqlTx *sql.Tx) error) (err error) {
	// Validation must happen before any transaction opens.
	tenantID, err = ParseTenantID(tenantID)
	if err != nil {
		return err
	}

	var sqlTx *sql.Tx
	if s.db != nil {
		sqlTx, err = s.db.BeginTx(ctx, nil)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "open scoped transaction")
		}
		if _, err = sqlTx.ExecContext(ctx, `SELECT set_config('app.tenant_id', $1, true)`, tenantID); err != nil {
			_ = sqlTx.Rollback()
			return dErrors.Wrap(err, dErrors.CodeInternal, "set session tenant")
		}
	}

	scopedCtx, uow := txcontext.Begin(ctx, sqlTx)
	scopedCtx = requestcontext.WithTenantID(scopedCtx, tenantID)

	defer func() {
		if r := recover(); r != nil {
			_ = uow.Rollback()
			panic(r)
		}
		if err != nil {
			_ = uow.Rollback()
		}
	}()

	if err = fn(scopedCtx, sqlTx); err != nil {
		return err
	}
	if err = uow.Commit(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "commit scoped transaction")
	}
	return nil
}
