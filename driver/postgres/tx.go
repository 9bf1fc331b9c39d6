package postgres

import (
	"context"
	"runtime"

	"github.com/sqlmodel/sqlmodel-go/core"
	"github.com/sqlmodel/sqlmodel-go/internal/debug"
)

// pgTx is an open transaction on a Conn. The handle is dead after Commit or
// Rollback; a handle collected without either logs a warning.
type pgTx struct {
	conn *Conn
	done bool
}

func newTx(conn *Conn) *pgTx {
	tx := &pgTx{conn: conn}
	runtime.SetFinalizer(tx, func(t *pgTx) {
		if !t.done {
			debug.Warn("postgres: transaction dropped without commit or rollback")
		}
	})
	return tx
}

func (t *pgTx) guard() error {
	if t.done {
		return core.Errorf(core.KindQueryDatabase, "transaction is already finished")
	}
	return nil
}

func (t *pgTx) Query(ctx context.Context, sql string, params []core.Value) ([]core.Row, error) {
	if err := t.guard(); err != nil {
		return nil, err
	}
	return t.conn.Query(ctx, sql, params)
}

func (t *pgTx) QueryOne(ctx context.Context, sql string, params []core.Value) (*core.Row, error) {
	if err := t.guard(); err != nil {
		return nil, err
	}
	return t.conn.QueryOne(ctx, sql, params)
}

func (t *pgTx) Execute(ctx context.Context, sql string, params []core.Value) (int64, error) {
	if err := t.guard(); err != nil {
		return 0, err
	}
	return t.conn.Execute(ctx, sql, params)
}

func (t *pgTx) Insert(ctx context.Context, sql string, params []core.Value) (int64, error) {
	if err := t.guard(); err != nil {
		return 0, err
	}
	return t.conn.Insert(ctx, sql, params)
}

func (t *pgTx) Savepoint(ctx context.Context, name string) error {
	if err := core.CheckSavepointName(name); err != nil {
		return err
	}
	if err := t.guard(); err != nil {
		return err
	}
	_, err := t.conn.Execute(ctx, "SAVEPOINT "+core.QuoteIdent(name), nil)
	return err
}

func (t *pgTx) RollbackTo(ctx context.Context, name string) error {
	if err := core.CheckSavepointName(name); err != nil {
		return err
	}
	if err := t.guard(); err != nil {
		return err
	}
	_, err := t.conn.Execute(ctx, "ROLLBACK TO SAVEPOINT "+core.QuoteIdent(name), nil)
	return err
}

func (t *pgTx) Release(ctx context.Context, name string) error {
	if err := core.CheckSavepointName(name); err != nil {
		return err
	}
	if err := t.guard(); err != nil {
		return err
	}
	_, err := t.conn.Execute(ctx, "RELEASE SAVEPOINT "+core.QuoteIdent(name), nil)
	return err
}

func (t *pgTx) Commit(ctx context.Context) error {
	if err := t.guard(); err != nil {
		return err
	}
	t.done = true
	_, err := t.conn.Execute(ctx, "COMMIT", nil)
	return err
}

func (t *pgTx) Rollback(ctx context.Context) error {
	if err := t.guard(); err != nil {
		return err
	}
	t.done = true
	_, err := t.conn.Execute(ctx, "ROLLBACK", nil)
	return err
}
