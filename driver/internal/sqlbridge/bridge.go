// Package sqlbridge adapts database/sql handles to the Connection contract.
// The MySQL and SQLite drivers share it; the native Postgres driver does
// not go through database/sql at all.
package sqlbridge

import (
	"context"
	"database/sql"
	"time"

	"github.com/sqlmodel/sqlmodel-go/core"
)

// ErrorMapper converts a driver-specific error into a core.Error.
type ErrorMapper func(error) error

// ScanRows drains a *sql.Rows into materialised rows. Column types are
// recovered from the driver's scan values.
func ScanRows(rows *sql.Rows, mapErr ErrorMapper) ([]core.Row, error) {
	defer rows.Close()
	names, err := rows.Columns()
	if err != nil {
		return nil, mapErr(err)
	}
	infos := make([]core.ColumnInfo, len(names))
	for i, name := range names {
		infos[i] = core.ColumnInfo{Name: name}
	}
	cols := core.NewColumns(infos)

	var out []core.Row
	dest := make([]any, len(names))
	for i := range dest {
		dest[i] = new(any)
	}
	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return nil, mapErr(err)
		}
		values := make([]core.Value, len(dest))
		for i, d := range dest {
			values[i] = fromScan(*(d.(*any)))
		}
		out = append(out, core.NewRow(cols, values))
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr(err)
	}
	return out, nil
}

func fromScan(raw any) core.Value {
	switch v := raw.(type) {
	case nil:
		return core.Null()
	case time.Time:
		return core.Timestamp(v)
	case []byte:
		return core.Blob(append([]byte(nil), v...))
	default:
		return core.FromAny(v)
	}
}

// Stmt wraps a *sql.Stmt as a PreparedStatement.
type Stmt struct {
	stmt   *sql.Stmt
	mapErr ErrorMapper
}

// NewStmt wraps stmt.
func NewStmt(stmt *sql.Stmt, mapErr ErrorMapper) *Stmt {
	return &Stmt{stmt: stmt, mapErr: mapErr}
}

func (s *Stmt) Query(ctx context.Context, params []core.Value) ([]core.Row, error) {
	rows, err := s.stmt.QueryContext(ctx, core.DriverArgs(params)...)
	if err != nil {
		return nil, s.mapErr(err)
	}
	return ScanRows(rows, s.mapErr)
}

func (s *Stmt) Execute(ctx context.Context, params []core.Value) (int64, error) {
	res, err := s.stmt.ExecContext(ctx, core.DriverArgs(params)...)
	if err != nil {
		return 0, s.mapErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, s.mapErr(err)
	}
	return n, nil
}

func (s *Stmt) Close(ctx context.Context) error {
	if err := s.stmt.Close(); err != nil {
		return s.mapErr(err)
	}
	return nil
}

// Tx wraps a *sql.Tx as a Transaction, adding savepoint support with
// dialect-appropriate quoting.
type Tx struct {
	tx      *sql.Tx
	dialect core.Dialect
	mapErr  ErrorMapper
	done    bool
}

// NewTx wraps tx.
func NewTx(tx *sql.Tx, dialect core.Dialect, mapErr ErrorMapper) *Tx {
	return &Tx{tx: tx, dialect: dialect, mapErr: mapErr}
}

func (t *Tx) guard() error {
	if t.done {
		return core.Errorf(core.KindQueryDatabase, "transaction is already finished")
	}
	return nil
}

func (t *Tx) Query(ctx context.Context, query string, params []core.Value) ([]core.Row, error) {
	if err := t.guard(); err != nil {
		return nil, err
	}
	rows, err := t.tx.QueryContext(ctx, query, core.DriverArgs(params)...)
	if err != nil {
		return nil, t.mapErr(err)
	}
	return ScanRows(rows, t.mapErr)
}

func (t *Tx) QueryOne(ctx context.Context, query string, params []core.Value) (*core.Row, error) {
	all, err := t.Query(ctx, query, params)
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return nil, nil
	}
	return &all[0], nil
}

func (t *Tx) Execute(ctx context.Context, query string, params []core.Value) (int64, error) {
	if err := t.guard(); err != nil {
		return 0, err
	}
	res, err := t.tx.ExecContext(ctx, query, core.DriverArgs(params)...)
	if err != nil {
		return 0, t.mapErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, t.mapErr(err)
	}
	return n, nil
}

func (t *Tx) Insert(ctx context.Context, query string, params []core.Value) (int64, error) {
	if err := t.guard(); err != nil {
		return 0, err
	}
	res, err := t.tx.ExecContext(ctx, query, core.DriverArgs(params)...)
	if err != nil {
		return 0, t.mapErr(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, t.mapErr(err)
	}
	return id, nil
}

func (t *Tx) savepointSQL(verb, name string) (string, error) {
	if err := core.CheckSavepointName(name); err != nil {
		return "", err
	}
	quoted := core.QuoteIdent(name)
	if t.dialect == core.Mysql {
		quoted = core.QuoteIdentMySQL(name)
	}
	return verb + " " + quoted, nil
}

func (t *Tx) Savepoint(ctx context.Context, name string) error {
	stmt, err := t.savepointSQL("SAVEPOINT", name)
	if err != nil {
		return err
	}
	_, err = t.Execute(ctx, stmt, nil)
	return err
}

func (t *Tx) RollbackTo(ctx context.Context, name string) error {
	stmt, err := t.savepointSQL("ROLLBACK TO SAVEPOINT", name)
	if err != nil {
		return err
	}
	_, err = t.Execute(ctx, stmt, nil)
	return err
}

func (t *Tx) Release(ctx context.Context, name string) error {
	stmt, err := t.savepointSQL("RELEASE SAVEPOINT", name)
	if err != nil {
		return err
	}
	_, err = t.Execute(ctx, stmt, nil)
	return err
}

func (t *Tx) Commit(ctx context.Context) error {
	if err := t.guard(); err != nil {
		return err
	}
	t.done = true
	if err := t.tx.Commit(); err != nil {
		return t.mapErr(err)
	}
	return nil
}

func (t *Tx) Rollback(ctx context.Context) error {
	if err := t.guard(); err != nil {
		return err
	}
	t.done = true
	if err := t.tx.Rollback(); err != nil {
		return t.mapErr(err)
	}
	return nil
}
