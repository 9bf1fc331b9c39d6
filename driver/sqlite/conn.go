// Package sqlite implements the Connection contract for SQLite. The
// database is in-process, so there is no wire protocol; a mutex serialises
// all access to the handle to keep the concurrent surface sound.
package sqlite

import (
	"context"
	"database/sql"
	"net/url"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/sqlmodel/sqlmodel-go/core"
	"github.com/sqlmodel/sqlmodel-go/driver/internal/sqlbridge"
	"github.com/sqlmodel/sqlmodel-go/internal/debug"
)

// Config holds the open parameters for a SQLite database.
type Config struct {
	// Path is the database file, or ":memory:" for an in-memory database.
	Path string

	// BusyTimeout is how long a locked database retries before reporting
	// SQLITE_BUSY. Defaults to 5s.
	BusyTimeout time.Duration

	// ForeignKeys enables foreign key enforcement. On by default.
	DisableForeignKeys bool

	// ReadOnly opens the database read-only.
	ReadOnly bool
}

func (c Config) dsn() string {
	q := url.Values{}
	timeout := c.BusyTimeout
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	q.Set("_busy_timeout", itoa(int(timeout.Milliseconds())))
	if !c.DisableForeignKeys {
		q.Set("_foreign_keys", "on")
	}
	if c.ReadOnly {
		q.Set("mode", "ro")
	}
	return "file:" + c.Path + "?" + q.Encode()
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var b [20]byte
	i := len(b)
	for n > 0 {
		i--
		b[i] = byte('0' + n%10)
		n /= 10
	}
	return string(b[i:])
}

// Conn is a single SQLite connection. All operations take the handle mutex.
type Conn struct {
	mu   sync.Mutex
	db   *sql.DB
	conn *sql.Conn
}

// Connect opens the database file.
func Connect(ctx context.Context, cfg Config) (*Conn, error) {
	if cfg.Path == "" {
		return nil, core.Errorf(core.KindPoolConfig, "sqlite: path is required")
	}
	db, err := sql.Open("sqlite3", cfg.dsn())
	if err != nil {
		return nil, core.WrapError(core.KindConnectionConnect, "open "+cfg.Path, mapError(err))
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	conn, err := db.Conn(ctx)
	if err != nil {
		_ = db.Close()
		return nil, core.WrapError(core.KindConnectionConnect, "open "+cfg.Path, mapError(err))
	}
	debug.Debug("sqlite: opened", "path", cfg.Path)
	return &Conn{db: db, conn: conn}, nil
}

// Dialect identifies this driver's SQL flavour.
func (c *Conn) Dialect() core.Dialect {
	return core.Sqlite
}

func (c *Conn) Query(ctx context.Context, query string, params []core.Value) ([]core.Row, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rows, err := c.conn.QueryContext(ctx, query, core.DriverArgs(params)...)
	if err != nil {
		return nil, mapError(err)
	}
	return sqlbridge.ScanRows(rows, mapError)
}

func (c *Conn) QueryOne(ctx context.Context, query string, params []core.Value) (*core.Row, error) {
	all, err := c.Query(ctx, query, params)
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return nil, nil
	}
	return &all[0], nil
}

func (c *Conn) Execute(ctx context.Context, query string, params []core.Value) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	res, err := c.conn.ExecContext(ctx, query, core.DriverArgs(params)...)
	if err != nil {
		return 0, mapError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, mapError(err)
	}
	return n, nil
}

// Insert executes an INSERT and returns the rowid of the new row.
func (c *Conn) Insert(ctx context.Context, query string, params []core.Value) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	res, err := c.conn.ExecContext(ctx, query, core.DriverArgs(params)...)
	if err != nil {
		return 0, mapError(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, mapError(err)
	}
	return id, nil
}

func (c *Conn) Batch(ctx context.Context, stmts []core.Statement) ([]int64, error) {
	counts := make([]int64, 0, len(stmts))
	for _, stmt := range stmts {
		n, err := c.Execute(ctx, stmt.SQL, stmt.Params)
		if err != nil {
			return counts, err
		}
		counts = append(counts, n)
	}
	return counts, nil
}

func (c *Conn) Ping(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.conn.PingContext(ctx); err != nil {
		return mapError(err)
	}
	return nil
}

func (c *Conn) Prepare(ctx context.Context, query string) (core.PreparedStatement, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	stmt, err := c.conn.PrepareContext(ctx, query)
	if err != nil {
		return nil, mapError(err)
	}
	return &lockedStmt{conn: c, stmt: sqlbridge.NewStmt(stmt, mapError)}, nil
}

func (c *Conn) Begin(ctx context.Context) (core.Transaction, error) {
	return c.beginTx(ctx, &sql.TxOptions{})
}

// BeginWith opens a transaction. SQLite only supports serializable
// semantics; other levels degrade to the default.
func (c *Conn) BeginWith(ctx context.Context, level core.IsolationLevel) (core.Transaction, error) {
	opts := &sql.TxOptions{}
	if level == core.ReadUncommitted {
		opts.Isolation = sql.LevelReadUncommitted
	}
	return c.beginTx(ctx, opts)
}

func (c *Conn) beginTx(ctx context.Context, opts *sql.TxOptions) (core.Transaction, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	tx, err := c.conn.BeginTx(ctx, opts)
	if err != nil {
		return nil, mapError(err)
	}
	return &lockedTx{conn: c, tx: sqlbridge.NewTx(tx, core.Sqlite, mapError)}, nil
}

func (c *Conn) Close(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	err := c.conn.Close()
	if dbErr := c.db.Close(); err == nil {
		err = dbErr
	}
	if err != nil {
		return mapError(err)
	}
	return nil
}

// lockedStmt holds the handle mutex across each statement operation.
type lockedStmt struct {
	conn *Conn
	stmt *sqlbridge.Stmt
}

func (s *lockedStmt) Query(ctx context.Context, params []core.Value) ([]core.Row, error) {
	s.conn.mu.Lock()
	defer s.conn.mu.Unlock()
	return s.stmt.Query(ctx, params)
}

func (s *lockedStmt) Execute(ctx context.Context, params []core.Value) (int64, error) {
	s.conn.mu.Lock()
	defer s.conn.mu.Unlock()
	return s.stmt.Execute(ctx, params)
}

func (s *lockedStmt) Close(ctx context.Context) error {
	s.conn.mu.Lock()
	defer s.conn.mu.Unlock()
	return s.stmt.Close(ctx)
}

// lockedTx holds the handle mutex across each transaction operation.
type lockedTx struct {
	conn *Conn
	tx   *sqlbridge.Tx
}

func (t *lockedTx) Query(ctx context.Context, query string, params []core.Value) ([]core.Row, error) {
	t.conn.mu.Lock()
	defer t.conn.mu.Unlock()
	return t.tx.Query(ctx, query, params)
}

func (t *lockedTx) QueryOne(ctx context.Context, query string, params []core.Value) (*core.Row, error) {
	t.conn.mu.Lock()
	defer t.conn.mu.Unlock()
	return t.tx.QueryOne(ctx, query, params)
}

func (t *lockedTx) Execute(ctx context.Context, query string, params []core.Value) (int64, error) {
	t.conn.mu.Lock()
	defer t.conn.mu.Unlock()
	return t.tx.Execute(ctx, query, params)
}

func (t *lockedTx) Insert(ctx context.Context, query string, params []core.Value) (int64, error) {
	t.conn.mu.Lock()
	defer t.conn.mu.Unlock()
	return t.tx.Insert(ctx, query, params)
}

func (t *lockedTx) Savepoint(ctx context.Context, name string) error {
	t.conn.mu.Lock()
	defer t.conn.mu.Unlock()
	return t.tx.Savepoint(ctx, name)
}

func (t *lockedTx) RollbackTo(ctx context.Context, name string) error {
	t.conn.mu.Lock()
	defer t.conn.mu.Unlock()
	return t.tx.RollbackTo(ctx, name)
}

func (t *lockedTx) Release(ctx context.Context, name string) error {
	t.conn.mu.Lock()
	defer t.conn.mu.Unlock()
	return t.tx.Release(ctx, name)
}

func (t *lockedTx) Commit(ctx context.Context) error {
	t.conn.mu.Lock()
	defer t.conn.mu.Unlock()
	return t.tx.Commit(ctx)
}

func (t *lockedTx) Rollback(ctx context.Context) error {
	t.conn.mu.Lock()
	defer t.conn.mu.Unlock()
	return t.tx.Rollback(ctx)
}
