package core

import "context"

// IsolationLevel is the transaction isolation level, with a dialect-neutral
// SQL spelling.
type IsolationLevel int

const (
	// ReadUncommitted allows dirty reads.
	ReadUncommitted IsolationLevel = iota
	// ReadCommitted prevents dirty reads.
	ReadCommitted
	// RepeatableRead prevents non-repeatable reads.
	RepeatableRead
	// Serializable prevents phantom reads.
	Serializable
)

// SQL returns the isolation level clause.
func (l IsolationLevel) SQL() string {
	switch l {
	case ReadUncommitted:
		return "READ UNCOMMITTED"
	case RepeatableRead:
		return "REPEATABLE READ"
	case Serializable:
		return "SERIALIZABLE"
	default:
		return "READ COMMITTED"
	}
}

// Statement pairs SQL text with its parameters, for batch execution.
type Statement struct {
	SQL    string
	Params []Value
}

// PreparedStatement is a server-side prepared statement handle.
type PreparedStatement interface {
	// Query executes the statement and returns all rows.
	Query(ctx context.Context, params []Value) ([]Row, error)
	// Execute executes the statement and returns the affected row count.
	Execute(ctx context.Context, params []Value) (int64, error)
	// Close releases the statement.
	Close(ctx context.Context) error
}

// Querier is the query surface shared by connections and transactions.
type Querier interface {
	// Query runs sql and returns all result rows.
	Query(ctx context.Context, sql string, params []Value) ([]Row, error)
	// QueryOne runs sql and returns the first row, or nil when the result
	// is empty.
	QueryOne(ctx context.Context, sql string, params []Value) (*Row, error)
	// Execute runs sql and returns the number of affected rows.
	Execute(ctx context.Context, sql string, params []Value) (int64, error)
	// Insert runs an INSERT and returns the generated id. On Postgres the
	// caller is responsible for appending RETURNING <id column>.
	Insert(ctx context.Context, sql string, params []Value) (int64, error)
}

// Connection is the uniform async contract every driver implements. A single
// connection is not safe for parallel use; drivers serialise access
// internally where the underlying handle requires it.
type Connection interface {
	Querier

	// Batch executes statements sequentially on this connection; the first
	// failure aborts the remainder. Returns per-statement affected counts.
	Batch(ctx context.Context, stmts []Statement) ([]int64, error)
	// Prepare creates a server-side prepared statement.
	Prepare(ctx context.Context, sql string) (PreparedStatement, error)
	// Ping verifies the connection is alive.
	Ping(ctx context.Context) error
	// Begin opens a transaction at the driver's default isolation.
	Begin(ctx context.Context) (Transaction, error)
	// BeginWith opens a transaction at the given isolation level.
	BeginWith(ctx context.Context, level IsolationLevel) (Transaction, error)
	// Dialect identifies the SQL flavour this connection speaks.
	Dialect() Dialect
	// Close terminates the connection.
	Close(ctx context.Context) error
}

// Transaction is an open transaction handle. Operations on it are strictly
// ordered with query operations on the same connection. A handle that is
// garbage collected without Commit or Rollback logs a warning; the owning
// connection rolls back on next use where the driver supports it.
type Transaction interface {
	Querier

	// Savepoint creates a named savepoint. The name is validated before
	// any SQL is sent.
	Savepoint(ctx context.Context, name string) error
	// RollbackTo rolls back to a named savepoint.
	RollbackTo(ctx context.Context, name string) error
	// Release releases a named savepoint.
	Release(ctx context.Context, name string) error
	// Commit commits the transaction. The handle is dead afterwards.
	Commit(ctx context.Context) error
	// Rollback aborts the transaction. The handle is dead afterwards.
	Rollback(ctx context.Context) error
}
