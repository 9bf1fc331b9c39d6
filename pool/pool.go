// Package pool provides database connection pooling over the uniform
// Connection contract, plus replica routing and sharding on top of it.
package pool

import (
	"container/list"
	"context"
	"time"

	"sync"

	"github.com/sqlmodel/sqlmodel-go/core"
	"github.com/sqlmodel/sqlmodel-go/internal/debug"
)

// Factory constructs a new connection when the pool needs one.
type Factory func(ctx context.Context) (core.Connection, error)

// Config holds connection pool configuration.
type Config struct {
	// MaxSize is the maximum number of live connections.
	MaxSize int
	// MinSize is the number of connections kept open across Prune calls.
	MinSize int
	// AcquireTimeout bounds how long Acquire waits for a free connection.
	AcquireTimeout time.Duration
}

// DefaultConfig returns sensible default pool configuration.
func DefaultConfig() Config {
	return Config{
		MaxSize:        10,
		MinSize:        0,
		AcquireTimeout: 30 * time.Second,
	}
}

func (c Config) validate() error {
	if c.MaxSize < 1 {
		return core.Errorf(core.KindPoolConfig, "pool max size must be at least 1, got %d", c.MaxSize)
	}
	if c.MinSize < 0 || c.MinSize > c.MaxSize {
		return core.Errorf(core.KindPoolConfig,
			"pool min size %d must be between 0 and max size %d", c.MinSize, c.MaxSize)
	}
	return nil
}

// Health summarises a pool's state for dashboards.
type Health int

const (
	// Healthy means capacity remains and nothing is waiting.
	Healthy Health = iota
	// Busy means every connection is in use but nothing is waiting.
	Busy
	// Degraded means acquire timeouts have occurred.
	Degraded
	// Exhausted means callers are queued with no capacity left.
	Exhausted
)

// String implements fmt.Stringer.
func (h Health) String() string {
	switch h {
	case Busy:
		return "busy"
	case Degraded:
		return "degraded"
	case Exhausted:
		return "exhausted"
	default:
		return "healthy"
	}
}

// Stats is a snapshot of the pool counters.
type Stats struct {
	Active   int
	Idle     int
	Pending  int
	MaxSize  int
	Created  int64
	Closed   int64
	Acquires int64
	Timeouts int64
}

// Health derives the dashboard state from the snapshot.
func (s Stats) Health() Health {
	switch {
	case s.Active >= s.MaxSize && s.Pending > 0:
		return Exhausted
	case s.Timeouts > 0:
		return Degraded
	case s.Active >= s.MaxSize:
		return Busy
	default:
		return Healthy
	}
}

// waiter is one queued Acquire call. A nil connection on the channel means
// a slot was freed and the waiter should construct its own connection.
type waiter struct {
	ch chan core.Connection
	// err is set before a nil send when the wait is aborted rather than a
	// slot freed (pool closed)
	err error
}

// Pool is a bounded connection pool with a FIFO acquire queue.
type Pool struct {
	factory Factory
	cfg     Config

	mu      sync.Mutex
	idle    []core.Connection
	active  int
	waiters *list.List
	closed  bool

	created  int64
	closedN  int64
	acquires int64
	timeouts int64
}

// New creates a pool. Connections are constructed lazily on Acquire.
func New(factory Factory, cfg Config) (*Pool, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Pool{factory: factory, cfg: cfg, waiters: list.New()}, nil
}

// Stats returns current pool statistics.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{
		Active:   p.active,
		Idle:     len(p.idle),
		Pending:  p.waiters.Len(),
		MaxSize:  p.cfg.MaxSize,
		Created:  p.created,
		Closed:   p.closedN,
		Acquires: p.acquires,
		Timeouts: p.timeouts,
	}
}

// Acquire returns a pooled connection, waiting in FIFO order when the pool
// is at capacity. Cancellation of ctx cancels the wait, never an in-flight
// factory call.
func (p *Pool) Acquire(ctx context.Context) (*PooledConnection, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, core.Errorf(core.KindPoolClosed, "pool is closed")
	}
	p.acquires++

	if n := len(p.idle); n > 0 {
		conn := p.idle[n-1]
		p.idle = p.idle[:n-1]
		p.active++
		p.mu.Unlock()
		return &PooledConnection{pool: p, conn: conn}, nil
	}
	if p.active < p.cfg.MaxSize {
		p.active++
		p.mu.Unlock()
		return p.construct(ctx)
	}

	w := &waiter{ch: make(chan core.Connection, 1)}
	elem := p.waiters.PushBack(w)
	p.mu.Unlock()

	timeout := p.cfg.AcquireTimeout
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	start := time.Now()
	select {
	case conn := <-w.ch:
		if conn == nil {
			if w.err != nil {
				return nil, w.err
			}
			// a slot was freed for us; active was already transferred
			return p.construct(ctx)
		}
		return &PooledConnection{pool: p, conn: conn}, nil
	case <-timer.C:
		p.abandonWait(elem, w)
		p.mu.Lock()
		p.timeouts++
		p.mu.Unlock()
		e := core.Errorf(core.KindPoolExhausted,
			"no connection available after waiting %s", timeout)
		e.Wait = time.Since(start)
		return nil, e
	case <-ctx.Done():
		p.abandonWait(elem, w)
		return nil, core.Cancelled(ctx.Err())
	}
}

// abandonWait removes a waiter from the queue, re-dispatching any
// connection that raced onto its channel.
func (p *Pool) abandonWait(elem *list.Element, w *waiter) {
	p.mu.Lock()
	for e := p.waiters.Front(); e != nil; e = e.Next() {
		if e == elem {
			p.waiters.Remove(e)
			p.mu.Unlock()
			return
		}
	}
	p.mu.Unlock()
	// already dispatched to: hand the result back to the pool
	select {
	case conn := <-w.ch:
		if conn != nil {
			p.release(conn, false)
		} else if w.err == nil {
			p.mu.Lock()
			p.active--
			p.mu.Unlock()
		}
	default:
	}
}

// construct calls the factory for a slot already counted in active.
func (p *Pool) construct(ctx context.Context) (*PooledConnection, error) {
	conn, err := p.factory(ctx)
	if err != nil {
		p.mu.Lock()
		p.active--
		p.mu.Unlock()
		return nil, err
	}
	p.mu.Lock()
	p.created++
	active := p.active
	p.mu.Unlock()
	debug.Debug("pool: connection created", "active", active)
	return &PooledConnection{pool: p, conn: conn}, nil
}

// release returns a connection to the pool, or discards it when broken.
func (p *Pool) release(conn core.Connection, broken bool) {
	p.mu.Lock()
	if p.closed {
		p.active--
		p.closedN++
		p.mu.Unlock()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = conn.Close(ctx)
		cancel()
		return
	}
	if broken {
		p.active--
		p.closedN++
		// a freed slot can serve the oldest waiter
		if e := p.waiters.Front(); e != nil {
			p.waiters.Remove(e)
			p.active++
			e.Value.(*waiter).ch <- nil
		}
		p.mu.Unlock()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = conn.Close(ctx)
		cancel()
		return
	}
	if e := p.waiters.Front(); e != nil {
		p.waiters.Remove(e)
		e.Value.(*waiter).ch <- conn
		p.mu.Unlock()
		return
	}
	p.active--
	p.idle = append(p.idle, conn)
	p.mu.Unlock()
}

// Prune closes idle connections beyond MinSize.
func (p *Pool) Prune(ctx context.Context) {
	p.mu.Lock()
	var victims []core.Connection
	for len(p.idle) > p.cfg.MinSize {
		n := len(p.idle)
		victims = append(victims, p.idle[n-1])
		p.idle = p.idle[:n-1]
	}
	p.closedN += int64(len(victims))
	p.mu.Unlock()
	for _, conn := range victims {
		_ = conn.Close(ctx)
	}
}

// Close shuts the pool down. Queued waiters are woken with a closed-pool
// error; idle connections are closed immediately.
func (p *Pool) Close(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	idle := p.idle
	p.idle = nil
	p.closedN += int64(len(idle))
	for e := p.waiters.Front(); e != nil; e = e.Next() {
		w := e.Value.(*waiter)
		w.err = core.Errorf(core.KindPoolClosed, "pool is closed")
		w.ch <- nil
	}
	p.waiters.Init()
	p.mu.Unlock()

	var first error
	for _, conn := range idle {
		if err := conn.Close(ctx); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// PooledConnection is a guard around a pooled connection. It satisfies the
// Connection contract; Close returns the connection to the pool instead of
// terminating it. A connection that reported a disconnect or a protocol
// fault during use is discarded on return.
type PooledConnection struct {
	pool     *Pool
	conn     core.Connection
	broken   bool
	released bool
}

// Raw exposes the underlying connection.
func (pc *PooledConnection) Raw() core.Connection {
	return pc.conn
}

// MarkBroken flags the connection for discard on release.
func (pc *PooledConnection) MarkBroken() {
	pc.broken = true
}

func (pc *PooledConnection) note(err error) {
	if err == nil {
		return
	}
	switch core.KindOf(err) {
	case core.KindConnectionDisconnected, core.KindProtocol:
		// a corrupt stream is unrecoverable on the same connection
		pc.broken = true
	}
}

func (pc *PooledConnection) Query(ctx context.Context, sql string, params []core.Value) ([]core.Row, error) {
	rows, err := pc.conn.Query(ctx, sql, params)
	pc.note(err)
	return rows, err
}

func (pc *PooledConnection) QueryOne(ctx context.Context, sql string, params []core.Value) (*core.Row, error) {
	row, err := pc.conn.QueryOne(ctx, sql, params)
	pc.note(err)
	return row, err
}

func (pc *PooledConnection) Execute(ctx context.Context, sql string, params []core.Value) (int64, error) {
	n, err := pc.conn.Execute(ctx, sql, params)
	pc.note(err)
	return n, err
}

func (pc *PooledConnection) Insert(ctx context.Context, sql string, params []core.Value) (int64, error) {
	id, err := pc.conn.Insert(ctx, sql, params)
	pc.note(err)
	return id, err
}

func (pc *PooledConnection) Batch(ctx context.Context, stmts []core.Statement) ([]int64, error) {
	counts, err := pc.conn.Batch(ctx, stmts)
	pc.note(err)
	return counts, err
}

func (pc *PooledConnection) Prepare(ctx context.Context, sql string) (core.PreparedStatement, error) {
	stmt, err := pc.conn.Prepare(ctx, sql)
	pc.note(err)
	return stmt, err
}

func (pc *PooledConnection) Ping(ctx context.Context) error {
	err := pc.conn.Ping(ctx)
	pc.note(err)
	return err
}

func (pc *PooledConnection) Begin(ctx context.Context) (core.Transaction, error) {
	tx, err := pc.conn.Begin(ctx)
	pc.note(err)
	return tx, err
}

func (pc *PooledConnection) BeginWith(ctx context.Context, level core.IsolationLevel) (core.Transaction, error) {
	tx, err := pc.conn.BeginWith(ctx, level)
	pc.note(err)
	return tx, err
}

func (pc *PooledConnection) Dialect() core.Dialect {
	return pc.conn.Dialect()
}

// Close returns the connection to the pool. Closing twice is a no-op.
func (pc *PooledConnection) Close(ctx context.Context) error {
	return pc.Release()
}

// Release returns the connection to the pool without a context.
func (pc *PooledConnection) Release() error {
	if pc.released {
		return nil
	}
	pc.released = true
	pc.pool.release(pc.conn, pc.broken)
	return nil
}
