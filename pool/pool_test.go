package pool

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sqlmodel/sqlmodel-go/core"
)

// stubConn is a minimal Connection for pool accounting tests.
type stubConn struct {
	id       int
	closed   atomic.Bool
	queryErr error
}

func (c *stubConn) Query(ctx context.Context, sql string, params []core.Value) ([]core.Row, error) {
	return nil, c.queryErr
}

func (c *stubConn) QueryOne(ctx context.Context, sql string, params []core.Value) (*core.Row, error) {
	return nil, nil
}

func (c *stubConn) Execute(ctx context.Context, sql string, params []core.Value) (int64, error) {
	return 0, nil
}

func (c *stubConn) Insert(ctx context.Context, sql string, params []core.Value) (int64, error) {
	return 0, nil
}

func (c *stubConn) Batch(ctx context.Context, stmts []core.Statement) ([]int64, error) {
	return nil, nil
}

func (c *stubConn) Prepare(ctx context.Context, sql string) (core.PreparedStatement, error) {
	return nil, nil
}

func (c *stubConn) Ping(ctx context.Context) error { return nil }

func (c *stubConn) Begin(ctx context.Context) (core.Transaction, error) { return nil, nil }

func (c *stubConn) BeginWith(ctx context.Context, level core.IsolationLevel) (core.Transaction, error) {
	return nil, nil
}

func (c *stubConn) Dialect() core.Dialect { return core.Sqlite }

func (c *stubConn) Close(ctx context.Context) error {
	c.closed.Store(true)
	return nil
}

func stubFactory() (Factory, *atomic.Int64) {
	var made atomic.Int64
	return func(ctx context.Context) (core.Connection, error) {
		n := made.Add(1)
		return &stubConn{id: int(n)}, nil
	}, &made
}

func TestAcquireRelease(t *testing.T) {
	factory, made := stubFactory()
	p, err := New(factory, Config{MaxSize: 2, AcquireTimeout: time.Second})
	require.NoError(t, err)
	defer p.Close(context.Background())

	ctx := context.Background()
	c1, err := p.Acquire(ctx)
	require.NoError(t, err)
	c2, err := p.Acquire(ctx)
	require.NoError(t, err)

	stats := p.Stats()
	assert.Equal(t, 2, stats.Active)
	assert.Equal(t, 0, stats.Idle)
	assert.Equal(t, int64(2), stats.Created)
	assert.Equal(t, int64(2), stats.Acquires)

	require.NoError(t, c1.Release())
	require.NoError(t, c2.Release())

	stats = p.Stats()
	assert.Equal(t, 0, stats.Active)
	assert.Equal(t, 2, stats.Idle)

	// released connections are reused, newest first
	c3, err := p.Acquire(ctx)
	require.NoError(t, err)
	defer c3.Release()
	assert.Equal(t, int64(2), made.Load(), "no new connection should be constructed")
}

func TestReleaseIsIdempotent(t *testing.T) {
	factory, _ := stubFactory()
	p, err := New(factory, Config{MaxSize: 1, AcquireTimeout: time.Second})
	require.NoError(t, err)
	defer p.Close(context.Background())

	c, err := p.Acquire(context.Background())
	require.NoError(t, err)
	require.NoError(t, c.Release())
	require.NoError(t, c.Release())

	assert.Equal(t, 1, p.Stats().Idle)
}

func TestAcquireTimeout(t *testing.T) {
	factory, _ := stubFactory()
	p, err := New(factory, Config{MaxSize: 1, AcquireTimeout: 20 * time.Millisecond})
	require.NoError(t, err)
	defer p.Close(context.Background())

	c, err := p.Acquire(context.Background())
	require.NoError(t, err)
	defer c.Release()

	_, err = p.Acquire(context.Background())
	require.Error(t, err)
	assert.Equal(t, core.KindPoolExhausted, core.KindOf(err))

	var e *core.Error
	require.ErrorAs(t, err, &e)
	assert.Greater(t, e.Wait, time.Duration(0))

	stats := p.Stats()
	assert.Equal(t, int64(1), stats.Timeouts)
	assert.Equal(t, Degraded, stats.Health())
}

func TestAcquireContextCancel(t *testing.T) {
	factory, _ := stubFactory()
	p, err := New(factory, Config{MaxSize: 1, AcquireTimeout: time.Minute})
	require.NoError(t, err)
	defer p.Close(context.Background())

	c, err := p.Acquire(context.Background())
	require.NoError(t, err)
	defer c.Release()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	_, err = p.Acquire(ctx)
	require.Error(t, err)
	assert.True(t, core.IsCancelled(err))
}

func TestWaiterFIFO(t *testing.T) {
	factory, _ := stubFactory()
	p, err := New(factory, Config{MaxSize: 1, AcquireTimeout: time.Second})
	require.NoError(t, err)
	defer p.Close(context.Background())

	ctx := context.Background()
	held, err := p.Acquire(ctx)
	require.NoError(t, err)

	order := make(chan int, 2)
	ready := make(chan struct{}, 2)
	for i := 1; i <= 2; i++ {
		i := i
		go func() {
			ready <- struct{}{}
			c, err := p.Acquire(ctx)
			if err == nil {
				order <- i
				time.Sleep(5 * time.Millisecond)
				c.Release()
			}
		}()
		<-ready
		// wait until this goroutine is queued before starting the next
		require.Eventually(t, func() bool {
			return p.Stats().Pending >= i
		}, time.Second, time.Millisecond)
	}

	require.NoError(t, held.Release())
	assert.Equal(t, 1, <-order)
	assert.Equal(t, 2, <-order)
}

func TestBrokenConnectionIsDiscarded(t *testing.T) {
	factory, made := stubFactory()
	p, err := New(factory, Config{MaxSize: 1, AcquireTimeout: time.Second})
	require.NoError(t, err)
	defer p.Close(context.Background())

	ctx := context.Background()
	c, err := p.Acquire(ctx)
	require.NoError(t, err)
	underlying := c.Raw().(*stubConn)
	c.MarkBroken()
	require.NoError(t, c.Release())

	assert.True(t, underlying.closed.Load())
	stats := p.Stats()
	assert.Equal(t, 0, stats.Idle)
	assert.Equal(t, int64(1), stats.Closed)

	// the next acquire constructs a fresh connection
	c2, err := p.Acquire(ctx)
	require.NoError(t, err)
	defer c2.Release()
	assert.Equal(t, int64(2), made.Load())
}

func TestProtocolErrorDiscardsConnection(t *testing.T) {
	factory, made := stubFactory()
	p, err := New(factory, Config{MaxSize: 1, AcquireTimeout: time.Second})
	require.NoError(t, err)
	defer p.Close(context.Background())

	ctx := context.Background()
	c, err := p.Acquire(ctx)
	require.NoError(t, err)
	underlying := c.Raw().(*stubConn)
	underlying.queryErr = core.Errorf(core.KindProtocol, "corrupt stream")

	_, err = c.Query(ctx, "SELECT 1", nil)
	require.Error(t, err)
	require.NoError(t, c.Release())

	assert.True(t, underlying.closed.Load(), "connection must be closed, not idled")
	stats := p.Stats()
	assert.Equal(t, 0, stats.Idle)
	assert.Equal(t, int64(1), stats.Closed)

	c2, err := p.Acquire(ctx)
	require.NoError(t, err)
	defer c2.Release()
	assert.Equal(t, int64(2), made.Load())
}

func TestCloseNotifiesWaiters(t *testing.T) {
	factory, _ := stubFactory()
	p, err := New(factory, Config{MaxSize: 1, AcquireTimeout: 5 * time.Second})
	require.NoError(t, err)

	ctx := context.Background()
	c, err := p.Acquire(ctx)
	require.NoError(t, err)

	errCh := make(chan error, 1)
	go func() {
		_, err := p.Acquire(ctx)
		errCh <- err
	}()
	require.Eventually(t, func() bool { return p.Stats().Pending == 1 },
		time.Second, time.Millisecond)

	require.NoError(t, p.Close(ctx))

	select {
	case err := <-errCh:
		assert.Equal(t, core.KindPoolClosed, core.KindOf(err))
	case <-time.After(time.Second):
		t.Fatal("waiter was not woken by Close")
	}
	require.NoError(t, c.Release())
}

func TestClosedPool(t *testing.T) {
	factory, _ := stubFactory()
	p, err := New(factory, Config{MaxSize: 1, AcquireTimeout: time.Second})
	require.NoError(t, err)

	c, err := p.Acquire(context.Background())
	require.NoError(t, err)
	require.NoError(t, c.Release())

	require.NoError(t, p.Close(context.Background()))

	_, err = p.Acquire(context.Background())
	require.Error(t, err)
	assert.Equal(t, core.KindPoolClosed, core.KindOf(err))

	// closing twice is fine
	require.NoError(t, p.Close(context.Background()))
}

func TestPrune(t *testing.T) {
	factory, _ := stubFactory()
	p, err := New(factory, Config{MaxSize: 3, MinSize: 1, AcquireTimeout: time.Second})
	require.NoError(t, err)
	defer p.Close(context.Background())

	ctx := context.Background()
	var conns []*PooledConnection
	for i := 0; i < 3; i++ {
		c, err := p.Acquire(ctx)
		require.NoError(t, err)
		conns = append(conns, c)
	}
	for _, c := range conns {
		require.NoError(t, c.Release())
	}
	require.Equal(t, 3, p.Stats().Idle)

	p.Prune(ctx)
	assert.Equal(t, 1, p.Stats().Idle)
	assert.Equal(t, int64(2), p.Stats().Closed)
}

func TestConfigValidation(t *testing.T) {
	factory, _ := stubFactory()

	_, err := New(factory, Config{MaxSize: 0})
	require.Error(t, err)
	assert.Equal(t, core.KindPoolConfig, core.KindOf(err))

	_, err = New(factory, Config{MaxSize: 2, MinSize: 3})
	require.Error(t, err)
	assert.Equal(t, core.KindPoolConfig, core.KindOf(err))
}

func TestStatsHealth(t *testing.T) {
	assert.Equal(t, Healthy, Stats{Active: 1, MaxSize: 4}.Health())
	assert.Equal(t, Busy, Stats{Active: 4, MaxSize: 4}.Health())
	assert.Equal(t, Degraded, Stats{Active: 1, MaxSize: 4, Timeouts: 2}.Health())
	assert.Equal(t, Exhausted, Stats{Active: 4, MaxSize: 4, Pending: 1}.Health())
	assert.Equal(t, "exhausted", Exhausted.String())
}
