// Package postgres is a native PostgreSQL driver speaking the version 3.0
// wire protocol directly, without database/sql. All queries run through the
// extended-query protocol with text-format parameters.
package postgres

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/sqlmodel/sqlmodel-go/core"
	"github.com/sqlmodel/sqlmodel-go/driver/postgres/protocol"
	"github.com/sqlmodel/sqlmodel-go/internal/debug"
)

// Conn is a single PostgreSQL connection. It is not safe for parallel use;
// the pool hands each connection to one goroutine at a time.
type Conn struct {
	cfg Config

	mu     sync.Mutex
	netc   net.Conn
	reader *protocol.Reader
	writer *protocol.Writer

	// server identity from BackendKeyData, used for cancel requests
	backendPID    int32
	backendSecret int32

	// parameter statuses reported by the server (server_version, ...)
	params map[string]string

	txStatus byte
	closed   bool
	stmtSeq  int
}

// Connect dials the server, negotiates TLS per the configured SSL mode and
// authenticates.
func Connect(ctx context.Context, cfg Config) (*Conn, error) {
	cfg, err := cfg.withDefaults()
	if err != nil {
		return nil, err
	}
	if cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.ConnectTimeout)
		defer cancel()
	}

	d := net.Dialer{}
	netc, err := d.DialContext(ctx, "tcp", cfg.addr())
	if err != nil {
		return nil, core.WrapError(core.KindConnectionRefused,
			fmt.Sprintf("dial %s", cfg.addr()), err)
	}

	c := &Conn{
		cfg:      cfg,
		netc:     netc,
		writer:   protocol.NewWriter(),
		params:   map[string]string{},
		txStatus: protocol.TxStatusIdle,
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = netc.SetDeadline(deadline)
	}
	if err := c.negotiateSSL(); err != nil {
		_ = netc.Close()
		return nil, err
	}
	c.reader = protocol.NewReader(c.netc)
	c.reader.SetMaxMessageSize(cfg.MaxMessageSize)
	if err := c.startup(); err != nil {
		_ = c.netc.Close()
		return nil, err
	}
	_ = netc.SetDeadline(time.Time{})
	debug.Debug("postgres: connected",
		"addr", cfg.addr(), "database", cfg.Database, "pid", c.backendPID)
	return c, nil
}

func (c *Conn) negotiateSSL() error {
	if c.cfg.SSLMode == SSLDisable {
		return nil
	}
	c.writer.Reset()
	c.writer.SSLRequest()
	if _, err := c.netc.Write(c.writer.Bytes()); err != nil {
		return core.WrapError(core.KindConnectionConnect, "send ssl request", err)
	}
	var answer [1]byte
	if _, err := c.netc.Read(answer[:]); err != nil {
		return core.WrapError(core.KindConnectionConnect, "read ssl answer", err)
	}
	switch answer[0] {
	case 'S':
		tlsConn := tls.Client(c.netc, c.cfg.tlsClientConfig())
		if err := tlsConn.Handshake(); err != nil {
			return core.WrapError(core.KindConnectionSsl, "tls handshake", err)
		}
		c.netc = tlsConn
		return nil
	case 'N':
		if c.cfg.SSLMode.requiresTLS() {
			return core.Errorf(core.KindConnectionSsl,
				"server refused TLS but sslmode is %s", c.cfg.SSLMode)
		}
		return nil
	default:
		return core.Errorf(core.KindProtocol, "unexpected ssl negotiation answer %q", answer[0])
	}
}

// startup sends the startup message and drives the authentication exchange
// until ReadyForQuery.
func (c *Conn) startup() error {
	c.writer.Reset()
	c.writer.Startup(c.cfg.startupParams())
	if err := c.flush(); err != nil {
		return err
	}

	var scram *scramClient
	for {
		typ, payload, err := c.reader.Next()
		if err != nil {
			return err
		}
		switch typ {
		case protocol.MsgErrorResponse:
			return errorFromFields(protocol.ParseErrorFields(payload))
		case protocol.MsgAuthentication:
			buf := protocol.NewBuf(payload)
			code := buf.Int32()
			switch code {
			case protocol.AuthOK:
			case protocol.AuthCleartextPassword:
				c.writer.Reset()
				c.writer.Password(c.cfg.Password)
				if err := c.flush(); err != nil {
					return err
				}
			case protocol.AuthMD5Password:
				salt := buf.Bytes(4)
				if buf.Err() != nil {
					return buf.Err()
				}
				c.writer.Reset()
				c.writer.Password(md5Response(c.cfg.User, c.cfg.Password, salt))
				if err := c.flush(); err != nil {
					return err
				}
			case protocol.AuthSASL:
				supported := false
				for {
					mech := buf.String()
					if mech == "" || buf.Err() != nil {
						break
					}
					if mech == "SCRAM-SHA-256" {
						supported = true
					}
				}
				if !supported {
					return core.Errorf(core.KindConnectionAuthentication,
						"server offers no supported SASL mechanism")
				}
				scram, err = newScramClient(c.cfg.Password)
				if err != nil {
					return err
				}
				c.writer.Reset()
				c.writer.SASLInitialResponse("SCRAM-SHA-256", scram.First())
				if err := c.flush(); err != nil {
					return err
				}
			case protocol.AuthSASLContinue:
				if scram == nil {
					return core.Errorf(core.KindProtocol, "SASLContinue before SASL start")
				}
				final, err := scram.Final(buf.Rest())
				if err != nil {
					return err
				}
				c.writer.Reset()
				c.writer.SASLResponse(final)
				if err := c.flush(); err != nil {
					return err
				}
			case protocol.AuthSASLFinal:
				if scram == nil {
					return core.Errorf(core.KindProtocol, "SASLFinal before SASL start")
				}
				if err := scram.Verify(buf.Rest()); err != nil {
					return err
				}
			default:
				return core.Errorf(core.KindConnectionAuthentication,
					"unsupported authentication method %d", code)
			}
		case protocol.MsgBackendKeyData:
			buf := protocol.NewBuf(payload)
			c.backendPID = buf.Int32()
			c.backendSecret = buf.Int32()
		case protocol.MsgParameterStatus:
			buf := protocol.NewBuf(payload)
			c.params[buf.String()] = buf.String()
		case protocol.MsgNoticeResponse:
			// startup notices are informational
		case protocol.MsgReadyForQuery:
			c.txStatus = payload[0]
			return nil
		default:
			return core.Errorf(core.KindProtocol, "unexpected message %q during startup", typ)
		}
	}
}

func (c *Conn) flush() error {
	if _, err := c.netc.Write(c.writer.Bytes()); err != nil {
		return core.WrapError(core.KindConnectionDisconnected, "write", err)
	}
	return nil
}

// ServerParameter returns a parameter status value reported by the server,
// such as "server_version".
func (c *Conn) ServerParameter(name string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.params[name]
}

// Dialect identifies this driver's SQL flavour.
func (c *Conn) Dialect() core.Dialect {
	return core.Postgres
}

// TxStatus returns the last reported transaction status byte.
func (c *Conn) TxStatus() byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.txStatus
}

// result is the accumulated outcome of one extended-query round trip.
type result struct {
	cols *core.Columns
	rows []core.Row
	tag  string
	n    int64
}

// roundTrip runs Parse/Bind/Describe/Execute/Sync for one statement and
// collects the response. ctx cancellation sends an out-of-band cancel
// request and surfaces as a cancellation error.
func (c *Conn) roundTrip(ctx context.Context, sql string, params []core.Value) (*result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, core.Errorf(core.KindConnectionDisconnected, "connection is closed")
	}
	if err := ctx.Err(); err != nil {
		return nil, core.Cancelled(err)
	}

	encoded := make([][]byte, len(params))
	for i, p := range params {
		encoded[i] = encodeParam(p)
	}
	c.writer.Reset()
	c.writer.Parse("", sql, paramOIDs(params))
	c.writer.Bind("", "", encoded)
	c.writer.Describe('P', "")
	c.writer.Execute("", 0)
	c.writer.Sync()
	if err := c.flush(); err != nil {
		return nil, err
	}
	return c.collect(ctx)
}

// fatal marks the connection dead and closes the socket. Used when the
// stream is corrupt or desynchronised: unread frames may still be buffered,
// so no further round trip can trust what it reads.
func (c *Conn) fatal(err error) error {
	c.closed = true
	_ = c.netc.Close()
	return err
}

// collect consumes messages until ReadyForQuery, watching ctx to issue a
// cancel request mid-stream. Any framing or decode failure condemns the
// connection via fatal.
func (c *Conn) collect(ctx context.Context) (*result, error) {
	stop := c.watchCancel(ctx)
	defer stop()

	res := &result{}
	var oids []uint32
	var firstErr error
	for {
		typ, payload, err := c.reader.Next()
		if err != nil {
			err = c.fatal(err)
			if ctx.Err() != nil {
				return nil, core.Cancelled(ctx.Err())
			}
			return nil, err
		}
		switch typ {
		case protocol.MsgParseComplete, protocol.MsgBindComplete,
			protocol.MsgCloseComplete, protocol.MsgNoData,
			protocol.MsgEmptyQueryResponse, protocol.MsgPortalSuspended:
		case protocol.MsgParameterDesc:
		case protocol.MsgRowDescription:
			fields, err := protocol.ParseRowDescription(payload)
			if err != nil {
				return nil, c.fatal(err)
			}
			infos := make([]core.ColumnInfo, len(fields))
			oids = make([]uint32, len(fields))
			for i, f := range fields {
				infos[i] = core.ColumnInfo{Name: f.Name, TypeOID: f.TypeOID, Format: f.Format}
				oids[i] = f.TypeOID
			}
			res.cols = core.NewColumns(infos)
		case protocol.MsgDataRow:
			raw, err := protocol.ParseDataRow(payload)
			if err != nil {
				return nil, c.fatal(err)
			}
			values := make([]core.Value, len(raw))
			for i, cell := range raw {
				oid := uint32(0)
				if i < len(oids) {
					oid = oids[i]
				}
				values[i], err = decodeColumn(oid, cell)
				if err != nil {
					return nil, c.fatal(err)
				}
			}
			res.rows = append(res.rows, core.NewRow(res.cols, values))
		case protocol.MsgCommandComplete:
			res.tag, res.n = protocol.ParseCommandComplete(payload)
		case protocol.MsgErrorResponse:
			if firstErr == nil {
				firstErr = errorFromFields(protocol.ParseErrorFields(payload))
			}
		case protocol.MsgNoticeResponse:
			f := protocol.ParseErrorFields(payload)
			debug.Debug("postgres: notice", "severity", f.Severity, "message", f.Message)
		case protocol.MsgParameterStatus:
			buf := protocol.NewBuf(payload)
			c.params[buf.String()] = buf.String()
		case protocol.MsgReadyForQuery:
			c.txStatus = payload[0]
			if firstErr != nil {
				if ctx.Err() != nil && core.KindOf(firstErr) == core.KindQueryCancelled {
					return nil, core.Cancelled(ctx.Err())
				}
				return nil, firstErr
			}
			return res, nil
		default:
			return nil, c.fatal(core.Errorf(core.KindProtocol, "unexpected message %q", typ))
		}
	}
}

// watchCancel fires an out-of-band CancelRequest if ctx ends while a query
// is in flight. The server answers with SQLSTATE 57014 on the main stream.
func (c *Conn) watchCancel(ctx context.Context) func() {
	if ctx.Done() == nil {
		return func() {}
	}
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			c.sendCancel()
		case <-done:
		}
	}()
	return func() { close(done) }
}

// sendCancel opens a fresh connection and sends the cancel message. Errors
// are ignored; cancellation is best effort.
func (c *Conn) sendCancel() {
	conn, err := net.DialTimeout("tcp", c.cfg.addr(), 5*time.Second)
	if err != nil {
		return
	}
	defer conn.Close()
	w := protocol.NewWriter()
	w.CancelRequest(c.backendPID, c.backendSecret)
	_, _ = conn.Write(w.Bytes())
}

// Query runs sql and returns all result rows.
func (c *Conn) Query(ctx context.Context, sql string, params []core.Value) ([]core.Row, error) {
	res, err := c.roundTrip(ctx, sql, params)
	if err != nil {
		return nil, err
	}
	return res.rows, nil
}

// QueryOne runs sql and returns the first row, or nil on an empty result.
func (c *Conn) QueryOne(ctx context.Context, sql string, params []core.Value) (*core.Row, error) {
	rows, err := c.Query(ctx, sql, params)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

// Execute runs sql and returns the affected row count.
func (c *Conn) Execute(ctx context.Context, sql string, params []core.Value) (int64, error) {
	res, err := c.roundTrip(ctx, sql, params)
	if err != nil {
		return 0, err
	}
	return res.n, nil
}

// Insert runs an INSERT carrying a RETURNING clause for the generated key
// and returns it; without RETURNING it returns zero.
func (c *Conn) Insert(ctx context.Context, sql string, params []core.Value) (int64, error) {
	res, err := c.roundTrip(ctx, sql, params)
	if err != nil {
		return 0, err
	}
	if len(res.rows) > 0 && res.rows[0].Len() > 0 {
		if id, err := res.rows[0].Int64(0); err == nil {
			return id, nil
		}
	}
	return 0, nil
}

// Batch executes statements sequentially; the first failure aborts the
// remainder.
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

// Ping verifies the connection with an empty round trip.
func (c *Conn) Ping(ctx context.Context) error {
	_, err := c.roundTrip(ctx, "SELECT 1", nil)
	return err
}

// Close sends Terminate and closes the socket. Closing twice is a no-op.
func (c *Conn) Close(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	c.writer.Reset()
	c.writer.Terminate()
	_ = c.flush()
	return c.netc.Close()
}

// Begin opens a transaction at the server's default isolation.
func (c *Conn) Begin(ctx context.Context) (core.Transaction, error) {
	if _, err := c.Execute(ctx, "BEGIN", nil); err != nil {
		return nil, err
	}
	return newTx(c), nil
}

// BeginWith opens a transaction at the given isolation level.
func (c *Conn) BeginWith(ctx context.Context, level core.IsolationLevel) (core.Transaction, error) {
	if _, err := c.Execute(ctx, "BEGIN ISOLATION LEVEL "+level.SQL(), nil); err != nil {
		return nil, err
	}
	return newTx(c), nil
}

// Prepare creates a named server-side prepared statement.
func (c *Conn) Prepare(ctx context.Context, sql string) (core.PreparedStatement, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, core.Errorf(core.KindConnectionDisconnected, "connection is closed")
	}
	c.stmtSeq++
	name := fmt.Sprintf("stmt_%d", c.stmtSeq)
	c.writer.Reset()
	c.writer.Parse(name, sql, nil)
	c.writer.Sync()
	if err := c.flush(); err != nil {
		c.mu.Unlock()
		return nil, err
	}
	_, err := c.collect(ctx)
	c.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return &pgStmt{conn: c, name: name}, nil
}

// pgStmt is a named prepared statement bound to its connection.
type pgStmt struct {
	conn *Conn
	name string
}

func (s *pgStmt) run(ctx context.Context, params []core.Value) (*result, error) {
	c := s.conn
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, core.Errorf(core.KindConnectionDisconnected, "connection is closed")
	}
	encoded := make([][]byte, len(params))
	for i, p := range params {
		encoded[i] = encodeParam(p)
	}
	c.writer.Reset()
	c.writer.Bind("", s.name, encoded)
	c.writer.Describe('P', "")
	c.writer.Execute("", 0)
	c.writer.Sync()
	if err := c.flush(); err != nil {
		return nil, err
	}
	return c.collect(ctx)
}

func (s *pgStmt) Query(ctx context.Context, params []core.Value) ([]core.Row, error) {
	res, err := s.run(ctx, params)
	if err != nil {
		return nil, err
	}
	return res.rows, nil
}

func (s *pgStmt) Execute(ctx context.Context, params []core.Value) (int64, error) {
	res, err := s.run(ctx, params)
	if err != nil {
		return 0, err
	}
	return res.n, nil
}

func (s *pgStmt) Close(ctx context.Context) error {
	c := s.conn
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.writer.Reset()
	c.writer.Close('S', s.name)
	c.writer.Sync()
	if err := c.flush(); err != nil {
		return err
	}
	_, err := c.collect(ctx)
	return err
}
