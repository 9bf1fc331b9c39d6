// Package mysql implements the Connection contract for MySQL on top of the
// go-sql-driver client.
package mysql

import (
	"context"
	"crypto/tls"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/sqlmodel/sqlmodel-go/core"
	"github.com/sqlmodel/sqlmodel-go/driver/internal/sqlbridge"
	"github.com/sqlmodel/sqlmodel-go/internal/debug"
)

// Config holds the connection parameters for a MySQL server.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string

	// Charset defaults to utf8mb4 with the 0900 collation.
	Charset   string
	Collation string

	TLSConfig      *tls.Config
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
}

func (c Config) withDefaults() (Config, error) {
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == 0 {
		c.Port = 3306
	}
	if c.User == "" {
		return c, core.Errorf(core.KindPoolConfig, "mysql: user is required")
	}
	if c.Charset == "" {
		c.Charset = "utf8mb4"
	}
	if c.Collation == "" {
		c.Collation = "utf8mb4_0900_ai_ci"
	}
	return c, nil
}

func (c Config) driverConfig() (*mysql.Config, error) {
	cfg := mysql.NewConfig()
	cfg.Addr = fmt.Sprintf("%s:%d", c.Host, c.Port)
	cfg.Net = "tcp"
	cfg.User = c.User
	cfg.Passwd = c.Password
	cfg.DBName = c.Database
	cfg.Collation = c.Collation
	cfg.Params = map[string]string{"charset": c.Charset}
	cfg.ParseTime = true
	cfg.Timeout = c.ConnectTimeout
	cfg.ReadTimeout = c.ReadTimeout
	cfg.WriteTimeout = c.WriteTimeout
	cfg.MultiStatements = false
	if c.TLSConfig != nil {
		if err := mysql.RegisterTLSConfig("sqlmodel", c.TLSConfig); err != nil {
			return nil, core.WrapError(core.KindConnectionSsl, "register tls config", err)
		}
		cfg.TLSConfig = "sqlmodel"
	}
	return cfg, nil
}

// Conn is a single dedicated MySQL connection.
type Conn struct {
	db   *sql.DB
	conn *sql.Conn
}

// Connect opens a dedicated connection to the server.
func Connect(ctx context.Context, cfg Config) (*Conn, error) {
	cfg, err := cfg.withDefaults()
	if err != nil {
		return nil, err
	}
	drvCfg, err := cfg.driverConfig()
	if err != nil {
		return nil, err
	}
	connector, err := mysql.NewConnector(drvCfg)
	if err != nil {
		return nil, core.WrapError(core.KindPoolConfig, "mysql configuration", err)
	}
	db := sql.OpenDB(connector)
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	conn, err := db.Conn(ctx)
	if err != nil {
		_ = db.Close()
		return nil, core.WrapError(core.KindConnectionConnect, "connect to "+drvCfg.Addr, mapError(err))
	}
	debug.Debug("mysql: connected", "addr", drvCfg.Addr, "database", cfg.Database)
	return &Conn{db: db, conn: conn}, nil
}

// Dialect identifies this driver's SQL flavour.
func (c *Conn) Dialect() core.Dialect {
	return core.Mysql
}

func (c *Conn) Query(ctx context.Context, query string, params []core.Value) ([]core.Row, error) {
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

// Insert executes an INSERT and returns the auto-increment id.
func (c *Conn) Insert(ctx context.Context, query string, params []core.Value) (int64, error) {
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
	if err := c.conn.PingContext(ctx); err != nil {
		return mapError(err)
	}
	return nil
}

func (c *Conn) Prepare(ctx context.Context, query string) (core.PreparedStatement, error) {
	stmt, err := c.conn.PrepareContext(ctx, query)
	if err != nil {
		return nil, mapError(err)
	}
	return sqlbridge.NewStmt(stmt, mapError), nil
}

func (c *Conn) Begin(ctx context.Context) (core.Transaction, error) {
	return c.beginTx(ctx, &sql.TxOptions{})
}

func (c *Conn) BeginWith(ctx context.Context, level core.IsolationLevel) (core.Transaction, error) {
	return c.beginTx(ctx, &sql.TxOptions{Isolation: sqlIsolation(level)})
}

func (c *Conn) beginTx(ctx context.Context, opts *sql.TxOptions) (core.Transaction, error) {
	tx, err := c.conn.BeginTx(ctx, opts)
	if err != nil {
		return nil, mapError(err)
	}
	return sqlbridge.NewTx(tx, core.Mysql, mapError), nil
}

func (c *Conn) Close(ctx context.Context) error {
	err := c.conn.Close()
	if dbErr := c.db.Close(); err == nil {
		err = dbErr
	}
	if err != nil {
		return mapError(err)
	}
	return nil
}

func sqlIsolation(level core.IsolationLevel) sql.IsolationLevel {
	switch level {
	case core.ReadUncommitted:
		return sql.LevelReadUncommitted
	case core.RepeatableRead:
		return sql.LevelRepeatableRead
	case core.Serializable:
		return sql.LevelSerializable
	default:
		return sql.LevelReadCommitted
	}
}
