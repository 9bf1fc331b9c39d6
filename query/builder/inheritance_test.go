package builder

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sqlmodel/sqlmodel-go/core"
)

// fakeConn records every statement it executes. It doubles as its own
// transaction handle so joined writes can be inspected end to end.
type fakeConn struct {
	dialect  core.Dialect
	executed []core.Statement
	insertID int64
	commits  int
	rollback int
}

func (c *fakeConn) record(sql string, params []core.Value) {
	c.executed = append(c.executed, core.Statement{SQL: sql, Params: params})
}

func (c *fakeConn) Query(ctx context.Context, sql string, params []core.Value) ([]core.Row, error) {
	c.record(sql, params)
	return nil, nil
}

func (c *fakeConn) QueryOne(ctx context.Context, sql string, params []core.Value) (*core.Row, error) {
	c.record(sql, params)
	return nil, nil
}

func (c *fakeConn) Execute(ctx context.Context, sql string, params []core.Value) (int64, error) {
	c.record(sql, params)
	return 1, nil
}

func (c *fakeConn) Insert(ctx context.Context, sql string, params []core.Value) (int64, error) {
	c.record(sql, params)
	return c.insertID, nil
}

func (c *fakeConn) Batch(ctx context.Context, stmts []core.Statement) ([]int64, error) {
	out := make([]int64, len(stmts))
	for i, s := range stmts {
		c.record(s.SQL, s.Params)
		out[i] = 1
	}
	return out, nil
}

func (c *fakeConn) Prepare(ctx context.Context, sql string) (core.PreparedStatement, error) {
	return nil, nil
}

func (c *fakeConn) Ping(ctx context.Context) error { return nil }

func (c *fakeConn) Begin(ctx context.Context) (core.Transaction, error) { return c, nil }

func (c *fakeConn) BeginWith(ctx context.Context, level core.IsolationLevel) (core.Transaction, error) {
	return c, nil
}

func (c *fakeConn) Dialect() core.Dialect { return c.dialect }

func (c *fakeConn) Close(ctx context.Context) error { return nil }

func (c *fakeConn) Savepoint(ctx context.Context, name string) error  { return nil }
func (c *fakeConn) RollbackTo(ctx context.Context, name string) error { return nil }
func (c *fakeConn) Release(ctx context.Context, name string) error    { return nil }

func (c *fakeConn) Commit(ctx context.Context) error {
	c.commits++
	return nil
}

func (c *fakeConn) Rollback(ctx context.Context) error {
	c.rollback++
	return nil
}

// engineerModel is a joined-inheritance child: person is the base table,
// engineer adds its own columns sharing person's primary key.
func engineerModel() *core.DynamicModel {
	return core.NewDynamicModel("engineer").
		AddField(core.NewField("id", "id", core.BigIntTy).
			WithPrimaryKey(true).WithAutoIncrement(true).WithTable("person")).
		AddField(core.NewField("name", "name", core.TextTy).WithTable("person")).
		AddField(core.NewField("language", "language", core.TextTy)).
		SetInheritance(core.InheritanceInfo{
			Strategy:         core.InheritJoined,
			ParentTable:      "person",
			ParentPrimaryKey: []string{"id"},
		})
}

func TestSplitByTable(t *testing.T) {
	m := engineerModel().
		Set("name", core.Text("Ada")).
		Set("language", core.Text("go"))

	groups := splitByTable(m)
	require.Len(t, groups, 2)
	assert.Equal(t, "person", groups[0].table)
	assert.Equal(t, "engineer", groups[1].table)
	require.Len(t, groups[1].cols, 1)
	assert.Equal(t, "language", groups[1].cols[0].Name)
}

func TestJoinedInsertParentFirst(t *testing.T) {
	conn := &fakeConn{dialect: core.Postgres, insertID: 42}
	m := engineerModel().
		Set("name", core.Text("Ada")).
		Set("language", core.Text("go"))

	id, err := JoinedInsert(context.Background(), conn, m)
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
	assert.Equal(t, 1, conn.commits)

	require.Len(t, conn.executed, 2)
	assert.Equal(t,
		`INSERT INTO "person" ("name") VALUES ($1) RETURNING "id"`,
		conn.executed[0].SQL)
	assert.Equal(t,
		`INSERT INTO "engineer" ("id", "language") VALUES ($1, $2)`,
		conn.executed[1].SQL)

	// the generated parent key feeds the child insert
	childPK, err := conn.executed[1].Params[0].AsInt64()
	require.NoError(t, err)
	assert.Equal(t, int64(42), childPK)
}

func TestJoinedInsertExplicitKey(t *testing.T) {
	conn := &fakeConn{dialect: core.Sqlite}
	m := engineerModel().
		Set("id", core.BigInt(7)).
		Set("name", core.Text("Ada")).
		Set("language", core.Text("go"))

	id, err := JoinedInsert(context.Background(), conn, m)
	require.NoError(t, err)
	assert.Equal(t, int64(7), id)
	require.Len(t, conn.executed, 2)
	assert.NotContains(t, conn.executed[0].SQL, "RETURNING")
}

func TestJoinedInsertRejectsNonJoined(t *testing.T) {
	conn := &fakeConn{dialect: core.Postgres}
	_, err := JoinedInsert(context.Background(), conn, newHero("a", "b"))
	require.Error(t, err)
	assert.Equal(t, core.KindQueryDatabase, core.KindOf(err))
}

func TestJoinedInsertReturningRejectsConflict(t *testing.T) {
	conn := &fakeConn{dialect: core.Postgres}
	m := engineerModel().Set("name", core.Text("Ada")).Set("language", core.Text("go"))

	_, err := JoinedInsertReturning(context.Background(), conn, m,
		OnConflict{Action: ConflictDoNothing})
	require.Error(t, err)
	var e *core.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, "insert_returning does not support ON CONFLICT", e.Message)
}

func TestJoinedUpdateSplitsByTable(t *testing.T) {
	conn := &fakeConn{dialect: core.Postgres}
	m := engineerModel().
		Set("id", core.BigInt(7)).
		Set("name", core.Text("Ada")).
		Set("language", core.Text("go"))
	m.MarkPersisted()

	n, err := NewJoinedUpdate(m).
		Set("name", core.Text("Grace")).
		Set("language", core.Text("rust")).
		Execute(context.Background(), conn)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	require.Len(t, conn.executed, 2)
	assert.Equal(t, `UPDATE "person" SET "name" = $1 WHERE "id" = $2`, conn.executed[0].SQL)
	assert.Equal(t, `UPDATE "engineer" SET "language" = $1 WHERE "id" = $2`, conn.executed[1].SQL)
}

func TestJoinedUpdateAmbiguousColumn(t *testing.T) {
	conn := &fakeConn{dialect: core.Postgres}
	m := engineerModel().
		AddField(core.NewField("notes", "notes", core.TextTy).WithTable("person")).
		AddField(core.NewField("notes", "notes", core.TextTy)).
		Set("id", core.BigInt(1))
	m.MarkPersisted()

	_, err := NewJoinedUpdate(m).
		Set("notes", core.Text("x")).
		Execute(context.Background(), conn)
	require.Error(t, err)
	var e *core.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, "ambiguous joined-table inheritance column 'notes'", e.Message)
}

func TestJoinedUpdateUnknownColumn(t *testing.T) {
	conn := &fakeConn{dialect: core.Postgres}
	m := engineerModel().Set("id", core.BigInt(1))
	m.MarkPersisted()

	_, err := NewJoinedUpdate(m).
		Set("bogus", core.Text("x")).
		Execute(context.Background(), conn)
	require.Error(t, err)
	assert.Equal(t, core.KindQuerySyntax, core.KindOf(err))
}

func TestJoinedDeleteChildFirst(t *testing.T) {
	conn := &fakeConn{dialect: core.Postgres}
	m := engineerModel().Set("id", core.BigInt(7))
	m.MarkPersisted()

	n, err := JoinedDelete(context.Background(), conn, m)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	require.Len(t, conn.executed, 2)
	assert.Equal(t, `DELETE FROM "engineer" WHERE "id" = $1`, conn.executed[0].SQL)
	assert.Equal(t, `DELETE FROM "person" WHERE "id" = $1`, conn.executed[1].SQL)
}

func TestPolymorphicSelect(t *testing.T) {
	base := core.NewDynamicModel("person").
		AddField(core.NewField("id", "id", core.BigIntTy).WithPrimaryKey(true))

	sql, _, err := PolymorphicSelect(base, "engineer", "manager").Build(core.Postgres)
	require.NoError(t, err)
	assert.Equal(t,
		`SELECT * FROM "person" LEFT JOIN "engineer" ON ("person"."id" = "engineer"."id")`+
			` LEFT JOIN "manager" ON ("person"."id" = "manager"."id")`, sql)
}

func TestResolveVariant(t *testing.T) {
	cols := core.NewColumns([]core.ColumnInfo{
		{Name: "id"}, {Name: "language"}, {Name: "reports"},
	})
	probes := []VariantProbe{
		{Table: "engineer", Column: "language"},
		{Table: "manager", Column: "reports"},
	}

	row := core.NewRow(cols, []core.Value{core.BigInt(1), core.Text("go"), core.Null()})
	assert.Equal(t, "engineer", ResolveVariant(row, probes))

	row = core.NewRow(cols, []core.Value{core.BigInt(1), core.Null(), core.Int(3)})
	assert.Equal(t, "manager", ResolveVariant(row, probes))

	row = core.NewRow(cols, []core.Value{core.BigInt(1), core.Null(), core.Null()})
	assert.Equal(t, "", ResolveVariant(row, probes))
}
