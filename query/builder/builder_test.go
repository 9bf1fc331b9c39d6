package builder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sqlmodel/sqlmodel-go/core"
	"github.com/sqlmodel/sqlmodel-go/query/sqlgen"
)

func heroModel() *core.DynamicModel {
	return core.NewDynamicModel("hero").
		AddField(core.NewField("id", "id", core.BigIntTy).WithPrimaryKey(true).WithAutoIncrement(true)).
		AddField(core.NewField("name", "name", core.TextTy)).
		AddField(core.NewField("secret_name", "secret_name", core.TextTy)).
		AddField(core.NewField("age", "age", core.Integer).WithNullable(true))
}

func newHero(name, secret string) *core.DynamicModel {
	return heroModel().
		Set("name", core.Text(name)).
		Set("secret_name", core.Text(secret))
}

func TestInsertOmitsNullAutoPK(t *testing.T) {
	sql, params, err := NewInsert(newHero("Deadpond", "Dive Wilson")).Build(sqlgen.Postgres)
	require.NoError(t, err)
	assert.Equal(t,
		`INSERT INTO "hero" ("name", "secret_name", "age") VALUES ($1, $2, $3)`, sql)
	require.Len(t, params, 3)
	assert.Equal(t, "Deadpond", params[0].Text())
	assert.True(t, params[2].IsNull())
}

func TestInsertKeepsExplicitPK(t *testing.T) {
	m := newHero("Deadpond", "Dive Wilson").Set("id", core.BigInt(7))
	sql, params, err := NewInsert(m).Build(sqlgen.Postgres)
	require.NoError(t, err)
	assert.Equal(t,
		`INSERT INTO "hero" ("id", "name", "secret_name", "age") VALUES ($1, $2, $3, $4)`, sql)
	assert.Len(t, params, 4)
}

func TestInsertReturning(t *testing.T) {
	sql, _, err := NewInsert(newHero("a", "b")).Returning().Build(sqlgen.Postgres)
	require.NoError(t, err)
	assert.Contains(t, sql, " RETURNING *")

	_, _, err = NewInsert(newHero("a", "b")).Returning().Build(sqlgen.Mysql)
	require.Error(t, err)
	assert.Equal(t, core.KindQuerySyntax, core.KindOf(err))
}

func TestInsertConflictDoNothing(t *testing.T) {
	b := NewInsert(newHero("a", "b")).OnConflictDoNothing("name")

	sql, _, err := b.Build(sqlgen.Postgres)
	require.NoError(t, err)
	assert.Contains(t, sql, `ON CONFLICT ("name") DO NOTHING`)

	sql, _, err = b.Build(sqlgen.Mysql)
	require.NoError(t, err)
	assert.Contains(t, sql, "INSERT IGNORE INTO")
	assert.NotContains(t, sql, "ON CONFLICT")
}

func TestInsertConflictDoUpdate(t *testing.T) {
	b := NewInsert(newHero("a", "b")).OnConflictDoUpdate(nil, "name")

	sql, _, err := b.Build(sqlgen.Postgres)
	require.NoError(t, err)
	assert.Contains(t, sql,
		`ON CONFLICT ("name") DO UPDATE SET "name" = EXCLUDED."name", "secret_name" = EXCLUDED."secret_name", "age" = EXCLUDED."age"`)

	sql, _, err = b.Build(sqlgen.Mysql)
	require.NoError(t, err)
	assert.Contains(t, sql, "ON DUPLICATE KEY UPDATE `name` = VALUES(`name`)")
}

func TestBulkInsert(t *testing.T) {
	models := []core.Model{
		newHero("a", "x"),
		newHero("b", "y"),
	}
	sql, params, err := NewBulkInsert(models).Build(sqlgen.Postgres)
	require.NoError(t, err)
	assert.Equal(t,
		`INSERT INTO "hero" ("name", "secret_name", "age") VALUES ($1, $2, $3), ($4, $5, $6)`, sql)
	require.Len(t, params, 6)
	assert.Equal(t, "b", params[3].Text())
}

func TestBulkInsertEmpty(t *testing.T) {
	_, _, err := NewBulkInsert(nil).Build(sqlgen.Postgres)
	require.Error(t, err)
	assert.Equal(t, core.KindQuerySyntax, core.KindOf(err))
}

func TestUpdateDefaultsToPKWhere(t *testing.T) {
	m := newHero("Deadpond", "Dive Wilson").Set("id", core.BigInt(1))
	m.MarkPersisted()

	sql, params, err := NewUpdate(m).Build(sqlgen.Postgres)
	require.NoError(t, err)
	assert.Equal(t,
		`UPDATE "hero" SET "name" = $1, "secret_name" = $2, "age" = $3 WHERE ("id" = $4)`, sql)
	require.Len(t, params, 4)
	n, err := params[3].AsInt64()
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestUpdateRejectsUnpersisted(t *testing.T) {
	_, _, err := NewUpdate(newHero("a", "b")).Build(sqlgen.Postgres)
	require.Error(t, err)
	assert.Equal(t, core.KindQueryDatabase, core.KindOf(err))
	assert.Contains(t, err.Error(), "has not been persisted")
}

func TestUpdateExplicitSetWins(t *testing.T) {
	m := newHero("a", "b").Set("id", core.BigInt(1))
	m.MarkPersisted()

	sql, params, err := NewUpdate(m).Set("name", core.Text("override")).Build(sqlgen.Postgres)
	require.NoError(t, err)
	assert.Contains(t, sql, `"name" = $1`)
	assert.Equal(t, "override", params[0].Text())
}

func TestUpdateConstColumn(t *testing.T) {
	m := core.NewDynamicModel("account").
		AddField(core.NewField("id", "id", core.BigIntTy).WithPrimaryKey(true)).
		AddField(core.NewField("created_at", "created_at", core.TextTy).WithConst(true)).
		Set("id", core.BigInt(1))
	m.MarkPersisted()

	_, _, err := NewUpdate(m).Set("created_at", core.Text("now")).Build(sqlgen.Postgres)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "const column")
}

func TestUpdateTableWithFilters(t *testing.T) {
	sql, params, err := NewUpdateTable("hero").
		Set("age", core.Int(30)).
		Filter(sqlgen.Col("name").Eq(core.Text("Rusty-Man"))).
		Build(sqlgen.Mysql)
	require.NoError(t, err)
	assert.Equal(t, "UPDATE `hero` SET `age` = ? WHERE (`name` = ?)", sql)
	assert.Len(t, params, 2)
}

func TestDeleteRequiresWhere(t *testing.T) {
	_, _, err := NewDelete("hero").Build(sqlgen.Postgres)
	require.Error(t, err)
	assert.Equal(t, core.KindQuerySyntax, core.KindOf(err))
	assert.Contains(t, err.Error(), "no WHERE clause")
}

func TestDeleteByModel(t *testing.T) {
	m := newHero("a", "b").Set("id", core.BigInt(9))
	m.MarkPersisted()

	sql, params, err := NewDeleteFromModel(m).Build(sqlgen.Sqlite)
	require.NoError(t, err)
	assert.Equal(t, `DELETE FROM "hero" WHERE ("id" = ?1)`, sql)
	assert.Len(t, params, 1)
}

func TestDeleteByFilter(t *testing.T) {
	sql, params, err := NewDelete("hero").
		Filter(sqlgen.Col("age").Lt(core.Int(18))).
		Filter(sqlgen.Col("name").Like("Kid%")).
		Build(sqlgen.Postgres)
	require.NoError(t, err)
	assert.Equal(t, `DELETE FROM "hero" WHERE (("age" < $1) AND "name" LIKE $2)`, sql)
	assert.Len(t, params, 2)
}

func TestSelectBasics(t *testing.T) {
	sql, params, err := NewSelect("hero").
		Columns("id", "name").
		Filter(sqlgen.Col("age").Ge(core.Int(18))).
		OrderByDesc("age").
		Build(sqlgen.Postgres)
	require.NoError(t, err)
	assert.Equal(t,
		`SELECT "id", "name" FROM "hero" WHERE ("age" >= $1) ORDER BY "age" DESC`, sql)
	assert.Len(t, params, 1)
}

func TestSelectLimitOffsetAsParams(t *testing.T) {
	sql, params, err := NewSelect("hero").Limit(10).Offset(20).Build(sqlgen.Postgres)
	require.NoError(t, err)
	assert.Equal(t, `SELECT * FROM "hero" LIMIT $1 OFFSET $2`, sql)
	require.Len(t, params, 2)
	limit, _ := params[0].AsInt64()
	offset, _ := params[1].AsInt64()
	assert.Equal(t, int64(10), limit)
	assert.Equal(t, int64(20), offset)
}

func TestSelectOffsetOnly(t *testing.T) {
	sql, params, err := NewSelect("hero").Offset(5).Build(sqlgen.Mysql)
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM `hero` LIMIT 18446744073709551615 OFFSET ?", sql)
	assert.Len(t, params, 1)

	sql, _, err = NewSelect("hero").Offset(5).Build(sqlgen.Sqlite)
	require.NoError(t, err)
	assert.Equal(t, `SELECT * FROM "hero" LIMIT -1 OFFSET ?1`, sql)
}

func TestSelectJoinPlaceholderOrdering(t *testing.T) {
	sql, params, err := NewSelect("hero").
		Join("INNER", "team", sqlgen.Qualified("hero", "team_id").EqExpr(sqlgen.Qualified("team", "id"))).
		Filter(sqlgen.Col("age").Gt(core.Int(21))).
		Limit(3).
		Build(sqlgen.Postgres)
	require.NoError(t, err)
	assert.Equal(t,
		`SELECT * FROM "hero" INNER JOIN "team" ON ("hero"."team_id" = "team"."id") WHERE ("age" > $1) LIMIT $2`, sql)
	assert.Len(t, params, 2)
	assert.Equal(t, len(params), sqlgen.CountPlaceholders(sqlgen.Postgres, sql))
}

func TestSelectForUpdate(t *testing.T) {
	sql, _, err := NewSelect("hero").Filter(sqlgen.Col("id").Eq(core.Int(1))).ForUpdate().Build(sqlgen.Postgres)
	require.NoError(t, err)
	assert.Contains(t, sql, " FOR UPDATE")

	sql, _, err = NewSelect("hero").Filter(sqlgen.Col("id").Eq(core.Int(1))).ForUpdate().Build(sqlgen.Sqlite)
	require.NoError(t, err)
	assert.NotContains(t, sql, "FOR UPDATE")
}

func TestSelectModelAddsDiscriminator(t *testing.T) {
	m := core.NewDynamicModel("person").
		AddField(core.NewField("id", "id", core.BigIntTy).WithPrimaryKey(true)).
		AddField(core.NewField("type", "type", core.TextTy)).
		SetInheritance(core.InheritanceInfo{
			Strategy:           core.InheritSingle,
			DiscriminatorValue: "engineer",
		})

	sql, params, err := NewSelectModel(m).Build(sqlgen.Postgres)
	require.NoError(t, err)
	assert.Equal(t, `SELECT * FROM "person" WHERE ("type" = $1)`, sql)
	require.Len(t, params, 1)
	assert.Equal(t, "engineer", params[0].Text())
}

func TestInsertSetsDiscriminator(t *testing.T) {
	m := core.NewDynamicModel("person").
		AddField(core.NewField("id", "id", core.BigIntTy).WithPrimaryKey(true).WithAutoIncrement(true)).
		AddField(core.NewField("name", "name", core.TextTy)).
		SetInheritance(core.InheritanceInfo{
			Strategy:            core.InheritSingle,
			DiscriminatorColumn: "kind",
			DiscriminatorValue:  "engineer",
		}).
		Set("name", core.Text("Ada"))

	sql, params, err := NewInsert(m).Build(sqlgen.Postgres)
	require.NoError(t, err)
	assert.Equal(t, `INSERT INTO "person" ("name", "kind") VALUES ($1, $2)`, sql)
	require.Len(t, params, 2)
	assert.Equal(t, "engineer", params[1].Text())
}

func TestCteRenumbering(t *testing.T) {
	cte := NewCte("adults").
		Columns("id", "name").
		AsSelect("SELECT id, name FROM hero WHERE age >= ?", core.Int(18))

	sql, params, err := NewWithQuery().
		With(cte).
		Select("SELECT name FROM adults WHERE id > ?", core.Int(5)).
		Build(sqlgen.Postgres)
	require.NoError(t, err)
	assert.Equal(t,
		`WITH "adults" ("id", "name") AS (SELECT id, name FROM hero WHERE age >= $1) SELECT name FROM adults WHERE id > $2`, sql)
	require.Len(t, params, 2)
}

func TestRecursiveCte(t *testing.T) {
	cte := NewRecursiveCte("tree").
		Columns("id", "parent_id").
		AsSelect("SELECT id, parent_id FROM node WHERE id = ?", core.Int(1)).
		UnionAll("SELECT n.id, n.parent_id FROM node n JOIN tree t ON n.parent_id = t.id")

	sql, params, err := NewWithQuery().
		With(cte).
		Select("SELECT id FROM tree WHERE id != ?", core.Int(1)).
		Build(sqlgen.Sqlite)
	require.NoError(t, err)
	assert.Contains(t, sql, "WITH RECURSIVE ")
	assert.Contains(t, sql, " UNION ALL ")
	assert.Contains(t, sql, "WHERE id = ?1")
	assert.Contains(t, sql, "WHERE id != ?2")
	assert.Len(t, params, 2)
}

func TestRenumberSkipsStringLiterals(t *testing.T) {
	sql, params, err := NewWithQuery().
		Select("SELECT * FROM hero WHERE name = '?' AND age = ?", core.Int(30)).
		Build(sqlgen.Postgres)
	require.NoError(t, err)
	assert.Equal(t, `SELECT * FROM hero WHERE name = '?' AND age = $1`, sql)
	assert.Len(t, params, 1)
}

func TestWithQueryRequiresMain(t *testing.T) {
	_, _, err := NewWithQuery().With(NewCte("x").AsSelect("SELECT 1")).Build(sqlgen.Postgres)
	require.Error(t, err)
	assert.Equal(t, core.KindQuerySyntax, core.KindOf(err))
}
