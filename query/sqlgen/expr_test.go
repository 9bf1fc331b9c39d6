package sqlgen

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sqlmodel/sqlmodel-go/core"
)

func build(t *testing.T, d core.Dialect, e Expr) (string, []core.Value) {
	t.Helper()
	idx := 1
	sql, params := e.Build(d, &idx)
	assert.Equal(t, len(params), CountPlaceholders(d, sql),
		"placeholder count must match parameter count: %s", sql)
	return sql, params
}

func TestColumnRendering(t *testing.T) {
	sql, params := build(t, Postgres, Col("name"))
	assert.Equal(t, `"name"`, sql)
	assert.Empty(t, params)

	sql, _ = build(t, Mysql, Qualified("hero", "name"))
	assert.Equal(t, "`hero`.`name`", sql)
}

func TestComparisonPlaceholders(t *testing.T) {
	e := Col("age").Ge(core.Int(18))

	sql, params := build(t, Postgres, e)
	assert.Equal(t, `("age" >= $1)`, sql)
	require.Len(t, params, 1)
	assert.Equal(t, "18", params[0].Text())

	sql, _ = build(t, Sqlite, e)
	assert.Equal(t, `("age" >= ?1)`, sql)

	sql, _ = build(t, Mysql, e)
	assert.Equal(t, "(`age` >= ?)", sql)
}

func TestPlaceholderNumberingThreadsAcrossExpressions(t *testing.T) {
	idx := 1
	first, p1 := Col("a").Eq(core.Int(1)).Build(Postgres, &idx)
	second, p2 := Col("b").Eq(core.Int(2)).Build(Postgres, &idx)

	assert.Equal(t, `("a" = $1)`, first)
	assert.Equal(t, `("b" = $2)`, second)
	assert.Len(t, p1, 1)
	assert.Len(t, p2, 1)
	assert.Equal(t, 3, idx)
}

func TestBooleanComposition(t *testing.T) {
	e := Col("age").Gt(core.Int(18)).And(Col("name").Like("Spider%")).Or(Col("id").Eq(core.Int(7)))

	sql, params := build(t, Postgres, e)
	assert.Equal(t, `((("age" > $1) AND "name" LIKE $2) OR ("id" = $3))`, sql)
	require.Len(t, params, 3)
	assert.Equal(t, "Spider%", params[1].Text())
}

func TestNot(t *testing.T) {
	sql, _ := build(t, Postgres, Col("active").Eq(core.Bool(true)).Not())
	assert.Equal(t, `NOT (("active" = $1))`, sql)
}

func TestIn(t *testing.T) {
	e := Col("id").In(core.Int(1), core.Int(2), core.Int(3))

	sql, params := build(t, Postgres, e)
	assert.Equal(t, `"id" IN ($1, $2, $3)`, sql)
	assert.Len(t, params, 3)

	sql, _ = build(t, Mysql, e)
	assert.Equal(t, "`id` IN (?, ?, ?)", sql)
}

func TestBetween(t *testing.T) {
	sql, params := build(t, Sqlite, Col("age").Between(core.Int(18), core.Int(65)))
	assert.Equal(t, `"age" BETWEEN ?1 AND ?2`, sql)
	assert.Len(t, params, 2)
}

func TestNullChecks(t *testing.T) {
	sql, params := build(t, Postgres, Col("age").IsNull())
	assert.Equal(t, `"age" IS NULL`, sql)
	assert.Empty(t, params)

	sql, _ = build(t, Postgres, Col("age").IsNotNull())
	assert.Equal(t, `"age" IS NOT NULL`, sql)
}

func TestFuncAndRaw(t *testing.T) {
	sql, params := build(t, Postgres, Func("COALESCE", Col("age"), Lit(core.Int(0))))
	assert.Equal(t, `COALESCE("age", $1)`, sql)
	assert.Len(t, params, 1)

	sql, params = build(t, Postgres, Raw("COUNT(*) > 1"))
	assert.Equal(t, "COUNT(*) > 1", sql)
	assert.Empty(t, params)
}

func TestColumnName(t *testing.T) {
	_, col, ok := Col("x").ColumnName()
	require.True(t, ok)
	assert.Equal(t, "x", col)

	table, col, ok := Qualified("t", "x").ColumnName()
	require.True(t, ok)
	assert.Equal(t, "t", table)
	assert.Equal(t, "x", col)

	_, _, ok = Col("x").Eq(core.Int(1)).ColumnName()
	assert.False(t, ok)
}

func TestAndAll(t *testing.T) {
	_, ok := AndAll(nil)
	assert.False(t, ok)

	e, ok := AndAll([]Expr{Col("a").Eq(core.Int(1)), Col("b").Eq(core.Int(2))})
	require.True(t, ok)
	sql, params := build(t, Postgres, e)
	assert.Equal(t, `(("a" = $1) AND ("b" = $2))`, sql)
	assert.Len(t, params, 2)
}
