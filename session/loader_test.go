package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sqlmodel/sqlmodel-go/core"
)

func powerRows(heroIDs ...int64) []core.Row {
	cols := core.NewColumns([]core.ColumnInfo{{Name: "id"}, {Name: "hero_id"}, {Name: "name"}})
	rows := make([]core.Row, len(heroIDs))
	for i, id := range heroIDs {
		rows[i] = core.NewRow(cols, []core.Value{
			core.BigInt(int64(i + 1)), core.BigInt(id), core.Text("power"),
		})
	}
	return rows
}

func persistedHero(id int64, name string) *core.DynamicModel {
	h := newHero(name)
	h.Set("id", core.BigInt(id))
	h.MarkPersisted()
	return h
}

func TestLoadManyBatchesOneQuery(t *testing.T) {
	conn := newFakeConn()
	conn.queryRows = powerRows(1, 1, 2)
	s := New(conn)

	a := persistedHero(1, "Deadpond")
	b := persistedHero(2, "Spider-Boy")
	require.NoError(t, s.LoadMany(context.Background(), []Entity{a, b}, "powers"))

	require.Len(t, conn.queries, 1)
	assert.Equal(t, `SELECT * FROM "power" WHERE "hero_id" IN ($1, $2)`, conn.queries[0].SQL)
	assert.Equal(t, []core.Value{core.BigInt(1), core.BigInt(2)}, conn.queries[0].Params)

	rowsA, ok := a.RelatedRows("powers")
	require.True(t, ok)
	assert.Len(t, rowsA, 2)
	rowsB, ok := b.RelatedRows("powers")
	require.True(t, ok)
	assert.Len(t, rowsB, 1)
}

func TestLoadManyDeduplicatesKeys(t *testing.T) {
	conn := newFakeConn()
	conn.queryRows = powerRows(1)
	s := New(conn)

	a := persistedHero(1, "Deadpond")
	b := persistedHero(1, "Deadpond")
	require.NoError(t, s.LoadMany(context.Background(), []Entity{a, b}, "powers"))

	require.Len(t, conn.queries, 1)
	assert.Equal(t, []core.Value{core.BigInt(1)}, conn.queries[0].Params)
}

func TestLoadManySkipsNullKeys(t *testing.T) {
	conn := newFakeConn()
	s := New(conn)

	a := newHero("Deadpond") // no id yet
	require.NoError(t, s.LoadMany(context.Background(), []Entity{a}, "powers"))

	assert.Empty(t, conn.queries, "no keys means no query")
	rows, ok := a.RelatedRows("powers")
	require.True(t, ok)
	assert.Empty(t, rows)
}

func TestLoadManyUnknownRelationship(t *testing.T) {
	s := New(newFakeConn())
	err := s.LoadMany(context.Background(), []Entity{persistedHero(1, "x")}, "nemeses")
	require.Error(t, err)
	assert.Equal(t, core.KindQuerySyntax, core.KindOf(err))

	var e *core.Error
	require.ErrorAs(t, err, &e)
	assert.Contains(t, e.Message, "no relationship")
}

func TestLoadManyEmptyParents(t *testing.T) {
	s := New(newFakeConn())
	require.NoError(t, s.LoadMany(context.Background(), nil, "powers"))
}

func TestLoadOneCountsTowardTracker(t *testing.T) {
	conn := newFakeConn()
	conn.queryRows = powerRows(1, 1)
	s := New(conn, WithN1Tracking())

	rows, err := s.LoadOne(context.Background(), persistedHero(1, "Deadpond"), "powers")
	require.NoError(t, err)
	assert.Len(t, rows, 2)
	assert.Equal(t, 1, s.Tracker().Count("hero", "powers"))
}
