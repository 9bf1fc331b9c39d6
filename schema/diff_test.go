package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sqlmodel/sqlmodel-go/core"
)

func TestDiffTableAddAlterDropOrder(t *testing.T) {
	old := &TableInfo{
		Name: "hero",
		Columns: []ColumnDef{
			{Name: "id", Type: core.BigIntTy, PrimaryKey: true},
			{Name: "name", Type: core.TextTy},
			{Name: "obsolete", Type: core.Integer, Nullable: true},
		},
		PrimaryKey: []string{"id"},
	}
	new := &TableInfo{
		Name: "hero",
		Columns: []ColumnDef{
			{Name: "id", Type: core.BigIntTy, PrimaryKey: true},
			{Name: "name", Type: core.TextTy, Nullable: true},
			{Name: "power", Type: core.Integer, Nullable: true},
		},
		PrimaryKey: []string{"id"},
	}

	ops := DiffTable(old, new)
	require.Len(t, ops, 3)
	assert.Equal(t, OpAddColumn, ops[0].Kind)
	assert.Equal(t, "power", ops[0].Column.Name)
	assert.Equal(t, OpAlterColumnNullable, ops[1].Kind)
	assert.Equal(t, "name", ops[1].ColumnName)
	assert.True(t, ops[1].Nullable)
	// drops come last so data-preserving steps run first
	assert.Equal(t, OpDropColumn, ops[2].Kind)
	assert.Equal(t, "obsolete", ops[2].ColumnName)
}

func TestDiffTableTypeChangeCarriesOldDef(t *testing.T) {
	old := &TableInfo{Name: "a", Columns: []ColumnDef{{Name: "x", Type: core.Integer}}}
	new := &TableInfo{Name: "a", Columns: []ColumnDef{{Name: "x", Type: core.TextTy}}}

	ops := DiffTable(old, new)
	require.Len(t, ops, 1)
	assert.Equal(t, OpAlterColumnType, ops[0].Kind)
	assert.Same(t, old, ops[0].TableDef, "sqlite recreation needs the current definition")
}

func TestDiffTableCaseInsensitiveTypeCompare(t *testing.T) {
	old := &TableInfo{Name: "a", Columns: []ColumnDef{{Name: "x", TypeText: "bigint"}}}
	new := &TableInfo{Name: "a", Columns: []ColumnDef{{Name: "x", TypeText: "BIGINT"}}}
	assert.Empty(t, DiffTable(old, new))
}

func TestDiffTablePrimaryKeyChange(t *testing.T) {
	old := &TableInfo{Name: "a", PrimaryKey: []string{"id"},
		Columns: []ColumnDef{{Name: "id", Type: core.BigIntTy}, {Name: "code", Type: core.TextTy}}}
	new := &TableInfo{Name: "a", PrimaryKey: []string{"code"},
		Columns: []ColumnDef{{Name: "id", Type: core.BigIntTy}, {Name: "code", Type: core.TextTy}}}

	ops := DiffTable(old, new)
	require.Len(t, ops, 2)
	assert.Equal(t, OpDropPrimaryKey, ops[0].Kind)
	assert.Equal(t, OpAddPrimaryKey, ops[1].Kind)
	assert.Equal(t, []string{"code"}, ops[1].PrimaryKey)
}

func TestDiffTableConstraints(t *testing.T) {
	old := &TableInfo{Name: "a",
		Columns:     []ColumnDef{{Name: "x", Type: core.Integer}},
		ForeignKeys: []ForeignKey{{Name: "fk_old"}},
		Uniques:     []Unique{{Name: "uq_old"}},
		Indexes:     []Index{{Name: "ix_old"}},
	}
	new := &TableInfo{Name: "a",
		Columns:     []ColumnDef{{Name: "x", Type: core.Integer}},
		ForeignKeys: []ForeignKey{{Name: "fk_new"}},
		Uniques:     []Unique{{Name: "uq_new"}},
		Indexes:     []Index{{Name: "ix_new"}},
	}

	ops := DiffTable(old, new)
	kinds := make([]OpKind, len(ops))
	for i, op := range ops {
		kinds[i] = op.Kind
	}
	assert.Equal(t, []OpKind{
		OpAddForeignKey, OpDropForeignKey,
		OpAddUnique, OpDropUnique,
		OpCreateIndex, OpDropIndex,
	}, kinds)
}

func TestDiffCreatesParentsFirst(t *testing.T) {
	team := &TableInfo{Name: "team",
		Columns:    []ColumnDef{{Name: "id", Type: core.BigIntTy, PrimaryKey: true}},
		PrimaryKey: []string{"id"},
	}
	hero := &TableInfo{Name: "hero",
		Columns: []ColumnDef{
			{Name: "id", Type: core.BigIntTy, PrimaryKey: true},
			{Name: "team_id", Type: core.BigIntTy, Nullable: true},
		},
		PrimaryKey: []string{"id"},
		ForeignKeys: []ForeignKey{{
			Name: "fk_hero_team_id", Columns: []string{"team_id"},
			RefTable: "team", RefColumns: []string{"id"},
		}},
	}

	// declaration order lists the child first; creation must not
	ops := Diff(nil, []*TableInfo{hero, team})
	require.Len(t, ops, 2)
	assert.Equal(t, OpCreateTable, ops[0].Kind)
	assert.Equal(t, "team", ops[0].Table)
	assert.Equal(t, "hero", ops[1].Table)

	// drops reverse the order: dependents before their targets
	ops = Diff([]*TableInfo{hero, team}, nil)
	require.Len(t, ops, 2)
	assert.Equal(t, OpDropTable, ops[0].Kind)
	assert.Equal(t, "hero", ops[0].Table)
	assert.Equal(t, "team", ops[1].Table)
}

func TestDiffMixedChanges(t *testing.T) {
	old := []*TableInfo{
		{Name: "keep", Columns: []ColumnDef{{Name: "id", Type: core.BigIntTy}}},
		{Name: "gone", Columns: []ColumnDef{{Name: "id", Type: core.BigIntTy}}},
	}
	new := []*TableInfo{
		{Name: "keep", Columns: []ColumnDef{
			{Name: "id", Type: core.BigIntTy},
			{Name: "extra", Type: core.TextTy, Nullable: true},
		}},
		{Name: "fresh", Columns: []ColumnDef{{Name: "id", Type: core.BigIntTy}}},
	}

	ops := Diff(old, new)
	require.Len(t, ops, 3)
	assert.Equal(t, OpCreateTable, ops[0].Kind)
	assert.Equal(t, "fresh", ops[0].Table)
	assert.Equal(t, OpAddColumn, ops[1].Kind)
	assert.Equal(t, "keep", ops[1].Table)
	assert.Equal(t, OpDropTable, ops[2].Kind)
	assert.Equal(t, "gone", ops[2].Table)
}
