// Package schema models table definitions, generates DDL per dialect and
// diffs definitions into ordered migration operations. SQLite operations
// that its ALTER TABLE cannot express are emitted through a
// recreate-and-copy protocol.
package schema

import (
	"github.com/sqlmodel/sqlmodel-go/core"
)

// ColumnDef is one column of a table definition.
type ColumnDef struct {
	Name string
	// TypeText is the raw SQL type spelling; empty falls back to
	// Type.SQL().
	TypeText      string
	Type          core.SqlType
	Nullable      bool
	Default       string
	PrimaryKey    bool
	AutoIncrement bool
}

// SQLType returns the SQL type spelling for this column.
func (c ColumnDef) SQLType() string {
	if c.TypeText != "" {
		return c.TypeText
	}
	return c.Type.SQL()
}

// ForeignKey is a named foreign key constraint.
type ForeignKey struct {
	Name       string
	Columns    []string
	RefTable   string
	RefColumns []string
	OnDelete   core.ReferentialAction
	OnUpdate   core.ReferentialAction
}

// Unique is a named unique constraint.
type Unique struct {
	Name    string
	Columns []string
}

// Index is a secondary index.
type Index struct {
	Name    string
	Columns []string
	Unique  bool
}

// TableInfo is a full table definition.
type TableInfo struct {
	Name        string
	Columns     []ColumnDef
	PrimaryKey  []string
	ForeignKeys []ForeignKey
	Uniques     []Unique
	Indexes     []Index
}

// Column returns the named column definition.
func (t *TableInfo) Column(name string) (ColumnDef, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return ColumnDef{}, false
}

// FromModel derives a table definition from model metadata.
func FromModel(m core.Model) *TableInfo {
	t := &TableInfo{Name: m.TableName(), PrimaryKey: m.PrimaryKey()}
	for _, f := range m.Fields() {
		if !f.Storable() {
			continue
		}
		col := ColumnDef{
			Name:          f.ColumnName,
			TypeText:      f.SQLTypeText(),
			Type:          f.Type,
			Nullable:      f.Nullable,
			Default:       f.DefaultSQL,
			PrimaryKey:    f.PrimaryKey,
			AutoIncrement: f.AutoIncrement,
		}
		t.Columns = append(t.Columns, col)
		if f.ForeignKey != "" {
			refTable, refCol := splitRef(f.ForeignKey)
			t.ForeignKeys = append(t.ForeignKeys, ForeignKey{
				Name:       "fk_" + m.TableName() + "_" + f.ColumnName,
				Columns:    []string{f.ColumnName},
				RefTable:   refTable,
				RefColumns: []string{refCol},
				OnDelete:   f.OnDelete,
				OnUpdate:   f.OnUpdate,
			})
		}
		if f.Unique && !f.PrimaryKey {
			t.Uniques = append(t.Uniques, Unique{
				Name:    "uq_" + m.TableName() + "_" + f.ColumnName,
				Columns: []string{f.ColumnName},
			})
		}
		if f.Index != "" {
			t.Indexes = append(t.Indexes, Index{
				Name:    f.Index,
				Columns: []string{f.ColumnName},
			})
		}
	}
	return t
}

// splitRef splits a "table.column" foreign key target; a bare table name
// references "id".
func splitRef(ref string) (string, string) {
	for i := 0; i < len(ref); i++ {
		if ref[i] == '.' {
			return ref[:i], ref[i+1:]
		}
	}
	return ref, "id"
}

// OpKind enumerates migration operations.
type OpKind int

const (
	OpCreateTable OpKind = iota
	OpDropTable
	OpRenameTable
	OpAddColumn
	OpDropColumn
	OpRenameColumn
	OpAlterColumnType
	OpAlterColumnNullable
	OpAlterColumnDefault
	OpAddPrimaryKey
	OpDropPrimaryKey
	OpAddForeignKey
	OpDropForeignKey
	OpAddUnique
	OpDropUnique
	OpCreateIndex
	OpDropIndex
)

// String implements fmt.Stringer.
func (k OpKind) String() string {
	names := [...]string{
		"create_table", "drop_table", "rename_table",
		"add_column", "drop_column", "rename_column",
		"alter_column_type", "alter_column_nullable", "alter_column_default",
		"add_primary_key", "drop_primary_key",
		"add_foreign_key", "drop_foreign_key",
		"add_unique", "drop_unique",
		"create_index", "drop_index",
	}
	if int(k) < len(names) {
		return names[k]
	}
	return "unknown"
}

// Operation is one migration step. Only the fields the kind needs are set;
// Table names the affected table throughout.
type Operation struct {
	Kind    OpKind
	Table   string
	NewName string

	Column     *ColumnDef
	ColumnName string
	Nullable   bool
	Default    string

	PrimaryKey []string
	ForeignKey *ForeignKey
	Unique     *Unique
	Index      *Index

	// TableDef carries the full definition for CREATE TABLE and for the
	// SQLite recreate protocol, which needs the complete current table.
	TableDef *TableInfo
}

// Emitter renders operations as dialect-specific statements. One operation
// can expand to several statements.
type Emitter interface {
	Emit(op Operation) []string
}

// EmitterFor returns the DDL emitter for a dialect.
func EmitterFor(d core.Dialect) Emitter {
	switch d {
	case core.Mysql:
		return &mysqlEmitter{}
	case core.Sqlite:
		return &sqliteEmitter{}
	default:
		return &postgresEmitter{}
	}
}

// EmitAll renders a full operation list.
func EmitAll(d core.Dialect, ops []Operation) []string {
	e := EmitterFor(d)
	var out []string
	for _, op := range ops {
		out = append(out, e.Emit(op)...)
	}
	return out
}
