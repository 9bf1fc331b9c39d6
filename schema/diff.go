package schema

import (
	"strings"
)

// DiffTable computes the operations that migrate a table from old to new.
// Within the table: additions and alterations first, column drops last.
func DiffTable(old, new *TableInfo) []Operation {
	var adds, alters, drops []Operation

	for _, c := range new.Columns {
		prev, ok := old.Column(c.Name)
		if !ok {
			col := c
			adds = append(adds, Operation{Kind: OpAddColumn, Table: new.Name, Column: &col})
			continue
		}
		if !strings.EqualFold(prev.SQLType(), c.SQLType()) {
			col := c
			alters = append(alters, Operation{
				Kind: OpAlterColumnType, Table: new.Name, Column: &col, TableDef: old,
			})
		}
		if prev.Nullable != c.Nullable {
			alters = append(alters, Operation{
				Kind: OpAlterColumnNullable, Table: new.Name, Column: &c,
				ColumnName: c.Name, Nullable: c.Nullable, TableDef: old,
			})
		}
		if prev.Default != c.Default {
			alters = append(alters, Operation{
				Kind: OpAlterColumnDefault, Table: new.Name, Column: &c,
				ColumnName: c.Name, Default: c.Default, TableDef: old,
			})
		}
	}
	for _, c := range old.Columns {
		if _, ok := new.Column(c.Name); !ok {
			drops = append(drops, Operation{
				Kind: OpDropColumn, Table: new.Name, ColumnName: c.Name, TableDef: old,
			})
		}
	}

	if !sameStrings(old.PrimaryKey, new.PrimaryKey) {
		if len(old.PrimaryKey) > 0 {
			alters = append(alters, Operation{Kind: OpDropPrimaryKey, Table: new.Name, TableDef: old})
		}
		if len(new.PrimaryKey) > 0 {
			alters = append(alters, Operation{
				Kind: OpAddPrimaryKey, Table: new.Name, PrimaryKey: new.PrimaryKey, TableDef: old,
			})
		}
	}

	for _, fk := range new.ForeignKeys {
		if !hasForeignKey(old.ForeignKeys, fk.Name) {
			f := fk
			alters = append(alters, Operation{Kind: OpAddForeignKey, Table: new.Name, ForeignKey: &f, TableDef: old})
		}
	}
	for _, fk := range old.ForeignKeys {
		if !hasForeignKey(new.ForeignKeys, fk.Name) {
			f := fk
			alters = append(alters, Operation{Kind: OpDropForeignKey, Table: new.Name, ForeignKey: &f, TableDef: old})
		}
	}

	for _, u := range new.Uniques {
		if !hasUnique(old.Uniques, u.Name) {
			uq := u
			alters = append(alters, Operation{Kind: OpAddUnique, Table: new.Name, Unique: &uq, TableDef: old})
		}
	}
	for _, u := range old.Uniques {
		if !hasUnique(new.Uniques, u.Name) {
			uq := u
			alters = append(alters, Operation{Kind: OpDropUnique, Table: new.Name, Unique: &uq, TableDef: old})
		}
	}

	for _, ix := range new.Indexes {
		if !hasIndex(old.Indexes, ix.Name) {
			i := ix
			alters = append(alters, Operation{Kind: OpCreateIndex, Table: new.Name, Index: &i})
		}
	}
	for _, ix := range old.Indexes {
		if !hasIndex(new.Indexes, ix.Name) {
			i := ix
			alters = append(alters, Operation{Kind: OpDropIndex, Table: new.Name, Index: &i})
		}
	}

	ops := append(adds, alters...)
	return append(ops, drops...)
}

// Diff computes the operations that migrate a whole schema. Creations are
// ordered parents before children along foreign keys; drops the other way
// around, dependents first.
func Diff(old, new []*TableInfo) []Operation {
	oldByName := map[string]*TableInfo{}
	for _, t := range old {
		oldByName[t.Name] = t
	}
	newByName := map[string]*TableInfo{}
	for _, t := range new {
		newByName[t.Name] = t
	}

	var ops []Operation
	var created []*TableInfo
	for _, t := range new {
		if _, ok := oldByName[t.Name]; !ok {
			created = append(created, t)
		}
	}
	for _, t := range sortParentsFirst(created) {
		ops = append(ops, Operation{Kind: OpCreateTable, Table: t.Name, TableDef: t})
	}

	for _, t := range new {
		if prev, ok := oldByName[t.Name]; ok {
			ops = append(ops, DiffTable(prev, t)...)
		}
	}

	var dropped []*TableInfo
	for _, t := range old {
		if _, ok := newByName[t.Name]; !ok {
			dropped = append(dropped, t)
		}
	}
	// dependents drop before the tables they reference
	sorted := sortParentsFirst(dropped)
	for i := len(sorted) - 1; i >= 0; i-- {
		ops = append(ops, Operation{Kind: OpDropTable, Table: sorted[i].Name})
	}
	return ops
}

// sortParentsFirst topologically orders tables so that foreign key targets
// precede the tables referencing them. Cycles fall back to input order.
func sortParentsFirst(tables []*TableInfo) []*TableInfo {
	index := map[string]*TableInfo{}
	for _, t := range tables {
		index[t.Name] = t
	}
	var out []*TableInfo
	state := map[string]int{} // 0 unvisited, 1 visiting, 2 done
	var visit func(t *TableInfo)
	visit = func(t *TableInfo) {
		switch state[t.Name] {
		case 1, 2:
			return
		}
		state[t.Name] = 1
		for _, fk := range t.ForeignKeys {
			if parent, ok := index[fk.RefTable]; ok && parent.Name != t.Name {
				visit(parent)
			}
		}
		state[t.Name] = 2
		out = append(out, t)
	}
	for _, t := range tables {
		visit(t)
	}
	return out
}

func sameStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func hasForeignKey(fks []ForeignKey, name string) bool {
	for _, fk := range fks {
		if fk.Name == name {
			return true
		}
	}
	return false
}

func hasUnique(uqs []Unique, name string) bool {
	for _, u := range uqs {
		if u.Name == name {
			return true
		}
	}
	return false
}

func hasIndex(ixs []Index, name string) bool {
	for _, ix := range ixs {
		if ix.Name == name {
			return true
		}
	}
	return false
}
