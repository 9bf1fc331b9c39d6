package schema

import (
	"fmt"
	"strings"

	"github.com/sqlmodel/sqlmodel-go/core"
)

// sqliteEmitter renders DDL for SQLite. Operations ALTER TABLE cannot
// express are rewritten as a recreate-and-copy sequence inside a
// transaction with foreign keys disabled.
type sqliteEmitter struct{}

func sqIdent(name string) string {
	return core.QuoteIdent(name)
}

func sqIdentList(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = sqIdent(n)
	}
	return strings.Join(quoted, ", ")
}

func (e *sqliteEmitter) columnDef(c ColumnDef, inlinePK bool) string {
	var sb strings.Builder
	sb.WriteString(sqIdent(c.Name))
	sb.WriteByte(' ')
	if c.AutoIncrement {
		sb.WriteString("INTEGER")
	} else {
		sb.WriteString(c.SQLType())
	}
	if inlinePK && c.PrimaryKey {
		sb.WriteString(" PRIMARY KEY")
		if c.AutoIncrement {
			sb.WriteString(" AUTOINCREMENT")
		}
	}
	if !c.Nullable && !c.PrimaryKey {
		sb.WriteString(" NOT NULL")
	}
	if c.Default != "" {
		sb.WriteString(" DEFAULT ")
		sb.WriteString(c.Default)
	}
	return sb.String()
}

// createTable renders the definition. Unique constraints are emitted as
// separate CREATE UNIQUE INDEX statements rather than table-level UNIQUE,
// so a later drop does not force another recreation.
func (e *sqliteEmitter) createTable(t *TableInfo) []string {
	// a single auto-increment pk must be declared inline
	inlinePK := len(t.PrimaryKey) == 1
	var parts []string
	for _, c := range t.Columns {
		parts = append(parts, e.columnDef(c, inlinePK))
	}
	if !inlinePK && len(t.PrimaryKey) > 0 {
		parts = append(parts, fmt.Sprintf("PRIMARY KEY (%s)", sqIdentList(t.PrimaryKey)))
	}
	for _, fk := range t.ForeignKeys {
		clause := fmt.Sprintf("FOREIGN KEY (%s) REFERENCES %s (%s)",
			sqIdentList(fk.Columns), sqIdent(fk.RefTable), sqIdentList(fk.RefColumns))
		if fk.OnDelete != core.NoAction {
			clause += " ON DELETE " + fk.OnDelete.SQL()
		}
		if fk.OnUpdate != core.NoAction {
			clause += " ON UPDATE " + fk.OnUpdate.SQL()
		}
		parts = append(parts, clause)
	}
	stmts := []string{fmt.Sprintf("CREATE TABLE %s (\n    %s\n)",
		sqIdent(t.Name), strings.Join(parts, ",\n    "))}
	for _, u := range t.Uniques {
		stmts = append(stmts, fmt.Sprintf("CREATE UNIQUE INDEX %s ON %s (%s)",
			sqIdent(u.Name), sqIdent(t.Name), sqIdentList(u.Columns)))
	}
	for _, ix := range t.Indexes {
		stmts = append(stmts, e.createIndex(t.Name, ix))
	}
	return stmts
}

func (e *sqliteEmitter) createIndex(table string, ix Index) string {
	unique := ""
	if ix.Unique {
		unique = "UNIQUE "
	}
	return fmt.Sprintf("CREATE %sINDEX %s ON %s (%s)",
		unique, sqIdent(ix.Name), sqIdent(table), sqIdentList(ix.Columns))
}

// errorSentinel fails loudly at execution time when the emitter is called
// without the context it needs.
func errorSentinel(msg string) []string {
	return []string{fmt.Sprintf("SELECT __sqlmodel_error__('%s')", strings.ReplaceAll(msg, "'", "''"))}
}

// opSuffix names the recreate temp table per operation.
func opSuffix(op Operation) string {
	switch op.Kind {
	case OpDropColumn:
		return "drop_" + op.ColumnName
	case OpAlterColumnType:
		return "type_" + op.Column.Name
	case OpAlterColumnNullable:
		return "null_" + op.ColumnName
	case OpAlterColumnDefault:
		return "default_" + op.ColumnName
	case OpAddPrimaryKey:
		return "add_pk"
	case OpDropPrimaryKey:
		return "drop_pk"
	case OpAddForeignKey:
		return "add_fk_" + op.ForeignKey.Name
	case OpDropForeignKey:
		return "drop_fk_" + op.ForeignKey.Name
	case OpDropUnique:
		return "drop_unique_" + op.Unique.Name
	default:
		return op.Kind.String()
	}
}

// apply transforms the current definition per the operation.
func (e *sqliteEmitter) apply(cur *TableInfo, op Operation) *TableInfo {
	next := &TableInfo{Name: cur.Name, PrimaryKey: append([]string(nil), cur.PrimaryKey...)}
	for _, c := range cur.Columns {
		next.Columns = append(next.Columns, c)
	}
	next.ForeignKeys = append(next.ForeignKeys, cur.ForeignKeys...)
	next.Uniques = append(next.Uniques, cur.Uniques...)
	next.Indexes = append(next.Indexes, cur.Indexes...)

	switch op.Kind {
	case OpDropColumn:
		cols := next.Columns[:0]
		for _, c := range next.Columns {
			if c.Name != op.ColumnName {
				cols = append(cols, c)
			}
		}
		next.Columns = cols
	case OpAlterColumnType:
		for i, c := range next.Columns {
			if c.Name == op.Column.Name {
				next.Columns[i].Type = op.Column.Type
				next.Columns[i].TypeText = op.Column.TypeText
			}
		}
	case OpAlterColumnNullable:
		for i, c := range next.Columns {
			if c.Name == op.ColumnName {
				next.Columns[i].Nullable = op.Nullable
			}
		}
	case OpAlterColumnDefault:
		for i, c := range next.Columns {
			if c.Name == op.ColumnName {
				next.Columns[i].Default = op.Default
			}
		}
	case OpAddPrimaryKey:
		next.PrimaryKey = op.PrimaryKey
		for i, c := range next.Columns {
			c.PrimaryKey = false
			for _, pk := range op.PrimaryKey {
				if c.Name == pk {
					c.PrimaryKey = true
				}
			}
			next.Columns[i] = c
		}
	case OpDropPrimaryKey:
		next.PrimaryKey = nil
		for i := range next.Columns {
			next.Columns[i].PrimaryKey = false
			next.Columns[i].AutoIncrement = false
		}
	case OpAddForeignKey:
		next.ForeignKeys = append(next.ForeignKeys, *op.ForeignKey)
	case OpDropForeignKey:
		fks := next.ForeignKeys[:0]
		for _, fk := range next.ForeignKeys {
			if fk.Name != op.ForeignKey.Name {
				fks = append(fks, fk)
			}
		}
		next.ForeignKeys = fks
	case OpDropUnique:
		uqs := next.Uniques[:0]
		for _, u := range next.Uniques {
			if u.Name != op.Unique.Name {
				uqs = append(uqs, u)
			}
		}
		next.Uniques = uqs
	}
	return next
}

// recreate emits the full table rebuild sequence for one operation.
func (e *sqliteEmitter) recreate(op Operation) []string {
	if op.TableDef == nil {
		return errorSentinel(fmt.Sprintf(
			"operation %s on table %s requires the full table definition", op.Kind, op.Table))
	}
	cur := op.TableDef
	next := e.apply(cur, op)
	tmp := core.SanitizeIdentifier(fmt.Sprintf("__sqlmodel_old_%s_%s", op.Table, opSuffix(op)))

	stmts := []string{
		"PRAGMA foreign_keys=OFF",
		"BEGIN",
		fmt.Sprintf("ALTER TABLE %s RENAME TO %s", sqIdent(op.Table), sqIdent(tmp)),
	}

	// new definition; unique constraints become trailing index statements
	created := e.createTable(next)
	stmts = append(stmts, created[0])

	// copy data, casting the column whose type changed
	var destCols, srcExprs []string
	for _, c := range next.Columns {
		if _, existed := cur.Column(c.Name); !existed {
			continue
		}
		destCols = append(destCols, sqIdent(c.Name))
		if op.Kind == OpAlterColumnType && c.Name == op.Column.Name {
			srcExprs = append(srcExprs, fmt.Sprintf("CAST(%s AS %s)", sqIdent(c.Name), c.SQLType()))
		} else {
			srcExprs = append(srcExprs, sqIdent(c.Name))
		}
	}
	stmts = append(stmts, fmt.Sprintf("INSERT INTO %s (%s) SELECT %s FROM %s",
		sqIdent(op.Table), strings.Join(destCols, ", "),
		strings.Join(srcExprs, ", "), sqIdent(tmp)))
	stmts = append(stmts, "DROP TABLE "+sqIdent(tmp))
	// unique indexes first, then user indexes
	stmts = append(stmts, created[1:]...)
	stmts = append(stmts, "COMMIT", "PRAGMA foreign_keys=ON")
	return stmts
}

func (e *sqliteEmitter) Emit(op Operation) []string {
	table := sqIdent(op.Table)
	switch op.Kind {
	case OpCreateTable:
		return e.createTable(op.TableDef)
	case OpDropTable:
		return []string{"DROP TABLE " + table}
	case OpRenameTable:
		return []string{fmt.Sprintf("ALTER TABLE %s RENAME TO %s", table, sqIdent(op.NewName))}
	case OpAddColumn:
		return []string{fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", table, e.columnDef(*op.Column, false))}
	case OpRenameColumn:
		return []string{fmt.Sprintf("ALTER TABLE %s RENAME COLUMN %s TO %s",
			table, sqIdent(op.ColumnName), sqIdent(op.NewName))}
	case OpAddUnique:
		return []string{fmt.Sprintf("CREATE UNIQUE INDEX %s ON %s (%s)",
			sqIdent(op.Unique.Name), table, sqIdentList(op.Unique.Columns))}
	case OpDropUnique:
		// uniques backed by a real index drop cheaply; table-level
		// (autoindex) uniques need recreation
		if !strings.HasPrefix(op.Unique.Name, "sqlite_autoindex") {
			return []string{"DROP INDEX " + sqIdent(op.Unique.Name)}
		}
		return e.recreate(op)
	case OpCreateIndex:
		return []string{e.createIndex(op.Table, *op.Index)}
	case OpDropIndex:
		return []string{"DROP INDEX " + sqIdent(op.Index.Name)}
	case OpDropColumn, OpAlterColumnType, OpAlterColumnNullable, OpAlterColumnDefault,
		OpAddPrimaryKey, OpDropPrimaryKey, OpAddForeignKey, OpDropForeignKey:
		return e.recreate(op)
	default:
		return nil
	}
}
