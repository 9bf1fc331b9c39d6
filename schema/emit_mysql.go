package schema

import (
	"fmt"
	"strings"

	"github.com/sqlmodel/sqlmodel-go/core"
)

// mysqlEmitter renders DDL for MySQL.
type mysqlEmitter struct{}

func myIdent(name string) string {
	return core.QuoteIdentMySQL(name)
}

func myIdentList(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = myIdent(n)
	}
	return strings.Join(quoted, ", ")
}

func (e *mysqlEmitter) columnDef(c ColumnDef) string {
	var sb strings.Builder
	sb.WriteString(myIdent(c.Name))
	sb.WriteByte(' ')
	sb.WriteString(c.SQLType())
	if !c.Nullable && !c.PrimaryKey {
		sb.WriteString(" NOT NULL")
	}
	if c.AutoIncrement {
		sb.WriteString(" AUTO_INCREMENT")
	}
	if c.Default != "" {
		sb.WriteString(" DEFAULT ")
		sb.WriteString(c.Default)
	}
	return sb.String()
}

func (e *mysqlEmitter) foreignKeyClause(fk ForeignKey) string {
	clause := fmt.Sprintf("CONSTRAINT %s FOREIGN KEY (%s) REFERENCES %s (%s)",
		myIdent(fk.Name), myIdentList(fk.Columns), myIdent(fk.RefTable), myIdentList(fk.RefColumns))
	if fk.OnDelete != core.NoAction {
		clause += " ON DELETE " + fk.OnDelete.SQL()
	}
	if fk.OnUpdate != core.NoAction {
		clause += " ON UPDATE " + fk.OnUpdate.SQL()
	}
	return clause
}

func (e *mysqlEmitter) createTable(t *TableInfo) []string {
	var parts []string
	for _, c := range t.Columns {
		parts = append(parts, e.columnDef(c))
	}
	if len(t.PrimaryKey) > 0 {
		parts = append(parts, fmt.Sprintf("PRIMARY KEY (%s)", myIdentList(t.PrimaryKey)))
	}
	for _, u := range t.Uniques {
		parts = append(parts, fmt.Sprintf("CONSTRAINT %s UNIQUE (%s)", myIdent(u.Name), myIdentList(u.Columns)))
	}
	for _, fk := range t.ForeignKeys {
		parts = append(parts, e.foreignKeyClause(fk))
	}
	stmts := []string{fmt.Sprintf("CREATE TABLE %s (\n    %s\n)",
		myIdent(t.Name), strings.Join(parts, ",\n    "))}
	for _, ix := range t.Indexes {
		stmts = append(stmts, e.createIndex(t.Name, ix))
	}
	return stmts
}

func (e *mysqlEmitter) createIndex(table string, ix Index) string {
	unique := ""
	if ix.Unique {
		unique = "UNIQUE "
	}
	return fmt.Sprintf("CREATE %sINDEX %s ON %s (%s)",
		unique, myIdent(ix.Name), myIdent(table), myIdentList(ix.Columns))
}

func (e *mysqlEmitter) Emit(op Operation) []string {
	table := myIdent(op.Table)
	switch op.Kind {
	case OpCreateTable:
		return e.createTable(op.TableDef)
	case OpDropTable:
		return []string{"DROP TABLE " + table}
	case OpRenameTable:
		return []string{fmt.Sprintf("RENAME TABLE %s TO %s", table, myIdent(op.NewName))}
	case OpAddColumn:
		return []string{fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", table, e.columnDef(*op.Column))}
	case OpDropColumn:
		return []string{fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s", table, myIdent(op.ColumnName))}
	case OpRenameColumn:
		return []string{fmt.Sprintf("ALTER TABLE %s RENAME COLUMN %s TO %s",
			table, myIdent(op.ColumnName), myIdent(op.NewName))}
	case OpAlterColumnType, OpAlterColumnNullable, OpAlterColumnDefault:
		// MySQL folds all column alterations into MODIFY COLUMN with the
		// full new definition.
		return []string{fmt.Sprintf("ALTER TABLE %s MODIFY COLUMN %s", table, e.columnDef(*op.Column))}
	case OpAddPrimaryKey:
		return []string{fmt.Sprintf("ALTER TABLE %s ADD PRIMARY KEY (%s)", table, myIdentList(op.PrimaryKey))}
	case OpDropPrimaryKey:
		return []string{fmt.Sprintf("ALTER TABLE %s DROP PRIMARY KEY", table)}
	case OpAddForeignKey:
		return []string{fmt.Sprintf("ALTER TABLE %s ADD %s", table, e.foreignKeyClause(*op.ForeignKey))}
	case OpDropForeignKey:
		return []string{fmt.Sprintf("ALTER TABLE %s DROP FOREIGN KEY %s", table, myIdent(op.ForeignKey.Name))}
	case OpAddUnique:
		return []string{fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s UNIQUE (%s)",
			table, myIdent(op.Unique.Name), myIdentList(op.Unique.Columns))}
	case OpDropUnique:
		return []string{fmt.Sprintf("ALTER TABLE %s DROP INDEX %s", table, myIdent(op.Unique.Name))}
	case OpCreateIndex:
		return []string{e.createIndex(op.Table, *op.Index)}
	case OpDropIndex:
		return []string{fmt.Sprintf("DROP INDEX %s ON %s", myIdent(op.Index.Name), table)}
	default:
		return nil
	}
}
