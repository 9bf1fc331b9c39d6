package schema

import (
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/sqlmodel/sqlmodel-go/core"
)

// postgresEmitter renders DDL for PostgreSQL.
type postgresEmitter struct{}

func pgIdent(name string) string {
	return pq.QuoteIdentifier(name)
}

func pgIdentList(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = pgIdent(n)
	}
	return strings.Join(quoted, ", ")
}

func (e *postgresEmitter) columnDef(c ColumnDef) string {
	var sb strings.Builder
	sb.WriteString(pgIdent(c.Name))
	sb.WriteByte(' ')
	if c.AutoIncrement {
		switch strings.ToUpper(c.SQLType()) {
		case "SMALLINT":
			sb.WriteString("SMALLSERIAL")
		case "BIGINT":
			sb.WriteString("BIGSERIAL")
		default:
			sb.WriteString("SERIAL")
		}
	} else {
		sb.WriteString(c.SQLType())
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

func (e *postgresEmitter) foreignKeyClause(fk ForeignKey) string {
	clause := fmt.Sprintf("CONSTRAINT %s FOREIGN KEY (%s) REFERENCES %s (%s)",
		pgIdent(fk.Name), pgIdentList(fk.Columns), pgIdent(fk.RefTable), pgIdentList(fk.RefColumns))
	if fk.OnDelete != core.NoAction {
		clause += " ON DELETE " + fk.OnDelete.SQL()
	}
	if fk.OnUpdate != core.NoAction {
		clause += " ON UPDATE " + fk.OnUpdate.SQL()
	}
	return clause
}

func (e *postgresEmitter) createTable(t *TableInfo) []string {
	var parts []string
	for _, c := range t.Columns {
		parts = append(parts, e.columnDef(c))
	}
	if len(t.PrimaryKey) > 0 {
		parts = append(parts, fmt.Sprintf("PRIMARY KEY (%s)", pgIdentList(t.PrimaryKey)))
	}
	for _, u := range t.Uniques {
		parts = append(parts, fmt.Sprintf("CONSTRAINT %s UNIQUE (%s)", pgIdent(u.Name), pgIdentList(u.Columns)))
	}
	for _, fk := range t.ForeignKeys {
		parts = append(parts, e.foreignKeyClause(fk))
	}
	stmts := []string{fmt.Sprintf("CREATE TABLE %s (\n    %s\n)",
		pgIdent(t.Name), strings.Join(parts, ",\n    "))}
	for _, ix := range t.Indexes {
		stmts = append(stmts, e.createIndex(t.Name, ix))
	}
	return stmts
}

func (e *postgresEmitter) createIndex(table string, ix Index) string {
	unique := ""
	if ix.Unique {
		unique = "UNIQUE "
	}
	return fmt.Sprintf("CREATE %sINDEX %s ON %s (%s)",
		unique, pgIdent(ix.Name), pgIdent(table), pgIdentList(ix.Columns))
}

func (e *postgresEmitter) Emit(op Operation) []string {
	table := pgIdent(op.Table)
	switch op.Kind {
	case OpCreateTable:
		return e.createTable(op.TableDef)
	case OpDropTable:
		return []string{"DROP TABLE " + table}
	case OpRenameTable:
		return []string{fmt.Sprintf("ALTER TABLE %s RENAME TO %s", table, pgIdent(op.NewName))}
	case OpAddColumn:
		return []string{fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", table, e.columnDef(*op.Column))}
	case OpDropColumn:
		return []string{fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s", table, pgIdent(op.ColumnName))}
	case OpRenameColumn:
		return []string{fmt.Sprintf("ALTER TABLE %s RENAME COLUMN %s TO %s",
			table, pgIdent(op.ColumnName), pgIdent(op.NewName))}
	case OpAlterColumnType:
		return []string{fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s TYPE %s USING %s::%s",
			table, pgIdent(op.Column.Name), op.Column.SQLType(),
			pgIdent(op.Column.Name), op.Column.SQLType())}
	case OpAlterColumnNullable:
		verb := "SET NOT NULL"
		if op.Nullable {
			verb = "DROP NOT NULL"
		}
		return []string{fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s %s", table, pgIdent(op.ColumnName), verb)}
	case OpAlterColumnDefault:
		if op.Default == "" {
			return []string{fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s DROP DEFAULT", table, pgIdent(op.ColumnName))}
		}
		return []string{fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s SET DEFAULT %s",
			table, pgIdent(op.ColumnName), op.Default)}
	case OpAddPrimaryKey:
		return []string{fmt.Sprintf("ALTER TABLE %s ADD PRIMARY KEY (%s)", table, pgIdentList(op.PrimaryKey))}
	case OpDropPrimaryKey:
		return []string{fmt.Sprintf("ALTER TABLE %s DROP CONSTRAINT %s", table, pgIdent(op.Table+"_pkey"))}
	case OpAddForeignKey:
		return []string{fmt.Sprintf("ALTER TABLE %s ADD %s", table, e.foreignKeyClause(*op.ForeignKey))}
	case OpDropForeignKey:
		return []string{fmt.Sprintf("ALTER TABLE %s DROP CONSTRAINT %s", table, pgIdent(op.ForeignKey.Name))}
	case OpAddUnique:
		return []string{fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s UNIQUE (%s)",
			table, pgIdent(op.Unique.Name), pgIdentList(op.Unique.Columns))}
	case OpDropUnique:
		return []string{fmt.Sprintf("ALTER TABLE %s DROP CONSTRAINT %s", table, pgIdent(op.Unique.Name))}
	case OpCreateIndex:
		return []string{e.createIndex(op.Table, *op.Index)}
	case OpDropIndex:
		return []string{"DROP INDEX " + pgIdent(op.Index.Name)}
	default:
		return nil
	}
}
