package builder

import (
	"context"
	"strings"

	"github.com/sqlmodel/sqlmodel-go/core"
	"github.com/sqlmodel/sqlmodel-go/query/sqlgen"
)

// tableColumns groups a joined-inheritance instance's columns by table.
// The parent table comes first, then each child table in first-appearance
// order of its fields.
type tableColumns struct {
	table string
	cols  []core.NamedValue
}

func splitByTable(m core.Model) []tableColumns {
	inh := m.Inheritance()
	parent := inh.ParentTable
	own := m.TableName()

	ordered := []tableColumns{{table: parent}}
	index := map[string]int{parent: 0}

	for _, nv := range m.ToRow() {
		f, ok := core.FieldByColumn(m, nv.Name)
		if !ok {
			continue
		}
		table := f.Table
		if table == "" {
			table = own
		}
		i, seen := index[table]
		if !seen {
			index[table] = len(ordered)
			ordered = append(ordered, tableColumns{table: table})
			i = len(ordered) - 1
		}
		ordered[i].cols = append(ordered[i].cols, nv)
	}
	return ordered
}

// sharedPK returns the PK columns common to every table of the hierarchy.
func sharedPK(m core.Model) []string {
	if pk := m.Inheritance().ParentPrimaryKey; len(pk) > 0 {
		return pk
	}
	return m.PrimaryKey()
}

// JoinedInsert inserts a joined-inheritance instance: the parent row first,
// capturing the generated primary key, then one row per child table reusing
// that key. The entire write runs inside a single transaction; when the
// caller is not already in one, JoinedInsert opens its own.
func JoinedInsert(ctx context.Context, conn core.Connection, m core.Model) (int64, error) {
	if m.Inheritance().Strategy != core.InheritJoined {
		return 0, core.Errorf(core.KindQueryDatabase,
			"%s does not use joined-table inheritance", m.TableName())
	}
	tx, err := conn.Begin(ctx)
	if err != nil {
		return 0, err
	}
	pk, err := JoinedInsertOn(ctx, tx, conn.Dialect(), m)
	if err != nil {
		_ = tx.Rollback(ctx)
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return pk, nil
}

// JoinedInsertReturning is reserved for a future upsert-aware variant;
// requesting ON CONFLICT alongside it is rejected.
func JoinedInsertReturning(ctx context.Context, conn core.Connection, m core.Model, conflict OnConflict) (int64, error) {
	if conflict.Action != ConflictNone {
		return 0, core.Errorf(core.KindQueryDatabase, "insert_returning does not support ON CONFLICT")
	}
	return JoinedInsert(ctx, conn, m)
}

// JoinedInsertOn performs the joined insert on an already-open transaction.
func JoinedInsertOn(ctx context.Context, tx core.Transaction, d core.Dialect, m core.Model) (int64, error) {
	groups := splitByTable(m)
	pkCols := sharedPK(m)
	if len(groups) < 2 || groups[0].table == "" {
		return 0, core.Errorf(core.KindQueryDatabase,
			"joined insert on %s: no parent table", m.TableName())
	}

	// Parent insert, capturing the generated key when the PK is
	// auto-increment and unset.
	parent := groups[0]
	autoPK := false
	var pkValue core.Value = core.Null()
	if len(pkCols) == 1 {
		if f, ok := core.FieldByColumn(m, pkCols[0]); ok && f.AutoIncrement {
			autoPK = true
		}
	}
	for _, nv := range parent.cols {
		if len(pkCols) == 1 && nv.Name == pkCols[0] {
			pkValue = nv.Value
		}
	}

	insertCols := parent.cols
	if autoPK && pkValue.IsNull() {
		trimmed := insertCols[:0:0]
		for _, nv := range insertCols {
			if nv.Name != pkCols[0] {
				trimmed = append(trimmed, nv)
			}
		}
		insertCols = trimmed
	}
	sql, params := renderInsert(d, parent.table, insertCols)
	var generated int64
	var err error
	if autoPK && pkValue.IsNull() {
		if d == core.Postgres {
			sql += " RETURNING " + d.QuoteIdent(pkCols[0])
		}
		generated, err = tx.Insert(ctx, sql, params)
		if err != nil {
			return 0, err
		}
		pkValue = core.BigInt(generated)
	} else {
		if _, err = tx.Execute(ctx, sql, params); err != nil {
			return 0, err
		}
		generated, _ = pkValue.AsInt64()
	}

	// Child inserts share the parent's key.
	for _, group := range groups[1:] {
		cols := make([]core.NamedValue, 0, len(group.cols)+len(pkCols))
		seen := map[string]bool{}
		for _, nv := range group.cols {
			if len(pkCols) == 1 && nv.Name == pkCols[0] {
				nv.Value = pkValue
			}
			cols = append(cols, nv)
			seen[nv.Name] = true
		}
		if len(pkCols) == 1 && !seen[pkCols[0]] {
			cols = append([]core.NamedValue{{Name: pkCols[0], Value: pkValue}}, cols...)
		}
		sql, params := renderInsert(d, group.table, cols)
		if _, err := tx.Execute(ctx, sql, params); err != nil {
			return 0, err
		}
	}
	return generated, nil
}

func renderInsert(d core.Dialect, table string, cols []core.NamedValue) (string, []core.Value) {
	var sb strings.Builder
	params := make([]core.Value, 0, len(cols))
	argIndex := 1
	sb.WriteString("INSERT INTO ")
	sb.WriteString(d.QuoteIdent(table))
	sb.WriteString(" (")
	for i, nv := range cols {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(d.QuoteIdent(nv.Name))
	}
	sb.WriteString(") VALUES (")
	for i, nv := range cols {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(d.Placeholder(argIndex))
		argIndex++
		params = append(params, nv.Value)
	}
	sb.WriteByte(')')
	return sb.String(), params
}

// JoinedUpdateBuilder updates a joined-inheritance instance, splitting the
// SET list by the table each column belongs to.
type JoinedUpdateBuilder struct {
	model core.Model
	sets  []core.NamedValue
}

// NewJoinedUpdate creates a JoinedUpdateBuilder.
func NewJoinedUpdate(m core.Model) *JoinedUpdateBuilder {
	return &JoinedUpdateBuilder{model: m}
}

// Set assigns column = value. Unqualified columns that exist in more than
// one table of the hierarchy are rejected at Build time.
func (b *JoinedUpdateBuilder) Set(column string, v core.Value) *JoinedUpdateBuilder {
	b.sets = append(b.sets, core.NamedValue{Name: column, Value: v})
	return b
}

// tableFor resolves which table an unqualified column belongs to. Columns
// appearing in more than one table are ambiguous.
func (b *JoinedUpdateBuilder) tableFor(column string) (string, error) {
	own := b.model.TableName()
	parent := b.model.Inheritance().ParentTable
	var tables []string
	for _, f := range b.model.Fields() {
		if f.ColumnName != column {
			continue
		}
		t := f.Table
		if t == "" {
			t = own
		}
		dup := false
		for _, have := range tables {
			if have == t {
				dup = true
				break
			}
		}
		if !dup {
			tables = append(tables, t)
		}
	}
	// The shared PK column exists in every table of the hierarchy even when
	// metadata only records it once.
	for _, pk := range sharedPK(b.model) {
		if pk == column && parent != "" {
			if len(tables) == 1 && tables[0] != parent {
				tables = append(tables, parent)
			}
		}
	}
	switch len(tables) {
	case 0:
		return "", core.Errorf(core.KindQuerySyntax, "unknown column %q on %s", column, own)
	case 1:
		return tables[0], nil
	default:
		return "", core.Errorf(core.KindQueryDatabase,
			"ambiguous joined-table inheritance column '%s'", column)
	}
}

// Execute runs one UPDATE per affected table and returns the sum of the
// per-table row counts.
func (b *JoinedUpdateBuilder) Execute(ctx context.Context, conn core.Connection) (int64, error) {
	if b.model.Inheritance().Strategy != core.InheritJoined {
		return 0, core.Errorf(core.KindQueryDatabase,
			"%s does not use joined-table inheritance", b.model.TableName())
	}
	d := conn.Dialect()

	sets := b.sets
	if len(sets) == 0 {
		for _, nv := range b.model.ToRow() {
			f, ok := core.FieldByColumn(b.model, nv.Name)
			if !ok || f.PrimaryKey || f.Const || f.Computed {
				continue
			}
			sets = append(sets, nv)
		}
	}
	byTable := map[string][]core.NamedValue{}
	var order []string
	for _, nv := range sets {
		table, err := b.tableFor(nv.Name)
		if err != nil {
			return 0, err
		}
		if _, seen := byTable[table]; !seen {
			order = append(order, table)
		}
		byTable[table] = append(byTable[table], nv)
	}

	pkCols := sharedPK(b.model)
	pkVals := b.model.PrimaryKeyValue()
	var total int64
	for _, table := range order {
		var sb strings.Builder
		var params []core.Value
		argIndex := 1
		sb.WriteString("UPDATE ")
		sb.WriteString(d.QuoteIdent(table))
		sb.WriteString(" SET ")
		for i, nv := range byTable[table] {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(d.QuoteIdent(nv.Name))
			sb.WriteString(" = ")
			sb.WriteString(d.Placeholder(argIndex))
			argIndex++
			params = append(params, nv.Value)
		}
		sb.WriteString(" WHERE ")
		for i, col := range pkCols {
			if i > 0 {
				sb.WriteString(" AND ")
			}
			sb.WriteString(d.QuoteIdent(col))
			sb.WriteString(" = ")
			sb.WriteString(d.Placeholder(argIndex))
			argIndex++
			params = append(params, pkVals[i])
		}
		n, err := conn.Execute(ctx, sb.String(), params)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// JoinedDelete deletes a joined-inheritance instance child-first, then the
// parent row, returning the sum of row counts.
func JoinedDelete(ctx context.Context, conn core.Connection, m core.Model) (int64, error) {
	if m.Inheritance().Strategy != core.InheritJoined {
		return 0, core.Errorf(core.KindQueryDatabase,
			"%s does not use joined-table inheritance", m.TableName())
	}
	d := conn.Dialect()
	groups := splitByTable(m)
	pkCols := sharedPK(m)
	pkVals := m.PrimaryKeyValue()

	var total int64
	// children in reverse declaration order, parent last
	for i := len(groups) - 1; i >= 0; i-- {
		table := groups[i].table
		if table == "" {
			continue
		}
		var sb strings.Builder
		var params []core.Value
		argIndex := 1
		sb.WriteString("DELETE FROM ")
		sb.WriteString(d.QuoteIdent(table))
		sb.WriteString(" WHERE ")
		for j, col := range pkCols {
			if j > 0 {
				sb.WriteString(" AND ")
			}
			sb.WriteString(d.QuoteIdent(col))
			sb.WriteString(" = ")
			sb.WriteString(d.Placeholder(argIndex))
			argIndex++
			params = append(params, pkVals[j])
		}
		n, err := conn.Execute(ctx, sb.String(), params)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// PolymorphicSelect builds a SELECT against a joined-inheritance base that
// left-joins each child table on the shared primary key. The row decoder
// picks the first child whose discriminating columns are non-null, else the
// base variant.
func PolymorphicSelect(base core.Model, childTables ...string) *SelectBuilder {
	b := NewSelectModel(base)
	pk := sharedPK(base)
	for _, child := range childTables {
		if len(pk) > 0 {
			on := sqlgen.Qualified(base.TableName(), pk[0]).
				EqExpr(sqlgen.Qualified(child, pk[0]))
			b.LeftJoin(child, on)
		}
	}
	return b
}

// VariantProbe names a column that is non-null only when the row belongs to
// the given child table.
type VariantProbe struct {
	Table  string
	Column string
}

// ResolveVariant returns the first probe table whose column is non-null in
// the row, or "" for the base variant.
func ResolveVariant(row core.Row, probes []VariantProbe) string {
	for _, p := range probes {
		if v, ok := row.Named(p.Column); ok && !v.IsNull() {
			return p.Table
		}
	}
	return ""
}
