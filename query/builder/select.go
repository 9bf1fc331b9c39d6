package builder

import (
	"strings"

	"github.com/sqlmodel/sqlmodel-go/core"
	"github.com/sqlmodel/sqlmodel-go/query/sqlgen"
)

// Join describes one JOIN clause of a SELECT.
type Join struct {
	Kind  string // "INNER", "LEFT", ...
	Table string
	On    sqlgen.Expr
}

// OrderBy describes one ORDER BY term.
type OrderBy struct {
	Column string
	Desc   bool
}

// SelectBuilder builds a SELECT statement. Selecting for a
// single-inheritance child automatically adds the discriminator predicate.
type SelectBuilder struct {
	model   core.Model
	table   string
	columns []string
	joins   []Join
	filters []sqlgen.Expr
	orderBy []OrderBy
	limit   *int
	offset  *int
	forUpd  bool
}

// NewSelect creates a SelectBuilder over a bare table.
func NewSelect(table string) *SelectBuilder {
	return &SelectBuilder{table: table}
}

// NewSelectModel creates a SelectBuilder for a model type, applying
// inheritance rules.
func NewSelectModel(m core.Model) *SelectBuilder {
	b := &SelectBuilder{model: m, table: m.TableName()}
	inh := m.Inheritance()
	if inh.Strategy == core.InheritSingle && inh.DiscriminatorValue != "" {
		col := inh.DiscriminatorColumn
		if col == "" {
			col = "type"
		}
		b.filters = append(b.filters, sqlgen.Col(col).Eq(core.Text(inh.DiscriminatorValue)))
	}
	return b
}

// Columns restricts the selected columns; default is *.
func (b *SelectBuilder) Columns(cols ...string) *SelectBuilder {
	b.columns = cols
	return b
}

// Join adds a join clause.
func (b *SelectBuilder) Join(kind, table string, on sqlgen.Expr) *SelectBuilder {
	b.joins = append(b.joins, Join{Kind: kind, Table: table, On: on})
	return b
}

// LeftJoin adds a LEFT JOIN clause.
func (b *SelectBuilder) LeftJoin(table string, on sqlgen.Expr) *SelectBuilder {
	return b.Join("LEFT", table, on)
}

// Filter AND-combines a predicate into the WHERE clause.
func (b *SelectBuilder) Filter(e sqlgen.Expr) *SelectBuilder {
	b.filters = append(b.filters, e)
	return b
}

// OrderByAsc appends an ascending ORDER BY term.
func (b *SelectBuilder) OrderByAsc(column string) *SelectBuilder {
	b.orderBy = append(b.orderBy, OrderBy{Column: column})
	return b
}

// OrderByDesc appends a descending ORDER BY term.
func (b *SelectBuilder) OrderByDesc(column string) *SelectBuilder {
	b.orderBy = append(b.orderBy, OrderBy{Column: column, Desc: true})
	return b
}

// Limit caps the row count.
func (b *SelectBuilder) Limit(n int) *SelectBuilder {
	b.limit = &n
	return b
}

// Offset skips the first n rows.
func (b *SelectBuilder) Offset(n int) *SelectBuilder {
	b.offset = &n
	return b
}

// ForUpdate appends FOR UPDATE (ignored on SQLite).
func (b *SelectBuilder) ForUpdate() *SelectBuilder {
	b.forUpd = true
	return b
}

// Build renders the SELECT for the given dialect.
func (b *SelectBuilder) Build(d core.Dialect) (string, []core.Value, error) {
	var sb strings.Builder
	var params []core.Value
	argIndex := 1

	sb.WriteString("SELECT ")
	if len(b.columns) == 0 {
		sb.WriteByte('*')
	} else {
		for i, col := range b.columns {
			if i > 0 {
				sb.WriteString(", ")
			}
			if col == "*" || strings.ContainsAny(col, " (") {
				sb.WriteString(col)
			} else if t, c, dotted := strings.Cut(col, "."); dotted {
				sb.WriteString(d.QuoteIdent(t))
				sb.WriteByte('.')
				sb.WriteString(d.QuoteIdent(c))
			} else {
				sb.WriteString(d.QuoteIdent(col))
			}
		}
	}
	sb.WriteString(" FROM ")
	sb.WriteString(d.QuoteIdent(b.table))

	for _, j := range b.joins {
		sb.WriteByte(' ')
		sb.WriteString(j.Kind)
		sb.WriteString(" JOIN ")
		sb.WriteString(d.QuoteIdent(j.Table))
		sb.WriteString(" ON ")
		onSQL, onParams := j.On.Build(d, &argIndex)
		sb.WriteString(onSQL)
		params = append(params, onParams...)
	}

	if cond, ok := sqlgen.AndAll(b.filters); ok {
		condSQL, condParams := cond.Build(d, &argIndex)
		sb.WriteString(" WHERE ")
		sb.WriteString(condSQL)
		params = append(params, condParams...)
	}

	if len(b.orderBy) > 0 {
		sb.WriteString(" ORDER BY ")
		for i, ob := range b.orderBy {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(d.QuoteIdent(ob.Column))
			if ob.Desc {
				sb.WriteString(" DESC")
			}
		}
	}

	var limitPh, offsetPh string
	if b.limit != nil {
		limitPh = d.Placeholder(argIndex)
		argIndex++
		params = append(params, core.BigInt(int64(*b.limit)))
	}
	if b.offset != nil {
		offsetPh = d.Placeholder(argIndex)
		argIndex++
		params = append(params, core.BigInt(int64(*b.offset)))
	}
	if tail := d.LimitOffset(limitPh, offsetPh); tail != "" {
		sb.WriteByte(' ')
		sb.WriteString(tail)
	}

	if b.forUpd && d != core.Sqlite {
		sb.WriteString(" FOR UPDATE")
	}
	return sb.String(), params, nil
}
