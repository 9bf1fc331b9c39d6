package builder

import (
	"strings"

	"github.com/sqlmodel/sqlmodel-go/core"
	"github.com/sqlmodel/sqlmodel-go/query/sqlgen"
)

// DeleteBuilder builds a DELETE statement, either by model instance (WHERE
// is PK equality) or by explicit filters AND-combined across calls.
type DeleteBuilder struct {
	model     core.Model
	table     string
	filters   []sqlgen.Expr
	returning bool
}

// NewDeleteFromModel creates a DeleteBuilder targeting one instance.
func NewDeleteFromModel(m core.Model) *DeleteBuilder {
	return &DeleteBuilder{model: m, table: m.TableName()}
}

// NewDelete creates a filter-based DeleteBuilder.
func NewDelete(table string) *DeleteBuilder {
	return &DeleteBuilder{table: table}
}

// Filter AND-combines a predicate into the WHERE clause.
func (b *DeleteBuilder) Filter(e sqlgen.Expr) *DeleteBuilder {
	b.filters = append(b.filters, e)
	return b
}

// Returning requests a RETURNING * clause.
func (b *DeleteBuilder) Returning() *DeleteBuilder {
	b.returning = true
	return b
}

// Build renders the DELETE for the given dialect.
func (b *DeleteBuilder) Build(d core.Dialect) (string, []core.Value, error) {
	wheres := b.filters
	if len(wheres) == 0 && b.model != nil {
		pkExprs, err := pkEquality(b.model)
		if err != nil {
			return "", nil, err
		}
		wheres = pkExprs
	}
	if len(wheres) == 0 {
		return "", nil, core.Errorf(core.KindQuerySyntax, "delete on %s has no WHERE clause", b.table)
	}

	var sb strings.Builder
	var params []core.Value
	argIndex := 1

	sb.WriteString("DELETE FROM ")
	sb.WriteString(d.QuoteIdent(b.table))
	if cond, ok := sqlgen.AndAll(wheres); ok {
		sql, condParams := cond.Build(d, &argIndex)
		sb.WriteString(" WHERE ")
		sb.WriteString(sql)
		params = append(params, condParams...)
	}
	if b.returning {
		if d == core.Mysql {
			return "", nil, core.Errorf(core.KindQuerySyntax, "RETURNING is not supported on mysql")
		}
		sb.WriteString(" RETURNING *")
	}
	return sb.String(), params, nil
}
