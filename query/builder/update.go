package builder

import (
	"strings"

	"github.com/sqlmodel/sqlmodel-go/core"
	"github.com/sqlmodel/sqlmodel-go/query/sqlgen"
)

// UpdateBuilder builds an UPDATE statement. In model mode it SETs every
// non-PK storable field and defaults the WHERE clause to PK equality;
// explicit Set calls may be layered on top and win for the same column.
type UpdateBuilder struct {
	model     core.Model
	table     string
	sets      []core.NamedValue
	filters   []sqlgen.Expr
	returning bool
}

// NewUpdate creates a model-based UpdateBuilder.
func NewUpdate(m core.Model) *UpdateBuilder {
	return &UpdateBuilder{model: m, table: m.TableName()}
}

// NewUpdateTable creates an explicit UpdateBuilder with no model backing.
func NewUpdateTable(table string) *UpdateBuilder {
	return &UpdateBuilder{table: table}
}

// Set assigns column = value explicitly. Explicit sets take precedence over
// model-derived ones for the same column.
func (b *UpdateBuilder) Set(column string, v core.Value) *UpdateBuilder {
	b.sets = append(b.sets, core.NamedValue{Name: column, Value: v})
	return b
}

// Filter AND-combines a predicate into the WHERE clause.
func (b *UpdateBuilder) Filter(e sqlgen.Expr) *UpdateBuilder {
	b.filters = append(b.filters, e)
	return b
}

// Returning requests a RETURNING * clause.
func (b *UpdateBuilder) Returning() *UpdateBuilder {
	b.returning = true
	return b
}

// setList resolves the final SET list: model fields first, explicit sets
// overriding and extending.
func (b *UpdateBuilder) setList() ([]core.NamedValue, error) {
	var sets []core.NamedValue
	if b.model != nil {
		if b.model.IsNew() {
			return nil, core.Errorf(core.KindQueryDatabase,
				"update on %s: instance has not been persisted", b.table)
		}
		for _, nv := range b.model.ToRow() {
			f, ok := core.FieldByColumn(b.model, nv.Name)
			if !ok {
				continue
			}
			if f.PrimaryKey || f.Const || f.Computed || f.Exclude {
				continue
			}
			sets = append(sets, nv)
		}
	}
	for _, explicit := range b.sets {
		if b.model != nil {
			if f, ok := core.FieldByColumn(b.model, explicit.Name); ok && f.Const {
				return nil, core.Errorf(core.KindQuerySyntax,
					"cannot update const column %q", explicit.Name)
			}
		}
		replaced := false
		for i := range sets {
			if sets[i].Name == explicit.Name {
				sets[i] = explicit
				replaced = true
				break
			}
		}
		if !replaced {
			sets = append(sets, explicit)
		}
	}
	if len(sets) == 0 {
		return nil, core.Errorf(core.KindQuerySyntax, "update on %s has no SET columns", b.table)
	}
	return sets, nil
}

// whereExprs resolves the WHERE predicates: explicit filters, falling back
// to PK equality in model mode.
func (b *UpdateBuilder) whereExprs() ([]sqlgen.Expr, error) {
	if len(b.filters) > 0 {
		return b.filters, nil
	}
	if b.model == nil {
		return nil, nil
	}
	return pkEquality(b.model)
}

// Build renders the UPDATE for the given dialect.
func (b *UpdateBuilder) Build(d core.Dialect) (string, []core.Value, error) {
	sets, err := b.setList()
	if err != nil {
		return "", nil, err
	}
	wheres, err := b.whereExprs()
	if err != nil {
		return "", nil, err
	}

	var sb strings.Builder
	var params []core.Value
	argIndex := 1

	sb.WriteString("UPDATE ")
	sb.WriteString(d.QuoteIdent(b.table))
	sb.WriteString(" SET ")
	for i, nv := range sets {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(d.QuoteIdent(nv.Name))
		sb.WriteString(" = ")
		sb.WriteString(d.Placeholder(argIndex))
		argIndex++
		params = append(params, nv.Value)
	}

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

// pkEquality builds one equality predicate per primary-key column.
func pkEquality(m core.Model) ([]sqlgen.Expr, error) {
	pk := m.PrimaryKey()
	pkv := m.PrimaryKeyValue()
	if len(pk) == 0 || len(pk) != len(pkv) {
		return nil, core.Errorf(core.KindQuerySyntax, "%s has no usable primary key", m.TableName())
	}
	exprs := make([]sqlgen.Expr, len(pk))
	for i, col := range pk {
		exprs[i] = sqlgen.Col(col).Eq(pkv[i])
	}
	return exprs, nil
}
