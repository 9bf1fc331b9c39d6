// Package sqlgen renders typed SQL expression trees into dialect-specific
// SQL text plus a parameter vector. Placeholders are numbered sequentially
// across a whole statement: builders thread one running argument counter
// through every expression they render, and each visit appends to the
// parameter vector in the same order, so the number of placeholders in the
// emitted SQL always equals the length of the returned parameters.
package sqlgen

import (
	"strings"

	"github.com/sqlmodel/sqlmodel-go/core"
)

// exprKind discriminates the Expr variants.
type exprKind int

const (
	exprColumn exprKind = iota
	exprQualified
	exprLiteral
	exprBinOp
	exprUnary
	exprIn
	exprBetween
	exprIsNull
	exprLike
	exprFunc
	exprRaw
)

// Expr is a node of a typed SQL expression tree.
type Expr struct {
	kind exprKind

	table  string
	column string
	value  core.Value
	op     string
	args   []Expr
	raw    string
	negate bool
}

// Col references an unqualified column.
func Col(name string) Expr {
	return Expr{kind: exprColumn, column: name}
}

// Qualified references a table-qualified column.
func Qualified(table, column string) Expr {
	return Expr{kind: exprQualified, table: table, column: column}
}

// Lit wraps a literal value, rendered as a bound parameter.
func Lit(v core.Value) Expr {
	return Expr{kind: exprLiteral, value: v}
}

// Raw splices SQL text verbatim. The text must not contain placeholders.
func Raw(sql string) Expr {
	return Expr{kind: exprRaw, raw: sql}
}

// Func renders a function call.
func Func(name string, args ...Expr) Expr {
	return Expr{kind: exprFunc, op: name, args: args}
}

func binOp(op string, left, right Expr) Expr {
	return Expr{kind: exprBinOp, op: op, args: []Expr{left, right}}
}

// Eq renders e = value.
func (e Expr) Eq(v core.Value) Expr { return binOp("=", e, Lit(v)) }

// Ne renders e != value.
func (e Expr) Ne(v core.Value) Expr { return binOp("!=", e, Lit(v)) }

// Gt renders e > value.
func (e Expr) Gt(v core.Value) Expr { return binOp(">", e, Lit(v)) }

// Ge renders e >= value.
func (e Expr) Ge(v core.Value) Expr { return binOp(">=", e, Lit(v)) }

// Lt renders e < value.
func (e Expr) Lt(v core.Value) Expr { return binOp("<", e, Lit(v)) }

// Le renders e <= value.
func (e Expr) Le(v core.Value) Expr { return binOp("<=", e, Lit(v)) }

// EqExpr renders e = other for expression operands.
func (e Expr) EqExpr(other Expr) Expr { return binOp("=", e, other) }

// And conjoins two expressions.
func (e Expr) And(other Expr) Expr { return binOp("AND", e, other) }

// Or disjoins two expressions.
func (e Expr) Or(other Expr) Expr { return binOp("OR", e, other) }

// Not negates the expression.
func (e Expr) Not() Expr {
	return Expr{kind: exprUnary, op: "NOT", args: []Expr{e}}
}

// In renders e IN (values...).
func (e Expr) In(values ...core.Value) Expr {
	args := make([]Expr, 0, len(values)+1)
	args = append(args, e)
	for _, v := range values {
		args = append(args, Lit(v))
	}
	return Expr{kind: exprIn, args: args}
}

// Between renders e BETWEEN low AND high.
func (e Expr) Between(low, high core.Value) Expr {
	return Expr{kind: exprBetween, args: []Expr{e, Lit(low), Lit(high)}}
}

// IsNull renders e IS NULL.
func (e Expr) IsNull() Expr {
	return Expr{kind: exprIsNull, args: []Expr{e}}
}

// IsNotNull renders e IS NOT NULL.
func (e Expr) IsNotNull() Expr {
	return Expr{kind: exprIsNull, args: []Expr{e}, negate: true}
}

// Like renders e LIKE pattern.
func (e Expr) Like(pattern string) Expr {
	return Expr{kind: exprLike, args: []Expr{e, Lit(core.Text(pattern))}}
}

// Build renders the expression for the given dialect, threading argIndex as
// the running 1-based placeholder counter. Bound values are appended to the
// returned slice in placeholder order.
func (e Expr) Build(d core.Dialect, argIndex *int) (string, []core.Value) {
	var sb strings.Builder
	var params []core.Value
	e.render(d, argIndex, &sb, &params)
	return sb.String(), params
}

func (e Expr) render(d core.Dialect, argIndex *int, sb *strings.Builder, params *[]core.Value) {
	switch e.kind {
	case exprColumn:
		sb.WriteString(d.QuoteIdent(e.column))
	case exprQualified:
		sb.WriteString(d.QuoteIdent(e.table))
		sb.WriteByte('.')
		sb.WriteString(d.QuoteIdent(e.column))
	case exprLiteral:
		sb.WriteString(d.Placeholder(*argIndex))
		*argIndex++
		*params = append(*params, e.value)
	case exprBinOp:
		sb.WriteByte('(')
		e.args[0].render(d, argIndex, sb, params)
		sb.WriteByte(' ')
		sb.WriteString(e.op)
		sb.WriteByte(' ')
		e.args[1].render(d, argIndex, sb, params)
		sb.WriteByte(')')
	case exprUnary:
		sb.WriteString(e.op)
		sb.WriteString(" (")
		e.args[0].render(d, argIndex, sb, params)
		sb.WriteByte(')')
	case exprIn:
		e.args[0].render(d, argIndex, sb, params)
		sb.WriteString(" IN (")
		for i, arg := range e.args[1:] {
			if i > 0 {
				sb.WriteString(", ")
			}
			arg.render(d, argIndex, sb, params)
		}
		sb.WriteByte(')')
	case exprBetween:
		e.args[0].render(d, argIndex, sb, params)
		sb.WriteString(" BETWEEN ")
		e.args[1].render(d, argIndex, sb, params)
		sb.WriteString(" AND ")
		e.args[2].render(d, argIndex, sb, params)
	case exprIsNull:
		e.args[0].render(d, argIndex, sb, params)
		if e.negate {
			sb.WriteString(" IS NOT NULL")
		} else {
			sb.WriteString(" IS NULL")
		}
	case exprLike:
		e.args[0].render(d, argIndex, sb, params)
		sb.WriteString(" LIKE ")
		e.args[1].render(d, argIndex, sb, params)
	case exprFunc:
		sb.WriteString(e.op)
		sb.WriteByte('(')
		for i, arg := range e.args {
			if i > 0 {
				sb.WriteString(", ")
			}
			arg.render(d, argIndex, sb, params)
		}
		sb.WriteByte(')')
	case exprRaw:
		sb.WriteString(e.raw)
	}
}

// ColumnName returns the column this expression references when it is a
// plain or qualified column reference.
func (e Expr) ColumnName() (table, column string, ok bool) {
	switch e.kind {
	case exprColumn:
		return "", e.column, true
	case exprQualified:
		return e.table, e.column, true
	default:
		return "", "", false
	}
}

// AndAll conjoins a list of expressions; an empty list yields a zero Expr
// with ok == false.
func AndAll(exprs []Expr) (Expr, bool) {
	if len(exprs) == 0 {
		return Expr{}, false
	}
	acc := exprs[0]
	for _, e := range exprs[1:] {
		acc = acc.And(e)
	}
	return acc, true
}

// CountPlaceholders counts parameter placeholders in rendered SQL for the
// given dialect. Used by tests to assert placeholder/parameter parity.
func CountPlaceholders(d core.Dialect, sql string) int {
	switch d {
	case Postgres:
		return countNumbered(sql, '$')
	case Sqlite:
		return countNumbered(sql, '?')
	default:
		return strings.Count(sql, "?")
	}
}

func countNumbered(sql string, marker byte) int {
	n := 0
	for i := 0; i < len(sql); i++ {
		if sql[i] == marker && i+1 < len(sql) && sql[i+1] >= '0' && sql[i+1] <= '9' {
			n++
		}
	}
	return n
}

// Dialect aliases so builder call sites read naturally.
const (
	Postgres = core.Postgres
	Mysql    = core.Mysql
	Sqlite   = core.Sqlite
)
