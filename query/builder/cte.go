package builder

import (
	"strings"

	"github.com/sqlmodel/sqlmodel-go/core"
)

// Cte is one common table expression of a WITH clause. Body fragments are
// written with dialect-neutral ? placeholders; Build renumbers them into the
// target dialect's form so that numbering runs contiguously across the whole
// statement.
type Cte struct {
	name        string
	columns     []string
	recursive   bool
	querySQL    string
	queryParams []core.Value
	unionSQL    string
	unionParams []core.Value
}

// NewCte creates a non-recursive CTE.
func NewCte(name string) *Cte {
	return &Cte{name: name}
}

// NewRecursiveCte creates a recursive CTE.
func NewRecursiveCte(name string) *Cte {
	return &Cte{name: name, recursive: true}
}

// Columns sets explicit column aliases.
func (c *Cte) Columns(cols ...string) *Cte {
	c.columns = cols
	return c
}

// AsSelect sets the CTE body. The SQL uses ? placeholders.
func (c *Cte) AsSelect(sql string, params ...core.Value) *Cte {
	c.querySQL = sql
	c.queryParams = params
	return c
}

// UnionAll appends a UNION ALL tail, used by the recursive term.
func (c *Cte) UnionAll(sql string, params ...core.Value) *Cte {
	c.unionSQL = sql
	c.unionParams = params
	return c
}

// Name returns the CTE name for FROM clauses.
func (c *Cte) Name() string { return c.name }

// Recursive reports whether this CTE is recursive.
func (c *Cte) Recursive() bool { return c.recursive }

// build renders this CTE's definition, renumbering its placeholders.
func (c *Cte) build(d core.Dialect, argIndex *int, params *[]core.Value) string {
	var sb strings.Builder
	sb.WriteString(d.QuoteIdent(c.name))
	if len(c.columns) > 0 {
		sb.WriteString(" (")
		for i, col := range c.columns {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(d.QuoteIdent(col))
		}
		sb.WriteByte(')')
	}
	sb.WriteString(" AS (")
	sb.WriteString(renumber(d, c.querySQL, argIndex))
	*params = append(*params, c.queryParams...)
	if c.unionSQL != "" {
		sb.WriteString(" UNION ALL ")
		sb.WriteString(renumber(d, c.unionSQL, argIndex))
		*params = append(*params, c.unionParams...)
	}
	sb.WriteByte(')')
	return sb.String()
}

// WithQuery composes CTEs with a main query. If any CTE is recursive the
// prelude is WITH RECURSIVE, otherwise WITH.
type WithQuery struct {
	ctes       []*Cte
	mainSQL    string
	mainParams []core.Value
}

// NewWithQuery creates an empty WithQuery.
func NewWithQuery() *WithQuery {
	return &WithQuery{}
}

// With appends a CTE. CTEs may reference previously defined ones.
func (w *WithQuery) With(cte *Cte) *WithQuery {
	w.ctes = append(w.ctes, cte)
	return w
}

// Select sets the main query. The SQL uses ? placeholders.
func (w *WithQuery) Select(sql string, params ...core.Value) *WithQuery {
	w.mainSQL = sql
	w.mainParams = params
	return w
}

// Build renders the full statement for the given dialect. Parameter
// numbering starts at 1 and proceeds through the CTE bodies in order, then
// the main query.
func (w *WithQuery) Build(d core.Dialect) (string, []core.Value, error) {
	if w.mainSQL == "" {
		return "", nil, core.Errorf(core.KindQuerySyntax, "WITH query has no main query")
	}
	var sb strings.Builder
	var params []core.Value
	argIndex := 1

	if len(w.ctes) > 0 {
		recursive := false
		for _, c := range w.ctes {
			if c.recursive {
				recursive = true
				break
			}
		}
		if recursive {
			sb.WriteString("WITH RECURSIVE ")
		} else {
			sb.WriteString("WITH ")
		}
		for i, c := range w.ctes {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(c.build(d, &argIndex, &params))
		}
		sb.WriteByte(' ')
	}
	sb.WriteString(renumber(d, w.mainSQL, &argIndex))
	params = append(params, w.mainParams...)
	return sb.String(), params, nil
}

// renumber replaces each bare ? in fragment with the dialect's placeholder
// at the running index. Single-quoted strings are left untouched.
func renumber(d core.Dialect, fragment string, argIndex *int) string {
	var sb strings.Builder
	sb.Grow(len(fragment))
	inString := false
	for i := 0; i < len(fragment); i++ {
		ch := fragment[i]
		switch {
		case ch == '\'':
			inString = !inString
			sb.WriteByte(ch)
		case ch == '?' && !inString:
			sb.WriteString(d.Placeholder(*argIndex))
			*argIndex++
		default:
			sb.WriteByte(ch)
		}
	}
	return sb.String()
}
