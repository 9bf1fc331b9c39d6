// Package builder constructs INSERT, UPDATE, DELETE, SELECT and WITH
// statements as (sql, params) pairs from model metadata, with
// inheritance-aware code paths that span parent and child tables.
package builder

import (
	"strings"

	"github.com/sqlmodel/sqlmodel-go/core"
)

// ConflictAction selects the ON CONFLICT strategy of an insert.
type ConflictAction int

const (
	// ConflictNone emits no conflict clause.
	ConflictNone ConflictAction = iota
	// ConflictDoNothing skips conflicting rows.
	ConflictDoNothing
	// ConflictDoUpdate updates conflicting rows.
	ConflictDoUpdate
)

// OnConflict describes an upsert strategy. Target defaults to the model's
// primary key; an empty UpdateColumns list on DoUpdate means "every non-PK
// inserted column".
type OnConflict struct {
	Action        ConflictAction
	Target        []string
	UpdateColumns []string
}

// InsertBuilder builds a single-row INSERT from a model instance.
type InsertBuilder struct {
	model     core.Model
	returning bool
	conflict  OnConflict
}

// NewInsert creates an InsertBuilder for the given instance.
func NewInsert(m core.Model) *InsertBuilder {
	return &InsertBuilder{model: m}
}

// Returning requests a RETURNING * clause.
func (b *InsertBuilder) Returning() *InsertBuilder {
	b.returning = true
	return b
}

// OnConflictDoNothing skips conflicting rows; target columns default to the
// primary key.
func (b *InsertBuilder) OnConflictDoNothing(target ...string) *InsertBuilder {
	b.conflict = OnConflict{Action: ConflictDoNothing, Target: target}
	return b
}

// OnConflictDoUpdate updates the given columns on conflict; an empty column
// list updates every non-PK inserted column.
func (b *InsertBuilder) OnConflictDoUpdate(columns []string, target ...string) *InsertBuilder {
	b.conflict = OnConflict{Action: ConflictDoUpdate, Target: target, UpdateColumns: columns}
	return b
}

// insertColumns returns the (column, value) pairs to insert: storable fields
// in field order, minus auto-increment PK columns whose value is NULL, plus
// the discriminator for single-inheritance children.
func insertColumns(m core.Model) []core.NamedValue {
	row := m.ToRow()
	out := make([]core.NamedValue, 0, len(row)+1)
	for _, nv := range row {
		if f, ok := core.FieldByColumn(m, nv.Name); ok {
			if f.AutoIncrement && f.PrimaryKey && nv.Value.IsNull() {
				continue
			}
		}
		out = append(out, nv)
	}
	inh := m.Inheritance()
	if inh.Strategy == core.InheritSingle && inh.DiscriminatorValue != "" {
		col := inh.DiscriminatorColumn
		if col == "" {
			col = "type"
		}
		found := false
		for i := range out {
			if out[i].Name == col {
				out[i].Value = core.Text(inh.DiscriminatorValue)
				found = true
				break
			}
		}
		if !found {
			out = append(out, core.NamedValue{Name: col, Value: core.Text(inh.DiscriminatorValue)})
		}
	}
	return out
}

// Build renders the INSERT for the given dialect.
func (b *InsertBuilder) Build(d core.Dialect) (string, []core.Value, error) {
	cols := insertColumns(b.model)
	if len(cols) == 0 {
		return "", nil, core.Errorf(core.KindQuerySyntax, "insert on %s has no columns", b.model.TableName())
	}

	var sb strings.Builder
	params := make([]core.Value, 0, len(cols))
	argIndex := 1

	if d == core.Mysql && b.conflict.Action == ConflictDoNothing {
		sb.WriteString("INSERT IGNORE INTO ")
	} else {
		sb.WriteString("INSERT INTO ")
	}
	sb.WriteString(d.QuoteIdent(b.model.TableName()))
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

	if err := b.renderConflict(d, &sb, cols, &argIndex, &params); err != nil {
		return "", nil, err
	}

	if b.returning {
		if d == core.Mysql {
			return "", nil, core.Errorf(core.KindQuerySyntax, "RETURNING is not supported on mysql")
		}
		sb.WriteString(" RETURNING *")
	}
	return sb.String(), params, nil
}

func (b *InsertBuilder) renderConflict(d core.Dialect, sb *strings.Builder, cols []core.NamedValue, argIndex *int, params *[]core.Value) error {
	switch b.conflict.Action {
	case ConflictNone:
		return nil
	case ConflictDoNothing:
		if d == core.Mysql {
			// rendered as INSERT IGNORE
			return nil
		}
		sb.WriteString(" ON CONFLICT ")
		b.renderTarget(d, sb)
		sb.WriteString(" DO NOTHING")
		return nil
	case ConflictDoUpdate:
		update := b.conflict.UpdateColumns
		if len(update) == 0 {
			for _, nv := range cols {
				if !core.IsPrimaryKeyColumn(b.model, nv.Name) {
					update = append(update, nv.Name)
				}
			}
		}
		if len(update) == 0 {
			return core.Errorf(core.KindQuerySyntax, "upsert on %s has no updatable columns", b.model.TableName())
		}
		if d == core.Mysql {
			sb.WriteString(" ON DUPLICATE KEY UPDATE ")
			for i, col := range update {
				if i > 0 {
					sb.WriteString(", ")
				}
				sb.WriteString(d.QuoteIdent(col))
				sb.WriteString(" = VALUES(")
				sb.WriteString(d.QuoteIdent(col))
				sb.WriteByte(')')
			}
			return nil
		}
		sb.WriteString(" ON CONFLICT ")
		b.renderTarget(d, sb)
		sb.WriteString(" DO UPDATE SET ")
		for i, col := range update {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(d.QuoteIdent(col))
			sb.WriteString(" = EXCLUDED.")
			sb.WriteString(d.QuoteIdent(col))
		}
		return nil
	default:
		return nil
	}
}

func (b *InsertBuilder) renderTarget(d core.Dialect, sb *strings.Builder) {
	target := b.conflict.Target
	if len(target) == 0 {
		target = b.model.PrimaryKey()
	}
	sb.WriteByte('(')
	for i, col := range target {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(d.QuoteIdent(col))
	}
	sb.WriteByte(')')
}

// BulkInsertBuilder builds a multi-row INSERT. The column list comes from
// the first instance; later instances contribute values in that column
// order, substituting NULL for columns they do not carry.
type BulkInsertBuilder struct {
	models    []core.Model
	returning bool
}

// NewBulkInsert creates a BulkInsertBuilder over a non-empty instance list.
func NewBulkInsert(models []core.Model) *BulkInsertBuilder {
	return &BulkInsertBuilder{models: models}
}

// Returning requests a RETURNING * clause.
func (b *BulkInsertBuilder) Returning() *BulkInsertBuilder {
	b.returning = true
	return b
}

// Build renders the bulk INSERT. Placeholders are numbered per value cell
// across all rows.
func (b *BulkInsertBuilder) Build(d core.Dialect) (string, []core.Value, error) {
	if len(b.models) == 0 {
		return "", nil, core.Errorf(core.KindQuerySyntax, "bulk insert with no rows")
	}
	first := b.models[0]
	cols := insertColumns(first)
	if len(cols) == 0 {
		return "", nil, core.Errorf(core.KindQuerySyntax, "insert on %s has no columns", first.TableName())
	}

	var sb strings.Builder
	params := make([]core.Value, 0, len(cols)*len(b.models))
	argIndex := 1

	sb.WriteString("INSERT INTO ")
	sb.WriteString(d.QuoteIdent(first.TableName()))
	sb.WriteString(" (")
	for i, nv := range cols {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(d.QuoteIdent(nv.Name))
	}
	sb.WriteString(") VALUES ")

	for r, m := range b.models {
		if r > 0 {
			sb.WriteString(", ")
		}
		row := m.ToRow()
		byName := make(map[string]core.Value, len(row))
		for _, nv := range row {
			byName[nv.Name] = nv.Value
		}
		sb.WriteByte('(')
		for i, nv := range cols {
			if i > 0 {
				sb.WriteString(", ")
			}
			v, ok := byName[nv.Name]
			if !ok {
				v = core.Null()
			}
			sb.WriteString(d.Placeholder(argIndex))
			argIndex++
			params = append(params, v)
		}
		sb.WriteByte(')')
	}

	if b.returning {
		if d == core.Mysql {
			return "", nil, core.Errorf(core.KindQuerySyntax, "RETURNING is not supported on mysql")
		}
		sb.WriteString(" RETURNING *")
	}
	return sb.String(), params, nil
}
