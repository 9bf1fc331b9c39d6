package session

import (
	"context"

	"github.com/sqlmodel/sqlmodel-go/core"
	"github.com/sqlmodel/sqlmodel-go/query/builder"
	"github.com/sqlmodel/sqlmodel-go/query/sqlgen"
)

// RelatedReceiver is implemented by entities that can hold batch-loaded
// relationship rows.
type RelatedReceiver interface {
	SetRelated(name string, rows []core.Row)
}

// LoadMany batch-loads one relationship for a set of parent entities: it
// collects the parents' key values, issues a single WHERE key IN (...)
// query and attaches the matching child rows to each parent. This replaces
// the per-parent lazy loads that an N+1 tracker would flag.
func (s *Session) LoadMany(ctx context.Context, parents []Entity, relationship string) error {
	if len(parents) == 0 {
		return nil
	}
	rel, ok := core.FindRelationship(parents[0].Relationships(), relationship)
	if !ok {
		return core.Errorf(core.KindQuerySyntax,
			"%s has no relationship %q", parents[0].TableName(), relationship)
	}
	localKey := rel.LocalKey
	if localKey == "" {
		localKey = parents[0].PrimaryKey()[0]
	}
	remoteKey := rel.RemoteKey
	if remoteKey == "" {
		remoteKey = parents[0].TableName() + "_id"
	}

	// distinct parent keys, preserving order
	var keys []core.Value
	seen := map[string]bool{}
	for _, p := range parents {
		v := valueOf(p, localKey)
		if v.IsNull() {
			continue
		}
		text := v.Text()
		if !seen[text] {
			seen[text] = true
			keys = append(keys, v)
		}
	}
	if len(keys) == 0 {
		for _, p := range parents {
			if recv, ok := p.(RelatedReceiver); ok {
				recv.SetRelated(relationship, nil)
			}
		}
		return nil
	}

	sel := builder.NewSelect(rel.RelatedTable).
		Filter(sqlgen.Col(remoteKey).In(keys...))
	sql, params, err := sel.Build(s.conn.Dialect())
	if err != nil {
		return err
	}
	rows, err := s.querier().Query(ctx, sql, params)
	if err != nil {
		return err
	}

	byKey := map[string][]core.Row{}
	for _, row := range rows {
		if v, ok := row.Named(remoteKey); ok {
			byKey[v.Text()] = append(byKey[v.Text()], row)
		}
	}
	for _, p := range parents {
		recv, ok := p.(RelatedReceiver)
		if !ok {
			continue
		}
		recv.SetRelated(relationship, byKey[valueOf(p, localKey).Text()])
	}
	return nil
}

// LoadOne lazily loads one parent's relationship rows. Each call counts
// toward the session's N+1 tracker; repeated calls across a result set are
// the pattern LoadMany exists to replace.
func (s *Session) LoadOne(ctx context.Context, parent Entity, relationship string) ([]core.Row, error) {
	if s.tracker != nil {
		s.tracker.Record(parent.TableName(), relationship)
	}
	if err := s.LoadMany(ctx, []Entity{parent}, relationship); err != nil {
		return nil, err
	}
	if dm, ok := parent.(interface {
		RelatedRows(string) ([]core.Row, bool)
	}); ok {
		rows, _ := dm.RelatedRows(relationship)
		return rows, nil
	}
	return nil, nil
}

func valueOf(e Entity, column string) core.Value {
	for _, nv := range e.ToRow() {
		if nv.Name == column {
			return nv.Value
		}
	}
	return core.Null()
}
