// Package session implements a unit of work over a single connection: an
// identity map, pending change sets flushed in dependency order inside one
// transaction, batch relationship loading and N+1 query detection.
package session

import (
	"context"
	"strings"

	"github.com/sqlmodel/sqlmodel-go/core"
	"github.com/sqlmodel/sqlmodel-go/internal/debug"
	"github.com/sqlmodel/sqlmodel-go/query/builder"
	"github.com/sqlmodel/sqlmodel-go/query/sqlgen"
)

// Entity is what a session manages: model metadata plus the mutation hooks
// the flush needs for key back-fill and persistence state.
type Entity interface {
	core.Model
	SetColumn(column string, v core.Value)
	MarkPersisted()
	FromRow(core.Row)
}

// objectKey identifies one persistent instance in the identity map.
type objectKey struct {
	table string
	pk    string
}

func keyOf(table string, pks []core.Value) objectKey {
	parts := make([]string, len(pks))
	for i, v := range pks {
		parts[i] = v.Text()
	}
	return objectKey{table: table, pk: strings.Join(parts, "\x1f")}
}

// Option configures a session.
type Option func(*Session)

// WithAutoflush flushes pending changes before each Get.
func WithAutoflush() Option {
	return func(s *Session) { s.autoflush = true }
}

// WithN1Tracking attaches an N+1 query tracker.
func WithN1Tracking() Option {
	return func(s *Session) { s.tracker = NewN1QueryTracker(DefaultN1Threshold) }
}

// Session is a unit of work bound to one connection. It is not safe for
// parallel use.
type Session struct {
	conn core.Connection
	tx   core.Transaction

	identity       map[objectKey]Entity
	pendingNew     []Entity
	pendingDirty   []Entity
	pendingDeleted []Entity

	autoflush bool
	tracker   *N1QueryTracker
}

// New creates a session on a connection.
func New(conn core.Connection, opts ...Option) *Session {
	s := &Session{conn: conn, identity: map[objectKey]Entity{}}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Tracker returns the session's N+1 tracker, or nil when tracking is off.
func (s *Session) Tracker() *N1QueryTracker {
	return s.tracker
}

// Add registers a transient entity for insertion on the next flush. Adding
// an already-persistent entity is a no-op.
func (s *Session) Add(e Entity) {
	if !e.IsNew() {
		return
	}
	for _, have := range s.pendingNew {
		if have == e {
			return
		}
	}
	s.pendingNew = append(s.pendingNew, e)
}

// MarkDirty registers a persistent entity for update on the next flush.
func (s *Session) MarkDirty(e Entity) {
	if e.IsNew() {
		return
	}
	for _, have := range s.pendingDirty {
		if have == e {
			return
		}
	}
	s.pendingDirty = append(s.pendingDirty, e)
}

// Delete registers a persistent entity for deletion. Deleting a pending-new
// entity simply unregisters it.
func (s *Session) Delete(e Entity) {
	for i, have := range s.pendingNew {
		if have == e {
			s.pendingNew = append(s.pendingNew[:i], s.pendingNew[i+1:]...)
			return
		}
	}
	for _, have := range s.pendingDeleted {
		if have == e {
			return
		}
	}
	s.pendingDeleted = append(s.pendingDeleted, e)
}

// Get loads an entity by primary key. An identity-map hit returns the
// tracked instance without touching the database; a miss selects by PK,
// populates target, caches and returns it. Returns nil when no row matches.
func (s *Session) Get(ctx context.Context, target Entity, pk ...core.Value) (Entity, error) {
	if s.autoflush && s.hasPending() {
		if err := s.Flush(ctx); err != nil {
			return nil, err
		}
	}
	key := keyOf(target.TableName(), pk)
	if tracked, ok := s.identity[key]; ok {
		return tracked, nil
	}

	pkCols := target.PrimaryKey()
	if len(pkCols) != len(pk) {
		return nil, core.Errorf(core.KindQuerySyntax,
			"%s has %d primary key columns, got %d values",
			target.TableName(), len(pkCols), len(pk))
	}
	sel := builder.NewSelectModel(target)
	for i, col := range pkCols {
		sel.Filter(sqlgen.Col(col).Eq(pk[i]))
	}
	sql, params, err := sel.Build(s.conn.Dialect())
	if err != nil {
		return nil, err
	}
	row, err := s.querier().QueryOne(ctx, sql, params)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, nil
	}
	target.FromRow(*row)
	target.MarkPersisted()
	s.identity[key] = target
	return target, nil
}

func (s *Session) hasPending() bool {
	return len(s.pendingNew)+len(s.pendingDirty)+len(s.pendingDeleted) > 0
}

// querier returns the open transaction when one exists, else the bare
// connection.
func (s *Session) querier() core.Querier {
	if s.tx != nil {
		return s.tx
	}
	return s.conn
}

// ensureTx opens the flush transaction on first use.
func (s *Session) ensureTx(ctx context.Context) (core.Transaction, error) {
	if s.tx != nil {
		return s.tx, nil
	}
	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return nil, err
	}
	s.tx = tx
	return tx, nil
}

// Flush writes pending changes in order: inserts parents-before-children,
// then updates, then deletes children-before-parents, all on one
// transaction. On success the pending sets clear; on error they are left
// untouched and the session remains usable.
func (s *Session) Flush(ctx context.Context) error {
	if !s.hasPending() {
		return nil
	}
	tx, err := s.ensureTx(ctx)
	if err != nil {
		return err
	}
	d := s.conn.Dialect()

	inserted := make([]Entity, 0, len(s.pendingNew))
	for _, e := range sortByForeignKeys(s.pendingNew, false) {
		if err := s.insertOne(ctx, tx, d, e); err != nil {
			return err
		}
		inserted = append(inserted, e)
	}
	for _, e := range s.pendingDirty {
		sql, params, err := builder.NewUpdate(e).Build(d)
		if err != nil {
			return err
		}
		if _, err := tx.Execute(ctx, sql, params); err != nil {
			return err
		}
	}
	for _, e := range sortByForeignKeys(s.pendingDeleted, true) {
		if e.Inheritance().Strategy == core.InheritJoined {
			if _, err := deleteJoined(ctx, tx, d, e); err != nil {
				return err
			}
			continue
		}
		sql, params, err := builder.NewDeleteFromModel(e).Build(d)
		if err != nil {
			return err
		}
		if _, err := tx.Execute(ctx, sql, params); err != nil {
			return err
		}
	}

	for _, e := range inserted {
		e.MarkPersisted()
		s.identity[keyOf(e.TableName(), e.PrimaryKeyValue())] = e
	}
	for _, e := range s.pendingDeleted {
		delete(s.identity, keyOf(e.TableName(), e.PrimaryKeyValue()))
	}
	updated, deleted := len(s.pendingDirty), len(s.pendingDeleted)
	s.pendingNew = nil
	s.pendingDirty = nil
	s.pendingDeleted = nil
	debug.Debug("session: flushed",
		"inserted", len(inserted), "updated", updated, "deleted", deleted)
	if obs := console(); obs != nil {
		obs.FlushCompleted(len(inserted), updated, deleted)
	}
	return nil
}

// insertOne writes one pending-new entity and back-fills its generated key.
func (s *Session) insertOne(ctx context.Context, tx core.Transaction, d core.Dialect, e Entity) error {
	if e.Inheritance().Strategy == core.InheritJoined {
		id, err := builder.JoinedInsertOn(ctx, tx, d, e)
		if err != nil {
			return err
		}
		backfill(e, id)
		return nil
	}
	ins := builder.NewInsert(e)
	_, hasAuto := core.AutoIncrementColumn(e)
	if hasAuto && d == core.Postgres {
		ins.Returning()
	}
	sql, params, err := ins.Build(d)
	if err != nil {
		return err
	}
	if hasAuto {
		id, err := tx.Insert(ctx, sql, params)
		if err != nil {
			return err
		}
		backfill(e, id)
		return nil
	}
	_, err = tx.Execute(ctx, sql, params)
	return err
}

// backfill writes a generated key into the entity's auto-increment column.
func backfill(e Entity, id int64) {
	if id == 0 {
		return
	}
	if col, ok := core.AutoIncrementColumn(e); ok {
		e.SetColumn(col, core.BigInt(id))
	}
}

// Commit flushes and commits the underlying transaction.
func (s *Session) Commit(ctx context.Context) error {
	if err := s.Flush(ctx); err != nil {
		return err
	}
	if s.tx == nil {
		return nil
	}
	err := s.tx.Commit(ctx)
	s.tx = nil
	return err
}

// Rollback discards pending changes and rolls back the transaction.
func (s *Session) Rollback(ctx context.Context) error {
	s.pendingNew = nil
	s.pendingDirty = nil
	s.pendingDeleted = nil
	if s.tx == nil {
		return nil
	}
	err := s.tx.Rollback(ctx)
	s.tx = nil
	return err
}

// Expunge removes an entity from the identity map without touching the
// database.
func (s *Session) Expunge(e Entity) {
	delete(s.identity, keyOf(e.TableName(), e.PrimaryKeyValue()))
}

// sortByForeignKeys orders entities so that foreign key targets come first;
// reverse flips the order for deletes.
func sortByForeignKeys(entities []Entity, reverse bool) []Entity {
	byTable := map[string][]Entity{}
	var tables []string
	for _, e := range entities {
		t := e.TableName()
		if _, seen := byTable[t]; !seen {
			tables = append(tables, t)
		}
		byTable[t] = append(byTable[t], e)
	}

	// parent tables referenced by each table's FK columns
	parents := map[string][]string{}
	for _, e := range entities {
		t := e.TableName()
		if len(parents[t]) > 0 {
			continue
		}
		for _, f := range e.Fields() {
			if f.ForeignKey == "" {
				continue
			}
			ref := f.ForeignKey
			for i := 0; i < len(ref); i++ {
				if ref[i] == '.' {
					ref = ref[:i]
					break
				}
			}
			parents[t] = append(parents[t], ref)
		}
	}

	state := map[string]int{}
	var order []string
	var visit func(t string)
	visit = func(t string) {
		if state[t] != 0 {
			return
		}
		state[t] = 1
		for _, p := range parents[t] {
			if _, known := byTable[p]; known && p != t {
				visit(p)
			}
		}
		state[t] = 2
		order = append(order, t)
	}
	for _, t := range tables {
		visit(t)
	}
	if reverse {
		for i, j := 0, len(order)-1; i < j; i, j = i+1, j-1 {
			order[i], order[j] = order[j], order[i]
		}
	}

	out := make([]Entity, 0, len(entities))
	for _, t := range order {
		out = append(out, byTable[t]...)
	}
	return out
}

// deleteJoined removes a joined-inheritance entity child tables first.
func deleteJoined(ctx context.Context, tx core.Transaction, d core.Dialect, e Entity) (int64, error) {
	pkCols := e.Inheritance().ParentPrimaryKey
	if len(pkCols) == 0 {
		pkCols = e.PrimaryKey()
	}
	pkVals := e.PrimaryKeyValue()

	tables := []string{e.TableName()}
	seen := map[string]bool{e.TableName(): true}
	for _, f := range e.Fields() {
		if f.Table != "" && !seen[f.Table] {
			seen[f.Table] = true
			tables = append(tables, f.Table)
		}
	}
	if parent := e.Inheritance().ParentTable; parent != "" && !seen[parent] {
		tables = append(tables, parent)
	}

	var total int64
	for _, table := range tables {
		del := builder.NewDelete(table)
		for i, col := range pkCols {
			del.Filter(sqlgen.Col(col).Eq(pkVals[i]))
		}
		sql, params, err := del.Build(d)
		if err != nil {
			return total, err
		}
		n, err := tx.Execute(ctx, sql, params)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}
