package pool

import (
	"context"
	"fmt"
	"hash/fnv"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/sqlmodel/sqlmodel-go/core"
)

// QueryType hints what kind of statement a sharded SELECT routing decision
// is for.
type QueryType int

const (
	QuerySelect QueryType = iota
	QueryInsert
	QueryUpdate
	QueryDelete
)

// QueryHints steers shard selection for queries that are not tied to a
// single model instance.
type QueryHints struct {
	// TargetShards names explicit shards, bypassing the chooser.
	TargetShards []string
	// ScatterGather fans the query out to every shard.
	ScatterGather bool
	// ShardKeyValue routes by key when set.
	ShardKeyValue *core.Value
	// QueryType is advisory.
	QueryType QueryType
}

// ShardChooser decides shard placement.
type ShardChooser interface {
	// ChooseForModel routes a model write by its shard key value.
	ChooseForModel(shardKey core.Value) (string, error)
	// ChooseForQuery routes a query by its hints.
	ChooseForQuery(hints QueryHints) ([]string, error)
}

// ModuloShardChooser hashes numeric keys by modulo and strings by a stable
// FNV hash. Shards are named <prefix><index>.
type ModuloShardChooser struct {
	shardCount int
	prefix     string
}

// NewModuloShardChooser constructs the chooser. A zero shard count is a
// programmer error and panics.
func NewModuloShardChooser(shardCount int, prefix string) *ModuloShardChooser {
	if shardCount <= 0 {
		panic(fmt.Sprintf("shard count must be positive, got %d", shardCount))
	}
	return &ModuloShardChooser{shardCount: shardCount, prefix: prefix}
}

func (m *ModuloShardChooser) shardName(i uint64) string {
	return fmt.Sprintf("%s%d", m.prefix, i%uint64(m.shardCount))
}

// ChooseForModel implements ShardChooser.
func (m *ModuloShardChooser) ChooseForModel(shardKey core.Value) (string, error) {
	if n, err := shardKey.AsInt64(); err == nil {
		idx := n % int64(m.shardCount)
		if idx < 0 {
			idx += int64(m.shardCount)
		}
		return m.shardName(uint64(idx)), nil
	}
	s, err := shardKey.AsString()
	if err != nil {
		s = shardKey.Text()
	}
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return m.shardName(h.Sum64()), nil
}

// ChooseForQuery implements ShardChooser.
func (m *ModuloShardChooser) ChooseForQuery(hints QueryHints) ([]string, error) {
	if len(hints.TargetShards) > 0 {
		return hints.TargetShards, nil
	}
	if hints.ShardKeyValue != nil {
		name, err := m.ChooseForModel(*hints.ShardKeyValue)
		if err != nil {
			return nil, err
		}
		return []string{name}, nil
	}
	if hints.ScatterGather {
		names := make([]string, m.shardCount)
		for i := range names {
			names[i] = m.shardName(uint64(i))
		}
		return names, nil
	}
	return nil, core.Errorf(core.KindPoolConfig,
		"query hints select no shards: set target shards, a shard key or scatter-gather")
}

// ShardedPool routes models and queries across named shard pools.
type ShardedPool struct {
	chooser ShardChooser

	mu     sync.RWMutex
	shards map[string]*Pool
}

// NewShardedPool creates an empty sharded pool with the given chooser.
func NewShardedPool(chooser ShardChooser) *ShardedPool {
	return &ShardedPool{chooser: chooser, shards: map[string]*Pool{}}
}

// AddShard registers a shard pool under a name.
func (s *ShardedPool) AddShard(name string, p *Pool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shards[name] = p
}

// ShardNames lists the registered shards in sorted order.
func (s *ShardedPool) ShardNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.shards))
	for name := range s.shards {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *ShardedPool) shard(name string) (*Pool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.shards[name]
	if !ok {
		return nil, core.Errorf(core.KindPoolConfig, "shard %q is not registered", name)
	}
	return p, nil
}

// AcquireForModel routes a write by the model's shard key.
func (s *ShardedPool) AcquireForModel(ctx context.Context, m core.Model) (*PooledConnection, string, error) {
	key, ok := m.ShardKeyValue()
	if !ok {
		return nil, "", core.Errorf(core.KindPoolConfig,
			"%s has no shard key", m.TableName())
	}
	name, err := s.chooser.ChooseForModel(key)
	if err != nil {
		return nil, "", err
	}
	p, err := s.shard(name)
	if err != nil {
		return nil, "", err
	}
	conn, err := p.Acquire(ctx)
	if err != nil {
		return nil, "", err
	}
	return conn, name, nil
}

// AcquireForQuery fans out to the shards the hints select and returns one
// connection per shard. Partial failures still return the shards that
// succeeded; only when every shard fails does the combined acquisition
// fail as exhausted.
func (s *ShardedPool) AcquireForQuery(ctx context.Context, hints QueryHints) (map[string]*PooledConnection, error) {
	names, err := s.chooser.ChooseForQuery(hints)
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return nil, core.Errorf(core.KindPoolConfig, "query hints select no shards")
	}

	var mu sync.Mutex
	conns := map[string]*PooledConnection{}
	errs := map[string]error{}

	g, gctx := errgroup.WithContext(ctx)
	for _, name := range names {
		name := name
		g.Go(func() error {
			p, err := s.shard(name)
			if err == nil {
				var conn *PooledConnection
				conn, err = p.Acquire(gctx)
				if err == nil {
					mu.Lock()
					conns[name] = conn
					mu.Unlock()
					return nil
				}
			}
			mu.Lock()
			errs[name] = err
			mu.Unlock()
			// individual shard failures are collected, not fatal
			return nil
		})
	}
	_ = g.Wait()

	if len(conns) == 0 {
		e := core.Errorf(core.KindPoolExhausted, "no shard could provide a connection")
		for _, err := range errs {
			e.Cause = err
			break
		}
		return nil, e
	}
	return conns, nil
}

// ReleaseAll returns every connection of a fan-out acquisition.
func ReleaseAll(conns map[string]*PooledConnection) {
	for _, conn := range conns {
		_ = conn.Release()
	}
}

// Close closes every shard pool.
func (s *ShardedPool) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var first error
	for _, p := range s.shards {
		if err := p.Close(ctx); err != nil && first == nil {
			first = err
		}
	}
	return first
}
