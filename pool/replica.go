package pool

import (
	"context"
	"math/rand"
	"sync/atomic"

	"github.com/sqlmodel/sqlmodel-go/core"
)

// Strategy selects which replica serves the next read.
type Strategy int

const (
	// RoundRobin cycles through replicas in order.
	RoundRobin Strategy = iota
	// Random picks a replica uniformly at random.
	Random
)

// ReplicaPool routes writes to a primary pool and reads across replicas.
type ReplicaPool struct {
	primary  *Pool
	replicas []*Pool
	strategy Strategy
	next     atomic.Uint64
}

// NewReplicaPool wraps a primary and zero or more replica pools.
func NewReplicaPool(primary *Pool, replicas []*Pool, strategy Strategy) (*ReplicaPool, error) {
	if primary == nil {
		return nil, core.Errorf(core.KindPoolConfig, "replica pool requires a primary")
	}
	return &ReplicaPool{primary: primary, replicas: replicas, strategy: strategy}, nil
}

// AcquireRead acquires from a replica, or from the primary when no
// replicas are configured.
func (r *ReplicaPool) AcquireRead(ctx context.Context) (*PooledConnection, error) {
	if len(r.replicas) == 0 {
		return r.primary.Acquire(ctx)
	}
	var idx int
	switch r.strategy {
	case Random:
		idx = rand.Intn(len(r.replicas))
	default:
		idx = int(r.next.Add(1)-1) % len(r.replicas)
	}
	return r.replicas[idx].Acquire(ctx)
}

// AcquireWrite always acquires from the primary.
func (r *ReplicaPool) AcquireWrite(ctx context.Context) (*PooledConnection, error) {
	return r.primary.Acquire(ctx)
}

// AcquirePrimary acquires from the primary; use it for reads that must see
// the caller's own recent writes.
func (r *ReplicaPool) AcquirePrimary(ctx context.Context) (*PooledConnection, error) {
	return r.primary.Acquire(ctx)
}

// Close closes the primary and every replica pool.
func (r *ReplicaPool) Close(ctx context.Context) error {
	first := r.primary.Close(ctx)
	for _, rep := range r.replicas {
		if err := rep.Close(ctx); err != nil && first == nil {
			first = err
		}
	}
	return first
}
