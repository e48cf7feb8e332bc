// Package comm declares Group, Comm, the AllGather collective and the Run
// launcher.
//
// Errors:
//
//	ErrBadSize    - group size < 1.
//	ErrBadRank    - rank outside [0, size).
//	ErrNilComm    - nil Comm passed to a collective.
//	ErrNilGroup   - nil Group passed to Run.
//	ErrNilWorker  - nil worker function passed to Run.
//	ErrRankReuse  - a rank contributed twice to one collective round.
//	ErrGatherType - a round mixed value types across ranks.
package comm

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Sentinel errors for group construction and collectives.
var (
	// ErrBadSize indicates a group size below 1.
	ErrBadSize = errors.New("comm: group size must be positive")

	// ErrBadRank indicates a rank outside [0, size).
	ErrBadRank = errors.New("comm: rank out of range")

	// ErrNilComm indicates a nil Comm handle passed to a collective.
	ErrNilComm = errors.New("comm: nil comm")

	// ErrNilGroup indicates a nil Group passed to Run.
	ErrNilGroup = errors.New("comm: nil group")

	// ErrNilWorker indicates a nil worker function passed to Run.
	ErrNilWorker = errors.New("comm: nil worker function")

	// ErrRankReuse indicates one rank contributed twice to the same
	// collective round.
	ErrRankReuse = errors.New("comm: rank already contributed to this round")

	// ErrGatherType indicates a collective round mixed value types.
	ErrGatherType = errors.New("comm: gather value type mismatch")
)

// Group is a fixed-size set of ranks sharing collectives.
type Group struct {
	size int

	mu  sync.Mutex
	cur *round // in-flight collective; nil between rounds
}

// round is one in-flight collective exchange.
type round struct {
	vals []any         // contribution per rank
	got  []bool        // rank contributed?
	n    int           // contributions so far
	done chan struct{} // closed when n == len(vals)
	out  []any         // immutable snapshot, set before done closes
}

// NewGroup creates a group of size ranks.
func NewGroup(size int) (*Group, error) {
	if size < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrBadSize, size)
	}

	return &Group{size: size}, nil
}

// Size returns the number of ranks in the group.
func (g *Group) Size() int { return g.size }

// Comm returns the handle for rank.
func (g *Group) Comm(rank int) (*Comm, error) {
	if rank < 0 || rank >= g.size {
		return nil, fmt.Errorf("%w: %d outside [0, %d)", ErrBadRank, rank, g.size)
	}

	return &Comm{group: g, rank: rank}, nil
}

// Comms returns one handle per rank, rank-ordered.
func (g *Group) Comms() []*Comm {
	out := make([]*Comm, g.size)
	for rank := range out {
		out[rank] = &Comm{group: g, rank: rank}
	}

	return out
}

// Comm is one rank's handle into its Group.
type Comm struct {
	group *Group
	rank  int
}

// Serial returns the rank-0 handle of a fresh single-rank group.
// Collectives on it complete immediately.
func Serial() *Comm {
	g, err := NewGroup(1)
	if err != nil {
		// Unreachable: NewGroup(1) cannot fail.
		panic(err)
	}

	return &Comm{group: g, rank: 0}
}

// Rank returns this handle's rank within its group.
func (c *Comm) Rank() int { return c.rank }

// Size returns the group size.
func (c *Comm) Size() int { return c.group.size }

// AllGather contributes val to the group's current collective round and
// blocks until every rank has contributed, returning all contributions
// ordered by rank.
//
// A canceled ctx releases the caller with ctx.Err(); its contribution
// stays in the round so the remaining ranks can still complete it. All
// ranks of one round must contribute the same concrete type T.
func AllGather[T any](ctx context.Context, c *Comm, val T) ([]T, error) {
	if c == nil {
		return nil, ErrNilComm
	}
	if ctx == nil {
		ctx = context.Background()
	}
	g := c.group
	// Singleton groups need no synchronization.
	if g.size == 1 {
		return []T{val}, nil
	}

	// 1. Deposit the contribution under the group lock.
	g.mu.Lock()
	if g.cur == nil {
		g.cur = &round{
			vals: make([]any, g.size),
			got:  make([]bool, g.size),
			done: make(chan struct{}),
		}
	}
	r := g.cur
	if r.got[c.rank] {
		g.mu.Unlock()

		return nil, fmt.Errorf("%w: rank %d", ErrRankReuse, c.rank)
	}
	r.vals[c.rank] = val
	r.got[c.rank] = true
	r.n++
	if r.n == g.size {
		// Last arriver completes the round and opens the next one.
		r.out = r.vals
		g.cur = nil
		close(r.done)
	}
	g.mu.Unlock()

	// 2. Wait for the round to complete (or the context to release us).
	select {
	case <-r.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	// 3. Decode the rank-ordered snapshot.
	out := make([]T, g.size)
	for rank, v := range r.out {
		tv, ok := v.(T)
		if !ok {
			return nil, fmt.Errorf("%w: rank %d contributed %T", ErrGatherType, rank, v)
		}
		out[rank] = tv
	}

	return out, nil
}

// Run launches fn once per rank of g and waits for all of them.
// Workers share an errgroup context: the first failure cancels it, waking
// any sibling blocked in a collective. Returns the first worker error.
func Run(ctx context.Context, g *Group, fn func(ctx context.Context, c *Comm) error) error {
	if g == nil {
		return ErrNilGroup
	}
	if fn == nil {
		return ErrNilWorker
	}
	if ctx == nil {
		ctx = context.Background()
	}
	eg, ctx := errgroup.WithContext(ctx)
	for _, c := range g.Comms() {
		c := c
		eg.Go(func() error { return fn(ctx, c) })
	}

	return eg.Wait()
}
