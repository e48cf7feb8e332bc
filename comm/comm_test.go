package comm_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/katalvlaran/sensgraph/comm"
)

// TestNewGroup_Validation covers size and rank range checks.
func TestNewGroup_Validation(t *testing.T) {
	_, err := comm.NewGroup(0)
	assert.ErrorIs(t, err, comm.ErrBadSize)

	g, err := comm.NewGroup(3)
	require.NoError(t, err)
	assert.Equal(t, 3, g.Size())

	_, err = g.Comm(3)
	assert.ErrorIs(t, err, comm.ErrBadRank)
	_, err = g.Comm(-1)
	assert.ErrorIs(t, err, comm.ErrBadRank)

	c, err := g.Comm(2)
	require.NoError(t, err)
	assert.Equal(t, 2, c.Rank())
	assert.Equal(t, 3, c.Size())
}

// TestSerial_FastPath checks singleton gathers complete immediately.
func TestSerial_FastPath(t *testing.T) {
	c := comm.Serial()
	assert.Equal(t, 0, c.Rank())
	assert.Equal(t, 1, c.Size())

	got, err := comm.AllGather(context.Background(), c, 42)
	require.NoError(t, err)
	assert.Equal(t, []int{42}, got)
}

// TestAllGather_RankOrdered verifies contributions come back ordered by
// rank on every rank, independent of arrival order.
func TestAllGather_RankOrdered(t *testing.T) {
	g, err := comm.NewGroup(4)
	require.NoError(t, err)

	err = comm.Run(context.Background(), g, func(ctx context.Context, c *comm.Comm) error {
		got, err := comm.AllGather(ctx, c, c.Rank()*10)
		if err != nil {
			return err
		}
		if want := []int{0, 10, 20, 30}; !assert.ObjectsAreEqual(want, got) {
			return fmt.Errorf("rank %d saw %v", c.Rank(), got)
		}

		return nil
	})
	assert.NoError(t, err)
}

// TestAllGather_SuccessiveRounds exercises round reuse: each worker issues
// several gathers back to back and every round must stay internally
// consistent.
func TestAllGather_SuccessiveRounds(t *testing.T) {
	g, err := comm.NewGroup(3)
	require.NoError(t, err)

	err = comm.Run(context.Background(), g, func(ctx context.Context, c *comm.Comm) error {
		for round := 0; round < 5; round++ {
			got, err := comm.AllGather(ctx, c, round*100+c.Rank())
			if err != nil {
				return err
			}
			for rank, v := range got {
				if v != round*100+rank {
					return fmt.Errorf("round %d rank %d saw %v", round, c.Rank(), got)
				}
			}
		}

		return nil
	})
	assert.NoError(t, err)
}

// TestAllGather_CanceledContext checks a canceled waiter is released with
// ctx.Err() and its deposit still completes the round for the others.
func TestAllGather_CanceledContext(t *testing.T) {
	g, err := comm.NewGroup(2)
	require.NoError(t, err)
	c0, err := g.Comm(0)
	require.NoError(t, err)
	c1, err := g.Comm(1)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// The deposit lands before the wait, so the canceled rank errors out
	// but leaves its value behind.
	_, err = comm.AllGather(ctx, c0, 7)
	assert.ErrorIs(t, err, context.Canceled)

	// Rank 1 arrives later and completes the round without blocking.
	got, err := comm.AllGather(context.Background(), c1, 8)
	require.NoError(t, err)
	assert.Equal(t, []int{7, 8}, got)
}

// TestAllGather_RankReuse rejects a second deposit into one round.
func TestAllGather_RankReuse(t *testing.T) {
	g, err := comm.NewGroup(2)
	require.NoError(t, err)
	c0, err := g.Comm(0)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = comm.AllGather(ctx, c0, 1)
	require.ErrorIs(t, err, context.Canceled)

	_, err = comm.AllGather(ctx, c0, 2)
	assert.ErrorIs(t, err, comm.ErrRankReuse)
}

// TestAllGather_TypeMismatch surfaces ErrGatherType when one round mixes
// concrete types.
func TestAllGather_TypeMismatch(t *testing.T) {
	g, err := comm.NewGroup(2)
	require.NoError(t, err)

	err = comm.Run(context.Background(), g, func(ctx context.Context, c *comm.Comm) error {
		if c.Rank() == 0 {
			_, err := comm.AllGather(ctx, c, 1)

			return err
		}
		_, err := comm.AllGather(ctx, c, "one")

		return err
	})
	assert.ErrorIs(t, err, comm.ErrGatherType)
}

// TestRun_SiblingFailureReleasesWaiters demonstrates the abort policy: a
// worker that fails before gathering cancels the shared context, waking a
// sibling blocked in AllGather.
func TestRun_SiblingFailureReleasesWaiters(t *testing.T) {
	g, err := comm.NewGroup(2)
	require.NoError(t, err)
	boom := errors.New("worker exploded")

	err = comm.Run(context.Background(), g, func(ctx context.Context, c *comm.Comm) error {
		if c.Rank() == 0 {
			return boom
		}
		_, err := comm.AllGather(ctx, c, 1)
		// The sibling never gathers, so this rank must be released by
		// cancellation rather than hanging.
		if !errors.Is(err, context.Canceled) {
			return fmt.Errorf("rank 1 expected cancellation, got %v", err)
		}

		return nil
	})
	assert.ErrorIs(t, err, boom)
}

// TestRun_NilArguments covers the launcher sentinels.
func TestRun_NilArguments(t *testing.T) {
	assert.ErrorIs(t, comm.Run(context.Background(), nil, nil), comm.ErrNilGroup)

	g, err := comm.NewGroup(1)
	require.NoError(t, err)
	assert.ErrorIs(t, comm.Run(context.Background(), g, nil), comm.ErrNilWorker)
}
