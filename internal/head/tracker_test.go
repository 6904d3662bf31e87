package head

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/0xmhha/ownershipworker/internal/retry"
)

type fakeChainClient struct {
	calls   int64
	results []uint64
	errs    []error
}

func (f *fakeChainClient) BlockNumber(ctx context.Context) (uint64, error) {
	i := atomic.AddInt64(&f.calls, 1) - 1
	if int(i) < len(f.errs) && f.errs[i] != nil {
		return 0, f.errs[i]
	}
	idx := int(i)
	if idx >= len(f.results) {
		idx = len(f.results) - 1
	}
	return f.results[idx], nil
}

func TestCellGetBeforeSet(t *testing.T) {
	var c Cell
	_, ok := c.Get()
	require.False(t, ok)
}

func TestCellSetGet(t *testing.T) {
	var c Cell
	c.Set(100)
	v, ok := c.Get()
	require.True(t, ok)
	require.Equal(t, uint64(100), v)
}

func TestTrackerRunPublishesHead(t *testing.T) {
	client := &fakeChainClient{results: []uint64{14282071}}
	cell := &Cell{}
	tracker := NewTracker(client, cell, 10*time.Millisecond, zap.NewNop(), retry.NewLimiter(0, 0))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- tracker.Run(ctx) }()

	require.Eventually(t, func() bool {
		v, ok := cell.Get()
		return ok && v == 14282071
	}, time.Second, time.Millisecond)

	cancel()
	<-done
}

func TestTrackerRetriesOnTransientError(t *testing.T) {
	client := &fakeChainClient{
		errs:    []error{errors.New("connection reset")},
		results: []uint64{14282072},
	}
	cell := &Cell{}
	tracker := NewTracker(client, cell, time.Hour, zap.NewNop(), retry.NewLimiter(0, 0))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- tracker.Run(ctx) }()

	require.Eventually(t, func() bool {
		v, ok := cell.Get()
		return ok && v == 14282072
	}, time.Second, time.Millisecond)

	cancel()
	<-done
}

func TestTrackerStopsOnContextCancel(t *testing.T) {
	client := &fakeChainClient{results: []uint64{1}}
	cell := &Cell{}
	tracker := NewTracker(client, cell, time.Hour, zap.NewNop(), retry.NewLimiter(0, 0))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- tracker.Run(ctx) }()

	require.Eventually(t, func() bool {
		_, ok := cell.Get()
		return ok
	}, time.Second, time.Millisecond)

	cancel()
	err := <-done
	require.ErrorIs(t, err, context.Canceled)
}
