package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	audit "regassist/pkg/platform/audit"
)

type collectingSink struct {
	mu    sync.Mutex
	ids   []uint64
	fails map[uint64]bool
}

func (s *collectingSink) Publish(_ context.Context, it audit.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fails[it.ID] {
		return errors.New("rejected")
	}
	s.ids = append(s.ids, it.ID)
	return nil
}

func (s *collectingSink) seen() []uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]uint64(nil), s.ids...)
}

func TestRingBufferDropsOldest(t *testing.T) {
	b := NewRingBuffer(2)
	for i := uint64(1); i <= 3; i++ {
		b.Enqueue(audit.Item{ID: i})
	}

	assert.Equal(t, 2, b.Len())
	assert.Equal(t, int64(1), b.Dropped())
	batch := b.DequeueBatch(10)
	require.Len(t, batch, 2)
	assert.Equal(t, uint64(2), batch[0].ID)
	assert.Equal(t, uint64(3), batch[1].ID)
	assert.Nil(t, b.DequeueBatch(1))
}

func TestWorkerForwardsInOrder(t *testing.T) {
	sink := &collectingSink{fails: map[uint64]bool{2: true}}
	w := NewWorker(sink, 16, WithBatchSize(2))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	for i := uint64(1); i <= 5; i++ {
		require.NoError(t, w.Publish(ctx, audit.Item{ID: i}))
	}
	assert.Eventually(t, func() bool { return len(sink.seen()) == 4 }, time.Second, 5*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
	assert.Equal(t, []uint64{1, 3, 4, 5}, sink.seen())
	assert.Zero(t, w.Pending())
}

func TestWorkerDrainsOnShutdown(t *testing.T) {
	sink := &collectingSink{}
	w := NewWorker(sink, 16)
	for i := uint64(1); i <= 3; i++ {
		require.NoError(t, w.Publish(context.Background(), audit.Item{ID: i}))
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, w.Run(ctx), context.Canceled)

	assert.Equal(t, []uint64{1, 2, 3}, sink.seen())
}
