package alert

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/falldetect/internal/models"
)

// stalledNotifier holds every delivery until release is closed.
type stalledNotifier struct {
	release chan struct{}

	mu        sync.Mutex
	delivered []models.FallEvent
}

func newStalledNotifier() *stalledNotifier {
	return &stalledNotifier{release: make(chan struct{})}
}

func (n *stalledNotifier) NotifyFall(_ context.Context, event models.FallEvent) error {
	<-n.release
	n.mu.Lock()
	defer n.mu.Unlock()
	n.delivered = append(n.delivered, event)
	return nil
}

func (n *stalledNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.delivered)
}

func TestQueueDoesNotWaitForDelivery(t *testing.T) {
	next := newStalledNotifier()
	q := NewQueue(next, 4)
	go q.Run()

	start := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, q.NotifyFall(context.Background(), sampleEvent()))
	}
	assert.Less(t, time.Since(start), 100*time.Millisecond)
	assert.Zero(t, next.count())

	close(next.release)
	require.Eventually(t, func() bool { return next.count() == 3 }, time.Second, time.Millisecond)
	require.NoError(t, q.Close(context.Background()))
}

func TestQueueDropsWhenFull(t *testing.T) {
	next := newStalledNotifier()
	q := NewQueue(next, 1)

	require.NoError(t, q.NotifyFall(context.Background(), sampleEvent()))
	assert.ErrorIs(t, q.NotifyFall(context.Background(), sampleEvent()), ErrQueueFull)

	go q.Run()
	close(next.release)
	require.NoError(t, q.Close(context.Background()))
	assert.Equal(t, 1, next.count(), "queued alerts are drained on close")
}

func TestQueueCloseGivesUp(t *testing.T) {
	next := newStalledNotifier()
	defer close(next.release)
	q := NewQueue(next, 1)
	go q.Run()
	require.NoError(t, q.NotifyFall(context.Background(), sampleEvent()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, q.Close(ctx), context.DeadlineExceeded)
}
