package alert

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/your-org/falldetect/internal/models"
	"github.com/your-org/falldetect/internal/observability"
)

// ErrQueueFull is returned when an alert is dropped because delivery is
// backed up.
var ErrQueueFull = errors.New("alert queue full")

// DefaultQueueSize bounds the alerts waiting for delivery.
const DefaultQueueSize = 64

// Notifier delivers one fall event.
type Notifier interface {
	NotifyFall(ctx context.Context, event models.FallEvent) error
}

// Queue hands fall events to a Notifier on its own goroutine so a slow
// object store or broker never stalls the camera loops.
type Queue struct {
	next   Notifier
	events chan models.FallEvent
	done   chan struct{}
	once   sync.Once
}

func NewQueue(next Notifier, size int) *Queue {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &Queue{
		next:   next,
		events: make(chan models.FallEvent, size),
		done:   make(chan struct{}),
	}
}

// NotifyFall enqueues event without blocking. It returns ErrQueueFull when
// the queue has no room.
func (q *Queue) NotifyFall(_ context.Context, event models.FallEvent) error {
	select {
	case q.events <- event:
		return nil
	default:
		observability.AlertsDropped.WithLabelValues(event.CameraID).Inc()
		return ErrQueueFull
	}
}

// Run delivers queued events until Close is called and the queue is drained.
// Delivery outlives the camera that raised the alert.
func (q *Queue) Run() {
	defer close(q.done)
	for event := range q.events {
		if err := q.next.NotifyFall(context.Background(), event); err != nil {
			slog.Error("deliver fall alert", "camera_id", event.CameraID, "track_id", event.TrackID, "event_id", event.ID, "error", err)
		}
	}
}

// Close stops accepting events and waits for Run to drain the queue or for
// ctx to end. No NotifyFall call may happen after Close.
func (q *Queue) Close(ctx context.Context) error {
	q.once.Do(func() { close(q.events) })
	select {
	case <-q.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
