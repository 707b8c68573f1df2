// Package pipeline runs one poll, transform, publish loop per camera and
// supervises those loops.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/your-org/falldetect/internal/models"
	"github.com/your-org/falldetect/internal/observability"
	"github.com/your-org/falldetect/internal/streamlog"
)

// Transform turns one upstream record into one downstream record.
type Transform interface {
	Apply(ctx context.Context, in streamlog.Record) (streamlog.Record, error)
}

type TransformFunc func(ctx context.Context, in streamlog.Record) (streamlog.Record, error)

func (f TransformFunc) Apply(ctx context.Context, in streamlog.Record) (streamlog.Record, error) {
	return f(ctx, in)
}

// Runner moves records of one camera from an upstream log to a downstream
// log. At most one record is in flight; outputs keep input order.
type Runner struct {
	cameraID  string
	log       streamlog.Log
	consumer  *streamlog.Consumer
	outKey    string
	transform Transform
	idle      time.Duration
}

func NewRunner(cameraID string, log streamlog.Log, inKey, outKey string, transform Transform, idle time.Duration) *Runner {
	return &Runner{
		cameraID:  cameraID,
		log:       log,
		consumer:  streamlog.NewConsumer(log, inKey, cameraID),
		outKey:    outKey,
		transform: transform,
		idle:      idle,
	}
}

// Run loops until ctx is cancelled. It waits idle between polls that find
// nothing new.
func (r *Runner) Run(ctx context.Context) {
	slog.Info("runner started", "camera_id", r.cameraID, "out", r.outKey)
	defer slog.Info("runner stopped", "camera_id", r.cameraID)

	for ctx.Err() == nil {
		if r.Step(ctx) {
			continue
		}
		if r.idle <= 0 {
			continue
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(r.idle):
		}
	}
}

// Step handles at most one new upstream entry and reports whether there
// was one. Failures are logged; they never stop the loop.
func (r *Runner) Step(ctx context.Context) bool {
	entry, ok := r.consumer.Poll(ctx)
	if !ok {
		return false
	}

	start := time.Now()
	out, err := r.transform.Apply(ctx, entry.Record)
	if err != nil {
		if errors.Is(err, models.ErrMalformedRecord) {
			slog.Warn("skip malformed record", "camera_id", r.cameraID, "entry_id", entry.ID, "error", err)
		} else {
			slog.Error("transform record", "camera_id", r.cameraID, "entry_id", entry.ID, "error", err)
		}
		return true
	}

	if _, err := r.log.Publish(ctx, r.outKey, out); err != nil {
		if ctx.Err() == nil {
			slog.Error("publish record", "camera_id", r.cameraID, "key", r.outKey, "error", err)
			observability.PublishErrors.WithLabelValues(r.cameraID).Inc()
		}
		return true
	}

	observability.FramesProcessed.WithLabelValues(r.cameraID).Inc()
	observability.StageDuration.WithLabelValues("frame").Observe(time.Since(start).Seconds())
	return true
}
