// Package alert fans newly latched falls out of the detector: the frame
// goes to object storage and the event goes onto the message bus.
package alert

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/your-org/falldetect/internal/models"
)

// SnapshotStore uploads fall snapshots.
type SnapshotStore interface {
	PutObject(ctx context.Context, key string, data []byte, contentType string) error
}

// EventPublisher delivers fall events to subscribers.
type EventPublisher interface {
	PublishFall(ctx context.Context, event models.FallEvent) error
}

// Publisher implements fall.Notifier.
type Publisher struct {
	snapshots SnapshotStore
	events    EventPublisher
	timeout   time.Duration
}

// NewPublisher returns a Publisher. A nil snapshots store disables
// snapshot uploads.
func NewPublisher(snapshots SnapshotStore, events EventPublisher) *Publisher {
	return &Publisher{snapshots: snapshots, events: events, timeout: 5 * time.Second}
}

// SnapshotKey is the object key of the frame a fall was detected on.
func SnapshotKey(cameraID string, trackID int, at time.Time) string {
	return fmt.Sprintf("falls/%s/%d_%d.jpg", cameraID, trackID, at.UnixMilli())
}

// NotifyFall uploads the snapshot, then publishes the event. A failed
// upload is logged and the event goes out without a snapshot key.
func (p *Publisher) NotifyFall(ctx context.Context, event models.FallEvent) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	if p.snapshots != nil && len(event.Frame) > 0 {
		key := SnapshotKey(event.CameraID, event.TrackID, event.DetectedAt)
		if err := p.snapshots.PutObject(ctx, key, event.Frame, "image/jpeg"); err != nil {
			slog.Warn("upload fall snapshot", "camera_id", event.CameraID, "track_id", event.TrackID, "error", err)
		} else {
			event.SnapshotKey = key
		}
	}

	if err := p.events.PublishFall(ctx, event); err != nil {
		return fmt.Errorf("publish fall %s: %w", event.ID, err)
	}
	slog.Debug("fall published", "camera_id", event.CameraID, "track_id", event.TrackID, "event_id", event.ID, "snapshot_key", event.SnapshotKey)
	return nil
}
