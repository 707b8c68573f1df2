package fall

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/your-org/falldetect/internal/models"
	"github.com/your-org/falldetect/internal/observability"
	"github.com/your-org/falldetect/internal/streamlog"
)

// HistorySink persists velocity histories keyed by track id.
type HistorySink interface {
	Flush(ctx context.Context, batch map[int][]float64) error
}

// Notifier is told about every track id that newly latched as fallen.
type Notifier interface {
	NotifyFall(ctx context.Context, event models.FallEvent) error
}

// Stage is the fall-detection transform of one camera: it reads a
// tracked-objects record and returns the same frame with every
// observation annotated.
type Stage struct {
	cameraID      string
	detector      *Detector
	history       HistorySink
	notifier      Notifier
	flushInterval time.Duration
}

type StageOption func(*Stage)

func WithHistorySink(sink HistorySink, interval time.Duration) StageOption {
	return func(s *Stage) {
		s.history = sink
		s.flushInterval = interval
	}
}

func WithNotifier(n Notifier) StageOption {
	return func(s *Stage) { s.notifier = n }
}

func NewStage(cameraID string, detector *Detector, opts ...StageOption) *Stage {
	s := &Stage{
		cameraID:      cameraID,
		detector:      detector,
		flushInterval: time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Apply runs the detector over one record.
func (s *Stage) Apply(ctx context.Context, in streamlog.Record) (streamlog.Record, error) {
	frame, ok := in.Get(streamlog.FieldFrame)
	if !ok {
		return nil, fmt.Errorf("%w: missing %s field", models.ErrMalformedRecord, streamlog.FieldFrame)
	}
	rawInfo, ok := in.Get(streamlog.FieldFrameInfo)
	if !ok {
		return nil, fmt.Errorf("%w: missing %s field", models.ErrMalformedRecord, streamlog.FieldFrameInfo)
	}

	info, skipped, err := models.ParseFrameInfo(rawInfo)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	res := s.detector.ProcessFrame(info.Timestamp(), info.Objects)
	observability.StageDuration.WithLabelValues("detect").Observe(time.Since(start).Seconds())

	skipped = append(skipped, res.Skipped...)
	if len(skipped) > 0 {
		observability.ObservationsSkipped.WithLabelValues(s.cameraID).Add(float64(len(skipped)))
		for _, err := range skipped {
			slog.Debug("skip observation", "camera_id", s.cameraID, "error", err)
		}
	}

	objects := make([]models.Observation, 0, len(res.Evaluations))
	for _, ev := range res.Evaluations {
		objects = append(objects, annotate(ev))
		if ev.NewlyLatched {
			s.reportFall(ctx, info, frame, ev)
		}
	}
	info.Objects = objects

	s.flushHistory(ctx)

	observability.TrackedIDs.WithLabelValues(s.cameraID).Set(float64(s.detector.TrackedCount()))
	observability.LatchedIDs.WithLabelValues(s.cameraID).Set(float64(s.detector.LatchedCount()))

	out, err := info.Marshal()
	if err != nil {
		return nil, fmt.Errorf("marshal frame info: %w", err)
	}
	return streamlog.NewFrameRecord(frame, out), nil
}

func annotate(ev Evaluation) models.Observation {
	obs := ev.Observation
	center := ev.Center
	velocity := ev.Velocity
	angle := ev.AngleToVertical
	falling := ev.State == Falling

	obs.Center = &center
	obs.Velocity = &velocity
	obs.AngleToVertical = &angle
	obs.FallDetected = &falling
	obs.Status = ev.State.String()
	return obs
}

func (s *Stage) reportFall(ctx context.Context, info *models.FrameInfo, frame []byte, ev Evaluation) {
	observability.FallsDetected.WithLabelValues(s.cameraID).Inc()
	slog.Info("fall detected",
		"camera_id", s.cameraID,
		"track_id", ev.Observation.ID,
		"max_velocity", ev.MaxVelocity,
		"angle_to_vertical", ev.AngleToVertical,
		"shoulder_drop", ev.ShoulderDrop,
	)

	if s.notifier == nil {
		return
	}
	event := models.FallEvent{
		ID:              uuid.New(),
		CameraID:        s.cameraID,
		TrackID:         ev.Observation.ID,
		DetectedAt:      info.Timestamp(),
		FrameTime:       info.Time,
		BBox:            ev.Observation.BBox,
		Velocity:        ev.Velocity,
		MaxVelocity:     ev.MaxVelocity,
		AngleToVertical: ev.AngleToVertical,
		ShoulderDrop:    ev.ShoulderDrop,
		Frame:           frame,
	}
	if err := s.notifier.NotifyFall(ctx, event); err != nil {
		slog.Error("notify fall", "camera_id", s.cameraID, "track_id", event.TrackID, "error", err)
	}
}

func (s *Stage) flushHistory(ctx context.Context) {
	if s.history == nil {
		return
	}
	batch := s.detector.DueForFlush(s.flushInterval)
	if len(batch) == 0 {
		return
	}

	start := time.Now()
	if err := s.history.Flush(ctx, batch); err != nil {
		slog.Warn("flush velocity history", "camera_id", s.cameraID, "ids", len(batch), "error", err)
		observability.DiagnosticsFlushes.WithLabelValues(s.cameraID, "error").Inc()
		return
	}
	observability.DiagnosticsFlushes.WithLabelValues(s.cameraID, "ok").Inc()
	observability.StageDuration.WithLabelValues("diagnostics").Observe(time.Since(start).Seconds())
}
