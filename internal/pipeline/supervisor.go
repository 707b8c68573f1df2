package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/your-org/falldetect/internal/models"
	"github.com/your-org/falldetect/internal/observability"
	"github.com/your-org/falldetect/internal/streamlog"
)

// StageFactory builds a fresh transform for a camera. Every (re)start gets
// its own instance, so no state is shared between cameras or runs.
type StageFactory func(cameraID string) (Transform, error)

type activeRunner struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Supervisor owns the runner of every active camera.
type Supervisor struct {
	ctx     context.Context
	log     streamlog.Log
	factory StageFactory
	idle    time.Duration

	mu      sync.Mutex
	runners map[string]*activeRunner
}

// NewSupervisor returns a Supervisor whose runners stop when ctx is done.
func NewSupervisor(ctx context.Context, log streamlog.Log, idle time.Duration, factory StageFactory) *Supervisor {
	return &Supervisor{
		ctx:     ctx,
		log:     log,
		factory: factory,
		idle:    idle,
		runners: make(map[string]*activeRunner),
	}
}

// HandleCommand applies a control-plane command.
func (s *Supervisor) HandleCommand(cmd models.CameraCommand) error {
	switch cmd.Action {
	case models.CameraActionAdd, models.CameraActionStart:
		err := s.Start(cmd.CameraID)
		if errors.Is(err, errAlreadyRunning) {
			slog.Info("camera already running", "camera_id", cmd.CameraID)
			return nil
		}
		return err
	case models.CameraActionUpdate:
		s.Stop(cmd.CameraID)
		return s.Start(cmd.CameraID)
	case models.CameraActionDelete, models.CameraActionStop:
		s.Stop(cmd.CameraID)
		return nil
	default:
		return fmt.Errorf("unknown action: %s", cmd.Action)
	}
}

var errAlreadyRunning = errors.New("camera already running")

// Start launches a runner reading TrackedKey(cameraID) and writing
// FallKey(cameraID).
func (s *Supervisor) Start(cameraID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ctx.Err(); err != nil {
		return fmt.Errorf("supervisor stopped: %w", err)
	}
	if _, exists := s.runners[cameraID]; exists {
		return errAlreadyRunning
	}
	transform, err := s.factory(cameraID)
	if err != nil {
		return fmt.Errorf("build stage for %s: %w", cameraID, err)
	}

	ctx, cancel := context.WithCancel(s.ctx)
	ar := &activeRunner{cancel: cancel, done: make(chan struct{})}
	s.runners[cameraID] = ar
	observability.ActiveCameras.Inc()

	runner := NewRunner(cameraID, s.log, streamlog.TrackedKey(cameraID), streamlog.FallKey(cameraID), transform, s.idle)
	go func() {
		defer close(ar.done)
		runner.Run(ctx)
	}()
	return nil
}

// Stop cancels the runner of cameraID and waits for it to exit. Stopping
// a camera that is not running is a no-op.
func (s *Supervisor) Stop(cameraID string) {
	s.mu.Lock()
	ar, exists := s.runners[cameraID]
	if exists {
		delete(s.runners, cameraID)
	}
	s.mu.Unlock()

	if !exists {
		return
	}
	ar.cancel()
	<-ar.done
	observability.ActiveCameras.Dec()
	slog.Info("camera stopped", "camera_id", cameraID)
}

// Active returns the ids of running cameras, sorted.
func (s *Supervisor) Active() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.runners))
	for id := range s.runners {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// StopAll stops every running camera.
func (s *Supervisor) StopAll() {
	for _, id := range s.Active() {
		s.Stop(id)
	}
}
