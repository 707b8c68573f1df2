// Package diagnostics persists per-track velocity histories, one merged
// record per camera, so fall decisions can be inspected after the fact.
package diagnostics

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/your-org/falldetect/internal/config"
)

// History maps a track id, as a decimal string, to its velocity samples.
type History map[string][]float64

// Store loads and saves the history record of one camera. Load returns an
// empty History when nothing has been saved yet.
type Store interface {
	Load(ctx context.Context, cameraID string) (History, error)
	Save(ctx context.Context, cameraID string, h History) error
}

// Sink merges flushed batches into the camera's stored record. Ids absent
// from a batch keep their stored history; ids present are replaced.
type Sink struct {
	cameraID string
	store    Store
	timeout  time.Duration
}

func NewSink(cameraID string, store Store) *Sink {
	return &Sink{cameraID: cameraID, store: store, timeout: 5 * time.Second}
}

// Flush implements fall.HistorySink.
func (s *Sink) Flush(ctx context.Context, batch map[int][]float64) error {
	if len(batch) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	current, err := s.store.Load(ctx, s.cameraID)
	if err != nil {
		return fmt.Errorf("load history %s: %w", s.cameraID, err)
	}
	if current == nil {
		current = make(History, len(batch))
	}
	for id, v := range batch {
		current[strconv.Itoa(id)] = append([]float64(nil), v...)
	}
	if err := s.store.Save(ctx, s.cameraID, current); err != nil {
		return fmt.Errorf("save history %s: %w", s.cameraID, err)
	}
	return nil
}

// NewStore builds the store selected by cfg.Backend. It returns nil for
// the "none" backend.
func NewStore(cfg config.DiagnosticsConfig, objects ObjectClient) (Store, error) {
	switch cfg.Backend {
	case "file":
		return NewFileStore(cfg.Dir), nil
	case "minio":
		if objects == nil {
			return nil, fmt.Errorf("diagnostics backend minio needs an object store")
		}
		return NewObjectStore(objects), nil
	case "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown diagnostics backend %q", cfg.Backend)
	}
}
