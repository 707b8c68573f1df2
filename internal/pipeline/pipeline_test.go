package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/falldetect/internal/models"
	"github.com/your-org/falldetect/internal/streamlog"
)

func upper(_ context.Context, in streamlog.Record) (streamlog.Record, error) {
	info, _ := in.Get(streamlog.FieldFrameInfo)
	frame, _ := in.Get(streamlog.FieldFrame)
	return streamlog.NewFrameRecord(frame, append([]byte("seen:"), info...)), nil
}

func publish(t *testing.T, log streamlog.Log, key, info string) {
	t.Helper()
	_, err := log.Publish(context.Background(), key, streamlog.NewFrameRecord([]byte("img"), []byte(info)))
	require.NoError(t, err)
}

func latestInfo(t *testing.T, log *streamlog.MemoryLog, key string) string {
	t.Helper()
	entry, ok, err := log.PeekLatest(context.Background(), key)
	require.NoError(t, err)
	require.True(t, ok)
	info, _ := entry.Record.Get(streamlog.FieldFrameInfo)
	return string(info)
}

func TestRunnerStep(t *testing.T) {
	log := streamlog.NewMemoryLog(10)
	r := NewRunner("c1", log, "in", "out", TransformFunc(upper), time.Millisecond)
	ctx := context.Background()

	assert.False(t, r.Step(ctx), "empty upstream")

	publish(t, log, "in", "a")
	assert.True(t, r.Step(ctx))
	assert.False(t, r.Step(ctx), "same entry is not handled twice")
	assert.Equal(t, 1, log.Len("out"))
	assert.Equal(t, "seen:a", latestInfo(t, log, "out"))
}

func TestRunnerSkipsIntermediateEntries(t *testing.T) {
	log := streamlog.NewMemoryLog(10)
	r := NewRunner("c1", log, "in", "out", TransformFunc(upper), time.Millisecond)

	publish(t, log, "in", "a")
	publish(t, log, "in", "b")
	publish(t, log, "in", "c")
	assert.True(t, r.Step(context.Background()))
	assert.False(t, r.Step(context.Background()))

	assert.Equal(t, 1, log.Len("out"))
	assert.Equal(t, "seen:c", latestInfo(t, log, "out"))
}

func TestRunnerTransformErrorIsNotFatal(t *testing.T) {
	log := streamlog.NewMemoryLog(10)
	calls := 0
	fail := TransformFunc(func(ctx context.Context, in streamlog.Record) (streamlog.Record, error) {
		calls++
		if calls == 1 {
			return nil, fmt.Errorf("%w: bad", models.ErrMalformedRecord)
		}
		return upper(ctx, in)
	})
	r := NewRunner("c1", log, "in", "out", fail, time.Millisecond)

	publish(t, log, "in", "bad")
	assert.True(t, r.Step(context.Background()))
	assert.Zero(t, log.Len("out"))

	publish(t, log, "in", "good")
	assert.True(t, r.Step(context.Background()))
	assert.Equal(t, "seen:good", latestInfo(t, log, "out"))
}

type brokenPublish struct {
	*streamlog.MemoryLog
}

func (b brokenPublish) Publish(context.Context, string, streamlog.Record) (string, error) {
	return "", errors.New("connection refused")
}

func TestRunnerPublishErrorIsNotFatal(t *testing.T) {
	mem := streamlog.NewMemoryLog(10)
	publish(t, mem, "in", "a")

	r := NewRunner("c1", brokenPublish{mem}, "in", "out", TransformFunc(upper), time.Millisecond)
	assert.True(t, r.Step(context.Background()))
	assert.False(t, r.Step(context.Background()))
}

func TestRunnerRunStopsOnCancel(t *testing.T) {
	log := streamlog.NewMemoryLog(10)
	r := NewRunner("c1", log, "in", "out", TransformFunc(upper), time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()

	publish(t, log, "in", "x")
	require.Eventually(t, func() bool { return log.Len("out") == 1 }, time.Second, time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("runner did not stop")
	}
}

func TestSupervisorLifecycle(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log := streamlog.NewMemoryLog(10)
	var built atomic.Int32
	sup := NewSupervisor(ctx, log, time.Millisecond, func(string) (Transform, error) {
		built.Add(1)
		return TransformFunc(upper), nil
	})

	require.NoError(t, sup.HandleCommand(models.CameraCommand{Action: models.CameraActionAdd, CameraID: "1"}))
	require.NoError(t, sup.HandleCommand(models.CameraCommand{Action: models.CameraActionAdd, CameraID: "2"}))
	require.NoError(t, sup.HandleCommand(models.CameraCommand{Action: models.CameraActionAdd, CameraID: "1"}))
	assert.Equal(t, []string{"1", "2"}, sup.Active())
	assert.EqualValues(t, 2, built.Load())

	publish(t, log, streamlog.TrackedKey("2"), "f")
	require.Eventually(t, func() bool { return log.Len(streamlog.FallKey("2")) == 1 }, time.Second, time.Millisecond)
	assert.Zero(t, log.Len(streamlog.FallKey("1")))

	require.NoError(t, sup.HandleCommand(models.CameraCommand{Action: models.CameraActionUpdate, CameraID: "1"}))
	assert.EqualValues(t, 3, built.Load(), "update rebuilds the stage")

	require.NoError(t, sup.HandleCommand(models.CameraCommand{Action: models.CameraActionDelete, CameraID: "2"}))
	require.NoError(t, sup.HandleCommand(models.CameraCommand{Action: models.CameraActionStop, CameraID: "missing"}))
	assert.Equal(t, []string{"1"}, sup.Active())

	sup.StopAll()
	assert.Empty(t, sup.Active())
}

func TestSupervisorFactoryError(t *testing.T) {
	sup := NewSupervisor(context.Background(), streamlog.NewMemoryLog(1), time.Millisecond, func(string) (Transform, error) {
		return nil, errors.New("no config")
	})
	assert.Error(t, sup.Start("1"))
	assert.Empty(t, sup.Active())
}

func TestSupervisorStartAfterShutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var built atomic.Int32
	sup := NewSupervisor(ctx, streamlog.NewMemoryLog(1), time.Millisecond, func(string) (Transform, error) {
		built.Add(1)
		return TransformFunc(upper), nil
	})
	cancel()

	err := sup.Start("1")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Error(t, sup.HandleCommand(models.CameraCommand{Action: models.CameraActionAdd, CameraID: "1"}))
	assert.Empty(t, sup.Active())
	assert.Zero(t, built.Load(), "no stage is built once shut down")
}
