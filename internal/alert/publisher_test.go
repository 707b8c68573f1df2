package alert

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/falldetect/internal/models"
)

type fakeSnapshots struct {
	puts map[string][]byte
	err  error
}

func (f *fakeSnapshots) PutObject(_ context.Context, key string, data []byte, contentType string) error {
	if f.err != nil {
		return f.err
	}
	if f.puts == nil {
		f.puts = make(map[string][]byte)
	}
	f.puts[key] = data
	return nil
}

type fakeEvents struct {
	events []models.FallEvent
	err    error
}

func (f *fakeEvents) PublishFall(_ context.Context, ev models.FallEvent) error {
	f.events = append(f.events, ev)
	return f.err
}

func sampleEvent() models.FallEvent {
	return models.FallEvent{
		ID:         uuid.New(),
		CameraID:   "cam2",
		TrackID:    5,
		DetectedAt: time.UnixMilli(1714557600123),
		Frame:      []byte{0xff, 0xd8},
	}
}

func TestNotifyFallUploadsSnapshot(t *testing.T) {
	snaps := &fakeSnapshots{}
	events := &fakeEvents{}
	p := NewPublisher(snaps, events)

	require.NoError(t, p.NotifyFall(context.Background(), sampleEvent()))

	key := "falls/cam2/5_1714557600123.jpg"
	assert.Equal(t, []byte{0xff, 0xd8}, snaps.puts[key])
	require.Len(t, events.events, 1)
	assert.Equal(t, key, events.events[0].SnapshotKey)
}

func TestNotifyFallSnapshotFailure(t *testing.T) {
	events := &fakeEvents{}
	p := NewPublisher(&fakeSnapshots{err: errors.New("bucket gone")}, events)

	require.NoError(t, p.NotifyFall(context.Background(), sampleEvent()))
	require.Len(t, events.events, 1)
	assert.Empty(t, events.events[0].SnapshotKey)
}

func TestNotifyFallWithoutFrameOrStore(t *testing.T) {
	events := &fakeEvents{}
	ev := sampleEvent()
	ev.Frame = nil

	snaps := &fakeSnapshots{}
	require.NoError(t, NewPublisher(snaps, events).NotifyFall(context.Background(), ev))
	assert.Empty(t, snaps.puts)

	require.NoError(t, NewPublisher(nil, events).NotifyFall(context.Background(), sampleEvent()))
	assert.Len(t, events.events, 2)
}

func TestNotifyFallPublishError(t *testing.T) {
	p := NewPublisher(nil, &fakeEvents{err: errors.New("no responders")})
	assert.Error(t, p.NotifyFall(context.Background(), sampleEvent()))
}
