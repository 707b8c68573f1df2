package streamlog

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStreams answers XADD and XREVRANGE the way a Redis server does:
// exact MAXLEN trimming and string field values on read.
type fakeStreams struct {
	adds    []*redis.XAddArgs
	streams map[string][]redis.XMessage
	seq     int
	err     error
}

func newFakeStreams() *fakeStreams {
	return &fakeStreams{streams: make(map[string][]redis.XMessage)}
}

func (f *fakeStreams) XAdd(_ context.Context, a *redis.XAddArgs) *redis.StringCmd {
	f.adds = append(f.adds, a)
	if f.err != nil {
		return redis.NewStringResult("", f.err)
	}

	pairs := a.Values.([]interface{})
	values := make(map[string]interface{}, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		switch v := pairs[i+1].(type) {
		case []byte:
			values[pairs[i].(string)] = string(v)
		default:
			values[pairs[i].(string)] = v
		}
	}

	f.seq++
	id := fmt.Sprintf("%d-0", f.seq)
	msgs := append(f.streams[a.Stream], redis.XMessage{ID: id, Values: values})
	if a.MaxLen > 0 && int64(len(msgs)) > a.MaxLen {
		msgs = msgs[int64(len(msgs))-a.MaxLen:]
	}
	f.streams[a.Stream] = msgs
	return redis.NewStringResult(id, nil)
}

func (f *fakeStreams) XRevRangeN(_ context.Context, stream, start, stop string, count int64) *redis.XMessageSliceCmd {
	if f.err != nil {
		return redis.NewXMessageSliceCmdResult(nil, f.err)
	}
	if start != "+" || stop != "-" {
		return redis.NewXMessageSliceCmdResult(nil, fmt.Errorf("unexpected range %s %s", start, stop))
	}
	msgs := f.streams[stream]
	out := make([]redis.XMessage, 0, count)
	for i := len(msgs) - 1; i >= 0 && int64(len(out)) < count; i-- {
		out = append(out, msgs[i])
	}
	return redis.NewXMessageSliceCmdResult(out, nil)
}

func (f *fakeStreams) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", f.err)
}

func (f *fakeStreams) Close() error { return nil }

func TestRedisLogPublishTrims(t *testing.T) {
	ctx := context.Background()
	fake := newFakeStreams()
	log := newRedisLog(fake, 3)

	var ids []string
	for i := 0; i < 5; i++ {
		id, err := log.Publish(ctx, "fall:1", frameRecord(fmt.Sprintf("f%d", i)))
		require.NoError(t, err)
		ids = append(ids, id)
	}

	require.Len(t, fake.adds, 5)
	last := fake.adds[4]
	assert.Equal(t, "fall:1", last.Stream)
	assert.EqualValues(t, 3, last.MaxLen)
	assert.False(t, last.Approx, "trimming is exact")
	assert.Equal(t, []interface{}{FieldFrame, []byte("jpeg"), FieldFrameInfo, []byte("f4")}, last.Values)
	assert.Len(t, fake.streams["fall:1"], 3)

	entry, ok, err := log.PeekLatest(ctx, "fall:1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, ids[4], entry.ID)
	info, _ := entry.Record.Get(FieldFrameInfo)
	assert.Equal(t, "f4", string(info))
}

func TestRedisLogPeekLatestRestoresFieldOrder(t *testing.T) {
	ctx := context.Background()
	fake := newFakeStreams()
	log := newRedisLog(fake, 10)

	rec := Record{
		{Name: "zone", Value: []byte("z")},
		{Name: FieldFrameInfo, Value: []byte(`{"starttime":1}`)},
		{Name: "camera", Value: []byte("c")},
		{Name: FieldFrame, Value: []byte("jpeg")},
	}
	_, err := log.Publish(ctx, "tracked:2", rec)
	require.NoError(t, err)

	entry, ok, err := log.PeekLatest(ctx, "tracked:2")
	require.NoError(t, err)
	require.True(t, ok)

	names := make([]string, 0, len(entry.Record))
	for _, f := range entry.Record {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{FieldFrame, FieldFrameInfo, "camera", "zone"}, names)
	frame, _ := entry.Record.Get(FieldFrame)
	assert.Equal(t, []byte("jpeg"), frame)
}

func TestRedisLogPeekLatestEmpty(t *testing.T) {
	log := newRedisLog(newFakeStreams(), 10)

	_, ok, err := log.PeekLatest(context.Background(), "fall:none")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisLogErrors(t *testing.T) {
	ctx := context.Background()
	fake := newFakeStreams()
	log := newRedisLog(fake, 10)

	t.Run("undecodable field", func(t *testing.T) {
		fake.streams["fall:bad"] = []redis.XMessage{{ID: "1-0", Values: map[string]interface{}{FieldFrame: int64(7)}}}
		_, _, err := log.PeekLatest(ctx, "fall:bad")
		assert.ErrorContains(t, err, "1-0")
	})

	t.Run("server unavailable", func(t *testing.T) {
		fake.err = errors.New("connection refused")
		defer func() { fake.err = nil }()

		_, err := log.Publish(ctx, "fall:1", frameRecord("x"))
		assert.ErrorIs(t, err, fake.err)
		_, ok, err := log.PeekLatest(ctx, "fall:1")
		assert.ErrorIs(t, err, fake.err)
		assert.False(t, ok)
		assert.Error(t, log.Ping(ctx))
	})
}
