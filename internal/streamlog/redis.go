package streamlog

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/your-org/falldetect/internal/config"
)

// streamClient is the part of *redis.Client the log uses.
type streamClient interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
	XRevRangeN(ctx context.Context, stream, start, stop string, count int64) *redis.XMessageSliceCmd
	Ping(ctx context.Context) *redis.StatusCmd
	Close() error
}

// RedisLog stores each log as a Redis stream capped with MAXLEN.
type RedisLog struct {
	client streamClient
	maxLen int64
}

func NewRedisLog(cfg config.RedisConfig, maxLen int64) (*RedisLog, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		// Polls treat an unreachable server as "no data", so a failed ping
		// at startup is not fatal.
		slog.Warn("redis ping failed", "addr", cfg.Addr(), "error", err)
	} else {
		slog.Info("connected to redis", "addr", cfg.Addr())
	}

	return newRedisLog(client, maxLen), nil
}

func newRedisLog(client streamClient, maxLen int64) *RedisLog {
	return &RedisLog{client: client, maxLen: maxLen}
}

func (l *RedisLog) Publish(ctx context.Context, key string, record Record) (string, error) {
	values := make([]interface{}, 0, 2*len(record))
	for _, f := range record {
		values = append(values, f.Name, f.Value)
	}

	id, err := l.client.XAdd(ctx, &redis.XAddArgs{
		Stream: key,
		MaxLen: l.maxLen,
		Values: values,
	}).Result()
	if err != nil {
		return "", fmt.Errorf("xadd %s: %w", key, err)
	}
	return id, nil
}

func (l *RedisLog) PeekLatest(ctx context.Context, key string) (Entry, bool, error) {
	msgs, err := l.client.XRevRangeN(ctx, key, "+", "-", 1).Result()
	if err != nil {
		return Entry{}, false, fmt.Errorf("xrevrange %s: %w", key, err)
	}
	if len(msgs) == 0 {
		return Entry{}, false, nil
	}

	record, err := recordFromValues(msgs[0].Values)
	if err != nil {
		return Entry{}, false, fmt.Errorf("decode entry %s on %s: %w", msgs[0].ID, key, err)
	}
	return Entry{ID: msgs[0].ID, Record: record}, true, nil
}

func (l *RedisLog) Ping(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}

func (l *RedisLog) Close() error {
	return l.client.Close()
}

// recordFromValues restores field order from the map go-redis returns:
// frame, then frame_info, then any other fields by name.
func recordFromValues(values map[string]interface{}) (Record, error) {
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		ri, rj := fieldRank(names[i]), fieldRank(names[j])
		if ri != rj {
			return ri < rj
		}
		return names[i] < names[j]
	})

	record := make(Record, 0, len(names))
	for _, name := range names {
		switch v := values[name].(type) {
		case string:
			record = append(record, Field{Name: name, Value: []byte(v)})
		case []byte:
			record = append(record, Field{Name: name, Value: v})
		default:
			return nil, fmt.Errorf("field %s: unexpected type %T", name, v)
		}
	}
	return record, nil
}

func fieldRank(name string) int {
	switch name {
	case FieldFrame:
		return 0
	case FieldFrameInfo:
		return 1
	default:
		return 2
	}
}
