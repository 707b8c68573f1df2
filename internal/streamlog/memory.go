package streamlog

import (
	"context"
	"fmt"
	"sync"
)

// MemoryLog is an in-process Log with the same trim semantics as RedisLog.
type MemoryLog struct {
	mu     sync.Mutex
	maxLen int
	seq    uint64
	logs   map[string][]Entry
}

func NewMemoryLog(maxLen int) *MemoryLog {
	return &MemoryLog{
		maxLen: maxLen,
		logs:   make(map[string][]Entry),
	}
}

func (l *MemoryLog) Publish(ctx context.Context, key string, record Record) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.seq++
	id := fmt.Sprintf("%d-0", l.seq)

	entries := append(l.logs[key], Entry{ID: id, Record: cloneRecord(record)})
	if l.maxLen > 0 && len(entries) > l.maxLen {
		entries = append([]Entry(nil), entries[len(entries)-l.maxLen:]...)
	}
	l.logs[key] = entries
	return id, nil
}

func (l *MemoryLog) PeekLatest(ctx context.Context, key string) (Entry, bool, error) {
	if err := ctx.Err(); err != nil {
		return Entry{}, false, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	entries := l.logs[key]
	if len(entries) == 0 {
		return Entry{}, false, nil
	}
	last := entries[len(entries)-1]
	return Entry{ID: last.ID, Record: cloneRecord(last.Record)}, true, nil
}

// Len reports how many entries the log at key currently holds.
func (l *MemoryLog) Len(key string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.logs[key])
}

// Entries returns a copy of the log at key, oldest first.
func (l *MemoryLog) Entries(key string) []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Entry, len(l.logs[key]))
	copy(out, l.logs[key])
	return out
}

func cloneRecord(r Record) Record {
	out := make(Record, len(r))
	for i, f := range r {
		out[i] = Field{Name: f.Name, Value: append([]byte(nil), f.Value...)}
	}
	return out
}
