// Package streamlog implements the bounded, append-only logs that connect
// pipeline stages, and the latest-value consumer every stage reads with.
package streamlog

import (
	"context"
	"fmt"
)

// Record field names shared by every stage.
const (
	FieldFrame     = "frame"
	FieldFrameInfo = "frame_info"
)

// Field is one named binary value of a Record.
type Field struct {
	Name  string
	Value []byte
}

// Record is an ordered mapping of named binary fields.
type Record []Field

// NewFrameRecord builds the two-field record stages exchange.
func NewFrameRecord(frame, frameInfo []byte) Record {
	return Record{
		{Name: FieldFrame, Value: frame},
		{Name: FieldFrameInfo, Value: frameInfo},
	}
}

// Get returns the value of the first field called name.
func (r Record) Get(name string) ([]byte, bool) {
	for _, f := range r {
		if f.Name == name {
			return f.Value, true
		}
	}
	return nil, false
}

// Entry is a record together with the id the log assigned to it.
type Entry struct {
	ID     string
	Record Record
}

// Log is a set of bounded logs addressed by stream key.
type Log interface {
	// Publish appends record to the log at key and trims it to the
	// configured maximum length, oldest first.
	Publish(ctx context.Context, key string, record Record) (string, error)
	// PeekLatest returns the newest entry of the log at key. The boolean
	// is false when the log holds no entries.
	PeekLatest(ctx context.Context, key string) (Entry, bool, error)
}

// FrameKey is the log the capture stage writes raw frames to.
func FrameKey(cameraID string) string {
	return fmt.Sprintf("cam:%s", cameraID)
}

// TrackedKey is the log the pose stage writes tracked observations to.
func TrackedKey(cameraID string) string {
	return fmt.Sprintf("tracked_cam:%s", cameraID)
}

// FallKey is the log fall-annotated frames are published to.
func FallKey(cameraID string) string {
	return fmt.Sprintf("fall_cam:%s", cameraID)
}
