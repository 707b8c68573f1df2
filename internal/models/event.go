package models

import (
	"time"

	"github.com/google/uuid"
)

// FallEvent is emitted once per track id when it latches into the falling
// state.
type FallEvent struct {
	ID              uuid.UUID `json:"id" db:"id"`
	CameraID        string    `json:"camera_id" db:"camera_id"`
	TrackID         int       `json:"track_id" db:"track_id"`
	DetectedAt      time.Time `json:"detected_at" db:"detected_at"`
	FrameTime       string    `json:"frame_time" db:"frame_time"`
	BBox            [4]int    `json:"bbox" db:"bbox"`
	Velocity        float64   `json:"velocity" db:"velocity"`
	MaxVelocity     float64   `json:"max_velocity" db:"max_velocity"`
	AngleToVertical float64   `json:"angle_to_vertical" db:"angle_to_vertical"`
	ShoulderDrop    float64   `json:"shoulder_drop" db:"shoulder_drop"`
	SnapshotKey     string    `json:"snapshot_key" db:"snapshot_key"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`

	// Frame holds the encoded image the fall was detected on. It only
	// travels inside the detector process.
	Frame []byte `json:"-" db:"-"`
}
