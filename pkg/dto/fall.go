package dto

import "github.com/google/uuid"

type FallResponse struct {
	ID              uuid.UUID `json:"id"`
	CameraID        string    `json:"camera_id"`
	TrackID         int       `json:"track_id"`
	DetectedAt      string    `json:"detected_at"`
	FrameTime       string    `json:"frame_time,omitempty"`
	BBox            [4]int    `json:"bbox"`
	Velocity        float64   `json:"velocity"`
	MaxVelocity     float64   `json:"max_velocity"`
	AngleToVertical float64   `json:"angle_to_vertical"`
	ShoulderDrop    float64   `json:"shoulder_drop"`
	SnapshotURL     string    `json:"snapshot_url,omitempty"`
	CreatedAt       string    `json:"created_at,omitempty"`
}

type FallListResponse struct {
	Falls []FallResponse `json:"falls"`
	Total int            `json:"total"`
}

type FallQuery struct {
	From   string `form:"from"`
	To     string `form:"to"`
	Limit  int    `form:"limit"`
	Offset int    `form:"offset"`
}

// WSEvent is a WebSocket message for real-time fall delivery.
type WSEvent struct {
	Type     string       `json:"type"` // fall_detected
	CameraID string       `json:"camera_id"`
	Data     FallResponse `json:"data"`
}
