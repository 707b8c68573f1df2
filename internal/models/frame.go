package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/go-playground/validator/v10"
)

var (
	// ErrMalformedRecord marks a log entry whose fields cannot be decoded.
	ErrMalformedRecord = errors.New("malformed record")
	// ErrMalformedObservation marks a single observation that cannot be
	// evaluated. Other observations of the same frame are unaffected.
	ErrMalformedObservation = errors.New("malformed observation")
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// BodyPointCount is the number of leading keypoints the fall heuristic needs:
// shoulders, hips, knees and ankles, left before right.
const BodyPointCount = 8

const (
	LeftShoulder = iota
	RightShoulder
	LeftHip
	RightHip
	LeftKnee
	RightKnee
	LeftAnkle
	RightAnkle
)

// Point is an (x, y) image coordinate. y grows downward.
type Point [2]float64

func (p Point) X() float64 { return p[0] }
func (p Point) Y() float64 { return p[1] }

// Observation is one detected person in one frame.
type Observation struct {
	ID              int       `json:"id" validate:"min=0"`
	CamID           string    `json:"cam_id,omitempty"`
	Class           *int      `json:"class,omitempty"`
	BBox            [4]int    `json:"bbox"`
	BBoxConf        *float64  `json:"bbox_conf,omitempty" validate:"omitempty,gte=0,lte=1"`
	Keypoints       []*Point  `json:"keypoints"`
	KeypointsConf   []float64 `json:"keypoints_conf,omitempty" validate:"omitempty,dive,gte=0,lte=1"`
	Center          *Point    `json:"center,omitempty"`
	Velocity        *float64  `json:"velocity,omitempty" validate:"omitempty,gte=0"`
	AngleToVertical *float64  `json:"angle_to_vertical,omitempty" validate:"omitempty,gte=0,lte=180"`
	FallDetected    *bool     `json:"fall_detected,omitempty"`
	Status          string    `json:"status,omitempty"`
}

// BodyPoints returns the eight keypoints the heuristic reads, or
// ErrMalformedObservation when any of them is missing.
func (o *Observation) BodyPoints() ([BodyPointCount]Point, error) {
	var pts [BodyPointCount]Point
	if len(o.Keypoints) < BodyPointCount {
		return pts, fmt.Errorf("%w: id %d has %d keypoints", ErrMalformedObservation, o.ID, len(o.Keypoints))
	}
	for i := 0; i < BodyPointCount; i++ {
		kp := o.Keypoints[i]
		if kp == nil {
			return pts, fmt.Errorf("%w: id %d keypoint %d is null", ErrMalformedObservation, o.ID, i)
		}
		if math.IsNaN(kp[0]) || math.IsNaN(kp[1]) || math.IsInf(kp[0], 0) || math.IsInf(kp[1], 0) {
			return pts, fmt.Errorf("%w: id %d keypoint %d is not finite", ErrMalformedObservation, o.ID, i)
		}
		pts[i] = *kp
	}
	return pts, nil
}

// FrameInfo is the JSON metadata carried next to every frame.
type FrameInfo struct {
	Time      string        `json:"time"`
	StartTime float64       `json:"starttime" validate:"gt=0"`
	Objects   []Observation `json:"objects"`
	FPS       *float64      `json:"fps,omitempty" validate:"omitempty,gte=0"`
}

// Timestamp converts the capture start time into a time.Time.
func (f *FrameInfo) Timestamp() time.Time {
	sec, frac := math.Modf(f.StartTime)
	return time.Unix(int64(sec), int64(frac*float64(time.Second)))
}

type rawFrameInfo struct {
	Time      string            `json:"time"`
	StartTime float64           `json:"starttime" validate:"gt=0"`
	Objects   []json.RawMessage `json:"objects"`
	FPS       *float64          `json:"fps,omitempty" validate:"omitempty,gte=0"`
}

// ParseFrameInfo decodes frame_info JSON. A frame that cannot be decoded
// yields ErrMalformedRecord. Observations that fail to decode or validate
// are left out of the result and reported individually in skipped.
func ParseFrameInfo(data []byte) (*FrameInfo, []error, error) {
	var raw rawFrameInfo
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}
	if err := validate.Struct(&raw); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}

	info := &FrameInfo{
		Time:      raw.Time,
		StartTime: raw.StartTime,
		FPS:       raw.FPS,
		Objects:   make([]Observation, 0, len(raw.Objects)),
	}

	var skipped []error
	for i, msg := range raw.Objects {
		var obs Observation
		if err := json.Unmarshal(msg, &obs); err != nil {
			skipped = append(skipped, fmt.Errorf("%w: object %d: %v", ErrMalformedObservation, i, err))
			continue
		}
		if err := validate.Struct(&obs); err != nil {
			skipped = append(skipped, fmt.Errorf("%w: object %d: %v", ErrMalformedObservation, i, err))
			continue
		}
		info.Objects = append(info.Objects, obs)
	}

	return info, skipped, nil
}

// Marshal encodes the frame info back to JSON for the downstream log.
func (f *FrameInfo) Marshal() ([]byte, error) {
	if f.Objects == nil {
		f.Objects = []Observation{}
	}
	return json.Marshal(f)
}
