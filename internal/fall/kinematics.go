package fall

import (
	"math"
	"time"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/your-org/falldetect/internal/config"
)

// up is the upward vertical in image coordinates, where y grows downward.
var up = r2.Vec{X: 0, Y: -1}

type shoulderSample struct {
	at time.Time
	y  float64
}

// trackState is the rolling kinematic history of one track id.
type trackState struct {
	lastCenter   r2.Vec
	lastCenterAt time.Time

	velocities []float64
	lastSample time.Time

	shoulders []shoulderSample
	lastFlush time.Time

	// lastActive is on the detector clock; frame timestamps come from the
	// capture host and may be skewed against it.
	lastActive time.Time
}

// Kinematics keeps per-track position, throttled velocity samples and a
// short window of shoulder heights. Entries are created on first sight and
// evicted once they have not been observed for the history TTL.
type Kinematics struct {
	cfg         config.DetectionConfig
	tracks      map[int]*trackState
	lastCleanup time.Time
}

func NewKinematics(cfg config.DetectionConfig, now time.Time) *Kinematics {
	return &Kinematics{
		cfg:         cfg,
		tracks:      make(map[int]*trackState),
		lastCleanup: now,
	}
}

// Observe records the shoulder midpoint of id captured at ts and returns the
// instantaneous shoulder velocity and the body angle to vertical. now marks
// the track active for eviction purposes.
func (k *Kinematics) Observe(id int, shoulderMid, center, ankleMid r2.Vec, ts, now time.Time) (velocity, angle float64) {
	st, ok := k.tracks[id]
	if !ok {
		st = &trackState{}
		k.tracks[id] = st
	} else if dt := ts.Sub(st.lastCenterAt).Seconds(); dt > 0 {
		velocity = r2.Norm(r2.Sub(shoulderMid, st.lastCenter)) / dt
	}

	st.lastCenter = shoulderMid
	st.lastCenterAt = ts
	st.lastActive = now

	if len(st.velocities) == 0 || ts.Sub(st.lastSample) >= k.cfg.VelocitySampleInterval {
		st.velocities = append(st.velocities, velocity)
		st.lastSample = ts
	}

	return velocity, AngleToVertical(center, ankleMid)
}

// RecordShoulder appends a shoulder height sample for id.
func (k *Kinematics) RecordShoulder(id int, y float64, now time.Time) {
	st, ok := k.tracks[id]
	if !ok {
		st = &trackState{}
		k.tracks[id] = st
	}
	st.shoulders = append(st.shoulders, shoulderSample{at: now, y: y})
	st.lastActive = now
}

// ShoulderDrop returns how far the shoulders moved down across the current
// window. ok is false with fewer than two samples.
func (k *Kinematics) ShoulderDrop(id int) (drop float64, ok bool) {
	st, found := k.tracks[id]
	if !found || len(st.shoulders) < 2 {
		return 0, false
	}
	return st.shoulders[len(st.shoulders)-1].y - st.shoulders[0].y, true
}

// PruneShoulders drops shoulder samples older than the shoulder window.
func (k *Kinematics) PruneShoulders(now time.Time) {
	for _, st := range k.tracks {
		keep := st.shoulders[:0]
		for _, s := range st.shoulders {
			if now.Sub(s.at) <= k.cfg.ShoulderWindow {
				keep = append(keep, s)
			}
		}
		st.shoulders = keep
	}
}

// Cleanup evicts tracks not observed for at least the history TTL. It does nothing until the cleanup interval has passed since the
// previous pass and reports whether a pass ran.
func (k *Kinematics) Cleanup(now time.Time) bool {
	if now.Sub(k.lastCleanup) < k.cfg.CleanupInterval {
		return false
	}
	for id, st := range k.tracks {
		if now.Sub(st.lastActive) >= k.cfg.HistoryTTL {
			delete(k.tracks, id)
		}
	}
	k.lastCleanup = now
	return true
}

// Velocities returns a copy of the velocity samples held for id.
func (k *Kinematics) Velocities(id int) []float64 {
	st, ok := k.tracks[id]
	if !ok {
		return nil
	}
	return append([]float64(nil), st.velocities...)
}

// DueForFlush collects the velocity history of every track not flushed in
// the last interval and marks them flushed at now.
func (k *Kinematics) DueForFlush(now time.Time, interval time.Duration) map[int][]float64 {
	due := make(map[int][]float64)
	for id, st := range k.tracks {
		if len(st.velocities) == 0 {
			continue
		}
		if !st.lastFlush.IsZero() && now.Sub(st.lastFlush) < interval {
			continue
		}
		due[id] = append([]float64(nil), st.velocities...)
		st.lastFlush = now
	}
	return due
}

// Len is the number of tracks holding history.
func (k *Kinematics) Len() int {
	return len(k.tracks)
}

// AngleToVertical returns the angle in degrees between center-ankle and the
// upward vertical. It is 0 when the two points coincide.
func AngleToVertical(center, ankle r2.Vec) float64 {
	v := r2.Sub(center, ankle)
	if r2.Norm(v) == 0 {
		return 0
	}
	cos := r2.Dot(r2.Unit(v), up)
	cos = math.Max(-1, math.Min(1, cos))
	return math.Acos(cos) * 180 / math.Pi
}
