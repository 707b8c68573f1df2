package fall

import (
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/your-org/falldetect/internal/config"
	"github.com/your-org/falldetect/internal/models"
)

// State is the fall state of one track id.
type State int

const (
	Normal State = iota
	Falling
)

func (s State) String() string {
	if s == Falling {
		return "fall"
	}
	return "normal"
}

// Evaluation is the outcome of one observation.
type Evaluation struct {
	Observation     models.Observation
	Center          models.Point
	Velocity        float64
	AngleToVertical float64
	MaxVelocity     float64
	ShoulderDrop    float64
	State           State
	// NewlyLatched is true on the single evaluation where the id moved
	// from Normal to Falling.
	NewlyLatched bool
}

// FrameResult holds the evaluations of one frame, in input order, and the
// observations that were skipped.
type FrameResult struct {
	Evaluations []Evaluation
	Skipped     []error
}

type Option func(*Detector)

// WithClock replaces the wall clock used for shoulder samples, eviction
// and flush throttling.
func WithClock(now func() time.Time) Option {
	return func(d *Detector) { d.now = now }
}

// Detector turns per-frame person observations into a latched fall
// verdict per track id. A Detector belongs to exactly one camera and is not
// safe for concurrent use.
type Detector struct {
	cfg     config.DetectionConfig
	kin     *Kinematics
	latches *LatchSet
	now     func() time.Time
}

func NewDetector(cfg config.DetectionConfig, opts ...Option) *Detector {
	d := &Detector{
		cfg:     cfg,
		latches: NewLatchSet(cfg.MaxLatchedIDs),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.kin = NewKinematics(cfg, d.now())
	return d
}

// ProcessFrame evaluates every observation of a frame captured at ts.
// Observations without all eight body keypoints are skipped.
func (d *Detector) ProcessFrame(ts time.Time, observations []models.Observation) FrameResult {
	now := d.now()
	d.kin.PruneShoulders(now)
	d.kin.Cleanup(now)

	res := FrameResult{Evaluations: make([]Evaluation, 0, len(observations))}
	for _, obs := range observations {
		pts, err := obs.BodyPoints()
		if err != nil {
			res.Skipped = append(res.Skipped, err)
			continue
		}
		ev := d.evaluate(obs.ID, pts, ts, now)
		ev.Observation = obs
		res.Evaluations = append(res.Evaluations, ev)
	}
	return res
}

func (d *Detector) evaluate(id int, pts [models.BodyPointCount]models.Point, ts, now time.Time) Evaluation {
	shoulderMid := midpoint(pts[models.LeftShoulder], pts[models.RightShoulder])
	ankleMid := midpoint(pts[models.LeftAnkle], pts[models.RightAnkle])
	center := centroid(pts[:])

	velocity, angle := d.kin.Observe(id, shoulderMid, center, ankleMid, ts, now)
	d.kin.RecordShoulder(id, shoulderMid.Y, now)

	velocities := d.kin.Velocities(id)
	drop, hasDrop := d.kin.ShoulderDrop(id)

	ev := Evaluation{
		Center:          models.Point{center.X, center.Y},
		Velocity:        velocity,
		AngleToVertical: angle,
		ShoulderDrop:    drop,
	}
	if len(velocities) > 0 {
		ev.MaxVelocity = floats.Max(velocities)
	}

	fell := d.fallen(velocities, angle, drop, hasDrop)
	if d.latches.Latched(id) {
		ev.State = Falling
	} else if fell {
		d.latches.Latch(id)
		ev.State = Falling
		ev.NewlyLatched = true
	}
	return ev
}

// fallen applies the heuristic: a sharp deceleration from a fast peak,
// followed by a tilted body or a dropping shoulder line.
func (d *Detector) fallen(velocities []float64, angle, drop float64, hasDrop bool) bool {
	if len(velocities) < d.cfg.MinSamples {
		return false
	}
	maxV := floats.Max(velocities)
	if maxV <= 0 {
		return false
	}
	if !hasDeceleration(velocities, maxV, d.cfg) {
		return false
	}
	if angle > d.cfg.AngleThreshold {
		return true
	}
	return hasDrop && drop > d.cfg.ShoulderDrop
}

// hasDeceleration reports whether some consecutive pair goes from a peak
// above both the absolute floor and PeakRatio*max to below DropRatio*max.
func hasDeceleration(v []float64, maxV float64, cfg config.DetectionConfig) bool {
	high := cfg.PeakRatio * maxV
	low := cfg.DropRatio * maxV
	for i := 0; i+1 < len(v); i++ {
		if v[i] >= cfg.MinPeakVelocity && v[i] > high && v[i+1] < low {
			return true
		}
	}
	return false
}

// DueForFlush returns the velocity histories that are due for persistence.
func (d *Detector) DueForFlush(interval time.Duration) map[int][]float64 {
	return d.kin.DueForFlush(d.now(), interval)
}

// State returns the latched state of id without touching its history.
func (d *Detector) State(id int) State {
	if _, ok := d.latches.items[id]; ok {
		return Falling
	}
	return Normal
}

// TrackedCount is the number of ids with kinematic history.
func (d *Detector) TrackedCount() int {
	return d.kin.Len()
}

// LatchedCount is the number of ids currently latched as fallen.
func (d *Detector) LatchedCount() int {
	return d.latches.Len()
}

func midpoint(a, b models.Point) r2.Vec {
	return r2.Vec{X: (a.X() + b.X()) / 2, Y: (a.Y() + b.Y()) / 2}
}

func centroid(pts []models.Point) r2.Vec {
	var sum r2.Vec
	for _, p := range pts {
		sum = r2.Add(sum, r2.Vec{X: p.X(), Y: p.Y()})
	}
	return r2.Scale(1/float64(len(pts)), sum)
}
