// Package heading turns raw accelerometer and magnetometer vectors into a compass
// heading in radians, 0 being magnetic north and π/2 east.
package heading

import (
	"io"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"

	"github.com/golang/geo/r3"
)

const (
	// StandardGravity in m/s²
	StandardGravity = 9.80665

	// minHorizontalNorm is the smallest |E × A| accepted. Below it the device is close to
	// magnetic free fall or the field is parallel to gravity.
	minHorizontalNorm = 0.1

	// freeFallGravitySquared rejects accelerometer vectors weaker than 10% of g
	freeFallGravitySquared = 0.01 * StandardGravity * StandardGravity
)

// Cell holds the latest heading. It has a single writer (the Estimator) and any number of
// readers; the last write wins.
type Cell struct {
	bits atomic.Uint64
}

// Load returns the current heading.
func (c *Cell) Load() float64 {
	return math.Float64frombits(c.bits.Load())
}

// Store replaces the current heading.
func (c *Cell) Store(heading float64) {
	c.bits.Store(math.Float64bits(heading))
}

// Compute derives the azimuth of the device y-axis from a gravity vector and a geomagnetic
// vector, both in device coordinates. The result lies in (−π, π].
// It returns false when the rotation matrix cannot be built from the given input.
func Compute(gravity, geomagnetic r3.Vector) (float64, bool) {
	if gravity.Norm2() < freeFallGravitySquared {
		return 0, false
	}

	h := geomagnetic.Cross(gravity)
	normH := h.Norm()
	if normH < minHorizontalNorm || math.IsNaN(normH) {
		return 0, false
	}

	h = h.Mul(1 / normH)
	a := gravity.Normalize()
	m := a.Cross(h)

	// rotation matrix rows are H, M, A; azimuth = atan2(R[0][1], R[1][1])
	azimuth := math.Atan2(h.Y, m.Y)
	if azimuth == -math.Pi {
		azimuth = math.Pi
	}

	return azimuth, true
}

// WithLogger sets the logger for the estimator
func WithLogger(logger *slog.Logger) func(e *Estimator) {
	return func(e *Estimator) {
		e.logger = logger.With(slog.String("component", "heading"))
	}
}

// Estimator keeps the most recent accelerometer and magnetometer readings and publishes
// a fresh heading to its Cell whenever both are known.
type Estimator struct {
	mu           sync.Mutex
	gravity      r3.Vector
	geomagnetic  r3.Vector
	hasGravity   bool
	hasMagnetism bool

	cell   *Cell
	logger *slog.Logger
}

// NewEstimator creates an estimator writing into cell. A nil cell gets a private one.
func NewEstimator(cell *Cell, options ...func(e *Estimator)) *Estimator {
	if cell == nil {
		cell = new(Cell)
	}

	e := Estimator{
		cell:   cell,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, option := range options {
		option(&e)
	}

	return &e
}

// Cell returns the cell the estimator publishes to.
func (e *Estimator) Cell() *Cell {
	return e.cell
}

// Update computes the heading from a synchronised pair of readings. On degenerate input
// the previous heading is kept and returned.
func (e *Estimator) Update(gravity, geomagnetic r3.Vector) float64 {
	e.mu.Lock()
	e.gravity, e.hasGravity = gravity, true
	e.geomagnetic, e.hasMagnetism = geomagnetic, true
	e.mu.Unlock()

	return e.publish(gravity, geomagnetic)
}

// UpdateAccelerometer records a gravity reading and recomputes when possible.
func (e *Estimator) UpdateAccelerometer(v r3.Vector) float64 {
	e.mu.Lock()
	e.gravity, e.hasGravity = v, true
	ready := e.hasMagnetism
	geomagnetic := e.geomagnetic
	e.mu.Unlock()

	if !ready {
		return e.cell.Load()
	}

	return e.publish(v, geomagnetic)
}

// UpdateMagnetometer records a geomagnetic reading and recomputes when possible.
func (e *Estimator) UpdateMagnetometer(v r3.Vector) float64 {
	e.mu.Lock()
	e.geomagnetic, e.hasMagnetism = v, true
	ready := e.hasGravity
	gravity := e.gravity
	e.mu.Unlock()

	if !ready {
		return e.cell.Load()
	}

	return e.publish(gravity, v)
}

func (e *Estimator) publish(gravity, geomagnetic r3.Vector) float64 {
	azimuth, ok := Compute(gravity, geomagnetic)
	if !ok {
		e.logger.Debug("rotation matrix did not converge, keeping heading")
		return e.cell.Load()
	}

	e.cell.Store(azimuth)

	return azimuth
}
