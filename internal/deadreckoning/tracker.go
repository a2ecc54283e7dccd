// Package deadreckoning integrates step events into a 2D position. The coordinate space
// is local to one recording: y grows downwards, so walking north decreases y.
package deadreckoning

import (
	"math"

	"github.com/golang/geo/r2"
)

const (
	// DefaultStepSize is the distance covered by one step, in map units
	DefaultStepSize = 50.0
)

// DefaultAnchor is where every recording starts.
var DefaultAnchor = r2.Point{X: 500, Y: 1000}

// WithStepSize overrides the per-step displacement
func WithStepSize(size float64) func(t *Tracker) {
	return func(t *Tracker) {
		t.stepSize = size
	}
}

// WithAnchor overrides the starting position
func WithAnchor(anchor r2.Point) func(t *Tracker) {
	return func(t *Tracker) {
		t.anchor = anchor
		t.position = anchor
	}
}

// Tracker is not safe for concurrent use; the owner serialises OnStep and Reset.
type Tracker struct {
	anchor   r2.Point
	position r2.Point
	stepSize float64
	steps    int
}

// NewTracker returns a tracker positioned at its anchor.
func NewTracker(options ...func(t *Tracker)) *Tracker {
	t := Tracker{
		anchor:   DefaultAnchor,
		position: DefaultAnchor,
		stepSize: DefaultStepSize,
	}

	for _, option := range options {
		option(&t)
	}

	return &t
}

// OnStep moves one step along heading (radians, 0 = north, π/2 = east) and returns the
// new position.
func (t *Tracker) OnStep(heading float64) r2.Point {
	t.position = t.position.Add(Displacement(heading, t.stepSize))
	t.steps++

	return t.position
}

// Reset returns to the anchor and clears the step count.
func (t *Tracker) Reset() {
	t.position = t.anchor
	t.steps = 0
}

func (t *Tracker) Position() r2.Point { return t.position }
func (t *Tracker) Anchor() r2.Point   { return t.anchor }
func (t *Tracker) Steps() int         { return t.steps }

// Displacement of a single step of the given size along heading.
func Displacement(heading, size float64) r2.Point {
	return r2.Point{
		X: math.Sin(heading) * size,
		Y: -math.Cos(heading) * size,
	}
}
