// Package sim synthesises the sensor stream of a phone held flat by someone walking a
// route. It has no step counter, so it drives the accelerometer step detector.
package sim

import (
	"context"
	"io"
	"log/slog"
	"math"
	"slices"
	"time"

	"github.com/golang/geo/r3"

	"github.com/roman-kulish/wifi-heatmap/internal/heading"
	"github.com/roman-kulish/wifi-heatmap/internal/motion"
	"github.com/roman-kulish/wifi-heatmap/internal/timeutil"
)

const (
	DefaultSampleInterval = 20 * time.Millisecond
	DefaultStepPeriod     = 560 * time.Millisecond

	// StepPeak is the acceleration magnitude emitted on a heel strike
	StepPeak = 14.0

	horizontalField = 22.0 // µT
	verticalField   = -40.0
)

// Leg is a straight stretch of the route.
type Leg struct {
	Heading float64 // radians, 0 = north
	Steps   int
}

// Field returns the geomagnetic vector a flat device facing heading would measure.
func Field(heading float64) r3.Vector {
	return r3.Vector{
		X: -horizontalField * math.Sin(heading),
		Y: horizontalField * math.Cos(heading),
		Z: verticalField,
	}
}

// WithClock sets the clock driving the sample ticker
func WithClock(clock timeutil.Clock) func(w *Walker) {
	return func(w *Walker) {
		w.clock = clock
	}
}

// WithSampleInterval sets the sensor sample period
func WithSampleInterval(d time.Duration) func(w *Walker) {
	return func(w *Walker) {
		w.sampleInterval = d
	}
}

// WithStepPeriod sets the time between steps
func WithStepPeriod(d time.Duration) func(w *Walker) {
	return func(w *Walker) {
		w.stepPeriod = d
	}
}

// WithLogger sets the logger for the walker
func WithLogger(logger *slog.Logger) func(w *Walker) {
	return func(w *Walker) {
		w.logger = logger.With(slog.String("source", "sim"))
	}
}

// Walker is a motion.Source walking route in a loop.
type Walker struct {
	route          []Leg
	sampleInterval time.Duration
	stepPeriod     time.Duration
	clock          timeutil.Clock
	logger         *slog.Logger
}

// NewWalker creates a walker. An empty route stands still facing north.
func NewWalker(route []Leg, options ...func(w *Walker)) *Walker {
	w := Walker{
		route:          slices.Clone(route),
		sampleInterval: DefaultSampleInterval,
		stepPeriod:     DefaultStepPeriod,
		clock:          timeutil.RealClock{},
		logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, option := range options {
		option(&w)
	}

	return &w
}

func (w *Walker) Capabilities() motion.Capabilities {
	return motion.Capabilities{}
}

// Stream emits one accelerometer and one magnetometer sample per tick. Every stepPeriod
// the accelerometer sample is a peak.
func (w *Walker) Stream(ctx context.Context, events chan<- motion.Event) error {
	ticker := w.clock.NewTicker(w.sampleInterval)
	defer ticker.Stop()

	ticksPerStep := max(1, int(w.stepPeriod/w.sampleInterval))

	var (
		tick, leg, steps int
		gravity          = r3.Vector{Z: heading.StandardGravity}
	)

	for {
		select {
		case <-ctx.Done():
			return nil

		case now := <-ticker.C():
			tick++

			facing, walking := 0.0, len(w.route) > 0
			if walking {
				facing = w.route[leg].Heading
			}

			if !motion.Send(ctx, events, motion.Event{Kind: motion.KindMagnetometer, Vector: Field(facing), Time: now}) {
				return nil
			}

			accel := gravity
			if walking && tick%ticksPerStep == 0 {
				accel = r3.Vector{Z: StepPeak}

				steps++
				if steps >= w.route[leg].Steps {
					steps = 0
					leg = (leg + 1) % len(w.route)
					w.logger.Debug("next leg", slog.Int("leg", leg))
				}
			}

			if !motion.Send(ctx, events, motion.Event{Kind: motion.KindAccelerometer, Vector: accel, Time: now}) {
				return nil
			}
		}
	}
}
