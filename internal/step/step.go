// Package step turns motion sensor readings into discrete step events, either by
// forwarding a hardware step counter or by thresholding accelerometer magnitude.
package step

import (
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/golang/geo/r3"

	"github.com/roman-kulish/wifi-heatmap/internal/heading"
	"github.com/roman-kulish/wifi-heatmap/internal/timeutil"
)

const (
	// DefaultThreshold is the accelerometer magnitude (m/s²) a sample must exceed
	DefaultThreshold = 12.0

	// DefaultMinInterval is the time that must pass between two emitted steps
	DefaultMinInterval = 300 * time.Millisecond

	SensorBackedName      = "sensor"
	AccelerometerPeakName = "accelerometer-peak"
)

// Event is a single detected step, stamped with the heading at detection time.
type Event struct {
	Time    time.Time
	Heading float64
}

// Detector is a step detection strategy. Only one of the two inputs is meaningful for a
// given implementation; the other is ignored.
type Detector interface {
	Name() string
	OnAccelerometer(v r3.Vector) (Event, bool)
	OnStepSensor() (Event, bool)
}

// Options configures detector construction.
type Options struct {
	threshold   float64
	minInterval time.Duration
	clock       timeutil.Clock
	logger      *slog.Logger
}

// WithThreshold overrides the accelerometer magnitude threshold
func WithThreshold(threshold float64) func(o *Options) {
	return func(o *Options) {
		o.threshold = threshold
	}
}

// WithMinInterval overrides the minimum gap between accelerometer steps
func WithMinInterval(d time.Duration) func(o *Options) {
	return func(o *Options) {
		o.minInterval = d
	}
}

// WithClock sets the clock used to timestamp and debounce steps
func WithClock(clock timeutil.Clock) func(o *Options) {
	return func(o *Options) {
		o.clock = clock
	}
}

// WithLogger sets the logger for the detector
func WithLogger(logger *slog.Logger) func(o *Options) {
	return func(o *Options) {
		o.logger = logger
	}
}

// New picks the detection strategy: the hardware step counter when the device has one,
// the accelerometer threshold detector otherwise.
func New(hasStepSensor bool, cell *heading.Cell, opts ...func(o *Options)) Detector {
	o := Options{
		threshold:   DefaultThreshold,
		minInterval: DefaultMinInterval,
		clock:       timeutil.RealClock{},
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, opt := range opts {
		opt(&o)
	}

	var d Detector
	if hasStepSensor {
		d = &SensorBacked{cell: cell, clock: o.clock}
	} else {
		d = &AccelerometerPeak{
			cell:        cell,
			clock:       o.clock,
			threshold:   o.threshold,
			minInterval: o.minInterval,
		}
	}

	o.logger.Debug("step detector selected", slog.String("detector", d.Name()))

	return d
}

// SensorBacked emits one event for every hardware step-counter firing.
type SensorBacked struct {
	cell  *heading.Cell
	clock timeutil.Clock
}

func (d *SensorBacked) Name() string { return SensorBackedName }

func (d *SensorBacked) OnAccelerometer(r3.Vector) (Event, bool) {
	return Event{}, false
}

func (d *SensorBacked) OnStepSensor() (Event, bool) {
	return Event{Time: d.clock.Now(), Heading: d.cell.Load()}, true
}

// AccelerometerPeak emits a step when the acceleration magnitude is strictly above the
// threshold and strictly more than minInterval has passed since the last emitted step.
// It does not look for a local maximum, so a long burst above the threshold produces a
// step every minInterval.
type AccelerometerPeak struct {
	mu          sync.Mutex
	last        time.Time
	threshold   float64
	minInterval time.Duration

	cell  *heading.Cell
	clock timeutil.Clock
}

func (d *AccelerometerPeak) Name() string { return AccelerometerPeakName }

func (d *AccelerometerPeak) OnAccelerometer(v r3.Vector) (Event, bool) {
	if v.Norm() <= d.threshold {
		return Event{}, false
	}

	now := d.clock.Now()

	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.last.IsZero() && now.Sub(d.last) <= d.minInterval {
		return Event{}, false
	}
	d.last = now

	return Event{Time: now, Heading: d.cell.Load()}, true
}

func (d *AccelerometerPeak) OnStepSensor() (Event, bool) {
	return Event{}, false
}
