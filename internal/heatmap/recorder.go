// Package heatmap records a walkable signal heatmap: signal readings of one access point
// placed at dead-reckoned positions while the user walks.
package heatmap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang/geo/r2"
	"github.com/google/uuid"

	"github.com/roman-kulish/wifi-heatmap/internal/deadreckoning"
	"github.com/roman-kulish/wifi-heatmap/internal/heading"
	"github.com/roman-kulish/wifi-heatmap/internal/motion"
	"github.com/roman-kulish/wifi-heatmap/internal/step"
	"github.com/roman-kulish/wifi-heatmap/internal/timeutil"
	"github.com/roman-kulish/wifi-heatmap/internal/wifi"
)

const (
	// DefaultSampleInterval is the period of the signal sampling loop
	DefaultSampleInterval = 2 * time.Second

	eventsBuffer = 64
)

// ErrNoTarget is returned when recording is started without a BSSID
var ErrNoTarget = errors.New("no target network")

// Sampler reads the target's signal strength. Implemented by wifi.Sampler.
type Sampler interface {
	Sample(ctx context.Context, bssid string) (wifi.Reading, bool)
}

// candidate is a point proposal from one of the producers. Only the writer turns it into
// a tracker step and a session point; it samples the signal after the step is applied so
// the reading belongs to the position it is stored at.
type candidate struct {
	trigger Trigger
	heading float64 // step candidates only
}

// WithLogger sets the logger for the recorder
func WithLogger(logger *slog.Logger) func(r *Recorder) {
	return func(r *Recorder) {
		r.logger = logger.With(slog.String("component", "recorder"))
	}
}

// WithClock sets the clock for the sampling ticker, timestamps and step debouncing
func WithClock(clock timeutil.Clock) func(r *Recorder) {
	return func(r *Recorder) {
		r.clock = clock
	}
}

// WithSampleInterval sets the period of the sampling loop
func WithSampleInterval(d time.Duration) func(r *Recorder) {
	return func(r *Recorder) {
		r.interval = d
	}
}

// WithTrackerOptions configures the dead-reckoning tracker (anchor, step size)
func WithTrackerOptions(options ...func(t *deadreckoning.Tracker)) func(r *Recorder) {
	return func(r *Recorder) {
		r.trackerOptions = append(r.trackerOptions, options...)
	}
}

// WithDetectorOptions configures the step detector created at every start
func WithDetectorOptions(options ...func(o *step.Options)) func(r *Recorder) {
	return func(r *Recorder) {
		r.detectorOptions = append(r.detectorOptions, options...)
	}
}

// Recorder is the Idle/Recording state machine. While recording, a motion goroutine turns
// sensor events into steps, a sampling goroutine reads the signal on a fixed period, and
// a single writer goroutine applies both to the tracker and the session.
type Recorder struct {
	lifecycle sync.Mutex // serialises Start and Stop

	mu      sync.RWMutex // guards session and tracker
	session Session
	tracker *deadreckoning.Tracker

	isRecording atomic.Bool
	cancel      context.CancelFunc
	wg          sync.WaitGroup

	watchMu  sync.Mutex
	watchers map[chan struct{}]struct{}
	closed   bool

	source          motion.Source
	sampler         Sampler
	clock           timeutil.Clock
	interval        time.Duration
	trackerOptions  []func(t *deadreckoning.Tracker)
	detectorOptions []func(o *step.Options)
	logger          *slog.Logger
}

// NewRecorder creates an idle Recorder with a discard logger.
func NewRecorder(source motion.Source, sampler Sampler, options ...func(r *Recorder)) *Recorder {
	r := Recorder{
		source:   source,
		sampler:  sampler,
		clock:    timeutil.RealClock{},
		interval: DefaultSampleInterval,
		watchers: make(map[chan struct{}]struct{}),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, option := range options {
		option(&r)
	}

	r.tracker = deadreckoning.NewTracker(r.trackerOptions...)

	return &r
}

// Start begins a new session for bssid and returns its ID. A running session is stopped
// first; its points are discarded.
func (r *Recorder) Start(ctx context.Context, bssid string) (string, error) {
	if bssid == "" {
		return "", ErrNoTarget
	}

	r.lifecycle.Lock()
	defer r.lifecycle.Unlock()

	r.stop()

	cell := new(heading.Cell)
	estimator := heading.NewEstimator(cell, heading.WithLogger(r.logger))

	hasStepSensor := r.source.Capabilities().StepSensor
	detector := step.New(hasStepSensor, cell, append([]func(o *step.Options){
		step.WithClock(r.clock),
		step.WithLogger(r.logger),
	}, r.detectorOptions...)...)

	r.mu.Lock()
	r.session = Session{
		ID:        uuid.NewString(),
		BSSID:     bssid,
		StartTime: r.clock.Now(),
		Points:    []Point{},
	}
	r.tracker.Reset()
	sessionID := r.session.ID
	r.mu.Unlock()

	ctx, r.cancel = context.WithCancel(ctx)

	events := make(chan motion.Event, eventsBuffer)
	candidates := make(chan candidate)

	r.isRecording.Store(true)

	r.wg.Add(4)
	go r.streamMotion(ctx, events)
	go r.detectSteps(ctx, events, estimator, detector, candidates)
	go r.tickSamples(ctx, candidates)
	go r.writePoints(ctx, bssid, candidates)

	r.logger.Info("recording started",
		slog.String("session", sessionID),
		slog.String("bssid", bssid),
		slog.String("detector", detector.Name()),
	)

	r.notify()

	return sessionID, nil
}

// Stop ends the running session and returns once every recording goroutine has exited.
// The session's points stay readable until the next Start. Calling Stop while idle is a
// no-op.
func (r *Recorder) Stop() {
	r.lifecycle.Lock()
	defer r.lifecycle.Unlock()

	r.stop()
}

func (r *Recorder) stop() {
	if !r.isRecording.Load() {
		return // already stopped
	}

	r.cancel()
	r.wg.Wait()
	r.isRecording.Store(false)

	r.mu.RLock()
	r.logger.Info("recording stopped",
		slog.String("session", r.session.ID),
		slog.Int("points", len(r.session.Points)),
		slog.Int("steps", r.tracker.Steps()),
	)
	r.mu.RUnlock()

	r.notify()
}

// Close stops recording and closes every Watch channel. Later Watch calls return a closed
// channel.
func (r *Recorder) Close() error {
	r.Stop()

	r.watchMu.Lock()
	defer r.watchMu.Unlock()

	r.closed = true
	for ch := range r.watchers {
		close(ch)
		delete(r.watchers, ch)
	}

	return nil
}

// IsRecording returns true while a session is being recorded
func (r *Recorder) IsRecording() bool {
	return r.isRecording.Load()
}

// Points returns a copy of the current session's points in append order.
func (r *Recorder) Points() []Point {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return slices.Clone(r.session.Points)
}

// Position returns the current dead-reckoned position.
func (r *Recorder) Position() r2.Point {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.tracker.Position()
}

// Snapshot returns a consistent copy of the session and position.
func (r *Recorder) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s := r.session
	s.Points = slices.Clone(s.Points)
	if s.Points == nil {
		s.Points = []Point{}
	}

	pos, anchor := r.tracker.Position(), r.tracker.Anchor()

	return Snapshot{
		Session:   s,
		Recording: r.isRecording.Load(),
		Position:  Position{X: pos.X, Y: pos.Y},
		Anchor:    Position{X: anchor.X, Y: anchor.Y},
		Steps:     r.tracker.Steps(),
	}
}

// Watch returns a channel signalled after every change: start, stop, step or new point.
// Signals coalesce; readers should take a Snapshot on wake-up. The channel is closed when
// ctx is done or the recorder is closed.
func (r *Recorder) Watch(ctx context.Context) <-chan struct{} {
	ch := make(chan struct{}, 1)

	r.watchMu.Lock()
	if r.closed {
		r.watchMu.Unlock()
		close(ch)
		return ch
	}
	r.watchers[ch] = struct{}{}
	r.watchMu.Unlock()

	go func() {
		<-ctx.Done()

		r.watchMu.Lock()
		defer r.watchMu.Unlock()

		if _, ok := r.watchers[ch]; ok {
			delete(r.watchers, ch)
			close(ch)
		}
	}()

	return ch
}

func (r *Recorder) notify() {
	r.watchMu.Lock()
	defer r.watchMu.Unlock()

	for ch := range r.watchers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// streamMotion runs the motion subscription. A failing source degrades the session: the
// position stops advancing but periodic sampling continues.
func (r *Recorder) streamMotion(ctx context.Context, events chan<- motion.Event) {
	defer r.wg.Done()

	if err := r.source.Stream(ctx, events); err != nil {
		r.logger.Warn(fmt.Sprintf("motion source stopped, position will not advance: %s", err.Error()))
		return
	}

	if ctx.Err() == nil {
		r.logger.Warn("motion source ended, position will not advance")
	}
}

func (r *Recorder) detectSteps(
	ctx context.Context,
	events <-chan motion.Event,
	estimator *heading.Estimator,
	detector step.Detector,
	candidates chan<- candidate,
) {
	defer r.wg.Done()

	for {
		var ev motion.Event
		select {
		case <-ctx.Done():
			return
		case ev = <-events:
		}

		var (
			st step.Event
			ok bool
		)

		switch ev.Kind {
		case motion.KindAccelerometer:
			estimator.UpdateAccelerometer(ev.Vector)
			st, ok = detector.OnAccelerometer(ev.Vector)

		case motion.KindMagnetometer:
			estimator.UpdateMagnetometer(ev.Vector)

		case motion.KindStep:
			st, ok = detector.OnStepSensor()
		}

		if !ok {
			continue
		}

		if !r.propose(ctx, candidates, candidate{trigger: TriggerStep, heading: st.Heading}) {
			return
		}
	}
}

// tickSamples proposes a sample immediately and then once per interval.
func (r *Recorder) tickSamples(ctx context.Context, candidates chan<- candidate) {
	defer r.wg.Done()

	ticker := r.clock.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		if !r.propose(ctx, candidates, candidate{trigger: TriggerTick}) {
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
		}
	}
}

func (r *Recorder) propose(ctx context.Context, candidates chan<- candidate, c candidate) bool {
	select {
	case candidates <- c:
		return true
	case <-ctx.Done():
		return false
	}
}

// writePoints is the only goroutine mutating the tracker and the session. A step is
// applied first, then the signal is read at the new position.
func (r *Recorder) writePoints(ctx context.Context, bssid string, candidates <-chan candidate) {
	defer r.wg.Done()

	for {
		var c candidate
		select {
		case <-ctx.Done():
			return
		case c = <-candidates:
		}

		if c.trigger == TriggerStep {
			if !r.advance(ctx, c.heading) {
				return
			}
			r.notify()
		}

		reading, found := r.sampler.Sample(ctx, bssid)
		if !found {
			if c.trigger == TriggerStep {
				pos := r.Position()
				r.logger.Debug("step without reading", slog.Float64("x", pos.X), slog.Float64("y", pos.Y))
			}
			continue
		}

		if r.record(ctx, c.trigger, reading) {
			r.notify()
		}
	}
}

// advance moves the tracker one step. Nothing is applied once the session context is
// cancelled.
func (r *Recorder) advance(ctx context.Context, headingRad float64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if ctx.Err() != nil {
		return false
	}

	r.tracker.OnStep(headingRad)
	return true
}

// record appends a point at the current position, stamped when it is appended so the
// session stays in chronological order.
func (r *Recorder) record(ctx context.Context, trigger Trigger, reading wifi.Reading) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if ctx.Err() != nil {
		return false
	}

	pos := r.tracker.Position()
	r.session.Points = append(r.session.Points, Point{
		X:        pos.X,
		Y:        pos.Y,
		Strength: reading.Strength,
		Time:     r.clock.Now(),
		Trigger:  trigger,
	})

	return true
}
