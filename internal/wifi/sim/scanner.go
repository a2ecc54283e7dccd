// Package sim is a wifi.Scanner backed by simulated access points placed in the same
// local coordinate space as the walker. Useful for demos and for exercising the recorder
// without a radio.
package sim

import (
	"context"
	"io"
	"log/slog"
	"math"
	"math/rand/v2"
	"slices"
	"sync"
	"time"

	"github.com/golang/geo/r2"

	"github.com/roman-kulish/wifi-heatmap/internal/timeutil"
	"github.com/roman-kulish/wifi-heatmap/internal/wifi"
)

const (
	// DefaultUnitsPerMeter maps the walker's step units to meters (one 50 unit step ≈ 0.7 m)
	DefaultUnitsPerMeter = 70.0

	// DefaultNoise is the ± dBm jitter added to every reading
	DefaultNoise = 3.0

	bucketMeters = 5.0
)

// pathLoss is the measured level (dBm) at 0, 5, 10, ... 95 m from an access point
var pathLoss = [...]float64{
	-24.1, -27.9, -31.3, -34.6, -36.4,
	-42.3, -43.1, -48.8, -50.2, -54.0,
	-54.6, -59.1, -57.0, -56.4, -58.2,
	-59.0, -60.0, -61.6, -64.2, -66.2,
}

// AccessPoint is a simulated transmitter.
type AccessPoint struct {
	SSID      string
	BSSID     string
	Frequency int
	Position  r2.Point
	Offset    float64 // added to the path-loss level, dB
}

// Level returns the expected level at distance meters, without noise.
func Level(meters float64) float64 {
	if meters < 0 {
		meters = 0
	}

	i := int(meters / bucketMeters)
	if i >= len(pathLoss)-1 {
		return pathLoss[len(pathLoss)-1]
	}

	alpha := (meters - float64(i)*bucketMeters) / bucketMeters
	return pathLoss[i] + (pathLoss[i+1]-pathLoss[i])*alpha
}

// WithLogger sets the logger for the scanner
func WithLogger(logger *slog.Logger) func(s *Scanner) {
	return func(s *Scanner) {
		s.logger = logger.With(slog.String("scanner", "sim"))
	}
}

// WithNoise sets the ± dBm jitter
func WithNoise(dB float64) func(s *Scanner) {
	return func(s *Scanner) {
		s.noise = dB
	}
}

// WithSeed makes the jitter reproducible
func WithSeed(seed uint64) func(s *Scanner) {
	return func(s *Scanner) {
		s.rand = rand.New(rand.NewPCG(seed, seed))
	}
}

// WithUnitsPerMeter sets the map scale
func WithUnitsPerMeter(units float64) func(s *Scanner) {
	return func(s *Scanner) {
		s.unitsPerMeter = units
	}
}

// WithThrottle rejects triggers that arrive sooner than d after the last accepted one
func WithThrottle(d time.Duration) func(s *Scanner) {
	return func(s *Scanner) {
		s.throttle = d
	}
}

// WithClock sets the clock used for throttling and timestamps
func WithClock(clock timeutil.Clock) func(s *Scanner) {
	return func(s *Scanner) {
		s.clock = clock
	}
}

// Scanner measures every access point from the position reported by the locate func.
// Results only change when a trigger is accepted, like a real radio's scan cache.
type Scanner struct {
	mu          sync.Mutex
	locate      func() r2.Point
	results     []wifi.Network
	lastTrigger time.Time

	aps           []AccessPoint
	unitsPerMeter float64
	noise         float64
	throttle      time.Duration
	rand          *rand.Rand
	clock         timeutil.Clock
	logger        *slog.Logger
}

// New creates a scanner for aps. Until Locate is called every measurement is taken at the
// origin.
func New(aps []AccessPoint, options ...func(s *Scanner)) *Scanner {
	s := Scanner{
		aps:           slices.Clone(aps),
		locate:        func() r2.Point { return r2.Point{} },
		unitsPerMeter: DefaultUnitsPerMeter,
		noise:         DefaultNoise,
		rand:          rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		clock:         timeutil.RealClock{},
		logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, option := range options {
		option(&s)
	}

	return &s
}

// Locate sets the function reporting where the receiver is.
func (s *Scanner) Locate(fn func() r2.Point) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.locate = fn
}

func (s *Scanner) TriggerScan(context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	if s.throttle > 0 && !s.lastTrigger.IsZero() && now.Sub(s.lastTrigger) < s.throttle {
		s.logger.Debug("scan throttled")
		return false
	}
	s.lastTrigger = now

	at := s.locate()
	results := make([]wifi.Network, 0, len(s.aps))
	for _, ap := range s.aps {
		meters := at.Sub(ap.Position).Norm() / s.unitsPerMeter
		level := Level(meters) + ap.Offset
		if s.noise > 0 {
			level += s.rand.Float64()*2*s.noise - s.noise
		}

		results = append(results, wifi.Network{
			SSID:         ap.SSID,
			BSSID:        ap.BSSID,
			Level:        int(math.Round(level)),
			Frequency:    ap.Frequency,
			Capabilities: "ESS",
			LastSeen:     now,
			ChannelWidth: 20,
		})
	}
	s.results = results

	return true
}

func (s *Scanner) CurrentResults(context.Context) ([]wifi.Network, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return slices.Clone(s.results), nil
}
