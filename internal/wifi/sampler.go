package wifi

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/roman-kulish/wifi-heatmap/internal/timeutil"
)

// WithLogger sets the logger for the sampler
func WithLogger(logger *slog.Logger) func(s *Sampler) {
	return func(s *Sampler) {
		s.logger = logger.With(slog.String("component", "sampler"))
	}
}

// WithClock sets the clock used to timestamp readings
func WithClock(clock timeutil.Clock) func(s *Sampler) {
	return func(s *Sampler) {
		s.clock = clock
	}
}

// Sampler reads the current strength of a target network. Scanner failures and missing
// targets are absorbed: the caller only sees whether a reading exists.
type Sampler struct {
	scanner Scanner
	clock   timeutil.Clock
	logger  *slog.Logger
}

// NewSampler creates a Sampler over scanner with a discard logger.
func NewSampler(scanner Scanner, options ...func(s *Sampler)) *Sampler {
	s := Sampler{
		scanner: scanner,
		clock:   timeutil.RealClock{},
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, option := range options {
		option(&s)
	}

	return &s
}

// Sample triggers a scan, then looks the target up in the scanner's current results.
// The trigger outcome does not affect the lookup; a throttled scan still reads the cache.
func (s *Sampler) Sample(ctx context.Context, bssid string) (Reading, bool) {
	if !s.scanner.TriggerScan(ctx) {
		s.logger.Debug("scan trigger rejected, using cached results")
	}

	networks, err := s.scanner.CurrentResults(ctx)
	if err != nil {
		s.logger.Debug(fmt.Sprintf("reading scan results: %s", err.Error()))
		return Reading{}, false
	}

	n, ok := Find(networks, bssid)
	if !ok {
		s.logger.Debug("target not in scan results", slog.String("bssid", bssid))
		return Reading{}, false
	}

	return Reading{
		BSSID:    n.BSSID,
		SSID:     n.SSID,
		Strength: n.Level,
		Time:     s.clock.Now(),
	}, true
}
