// Package iw implements wifi.Scanner on Linux using the `iw` utility. Triggering a scan
// usually requires CAP_NET_ADMIN; reading the dump does not.
package iw

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/roman-kulish/wifi-heatmap/internal/wifi"
)

const (
	Runtime = "iw"

	DefaultTimeout = 10 * time.Second
)

// WithLogger sets the logger for the scanner
func WithLogger(logger *slog.Logger) func(s *Scanner) {
	return func(s *Scanner) {
		s.logger = logger.With(
			slog.String("scanner", Runtime),
			slog.String("interface", s.iface),
		)
	}
}

// WithTimeout bounds every `iw` invocation
func WithTimeout(d time.Duration) func(s *Scanner) {
	return func(s *Scanner) {
		s.timeout = d
	}
}

// Scanner runs `iw dev <iface> scan trigger` and `iw dev <iface> scan dump`.
type Scanner struct {
	binPath string
	iface   string
	timeout time.Duration
	now     func() time.Time
	logger  *slog.Logger
}

// New locates the `iw` binary and returns a Scanner for the wireless interface iface.
func New(iface string, options ...func(s *Scanner)) (*Scanner, error) {
	if iface == "" {
		return nil, NewConfigError("iw: interface name is required")
	}

	binPath, err := findRuntime(Runtime)
	if err != nil {
		return nil, fmt.Errorf("error finding runtime: %w", err)
	}

	s := Scanner{
		binPath: binPath,
		iface:   iface,
		timeout: DefaultTimeout,
		now:     time.Now,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, option := range options {
		option(&s)
	}

	return &s, nil
}

// Cmd returns the command for the given `iw dev <iface>` arguments
func (s *Scanner) Cmd(ctx context.Context, args ...string) *exec.Cmd {
	return exec.CommandContext(ctx, s.binPath, append([]string{"dev", s.iface}, args...)...)
}

// TriggerScan asks the driver for a new scan. The kernel rejects triggers while a scan is
// already running, which is reported as false.
func (s *Scanner) TriggerScan(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	out, err := s.Cmd(ctx, "scan", "trigger").CombinedOutput()
	if err != nil {
		s.logger.Debug(fmt.Sprintf("scan trigger failed: %s", err.Error()),
			slog.String("output", strings.TrimSpace(string(out))))
		return false
	}

	return true
}

// CurrentResults returns the BSS list cached by the kernel.
func (s *Scanner) CurrentResults(ctx context.Context) ([]wifi.Network, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var stderr bytes.Buffer

	cmd := s.Cmd(ctx, "scan", "dump")
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("scan dump: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	networks, err := Parse(bytes.NewReader(out), s.now())
	if err != nil {
		return nil, fmt.Errorf("parsing scan dump: %w", err)
	}

	return networks, nil
}
