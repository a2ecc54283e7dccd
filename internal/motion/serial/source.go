// Package serial reads motion events from a sensor board speaking the motion line
// protocol over a serial port.
package serial

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/jacobsa/go-serial/serial"

	"github.com/roman-kulish/wifi-heatmap/internal/motion"
)

const (
	DefaultBaudRate = 115200

	// ParseErrorsThreshold is the number of consecutive bad lines tolerated
	ParseErrorsThreshold = 20

	readTimeout    = 100 // ms, the smallest the driver accepts
	readBufferSize = 256
	maxLineLength  = 1024
)

// ErrTooManyParseErrors is returned when the board keeps sending garbage
var ErrTooManyParseErrors = errors.New("too many consecutive parse errors")

// Config is the serial port configuration.
type Config struct {
	Port       string `yaml:"port"`
	BaudRate   uint   `yaml:"baudRate"`
	StepSensor bool   `yaml:"stepSensor"`
}

// Opener opens the port. Replaced in tests.
type Opener func(options serial.OpenOptions) (io.ReadWriteCloser, error)

// WithLogger sets the logger for the source
func WithLogger(logger *slog.Logger) func(s *Source) {
	return func(s *Source) {
		s.logger = logger.With(
			slog.String("source", "serial"),
			slog.String("port", s.config.Port),
		)
	}
}

// WithOpener replaces serial.Open
func WithOpener(open Opener) func(s *Source) {
	return func(s *Source) {
		s.open = open
	}
}

// Source is a motion.Source reading a serial port. The port is opened on Stream and
// closed when Stream returns.
type Source struct {
	config Config
	open   Opener
	now    func() time.Time
	logger *slog.Logger
}

// New validates config and returns a Source.
func New(config Config, options ...func(s *Source)) (*Source, error) {
	if config.Port == "" {
		return nil, fmt.Errorf("serial: port is required")
	}
	if config.BaudRate == 0 {
		config.BaudRate = DefaultBaudRate
	}

	s := Source{
		config: config,
		open:   serial.Open,
		now:    time.Now,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, option := range options {
		option(&s)
	}

	return &s, nil
}

func (s *Source) Capabilities() motion.Capabilities {
	return motion.Capabilities{StepSensor: s.config.StepSensor}
}

// Stream reads lines until ctx is cancelled. The port is opened with a read timeout, so
// a silent board never keeps Stream from returning.
func (s *Source) Stream(ctx context.Context, events chan<- motion.Event) error {
	port, err := s.open(serial.OpenOptions{
		PortName:              s.config.Port,
		BaudRate:              s.config.BaudRate,
		DataBits:              8,
		StopBits:              1,
		MinimumReadSize:       0,
		InterCharacterTimeout: readTimeout,
		ParityMode:            serial.PARITY_NONE,
	})
	if err != nil {
		return fmt.Errorf("%w: opening %s: %w", motion.ErrUnavailable, s.config.Port, err)
	}
	defer port.Close()

	s.logger.Info("serial port opened", slog.Uint64("baudRate", uint64(s.config.BaudRate)))

	return s.read(ctx, port, events)
}

// read splits the port's bytes into lines. A read that times out returns no bytes (and
// io.EOF from an *os.File); that is the point where cancellation is checked.
func (s *Source) read(ctx context.Context, r io.Reader, events chan<- motion.Event) error {
	var (
		parseErrors int
		line        []byte
		buf         = make([]byte, readBufferSize)
	)

	for {
		if ctx.Err() != nil {
			return nil
		}

		n, err := r.Read(buf)
		for _, b := range buf[:n] {
			if b != '\n' {
				if len(line) < maxLineLength {
					line = append(line, b)
				}
				continue
			}

			text := strings.TrimSpace(string(line))
			line = line[:0]
			if text == "" {
				continue
			}

			ev, perr := motion.ParseLine(text, s.now())
			if perr != nil {
				parseErrors++
				s.logger.Warn(fmt.Sprintf("error parsing line: %s", perr.Error()), slog.String("line", text))

				if parseErrors >= ParseErrorsThreshold {
					return ErrTooManyParseErrors
				}
				continue
			}
			parseErrors = 0

			if !motion.Send(ctx, events, ev) {
				return nil
			}
		}

		if err != nil && !errors.Is(err, io.EOF) {
			if ctx.Err() != nil || errors.Is(err, fs.ErrClosed) {
				return nil
			}
			return fmt.Errorf("reading serial port: %w", err)
		}
	}
}
