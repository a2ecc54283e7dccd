package app

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/golang/geo/r2"

	"github.com/roman-kulish/wifi-heatmap/internal/deadreckoning"
	"github.com/roman-kulish/wifi-heatmap/internal/display"
	"github.com/roman-kulish/wifi-heatmap/internal/heatmap"
	"github.com/roman-kulish/wifi-heatmap/internal/motion"
	"github.com/roman-kulish/wifi-heatmap/internal/motion/mqtt"
	"github.com/roman-kulish/wifi-heatmap/internal/motion/serial"
	motionsim "github.com/roman-kulish/wifi-heatmap/internal/motion/sim"
	"github.com/roman-kulish/wifi-heatmap/internal/render"
	"github.com/roman-kulish/wifi-heatmap/internal/step"
	"github.com/roman-kulish/wifi-heatmap/internal/wifi"
	"github.com/roman-kulish/wifi-heatmap/internal/wifi/iw"
	wifisim "github.com/roman-kulish/wifi-heatmap/internal/wifi/sim"
)

// Run wires the scanner, the motion source and the recorder behind the HTTP API and
// serves until ctx is done.
func Run(ctx context.Context, config *Config, logger *slog.Logger) error {
	scanner, err := createScanner(&config.Scanner, logger)
	if err != nil {
		return fmt.Errorf("failed to create scanner: %w", err)
	}

	source, closeSource, err := createMotionSource(&config.Motion, logger)
	if err != nil {
		return fmt.Errorf("failed to create motion source: %w", err)
	}
	defer closeSource()

	recorder := heatmap.NewRecorder(source, wifi.NewSampler(scanner, wifi.WithLogger(logger)),
		heatmap.WithLogger(logger),
		heatmap.WithSampleInterval(config.Recording.SampleInterval.Duration()),
		heatmap.WithTrackerOptions(
			deadreckoning.WithAnchor(r2.Point{X: config.Recording.Anchor.X, Y: config.Recording.Anchor.Y}),
			deadreckoning.WithStepSize(config.Recording.StepSize),
		),
		heatmap.WithDetectorOptions(
			step.WithThreshold(config.Detector.Threshold),
			step.WithMinInterval(config.Detector.MinInterval.Duration()),
		),
	)
	defer recorder.Close()

	// simulated access points are measured from wherever the walker is estimated to be
	if s, ok := scanner.(*wifisim.Scanner); ok {
		s.Locate(recorder.Position)
	}

	renderer, err := createRenderer(&config.Render)
	if err != nil {
		return fmt.Errorf("failed to create renderer: %w", err)
	}

	server := display.New(recorder, wifi.NewLister(scanner, logger),
		display.WithLogger(logger),
		display.WithRenderer(renderer),
	)

	if config.Recording.Target != "" {
		if _, err = recorder.Start(ctx, config.Recording.Target); err != nil {
			return fmt.Errorf("failed to start recording: %w", err)
		}
	}

	return server.ListenAndServe(ctx, config.Server.Listen)
}

func createScanner(config *ScannerConfig, logger *slog.Logger) (wifi.Scanner, error) {
	switch config.Type {
	case ScannerIW:
		scanner, err := iw.New(config.Interface,
			iw.WithLogger(logger),
			iw.WithTimeout(config.Timeout.Duration()),
		)
		if err != nil {
			return nil, fmt.Errorf("creating iw scanner: %w", err)
		}
		return scanner, nil

	case ScannerSim:
		aps := make([]wifisim.AccessPoint, len(config.AccessPoints))
		for i, ap := range config.AccessPoints {
			aps[i] = wifisim.AccessPoint{
				SSID:      ap.SSID,
				BSSID:     ap.BSSID,
				Frequency: ap.Frequency,
				Position:  r2.Point{X: ap.X, Y: ap.Y},
				Offset:    ap.Offset,
			}
		}

		options := []func(s *wifisim.Scanner){
			wifisim.WithLogger(logger),
			wifisim.WithNoise(config.Noise),
			wifisim.WithUnitsPerMeter(config.UnitsPerMeter),
			wifisim.WithThrottle(config.Throttle.Duration()),
		}
		if config.Seed != 0 {
			options = append(options, wifisim.WithSeed(config.Seed))
		}

		return wifisim.New(aps, options...), nil

	default:
		return nil, fmt.Errorf("creating scanner: unknown type '%s'", config.Type)
	}
}

// createMotionSource returns the source and the func releasing it
func createMotionSource(config *MotionConfig, logger *slog.Logger) (motion.Source, func(), error) {
	switch config.Type {
	case MotionMQTT:
		source, err := mqtt.Dial(config.MQTT, mqtt.WithLogger(logger))
		if err != nil {
			return nil, nil, fmt.Errorf("creating MQTT source: %w", err)
		}
		return source, func() { _ = source.Close() }, nil

	case MotionSerial:
		source, err := serial.New(config.Serial, serial.WithLogger(logger))
		if err != nil {
			return nil, nil, fmt.Errorf("creating serial source: %w", err)
		}
		return source, func() {}, nil

	case MotionSim:
		route := make([]motionsim.Leg, len(config.Sim.Route))
		for i, leg := range config.Sim.Route {
			route[i] = motionsim.Leg{Heading: leg.Heading * math.Pi / 180, Steps: leg.Steps}
		}

		options := []func(w *motionsim.Walker){motionsim.WithLogger(logger)}
		if config.Sim.StepPeriod > 0 {
			options = append(options, motionsim.WithStepPeriod(config.Sim.StepPeriod.Duration()))
		}
		if config.Sim.SampleInterval > 0 {
			options = append(options, motionsim.WithSampleInterval(config.Sim.SampleInterval.Duration()))
		}

		return motionsim.NewWalker(route, options...), func() {}, nil

	default:
		return nil, nil, fmt.Errorf("creating motion source: unknown type '%s'", config.Type)
	}
}

func createRenderer(config *RenderConfig) (*render.Renderer, error) {
	location := time.Local
	if config.Timezone != "" {
		var err error
		if location, err = time.LoadLocation(config.Timezone); err != nil {
			return nil, fmt.Errorf("loading timezone: %w", err)
		}
	}

	return render.NewRenderer(render.Config{
		Width:    config.Width,
		Height:   config.Height,
		Theme:    config.Theme,
		Bounds:   render.StrengthBounds{Min: config.MinStrength, Max: config.MaxStrength},
		Location: location,
	})
}
