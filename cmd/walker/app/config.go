package app

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roman-kulish/wifi-heatmap/internal/deadreckoning"
	"github.com/roman-kulish/wifi-heatmap/internal/heatmap"
	"github.com/roman-kulish/wifi-heatmap/internal/motion/mqtt"
	"github.com/roman-kulish/wifi-heatmap/internal/motion/serial"
	"github.com/roman-kulish/wifi-heatmap/internal/render"
	"github.com/roman-kulish/wifi-heatmap/internal/step"
	"github.com/roman-kulish/wifi-heatmap/internal/wifi/iw"
	"github.com/roman-kulish/wifi-heatmap/internal/wifi/sim"
)

const (
	ScannerIW  ScannerType = "iw"
	ScannerSim ScannerType = "sim"

	MotionMQTT   MotionType = "mqtt"
	MotionSerial MotionType = "serial"
	MotionSim    MotionType = "sim"

	defaultListen = ":8080"
)

type ScannerType string

type MotionType string

// TimeDuration is a time.Duration written as "2s", "300ms" in the configuration file
type TimeDuration time.Duration

func (d *TimeDuration) UnmarshalYAML(value *yaml.Node) error {
	duration, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("app.TimeDuration: failed to parse: %s", err)
	}

	*d = TimeDuration(duration)
	return nil
}

func (d TimeDuration) MarshalYAML() (interface{}, error) {
	return d.String(), nil
}

func (d TimeDuration) Duration() time.Duration {
	return time.Duration(d)
}

func (d TimeDuration) String() string {
	return time.Duration(d).String()
}

// Config represents the main application configuration
type Config struct {
	Settings  Settings        `yaml:"settings"`
	Recording RecordingConfig `yaml:"recording"`
	Detector  DetectorConfig  `yaml:"detector"`
	Scanner   ScannerConfig   `yaml:"scanner"`
	Motion    MotionConfig    `yaml:"motion"`
	Render    RenderConfig    `yaml:"render"`
	Server    ServerConfig    `yaml:"server"`
}

// Settings represents global application settings
type Settings struct {
	LogLevel slog.Level `yaml:"logLevel"`
}

// RecordingConfig represents the recorder settings
type RecordingConfig struct {
	Target         string       `yaml:"target"` // BSSID recorded from start-up, optional
	Anchor         PointConfig  `yaml:"anchor"`
	StepSize       float64      `yaml:"stepSize"`
	SampleInterval TimeDuration `yaml:"sampleInterval"`
}

type PointConfig struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
}

// DetectorConfig tunes the accelerometer step detector
type DetectorConfig struct {
	Threshold   float64      `yaml:"threshold"`
	MinInterval TimeDuration `yaml:"minInterval"`
}

// ScannerConfig selects and configures the radio scanner
type ScannerConfig struct {
	Type      ScannerType  `yaml:"type"`
	Interface string       `yaml:"interface"`
	Timeout   TimeDuration `yaml:"timeout"`

	// simulated scanner only
	Noise         float64             `yaml:"noise"`
	Seed          uint64              `yaml:"seed"`
	UnitsPerMeter float64             `yaml:"unitsPerMeter"`
	Throttle      TimeDuration        `yaml:"throttle"`
	AccessPoints  []AccessPointConfig `yaml:"accessPoints"`
}

type AccessPointConfig struct {
	SSID      string  `yaml:"ssid"`
	BSSID     string  `yaml:"bssid"`
	Frequency int     `yaml:"frequency"`
	X         float64 `yaml:"x"`
	Y         float64 `yaml:"y"`
	Offset    float64 `yaml:"offset"`
}

// MotionConfig selects and configures the motion sensor
type MotionConfig struct {
	Type   MotionType    `yaml:"type"`
	MQTT   mqtt.Config   `yaml:"mqtt"`
	Serial serial.Config `yaml:"serial"`
	Sim    SimConfig     `yaml:"sim"`
}

// SimConfig is the simulated walker's route
type SimConfig struct {
	StepPeriod     TimeDuration `yaml:"stepPeriod"`
	SampleInterval TimeDuration `yaml:"sampleInterval"`
	Route          []LegConfig  `yaml:"route"`
}

type LegConfig struct {
	Heading float64 `yaml:"heading"` // degrees, 0 = north, 90 = east
	Steps   int     `yaml:"steps"`
}

// RenderConfig configures GET /api/heatmap.png
type RenderConfig struct {
	Theme       render.Theme `yaml:"theme"`
	Width       int          `yaml:"width"`
	Height      int          `yaml:"height"`
	MinStrength float64      `yaml:"minStrength"`
	MaxStrength float64      `yaml:"maxStrength"`
	Timezone    string       `yaml:"timezone"`
}

type ServerConfig struct {
	Listen string `yaml:"listen"`
}

// NewConfig returns the configuration with every default applied
func NewConfig() *Config {
	return &Config{
		Settings: Settings{LogLevel: slog.LevelInfo},
		Recording: RecordingConfig{
			Anchor:         PointConfig{X: deadreckoning.DefaultAnchor.X, Y: deadreckoning.DefaultAnchor.Y},
			StepSize:       deadreckoning.DefaultStepSize,
			SampleInterval: TimeDuration(heatmap.DefaultSampleInterval),
		},
		Detector: DetectorConfig{
			Threshold:   step.DefaultThreshold,
			MinInterval: TimeDuration(step.DefaultMinInterval),
		},
		Scanner: ScannerConfig{
			Type:          ScannerIW,
			Timeout:       TimeDuration(iw.DefaultTimeout),
			Noise:         sim.DefaultNoise,
			UnitsPerMeter: sim.DefaultUnitsPerMeter,
		},
		Motion: MotionConfig{Type: MotionSim},
		Render: RenderConfig{
			Theme:       render.ZonesTheme,
			MinStrength: render.DefaultStrengthMin,
			MaxStrength: render.DefaultStrengthMax,
		},
		Server: ServerConfig{Listen: defaultListen},
	}
}

// LoadConfig reads the YAML file at path over the defaults and validates the result
func LoadConfig(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening configuration file: %w", err)
	}
	defer f.Close()

	config := NewConfig()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err = dec.Decode(config); err != nil {
		return nil, fmt.Errorf("decoding configuration file: %w", err)
	}

	if err = config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate reports every invalid setting at once
func (c *Config) Validate() error {
	var errs []error

	if c.Recording.StepSize <= 0 {
		errs = append(errs, fmt.Errorf("recording.stepSize must be positive: %v given", c.Recording.StepSize))
	}
	if c.Recording.SampleInterval <= 0 {
		errs = append(errs, fmt.Errorf("recording.sampleInterval must be positive: %s given", c.Recording.SampleInterval))
	}
	if c.Detector.Threshold <= 0 {
		errs = append(errs, fmt.Errorf("detector.threshold must be positive: %v given", c.Detector.Threshold))
	}
	if c.Detector.MinInterval < 0 {
		errs = append(errs, fmt.Errorf("detector.minInterval must not be negative: %s given", c.Detector.MinInterval))
	}

	switch c.Scanner.Type {
	case ScannerIW:
		if c.Scanner.Interface == "" {
			errs = append(errs, errors.New("scanner.interface is required for the iw scanner"))
		}
		if c.Scanner.Timeout <= 0 {
			errs = append(errs, fmt.Errorf("scanner.timeout must be positive: %s given", c.Scanner.Timeout))
		}
	case ScannerSim:
		if len(c.Scanner.AccessPoints) == 0 {
			errs = append(errs, errors.New("scanner.accessPoints is required for the sim scanner"))
		}
		for i, ap := range c.Scanner.AccessPoints {
			if ap.BSSID == "" {
				errs = append(errs, fmt.Errorf("scanner.accessPoints[%d].bssid is required", i))
			}
		}
		if c.Scanner.UnitsPerMeter <= 0 {
			errs = append(errs, fmt.Errorf("scanner.unitsPerMeter must be positive: %v given", c.Scanner.UnitsPerMeter))
		}
	default:
		errs = append(errs, fmt.Errorf("scanner.type: unknown type '%s'", c.Scanner.Type))
	}

	switch c.Motion.Type {
	case MotionMQTT:
		if c.Motion.MQTT.Broker == "" {
			errs = append(errs, errors.New("motion.mqtt.broker is required"))
		}
		if c.Motion.MQTT.QoS > 2 {
			errs = append(errs, fmt.Errorf("motion.mqtt.qos must be 0, 1 or 2: %d given", c.Motion.MQTT.QoS))
		}
	case MotionSerial:
		if c.Motion.Serial.Port == "" {
			errs = append(errs, errors.New("motion.serial.port is required"))
		}
	case MotionSim:
		for i, leg := range c.Motion.Sim.Route {
			if leg.Steps <= 0 {
				errs = append(errs, fmt.Errorf("motion.sim.route[%d].steps must be positive: %d given", i, leg.Steps))
			}
		}
	default:
		errs = append(errs, fmt.Errorf("motion.type: unknown type '%s'", c.Motion.Type))
	}

	if c.Render.MaxStrength <= c.Render.MinStrength {
		errs = append(errs, fmt.Errorf("render: maxStrength must be greater than minStrength: %v <= %v",
			c.Render.MaxStrength, c.Render.MinStrength))
	}
	if c.Render.Timezone != "" {
		if _, err := time.LoadLocation(c.Render.Timezone); err != nil {
			errs = append(errs, fmt.Errorf("render.timezone: %w", err))
		}
	}
	if c.Server.Listen == "" {
		errs = append(errs, errors.New("server.listen is required"))
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	return nil
}
