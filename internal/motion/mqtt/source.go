// Package mqtt subscribes to motion sensor topics on an MQTT broker, for sensor boards
// that publish instead of being wired to the host.
package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/golang/geo/r3"

	"github.com/roman-kulish/wifi-heatmap/internal/motion"
)

const (
	DefaultAccelerometerTopic = "heatmap/motion/accelerometer"
	DefaultMagnetometerTopic  = "heatmap/motion/magnetometer"
	DefaultStepTopic          = "heatmap/motion/step"

	bufferSize        = 64
	disconnectQuiesce = 250 // ms
	subscribeTimeout  = 5 * time.Second
)

// Config is the broker and topic configuration.
type Config struct {
	Broker     string `yaml:"broker"`
	ClientID   string `yaml:"clientID"`
	QoS        byte   `yaml:"qos"`
	StepSensor bool   `yaml:"stepSensor"`
	Topics     Topics `yaml:"topics"`
}

// Topics names the topic per sensor. An empty step topic means no step sensor.
type Topics struct {
	Accelerometer string `yaml:"accelerometer"`
	Magnetometer  string `yaml:"magnetometer"`
	Step          string `yaml:"step"`
}

// Client is the part of paho.Client used by the source.
type Client interface {
	Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token
	Unsubscribe(topics ...string) paho.Token
}

// vector is the JSON payload of accelerometer and magnetometer messages
type vector struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// WithLogger sets the logger for the source
func WithLogger(logger *slog.Logger) func(s *Source) {
	return func(s *Source) {
		s.logger = logger.With(slog.String("source", "mqtt"))
	}
}

// Source is a motion.Source fed by MQTT subscriptions.
type Source struct {
	client     Client
	disconnect func()
	config     Config
	now        func() time.Time
	logger     *slog.Logger
}

// Dial connects to the broker in config.
func Dial(config Config, options ...func(s *Source)) (*Source, error) {
	if config.Broker == "" {
		return nil, fmt.Errorf("mqtt: broker is required")
	}
	if config.ClientID == "" {
		config.ClientID = "wifi-heatmap-walker"
	}

	opts := paho.NewClientOptions().
		AddBroker(config.Broker).
		SetClientID(config.ClientID).
		SetAutoReconnect(true)

	client := paho.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("%w: connecting to %s: %w", motion.ErrUnavailable, config.Broker, token.Error())
	}

	s := New(client, config, options...)
	s.disconnect = func() { client.Disconnect(disconnectQuiesce) }

	s.logger.Info("connected to MQTT broker", slog.String("broker", config.Broker))

	return s, nil
}

// New wraps an already connected client.
func New(client Client, config Config, options ...func(s *Source)) *Source {
	if config.Topics.Accelerometer == "" {
		config.Topics.Accelerometer = DefaultAccelerometerTopic
	}
	if config.Topics.Magnetometer == "" {
		config.Topics.Magnetometer = DefaultMagnetometerTopic
	}
	if config.StepSensor && config.Topics.Step == "" {
		config.Topics.Step = DefaultStepTopic
	}

	s := Source{
		client:     client,
		disconnect: func() {},
		config:     config,
		now:        time.Now,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, option := range options {
		option(&s)
	}

	return &s
}

func (s *Source) Capabilities() motion.Capabilities {
	return motion.Capabilities{StepSensor: s.config.StepSensor}
}

// Close disconnects from the broker.
func (s *Source) Close() error {
	s.disconnect()
	return nil
}

// Stream subscribes to the sensor topics and forwards messages until ctx is cancelled,
// then unsubscribes. Paho callbacks only hand messages to Stream's own loop, so nothing is
// sent on events once Stream has returned.
func (s *Source) Stream(ctx context.Context, events chan<- motion.Event) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	in := make(chan motion.Event, bufferSize)

	subscriptions := map[string]motion.Kind{
		s.config.Topics.Accelerometer: motion.KindAccelerometer,
		s.config.Topics.Magnetometer:  motion.KindMagnetometer,
	}
	if s.config.StepSensor {
		subscriptions[s.config.Topics.Step] = motion.KindStep
	}

	var topics []string
	for topic, kind := range subscriptions {
		token := s.client.Subscribe(topic, s.config.QoS, s.handler(ctx, kind, in))
		if !token.WaitTimeout(subscribeTimeout) || token.Error() != nil {
			s.unsubscribe(topics)
			return fmt.Errorf("%w: subscribing to %s: %v", motion.ErrUnavailable, topic, token.Error())
		}
		topics = append(topics, topic)
	}

	s.logger.Debug("subscribed to motion topics", slog.Any("topics", topics))

	for {
		select {
		case <-ctx.Done():
			s.unsubscribe(topics)
			return nil

		case ev := <-in:
			if !motion.Send(ctx, events, ev) {
				s.unsubscribe(topics)
				return nil
			}
		}
	}
}

func (s *Source) handler(ctx context.Context, kind motion.Kind, in chan<- motion.Event) paho.MessageHandler {
	return func(_ paho.Client, msg paho.Message) {
		ev := motion.Event{Kind: kind, Time: s.now()}

		if kind != motion.KindStep {
			var v vector
			if err := json.Unmarshal(msg.Payload(), &v); err != nil {
				s.logger.Warn(fmt.Sprintf("%s payload unmarshal error: %s", kind, err.Error()))
				return
			}
			ev.Vector = r3.Vector{X: v.X, Y: v.Y, Z: v.Z}
		}

		select {
		case in <- ev:
		case <-ctx.Done():
		default:
			s.logger.Debug("motion buffer full, dropping event", slog.String("kind", kind.String()))
		}
	}
}

func (s *Source) unsubscribe(topics []string) {
	if len(topics) == 0 {
		return
	}

	token := s.client.Unsubscribe(topics...)
	if !token.WaitTimeout(subscribeTimeout) || token.Error() != nil {
		s.logger.Warn("unsubscribe did not complete", slog.Any("topics", topics))
	}
}
