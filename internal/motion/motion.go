// Package motion defines the motion sensor collaborator: a source of accelerometer,
// magnetometer and hardware step-counter events, all in device coordinates.
package motion

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang/geo/r3"
)

const (
	KindAccelerometer Kind = iota + 1
	KindMagnetometer
	KindStep
)

var (
	// ErrUnknownKind is returned for sensor lines with an unrecognised prefix
	ErrUnknownKind = errors.New("unknown sensor kind")

	// ErrUnavailable is returned by sources that cannot deliver any events
	ErrUnavailable = errors.New("motion sensor unavailable")
)

// Kind identifies the sensor an Event came from.
type Kind uint8

func (k Kind) String() string {
	switch k {
	case KindAccelerometer:
		return "accelerometer"
	case KindMagnetometer:
		return "magnetometer"
	case KindStep:
		return "step"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Event is a single sensor reading. Vector is m/s² for the accelerometer and µT for the
// magnetometer; it is unused for step events.
type Event struct {
	Kind   Kind
	Vector r3.Vector
	Time   time.Time
}

// Capabilities describes which sensors a source has.
type Capabilities struct {
	StepSensor bool
}

// Source streams motion events. Stream blocks until ctx is cancelled or the source fails,
// and never sends on events after it returns.
type Source interface {
	Capabilities() Capabilities
	Stream(ctx context.Context, events chan<- Event) error
}

// ParseLine decodes the line protocol used by serial sensor boards:
//
//	A,<x>,<y>,<z>   accelerometer
//	M,<x>,<y>,<z>   magnetometer
//	S               step counter fired
func ParseLine(line string, now time.Time) (Event, error) {
	fields := strings.Split(strings.TrimSpace(line), ",")

	var kind Kind
	switch strings.ToUpper(fields[0]) {
	case "A":
		kind = KindAccelerometer
	case "M":
		kind = KindMagnetometer
	case "S":
		return Event{Kind: KindStep, Time: now}, nil
	default:
		return Event{}, fmt.Errorf("%w: %q", ErrUnknownKind, fields[0])
	}

	if len(fields) != 4 {
		return Event{}, fmt.Errorf("invalid %s line: expected 3 axes, got %d", kind, len(fields)-1)
	}

	var axes [3]float64
	for i, field := range fields[1:] {
		v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
		if err != nil {
			return Event{}, fmt.Errorf("invalid %s axis %d: %w", kind, i, err)
		}
		axes[i] = v
	}

	return Event{
		Kind:   kind,
		Vector: r3.Vector{X: axes[0], Y: axes[1], Z: axes[2]},
		Time:   now,
	}, nil
}

// Send delivers ev unless ctx is done first. It reports whether the event was delivered.
func Send(ctx context.Context, events chan<- Event, ev Event) bool {
	select {
	case events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}
