package step

import (
	"math"
	"testing"
	"time"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roman-kulish/wifi-heatmap/internal/heading"
	"github.com/roman-kulish/wifi-heatmap/internal/timeutil"
)

func magnitude(m float64) r3.Vector {
	return r3.Vector{X: 0, Y: 0, Z: m}
}

func newPeak(clock timeutil.Clock, cell *heading.Cell) Detector {
	return New(false, cell, WithClock(clock))
}

func TestNewSelectsStrategy(t *testing.T) {
	cell := new(heading.Cell)

	assert.Equal(t, SensorBackedName, New(true, cell).Name())
	assert.Equal(t, AccelerometerPeakName, New(false, cell).Name())
}

func TestSensorBacked(t *testing.T) {
	clock := timeutil.NewMockClock(time.Unix(100, 0))
	cell := new(heading.Cell)
	cell.Store(math.Pi / 2)

	d := New(true, cell, WithClock(clock))

	_, ok := d.OnAccelerometer(magnitude(30))
	assert.False(t, ok, "accelerometer must not produce steps")

	for i := 0; i < 3; i++ {
		ev, ok := d.OnStepSensor()
		require.True(t, ok)
		assert.Equal(t, math.Pi/2, ev.Heading)
		assert.Equal(t, clock.Now(), ev.Time)
	}
}

func TestAccelerometerPeakThreshold(t *testing.T) {
	tests := []struct {
		name      string
		magnitude float64
		want      bool
	}{
		{"below", 11.9, false},
		{"exactly threshold", 12, false},
		{"above", 12.01, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newPeak(timeutil.NewMockClock(time.Unix(0, 0)), new(heading.Cell))

			_, ok := d.OnAccelerometer(magnitude(tt.magnitude))
			assert.Equal(t, tt.want, ok)
		})
	}
}

func TestAccelerometerPeakInterval(t *testing.T) {
	tests := []struct {
		name string
		gap  time.Duration
		want bool
	}{
		{"within interval", 200 * time.Millisecond, false},
		{"exactly interval", 300 * time.Millisecond, false},
		{"after interval", 301 * time.Millisecond, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := timeutil.NewMockClock(time.Unix(0, 0))
			d := newPeak(clock, new(heading.Cell))

			_, ok := d.OnAccelerometer(magnitude(15))
			require.True(t, ok, "first crossing must emit")

			clock.Advance(tt.gap)
			_, ok = d.OnAccelerometer(magnitude(15))
			assert.Equal(t, tt.want, ok)
		})
	}
}

func TestAccelerometerPeakRapidSamples(t *testing.T) {
	clock := timeutil.NewMockClock(time.Unix(0, 0))
	cell := new(heading.Cell)
	d := newPeak(clock, cell)

	var emitted []time.Duration
	for i := 0; i < 12; i++ { // 1.2s of samples, 100ms apart
		if _, ok := d.OnAccelerometer(magnitude(15)); ok {
			emitted = append(emitted, time.Duration(i)*100*time.Millisecond)
		}
		clock.Advance(100 * time.Millisecond)
	}

	want := []time.Duration{0, 400 * time.Millisecond, 800 * time.Millisecond}
	assert.Equal(t, want, emitted)
}

func TestAccelerometerPeakIgnoresStepSensor(t *testing.T) {
	d := newPeak(timeutil.NewMockClock(time.Unix(0, 0)), new(heading.Cell))

	_, ok := d.OnStepSensor()
	assert.False(t, ok)
}

func TestAccelerometerPeakStampsHeading(t *testing.T) {
	cell := new(heading.Cell)
	cell.Store(-1.25)

	d := New(false, cell, WithClock(timeutil.NewMockClock(time.Unix(0, 0))), WithThreshold(5))

	ev, ok := d.OnAccelerometer(magnitude(6))
	require.True(t, ok)
	assert.Equal(t, -1.25, ev.Heading)
}
