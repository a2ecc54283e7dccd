package sim

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roman-kulish/wifi-heatmap/internal/heading"
	"github.com/roman-kulish/wifi-heatmap/internal/motion"
	"github.com/roman-kulish/wifi-heatmap/internal/timeutil"
)

func TestFieldMatchesHeading(t *testing.T) {
	gravity := flatGravity()

	for _, want := range []float64{0, math.Pi / 4, math.Pi / 2, -math.Pi / 2, 3, math.Pi} {
		got, ok := heading.Compute(gravity, Field(want))
		require.True(t, ok)
		assert.InDelta(t, want, got, 1e-9)
	}
}

func TestWalkerStream(t *testing.T) {
	clock := timeutil.NewMockClock(time.Unix(0, 0))
	w := NewWalker(
		[]Leg{{Heading: 0, Steps: 1}, {Heading: math.Pi / 2, Steps: 1}},
		WithClock(clock),
		WithSampleInterval(100*time.Millisecond),
		WithStepPeriod(200*time.Millisecond),
	)
	assert.False(t, w.Capabilities().StepSensor)

	ctx, cancel := context.WithCancel(context.Background())
	events := make(chan motion.Event, 16)
	done := make(chan error, 1)
	go func() { done <- w.Stream(ctx, events) }()

	require.Eventually(t, func() bool { return clock.ActiveTickers() == 1 }, time.Second, time.Millisecond)

	var peaks []float64
	for i := 0; i < 4; i++ {
		clock.Advance(100 * time.Millisecond)

		mag := <-events
		require.Equal(t, motion.KindMagnetometer, mag.Kind)
		accel := <-events
		require.Equal(t, motion.KindAccelerometer, accel.Kind)

		if accel.Vector.Norm() > 12 {
			facing, _ := heading.Compute(flatGravity(), mag.Vector)
			peaks = append(peaks, facing)
		}
	}

	cancel()
	require.NoError(t, <-done)

	require.Len(t, peaks, 2)
	assert.InDelta(t, 0, peaks[0], 1e-9)
	assert.InDelta(t, math.Pi/2, peaks[1], 1e-9)
}

func flatGravity() r3.Vector {
	return r3.Vector{Z: heading.StandardGravity}
}
