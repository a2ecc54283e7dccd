package sim

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/golang/geo/r2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roman-kulish/wifi-heatmap/internal/timeutil"
)

func TestLevel(t *testing.T) {
	tests := []struct {
		meters float64
		want   float64
	}{
		{0, -24.1},
		{2.5, -26.0},
		{10, -31.3},
		{12.5, -32.95},
		{95, -66.2},
		{400, -66.2},
	}

	for _, tt := range tests {
		if got := Level(tt.meters); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("Level(%v) = %v, want %v", tt.meters, got, tt.want)
		}
	}
}

func TestLevelRisesTowardAccessPoint(t *testing.T) {
	for meters := 50.0; meters > 0; meters -= 0.5 {
		closer := Level(meters - 0.5)
		if far := Level(meters); closer < far {
			t.Errorf("Level(%v) = %v is weaker than Level(%v) = %v", meters-0.5, closer, meters, far)
		}
	}
}

func TestScannerFollowsPosition(t *testing.T) {
	ap := AccessPoint{SSID: "lab", BSSID: "02:00:00:00:00:01", Frequency: 2412, Position: r2.Point{X: 500, Y: 1000}}
	s := New([]AccessPoint{ap}, WithNoise(0), WithUnitsPerMeter(1))

	results, err := s.CurrentResults(context.Background())
	require.NoError(t, err)
	assert.Empty(t, results, "nothing before the first scan")

	pos := r2.Point{X: 500, Y: 990}
	s.Locate(func() r2.Point { return pos })

	require.True(t, s.TriggerScan(context.Background()))
	results, err = s.CurrentResults(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, -31, results[0].Level)
	assert.Equal(t, "02:00:00:00:00:01", results[0].BSSID)

	pos = r2.Point{X: 500, Y: 905}
	require.True(t, s.TriggerScan(context.Background()))
	results, _ = s.CurrentResults(context.Background())
	assert.Equal(t, -66, results[0].Level)
}

func TestScannerThrottle(t *testing.T) {
	clock := timeutil.NewMockClock(time.Unix(0, 0))
	s := New(nil, WithClock(clock), WithThrottle(30*time.Second))

	assert.True(t, s.TriggerScan(context.Background()))
	clock.Advance(10 * time.Second)
	assert.False(t, s.TriggerScan(context.Background()))
	clock.Advance(20 * time.Second)
	assert.True(t, s.TriggerScan(context.Background()))
}
