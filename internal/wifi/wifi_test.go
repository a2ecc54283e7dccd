package wifi

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roman-kulish/wifi-heatmap/internal/timeutil"
)

type fakeScanner struct {
	mu       sync.Mutex
	calls    []string
	networks []Network
	err      error
	trigger  bool
}

func (f *fakeScanner) TriggerScan(context.Context) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "trigger")
	return f.trigger
}

func (f *fakeScanner) CurrentResults(context.Context) ([]Network, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "results")
	return f.networks, f.err
}

func TestSignalQuality(t *testing.T) {
	tests := []struct {
		level int
		want  int
	}{
		{-110, 0},
		{-100, 0},
		{-99, 2},
		{-75, 50},
		{-51, 98},
		{-50, 100},
		{-30, 100},
	}

	for _, tt := range tests {
		if got := SignalQuality(tt.level); got != tt.want {
			t.Errorf("SignalQuality(%d) = %d, want %d", tt.level, got, tt.want)
		}
	}
}

func TestZoneOf(t *testing.T) {
	tests := []struct {
		level int
		want  Zone
	}{
		{-45, ZoneHot},
		{-50, ZoneHot},
		{-51, ZoneWarm},
		{-60, ZoneWarm},
		{-61, ZoneFair},
		{-70, ZoneFair},
		{-71, ZoneCold},
		{-95, ZoneCold},
	}

	for _, tt := range tests {
		if got := ZoneOf(tt.level); got != tt.want {
			t.Errorf("ZoneOf(%d) = %s, want %s", tt.level, got, tt.want)
		}
	}
}

func TestChannelAndBand(t *testing.T) {
	tests := []struct {
		freq    int
		channel int
		band    Band
	}{
		{2412, 1, Band24GHz},
		{2437, 6, Band24GHz},
		{2484, 14, Band24GHz},
		{5180, 36, Band5GHz},
		{5825, 165, Band5GHz},
		{5955, 1, Band6GHz},
		{900, 0, ""},
	}

	for _, tt := range tests {
		n := Network{Frequency: tt.freq}
		if got := n.Channel(); got != tt.channel {
			t.Errorf("Channel() for %d MHz = %d, want %d", tt.freq, got, tt.channel)
		}
		if got := n.Band(); got != tt.band {
			t.Errorf("Band() for %d MHz = %q, want %q", tt.freq, got, tt.band)
		}
	}
}

func TestSortByLevel(t *testing.T) {
	networks := []Network{
		{BSSID: "b", Level: -70},
		{BSSID: "c", Level: -40},
		{BSSID: "a", Level: -70},
		{BSSID: "d", Level: -90},
	}

	SortByLevel(networks)

	var got []string
	for _, n := range networks {
		got = append(got, n.BSSID)
	}

	if diff := cmp.Diff([]string{"c", "a", "b", "d"}, got); diff != "" {
		t.Errorf("SortByLevel() mismatch (-want +got):\n%s", diff)
	}
}

func TestSamplerTriggersBeforeReading(t *testing.T) {
	clock := timeutil.NewMockClock(time.Unix(50, 0))
	scanner := &fakeScanner{
		networks: []Network{
			{SSID: "office", BSSID: "aa:bb:cc:dd:ee:01", Level: -48},
			{SSID: "guest", BSSID: "aa:bb:cc:dd:ee:02", Level: -67},
		},
	}

	s := NewSampler(scanner, WithClock(clock))

	r, ok := s.Sample(context.Background(), "AA:BB:CC:DD:EE:02")
	require.True(t, ok)

	assert.Equal(t, Reading{BSSID: "aa:bb:cc:dd:ee:02", SSID: "guest", Strength: -67, Time: clock.Now()}, r)
	assert.Equal(t, []string{"trigger", "results"}, scanner.calls)
}

func TestSamplerAbsent(t *testing.T) {
	tests := []struct {
		name    string
		scanner *fakeScanner
	}{
		{"target missing", &fakeScanner{networks: []Network{{BSSID: "aa:bb:cc:dd:ee:01", Level: -50}}}},
		{"empty results", &fakeScanner{}},
		{"scanner error", &fakeScanner{err: errors.New("device busy")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := NewSampler(tt.scanner).Sample(context.Background(), "aa:bb:cc:dd:ee:09")
			assert.False(t, ok)
		})
	}
}

func TestListerFallsBackToCache(t *testing.T) {
	scanner := &fakeScanner{
		networks: []Network{
			{BSSID: "weak", Level: -80},
			{BSSID: "strong", Level: -40},
		},
	}
	l := NewLister(scanner, nil)

	_, err := NewLister(&fakeScanner{err: errors.New("boom")}, nil).Networks(context.Background())
	require.Error(t, err, "no cache yet")

	first, err := l.Networks(context.Background())
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.Equal(t, "strong", first[0].BSSID)

	scanner.err = errors.New("device busy")
	second, err := l.Networks(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
