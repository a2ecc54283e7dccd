package render

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"
	"time"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roman-kulish/wifi-heatmap/internal/heatmap"
)

func TestZonePalette(t *testing.T) {
	tests := []struct {
		dBm  float64
		want string
	}{
		{-30, "#ff0055"},
		{-50, "#ff0055"},
		{-51, "#ff9900"},
		{-60, "#ff9900"},
		{-65, "#ffee00"},
		{-80, "#00ffcc"},
		{-81, "#0066ff"},
		{-120, "#0066ff"},
	}

	for _, tt := range tests {
		got := ZonePalette{}.Color(tt.dBm).Hex()
		assert.Equal(t, tt.want, got, "dBm %v", tt.dBm)
	}
}

func TestColorMapper(t *testing.T) {
	cm, err := NewColorMapper(ThermalTheme, StrengthBounds{Min: -90, Max: -30}, 64)
	require.NoError(t, err)

	black, white := colorful.Color{}, colorful.Color{R: 1, G: 1, B: 1}

	assert.True(t, cm.Color(-90).AlmostEqualRgb(black), "bottom of the range")
	assert.True(t, cm.Color(-200).AlmostEqualRgb(black), "clamped below")
	assert.True(t, cm.Color(-30).AlmostEqualRgb(white), "top of the range")
	assert.True(t, cm.Color(0).AlmostEqualRgb(white), "clamped above")
	assert.Equal(t, ThermalTheme, cm.Theme())

	_, err = NewColorMapper("sepia", StrengthBounds{}, 0)
	assert.Error(t, err)
}

func TestNewRendererUnknownTheme(t *testing.T) {
	_, err := NewRenderer(Config{Theme: "sepia"})
	assert.Error(t, err)
}

func TestRenderSize(t *testing.T) {
	r, err := NewRenderer(Config{Width: 300, Height: 200})
	require.NoError(t, err)

	img, err := r.Render(heatmap.Snapshot{
		Anchor:   heatmap.Position{X: 500, Y: 1000},
		Position: heatmap.Position{X: 500, Y: 1000},
	})
	require.NoError(t, err)

	want := image.Pt(300+defaultLeftBorder+defaultRightBorder, 200+defaultTopBorder+defaultBottomBorder)
	assert.Equal(t, want, img.Bounds().Size())
}

func TestRenderPointColour(t *testing.T) {
	r, err := NewRenderer(Config{Width: 400, Height: 400, Location: time.UTC})
	require.NoError(t, err)

	snap := heatmap.Snapshot{
		Session: heatmap.Session{
			BSSID:     "aa:bb:cc:dd:ee:ff",
			StartTime: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
			Points: []heatmap.Point{
				{X: 500, Y: 1000, Strength: -45, Trigger: heatmap.TriggerTick},
				{X: 500, Y: 850, Strength: -75, Trigger: heatmap.TriggerStep},
			},
		},
		Anchor:   heatmap.Position{X: 500, Y: 1000},
		Position: heatmap.Position{X: 650, Y: 850},
		Steps:    6,
	}

	img, err := r.Render(snap)
	require.NoError(t, err)

	b := r.config.BorderConfig
	area := image.Rect(b.Left, b.Top, b.Left+400, b.Top+400)
	proj := r.project(snap, area)

	for _, p := range snap.Points {
		px := proj.toPixel(p.X, p.Y)
		got := img.RGBAAt(int(px.x), int(px.y))
		want := toRGBA(ZonePalette{}.Color(float64(p.Strength)), 0xff)
		assertNearColor(t, want, got)
	}

	// the marker is a ring, its centre shows what is underneath
	center := proj.toPixel(snap.Position.X, snap.Position.Y)
	assert.NotEqual(t, markerFill, img.RGBAAt(int(center.x), int(center.y)))
	ring := img.RGBAAt(int(center.x+markerRadius-markerRing/2), int(center.y))
	assertNearColor(t, markerFill, ring)
}

func TestProjectKeepsAspect(t *testing.T) {
	r, err := NewRenderer(Config{Width: 400, Height: 200})
	require.NoError(t, err)

	snap := heatmap.Snapshot{
		Anchor:   heatmap.Position{X: 0, Y: 0},
		Position: heatmap.Position{X: 1000, Y: 0},
	}
	proj := r.project(snap, image.Rect(0, 0, 400, 200))

	a := proj.toPixel(0, 0)
	c := proj.toPixel(100, 100)
	assert.InDelta(t, c.x-a.x, c.y-a.y, 1e-9, "one scale for both axes")

	left, right := proj.toPixel(0, 0), proj.toPixel(1000, 0)
	assert.Greater(t, left.x, 0.0)
	assert.Less(t, right.x, 400.0)
}

func TestEncode(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 4, 3))

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, img, PNG))

	decoded, err := png.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, img.Bounds(), decoded.Bounds())

	buf.Reset()
	require.NoError(t, Encode(&buf, img, JPEG))
	assert.NotZero(t, buf.Len())

	assert.ErrorIs(t, Encode(&buf, img, "gif"), ErrUnknownFormat)
	assert.Equal(t, "image/jpeg", ContentType(JPEG))
	assert.Equal(t, "image/png", ContentType(PNG))
}

func assertNearColor(t *testing.T, want, got color.RGBA) {
	t.Helper()

	near := func(a, b uint8) bool {
		d := int(a) - int(b)
		return d >= -2 && d <= 2
	}
	if !near(want.R, got.R) || !near(want.G, got.G) || !near(want.B, got.B) || !near(want.A, got.A) {
		t.Errorf("colour = %v, want %v", got, want)
	}
}
