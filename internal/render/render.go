// Package render draws a heatmap session as an image: the walked path, one coloured dot per
// signal point, the current position and a legend.
package render

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"image/png"
	"io"
	"math"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/golang/freetype"
	"github.com/golang/freetype/truetype"
	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/vector"

	"github.com/roman-kulish/wifi-heatmap/internal/heatmap"
)

const (
	dpi            = 72.0
	fontSize       = 12.0
	tickMarkLength = 5

	// Default border sizes in pixels
	defaultTopBorder    = 40
	defaultLeftBorder   = 50
	defaultBottomBorder = 40
	defaultRightBorder  = 20

	defaultWidth          = 800
	defaultHeight         = 800
	defaultGridStep       = 100.0
	defaultMinSpan        = 400.0
	defaultDotRadius      = 5.0
	defaultGlowRadius     = 28.0
	defaultDatetimeFormat = time.DateTime

	pathWidth    = 2.0
	markerRadius = 9.0
	markerRing   = 3.0
	swatchSize   = 12
)

var (
	background = color.RGBA{R: 0x12, G: 0x14, B: 0x1c, A: 0xff}
	gridColor  = color.RGBA{R: 0x2a, G: 0x2e, B: 0x3a, A: 0xff}
	textColor  = color.RGBA{R: 0xd8, G: 0xdc, B: 0xe6, A: 0xff}
	pathColor  = color.RGBA{R: 0x80, G: 0x80, B: 0x80, A: 0x80} // premultiplied white at 50%
	markerFill = color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
)

// Format is an encoded image format.
type Format string

const (
	PNG  Format = "png"
	JPEG Format = "jpeg"
)

// ErrUnknownFormat is returned by Encode for formats other than PNG and JPEG
var ErrUnknownFormat = errors.New("unknown image format")

// BorderConfig defines the sizes of the space around the map area
type BorderConfig struct {
	Top    int // Space for the legend and the X scale
	Left   int // Space for the Y scale
	Bottom int // Space for the information bar
	Right  int // Right padding
}

// Config holds the rendering options. Zero values take defaults.
type Config struct {
	Width  int // map area, pixels
	Height int // map area, pixels

	Theme  Theme
	Bounds StrengthBounds // gradient themes only

	FontSize       float64
	DatetimeFormat string
	Location       *time.Location

	GridStep   float64 // map units between grid lines
	MinSpan    float64 // smallest map extent shown, map units
	DotRadius  float64
	GlowRadius float64

	BorderConfig BorderConfig
}

// Renderer draws session snapshots. It is safe for concurrent use.
type Renderer struct {
	config  Config
	palette Palette
	font    *truetype.Font
}

// NewRenderer creates a renderer. Unknown themes are an error.
func NewRenderer(config Config) (*Renderer, error) {
	if config.Width <= 0 {
		config.Width = defaultWidth
	}
	if config.Height <= 0 {
		config.Height = defaultHeight
	}
	if config.Bounds == (StrengthBounds{}) {
		config.Bounds = StrengthBounds{Min: DefaultStrengthMin, Max: DefaultStrengthMax}
	}
	if config.FontSize == 0 {
		config.FontSize = fontSize
	}
	if config.DatetimeFormat == "" {
		config.DatetimeFormat = defaultDatetimeFormat
	}
	if config.Location == nil {
		config.Location = time.Local
	}
	if config.GridStep <= 0 {
		config.GridStep = defaultGridStep
	}
	if config.MinSpan <= 0 {
		config.MinSpan = defaultMinSpan
	}
	if config.DotRadius <= 0 {
		config.DotRadius = defaultDotRadius
	}
	if config.GlowRadius <= 0 {
		config.GlowRadius = defaultGlowRadius
	}
	if config.BorderConfig.Top == 0 {
		config.BorderConfig.Top = defaultTopBorder
	}
	if config.BorderConfig.Left == 0 {
		config.BorderConfig.Left = defaultLeftBorder
	}
	if config.BorderConfig.Bottom == 0 {
		config.BorderConfig.Bottom = defaultBottomBorder
	}
	if config.BorderConfig.Right == 0 {
		config.BorderConfig.Right = defaultRightBorder
	}

	palette, err := NewPalette(config.Theme, config.Bounds)
	if err != nil {
		return nil, err
	}

	parsedFont, err := freetype.ParseFont(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("parsing font: %w", err)
	}

	return &Renderer{
		config:  config,
		palette: palette,
		font:    parsedFont,
	}, nil
}

// Render draws the snapshot.
func (r *Renderer) Render(s heatmap.Snapshot) (*image.RGBA, error) {
	b := r.config.BorderConfig
	img := image.NewRGBA(image.Rect(0, 0, r.config.Width+b.Left+b.Right, r.config.Height+b.Top+b.Bottom))
	draw.Draw(img, img.Bounds(), image.NewUniform(background), image.Point{}, draw.Src)

	area := image.Rect(b.Left, b.Top, b.Left+r.config.Width, b.Top+r.config.Height)
	proj := r.project(s, area)

	ann, err := r.newAnnotator(img)
	if err != nil {
		return nil, fmt.Errorf("creating annotator: %w", err)
	}
	defer ann.Close()

	if err = ann.drawGrid(img, area, proj, r.config.GridStep); err != nil {
		return nil, fmt.Errorf("drawing grid: %w", err)
	}

	r.drawPoints(img, proj, s.Points)
	r.drawMarker(img, proj.toPixel(s.Position.X, s.Position.Y))

	if err = ann.drawLegend(img, r.palette, r.config.Bounds); err != nil {
		return nil, fmt.Errorf("drawing legend: %w", err)
	}
	if err = ann.drawInfoBar(img, s); err != nil {
		return nil, fmt.Errorf("drawing info bar: %w", err)
	}

	return img, nil
}

// projection maps session coordinates to pixels with one scale for both axes.
type projection struct {
	minX, minY float64
	scale      float64
	origin     point // pixel of (minX, minY)
}

func (p projection) toPixel(x, y float64) point {
	return point{
		x: p.origin.x + (x-p.minX)*p.scale,
		y: p.origin.y + (y-p.minY)*p.scale,
	}
}

func (p projection) toMap(px, py float64) (float64, float64) {
	return p.minX + (px-p.origin.x)/p.scale, p.minY + (py-p.origin.y)/p.scale
}

// project fits the anchor, the position and every point into area with some padding,
// centred, never zooming in past MinSpan.
func (r *Renderer) project(s heatmap.Snapshot, area image.Rectangle) projection {
	minX, maxX := math.Min(s.Anchor.X, s.Position.X), math.Max(s.Anchor.X, s.Position.X)
	minY, maxY := math.Min(s.Anchor.Y, s.Position.Y), math.Max(s.Anchor.Y, s.Position.Y)
	for _, p := range s.Points {
		minX, maxX = math.Min(minX, p.X), math.Max(maxX, p.X)
		minY, maxY = math.Min(minY, p.Y), math.Max(maxY, p.Y)
	}

	spanX := math.Max((maxX-minX)*1.2, r.config.MinSpan)
	spanY := math.Max((maxY-minY)*1.2, r.config.MinSpan)
	cx, cy := (minX+maxX)/2, (minY+maxY)/2

	w, h := float64(area.Dx()), float64(area.Dy())
	scale := math.Min(w/spanX, h/spanY)

	// the area may be wider or taller than the map at this scale
	spanX, spanY = w/scale, h/scale

	return projection{
		minX:   cx - spanX/2,
		minY:   cy - spanY/2,
		scale:  scale,
		origin: point{x: float64(area.Min.X), y: float64(area.Min.Y)},
	}
}

func (r *Renderer) drawPoints(img *image.RGBA, proj projection, points []heatmap.Point) {
	if len(points) == 0 {
		return
	}

	bounds := img.Bounds()
	pixels := make([]point, len(points))
	colors := make([]colorful.Color, len(points))
	for i, p := range points {
		pixels[i] = proj.toPixel(p.X, p.Y)
		colors[i] = r.palette.Color(float64(p.Strength))
	}

	for i, px := range pixels {
		glow(img, px, r.config.GlowRadius, colors[i], 0.45)
	}

	z := vector.NewRasterizer(bounds.Dx(), bounds.Dy())
	for i := 1; i < len(pixels); i++ {
		addSegment(z, pixels[i-1], pixels[i], pathWidth)
	}
	fill(img, z, pathColor)

	// one pass per distinct colour
	groups := make(map[color.RGBA][]point)
	var order []color.RGBA
	for i, px := range pixels {
		c := toRGBA(colors[i], 0xff)
		if _, ok := groups[c]; !ok {
			order = append(order, c)
		}
		groups[c] = append(groups[c], px)
	}

	for _, c := range order {
		z.Reset(bounds.Dx(), bounds.Dy())
		for _, px := range groups[c] {
			addCircle(z, px, r.config.DotRadius, true)
		}
		fill(img, z, c)
	}
}

func (r *Renderer) drawMarker(img *image.RGBA, at point) {
	bounds := img.Bounds()

	z := vector.NewRasterizer(bounds.Dx(), bounds.Dy())
	addCircle(z, at, markerRadius, true)
	addCircle(z, at, markerRadius-markerRing, false)
	fill(img, z, markerFill)
}

// Encode writes img in the given format.
func Encode(w io.Writer, img image.Image, format Format) error {
	switch format {
	case PNG, "":
		return png.Encode(w, img)
	case JPEG:
		return jpeg.Encode(w, img, &jpeg.Options{Quality: 90})
	default:
		return fmt.Errorf("%w: %s", ErrUnknownFormat, format)
	}
}

// ContentType returns the MIME type of format.
func ContentType(format Format) string {
	if format == JPEG {
		return "image/jpeg"
	}
	return "image/png"
}

type annotator struct {
	context  *freetype.Context
	fontFace font.Face
	config   Config
}

func (r *Renderer) newAnnotator(img *image.RGBA) (*annotator, error) {
	if r.font == nil {
		return nil, errors.New("no font")
	}

	ctx := freetype.NewContext()
	ctx.SetDPI(dpi)
	ctx.SetFont(r.font)
	ctx.SetFontSize(r.config.FontSize)
	ctx.SetHinting(font.HintingNone)
	ctx.SetSrc(image.NewUniform(textColor))
	ctx.SetClip(img.Bounds())
	ctx.SetDst(img)

	return &annotator{
		context: ctx,
		config:  r.config,
		fontFace: truetype.NewFace(r.font, &truetype.Options{
			Size:    r.config.FontSize,
			DPI:     dpi,
			Hinting: font.HintingNone,
		}),
	}, nil
}

func (a *annotator) Close() error {
	if a.fontFace != nil {
		return a.fontFace.Close()
	}
	return nil
}

func (a *annotator) fontHeight() int {
	metrics := a.fontFace.Metrics()
	return (metrics.Ascent + metrics.Descent).Round()
}

// drawGrid draws grid lines every step map units with their coordinates on the top and
// left borders.
func (a *annotator) drawGrid(img *image.RGBA, area image.Rectangle, proj projection, step float64) error {
	minX, minY := proj.toMap(float64(area.Min.X), float64(area.Min.Y))
	maxX, maxY := proj.toMap(float64(area.Max.X), float64(area.Max.Y))

	// thin out labels that would overlap
	for step*proj.scale < 40 {
		step *= 2
	}

	descent := a.fontFace.Metrics().Descent.Round()

	for v := math.Ceil(minX/step) * step; v <= maxX; v += step {
		x := int(proj.toPixel(v, 0).x)
		for y := area.Min.Y - tickMarkLength; y < area.Max.Y; y++ {
			img.SetRGBA(x, y, gridColor)
		}

		label := humanize.Ftoa(v)
		width := font.MeasureString(a.fontFace, label)
		pt := freetype.Pt(x-width.Round()/2, area.Min.Y-tickMarkLength-descent-2)
		if _, err := a.context.DrawString(label, pt); err != nil {
			return fmt.Errorf("drawing x label: %w", err)
		}
	}

	for v := math.Ceil(minY/step) * step; v <= maxY; v += step {
		y := int(proj.toPixel(0, v).y)
		for x := area.Min.X - tickMarkLength; x < area.Max.X; x++ {
			img.SetRGBA(x, y, gridColor)
		}

		label := humanize.Ftoa(v)
		width := font.MeasureString(a.fontFace, label)
		pt := freetype.Pt(area.Min.X-tickMarkLength-2-width.Round(), y+a.fontHeight()/2-descent)
		if _, err := a.context.DrawString(label, pt); err != nil {
			return fmt.Errorf("drawing y label: %w", err)
		}
	}

	return nil
}

// drawLegend draws the colour key in the top right corner: one swatch per band for the
// zone palette, a gradient bar otherwise.
func (a *annotator) drawLegend(img *image.RGBA, palette Palette, bounds StrengthBounds) error {
	right := img.Bounds().Max.X - a.config.BorderConfig.Right
	top := 4

	if _, ok := palette.(ZonePalette); ok {
		x := right
		for i := len(zoneBands) - 1; i >= 0; i-- {
			label := zoneLabel(i)
			width := font.MeasureString(a.fontFace, label).Round()

			x -= width
			pt := freetype.Pt(x, top+swatchSize)
			if _, err := a.context.DrawString(label, pt); err != nil {
				return fmt.Errorf("drawing legend label: %w", err)
			}

			x -= swatchSize + 4
			swatch := image.Rect(x, top+1, x+swatchSize, top+1+swatchSize)
			draw.Draw(img, swatch, image.NewUniform(toRGBA(zoneBands[i].color, 0xff)), image.Point{}, draw.Src)
			x -= 12
		}
		return nil
	}

	const barWidth = 200

	maxLabel := fmt.Sprintf("%.0f dBm", bounds.Max)
	x := right - font.MeasureString(a.fontFace, maxLabel).Round()
	if _, err := a.context.DrawString(maxLabel, freetype.Pt(x, top+swatchSize)); err != nil {
		return fmt.Errorf("drawing legend label: %w", err)
	}

	x -= barWidth + 4
	for i := 0; i < barWidth; i++ {
		dBm := bounds.Min + (bounds.Max-bounds.Min)*float64(i)/float64(barWidth-1)
		c := toRGBA(palette.Color(dBm), 0xff)
		for y := top + 1; y < top+1+swatchSize; y++ {
			img.SetRGBA(x+i, y, c)
		}
	}

	minLabel := fmt.Sprintf("%.0f", bounds.Min)
	x -= font.MeasureString(a.fontFace, minLabel).Round() + 4
	if _, err := a.context.DrawString(minLabel, freetype.Pt(x, top+swatchSize)); err != nil {
		return fmt.Errorf("drawing legend label: %w", err)
	}

	return nil
}

func zoneLabel(i int) string {
	if i == len(zoneBands)-1 {
		return fmt.Sprintf("<%.0f", zoneBands[i-1].min)
	}
	return fmt.Sprintf("≥%.0f", zoneBands[i].min)
}

func (a *annotator) drawInfoBar(img *image.RGBA, s heatmap.Snapshot) error {
	summary := heatmap.Summarize(s.Points)

	var sb strings.Builder

	if s.BSSID != "" {
		sb.WriteString(s.BSSID)
		sb.WriteString("; ")
	}
	sb.WriteString(fmt.Sprintf("%s points, %s steps", humanize.Comma(int64(summary.Count)), humanize.Comma(int64(s.Steps))))
	if summary.Count > 0 {
		sb.WriteString(fmt.Sprintf("; %.0f to %.0f dBm, mean %.1f", summary.Min, summary.Max, summary.Mean))
	}
	if !s.StartTime.IsZero() {
		sb.WriteString("; started ")
		sb.WriteString(s.StartTime.In(a.config.Location).Format(a.config.DatetimeFormat))
	}
	if s.Recording {
		sb.WriteString("; recording")
	}

	metrics := a.fontFace.Metrics()
	textY := img.Bounds().Max.Y - (a.config.BorderConfig.Bottom-a.fontHeight())/2 - metrics.Descent.Round()

	pt := freetype.Pt(a.config.BorderConfig.Left, textY)
	if _, err := a.context.DrawString(sb.String(), pt); err != nil {
		return fmt.Errorf("drawing info text: %w", err)
	}

	return nil
}
