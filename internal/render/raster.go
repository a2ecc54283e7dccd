package render

import (
	"image"
	"image/color"
	"math"

	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/vector"
)

// circle control point distance for a four-segment cubic approximation
const kappa = 0.5522847498

type point struct{ x, y float64 }

func addCircle(z *vector.Rasterizer, c point, r float64, clockwise bool) {
	k := r * kappa
	x, y := float32(c.x), float32(c.y)
	fr, fk := float32(r), float32(k)

	z.MoveTo(x+fr, y)
	if clockwise {
		z.CubeTo(x+fr, y+fk, x+fk, y+fr, x, y+fr)
		z.CubeTo(x-fk, y+fr, x-fr, y+fk, x-fr, y)
		z.CubeTo(x-fr, y-fk, x-fk, y-fr, x, y-fr)
		z.CubeTo(x+fk, y-fr, x+fr, y-fk, x+fr, y)
	} else {
		z.CubeTo(x+fr, y-fk, x+fk, y-fr, x, y-fr)
		z.CubeTo(x-fk, y-fr, x-fr, y-fk, x-fr, y)
		z.CubeTo(x-fr, y+fk, x-fk, y+fr, x, y+fr)
		z.CubeTo(x+fk, y+fr, x+fr, y+fk, x+fr, y)
	}
	z.ClosePath()
}

// addSegment adds a line of the given width from a to b as a quad.
func addSegment(z *vector.Rasterizer, a, b point, width float64) {
	dx, dy := b.x-a.x, b.y-a.y
	length := math.Hypot(dx, dy)
	if length == 0 {
		return
	}

	// unit normal scaled to half the width
	nx, ny := -dy/length*width/2, dx/length*width/2

	z.MoveTo(float32(a.x+nx), float32(a.y+ny))
	z.LineTo(float32(b.x+nx), float32(b.y+ny))
	z.LineTo(float32(b.x-nx), float32(b.y-ny))
	z.LineTo(float32(a.x-nx), float32(a.y-ny))
	z.ClosePath()
}

func fill(dst *image.RGBA, z *vector.Rasterizer, c color.Color) {
	z.Draw(dst, dst.Bounds(), image.NewUniform(c), image.Point{})
}

// glow blends c into dst around center, fading quadratically to nothing at radius.
func glow(dst *image.RGBA, center point, radius float64, c colorful.Color, intensity float64) {
	bounds := dst.Bounds()
	minX, maxX := int(math.Floor(center.x-radius)), int(math.Ceil(center.x+radius))
	minY, maxY := int(math.Floor(center.y-radius)), int(math.Ceil(center.y+radius))

	for y := max(minY, bounds.Min.Y); y < min(maxY, bounds.Max.Y); y++ {
		for x := max(minX, bounds.Min.X); x < min(maxX, bounds.Max.X); x++ {
			d := math.Hypot(float64(x)+0.5-center.x, float64(y)+0.5-center.y)
			if d >= radius {
				continue
			}

			t := (1 - d/radius)
			t = t * t * intensity

			under, _ := colorful.MakeColor(dst.RGBAAt(x, y))
			dst.SetRGBA(x, y, toRGBA(under.BlendRgb(c, t), 0xff))
		}
	}
}
