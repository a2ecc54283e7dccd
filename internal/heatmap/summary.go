package heatmap

import (
	"github.com/golang/geo/r2"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/roman-kulish/wifi-heatmap/internal/wifi"
)

// Summary describes the strength distribution of a session.
type Summary struct {
	Count      int               `json:"count"`
	Min        float64           `json:"min"`
	Max        float64           `json:"max"`
	Mean       float64           `json:"mean"`
	StdDev     float64           `json:"stdDev"`
	PathLength float64           `json:"pathLength"` // between consecutive points, map units
	Zones      map[wifi.Zone]int `json:"zones"`
}

// Summarize computes the summary of points. An empty input yields a zero Summary with an
// empty zone map.
func Summarize(points []Point) Summary {
	s := Summary{
		Count: len(points),
		Zones: make(map[wifi.Zone]int),
	}
	if len(points) == 0 {
		return s
	}

	strengths := make([]float64, len(points))
	for i, p := range points {
		strengths[i] = float64(p.Strength)
		s.Zones[p.Zone()]++

		if i > 0 {
			prev := points[i-1]
			s.PathLength += r2.Point{X: p.X, Y: p.Y}.Sub(r2.Point{X: prev.X, Y: prev.Y}).Norm()
		}
	}

	s.Min = floats.Min(strengths)
	s.Max = floats.Max(strengths)

	if len(points) > 1 {
		s.Mean, s.StdDev = stat.MeanStdDev(strengths, nil)
	} else {
		s.Mean = strengths[0]
	}

	return s
}
