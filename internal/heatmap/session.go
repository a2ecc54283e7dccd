package heatmap

import (
	"time"

	"github.com/roman-kulish/wifi-heatmap/internal/wifi"
)

const (
	TriggerStep Trigger = "step"
	TriggerTick Trigger = "tick"
)

// Trigger records what caused a point to be taken.
type Trigger string

// Point is one signal sample at a dead-reckoned position. Coordinates are only comparable
// with points of the same session.
type Point struct {
	X        float64   `json:"x"`
	Y        float64   `json:"y"`
	Strength int       `json:"strength"` // dBm
	Time     time.Time `json:"time"`
	Trigger  Trigger   `json:"trigger"`
}

// Zone buckets the point's strength.
func (p Point) Zone() wifi.Zone {
	return wifi.ZoneOf(p.Strength)
}

// Position is a location in session coordinates.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Session is the append-only record of one recording. A new recording replaces it.
type Session struct {
	ID        string    `json:"id"`
	BSSID     string    `json:"bssid"`
	StartTime time.Time `json:"startTime"`
	Points    []Point   `json:"points"`
}

// Snapshot is a consistent copy of the recorder state for display.
type Snapshot struct {
	Session
	Recording bool     `json:"recording"`
	Position  Position `json:"position"`
	Anchor    Position `json:"anchor"`
	Steps     int      `json:"steps"`
}
