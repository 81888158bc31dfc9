package types

import (
	"fmt"
	"math"
)

// Coordinate is a geographic position in degrees.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Valid reports whether the coordinate is finite and its latitude lies in [-90, 90].
func (c Coordinate) Valid() bool {
	if math.IsNaN(c.Lat) || math.IsNaN(c.Lng) || math.IsInf(c.Lat, 0) || math.IsInf(c.Lng, 0) {
		return false
	}
	return c.Lat >= -90 && c.Lat <= 90
}

// DMS formats the coordinate as degrees, minutes and seconds, e.g. 34°49'44.5"N 85°23'23.6"W.
func (c Coordinate) DMS() (lat, lng string) {
	return formatDMS(c.Lat, "N", "S"), formatDMS(c.Lng, "E", "W")
}

func formatDMS(v float64, pos, neg string) string {
	dir := pos
	if v < 0 {
		dir = neg
	}
	// whole tenths of an arc second, so rounding carries into minutes and degrees
	tenths := int64(math.Round(math.Abs(v) * 36000))
	deg := tenths / 36000
	mins := tenths % 36000 / 600
	sec := float64(tenths%600) / 10
	return fmt.Sprintf("%d°%d'%.1f\"%s", deg, mins, sec, dir)
}

// Velocity is a per-tick displacement: X in longitude degrees, Y in latitude degrees.
type Velocity struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Scale multiplies both components by k.
func (v Velocity) Scale(k float64) Velocity {
	return Velocity{X: v.X * k, Y: v.Y * k}
}

// Add returns the component-wise sum.
func (v Velocity) Add(o Velocity) Velocity {
	return Velocity{X: v.X + o.X, Y: v.Y + o.Y}
}

// Magnitude returns the Euclidean length of the vector.
func (v Velocity) Magnitude() float64 {
	return math.Hypot(v.X, v.Y)
}

// IsZero reports whether both components are zero (either sign).
func (v Velocity) IsZero() bool {
	return v.X == 0 && v.Y == 0
}

// Pose is the camera state pushed to the rendering surface.
type Pose struct {
	Center  Coordinate `json:"center"`
	Zoom    float64    `json:"zoom"`
	Tilt    float64    `json:"tilt"`
	Heading float64    `json:"heading"`
}
