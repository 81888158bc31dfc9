// Package altitude converts between camera zoom levels and a display altitude in feet.
package altitude

import "math"

const (
	// ReferenceZoom is the zoom level at which the altitude equals FeetAtReference.
	ReferenceZoom = 22
	// FeetAtReference is the altitude shown at ReferenceZoom.
	FeetAtReference = 50

	MinZoom = 15
	MaxZoom = 21

	minFeet = 1e-9
)

// FromZoom returns the altitude in whole feet for a zoom level.
func FromZoom(zoom float64) float64 {
	return math.Round(FeetAtReference * math.Exp2(ReferenceZoom-zoom))
}

// ZoomFrom returns the zoom level for an altitude, clamped to [MinZoom, MaxZoom].
// Non-positive and NaN altitudes map to MaxZoom.
func ZoomFrom(feet float64) float64 {
	if !(feet > 0) {
		return MaxZoom
	}
	zoom := ReferenceZoom - math.Log2(math.Max(feet, minFeet)/FeetAtReference)
	return math.Min(math.Max(zoom, MinZoom), MaxZoom)
}
