package types

import (
	"fmt"
	"time"
)

// MapType selects the imagery shown by the rendering surface.
type MapType string

const (
	MapTypeSatellite MapType = "satellite"
	MapTypeTerrain   MapType = "terrain"
	MapTypeHybrid    MapType = "hybrid"
)

// ParseMapType validates a map type name.
func ParseMapType(s string) (MapType, error) {
	switch mt := MapType(s); mt {
	case MapTypeSatellite, MapTypeTerrain, MapTypeHybrid:
		return mt, nil
	}
	return "", fmt.Errorf("unknown map type %q", s)
}

// Snapshot is the observer-facing copy of the flight state.
type Snapshot struct {
	Center       Coordinate `json:"center"`
	Velocity     Velocity   `json:"velocity"`
	Rotation     float64    `json:"rotation"`
	Zoom         float64    `json:"zoom"`
	AltitudeFeet float64    `json:"altitude_ft"`
	Speed        float64    `json:"speed"`
	Tilt         float64    `json:"tilt"`
	Heading      float64    `json:"heading"`
	MapType      MapType    `json:"map_type"`
	Settled      bool       `json:"settled"`
	Tick         uint64     `json:"tick"`
	PublishedAt  time.Time  `json:"published_at"`
}

// SameState reports whether two snapshots describe the same flight state,
// ignoring the tick counter and publication time.
func (s Snapshot) SameState(o Snapshot) bool {
	s.Tick, o.Tick = 0, 0
	s.PublishedAt, o.PublishedAt = time.Time{}, time.Time{}
	return s == o
}
