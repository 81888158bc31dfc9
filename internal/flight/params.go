package flight

import (
	"fmt"
	"math"
)

// Params are the flight-model constants. They are fixed for the lifetime of a Loop.
type Params struct {
	Acceleration  float64 // degrees per tick², at ZoomAt1000Feet
	Friction      float64 // velocity multiplier applied every tick
	MaxVelocity   float64 // degrees per tick, at ZoomAt1000Feet
	RotationSpeed float64 // degrees per tick
	BrakeFactor   float64 // velocity multiplier while braking
	MotionEpsilon float64 // speeds below this (scaled) snap to rest

	AltitudeStepFeet float64
	MinAltitudeFeet  float64
	MaxAltitudeFeet  float64

	DefaultTilt    float64
	DefaultHeading float64
	ZoomAt1000Feet float64
	// FollowHeading rotates the camera with the ship instead of keeping
	// DefaultHeading.
	FollowHeading bool
}

// DefaultParams returns the stock flight-model tuning.
func DefaultParams() Params {
	return Params{
		Acceleration:     0.0000005,
		Friction:         0.98,
		MaxVelocity:      0.0001,
		RotationSpeed:    2.0,
		BrakeFactor:      0.95,
		MotionEpsilon:    0.0000001,
		AltitudeStepFeet: 15,
		MinAltitudeFeet:  100,
		MaxAltitudeFeet:  2500,
		DefaultTilt:      45,
		DefaultHeading:   0,
		ZoomAt1000Feet:   17,
	}
}

// Validate rejects parameter sets that would let velocity grow without bound
// or make the integration ill-defined.
func (p Params) Validate() error {
	for name, v := range map[string]float64{
		"acceleration":      p.Acceleration,
		"friction":          p.Friction,
		"max velocity":      p.MaxVelocity,
		"rotation speed":    p.RotationSpeed,
		"brake factor":      p.BrakeFactor,
		"motion epsilon":    p.MotionEpsilon,
		"altitude step":     p.AltitudeStepFeet,
		"min altitude":      p.MinAltitudeFeet,
		"max altitude":      p.MaxAltitudeFeet,
		"default tilt":      p.DefaultTilt,
		"default heading":   p.DefaultHeading,
		"zoom at 1000 feet": p.ZoomAt1000Feet,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("flight params: %s must be finite", name)
		}
	}
	switch {
	case p.Acceleration < 0:
		return fmt.Errorf("flight params: acceleration must not be negative")
	case p.Friction <= 0 || p.Friction >= 1:
		return fmt.Errorf("flight params: friction must be in (0, 1), got %v", p.Friction)
	case p.BrakeFactor <= 0 || p.BrakeFactor > 1:
		return fmt.Errorf("flight params: brake factor must be in (0, 1], got %v", p.BrakeFactor)
	case p.MaxVelocity <= 0:
		return fmt.Errorf("flight params: max velocity must be positive")
	case p.MotionEpsilon < 0:
		return fmt.Errorf("flight params: motion epsilon must not be negative")
	case p.MinAltitudeFeet <= 0 || p.MinAltitudeFeet > p.MaxAltitudeFeet:
		return fmt.Errorf("flight params: altitude bounds [%v, %v] are invalid", p.MinAltitudeFeet, p.MaxAltitudeFeet)
	case p.DefaultTilt < 0 || p.DefaultTilt > MaxTilt:
		return fmt.Errorf("flight params: default tilt must be in [0, %v]", MaxTilt)
	}
	return nil
}
