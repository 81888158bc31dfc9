package flight

import (
	"fmt"
	"math"

	"github.com/eytandecker/flightcam/internal/altitude"
	"github.com/eytandecker/flightcam/internal/input"
	"github.com/eytandecker/flightcam/pkg/types"
)

const (
	// MaxTilt is the steepest camera tilt accepted by SetTargetTilt.
	MaxTilt = 90

	// minCosLat bounds the longitude correction near the poles.
	minCosLat = 0.1
)

// State is the authoritative flight state. It is owned by one Integrator.
type State struct {
	Center     types.Coordinate
	Velocity   types.Velocity
	Rotation   float64 // degrees, 0 = north, clockwise, in [0, 360)
	Zoom       float64
	TargetTilt float64
	MapType    types.MapType
}

// Frame describes what happened during one Step.
type Frame struct {
	Moving          bool // velocity is non-zero after the rest snap
	Turning         bool // a rotation key was held
	AltitudeChanged bool // an altitude key was held
}

// Settled reports whether the frame left the ship at rest.
func (f Frame) Settled() bool {
	return !f.Moving && !f.Turning && !f.AltitudeChanged
}

// Integrator advances the flight state one tick at a time. It is not safe for
// concurrent use; Loop confines it to a single goroutine.
type Integrator struct {
	p Params
	s State
}

// NewIntegrator starts at center with the given zoom, heading north and at rest.
func NewIntegrator(p Params, center types.Coordinate, zoom float64) *Integrator {
	return &Integrator{
		p: p,
		s: State{
			Center:     center,
			Zoom:       zoom,
			TargetTilt: p.DefaultTilt,
			MapType:    types.MapTypeSatellite,
		},
	}
}

// State returns a copy of the current state.
func (in *Integrator) State() State {
	return in.s
}

// Params returns the constants the integrator was built with.
func (in *Integrator) Params() Params {
	return in.p
}

// SpeedScale is the zoom-dependent factor applied to acceleration and the
// velocity cap: each zoom level out doubles real-world speed.
func (in *Integrator) SpeedScale() float64 {
	return math.Exp2(in.p.ZoomAt1000Feet - in.s.Zoom)
}

// Pose is the camera pose for the current state.
func (in *Integrator) Pose() types.Pose {
	heading := in.p.DefaultHeading
	if in.p.FollowHeading {
		heading = in.s.Rotation
	}
	return types.Pose{
		Center:  in.s.Center,
		Zoom:    in.s.Zoom,
		Tilt:    in.s.TargetTilt,
		Heading: heading,
	}
}

// Step applies one tick of input to the state.
func (in *Integrator) Step(keys input.Set) Frame {
	var f Frame
	s := &in.s

	if keys.Has(input.ArrowLeft) {
		s.Rotation -= in.p.RotationSpeed
		f.Turning = true
	}
	if keys.Has(input.ArrowRight) {
		s.Rotation += in.p.RotationSpeed
		f.Turning = true
	}
	s.Rotation = NormalizeHeading(s.Rotation)

	scale := in.SpeedScale()

	if keys.Has(input.ArrowUp) {
		rad := s.Rotation * math.Pi / 180
		accel := in.p.Acceleration * scale
		// 0° points at increasing latitude, so sin drives longitude.
		s.Velocity = s.Velocity.Add(types.Velocity{
			X: math.Sin(rad) * accel,
			Y: math.Cos(rad) * accel,
		})
	}
	if keys.Has(input.ArrowDown) {
		s.Velocity = s.Velocity.Scale(in.p.BrakeFactor)
	}

	s.Velocity = s.Velocity.Scale(in.p.Friction)

	speed := s.Velocity.Magnitude()
	if limit := in.p.MaxVelocity * scale; speed > limit {
		s.Velocity = s.Velocity.Scale(limit / speed)
		speed = limit
	}
	if speed < in.p.MotionEpsilon*scale {
		s.Velocity = types.Velocity{}
	}
	f.Moving = !s.Velocity.IsZero()

	cosLat := math.Max(minCosLat, math.Abs(math.Cos(s.Center.Lat*math.Pi/180)))
	s.Center = types.Coordinate{
		Lat: clampLat(s.Center.Lat + s.Velocity.Y),
		Lng: s.Center.Lng + s.Velocity.X/cosLat,
	}

	// Both altitude keys start from the same base; KeyE is applied last and wins.
	feet := altitude.FromZoom(s.Zoom)
	zoom := s.Zoom
	if keys.Has(input.KeyQ) {
		zoom = altitude.ZoomFrom(math.Min(feet+in.p.AltitudeStepFeet, in.p.MaxAltitudeFeet))
		f.AltitudeChanged = true
	}
	if keys.Has(input.KeyE) {
		zoom = altitude.ZoomFrom(math.Max(feet-in.p.AltitudeStepFeet, in.p.MinAltitudeFeet))
		f.AltitudeChanged = true
	}
	s.Zoom = zoom

	return f
}

// ForceSetLocation moves the ship to c and stops it. Rotation and zoom are kept.
func (in *Integrator) ForceSetLocation(c types.Coordinate) error {
	if !c.Valid() {
		return fmt.Errorf("%w: %+v", ErrInvalidCoordinate, c)
	}
	in.s.Center = c
	in.s.Velocity = types.Velocity{}
	return nil
}

// SetTargetTilt changes the tilt the camera converges to.
func (in *Integrator) SetTargetTilt(tilt float64) error {
	if math.IsNaN(tilt) || tilt < 0 || tilt > MaxTilt {
		return fmt.Errorf("%w: %v", ErrInvalidTilt, tilt)
	}
	in.s.TargetTilt = tilt
	return nil
}

// SetMapType records the map type and returns the tilt target that goes with
// it: satellite imagery is shown tilted, flat maps are not.
func (in *Integrator) SetMapType(mt types.MapType) float64 {
	in.s.MapType = mt
	tilt := 0.0
	if mt == types.MapTypeSatellite {
		tilt = in.p.DefaultTilt
	}
	in.s.TargetTilt = tilt
	return tilt
}

// NormalizeHeading reduces r to [0, 360).
func NormalizeHeading(r float64) float64 {
	r = math.Mod(math.Mod(r, 360)+360, 360)
	if r >= 360 {
		// -ε + 360 can round up to exactly 360
		r = 0
	}
	return r
}

func clampLat(lat float64) float64 {
	return math.Min(math.Max(lat, -90), 90)
}
