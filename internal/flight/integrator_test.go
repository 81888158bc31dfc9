package flight

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eytandecker/flightcam/internal/altitude"
	"github.com/eytandecker/flightcam/internal/input"
	"github.com/eytandecker/flightcam/pkg/types"
)

var home = types.Coordinate{Lat: 34.82902777777778, Lng: -85.38988888888889}

func newTestIntegrator(zoom float64) *Integrator {
	return NewIntegrator(DefaultParams(), home, zoom)
}

func TestDefaultParamsValid(t *testing.T) {
	require.NoError(t, DefaultParams().Validate())
}

func TestParamsValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(p *Params)
	}{
		{"friction one never decays", func(p *Params) { p.Friction = 1 }},
		{"zero friction", func(p *Params) { p.Friction = 0 }},
		{"zero max velocity", func(p *Params) { p.MaxVelocity = 0 }},
		{"nan acceleration", func(p *Params) { p.Acceleration = math.NaN() }},
		{"inverted altitude bounds", func(p *Params) { p.MinAltitudeFeet, p.MaxAltitudeFeet = 3000, 100 }},
		{"brake amplifies", func(p *Params) { p.BrakeFactor = 1.5 }},
		{"tilt too steep", func(p *Params) { p.DefaultTilt = 120 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultParams()
			tt.mutate(&p)
			assert.Error(t, p.Validate())
		})
	}
}

func TestNormalizeHeading(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{0, 0},
		{358, 358},
		{360, 0},
		{362, 2},
		{-2, 358},
		{-720, 0},
		{-722, 358},
		{-1e-14, 0},
	}
	for _, tt := range tests {
		got := NormalizeHeading(tt.in)
		assert.InDelta(t, tt.want, got, 1e-9, "NormalizeHeading(%v)", tt.in)
		assert.True(t, got >= 0 && got < 360, "NormalizeHeading(%v) = %v out of range", tt.in, got)
	}
}

func TestRotationStaysInRange(t *testing.T) {
	for _, key := range []input.Key{input.ArrowLeft, input.ArrowRight} {
		in := newTestIntegrator(17)
		keys := input.SetOf(key)
		for i := 0; i < 1000; i++ {
			f := in.Step(keys)
			r := in.State().Rotation
			require.True(t, r >= 0 && r < 360, "%s tick %d: rotation %v", key, i, r)
			assert.True(t, f.Turning)
		}
	}

	in := newTestIntegrator(17)
	in.Step(input.SetOf(input.ArrowLeft))
	assert.InDelta(t, 358, in.State().Rotation, 1e-9)
}

func TestOpposingRotationKeysCancel(t *testing.T) {
	in := newTestIntegrator(17)
	in.Step(input.SetOf(input.ArrowLeft, input.ArrowRight))
	assert.Equal(t, 0.0, in.State().Rotation)
}

func TestSpeedScale(t *testing.T) {
	assert.Equal(t, 1.0, newTestIntegrator(17).SpeedScale())
	assert.Equal(t, 2.0, newTestIntegrator(16).SpeedScale())
	assert.Equal(t, 0.25, newTestIntegrator(19).SpeedScale())
}

func TestThrustNorthKeepsLongitude(t *testing.T) {
	in := newTestIntegrator(17)
	require.Equal(t, 1600.0, altitude.FromZoom(17))

	keys := input.SetOf(input.ArrowUp)
	prev := in.State().Center
	for i := 0; i < 100; i++ {
		in.Step(keys)
		cur := in.State().Center
		require.Greater(t, cur.Lat, prev.Lat, "tick %d", i)
		require.Equal(t, home.Lng, cur.Lng, "tick %d", i)
		prev = cur
	}
	assert.Equal(t, 0.0, in.State().Rotation)
}

func TestThrustEastUsesLatitudeCorrection(t *testing.T) {
	in := NewIntegrator(DefaultParams(), types.Coordinate{Lat: 60, Lng: 10}, 17)
	in.s.Rotation = 90

	in.Step(input.SetOf(input.ArrowUp))
	s := in.State()

	vx := s.Velocity.X
	require.Greater(t, vx, 0.0)
	// cos(60°) = 0.5 doubles the longitude step
	assert.InDelta(t, 10+2*vx, s.Center.Lng, 1e-15)
	assert.InDelta(t, 60, s.Center.Lat, 1e-12)
}

func TestPolarLongitudeCorrectionIsBounded(t *testing.T) {
	in := NewIntegrator(DefaultParams(), types.Coordinate{Lat: 89.999, Lng: 0}, 17)
	in.s.Velocity = types.Velocity{X: 0.00001}

	in.Step(0)
	s := in.State()
	assert.False(t, math.IsInf(s.Center.Lng, 0))
	assert.InDelta(t, s.Velocity.X/minCosLat, s.Center.Lng, 1e-15)
}

func TestLatitudeClampedAtPole(t *testing.T) {
	in := NewIntegrator(DefaultParams(), types.Coordinate{Lat: 89.99999, Lng: 0}, 15)
	in.s.Velocity = types.Velocity{Y: 0.0001}
	in.Step(0)
	assert.Equal(t, 90.0, in.State().Center.Lat)
}

func TestFrictionDecayIsMonotonic(t *testing.T) {
	in := newTestIntegrator(17)
	in.s.Velocity = types.Velocity{X: 0.00003, Y: -0.00004}

	prev := in.State().Velocity.Magnitude()
	for i := 0; i < 2000; i++ {
		in.Step(0)
		v := in.State().Velocity
		if v.IsZero() {
			assert.False(t, math.Signbit(v.X) || math.Signbit(v.Y), "snapped velocity carries a negative zero")
			return
		}
		require.GreaterOrEqual(t, v.X, 0.0, "x changed sign at tick %d", i)
		require.LessOrEqual(t, v.Y, 0.0, "y changed sign at tick %d", i)
		require.Less(t, v.Magnitude(), prev, "tick %d", i)
		prev = v.Magnitude()
	}
	t.Fatal("velocity never came to rest")
}

func TestRestIsStable(t *testing.T) {
	in := newTestIntegrator(17)
	for i := 0; i < 10; i++ {
		f := in.Step(0)
		assert.True(t, f.Settled())
	}
	s := in.State()
	assert.Equal(t, home, s.Center)
	assert.True(t, s.Velocity.IsZero())
	assert.False(t, math.IsNaN(s.Velocity.X))
}

func TestSmallVelocitySnapsToRest(t *testing.T) {
	in := newTestIntegrator(17)
	in.s.Velocity = types.Velocity{X: -1e-9, Y: 0}

	f := in.Step(0)
	v := in.State().Velocity
	assert.False(t, f.Moving)
	assert.True(t, f.Settled())
	assert.Equal(t, types.Velocity{}, v)
	assert.False(t, math.Signbit(v.X))
}

func TestRestThresholdScalesWithZoom(t *testing.T) {
	// The threshold is MotionEpsilon * 2^(17-zoom): 4e-7 at zoom 15 and
	// 6.25e-9 at zoom 21. Speeds are checked after one tick of friction (0.98).
	tests := []struct {
		name       string
		zoom       float64
		velocity   types.Velocity
		wantMoving bool
	}{
		{"zoom 15 just above", 15, types.Velocity{Y: 4.2e-7}, true},
		{"zoom 15 just below", 15, types.Velocity{Y: 4.0e-7}, false},
		{"zoom 15 above unscaled epsilon", 15, types.Velocity{Y: 2e-7}, false},
		{"zoom 15 diagonal uses magnitude", 15, types.Velocity{X: 3e-7, Y: 3e-7}, true},
		{"zoom 21 just above", 21, types.Velocity{Y: 7e-9}, true},
		{"zoom 21 just below", 21, types.Velocity{Y: 6e-9}, false},
		{"zoom 21 below unscaled epsilon", 21, types.Velocity{Y: 5e-8}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := newTestIntegrator(tt.zoom)
			in.s.Velocity = tt.velocity

			f := in.Step(0)
			assert.Equal(t, tt.wantMoving, f.Moving)
			assert.Equal(t, !tt.wantMoving, f.Settled())
			if !tt.wantMoving {
				assert.Equal(t, types.Velocity{}, in.State().Velocity)
			}
		})
	}
}

func TestThrustAtLowestAltitudeStillMoves(t *testing.T) {
	in := newTestIntegrator(altitude.ZoomFrom(100))
	f := in.Step(input.SetOf(input.ArrowUp))
	assert.True(t, f.Moving)
	assert.Greater(t, in.State().Center.Lat, home.Lat)
}

func TestBrakeSlowsFasterThanFriction(t *testing.T) {
	coast := newTestIntegrator(17)
	brake := newTestIntegrator(17)
	v := types.Velocity{Y: 0.00005}
	coast.s.Velocity, brake.s.Velocity = v, v

	coast.Step(0)
	brake.Step(input.SetOf(input.ArrowDown))

	p := DefaultParams()
	assert.InDelta(t, v.Y*p.Friction, coast.State().Velocity.Y, 1e-18)
	assert.InDelta(t, v.Y*p.BrakeFactor*p.Friction, brake.State().Velocity.Y, 1e-18)
}

func TestBrakeAtRestIsSettled(t *testing.T) {
	in := newTestIntegrator(17)
	f := in.Step(input.SetOf(input.ArrowDown))
	assert.True(t, f.Settled())
}

func TestVelocityCapHoldsForAnyInput(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	keys := []input.Key{input.ArrowUp, input.ArrowDown, input.ArrowLeft, input.ArrowRight, input.KeyQ, input.KeyE}
	p := DefaultParams()
	in := newTestIntegrator(17)

	for i := 0; i < 5000; i++ {
		var held input.Set
		for _, k := range keys {
			if rng.IntN(3) > 0 || k == input.ArrowUp {
				held |= input.SetOf(k)
			}
		}
		scale := in.SpeedScale()
		in.Step(held)
		limit := p.MaxVelocity * scale
		require.LessOrEqual(t, in.State().Velocity.Magnitude(), limit*(1+1e-12), "tick %d", i)
	}
}

func TestSustainedThrustReachesTerminalSpeed(t *testing.T) {
	p := DefaultParams()
	in := newTestIntegrator(17)
	for i := 0; i < 2000; i++ {
		in.Step(input.SetOf(input.ArrowUp))
	}
	// v = f(v + a) at equilibrium
	terminal := p.Acceleration * p.Friction / (1 - p.Friction)
	assert.InDelta(t, terminal, in.State().Velocity.Magnitude(), 1e-12)
	assert.Less(t, terminal, p.MaxVelocity)
}

func TestVelocityCapClampsFastShip(t *testing.T) {
	p := DefaultParams()
	in := newTestIntegrator(17)
	in.s.Velocity = types.Velocity{X: 0.0003, Y: 0.0004}

	in.Step(0)
	v := in.State().Velocity
	assert.InDelta(t, p.MaxVelocity, v.Magnitude(), 1e-15)
	assert.InDelta(t, 4.0/3.0, v.Y/v.X, 1e-9)
}

func TestAltitudeRespectsBounds(t *testing.T) {
	p := DefaultParams()

	up := newTestIntegrator(17)
	for i := 0; i < 500; i++ {
		f := up.Step(input.SetOf(input.KeyQ))
		require.True(t, f.AltitudeChanged)
		require.LessOrEqual(t, altitude.FromZoom(up.State().Zoom), p.MaxAltitudeFeet)
	}
	assert.Equal(t, p.MaxAltitudeFeet, altitude.FromZoom(up.State().Zoom))

	down := newTestIntegrator(17)
	for i := 0; i < 500; i++ {
		down.Step(input.SetOf(input.KeyE))
		require.GreaterOrEqual(t, altitude.FromZoom(down.State().Zoom), p.MinAltitudeFeet)
	}
	assert.Equal(t, p.MinAltitudeFeet, altitude.FromZoom(down.State().Zoom))
}

func TestAltitudeStep(t *testing.T) {
	in := newTestIntegrator(17)
	in.Step(input.SetOf(input.KeyQ))
	assert.Equal(t, 1615.0, altitude.FromZoom(in.State().Zoom))
}

func TestBothAltitudeKeysDescend(t *testing.T) {
	in := newTestIntegrator(17)
	f := in.Step(input.SetOf(input.KeyQ, input.KeyE))
	assert.True(t, f.AltitudeChanged)
	assert.InDelta(t, altitude.ZoomFrom(1585), in.State().Zoom, 1e-12)
}

func TestForceSetLocation(t *testing.T) {
	in := newTestIntegrator(18)
	for i := 0; i < 30; i++ {
		in.Step(input.SetOf(input.ArrowUp, input.ArrowRight))
	}
	before := in.State()
	paris := types.Coordinate{Lat: 48.8566, Lng: 2.3522}

	require.NoError(t, in.ForceSetLocation(paris))
	after := in.State()
	assert.Equal(t, paris, after.Center)
	assert.True(t, after.Velocity.IsZero())
	assert.Equal(t, before.Rotation, after.Rotation)
	assert.Equal(t, before.Zoom, after.Zoom)

	in.Step(0)
	assert.Equal(t, paris, in.State().Center)
}

func TestForceSetLocationRejectsInvalid(t *testing.T) {
	in := newTestIntegrator(17)
	err := in.ForceSetLocation(types.Coordinate{Lat: 123, Lng: 0})
	assert.ErrorIs(t, err, ErrInvalidCoordinate)
	assert.Equal(t, home, in.State().Center)
}

func TestSetTargetTilt(t *testing.T) {
	in := newTestIntegrator(17)
	require.NoError(t, in.SetTargetTilt(30))
	assert.Equal(t, 30.0, in.Pose().Tilt)

	assert.ErrorIs(t, in.SetTargetTilt(-1), ErrInvalidTilt)
	assert.ErrorIs(t, in.SetTargetTilt(math.NaN()), ErrInvalidTilt)
	assert.Equal(t, 30.0, in.State().TargetTilt)
}

func TestSetMapType(t *testing.T) {
	in := newTestIntegrator(17)
	assert.Equal(t, 0.0, in.SetMapType(types.MapTypeTerrain))
	assert.Equal(t, types.MapTypeTerrain, in.State().MapType)
	assert.Equal(t, DefaultParams().DefaultTilt, in.SetMapType(types.MapTypeSatellite))
}

func TestPoseHeading(t *testing.T) {
	in := newTestIntegrator(17)
	in.s.Rotation = 120
	assert.Equal(t, DefaultParams().DefaultHeading, in.Pose().Heading)

	p := DefaultParams()
	p.FollowHeading = true
	follow := NewIntegrator(p, home, 17)
	follow.s.Rotation = 120
	assert.Equal(t, 120.0, follow.Pose().Heading)
}
