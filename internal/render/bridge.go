// Package render pushes camera poses to an external rendering surface.
package render

import (
	"log/slog"
	"math"
	"sync/atomic"

	"github.com/eytandecker/flightcam/internal/metrics"
	"github.com/eytandecker/flightcam/pkg/types"
)

// TiltTolerance is the tilt difference, in degrees, below which the discrete
// update path leaves the surface tilt alone.
const TiltTolerance = 1.0

// Surface is the minimum a rendering surface must support.
type Surface interface {
	SetCenter(types.Coordinate) error
	SetZoom(zoom float64) error
	SetTilt(tilt float64) error
	// Tilt returns the tilt the surface is currently showing.
	Tilt() float64
}

// CameraMover is implemented by surfaces that accept a whole pose in one call.
type CameraMover interface {
	MoveCamera(types.Pose) error
}

// MapTypeSetter is implemented by surfaces that can switch imagery.
type MapTypeSetter interface {
	SetMapType(types.MapType) error
}

type attachment struct {
	surface Surface
	mover   CameraMover // nil when the surface only has discrete setters
}

// Bridge forwards poses to the attached surface. Until a surface is attached
// every call is a no-op. Attach and Detach may be called from any goroutine;
// the Apply methods are called from the flight loop.
type Bridge struct {
	current atomic.Pointer[attachment]
	log     *slog.Logger
	metrics *metrics.Collector
}

// NewBridge returns a Bridge with no surface attached. log and m may be nil.
func NewBridge(log *slog.Logger, m *metrics.Collector) *Bridge {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Bridge{log: log, metrics: m}
}

// Attach makes s the target of subsequent updates. It does not touch the
// flight state; the next tick pushes the current pose.
func (b *Bridge) Attach(s Surface) {
	if s == nil {
		b.Detach()
		return
	}
	a := &attachment{surface: s}
	if m, ok := s.(CameraMover); ok {
		a.mover = m
	}
	b.current.Store(a)
	b.log.Info("render surface attached", "combined_updates", a.mover != nil)
}

// Detach drops the current surface, if any.
func (b *Bridge) Detach() {
	if b.current.Swap(nil) != nil {
		b.log.Info("render surface detached")
	}
}

// Attached reports whether a surface is attached.
func (b *Bridge) Attached() bool {
	return b.current.Load() != nil
}

// ApplyPose pushes a full pose. It is called every tick, moving or not, so
// the tilt converges after a tilt target change.
func (b *Bridge) ApplyPose(p types.Pose) {
	a := b.current.Load()
	if a == nil {
		return
	}
	if a.mover != nil {
		b.record("move_camera", a.mover.MoveCamera(p))
		return
	}
	b.record("set_center", a.surface.SetCenter(p.Center))
	b.record("set_zoom", a.surface.SetZoom(p.Zoom))
	if math.Abs(a.surface.Tilt()-p.Tilt) > TiltTolerance {
		b.record("set_tilt", a.surface.SetTilt(p.Tilt))
	}
}

// ApplyCenter pushes a relocation immediately. Surfaces without combined
// updates only receive the new center.
func (b *Bridge) ApplyCenter(p types.Pose) {
	a := b.current.Load()
	if a == nil {
		return
	}
	if a.mover != nil {
		b.record("move_camera", a.mover.MoveCamera(p))
		return
	}
	b.record("set_center", a.surface.SetCenter(p.Center))
}

// ApplyTilt sets the surface tilt now, regardless of TiltTolerance.
func (b *Bridge) ApplyTilt(tilt float64) {
	a := b.current.Load()
	if a == nil {
		return
	}
	b.record("set_tilt", a.surface.SetTilt(tilt))
}

// ApplyMapType switches imagery on surfaces that support it.
func (b *Bridge) ApplyMapType(mt types.MapType) {
	a := b.current.Load()
	if a == nil {
		return
	}
	if s, ok := a.surface.(MapTypeSetter); ok {
		b.record("set_map_type", s.SetMapType(mt))
	}
}

func (b *Bridge) record(op string, err error) {
	b.metrics.IncSurfaceWrite(op, err)
	if err != nil {
		b.log.Debug("render surface write failed", "op", op, "error", err)
	}
}
