package flight

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/eytandecker/flightcam/internal/altitude"
	"github.com/eytandecker/flightcam/internal/input"
	"github.com/eytandecker/flightcam/internal/metrics"
	"github.com/eytandecker/flightcam/internal/state"
	"github.com/eytandecker/flightcam/pkg/types"
)

// KeySource is implemented by input.Tracker.
type KeySource interface {
	Snapshot() input.Set
}

// PoseSink is implemented by render.Bridge.
type PoseSink interface {
	ApplyPose(types.Pose)
	ApplyCenter(types.Pose)
	ApplyTilt(float64)
	ApplyMapType(types.MapType)
}

// Publisher is implemented by state.Manager.
type Publisher interface {
	Publish(types.Snapshot)
}

// LoopConfig holds the scheduling settings for a Loop.
type LoopConfig struct {
	FrameInterval time.Duration
	PublishEvery  int
	Logger        *slog.Logger
	Metrics       *metrics.Collector
}

// DefaultLoopConfig runs at 60 frames per second and publishes every third moving frame.
func DefaultLoopConfig() LoopConfig {
	return LoopConfig{FrameInterval: time.Second / 60, PublishEvery: 3}
}

type commandKind int

const (
	cmdForceSet commandKind = iota
	cmdTilt
	cmdMapType
)

func (k commandKind) String() string {
	switch k {
	case cmdForceSet:
		return "force_set"
	case cmdTilt:
		return "tilt"
	default:
		return "map_type"
	}
}

type command struct {
	kind    commandKind
	coord   types.Coordinate
	tilt    float64
	mapType types.MapType
	reply   chan error
}

// Loop owns an Integrator and drives it from a ticker. Commands are executed
// on the loop goroutine between ticks, so a tick never sees a half-applied
// command.
type Loop struct {
	in       *Integrator
	keys     KeySource
	sink     PoseSink
	pub      Publisher
	throttle *state.Throttle
	cfg      LoopConfig
	log      *slog.Logger

	cmds    chan command
	started atomic.Bool
	stopped chan struct{}
	ticks   uint64
}

// NewLoop wires an integrator to its input, render sink and publisher.
func NewLoop(in *Integrator, keys KeySource, sink PoseSink, pub Publisher, cfg LoopConfig) *Loop {
	if cfg.FrameInterval <= 0 {
		cfg.FrameInterval = DefaultLoopConfig().FrameInterval
	}
	log := cfg.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Loop{
		in:       in,
		keys:     keys,
		sink:     sink,
		pub:      pub,
		throttle: state.NewThrottle(cfg.PublishEvery),
		cfg:      cfg,
		log:      log,
		cmds:     make(chan command),
		stopped:  make(chan struct{}),
	}
}

// Run ticks until ctx is done and returns ctx.Err(). A Loop runs at most once;
// commands issued after Run returns fail with ErrStopped.
func (l *Loop) Run(ctx context.Context) error {
	if !l.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}
	defer close(l.stopped)

	ticker := time.NewTicker(l.cfg.FrameInterval)
	defer ticker.Stop()

	l.sink.ApplyPose(l.in.Pose())
	l.publish(Frame{}, "start")
	l.log.Info("flight loop started", "frame_interval", l.cfg.FrameInterval, "center", l.in.State().Center)

	for {
		select {
		case <-ctx.Done():
			l.log.Info("flight loop stopped", "ticks", l.ticks)
			return ctx.Err()
		case cmd := <-l.cmds:
			cmd.reply <- l.execute(cmd)
		case <-ticker.C:
			l.tick()
		}
	}
}

// ForceSetLocation moves the ship to c, stops it, and pushes the result to the
// surface and observers before returning.
func (l *Loop) ForceSetLocation(ctx context.Context, c types.Coordinate) error {
	return l.submit(ctx, command{kind: cmdForceSet, coord: c})
}

// SetTargetTilt changes the tilt target and applies it to the surface at once.
func (l *Loop) SetTargetTilt(ctx context.Context, tilt float64) error {
	return l.submit(ctx, command{kind: cmdTilt, tilt: tilt})
}

// SetMapType switches imagery and the tilt target that goes with it.
func (l *Loop) SetMapType(ctx context.Context, mt types.MapType) error {
	return l.submit(ctx, command{kind: cmdMapType, mapType: mt})
}

func (l *Loop) submit(ctx context.Context, cmd command) error {
	cmd.reply = make(chan error, 1)
	select {
	case l.cmds <- cmd:
	case <-l.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	// The loop always answers a command it has received.
	return <-cmd.reply
}

func (l *Loop) execute(cmd command) error {
	var err error
	switch cmd.kind {
	case cmdForceSet:
		if err = l.in.ForceSetLocation(cmd.coord); err == nil {
			l.sink.ApplyCenter(l.in.Pose())
			l.publish(Frame{}, "command")
		}
	case cmdTilt:
		if err = l.in.SetTargetTilt(cmd.tilt); err == nil {
			l.sink.ApplyTilt(cmd.tilt)
			l.publish(Frame{}, "command")
		}
	case cmdMapType:
		tilt := l.in.SetMapType(cmd.mapType)
		l.sink.ApplyMapType(cmd.mapType)
		l.sink.ApplyTilt(tilt)
		l.publish(Frame{}, "command")
	}
	l.cfg.Metrics.IncCommand(cmd.kind.String(), err)
	if err != nil {
		l.log.Warn("flight command rejected", "kind", cmd.kind.String(), "error", err)
	}
	return err
}

func (l *Loop) tick() {
	start := time.Now()

	f := l.in.Step(l.keys.Snapshot())
	l.ticks++
	l.sink.ApplyPose(l.in.Pose())

	if d := l.throttle.Admit(f.Settled()); d != state.Skip {
		l.publish(f, d.String())
	}

	s := l.in.State()
	l.cfg.Metrics.ObserveTick(time.Since(start), s.Velocity.Magnitude(), altitude.FromZoom(s.Zoom))
}

func (l *Loop) publish(f Frame, reason string) {
	l.pub.Publish(l.snapshot(f))
	l.cfg.Metrics.IncPublish(reason)
}

func (l *Loop) snapshot(f Frame) types.Snapshot {
	s := l.in.State()
	pose := l.in.Pose()
	return types.Snapshot{
		Center:       s.Center,
		Velocity:     s.Velocity,
		Rotation:     s.Rotation,
		Zoom:         s.Zoom,
		AltitudeFeet: altitude.FromZoom(s.Zoom),
		Speed:        s.Velocity.Magnitude(),
		Tilt:         s.TargetTilt,
		Heading:      pose.Heading,
		MapType:      s.MapType,
		Settled:      f.Settled(),
		Tick:         l.ticks,
		PublishedAt:  time.Now(),
	}
}
