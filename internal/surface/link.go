package surface

import (
	"context"
	"log/slog"
	"time"

	"github.com/eytandecker/flightcam/internal/input"
	"github.com/eytandecker/flightcam/internal/metrics"
	"github.com/eytandecker/flightcam/internal/render"
)

// KeyHandler is implemented by input.Tracker.
// Defined here (consuming side) to avoid import cycles.
type KeyHandler interface {
	Apply(ev input.KeyEvent) bool
	ReleaseAll()
}

// Attacher is implemented by render.Bridge.
type Attacher interface {
	Attach(render.Surface)
	Detach()
}

// LinkConfig holds configuration for a Link.
type LinkConfig struct {
	TiltInterval time.Duration
	Logger       *slog.Logger
	Metrics      *metrics.Collector
}

// DefaultLinkConfig returns a LinkConfig with sensible defaults.
func DefaultLinkConfig() LinkConfig {
	return LinkConfig{TiltInterval: 250 * time.Millisecond}
}

// Link runs one connected session: it feeds inbound key events to the
// tracker, attaches the surface to the bridge once capabilities arrive and
// keeps the cached tilt fresh.
type Link struct {
	client *Client
	keys   KeyHandler
	bridge Attacher
	cfg    LinkConfig
	log    *slog.Logger
}

// NewLink creates a Link over a connected client.
func NewLink(client *Client, keys KeyHandler, bridge Attacher, cfg LinkConfig) *Link {
	if cfg.TiltInterval <= 0 {
		cfg.TiltInterval = DefaultLinkConfig().TiltInterval
	}
	log := cfg.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Link{client: client, keys: keys, bridge: bridge, cfg: cfg, log: log}
}

// Run blocks until ctx is cancelled or the connection ends. On return the
// surface is detached and every held key is released, so a lost connection
// cannot leave the ship accelerating.
func (l *Link) Run(ctx context.Context) error {
	defer func() {
		l.bridge.Detach()
		l.keys.ReleaseAll()
	}()

	ticker := time.NewTicker(l.cfg.TiltInterval)
	defer ticker.Stop()

	done := make(chan error, 1)
	go l.readLoop(done)

	for {
		select {
		case <-ctx.Done():
			l.client.Close()
			<-done
			return ctx.Err()
		case err := <-done:
			return err
		case <-ticker.C:
			if err := l.client.RequestTilt(); err != nil {
				l.client.Close()
				<-done
				return err
			}
		}
	}
}

// readLoop reads messages from the surface and dispatches them.
func (l *Link) readLoop(done chan<- error) {
	for {
		h, data, err := l.client.ReadNext()
		if err != nil {
			done <- err
			return
		}
		switch h.Type {
		case MsgCapabilities:
			v, err := ParseUint32(data)
			if err != nil {
				l.log.Warn("surface: parse capabilities", "error", err)
				continue
			}
			l.client.setCapabilities(Capabilities(v))
			l.bridge.Attach(l.client.Surface())
			l.log.Info("surface: capabilities received", "caps", v)
		case MsgKeyEvent:
			ev, err := ParseKeyEvent(data)
			if err != nil {
				l.log.Warn("surface: parse key event", "error", err)
				continue
			}
			accepted := l.keys.Apply(ev)
			l.cfg.Metrics.IncKeyEvent(accepted)
			l.log.Debug("surface: key event", "code", ev.Code, "down", ev.Down, "text_entry", ev.TextEntry, "accepted", accepted)
		case MsgTiltReport:
			tilt, err := ParseTiltReport(data)
			if err != nil {
				l.log.Warn("surface: parse tilt report", "error", err)
				continue
			}
			l.client.storeTilt(tilt)
		case MsgException:
			code, _ := ParseUint32(data)
			l.log.Warn("surface: received exception message", "id", h.ID, "code", code)
		default:
			l.log.Debug("surface: ignoring message", "type", h.Type)
		}
	}
}
