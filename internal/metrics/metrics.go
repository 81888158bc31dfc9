// Package metrics exposes flight loop activity as Prometheus metrics.
package metrics

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector bundles the flight metrics. All methods are safe on a nil
// *Collector so components can run without metrics.
type Collector struct {
	gatherer prometheus.Gatherer

	Ticks         prometheus.Counter
	TickDuration  prometheus.Histogram
	Publishes     *prometheus.CounterVec
	SurfaceWrites *prometheus.CounterVec
	Commands      *prometheus.CounterVec
	Geocodes      *prometheus.CounterVec
	Speed         prometheus.Gauge
	AltitudeFeet  prometheus.Gauge
	KeyEvents     *prometheus.CounterVec
}

// NewCollector registers the flight metrics against reg, defaulting to the
// global Prometheus registry when nil.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	c := &Collector{gatherer: gatherer}
	var err error
	if c.Ticks, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "flight_ticks_total",
		Help: "Number of physics ticks executed.",
	}), "flight_ticks_total"); err != nil {
		return nil, err
	}
	if c.TickDuration, err = register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "flight_tick_duration_seconds",
		Help:    "Wall time spent in one physics tick, including the surface update.",
		Buckets: []float64{0.00005, 0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.0167},
	}), "flight_tick_duration_seconds"); err != nil {
		return nil, err
	}
	if c.Publishes, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "flight_state_publishes_total",
		Help: "Snapshots published to observers, labeled by reason.",
	}, []string{"reason"}), "flight_state_publishes_total"); err != nil {
		return nil, err
	}
	if c.SurfaceWrites, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "flight_surface_writes_total",
		Help: "Calls made to the rendering surface, labeled by operation and result.",
	}, []string{"op", "result"}), "flight_surface_writes_total"); err != nil {
		return nil, err
	}
	if c.Commands, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "flight_commands_total",
		Help: "External commands applied to the flight state, labeled by kind and result.",
	}, []string{"kind", "result"}), "flight_commands_total"); err != nil {
		return nil, err
	}
	if c.Geocodes, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "flight_geocode_lookups_total",
		Help: "Address lookups, labeled by result (hit, found, not_found, invalid, error).",
	}, []string{"result"}), "flight_geocode_lookups_total"); err != nil {
		return nil, err
	}
	if c.KeyEvents, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "flight_key_events_total",
		Help: "Key events received from the rendering host, labeled by outcome.",
	}, []string{"outcome"}), "flight_key_events_total"); err != nil {
		return nil, err
	}
	if c.Speed, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "flight_speed_degrees_per_tick",
		Help: "Current velocity magnitude.",
	}), "flight_speed_degrees_per_tick"); err != nil {
		return nil, err
	}
	if c.AltitudeFeet, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "flight_altitude_feet",
		Help: "Current display altitude.",
	}), "flight_altitude_feet"); err != nil {
		return nil, err
	}
	return c, nil
}

// Handler exposes a ready-to-use /metrics handler.
func (c *Collector) Handler() http.Handler {
	gatherer := prometheus.DefaultGatherer
	if c != nil && c.gatherer != nil {
		gatherer = c.gatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// ObserveTick records one completed tick.
func (c *Collector) ObserveTick(d time.Duration, speed, altitudeFeet float64) {
	if c == nil {
		return
	}
	c.Ticks.Inc()
	c.TickDuration.Observe(d.Seconds())
	c.Speed.Set(speed)
	c.AltitudeFeet.Set(altitudeFeet)
}

// IncPublish counts a snapshot published for reason.
func (c *Collector) IncPublish(reason string) {
	if c == nil {
		return
	}
	c.Publishes.WithLabelValues(reason).Inc()
}

// IncSurfaceWrite counts a rendering-surface call.
func (c *Collector) IncSurfaceWrite(op string, err error) {
	if c == nil {
		return
	}
	c.SurfaceWrites.WithLabelValues(op, result(err)).Inc()
}

// IncCommand counts an external command.
func (c *Collector) IncCommand(kind string, err error) {
	if c == nil {
		return
	}
	c.Commands.WithLabelValues(kind, result(err)).Inc()
}

// IncGeocode counts an address lookup.
func (c *Collector) IncGeocode(outcome string) {
	if c == nil {
		return
	}
	c.Geocodes.WithLabelValues(outcome).Inc()
}

// IncKeyEvent counts a key event as accepted or ignored.
func (c *Collector) IncKeyEvent(accepted bool) {
	if c == nil {
		return
	}
	outcome := "ignored"
	if accepted {
		outcome = "accepted"
	}
	c.KeyEvents.WithLabelValues(outcome).Inc()
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func register[T prometheus.Collector](reg prometheus.Registerer, c T, name string) (T, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
			return c, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return c, err
	}
	return c, nil
}
