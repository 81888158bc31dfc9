package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/eytandecker/flightcam/internal/altitude"
	"github.com/eytandecker/flightcam/internal/api"
	"github.com/eytandecker/flightcam/internal/config"
	"github.com/eytandecker/flightcam/internal/flight"
	"github.com/eytandecker/flightcam/internal/geocode"
	"github.com/eytandecker/flightcam/internal/input"
	"github.com/eytandecker/flightcam/internal/logging"
	internalmcp "github.com/eytandecker/flightcam/internal/mcp"
	"github.com/eytandecker/flightcam/internal/metrics"
	"github.com/eytandecker/flightcam/internal/render"
	"github.com/eytandecker/flightcam/internal/state"
	"github.com/eytandecker/flightcam/internal/surface"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "flightcam exited: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.Load()

	log, logWriter := logging.New(logging.Config{Level: cfg.Log.Level, File: cfg.Log.File})
	defer logWriter.Close()
	logging.LogStartup(log)

	params := cfg.Flight.Params()
	if err := params.Validate(); err != nil {
		return err
	}
	home := cfg.Flight.Home()
	if !home.Valid() {
		return fmt.Errorf("%w: home %+v", flight.ErrInvalidCoordinate, home)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m, err := metrics.NewCollector(reg)
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	mgr := state.NewManager(cfg.Flight.StaleThreshold)
	tracker := input.NewTracker()
	bridge := render.NewBridge(log.With("component", "render"), m)

	in := flight.NewIntegrator(params, home, altitude.ZoomFrom(cfg.Flight.StartAltitudeFeet))
	loop := flight.NewLoop(in, tracker, bridge, mgr, flight.LoopConfig{
		FrameInterval: cfg.Flight.FrameInterval(),
		PublishEvery:  cfg.Flight.PublishEvery,
		Logger:        log.With("component", "flight"),
		Metrics:       m,
	})

	resolver := geocode.NewCachedResolver(geocode.NewNominatim(geocode.Config{
		URL:       cfg.Geocode.URL,
		UserAgent: cfg.Geocode.UserAgent,
		Timeout:   cfg.Geocode.Timeout,
	}), cfg.Geocode.CacheSize, cfg.Geocode.CacheTTL, m)

	mcpServer := internalmcp.NewServer(internalmcp.Deps{
		State:    mgr,
		Commands: loop,
		Geocoder: resolver,
		Keys:     tracker,
		Home:     home,
		Logger:   log.With("component", "mcp"),
	})

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return ignoreCanceled(loop.Run(gctx))
	})
	g.Go(func() error {
		runSurfaceLoop(gctx, cfg, tracker, bridge, m, log.With("component", "surface"))
		return nil
	})
	if cfg.Server.Addr != "" {
		g.Go(func() error {
			return serveHTTP(gctx, cfg.Server.Addr, api.NewServer(mgr, bridge, m.Handler(), log.With("component", "api")), log)
		})
	}
	g.Go(func() error {
		// The MCP client owns the process lifetime: when stdio closes, stop everything.
		defer stop()
		return ignoreCanceled(mcpServer.Run(gctx))
	})

	log.Info("flightcam started", "home", home, "surface", fmt.Sprintf("%s:%d", cfg.Surface.Host, cfg.Surface.Port), "http", cfg.Server.Addr)
	err = g.Wait()
	log.Info("flightcam stopped", "error", err)
	return err
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func serveHTTP(ctx context.Context, addr string, s *api.Server, log *slog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info("http observer listening", "addr", addr)
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http: %w", err)
	}
	return nil
}

// runSurfaceLoop connects to the rendering surface and runs a Link,
// retrying with exponential backoff (1s → 30s cap) on failure. A session that
// connected resets the backoff.
func runSurfaceLoop(ctx context.Context, cfg config.Config, keys *input.Tracker, bridge *render.Bridge, m *metrics.Collector, log *slog.Logger) {
	const (
		initialBackoff = time.Second
		maxBackoff     = 30 * time.Second
	)
	backoff := initialBackoff

	for {
		if err := ctx.Err(); err != nil {
			return
		}

		connected, err := runSurface(ctx, cfg, keys, bridge, m, log)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			if connected {
				backoff = initialBackoff
			}
			log.Warn("surface disconnected", "error", err, "retry_in", backoff)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

// runSurface creates a client and runs one Link session. It returns when the
// connection is lost or ctx is done.
func runSurface(ctx context.Context, cfg config.Config, keys *input.Tracker, bridge *render.Bridge, m *metrics.Collector, log *slog.Logger) (bool, error) {
	client := surface.NewClient(surface.Config{
		Host:         cfg.Surface.Host,
		Port:         cfg.Surface.Port,
		Timeout:      cfg.Surface.Timeout,
		WriteTimeout: cfg.SurfaceWriteTimeout(),
		AppName:      cfg.Surface.AppName,
	})

	if err := client.Connect(ctx); err != nil {
		return false, err
	}
	defer client.Close()
	log.Info("surface connected", "host", cfg.Surface.Host, "port", cfg.Surface.Port)

	link := surface.NewLink(client, keys, bridge, surface.LinkConfig{
		TiltInterval: cfg.Surface.PollInterval,
		Logger:       log,
		Metrics:      m,
	})
	return true, link.Run(ctx)
}
