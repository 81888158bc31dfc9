package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/eytandecker/flightcam/internal/flight"
	"github.com/eytandecker/flightcam/internal/geocode"
	"github.com/eytandecker/flightcam/internal/input"
	"github.com/eytandecker/flightcam/internal/state"
	"github.com/eytandecker/flightcam/pkg/types"
)

// ErrInvalidArgument marks tool arguments rejected before reaching the flight loop.
var ErrInvalidArgument = errors.New("mcp: invalid argument")

// StateGetter is the subset of state.Manager used by the MCP server.
type StateGetter interface {
	Snapshot() (types.Snapshot, error)
}

// Commander is implemented by flight.Loop.
type Commander interface {
	ForceSetLocation(ctx context.Context, c types.Coordinate) error
	SetTargetTilt(ctx context.Context, tilt float64) error
	SetMapType(ctx context.Context, mt types.MapType) error
}

// KeyApplier is implemented by input.Tracker.
type KeyApplier interface {
	Apply(ev input.KeyEvent) bool
}

// Deps are the collaborators behind the tools.
type Deps struct {
	State    StateGetter
	Commands Commander
	Geocoder geocode.Resolver
	Keys     KeyApplier
	Home     types.Coordinate
	Logger   *slog.Logger
}

// Server wraps the MCP SDK server and exposes the flight camera as tools.
type Server struct {
	sdk  *mcpsdk.Server
	deps Deps
	log  *slog.Logger
}

// NewServer creates a Server and registers its tools.
func NewServer(d Deps) *Server {
	log := d.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	s := &Server{
		sdk: mcpsdk.NewServer(&mcpsdk.Implementation{
			Name:    "flightcam",
			Version: "1.0.0",
		}, nil),
		deps: d,
		log:  log,
	}

	mcpsdk.AddTool(s.sdk, &mcpsdk.Tool{
		Name:        "get_flight_state",
		Description: "Returns the latest published camera flight state: position (decimal and DMS), altitude, speed, heading, tilt and map type.",
	}, s.handleGetFlightState)
	mcpsdk.AddTool(s.sdk, &mcpsdk.Tool{
		Name:        "set_location",
		Description: "Teleports the camera to a coordinate and stops it. Heading and altitude are kept.",
	}, s.handleSetLocation)
	mcpsdk.AddTool(s.sdk, &mcpsdk.Tool{
		Name:        "reset_home",
		Description: "Teleports the camera back to its home coordinate and stops it.",
	}, s.handleResetHome)
	mcpsdk.AddTool(s.sdk, &mcpsdk.Tool{
		Name:        "search_location",
		Description: "Looks up a free-text address and teleports the camera there.",
	}, s.handleSearchLocation)
	mcpsdk.AddTool(s.sdk, &mcpsdk.Tool{
		Name:        "set_tilt",
		Description: "Sets the camera tilt target in degrees (0 looks straight down, 90 at the horizon).",
	}, s.handleSetTilt)
	mcpsdk.AddTool(s.sdk, &mcpsdk.Tool{
		Name:        "set_map_type",
		Description: "Switches imagery between satellite, terrain and hybrid. Satellite restores the default tilt; the others flatten it.",
	}, s.handleSetMapType)
	mcpsdk.AddTool(s.sdk, &mcpsdk.Tool{
		Name:        "press_keys",
		Description: "Presses or releases flight keys (ArrowUp, ArrowDown, ArrowLeft, ArrowRight, KeyQ, KeyE). Held keys stay held until released.",
	}, s.handlePressKeys)
	return s
}

// Run starts the MCP server over stdio and blocks until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	return s.sdk.Run(ctx, &mcpsdk.StdioTransport{})
}

// Connect connects the server to an existing transport (used in tests).
func (s *Server) Connect(ctx context.Context, t mcpsdk.Transport) (*mcpsdk.ServerSession, error) {
	return s.sdk.Connect(ctx, t, nil)
}

type emptyInput struct{}

type setLocationInput struct {
	Lat float64 `json:"lat" jsonschema:"latitude in decimal degrees, -90 to 90"`
	Lng float64 `json:"lng" jsonschema:"longitude in decimal degrees"`
}

type searchLocationInput struct {
	Address string `json:"address" jsonschema:"free-text address or place name"`
}

type setTiltInput struct {
	Tilt float64 `json:"tilt" jsonschema:"tilt in degrees, 0 to 90"`
}

type setMapTypeInput struct {
	MapType string `json:"map_type" jsonschema:"one of satellite, terrain, hybrid"`
}

type pressKeysInput struct {
	Codes []string `json:"codes" jsonschema:"key codes such as ArrowUp or KeyQ"`
	Down  bool     `json:"down,omitempty" jsonschema:"true to press, false to release"`
}

// FlightStateResponse is the JSON payload returned by get_flight_state.
type FlightStateResponse struct {
	Available    bool    `json:"available"`
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
	LatitudeDMS  string  `json:"latitude_dms"`
	LongitudeDMS string  `json:"longitude_dms"`
	AltitudeFeet float64 `json:"altitude_ft"`
	Zoom         float64 `json:"zoom"`
	Speed        float64 `json:"speed"`
	Rotation     float64 `json:"rotation_deg"`
	Heading      float64 `json:"heading_deg"`
	Tilt         float64 `json:"tilt_deg"`
	MapType      string  `json:"map_type"`
	Settled      bool    `json:"settled"`
	Tick         uint64  `json:"tick"`
	PublishedAt  string  `json:"published_at"`
	Timestamp    string  `json:"timestamp"`
}

// CommandResponse is the JSON payload returned by the command tools.
type CommandResponse struct {
	OK        bool     `json:"ok"`
	Action    string   `json:"action"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
	Address   string   `json:"address,omitempty"`
	Tilt      *float64 `json:"tilt_deg,omitempty"`
	MapType   string   `json:"map_type,omitempty"`
	Accepted  []string `json:"accepted,omitempty"`
	Ignored   []string `json:"ignored,omitempty"`
	Timestamp string   `json:"timestamp"`
}

// UnavailableResponse is returned when a tool cannot complete.
type UnavailableResponse struct {
	Available   bool   `json:"available"`
	Error       string `json:"error"`
	Code        string `json:"code"`
	Recoverable bool   `json:"recoverable"`
	Suggestion  string `json:"suggestion"`
	Timestamp   string `json:"timestamp"`
}

func (s *Server) handleGetFlightState(
	ctx context.Context,
	req *mcpsdk.CallToolRequest,
	_ emptyInput,
) (*mcpsdk.CallToolResult, any, error) {
	snap, err := s.deps.State.Snapshot()
	if err != nil {
		return s.errorResult("get_flight_state", err), nil, nil
	}

	latDMS, lngDMS := snap.Center.DMS()
	return jsonResult(FlightStateResponse{
		Available:    true,
		Latitude:     snap.Center.Lat,
		Longitude:    snap.Center.Lng,
		LatitudeDMS:  latDMS,
		LongitudeDMS: lngDMS,
		AltitudeFeet: snap.AltitudeFeet,
		Zoom:         snap.Zoom,
		Speed:        snap.Speed,
		Rotation:     snap.Rotation,
		Heading:      snap.Heading,
		Tilt:         snap.Tilt,
		MapType:      string(snap.MapType),
		Settled:      snap.Settled,
		Tick:         snap.Tick,
		PublishedAt:  snap.PublishedAt.UTC().Format(time.RFC3339Nano),
		Timestamp:    now(),
	})
}

func (s *Server) handleSetLocation(
	ctx context.Context,
	req *mcpsdk.CallToolRequest,
	in setLocationInput,
) (*mcpsdk.CallToolResult, any, error) {
	c := types.Coordinate{Lat: in.Lat, Lng: in.Lng}
	if err := s.deps.Commands.ForceSetLocation(ctx, c); err != nil {
		return s.errorResult("set_location", err), nil, nil
	}
	return s.locationResult("set_location", c, "")
}

func (s *Server) handleResetHome(
	ctx context.Context,
	req *mcpsdk.CallToolRequest,
	_ emptyInput,
) (*mcpsdk.CallToolResult, any, error) {
	if err := s.deps.Commands.ForceSetLocation(ctx, s.deps.Home); err != nil {
		return s.errorResult("reset_home", err), nil, nil
	}
	return s.locationResult("reset_home", s.deps.Home, "")
}

func (s *Server) handleSearchLocation(
	ctx context.Context,
	req *mcpsdk.CallToolRequest,
	in searchLocationInput,
) (*mcpsdk.CallToolResult, any, error) {
	c, err := s.deps.Geocoder.Lookup(ctx, in.Address)
	if err != nil {
		return s.errorResult("search_location", err), nil, nil
	}
	if err := s.deps.Commands.ForceSetLocation(ctx, c); err != nil {
		return s.errorResult("search_location", err), nil, nil
	}
	return s.locationResult("search_location", c, in.Address)
}

func (s *Server) handleSetTilt(
	ctx context.Context,
	req *mcpsdk.CallToolRequest,
	in setTiltInput,
) (*mcpsdk.CallToolResult, any, error) {
	if err := s.deps.Commands.SetTargetTilt(ctx, in.Tilt); err != nil {
		return s.errorResult("set_tilt", err), nil, nil
	}
	tilt := in.Tilt
	return jsonResult(CommandResponse{OK: true, Action: "set_tilt", Tilt: &tilt, Timestamp: now()})
}

func (s *Server) handleSetMapType(
	ctx context.Context,
	req *mcpsdk.CallToolRequest,
	in setMapTypeInput,
) (*mcpsdk.CallToolResult, any, error) {
	mt, err := types.ParseMapType(in.MapType)
	if err != nil {
		return s.errorResult("set_map_type", fmt.Errorf("%w: %w", ErrInvalidArgument, err)), nil, nil
	}
	if err := s.deps.Commands.SetMapType(ctx, mt); err != nil {
		return s.errorResult("set_map_type", err), nil, nil
	}
	return jsonResult(CommandResponse{OK: true, Action: "set_map_type", MapType: string(mt), Timestamp: now()})
}

func (s *Server) handlePressKeys(
	ctx context.Context,
	req *mcpsdk.CallToolRequest,
	in pressKeysInput,
) (*mcpsdk.CallToolResult, any, error) {
	if len(in.Codes) == 0 {
		return s.errorResult("press_keys", fmt.Errorf("%w: no key codes given", ErrInvalidArgument)), nil, nil
	}
	resp := CommandResponse{OK: true, Action: "press_keys", Timestamp: now()}
	for _, code := range in.Codes {
		if s.deps.Keys.Apply(input.KeyEvent{Code: code, Down: in.Down}) {
			resp.Accepted = append(resp.Accepted, code)
		} else {
			resp.Ignored = append(resp.Ignored, code)
		}
	}
	return jsonResult(resp)
}

func (s *Server) locationResult(action string, c types.Coordinate, address string) (*mcpsdk.CallToolResult, any, error) {
	lat, lng := c.Lat, c.Lng
	return jsonResult(CommandResponse{
		OK:        true,
		Action:    action,
		Latitude:  &lat,
		Longitude: &lng,
		Address:   address,
		Timestamp: now(),
	})
}

func jsonResult(v any) (*mcpsdk.CallToolResult, any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, nil, err
	}
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: string(data)}},
	}, nil, nil
}

func (s *Server) errorResult(tool string, err error) *mcpsdk.CallToolResult {
	resp := UnavailableResponse{
		Available: false,
		Error:     err.Error(),
		Timestamp: now(),
	}

	switch {
	case errors.Is(err, state.ErrStale):
		resp.Code = "DATA_STALE"
		resp.Recoverable = true
		resp.Suggestion = "The flight loop has stopped publishing; check that it is running."
	case errors.Is(err, state.ErrNotPublished):
		resp.Code = "NOT_PUBLISHED"
		resp.Recoverable = true
		resp.Suggestion = "The flight loop is starting; retry shortly."
	case errors.Is(err, geocode.ErrNotFound):
		resp.Code = "LOCATION_NOT_FOUND"
		resp.Recoverable = true
		resp.Suggestion = "Try a more specific address or a well-known place name."
	case errors.Is(err, geocode.ErrUpstream):
		resp.Code = "GEOCODER_UNAVAILABLE"
		resp.Recoverable = true
		resp.Suggestion = "The address service did not answer; retry later or use set_location."
	case errors.Is(err, ErrInvalidArgument),
		errors.Is(err, geocode.ErrEmptyAddress),
		errors.Is(err, flight.ErrInvalidCoordinate),
		errors.Is(err, flight.ErrInvalidTilt):
		resp.Code = "INVALID_ARGUMENT"
		resp.Recoverable = true
		resp.Suggestion = "Check the tool arguments and try again."
	case errors.Is(err, flight.ErrStopped):
		resp.Code = "FLIGHT_STOPPED"
		resp.Recoverable = false
		resp.Suggestion = "The flight loop has shut down; restart the server."
	default:
		resp.Code = "UNKNOWN_ERROR"
		resp.Recoverable = false
		resp.Suggestion = "Check application logs for details."
	}
	s.log.Warn("tool failed", "tool", tool, "code", resp.Code, "error", err)

	data, _ := json.Marshal(resp)
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: string(data)}},
		IsError: true,
	}
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}
