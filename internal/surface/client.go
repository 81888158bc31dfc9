// Package surface speaks the framed TCP protocol of the external rendering
// surface: camera updates go out, key events and tilt reports come back.
package surface

import (
	"context"
	"fmt"
	"io"
	"math"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/eytandecker/flightcam/internal/render"
	"github.com/eytandecker/flightcam/pkg/types"
)

// Config holds surface connection settings.
// WriteTimeout bounds each frame write after the handshake and should be
// about one frame interval; zero falls back to Timeout.
type Config struct {
	Host         string
	Port         int
	Timeout      time.Duration // dial and handshake
	WriteTimeout time.Duration
	AppName      string
}

// ConnectionState represents the client's connection lifecycle.
type ConnectionState int32

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateConnected
)

func (s ConnectionState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Client manages one TCP connection to a rendering surface.
type Client struct {
	config Config
	conn   net.Conn
	reader io.Reader
	state  atomic.Int32
	mu     sync.Mutex
	nextID atomic.Uint32

	caps atomic.Uint32
	tilt atomic.Uint64 // float64 bits
}

// NewClient creates a disconnected client.
func NewClient(cfg Config) *Client {
	c := &Client{config: cfg}
	c.state.Store(int32(StateDisconnected))
	return c
}

// State returns the current connection state.
func (c *Client) State() ConnectionState {
	return ConnectionState(c.state.Load())
}

// Connect dials the surface and sends Open.
func (c *Client) Connect(ctx context.Context) error {
	addr := net.JoinHostPort(c.config.Host, strconv.Itoa(c.config.Port))
	dialer := net.Dialer{Timeout: c.config.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("surface dial: %w", err)
	}
	if err := c.connectWithConn(ctx, conn); err != nil {
		conn.Close()
		return err
	}
	return nil
}

// connectWithConn performs the handshake on an existing net.Conn so tests
// can use net.Pipe.
func (c *Client) connectWithConn(ctx context.Context, conn net.Conn) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("surface connect: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.state.Store(int32(StateConnecting))
	c.conn = conn
	c.reader = conn

	if err := c.sendMessageLocked(MsgOpen, EncodeString(c.config.AppName), c.config.Timeout); err != nil {
		return fmt.Errorf("surface open: %w", err)
	}

	c.state.Store(int32(StateConnected))
	return nil
}

// Close sends Close and shuts the connection down. It is safe to call more
// than once.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil
	}

	// Best effort; the peer may already be gone. A failed write closes the
	// connection itself.
	if err := c.sendMessageLocked(MsgClose, nil, c.writeTimeout()); err != nil {
		return nil
	}

	err := c.conn.Close()
	c.conn = nil
	c.state.Store(int32(StateDisconnected))
	return err
}

func (c *Client) sendMessage(msgType uint32, payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sendMessageLocked(msgType, payload, c.writeTimeout())
}

func (c *Client) writeTimeout() time.Duration {
	if c.config.WriteTimeout > 0 {
		return c.config.WriteTimeout
	}
	return c.config.Timeout
}

// sendMessageLocked writes header and payload in one write; caller must hold c.mu.
// A failed write may have left a partial frame on the wire, so the
// connection is closed and the pending ReadNext returns an error.
func (c *Client) sendMessageLocked(msgType uint32, payload []byte, timeout time.Duration) error {
	if c.conn == nil {
		return ErrNotConnected
	}

	id := c.nextID.Add(1)
	frame := append(EncodeHeader(msgType, id, len(payload)), payload...)

	if timeout > 0 {
		_ = c.conn.SetWriteDeadline(time.Now().Add(timeout))
	}
	if _, err := c.conn.Write(frame); err != nil {
		_ = c.conn.Close()
		c.conn = nil
		c.state.Store(int32(StateDisconnected))
		return fmt.Errorf("write message 0x%04x: %w", msgType, err)
	}
	return nil
}

// ReadNext reads the next complete framed message. Only one goroutine may
// read at a time.
func (c *Client) ReadNext() (Header, []byte, error) {
	if c.reader == nil {
		return Header{}, nil, ErrNotConnected
	}

	headerBuf := make([]byte, HeaderSize)
	if _, err := io.ReadFull(c.reader, headerBuf); err != nil {
		return Header{}, nil, fmt.Errorf("read header: %w", err)
	}

	h, err := DecodeHeader(headerBuf)
	if err != nil {
		return Header{}, nil, err
	}

	payloadSize := h.Size - HeaderSize
	if payloadSize == 0 {
		return h, nil, nil
	}

	payload := make([]byte, payloadSize)
	if _, err := io.ReadFull(c.reader, payload); err != nil {
		return Header{}, nil, fmt.Errorf("read payload: %w", err)
	}
	return h, payload, nil
}

// SetCenter moves the camera center.
func (c *Client) SetCenter(coord types.Coordinate) error {
	return c.sendMessage(MsgSetCenter, EncodeFloats(coord.Lat, coord.Lng))
}

// SetZoom sets the camera zoom level.
func (c *Client) SetZoom(zoom float64) error {
	return c.sendMessage(MsgSetZoom, EncodeFloats(zoom))
}

// SetTilt sets the camera tilt. The cached tilt follows immediately; a later
// TiltReport overrides it with what the surface actually shows.
func (c *Client) SetTilt(tilt float64) error {
	if err := c.sendMessage(MsgSetTilt, EncodeFloats(tilt)); err != nil {
		return err
	}
	c.storeTilt(tilt)
	return nil
}

// Tilt returns the last known surface tilt, 0 before anything is known.
func (c *Client) Tilt() float64 {
	return math.Float64frombits(c.tilt.Load())
}

func (c *Client) storeTilt(tilt float64) {
	c.tilt.Store(math.Float64bits(tilt))
}

// RequestTilt asks the surface for a TiltReport.
func (c *Client) RequestTilt() error {
	return c.sendMessage(MsgRequestTilt, nil)
}

func (c *Client) moveCamera(p types.Pose) error {
	if err := c.sendMessage(MsgMoveCamera, EncodePose(p)); err != nil {
		return err
	}
	c.storeTilt(p.Tilt)
	return nil
}

func (c *Client) setMapType(mt types.MapType) error {
	return c.sendMessage(MsgSetMapType, EncodeString(string(mt)))
}

// Capabilities returns the bits announced by the surface, 0 until announced.
func (c *Client) Capabilities() Capabilities {
	return Capabilities(c.caps.Load())
}

func (c *Client) setCapabilities(caps Capabilities) {
	c.caps.Store(uint32(caps))
}

// Surface returns the client as a render.Surface exposing exactly the
// optional interfaces the announced capabilities allow.
func (c *Client) Surface() render.Surface {
	caps := c.Capabilities()
	switch {
	case caps.Has(CapCombinedCamera | CapMapType):
		return fullSurface{c}
	case caps.Has(CapCombinedCamera):
		return combinedSurface{c}
	case caps.Has(CapMapType):
		return mapTypeSurface{c}
	}
	return c
}

type combinedSurface struct{ *Client }

func (s combinedSurface) MoveCamera(p types.Pose) error { return s.moveCamera(p) }

type mapTypeSurface struct{ *Client }

func (s mapTypeSurface) SetMapType(mt types.MapType) error { return s.setMapType(mt) }

type fullSurface struct{ *Client }

func (s fullSurface) MoveCamera(p types.Pose) error      { return s.moveCamera(p) }
func (s fullSurface) SetMapType(mt types.MapType) error { return s.setMapType(mt) }

var (
	_ render.Surface       = (*Client)(nil)
	_ render.CameraMover   = combinedSurface{}
	_ render.MapTypeSetter = mapTypeSurface{}
	_ render.CameraMover   = fullSurface{}
	_ render.MapTypeSetter = fullSurface{}
)
