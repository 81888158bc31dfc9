package surface

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eytandecker/flightcam/internal/render"
	"github.com/eytandecker/flightcam/pkg/types"
)

func defaultTestConfig() Config {
	return Config{
		Host:    "127.0.0.1",
		Port:    4600,
		Timeout: time.Second,
		AppName: "test-app",
	}
}

// drainOneMessage reads one complete message (header + payload) from conn.
func drainOneMessage(conn net.Conn) (Header, []byte, error) {
	c := &Client{reader: conn}
	return c.ReadNext()
}

// writeMessage sends a framed message from the surface side.
func writeMessage(conn net.Conn, msgType uint32, payload []byte) error {
	frame := append(EncodeHeader(msgType, 1, len(payload)), payload...)
	_, err := conn.Write(frame)
	return err
}

// connectAndDrainOpen connects the client over a pipe and consumes Open.
func connectAndDrainOpen(t *testing.T, c *Client) (clientConn, serverConn net.Conn) {
	t.Helper()
	clientConn, serverConn = net.Pipe()

	openDrained := make(chan struct{})
	go func() {
		defer close(openDrained)
		_, _, _ = drainOneMessage(serverConn)
	}()

	err := c.connectWithConn(context.Background(), clientConn)
	require.NoError(t, err)
	<-openDrained
	t.Cleanup(func() {
		serverConn.Close()
		clientConn.Close()
	})
	return clientConn, serverConn
}

// sendAndCapture runs send on a goroutine and returns what the surface receives.
func sendAndCapture(t *testing.T, serverConn net.Conn, send func() error) (Header, []byte) {
	t.Helper()
	errCh := make(chan error, 1)
	go func() { errCh <- send() }()

	h, payload, err := drainOneMessage(serverConn)
	require.NoError(t, err)
	require.NoError(t, <-errCh)
	return h, payload
}

func TestNewClient(t *testing.T) {
	cfg := defaultTestConfig()
	c := NewClient(cfg)
	assert.Equal(t, StateDisconnected, c.State())
	assert.Equal(t, "disconnected", c.State().String())
	assert.Equal(t, cfg.AppName, c.config.AppName)
	assert.Equal(t, 0.0, c.Tilt())
}

func TestConnectSendsOpenMessage(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer serverConn.Close()
	c := NewClient(defaultTestConfig())

	h, payload := sendAndCapture(t, serverConn, func() error {
		return c.connectWithConn(context.Background(), clientConn)
	})
	assert.Equal(t, uint32(MsgOpen), h.Type)
	assert.Equal(t, uint32(ProtocolVersion), h.Version)
	assert.Equal(t, []byte("test-app\x00"), payload)
	assert.Equal(t, StateConnected, c.State())
}

func TestConnectWithCancelledContext(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer serverConn.Close()
	defer clientConn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := NewClient(defaultTestConfig())
	err := c.connectWithConn(ctx, clientConn)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateDisconnected, c.State())
}

func TestConnectDialFailure(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().(*net.TCPAddr)
	require.NoError(t, l.Close())

	cfg := defaultTestConfig()
	cfg.Port = addr.Port
	c := NewClient(cfg)
	assert.Error(t, c.Connect(context.Background()))
	assert.Equal(t, StateDisconnected, c.State())
}

func TestSendBeforeConnect(t *testing.T) {
	c := NewClient(defaultTestConfig())
	assert.ErrorIs(t, c.SetCenter(types.Coordinate{}), ErrNotConnected)
	assert.ErrorIs(t, c.RequestTilt(), ErrNotConnected)
	_, _, err := c.ReadNext()
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.NoError(t, c.Close())
}

func TestCloseSendsCloseMessage(t *testing.T) {
	c := NewClient(defaultTestConfig())
	_, serverConn := connectAndDrainOpen(t, c)

	h, payload := sendAndCapture(t, serverConn, c.Close)
	assert.Equal(t, uint32(MsgClose), h.Type)
	assert.Empty(t, payload)
	assert.Equal(t, StateDisconnected, c.State())

	assert.NoError(t, c.Close())
	assert.ErrorIs(t, c.SetZoom(17), ErrNotConnected)
}

func TestDiscreteSetters(t *testing.T) {
	c := NewClient(defaultTestConfig())
	_, serverConn := connectAndDrainOpen(t, c)

	tests := []struct {
		name     string
		send     func() error
		wantType uint32
		want     []float64
	}{
		{"center", func() error { return c.SetCenter(types.Coordinate{Lat: 48.8566, Lng: 2.3522}) }, MsgSetCenter, []float64{48.8566, 2.3522}},
		{"zoom", func() error { return c.SetZoom(18.25) }, MsgSetZoom, []float64{18.25}},
		{"tilt", func() error { return c.SetTilt(30) }, MsgSetTilt, []float64{30}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, payload := sendAndCapture(t, serverConn, tt.send)
			assert.Equal(t, tt.wantType, h.Type)
			vals, err := DecodeFloats(payload, len(tt.want))
			require.NoError(t, err)
			assert.Equal(t, tt.want, vals)
		})
	}
	assert.Equal(t, 30.0, c.Tilt())
}

func TestMessageIDsIncrease(t *testing.T) {
	c := NewClient(defaultTestConfig())
	_, serverConn := connectAndDrainOpen(t, c)

	first, _ := sendAndCapture(t, serverConn, c.RequestTilt)
	second, _ := sendAndCapture(t, serverConn, c.RequestTilt)
	assert.Equal(t, uint32(MsgRequestTilt), first.Type)
	assert.Greater(t, second.ID, first.ID)
}

func TestSurfaceFollowsCapabilities(t *testing.T) {
	tests := []struct {
		name         string
		caps         Capabilities
		wantMover    bool
		wantMapTyper bool
	}{
		{"discrete only", 0, false, false},
		{"combined", CapCombinedCamera, true, false},
		{"map type", CapMapType, false, true},
		{"everything", CapCombinedCamera | CapMapType, true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewClient(defaultTestConfig())
			c.setCapabilities(tt.caps)
			s := c.Surface()

			_, isMover := s.(render.CameraMover)
			_, isMapTyper := s.(render.MapTypeSetter)
			assert.Equal(t, tt.wantMover, isMover)
			assert.Equal(t, tt.wantMapTyper, isMapTyper)
			assert.Equal(t, tt.caps, c.Capabilities())
		})
	}
}

func TestMoveCameraSendsPose(t *testing.T) {
	c := NewClient(defaultTestConfig())
	_, serverConn := connectAndDrainOpen(t, c)
	c.setCapabilities(CapCombinedCamera)
	mover, ok := c.Surface().(render.CameraMover)
	require.True(t, ok)

	pose := types.Pose{Center: types.Coordinate{Lat: 1, Lng: 2}, Zoom: 16, Tilt: 45, Heading: 90}
	h, payload := sendAndCapture(t, serverConn, func() error { return mover.MoveCamera(pose) })
	assert.Equal(t, uint32(MsgMoveCamera), h.Type)
	got, err := DecodePose(payload)
	require.NoError(t, err)
	assert.Equal(t, pose, got)
	assert.Equal(t, 45.0, c.Tilt())
}

func TestSetMapTypeSendsName(t *testing.T) {
	c := NewClient(defaultTestConfig())
	_, serverConn := connectAndDrainOpen(t, c)
	c.setCapabilities(CapMapType)
	setter, ok := c.Surface().(render.MapTypeSetter)
	require.True(t, ok)

	h, payload := sendAndCapture(t, serverConn, func() error { return setter.SetMapType(types.MapTypeTerrain) })
	assert.Equal(t, uint32(MsgSetMapType), h.Type)
	assert.Equal(t, []byte("terrain\x00"), payload)
}

func TestReadNext(t *testing.T) {
	c := NewClient(defaultTestConfig())
	_, serverConn := connectAndDrainOpen(t, c)

	go func() { _ = writeMessage(serverConn, MsgTiltReport, EncodeFloats(12.5)) }()

	h, payload, err := c.ReadNext()
	require.NoError(t, err)
	assert.Equal(t, uint32(MsgTiltReport), h.Type)
	tilt, err := ParseTiltReport(payload)
	require.NoError(t, err)
	assert.Equal(t, 12.5, tilt)
}

func TestWriteTimesOutWhenSurfaceStalls(t *testing.T) {
	cfg := defaultTestConfig()
	cfg.WriteTimeout = 20 * time.Millisecond
	c := NewClient(cfg)
	connectAndDrainOpen(t, c)

	require.Error(t, c.SetZoom(17))
	assert.Equal(t, StateDisconnected, c.State())
	assert.ErrorIs(t, c.SetZoom(17), ErrNotConnected)
	assert.NoError(t, c.Close())
}

func TestStalledSurfaceDoesNotHoldUpFrames(t *testing.T) {
	const frame = time.Second / 60
	const budget = 100 * time.Millisecond

	tests := []struct {
		name string
		caps Capabilities
	}{
		{"combined", CapCombinedCamera},
		{"discrete", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultTestConfig()
			cfg.Timeout = 2 * time.Second
			cfg.WriteTimeout = frame
			c := NewClient(cfg)
			connectAndDrainOpen(t, c) // the surface reads Open, then nothing
			c.setCapabilities(tt.caps)

			b := render.NewBridge(nil, nil)
			b.Attach(c.Surface())

			pose := types.Pose{Center: types.Coordinate{Lat: 1, Lng: 2}, Zoom: 16, Tilt: 45}
			for i := 0; i < 3; i++ {
				start := time.Now()
				b.ApplyPose(pose)
				assert.Less(t, time.Since(start), budget, "tick %d", i)
			}
			assert.Equal(t, StateDisconnected, c.State())
		})
	}
}
