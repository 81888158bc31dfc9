package surface

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/eytandecker/flightcam/internal/input"
	"github.com/eytandecker/flightcam/pkg/types"
)

const (
	posePayloadSize = 5 * 8 // lat, lng, zoom, tilt, heading

	keyFlagDown      = 1 << 0
	keyFlagTextEntry = 1 << 1
)

// EncodeFloats packs vals as little-endian float64s.
func EncodeFloats(vals ...float64) []byte {
	buf := make([]byte, 0, len(vals)*8)
	for _, v := range vals {
		buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(v))
	}
	return buf
}

// DecodeFloats unpacks n little-endian float64s from the front of data.
func DecodeFloats(data []byte, n int) ([]float64, error) {
	if len(data) < n*8 {
		return nil, fmt.Errorf("%w: got %d bytes, need %d", ErrBadPayload, len(data), n*8)
	}
	vals := make([]float64, n)
	for i := range vals {
		vals[i] = math.Float64frombits(binary.LittleEndian.Uint64(data[i*8:]))
	}
	return vals, nil
}

// EncodePose lays out a MoveCamera payload.
//
//	lat      float64
//	lng      float64
//	zoom     float64
//	tilt     float64
//	heading  float64
func EncodePose(p types.Pose) []byte {
	return EncodeFloats(p.Center.Lat, p.Center.Lng, p.Zoom, p.Tilt, p.Heading)
}

// DecodePose is the inverse of EncodePose.
func DecodePose(data []byte) (types.Pose, error) {
	if len(data) != posePayloadSize {
		return types.Pose{}, fmt.Errorf("%w: pose is %d bytes, want %d", ErrBadPayload, len(data), posePayloadSize)
	}
	v, err := DecodeFloats(data, 5)
	if err != nil {
		return types.Pose{}, err
	}
	return types.Pose{
		Center:  types.Coordinate{Lat: v[0], Lng: v[1]},
		Zoom:    v[2],
		Tilt:    v[3],
		Heading: v[4],
	}, nil
}

// EncodeString returns s null-terminated.
func EncodeString(s string) []byte {
	return append([]byte(s), 0)
}

func decodeString(data []byte) (string, error) {
	i := bytes.IndexByte(data, 0)
	if i < 0 {
		return "", fmt.Errorf("%w: string is not null-terminated", ErrBadPayload)
	}
	return string(data[:i]), nil
}

// EncodeKeyEvent lays out a KeyEvent payload.
//
//	flags  uint32 (bit 0 down, bit 1 from text entry)
//	code   null-terminated string
func EncodeKeyEvent(ev input.KeyEvent) []byte {
	var flags uint32
	if ev.Down {
		flags |= keyFlagDown
	}
	if ev.TextEntry {
		flags |= keyFlagTextEntry
	}
	buf := binary.LittleEndian.AppendUint32(nil, flags)
	return append(buf, EncodeString(ev.Code)...)
}

// ParseKeyEvent decodes a KeyEvent payload.
func ParseKeyEvent(data []byte) (input.KeyEvent, error) {
	if len(data) < 5 {
		return input.KeyEvent{}, fmt.Errorf("%w: key event is %d bytes", ErrBadPayload, len(data))
	}
	flags := binary.LittleEndian.Uint32(data[0:4])
	code, err := decodeString(data[4:])
	if err != nil {
		return input.KeyEvent{}, err
	}
	return input.KeyEvent{
		Code:      code,
		Down:      flags&keyFlagDown != 0,
		TextEntry: flags&keyFlagTextEntry != 0,
	}, nil
}

// EncodeUint32 lays out a single little-endian uint32 payload.
func EncodeUint32(v uint32) []byte {
	return binary.LittleEndian.AppendUint32(nil, v)
}

// ParseUint32 decodes a single little-endian uint32 payload, as carried by
// Capabilities and Exception.
func ParseUint32(data []byte) (uint32, error) {
	if len(data) < 4 {
		return 0, fmt.Errorf("%w: got %d bytes, need 4", ErrBadPayload, len(data))
	}
	return binary.LittleEndian.Uint32(data[0:4]), nil
}

// ParseTiltReport decodes a TiltReport payload.
func ParseTiltReport(data []byte) (float64, error) {
	v, err := DecodeFloats(data, 1)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v[0]) || math.IsInf(v[0], 0) {
		return 0, fmt.Errorf("%w: tilt %v", ErrBadPayload, v[0])
	}
	return v[0], nil
}
