package surface

import (
	"encoding/binary"
	"fmt"
)

const (
	HeaderSize      = 16
	ProtocolVersion = 1

	// MaxPayloadSize bounds a single inbound message.
	MaxPayloadSize = 64 * 1024

	// Outbound messages.
	MsgOpen        = 0x0001
	MsgClose       = 0x0002
	MsgMoveCamera  = 0x0010
	MsgSetCenter   = 0x0011
	MsgSetZoom     = 0x0012
	MsgSetTilt     = 0x0013
	MsgSetMapType  = 0x0014
	MsgRequestTilt = 0x0015

	// Inbound messages.
	MsgCapabilities = 0x0100
	MsgKeyEvent     = 0x0101
	MsgTiltReport   = 0x0102
	MsgException    = 0x01FF
)

// Capabilities is the feature bit set a surface announces after Open.
type Capabilities uint32

const (
	// CapCombinedCamera means the surface accepts MoveCamera.
	CapCombinedCamera Capabilities = 1 << iota
	// CapMapType means the surface accepts SetMapType.
	CapMapType
)

// Has reports whether every bit in c2 is set.
func (c Capabilities) Has(c2 Capabilities) bool {
	return c&c2 == c2
}

// Header is the fixed prefix of every message.
type Header struct {
	Size    uint32
	Version uint32
	Type    uint32
	ID      uint32
}

// EncodeHeader builds a 16-byte little-endian header. Size is set to
// HeaderSize + payloadSize.
func EncodeHeader(msgType, msgID uint32, payloadSize int) []byte {
	buf := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(HeaderSize)+uint32(payloadSize)) //nolint:gosec // payloads are bounded by MaxPayloadSize
	binary.LittleEndian.PutUint32(buf[4:8], ProtocolVersion)
	binary.LittleEndian.PutUint32(buf[8:12], msgType)
	binary.LittleEndian.PutUint32(buf[12:16], msgID)
	return buf
}

// DecodeHeader parses a 16-byte little-endian header.
func DecodeHeader(data []byte) (Header, error) {
	if len(data) < HeaderSize {
		return Header{}, fmt.Errorf("header too short: got %d bytes, need %d", len(data), HeaderSize)
	}
	h := Header{
		Size:    binary.LittleEndian.Uint32(data[0:4]),
		Version: binary.LittleEndian.Uint32(data[4:8]),
		Type:    binary.LittleEndian.Uint32(data[8:12]),
		ID:      binary.LittleEndian.Uint32(data[12:16]),
	}
	if h.Size < HeaderSize {
		return Header{}, fmt.Errorf("%w: size %d smaller than header", ErrBadFrame, h.Size)
	}
	if h.Size-HeaderSize > MaxPayloadSize {
		return Header{}, fmt.Errorf("%w: payload of %d bytes exceeds %d", ErrBadFrame, h.Size-HeaderSize, MaxPayloadSize)
	}
	return h, nil
}
