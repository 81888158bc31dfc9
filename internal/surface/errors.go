package surface

import "errors"

var (
	ErrNotConnected = errors.New("surface: not connected")
	ErrBadFrame     = errors.New("surface: malformed frame")
	ErrBadPayload   = errors.New("surface: malformed payload")
)
