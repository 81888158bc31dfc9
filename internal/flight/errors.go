package flight

import "errors"

var (
	ErrInvalidCoordinate = errors.New("flight: invalid coordinate")
	ErrInvalidTilt       = errors.New("flight: invalid tilt")
	ErrStopped           = errors.New("flight: loop stopped")
	ErrAlreadyStarted    = errors.New("flight: loop already started")
)
