package geocode

import "errors"

var (
	ErrEmptyAddress = errors.New("geocode: empty address")
	ErrNotFound     = errors.New("geocode: no results")
	ErrUpstream     = errors.New("geocode: upstream failure")
)
