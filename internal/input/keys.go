// Package input tracks which flight-control keys are currently held.
package input

// Key is a flight-control key. Each key occupies one bit of a Set.
type Key uint8

const (
	ArrowUp Key = iota
	ArrowDown
	ArrowLeft
	ArrowRight
	KeyQ
	KeyE

	numKeys
)

var keyCodes = [numKeys]string{
	ArrowUp:    "ArrowUp",
	ArrowDown:  "ArrowDown",
	ArrowLeft:  "ArrowLeft",
	ArrowRight: "ArrowRight",
	KeyQ:       "KeyQ",
	KeyE:       "KeyE",
}

// String returns the DOM-style key code, e.g. "ArrowUp".
func (k Key) String() string {
	if k < numKeys {
		return keyCodes[k]
	}
	return "Unknown"
}

// ParseKey maps a key code to a Key. Codes that do not control the flight report false.
func ParseKey(code string) (Key, bool) {
	for k, c := range keyCodes {
		if c == code {
			return Key(k), true
		}
	}
	return 0, false
}

// Set is an immutable point-in-time set of held keys.
type Set uint32

// SetOf builds a Set from keys.
func SetOf(keys ...Key) Set {
	var s Set
	for _, k := range keys {
		s |= k.bit()
	}
	return s
}

// Has reports whether k is held.
func (s Set) Has(k Key) bool {
	return s&k.bit() != 0
}

// Keys lists the held keys in declaration order.
func (s Set) Keys() []Key {
	var out []Key
	for k := Key(0); k < numKeys; k++ {
		if s.Has(k) {
			out = append(out, k)
		}
	}
	return out
}

func (k Key) bit() Set {
	return 1 << k
}
