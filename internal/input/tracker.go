package input

import "sync/atomic"

// KeyEvent is a single press or release delivered by the rendering host.
type KeyEvent struct {
	Code string
	Down bool
	// TextEntry is set when the event originated in a focused text-entry
	// control, such as the address search box.
	TextEntry bool
}

// Tracker holds the set of pressed flight keys. Events may arrive from any
// goroutine; the tick reads one consistent Set per frame via Snapshot.
type Tracker struct {
	held atomic.Uint32
}

// NewTracker returns a Tracker with no keys held.
func NewTracker() *Tracker {
	return &Tracker{}
}

// KeyDown marks code as held. Presses from a text-entry control and codes that
// are not flight controls are ignored; the return value reports whether the
// event was accepted.
func (t *Tracker) KeyDown(code string, textEntry bool) bool {
	if textEntry {
		return false
	}
	k, ok := ParseKey(code)
	if !ok {
		return false
	}
	t.held.Or(uint32(k.bit()))
	return true
}

// KeyUp releases code. Releases are honoured regardless of focus so a key
// pressed before focus moved to a text field cannot stay stuck.
func (t *Tracker) KeyUp(code string) bool {
	k, ok := ParseKey(code)
	if !ok {
		return false
	}
	t.held.And(^uint32(k.bit()))
	return true
}

// Apply dispatches ev to KeyDown or KeyUp.
func (t *Tracker) Apply(ev KeyEvent) bool {
	if ev.Down {
		return t.KeyDown(ev.Code, ev.TextEntry)
	}
	return t.KeyUp(ev.Code)
}

// IsHeld reports whether code is currently held.
func (t *Tracker) IsHeld(code string) bool {
	k, ok := ParseKey(code)
	return ok && t.Snapshot().Has(k)
}

// Snapshot returns the held keys as of this instant.
func (t *Tracker) Snapshot() Set {
	return Set(t.held.Load())
}

// ReleaseAll clears every held key.
func (t *Tracker) ReleaseAll() {
	t.held.Store(0)
}
