package state

import (
	"sync"
	"time"

	"github.com/eytandecker/flightcam/pkg/types"
)

// Manager holds the latest published flight snapshot for observers. It is the
// only state observers read; the flight loop writes it through Publish.
type Manager struct {
	mu             sync.RWMutex
	snapshot       types.Snapshot
	lastUpdated    time.Time
	staleThreshold time.Duration

	subs     map[chan types.Snapshot]struct{}
	lastSent types.Snapshot
	sent     bool
}

// NewManager creates a Manager with the given stale threshold.
// A zero threshold disables staleness checking.
func NewManager(staleThreshold time.Duration) *Manager {
	return &Manager{
		staleThreshold: staleThreshold,
		subs:           make(map[chan types.Snapshot]struct{}),
	}
}

// Publish stores snap and forwards it to subscribers. Consecutive snapshots
// with the same flight state are stored but not re-sent, so a camera at rest is
// delivered to subscribers once.
func (m *Manager) Publish(snap types.Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshot = snap
	m.lastUpdated = time.Now()

	if m.sent && m.lastSent.SameState(snap) {
		return
	}
	m.lastSent, m.sent = snap, true
	for ch := range m.subs {
		select {
		case ch <- snap:
		default:
			// slow subscriber, drop frame
		}
	}
}

// Snapshot returns the latest snapshot, ErrNotPublished if there is none yet,
// or ErrStale if it is older than the stale threshold.
func (m *Manager) Snapshot() (types.Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.lastUpdated.IsZero() {
		return types.Snapshot{}, ErrNotPublished
	}
	if m.staleThreshold > 0 && time.Since(m.lastUpdated) > m.staleThreshold {
		return types.Snapshot{}, ErrStale
	}
	return m.snapshot, nil
}

// LastUpdated returns the time of the most recent Publish, or zero if never published.
func (m *Manager) LastUpdated() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastUpdated
}

// Subscribe returns a channel receiving changed snapshots and a function that
// cancels the subscription and closes the channel. The current snapshot, if
// any, is delivered first.
func (m *Manager) Subscribe(buffer int) (<-chan types.Snapshot, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan types.Snapshot, buffer)

	m.mu.Lock()
	m.subs[ch] = struct{}{}
	if !m.lastUpdated.IsZero() {
		ch <- m.snapshot
	}
	m.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.subs, ch)
			m.mu.Unlock()
			close(ch)
		})
	}
}
