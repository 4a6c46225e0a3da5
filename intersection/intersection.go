// Package intersection implements a FIFO-fair, direction-grouped
// traffic monitor modeled on a classic single-lane intersection
// synchronization problem: one mutex, one FIFO queue of
// pending/admitted origins, and one condition variable per direction.
//
// Two departures from the textbook C shape: the queue holds Go values
// instead of kmalloc'd heap cells (no preallocation dance needed), and
// a vehicle event is optionally logged through an injectable Logger
// instead of hardcoded kprintf calls, so a caller can format the
// arrival/departure trace however it likes — wired here to
// golang.org/x/text/message so numbers in the trace print locale-aware
// the way a real driver program would.
package intersection

import (
	"sync"
)

// Direction is one of the four compass origins a vehicle arrives from.
type Direction int

const (
	North Direction = iota
	South
	East
	West
)

func (d Direction) String() string {
	switch d {
	case North:
		return "N"
	case South:
		return "S"
	case East:
		return "E"
	case West:
		return "W"
	default:
		return "?"
	}
}

var directions = [...]Direction{North, South, East, West}

// AllDirections returns the four compass origins in a fixed order, for
// callers that want to drive every direction's condition variable
// (e.g. a simulation harness shutting down cleanly).
func AllDirections() []Direction {
	out := make([]Direction, len(directions))
	copy(out, directions[:])
	return out
}

// Logger receives a narration of each admission/departure event.
// Implementations must not block or call back into the Monitor.
type Logger interface {
	Log(format string, args ...any)
}

// Monitor is the intersection's synchronization state: a FIFO of
// origins, the currently admitted direction, and one condition
// variable per direction, all guarded by a single mutex.
type Monitor struct {
	mu            sync.Mutex
	queue         []Direction
	currentOrigin Direction
	hasCurrent    bool
	cv            [4]*sync.Cond

	log Logger
}

// New returns an initialized, empty Monitor (intersection_sync_init).
// log may be nil to disable event narration.
func New(log Logger) *Monitor {
	m := &Monitor{log: log}
	for i := range m.cv {
		m.cv[i] = sync.NewCond(&m.mu)
	}
	return m
}

func (m *Monitor) logf(format string, args ...any) {
	if m.log != nil {
		m.log.Log(format, args...)
	}
}

// BeforeEntry blocks the calling vehicle until it is admitted into the
// intersection. destination does not affect admission and is accepted
// only for signature parity with the two-argument form the simulation
// driver calls.
func (m *Monitor) BeforeEntry(origin Direction, destination Direction) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.queue) == 0 {
		m.currentOrigin = origin
		m.hasCurrent = true
	}
	m.queue = append(m.queue, origin)
	m.logf("%s in (queue=%v, current=%s)", origin, m.queue, m.currentOrigin)

	for m.currentOrigin != origin || !m.hasCurrent {
		m.cv[origin].Wait()
	}
}

// AfterExit releases the calling vehicle from the intersection:
// removes the first matching origin from
// the queue, and if no vehicle of the current direction remains either
// queued or active, advances current_origin to the new head and wakes
// every waiter of that direction at once.
func (m *Monitor) AfterExit(origin Direction, destination Direction) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, d := range m.queue {
		if d == origin {
			m.queue = append(m.queue[:i], m.queue[i+1:]...)
			break
		}
	}
	m.logf("%s out (queue=%v)", origin, m.queue)

	if len(m.queue) == 0 {
		m.hasCurrent = false
		return
	}
	for _, d := range m.queue {
		if d == m.currentOrigin {
			return
		}
	}
	m.currentOrigin = m.queue[0]
	m.logf("switch to %s", m.currentOrigin)
	m.cv[m.currentOrigin].Broadcast()
}

// Queue returns a snapshot of the pending/admitted origin FIFO, for
// tests asserting on an exact arrival/departure sequence.
func (m *Monitor) Queue() []Direction {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Direction, len(m.queue))
	copy(out, m.queue)
	return out
}

// Current reports the direction currently permitted to proceed, and
// whether any direction is active at all.
func (m *Monitor) Current() (Direction, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.currentOrigin, m.hasCurrent
}
