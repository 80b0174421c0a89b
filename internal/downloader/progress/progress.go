package progress

import "sync"

// Tracker holds the completion percentage of every in-flight download,
// keyed by track id. It is the single shared-state point between the
// download pipeline and the progress endpoint.
type Tracker struct {
	mu     sync.RWMutex
	active map[string]float64
}

func NewTracker() *Tracker {
	return &Tracker{active: make(map[string]float64)}
}

// Set records the completion percentage for a track, clamped to [0,100].
func (t *Tracker) Set(id string, percent float64) {
	if percent < 0 {
		percent = 0
	}

	if percent > 100 {
		percent = 100
	}

	t.mu.Lock()
	t.active[id] = percent
	t.mu.Unlock()
}

// Done removes a finished or failed track from the tracker.
func (t *Tracker) Done(id string) {
	t.mu.Lock()
	delete(t.active, id)
	t.mu.Unlock()
}

// Get returns the completion percentage for a track, or -1 when the id
// has no download in flight.
func (t *Tracker) Get(id string) float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()

	percent, ok := t.active[id]
	if !ok {
		return -1
	}

	return percent
}
