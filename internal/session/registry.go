package session

import (
	"sync"

	"github.com/mhardt/gambit/pkg/wire"
)

// Listener receives the payload frame of one inbound event.
type Listener func(ev *wire.Event)

type listenerEntry struct {
	id int
	fn Listener
}

// registry maps event names to ordered subscriber lists. Dispatch works on a
// snapshot, so registering or removing a listener never affects listeners
// already mid-invocation for the current event.
type registry struct {
	mu     sync.Mutex
	nextID int
	byName map[wire.EventName][]listenerEntry
}

func newRegistry() *registry {
	return &registry{byName: make(map[wire.EventName][]listenerEntry)}
}

// add registers a listener and returns its handle. Unknown event names are
// silently ignored and yield handle 0.
func (r *registry) add(name wire.EventName, fn Listener) int {
	if !name.Known() || fn == nil {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	r.byName[name] = append(r.byName[name], listenerEntry{id: r.nextID, fn: fn})
	return r.nextID
}

func (r *registry) remove(name wire.EventName, id int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entries := r.byName[name]
	for i, e := range entries {
		if e.id == id {
			r.byName[name] = append(entries[:i], entries[i+1:]...)
			return
		}
	}
}

func (r *registry) snapshot(name wire.EventName) []Listener {
	r.mu.Lock()
	defer r.mu.Unlock()
	entries := r.byName[name]
	if len(entries) == 0 {
		return nil
	}
	out := make([]Listener, len(entries))
	for i, e := range entries {
		out[i] = e.fn
	}
	return out
}
