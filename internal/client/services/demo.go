package services

import (
	"sync"
	"sync/atomic"
)

// DemoMode is the process-wide demo flag. Business services read it to
// switch to their simplified behavior; only SessionManager changes it.
type DemoMode struct {
	active atomic.Bool

	mu        sync.Mutex
	listeners map[int]func(bool)
	nextID    int
}

func NewDemoMode() *DemoMode {
	return &DemoMode{listeners: map[int]func(bool){}}
}

func (d *DemoMode) Active() bool {
	return d.active.Load()
}

// Subscribe calls fn on every change of the flag.
func (d *DemoMode) Subscribe(fn func(active bool)) (unsubscribe func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	id := d.nextID
	d.nextID++
	d.listeners[id] = fn

	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		delete(d.listeners, id)
	}
}

func (d *DemoMode) set(active bool) {
	if d.active.Swap(active) == active {
		return
	}

	d.mu.Lock()
	listeners := make([]func(bool), 0, len(d.listeners))
	for _, l := range d.listeners {
		listeners = append(listeners, l)
	}
	d.mu.Unlock()

	for _, l := range listeners {
		l(active)
	}
}
