// Package connectivity tells the session layer whether the identity
// backends can be reached.
//
// Monitor probes a set of Pingers on a ticker and flips between online and
// offline; subscribers get the new state on every change. Manual is a
// settable source for tests and for forcing offline mode from the CLI.
package connectivity

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmitrijs2005/bizkeeper/internal/logging"
)

// Checker is what the session layer consumes.
type Checker interface {
	IsOnline() bool
}

// Source is a Checker that also pushes changes.
type Source interface {
	Checker
	Subscribe() (<-chan bool, func())
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type PingerFunc func(ctx context.Context) error

func (f PingerFunc) Ping(ctx context.Context) error { return f(ctx) }

type Monitor struct {
	pingers  []Pinger
	interval time.Duration
	timeout  time.Duration
	log      logging.Logger

	online atomic.Bool
	subs   subscribers
}

// NewMonitor starts in the offline state; Run probes once before waiting for
// the first tick.
func NewMonitor(interval, timeout time.Duration, log logging.Logger, pingers ...Pinger) *Monitor {
	if log == nil {
		log = logging.Nop()
	}
	return &Monitor{pingers: pingers, interval: interval, timeout: timeout, log: log}
}

func (m *Monitor) IsOnline() bool {
	return m.online.Load()
}

func (m *Monitor) Subscribe() (<-chan bool, func()) {
	return m.subs.add()
}

// Check probes the pingers once and updates the state. The device counts as
// online when any pinger answers.
func (m *Monitor) Check(ctx context.Context) bool {
	online := false
	for _, p := range m.pingers {
		pctx, cancel := context.WithTimeout(ctx, m.timeout)
		err := p.Ping(pctx)
		cancel()
		if err == nil {
			online = true
			break
		}
		m.log.Debug(ctx, "connectivity probe failed", "error", err)
	}
	m.set(ctx, online)
	return online
}

// Run probes until ctx is done.
func (m *Monitor) Run(ctx context.Context) {
	m.Check(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.Check(ctx)
		case <-ctx.Done():
			m.subs.closeAll()
			return
		}
	}
}

func (m *Monitor) set(ctx context.Context, online bool) {
	if m.online.Swap(online) == online {
		return
	}
	if online {
		m.log.Info(ctx, "switched to online mode")
	} else {
		m.log.Info(ctx, "switched to offline mode")
	}
	m.subs.publish(online)
}

// Manual is a Source whose state is set by hand.
type Manual struct {
	online atomic.Bool
	subs   subscribers
}

func NewManual(online bool) *Manual {
	m := &Manual{}
	m.online.Store(online)
	return m
}

func (m *Manual) IsOnline() bool { return m.online.Load() }

func (m *Manual) Subscribe() (<-chan bool, func()) { return m.subs.add() }

func (m *Manual) Set(online bool) {
	if m.online.Swap(online) != online {
		m.subs.publish(online)
	}
}

// subscribers fans state changes out to buffered channels. A slow reader
// only ever sees the latest state.
type subscribers struct {
	mu     sync.Mutex
	next   int
	chans  map[int]chan bool
	closed bool
}

func (s *subscribers) add() (<-chan bool, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan bool, 1)
	if s.closed {
		close(ch)
		return ch, func() {}
	}
	if s.chans == nil {
		s.chans = map[int]chan bool{}
	}
	id := s.next
	s.next++
	s.chans[id] = ch

	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if c, ok := s.chans[id]; ok {
			delete(s.chans, id)
			close(c)
		}
	}
}

func (s *subscribers) publish(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.chans {
		select {
		case <-ch:
		default:
		}
		ch <- v
	}
}

func (s *subscribers) closeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, ch := range s.chans {
		delete(s.chans, id)
		close(ch)
	}
	s.closed = true
}
