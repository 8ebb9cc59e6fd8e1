package services

import (
	"sync"

	"github.com/dmitrijs2005/bizkeeper/internal/client/models"
)

// Snapshot is the published session state.
//
// Loading is true while any operation runs or waits for its turn; it means
// "no decision yet", not "signed out".
type Snapshot struct {
	Current          *models.User
	Loading          bool
	Offline          bool
	TwoFactorPending bool
}

// action mutates the state; only SessionManager creates them.
type action func(*state)

type state struct {
	current          *models.User
	inFlight         int
	offline          bool
	twoFactorPending bool
}

func (s *state) snapshot() Snapshot {
	return Snapshot{
		Current:          s.current.Clone(),
		Loading:          s.inFlight > 0,
		Offline:          s.offline,
		TwoFactorPending: s.twoFactorPending,
	}
}

// StateStore holds the single session state. Readers take snapshots or
// subscribe; writes go through dispatch.
type StateStore struct {
	// dispatchMu orders notifications the same way as the writes.
	dispatchMu sync.Mutex

	mu        sync.Mutex
	st        state
	listeners map[int]func(Snapshot)
	nextID    int
}

func NewStateStore() *StateStore {
	return &StateStore{listeners: map[int]func(Snapshot){}}
}

func (s *StateStore) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.snapshot()
}

// Subscribe registers fn to be called with every new snapshot. Listeners run
// synchronously, in dispatch order, and may call Snapshot but must not start
// session operations.
func (s *StateStore) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	s.listeners[id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

func (s *StateStore) dispatch(actions ...action) {
	s.dispatchMu.Lock()
	defer s.dispatchMu.Unlock()

	s.mu.Lock()
	for _, a := range actions {
		a(&s.st)
	}
	snap := s.st.snapshot()
	listeners := make([]func(Snapshot), 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	s.mu.Unlock()

	for _, l := range listeners {
		l(snap)
	}
}

func (s *StateStore) current() *models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.current.Clone()
}

func setUser(u *models.User) action {
	return func(s *state) { s.current = u.Clone() }
}

func setTwoFactorPending(v bool) action {
	return func(s *state) { s.twoFactorPending = v }
}

func setOffline(v bool) action {
	return func(s *state) { s.offline = v }
}

func beginOperation() action {
	return func(s *state) { s.inFlight++ }
}

func endOperation() action {
	return func(s *state) {
		if s.inFlight > 0 {
			s.inFlight--
		}
	}
}

// clearSession signs the user out.
func clearSession() action {
	return func(s *state) {
		s.current = nil
		s.twoFactorPending = false
	}
}
