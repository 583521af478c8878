package state

import (
	"slices"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/danmuck/geoctl/internal/events"
)

// Store owns the state and applies events under its lock.
type Store struct {
	mu       sync.RWMutex
	snap     Snapshot
	watchers []func(events.Event)
}

// NewStore seeds a store with initial.
func NewStore(initial Snapshot) *Store {
	return &Store{snap: initial.Clone()}
}

// Snapshot returns a deep copy of the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.Clone()
}

// Apply reduces ev into the state, then notifies watchers outside the lock.
func (s *Store) Apply(ev events.Event) {
	s.mu.Lock()
	s.snap = Reduce(s.snap, ev)
	watchers := slices.Clone(s.watchers)
	s.mu.Unlock()

	log.Trace().Str("event", ev.Name()).Msg("state.Store.Apply")
	for _, w := range watchers {
		w(ev)
	}
}

// Update mutates the state directly. It is meant for seeding from outside
// the engine, e.g. loading a map configuration into the viewer.
func (s *Store) Update(fn func(*Snapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.snap.Clone()
	fn(&next)
	s.snap = next
}

// Watch registers fn to observe every applied event.
func (s *Store) Watch(fn func(events.Event)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.watchers = append(s.watchers, fn)
}

// Notices returns the retained notices, oldest first.
func (s *Store) Notices() []events.Notice {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]events.Notice(nil), s.snap.Notices...)
}
