package core

import (
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// Session is the per-session route cache: the exclusive owner of every
// RouteCandidate and of the single current SelectionResult. It is an
// explicitly passed object, never ambient process state, so independent
// planning sessions coexist without interference.
//
// All access goes through these methods; a single RWMutex gives one
// writer at a time and consistent snapshots for readers. The generation
// counter ties selection results to the candidate set they were computed
// from.
type Session struct {
	mu sync.RWMutex

	id         string
	routes     map[string]*RouteCandidate
	order      []string
	selection  *SelectionResult
	generation uint64
	seq        int
}

// NewSession creates an empty session cache with a fresh session ID.
func NewSession() *Session {
	return &Session{
		id:     uuid.NewString(),
		routes: make(map[string]*RouteCandidate),
	}
}

// ID returns the session identifier surfaced in responses and logs.
func (s *Session) ID() string { return s.id }

// Insert assigns deterministic sequential IDs to the candidates, stores
// them, and bumps the cache generation. IDs are stable within the
// session: route-1, route-2, ... in insertion order.
func (s *Session) Insert(candidates []*RouteCandidate) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(candidates))
	for _, cand := range candidates {
		s.seq++
		cand.ID = fmt.Sprintf("route-%d", s.seq)
		s.routes[cand.ID] = cand
		s.order = append(s.order, cand.ID)
		ids = append(ids, cand.ID)
	}
	s.generation++
	return ids
}

// Get returns one cached candidate.
func (s *Session) Get(id string) (*RouteCandidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cand, ok := s.routes[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownRouteID, id)
	}
	return cand, nil
}

// Routes resolves the requested ids, or returns every cached candidate in
// insertion order when ids is empty. A single unknown id fails the whole
// call.
func (s *Session) Routes(ids []string) ([]*RouteCandidate, error) {
	routes, _, err := s.RoutesWithGeneration(ids)
	return routes, err
}

// RoutesWithGeneration resolves ids the way Routes does and additionally
// reports the cache generation the snapshot was taken at, both read under
// the same lock acquisition. Selection stamps this generation on its
// result so a later export can tell whether the candidate set has moved
// underneath it.
func (s *Session) RoutesWithGeneration(ids []string) ([]*RouteCandidate, uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(ids) == 0 {
		ids = s.order
	}
	out := make([]*RouteCandidate, 0, len(ids))
	var missing []string
	for _, id := range ids {
		cand, ok := s.routes[id]
		if !ok {
			missing = append(missing, id)
			continue
		}
		out = append(out, cand)
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, 0, fmt.Errorf("%w: %v", ErrUnknownRouteID, missing)
	}
	return out, s.generation, nil
}

// Len returns the number of cached candidates.
func (s *Session) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.routes)
}

// Generation returns the current cache generation.
func (s *Session) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}

// SetSelection stores the selection result, overwriting any previous one.
// Exactly one selection exists at a time.
func (s *Session) SetSelection(result *SelectionResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selection = result
}

// Selection returns the current selection result, if any.
func (s *Session) Selection() (*SelectionResult, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.selection == nil {
		return nil, false
	}
	return s.selection, true
}
