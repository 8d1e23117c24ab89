package memory

import (
	"sync"

	"quiz-match-service/internal/app"
)

// MatchRegistry is an in-memory implementation of app.MatchRegistry.
type MatchRegistry struct {
	mu      sync.RWMutex
	matches map[string]*app.Match
}

func NewMatchRegistry() *MatchRegistry {
	return &MatchRegistry{
		matches: make(map[string]*app.Match),
	}
}

func (r *MatchRegistry) Insert(m *app.Match) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.matches[m.ID()] = m
}

func (r *MatchRegistry) Get(id string) (*app.Match, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	match, ok := r.matches[id]
	return match, ok
}

func (r *MatchRegistry) Exists(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.matches[id]
	return ok
}

func (r *MatchRegistry) List() []*app.Match {
	r.mu.RLock()
	defer r.mu.RUnlock()
	matches := make([]*app.Match, 0, len(r.matches))
	for _, match := range r.matches {
		matches = append(matches, match)
	}
	return matches
}

func (r *MatchRegistry) Delete(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.matches, id)
}
