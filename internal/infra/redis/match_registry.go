package redis

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"quiz-match-service/internal/app"
)

// MatchRegistry is a Redis-aware implementation of app.MatchRegistry.
// Notes:
//   - Match state stays in a local in-memory map; the engine is single-process
//     and connections cannot be shared across instances anyway.
//   - Redis marks match liveness with a TTL key, so a lobby service on another
//     instance can see which matches exist (and could be extended to route
//     cross-instance pub/sub).
type MatchRegistry struct {
	client  *redis.Client
	ttl     time.Duration
	mu      sync.RWMutex
	matches map[string]*app.Match
}

func NewMatchRegistry(client *redis.Client, ttl time.Duration) *MatchRegistry {
	return &MatchRegistry{
		client:  client,
		ttl:     ttl,
		matches: make(map[string]*app.Match),
	}
}

func (r *MatchRegistry) Insert(m *app.Match) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.matches[m.ID()] = m
	// best-effort liveness marker
	_ = r.client.Set(context.Background(), r.key(m.ID()), "1", r.ttl).Err()
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
	if _, ok := r.matches[id]; !ok {
		return
	}
	delete(r.matches, id)
	_ = r.client.Del(context.Background(), r.key(id)).Err()
}

func (r *MatchRegistry) key(id string) string {
	return "match:live:" + id
}
