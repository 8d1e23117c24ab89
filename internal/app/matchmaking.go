package app

import (
	"sync"

	"quiz-match-service/internal/domain"
)

// Pool holds pending matchmaking requests. Pairing scans a snapshot of the
// queue and removes matched entries by identity afterwards, so a concurrent
// enqueue can neither skip nor double-match an entry.
type Pool struct {
	mu      sync.Mutex
	entries []domain.QueueEntry
}

func NewPool() *Pool {
	return &Pool{}
}

// EnqueueAndPair appends entry and looks for the first other entry with the
// same subject and year level. On a hit both entries leave the pool and the
// partner is returned; otherwise entry stays queued indefinitely.
func (p *Pool) EnqueueAndPair(entry domain.QueueEntry) (domain.QueueEntry, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.entries = append(p.entries, entry)

	matched := -1
	for i, other := range p.entries {
		if other == entry {
			continue
		}
		if other.Username == entry.Username {
			continue
		}
		if other.Subject == entry.Subject && other.YearLevel == entry.YearLevel {
			matched = i
			break
		}
	}
	if matched == -1 {
		return domain.QueueEntry{}, false
	}

	partner := p.entries[matched]
	p.removeLocked(partner)
	p.removeLocked(entry)
	return partner, true
}

// Remove withdraws the first queued entry identical to entry.
func (p *Pool) Remove(entry domain.QueueEntry) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.removeLocked(entry)
}

// Len reports how many entries are waiting.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}

func (p *Pool) removeLocked(entry domain.QueueEntry) {
	for i, e := range p.entries {
		if e == entry {
			p.entries = append(p.entries[:i], p.entries[i+1:]...)
			return
		}
	}
}
