package app

import (
	"context"
	"time"

	"github.com/google/uuid"

	"quiz-match-service/internal/domain"
)

// MatchRegistry stores live matches. Implementations must be safe for
// concurrent use; cross-match operations share no other state.
type MatchRegistry interface {
	Insert(m *Match)
	Get(id string) (*Match, bool)
	Exists(id string) bool
	List() []*Match
	Delete(id string)
}

// QuestionSetRepository loads stored question content, typically through a
// cache in front of a backing store.
type QuestionSetRepository interface {
	GetQuestionSet(ctx context.Context, subject, yearLevel string) (domain.QuestionSet, error)
}

// Matchmaking statuses returned by QueueForMatch.
const (
	StatusMatched = "matched"
	StatusQueued  = "queued"
)

const matchIDLength = 8

// MatchService owns the match registry, the matchmaking pool, and the match
// lifecycle. It is initialized once at process start and injected into the
// transport layer.
type MatchService struct {
	registry MatchRegistry
	sets     QuestionSetRepository
	pool     *Pool
	rules    Rules
	timeout  time.Duration
	now      func() time.Time
}

func NewMatchService(registry MatchRegistry, sets QuestionSetRepository, rules Rules, timeout time.Duration) *MatchService {
	return NewMatchServiceWithClock(registry, sets, rules, timeout, time.Now)
}

// NewMatchServiceWithClock allows deterministic timestamps in tests.
func NewMatchServiceWithClock(registry MatchRegistry, sets QuestionSetRepository, rules Rules, timeout time.Duration, now func() time.Time) *MatchService {
	return &MatchService{
		registry: registry,
		sets:     sets,
		pool:     NewPool(),
		rules:    rules,
		timeout:  timeout,
		now:      now,
	}
}

// CreateMatch validates spec and inserts a new match in the lobby state.
func (s *MatchService) CreateMatch(_ context.Context, spec domain.MatchSpec) (string, error) {
	if len(spec.Questions) == 0 || spec.Subject == "" || spec.YearLevel == "" {
		return "", domain.ErrMissingFields
	}
	match := newMatch(s.newMatchID(), spec, s.rules, s.now)
	s.registry.Insert(match)
	return match.ID(), nil
}

// JoinMatch registers username as a player and notifies everyone already
// connected to the match.
func (s *MatchService) JoinMatch(matchID, username string) (domain.JoinInfo, error) {
	match, ok := s.registry.Get(matchID)
	if !ok {
		return domain.JoinInfo{}, domain.ErrMatchNotFound
	}
	match.Join(username)
	return match.Info(), nil
}

// QueueForMatch enqueues a pairing request. When another request with the
// same subject and year level is waiting, both leave the pool and share a new
// match seeded with the stored question set for that subject (or the built-in
// placeholder when none exists). The partner learns the match id out-of-band
// through the lobby listing.
func (s *MatchService) QueueForMatch(ctx context.Context, entry domain.QueueEntry) (string, string) {
	partner, ok := s.pool.EnqueueAndPair(entry)
	if !ok {
		return "", StatusQueued
	}

	match := newMatch(s.newMatchID(), domain.MatchSpec{
		Questions: s.defaultQuestions(ctx, entry.Subject, entry.YearLevel),
		Subject:   entry.Subject,
		YearLevel: entry.YearLevel,
	}, s.rules, s.now)
	match.Join(entry.Username)
	match.Join(partner.Username)
	s.registry.Insert(match)
	return match.ID(), StatusMatched
}

// DequeueFromMatchmaking withdraws a pending request from the pool.
func (s *MatchService) DequeueFromMatchmaking(entry domain.QueueEntry) {
	s.pool.Remove(entry)
}

// ListActiveMatches returns summaries of matches created within activeWithin
// of now. Expired matches are only filtered from the listing, not deleted.
func (s *MatchService) ListActiveMatches(activeWithin time.Duration) []domain.MatchSummary {
	now := s.now()
	summaries := make([]domain.MatchSummary, 0)
	for _, match := range s.registry.List() {
		if now.Sub(match.CreatedAt()) >= activeWithin {
			continue
		}
		summaries = append(summaries, match.Summary())
	}
	return summaries
}

// Attach binds conn to the match and returns the assigned role.
func (s *MatchService) Attach(matchID, username string, conn Conn) (string, error) {
	match, ok := s.registry.Get(matchID)
	if !ok {
		return "", domain.ErrMatchNotFound
	}
	return match.Attach(username, conn), nil
}

// Detach clears the connection from the match on disconnect.
func (s *MatchService) Detach(matchID, username string, conn Conn) {
	if match, ok := s.registry.Get(matchID); ok {
		match.Detach(username, conn)
	}
}

// StartMatch handles the start_match action.
func (s *MatchService) StartMatch(matchID string, conn Conn) error {
	match, ok := s.registry.Get(matchID)
	if !ok {
		return domain.ErrMatchNotFound
	}
	match.Start(conn)
	return nil
}

// SubmitAnswer handles the submit_answer action.
func (s *MatchService) SubmitAnswer(matchID, username, answer string, multiplier int, conn Conn) error {
	match, ok := s.registry.Get(matchID)
	if !ok {
		return domain.ErrMatchNotFound
	}
	match.SubmitAnswer(username, answer, multiplier, conn)
	return nil
}

// NextQuestion handles the next_question action.
func (s *MatchService) NextQuestion(matchID string, conn Conn) error {
	match, ok := s.registry.Get(matchID)
	if !ok {
		return domain.ErrMatchNotFound
	}
	match.NextQuestion(conn)
	return nil
}

// ReapExpired removes matches older than the configured timeout, closing any
// connections still attached. Returns how many matches were removed.
func (s *MatchService) ReapExpired() int {
	now := s.now()
	reaped := 0
	for _, match := range s.registry.List() {
		if now.Sub(match.CreatedAt()) < s.timeout {
			continue
		}
		match.CloseConnections()
		s.registry.Delete(match.ID())
		reaped++
	}
	return reaped
}

// newMatchID derives a short token from a UUID, retrying on the rare registry
// collision and falling back to the full UUID.
func (s *MatchService) newMatchID() string {
	for i := 0; i < 5; i++ {
		id := uuid.NewString()[:matchIDLength]
		if !s.registry.Exists(id) {
			return id
		}
	}
	return uuid.NewString()
}

func (s *MatchService) defaultQuestions(ctx context.Context, subject, yearLevel string) []domain.Question {
	if s.sets != nil {
		if set, err := s.sets.GetQuestionSet(ctx, subject, yearLevel); err == nil && len(set.Questions) > 0 {
			return set.Questions
		}
	}
	return []domain.Question{{
		Text:             "Placeholder question?",
		Options:          []string{"A", "B", "C", "D"},
		Answer:           "A",
		Marks:            1,
		TimeLimitSeconds: 30,
	}}
}
