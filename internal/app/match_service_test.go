package app_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"quiz-match-service/internal/app"
	"quiz-match-service/internal/domain"
	"quiz-match-service/internal/infra/memory"
)

type recordingConn struct {
	mu     sync.Mutex
	events []any
	closed bool
}

func (c *recordingConn) Send(event any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
	return nil
}

func (c *recordingConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *recordingConn) all() []any {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]any, len(c.events))
	copy(out, c.events)
	return out
}

type serviceClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *serviceClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *serviceClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newTestService(clock *serviceClock) *app.MatchService {
	sets := memory.NewQuestionSetCache(memory.NewStaticQuestionSetLoader([]domain.QuestionSet{
		{
			Subject:   "maths",
			YearLevel: "7",
			Questions: []domain.Question{
				{
					Text:             "What is 6 x 7?",
					Options:          []string{"40", "42", "44", "48"},
					Answer:           "42",
					Marks:            2,
					TimeLimitSeconds: 20,
				},
			},
		},
	}), 5*time.Minute)
	return app.NewMatchServiceWithClock(memory.NewMatchRegistry(), sets, app.DefaultRules(), 10*time.Minute, clock.now)
}

func validSpec() domain.MatchSpec {
	return domain.MatchSpec{
		Questions: []domain.Question{{
			Text:    "Pick B",
			Options: []string{"A", "B", "C", "D"},
			Answer:  "B",
			Marks:   1,
		}},
		Subject:   "maths",
		YearLevel: "7",
	}
}

func TestCreateMatchValidation(t *testing.T) {
	ctx := context.Background()
	clock := &serviceClock{t: time.Unix(1_700_000_000, 0)}
	service := newTestService(clock)

	cases := []struct {
		name string
		spec domain.MatchSpec
	}{
		{"no questions", domain.MatchSpec{Subject: "maths", YearLevel: "7"}},
		{"no subject", domain.MatchSpec{Questions: validSpec().Questions, YearLevel: "7"}},
		{"no year level", domain.MatchSpec{Questions: validSpec().Questions, Subject: "maths"}},
	}
	for _, tc := range cases {
		if _, err := service.CreateMatch(ctx, tc.spec); !errors.Is(err, domain.ErrMissingFields) {
			t.Fatalf("%s: expected ErrMissingFields, got %v", tc.name, err)
		}
	}

	id, err := service.CreateMatch(ctx, validSpec())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if id == "" {
		t.Fatalf("expected a match id")
	}
}

func TestJoinMatchNotifiesConnectedPlayers(t *testing.T) {
	ctx := context.Background()
	clock := &serviceClock{t: time.Unix(1_700_000_000, 0)}
	service := newTestService(clock)

	id, err := service.CreateMatch(ctx, validSpec())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	info, err := service.JoinMatch(id, "alice")
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if info.Subject != "maths" || info.YearLevel != "7" {
		t.Fatalf("unexpected join info %+v", info)
	}

	conn := &recordingConn{}
	role, err := service.Attach(id, "alice", conn)
	if err != nil || role != domain.RolePlayer {
		t.Fatalf("attach: role=%s err=%v", role, err)
	}

	if _, err := service.JoinMatch(id, "bob"); err != nil {
		t.Fatalf("join bob: %v", err)
	}

	joined := false
	for _, e := range conn.all() {
		if ev, ok := e.(domain.UserJoinedEvent); ok && ev.User == "bob" {
			joined = true
		}
	}
	if !joined {
		t.Fatalf("alice was not notified of bob joining")
	}

	if _, err := service.JoinMatch("nope", "carol"); !errors.Is(err, domain.ErrMatchNotFound) {
		t.Fatalf("expected ErrMatchNotFound, got %v", err)
	}
}

func TestQueueForMatchPairsAndDrainsPool(t *testing.T) {
	ctx := context.Background()
	clock := &serviceClock{t: time.Unix(1_700_000_000, 0)}
	service := newTestService(clock)

	id, status := service.QueueForMatch(ctx, domain.QueueEntry{Username: "alice", Subject: "maths", YearLevel: "7"})
	if status != app.StatusQueued || id != "" {
		t.Fatalf("first call: want queued, got %s/%s", status, id)
	}

	id, status = service.QueueForMatch(ctx, domain.QueueEntry{Username: "bob", Subject: "maths", YearLevel: "7"})
	if status != app.StatusMatched || id == "" {
		t.Fatalf("second call: want matched with id, got %s/%s", status, id)
	}

	// Both entries left the pool, so a third identical request queues again.
	if _, status := service.QueueForMatch(ctx, domain.QueueEntry{Username: "carol", Subject: "maths", YearLevel: "7"}); status != app.StatusQueued {
		t.Fatalf("pool was not drained after pairing")
	}

	conn := &recordingConn{}
	role, err := service.Attach(id, "alice", conn)
	if err != nil || role != domain.RolePlayer {
		t.Fatalf("alice should be a player in the paired match, role=%s err=%v", role, err)
	}
}

func TestQueueForMatchUsesStoredQuestionSet(t *testing.T) {
	ctx := context.Background()
	clock := &serviceClock{t: time.Unix(1_700_000_000, 0)}
	service := newTestService(clock)

	service.QueueForMatch(ctx, domain.QueueEntry{Username: "alice", Subject: "maths", YearLevel: "7"})
	id, status := service.QueueForMatch(ctx, domain.QueueEntry{Username: "bob", Subject: "maths", YearLevel: "7"})
	if status != app.StatusMatched {
		t.Fatalf("expected matched, got %s", status)
	}

	conn := &recordingConn{}
	if _, err := service.Attach(id, "alice", conn); err != nil {
		t.Fatalf("attach: %v", err)
	}
	if err := service.StartMatch(id, conn); err != nil {
		t.Fatalf("start: %v", err)
	}

	var question domain.QuestionEvent
	found := false
	for _, e := range conn.all() {
		if ev, ok := e.(domain.QuestionEvent); ok {
			question = ev
			found = true
		}
	}
	if !found {
		t.Fatalf("no question broadcast after start")
	}
	if question.Data.Text != "What is 6 x 7?" {
		t.Fatalf("expected the stored question set, got %+v", question.Data)
	}

	// Unknown criteria fall back to the placeholder set.
	service.QueueForMatch(ctx, domain.QueueEntry{Username: "dan", Subject: "history", YearLevel: "9"})
	id2, status := service.QueueForMatch(ctx, domain.QueueEntry{Username: "eve", Subject: "history", YearLevel: "9"})
	if status != app.StatusMatched {
		t.Fatalf("expected matched, got %s", status)
	}
	conn2 := &recordingConn{}
	if _, err := service.Attach(id2, "dan", conn2); err != nil {
		t.Fatalf("attach: %v", err)
	}
	if err := service.StartMatch(id2, conn2); err != nil {
		t.Fatalf("start: %v", err)
	}
	for _, e := range conn2.all() {
		if ev, ok := e.(domain.QuestionEvent); ok && ev.Data.Text != "Placeholder question?" {
			t.Fatalf("expected placeholder question, got %+v", ev.Data)
		}
	}
}

func TestListActiveMatchesFiltersExpired(t *testing.T) {
	ctx := context.Background()
	clock := &serviceClock{t: time.Unix(1_700_000_000, 0)}
	service := newTestService(clock)

	id, err := service.CreateMatch(ctx, validSpec())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := service.JoinMatch(id, "alice"); err != nil {
		t.Fatalf("join: %v", err)
	}

	summaries := service.ListActiveMatches(10 * time.Minute)
	if len(summaries) != 1 || summaries[0].MatchID != id {
		t.Fatalf("expected one active match, got %+v", summaries)
	}
	if len(summaries[0].Players) != 1 || summaries[0].Players[0] != "alice" {
		t.Fatalf("unexpected summary %+v", summaries[0])
	}

	clock.advance(11 * time.Minute)
	if summaries := service.ListActiveMatches(10 * time.Minute); len(summaries) != 0 {
		t.Fatalf("expired match must be filtered from listings, got %+v", summaries)
	}

	// Filtering is not deletion: the match is still reachable.
	if _, err := service.JoinMatch(id, "bob"); err != nil {
		t.Fatalf("expired match should still exist until reaped: %v", err)
	}
}

func TestReapExpiredClosesConnections(t *testing.T) {
	ctx := context.Background()
	clock := &serviceClock{t: time.Unix(1_700_000_000, 0)}
	service := newTestService(clock)

	id, err := service.CreateMatch(ctx, validSpec())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := service.JoinMatch(id, "alice"); err != nil {
		t.Fatalf("join: %v", err)
	}
	conn := &recordingConn{}
	if _, err := service.Attach(id, "alice", conn); err != nil {
		t.Fatalf("attach: %v", err)
	}

	if reaped := service.ReapExpired(); reaped != 0 {
		t.Fatalf("fresh match must not be reaped")
	}

	clock.advance(11 * time.Minute)
	if reaped := service.ReapExpired(); reaped != 1 {
		t.Fatalf("expected one reaped match, got %d", reaped)
	}
	if !conn.closed {
		t.Fatalf("reaper must close remaining connections")
	}
	if _, err := service.Attach(id, "alice", &recordingConn{}); !errors.Is(err, domain.ErrMatchNotFound) {
		t.Fatalf("reaped match must be gone, got %v", err)
	}
}
