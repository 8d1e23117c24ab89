package app

import (
	"sort"
	"sync"
	"time"

	"quiz-match-service/internal/domain"
)

// Conn is one outbound delivery path to a connected client. Send must never
// block on a slow peer; a returned error marks the connection dead and the
// match drops it from its records.
type Conn interface {
	Send(event any) error
	Close() error
}

// Rules holds the tunable scoring and anti-abuse constants for a match.
type Rules struct {
	Cooldown        time.Duration
	StreakBonus     int
	MaxMultiplier   int
	EnforceDeadline bool
	DeadlineGrace   time.Duration
}

// DefaultRules mirrors the production defaults: 1s answer cooldown, +1 streak
// bonus from the second consecutive correct answer, client multipliers capped
// at 2, and late answers rejected 2s past the question's time limit.
func DefaultRules() Rules {
	return Rules{
		Cooldown:        time.Second,
		StreakBonus:     1,
		MaxMultiplier:   2,
		EnforceDeadline: true,
		DeadlineGrace:   2 * time.Second,
	}
}

// playerSession tracks one participant's score, streak, and live connection.
// conn is nil while the player is not connected; a reconnect overwrites it.
type playerSession struct {
	username           string
	score              int
	streak             int
	lastAnswerAccepted time.Time
	conn               Conn
}

// Match is one live question-and-answer session. currentQuestion is -1 in the
// lobby, a valid index while a question is active, and len(questions) or more
// once the match has ended. All mutation goes through the match mutex.
type Match struct {
	id             string
	subject        string
	yearLevel      string
	teacherCreated bool
	questions      []domain.Question
	rules          Rules
	createdAt      time.Time
	now            func() time.Time

	mu                sync.Mutex
	currentQuestion   int
	questionStartedAt time.Time
	players           map[string]*playerSession
	spectators        []Conn
	answerLog         map[int]map[string]domain.AnswerRecord
}

// NewMatch is exported for infrastructure layers that need to seed matches.
func NewMatch(id string, spec domain.MatchSpec, rules Rules) *Match {
	return newMatch(id, spec, rules, time.Now)
}

func newMatch(id string, spec domain.MatchSpec, rules Rules, now func() time.Time) *Match {
	questions := make([]domain.Question, len(spec.Questions))
	copy(questions, spec.Questions)
	for i := range questions {
		if questions[i].Marks <= 0 {
			questions[i].Marks = 1
		}
		if questions[i].TimeLimitSeconds <= 0 {
			questions[i].TimeLimitSeconds = 30
		}
	}
	return &Match{
		id:              id,
		subject:         spec.Subject,
		yearLevel:       spec.YearLevel,
		teacherCreated:  spec.TeacherCreated,
		questions:       questions,
		rules:           rules,
		createdAt:       now(),
		now:             now,
		currentQuestion: -1,
		players:         make(map[string]*playerSession),
		answerLog:       make(map[int]map[string]domain.AnswerRecord),
	}
}

// ID returns the match identifier.
func (m *Match) ID() string { return m.id }

// CreatedAt returns the match creation time.
func (m *Match) CreatedAt() time.Time { return m.createdAt }

// Info returns the static match metadata shown to joining players.
func (m *Match) Info() domain.JoinInfo {
	return domain.JoinInfo{
		Subject:        m.subject,
		YearLevel:      m.yearLevel,
		TeacherCreated: m.teacherCreated,
	}
}

// Summary returns the lobby view of the match.
func (m *Match) Summary() domain.MatchSummary {
	m.mu.Lock()
	defer m.mu.Unlock()

	players := make([]string, 0, len(m.players))
	for username := range m.players {
		players = append(players, username)
	}
	sort.Strings(players)
	return domain.MatchSummary{
		MatchID:        m.id,
		Subject:        m.subject,
		YearLevel:      m.yearLevel,
		Players:        players,
		SpectatorCount: len(m.spectators),
	}
}

// Join registers a player session for username. Rejoining an existing
// username keeps the session's score and streak intact. Currently-connected
// players other than the joiner are notified.
func (m *Match) Join(username string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.players[username]; !ok {
		m.players[username] = &playerSession{username: username}
	}
	event := domain.UserJoinedEvent{Type: "user_joined", User: username}
	for name, player := range m.players {
		if name == username || player.conn == nil {
			continue
		}
		m.deliverToPlayerLocked(player, event)
	}
}

// Attach binds conn to the match and returns the assigned role. A known
// username becomes (or resumes) a player, overwriting any prior connection;
// anyone else joins as a spectator.
func (m *Match) Attach(username string, conn Conn) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	if player, ok := m.players[username]; ok {
		player.conn = conn
		return domain.RolePlayer
	}
	m.spectators = append(m.spectators, conn)
	return domain.RoleSpectator
}

// Detach clears a player's connection on disconnect, or removes conn from the
// spectator set when username is not a player. Play continues either way.
func (m *Match) Detach(username string, conn Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if player, ok := m.players[username]; ok {
		if player.conn == conn {
			player.conn = nil
		}
		return
	}
	m.removeSpectatorLocked(conn)
}

// Start begins the match from the lobby: question index moves to 0 and the
// first question is broadcast. Outside the lobby it is rejected with a
// targeted error.
func (m *Match) Start(conn Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.currentQuestion != -1 {
		sendDirect(conn, domain.ErrorEvent{Type: "error", Message: "match already started"})
		return
	}
	if len(m.questions) == 0 {
		sendDirect(conn, domain.ErrorEvent{Type: "error", Message: "match has no questions"})
		return
	}
	m.currentQuestion = 0
	m.beginQuestionLocked()
}

// SubmitAnswer applies the scoring rules for one submission while a question
// is active. Rejections (cooldown, deadline, wrong state) go to the
// submitting connection only and leave all state untouched.
func (m *Match) SubmitAnswer(username, answer string, multiplier int, conn Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.currentQuestion < 0 || m.currentQuestion >= len(m.questions) {
		sendDirect(conn, domain.ErrorEvent{Type: "error", Message: "no active question"})
		return
	}
	player, ok := m.players[username]
	if !ok {
		sendDirect(conn, domain.ErrorEvent{Type: "error", Message: "not a player in this match"})
		return
	}

	now := m.now()
	if now.Sub(player.lastAnswerAccepted) < m.rules.Cooldown {
		sendDirect(conn, domain.ErrorEvent{Type: "error", Message: "Answer too fast. Cheating suspected."})
		return
	}

	question := m.questions[m.currentQuestion]
	if m.rules.EnforceDeadline {
		deadline := m.questionStartedAt.
			Add(time.Duration(question.TimeLimitSeconds) * time.Second).
			Add(m.rules.DeadlineGrace)
		if now.After(deadline) {
			sendDirect(conn, domain.ErrorEvent{Type: "error", Message: "time is up for this question"})
			return
		}
	}

	player.lastAnswerAccepted = now

	correct := answer == question.Answer
	if correct {
		player.streak++
		bonus := 0
		if player.streak >= 2 {
			bonus = m.rules.StreakBonus
		}
		player.score += question.Marks*clampMultiplier(multiplier, m.rules.MaxMultiplier) + bonus
	} else {
		player.streak = 0
	}

	log := m.answerLog[m.currentQuestion]
	if log == nil {
		log = make(map[string]domain.AnswerRecord)
		m.answerLog[m.currentQuestion] = log
	}
	log[username] = domain.AnswerRecord{Answer: answer, Correct: correct}

	sendDirect(conn, domain.AnswerResultEvent{
		Type:      "answer_result",
		Correct:   correct,
		Score:     player.score,
		Streak:    player.streak,
		AnswerLog: copyLog(log),
	})
	m.broadcastLocked(domain.LeaderboardEvent{Type: "leaderboard", Leaderboard: m.leaderboardLocked()})
}

// NextQuestion advances the match. Moving past the last question ends the
// match with a single end broadcast; repeated calls after that are rejected.
func (m *Match) NextQuestion(conn Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.currentQuestion < 0 {
		sendDirect(conn, domain.ErrorEvent{Type: "error", Message: "match not started"})
		return
	}
	if m.currentQuestion >= len(m.questions) {
		sendDirect(conn, domain.ErrorEvent{Type: "error", Message: "match already ended"})
		return
	}
	m.currentQuestion++
	if m.currentQuestion >= len(m.questions) {
		m.broadcastLocked(domain.EndEvent{
			Type:        "end",
			Scores:      m.scoresLocked(),
			Leaderboard: m.leaderboardLocked(),
		})
		return
	}
	m.beginQuestionLocked()
}

// Leaderboard returns the current ranking, score descending with username
// ascending as the tie-break.
func (m *Match) Leaderboard() []domain.LeaderboardEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.leaderboardLocked()
}

// Broadcast delivers event to every connected player and spectator.
func (m *Match) Broadcast(event any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.broadcastLocked(event)
}

// CloseConnections closes and clears every connection; used by the reaper
// when the match expires.
func (m *Match) CloseConnections() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, player := range m.players {
		if player.conn != nil {
			_ = player.conn.Close()
			player.conn = nil
		}
	}
	for _, conn := range m.spectators {
		_ = conn.Close()
	}
	m.spectators = nil
}

func (m *Match) beginQuestionLocked() {
	question := m.questions[m.currentQuestion]
	m.questionStartedAt = m.now()
	m.answerLog[m.currentQuestion] = make(map[string]domain.AnswerRecord)
	m.broadcastLocked(domain.QuestionEvent{
		Type:      "question",
		Data:      question,
		Number:    m.currentQuestion + 1,
		TimeLimit: question.TimeLimitSeconds,
	})
}

// broadcastLocked is best-effort per recipient: a failed send never aborts
// delivery to the rest, but it does drop the failing connection from the
// match records.
func (m *Match) broadcastLocked(event any) {
	for _, player := range m.players {
		if player.conn == nil {
			continue
		}
		m.deliverToPlayerLocked(player, event)
	}
	alive := m.spectators[:0]
	for _, conn := range m.spectators {
		if err := conn.Send(event); err != nil {
			_ = conn.Close()
			continue
		}
		alive = append(alive, conn)
	}
	m.spectators = alive
}

func (m *Match) deliverToPlayerLocked(player *playerSession, event any) {
	if err := player.conn.Send(event); err != nil {
		_ = player.conn.Close()
		player.conn = nil
	}
}

func (m *Match) removeSpectatorLocked(conn Conn) {
	for i, c := range m.spectators {
		if c == conn {
			m.spectators = append(m.spectators[:i], m.spectators[i+1:]...)
			return
		}
	}
}

func (m *Match) leaderboardLocked() []domain.LeaderboardEntry {
	entries := make([]domain.LeaderboardEntry, 0, len(m.players))
	for _, player := range m.players {
		entries = append(entries, domain.LeaderboardEntry{Username: player.username, Score: player.score})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		return entries[i].Username < entries[j].Username
	})
	return entries
}

func (m *Match) scoresLocked() map[string]int {
	scores := make(map[string]int, len(m.players))
	for username, player := range m.players {
		scores[username] = player.score
	}
	return scores
}

// sendDirect delivers to exactly one recipient, swallowing failure.
func sendDirect(conn Conn, event any) {
	if conn == nil {
		return
	}
	_ = conn.Send(event)
}

func clampMultiplier(multiplier, max int) int {
	if multiplier < 1 {
		return 1
	}
	if multiplier > max {
		return max
	}
	return multiplier
}

func copyLog(log map[string]domain.AnswerRecord) map[string]domain.AnswerRecord {
	out := make(map[string]domain.AnswerRecord, len(log))
	for username, record := range log {
		out[username] = record
	}
	return out
}
