package domain

// Question is a single multiple-choice question. Field names follow the
// client wire format.
type Question struct {
	Text             string   `json:"question"`
	Options          []string `json:"options"`
	Answer           string   `json:"answer"`
	Marks            int      `json:"marks"`
	TimeLimitSeconds int      `json:"time_limit"`
}

// QuestionSet is the stored question content for a subject and year level.
type QuestionSet struct {
	Subject   string     `json:"subject"`
	YearLevel string     `json:"year_level"`
	Questions []Question `json:"questions"`
}

// MatchSpec carries the fields required to create a match.
type MatchSpec struct {
	Questions      []Question
	Subject        string
	YearLevel      string
	TeacherCreated bool
}

// JoinInfo is returned to a player who joined a match.
type JoinInfo struct {
	Subject        string `json:"subject"`
	YearLevel      string `json:"year_level"`
	TeacherCreated bool   `json:"teacher_created"`
}

// QueueEntry is a pending matchmaking request.
type QueueEntry struct {
	Username  string `json:"username"`
	Subject   string `json:"subject"`
	YearLevel string `json:"year_level"`
}

// AnswerRecord is one player's latest submission for a question.
type AnswerRecord struct {
	Answer  string `json:"answer"`
	Correct bool   `json:"correct"`
}

// LeaderboardEntry is one row of the score ranking.
type LeaderboardEntry struct {
	Username string `json:"user"`
	Score    int    `json:"score"`
}

// MatchSummary is the lobby view of an active match.
type MatchSummary struct {
	MatchID        string   `json:"match_id"`
	Subject        string   `json:"subject"`
	YearLevel      string   `json:"year_level"`
	Players        []string `json:"players"`
	SpectatorCount int      `json:"spectators"`
}
