package domain

// Connection roles.
const (
	RolePlayer    = "player"
	RoleSpectator = "spectator"
)

// ConnectedEvent confirms role assignment to a freshly attached connection.
type ConnectedEvent struct {
	Type string `json:"type"`
	User string `json:"user"`
	Role string `json:"role"`
}

// UserJoinedEvent tells connected players that someone joined the match.
type UserJoinedEvent struct {
	Type string `json:"type"`
	User string `json:"user"`
}

// QuestionEvent carries the active question, its 1-based display number,
// and its time limit in seconds.
type QuestionEvent struct {
	Type      string   `json:"type"`
	Data      Question `json:"data"`
	Number    int      `json:"number"`
	TimeLimit int      `json:"time_limit"`
}

// AnswerResultEvent is sent to the submitting connection only.
type AnswerResultEvent struct {
	Type      string                  `json:"type"`
	Correct   bool                    `json:"correct"`
	Score     int                     `json:"score"`
	Streak    int                     `json:"streak"`
	AnswerLog map[string]AnswerRecord `json:"answer_log"`
}

// LeaderboardEvent is broadcast to the whole match on every scoring event.
type LeaderboardEvent struct {
	Type        string             `json:"type"`
	Leaderboard []LeaderboardEntry `json:"leaderboard"`
}

// EndEvent carries final scores when the match runs out of questions.
type EndEvent struct {
	Type        string             `json:"type"`
	Scores      map[string]int     `json:"scores"`
	Leaderboard []LeaderboardEntry `json:"leaderboard"`
}

// ErrorEvent is a non-fatal, targeted rejection.
type ErrorEvent struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}
