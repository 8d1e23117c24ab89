package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"quiz-match-service/internal/app"
	"quiz-match-service/internal/domain"
)

// MatchHandler exposes the thin REST surface over the match service.
type MatchHandler struct {
	service     *app.MatchService
	lobbyWindow time.Duration
}

func NewMatchHandler(service *app.MatchService, lobbyWindow time.Duration) *MatchHandler {
	return &MatchHandler{service: service, lobbyWindow: lobbyWindow}
}

type createMatchRequest struct {
	Questions      []domain.Question `json:"questions"`
	Subject        string            `json:"subject"`
	YearLevel      string            `json:"year_level"`
	TeacherCreated bool              `json:"teacher_created"`
}

type joinMatchRequest struct {
	MatchID  string `json:"match_id"`
	Username string `json:"username"`
}

func (h *MatchHandler) CreateMatch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req createMatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	matchID, err := h.service.CreateMatch(r.Context(), domain.MatchSpec{
		Questions:      req.Questions,
		Subject:        req.Subject,
		YearLevel:      req.YearLevel,
		TeacherCreated: req.TeacherCreated,
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, map[string]string{"match_id": matchID})
}

func (h *MatchHandler) JoinMatch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req joinMatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	info, err := h.service.JoinMatch(req.MatchID, req.Username)
	if err != nil {
		if errors.Is(err, domain.ErrMatchNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, map[string]any{
		"message":         "Joined match successfully",
		"subject":         info.Subject,
		"year_level":      info.YearLevel,
		"teacher_created": info.TeacherCreated,
	})
}

func (h *MatchHandler) QueueMatch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var entry domain.QueueEntry
	if err := json.NewDecoder(r.Body).Decode(&entry); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	matchID, status := h.service.QueueForMatch(r.Context(), entry)
	if status == app.StatusMatched {
		writeJSON(w, map[string]string{"match_id": matchID, "message": "Auto-matched"})
		return
	}
	writeJSON(w, map[string]string{"message": "Added to matchmaking queue"})
}

func (h *MatchHandler) MatchLobby(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, h.service.ListActiveMatches(h.lobbyWindow))
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
