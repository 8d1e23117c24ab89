package http

import (
	"errors"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"quiz-match-service/internal/app"
	"quiz-match-service/internal/domain"
)

var errConnClosed = errors.New("connection closed")

type WSHandler struct {
	service  *app.MatchService
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.MatchService) *WSHandler {
	return &WSHandler{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundAction struct {
	Action     string `json:"action"`
	Answer     string `json:"answer"`
	Multiplier int    `json:"multiplier"`
}

// ServeWS upgrades the request and binds the connection to a match as either
// a player or a spectator. Unknown match ids are refused with a policy
// violation close before any role is assigned.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	matchID := r.URL.Query().Get("matchId")
	username := r.URL.Query().Get("username")
	if matchID == "" || username == "" {
		http.Error(w, "missing matchId or username", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}

	wsc := newWSConn(conn)
	role, err := h.service.Attach(matchID, username, wsc)
	if err != nil {
		msg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "match not found")
		_ = conn.WriteMessage(websocket.CloseMessage, msg)
		_ = wsc.Close()
		return
	}
	defer func() {
		h.service.Detach(matchID, username, wsc)
		_ = wsc.Close()
	}()

	_ = wsc.Send(domain.ConnectedEvent{Type: "connected", User: username, Role: role})

	if role == domain.RoleSpectator {
		// Spectators send no actions; drain until the peer goes away.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}

	for {
		var inbound inboundAction
		if err := conn.ReadJSON(&inbound); err != nil {
			return
		}
		switch inbound.Action {
		case "start_match":
			err = h.service.StartMatch(matchID, wsc)
		case "submit_answer":
			err = h.service.SubmitAnswer(matchID, username, inbound.Answer, inbound.Multiplier, wsc)
		case "next_question":
			err = h.service.NextQuestion(matchID, wsc)
		default:
			_ = wsc.Send(domain.ErrorEvent{Type: "error", Message: "unsupported action"})
			continue
		}
		if err != nil {
			// The match was reaped mid-play; nothing left to act on.
			return
		}
	}
}

// wsConn adapts a websocket connection to app.Conn. Writes go through a
// buffered channel and a single writer goroutine, so Send never blocks the
// match on a slow peer and concurrent writes cannot interleave.
type wsConn struct {
	conn *websocket.Conn
	send chan any
	done chan struct{}
	once sync.Once
}

func newWSConn(conn *websocket.Conn) *wsConn {
	w := &wsConn{
		conn: conn,
		send: make(chan any, 16),
		done: make(chan struct{}),
	}
	go w.writeLoop()
	return w
}

func (w *wsConn) writeLoop() {
	for {
		select {
		case event := <-w.send:
			if err := w.conn.WriteJSON(event); err != nil {
				log.Printf("ws write error: %v", err)
				_ = w.Close()
				return
			}
		case <-w.done:
			return
		}
	}
}

// Send queues an event for delivery. A full buffer drops the event rather
// than blocking; only a closed connection reports an error.
func (w *wsConn) Send(event any) error {
	select {
	case <-w.done:
		return errConnClosed
	default:
	}
	select {
	case w.send <- event:
		return nil
	case <-w.done:
		return errConnClosed
	default:
		return nil
	}
}

func (w *wsConn) Close() error {
	w.once.Do(func() { close(w.done) })
	return w.conn.Close()
}
