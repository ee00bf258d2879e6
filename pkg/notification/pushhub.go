package notification

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	pushWriteWait  = 10 * time.Second
	pushPongWait   = 90 * time.Second
	pushPingPeriod = 60 * time.Second
	pushQueueSize  = 16
)

var ErrHubClosed = errors.New("push hub closed")

var pushUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// CORS is enforced by the HTTP middleware
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type pushSession struct {
	userID string
	conn   *websocket.Conn
	send   chan interface{}
	done   chan struct{}
	once   sync.Once
}

func (s *pushSession) close() {
	s.once.Do(func() {
		close(s.done)
		s.conn.Close()
	})
}

// PushHub keeps the live websocket sessions of each user and implements PushSender
type PushHub struct {
	mu       sync.Mutex
	sessions map[string]map[*pushSession]struct{}
	closed   bool
}

func NewPushHub() *PushHub {
	return &PushHub{sessions: make(map[string]map[*pushSession]struct{})}
}

func (h *PushHub) add(s *pushSession) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	if h.sessions[s.userID] == nil {
		h.sessions[s.userID] = make(map[*pushSession]struct{})
	}
	h.sessions[s.userID][s] = struct{}{}
	return true
}

func (h *PushHub) remove(s *pushSession) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.sessions[s.userID]; ok {
		delete(set, s)
		if len(set) == 0 {
			delete(h.sessions, s.userID)
		}
	}
}

// ServeWS upgrades the request and holds the session until the client goes
// away. The caller has already authenticated userID.
func (h *PushHub) ServeWS(w http.ResponseWriter, r *http.Request, userID string) {
	conn, err := pushUpgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("Websocket upgrade failed", "userId", userID, "err", err)
		return
	}

	s := &pushSession{
		userID: userID,
		conn:   conn,
		send:   make(chan interface{}, pushQueueSize),
		done:   make(chan struct{}),
	}
	if !h.add(s) {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"), time.Now().Add(pushWriteWait))
		conn.Close()
		return
	}
	slog.Info("Push session opened", "userId", userID)

	defer func() {
		h.remove(s)
		s.close()
		slog.Info("Push session closed", "userId", userID)
	}()

	go s.writeLoop()

	// Clients only send pongs and close frames
	conn.SetReadLimit(4 * 1024)
	_ = conn.SetReadDeadline(time.Now().Add(pushPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pushPongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *pushSession) writeLoop() {
	ticker := time.NewTicker(pushPingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case msg := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(pushWriteWait))
			if err := s.conn.WriteJSON(msg); err != nil {
				s.close()
				return
			}
		case <-ticker.C:
			if err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(pushWriteWait)); err != nil {
				s.close()
				return
			}
		}
	}
}

// Push queues payload on every session of the user. Sessions with a full
// queue are skipped and not counted.
func (h *PushHub) Push(ctx context.Context, userID string, payload interface{}) (int, error) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return 0, ErrHubClosed
	}
	targets := make([]*pushSession, 0, len(h.sessions[userID]))
	for s := range h.sessions[userID] {
		targets = append(targets, s)
	}
	h.mu.Unlock()

	delivered := 0
	for _, s := range targets {
		select {
		case <-ctx.Done():
			return delivered, ctx.Err()
		case <-s.done:
		case s.send <- payload:
			delivered++
		default:
			slog.Warn("Push session queue full, dropping message", "userId", userID)
		}
	}
	return delivered, nil
}

// Sessions returns the number of live sessions of the user
func (h *PushHub) Sessions(userID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions[userID])
}

// Close ends every session and rejects new ones
func (h *PushHub) Close() {
	h.mu.Lock()
	h.closed = true
	var all []*pushSession
	for _, set := range h.sessions {
		for s := range set {
			all = append(all, s)
		}
	}
	h.sessions = make(map[string]map[*pushSession]struct{})
	h.mu.Unlock()

	for _, s := range all {
		_ = s.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"), time.Now().Add(pushWriteWait))
		s.close()
	}
}
