package server

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/voxstream/voxstream/usecase"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512 * 1024 // 512KB for audio frames
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// ErrSessionActive is returned when a second socket tries to claim a
// session that already has one.
var ErrSessionActive = errors.New("session already has an active connection")

// Hub owns the set of active sessions and the conversation pipeline
// they share. At most one socket may hold a session ID at a time.
type Hub struct {
	mu       sync.Mutex
	sessions map[string]*session

	conversation *usecase.ConversationService
	logger       *zap.Logger
}

// NewHub creates a session hub backed by conversation.
func NewHub(conversation *usecase.ConversationService, logger *zap.Logger) *Hub {
	return &Hub{
		sessions:     make(map[string]*session),
		conversation: conversation,
		logger:       logger,
	}
}

// acquire reserves sessionID for a new connection.
func (h *Hub) acquire(s *session) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.sessions[s.sessionID]; ok {
		return ErrSessionActive
	}
	h.sessions[s.sessionID] = s
	return nil
}

// release frees sessionID. Only the session that holds the reservation
// may release it.
func (h *Hub) release(s *session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if current, ok := h.sessions[s.sessionID]; ok && current == s {
		delete(h.sessions, s.sessionID)
	}
}

// ActiveSessions reports how many sessions currently hold a socket.
func (h *Hub) ActiveSessions() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}

// HandleSession upgrades the request to a WebSocket and runs the
// session until the socket closes. A session ID that already has a live
// socket is rejected with 409 before the upgrade.
func (h *Hub) HandleSession(c echo.Context, sessionID string) error {
	logger := h.logger.With(zap.String("sessionID", sessionID))

	s := &session{
		hub:       h,
		sessionID: sessionID,
		send:      make(chan writeData, 256),
		logger:    logger,
	}
	if err := h.acquire(s); err != nil {
		logger.Warn("Rejected duplicate session connection")
		return echo.NewHTTPError(http.StatusConflict, "session already connected")
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.release(s)
		logger.Error("WebSocket upgrade failed", zap.Error(err))
		return err
	}
	s.conn = conn

	logger.Info("Session connected")

	go s.writePump()
	go s.readPump()

	return nil
}
