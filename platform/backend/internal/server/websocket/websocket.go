package websocket

import (
	"encoding/json"
	"net/http"
	"os"
	"strings"
	"sync"

	"rummy-platform/backend/internal/auth"
	"rummy-platform/backend/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Message types pushed to subscribers
const (
	MessageAnalysis   = "analysis"
	MessageScores     = "scores"
	MessageReset      = "reset"
	MessageSubscribed = "subscribed"
	MessageError      = "error"
)

// WSMessage represents a WebSocket message
type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// AllowedOrigins is the browser origin allowlist, read from ALLOWED_ORIGINS
var AllowedOrigins = getAllowedOrigins()

func getAllowedOrigins() []string {
	raw := os.Getenv("ALLOWED_ORIGINS")
	if raw == "" {
		return []string{"http://localhost:3000", "http://127.0.0.1:3000"}
	}

	var origins []string
	for _, origin := range strings.Split(raw, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	return origins
}

// LoadAllowedOrigins re-reads ALLOWED_ORIGINS, for callers that populate the
// environment after start-up (e.g. from a .env file)
func LoadAllowedOrigins() []string {
	AllowedOrigins = getAllowedOrigins()
	return AllowedOrigins
}

// checkOrigin accepts only exact matches; a missing Origin is rejected
func checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return false
	}
	for _, allowed := range AllowedOrigins {
		if origin == allowed {
			return true
		}
	}
	return false
}

// Upgrader configures the WebSocket upgrader
var Upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     checkOrigin,
}

// Hub fans session updates out to the clients subscribed to that session
type Hub struct {
	mu       sync.RWMutex
	sessions map[string]map[*Client]struct{}
	log      *zap.Logger
}

func NewHub(log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		sessions: make(map[string]map[*Client]struct{}),
		log:      log.With(zap.String("component", "ws_hub")),
	}
}

// Subscribe moves a client onto sessionID, leaving any previous session
func (h *Hub) Subscribe(c *Client, sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.removeLocked(c)
	c.sessionID = sessionID
	subs, ok := h.sessions[sessionID]
	if !ok {
		subs = make(map[*Client]struct{})
		h.sessions[sessionID] = subs
	}
	subs[c] = struct{}{}
}

// Unregister drops the client and closes its send channel. Safe to call more
// than once.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.removeLocked(c)
	if !c.closed {
		c.closed = true
		close(c.Send)
	}
}

func (h *Hub) removeLocked(c *Client) {
	if c.sessionID == "" {
		return
	}
	if subs, ok := h.sessions[c.sessionID]; ok {
		delete(subs, c)
		if len(subs) == 0 {
			delete(h.sessions, c.sessionID)
		}
	}
	c.sessionID = ""
}

// Broadcast sends a message to every subscriber of sessionID and returns how
// many received it. Clients with a full buffer miss the message.
func (h *Hub) Broadcast(sessionID, msgType string, payload interface{}) int {
	data, err := json.Marshal(WSMessage{Type: msgType, Payload: payload})
	if err != nil {
		h.log.Error("failed to marshal broadcast", zap.String("type", msgType), zap.Error(err))
		return 0
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for client := range h.sessions[sessionID] {
		select {
		case client.Send <- data:
			delivered++
		default:
			h.log.Warn("client send buffer full, dropping message",
				zap.String("client_id", client.ClientID),
				zap.String("session_id", sessionID))
		}
	}
	return delivered
}

// ClientCount reports how many clients watch sessionID
func (h *Hub) ClientCount(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions[sessionID])
}

// SendToClient sends a message to a specific client
func SendToClient(c *Client, msg WSMessage) {
	data, _ := json.Marshal(msg)
	select {
	case c.Send <- data:
	default:
	}
}

// HandleWebSocket authenticates the token query parameter, upgrades the
// connection and subscribes it to the session query parameter. canWatch
// decides which sessions a client may follow.
func HandleWebSocket(
	c *gin.Context,
	authService *auth.Service,
	hub *Hub,
	limiter *middleware.WebSocketLimiter,
	canWatch func(clientID, sessionID string) bool,
	log *zap.Logger,
) {
	clientID, err := authService.ValidateToken(c.Query("token"))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	sessionID := c.Query("session")
	if sessionID == "" || !canWatch(clientID, sessionID) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
		return
	}

	conn, err := Upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warn("WebSocket upgrade error", zap.Error(err))
		return
	}

	client := &Client{
		ClientID: clientID,
		Conn:     conn,
		Send:     make(chan []byte, 256),
	}
	hub.Subscribe(client, sessionID)
	SendToClient(client, WSMessage{
		Type:    MessageSubscribed,
		Payload: map[string]interface{}{"session_id": sessionID},
	})

	handleMessage := func(cl *Client, msg WSMessage) {
		switch msg.Type {
		case "subscribe":
			payload, _ := msg.Payload.(map[string]interface{})
			target, _ := payload["session_id"].(string)
			if !limiter.AllowSubscribe(cl.ClientID) {
				SendToClient(cl, WSMessage{Type: MessageError, Payload: map[string]interface{}{"message": "Too many subscribe requests"}})
				return
			}
			if target == "" || !canWatch(cl.ClientID, target) {
				SendToClient(cl, WSMessage{Type: MessageError, Payload: map[string]interface{}{"message": "Session not found"}})
				return
			}
			hub.Subscribe(cl, target)
			SendToClient(cl, WSMessage{Type: MessageSubscribed, Payload: map[string]interface{}{"session_id": target}})
		default:
			SendToClient(cl, WSMessage{Type: MessageError, Payload: map[string]interface{}{"message": "Unknown message type"}})
		}
	}

	go client.WritePump()
	go client.ReadPump(hub, handleMessage)
}
