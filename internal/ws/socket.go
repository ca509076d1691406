package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"

	"github.com/hakanuyysal/aiku-backend-sub000/internal/chat"
	"github.com/hakanuyysal/aiku-backend-sub000/internal/middleware"
	"github.com/hakanuyysal/aiku-backend-sub000/internal/observability"
	"github.com/hakanuyysal/aiku-backend-sub000/internal/presence"
)

// TouchStore refreshes last_seen on client heartbeats.
type TouchStore interface {
	Touch(ctx context.Context, userID string, at time.Time) error
}

// clientFrame is what connected clients may send over the socket.
type clientFrame struct {
	Action    string `json:"action"`
	SessionID string `json:"session_id,omitempty"`
	IsTyping  bool   `json:"is_typing,omitempty"`
}

// SocketHandler owns the single websocket endpoint feeding the presence
// registry and the broadcast hub.
type SocketHandler struct {
	hub       *Hub
	registry  *presence.Registry
	chats     *chat.Service
	store     TouchStore
	validator *middleware.TokenValidator
}

// NewSocketHandler constructs a SocketHandler.
func NewSocketHandler(hub *Hub, registry *presence.Registry, chats *chat.Service, store TouchStore, validator *middleware.TokenValidator) *SocketHandler {
	return &SocketHandler{hub: hub, registry: registry, chats: chats, store: store, validator: validator}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handle upgrades the connection, registers presence and serves the read
// loop until the client disconnects.
func (h *SocketHandler) Handle(c *gin.Context) {
	ctx, span := otel.Tracer("aiku/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	token := c.GetHeader("Authorization")
	if token == "" {
		token = c.Query("token")
		if token != "" {
			token = "Bearer " + token
		}
	}
	userID, err := h.validateToken(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	meta := observability.MetaFromRequest(c.Request)
	info := ConnInfo{
		ConnID:      newConnID(),
		UserID:      userID,
		DeviceID:    meta.DeviceID,
		IP:          meta.IP,
		RequestID:   meta.RequestID,
		TraceID:     span.SpanContext().TraceID().String(),
		ConnectedAt: time.Now(),
	}

	h.hub.Register(conn, info)
	h.hub.Subscribe(conn, UserChannel(userID))
	h.registry.AddConnection(ctx, userID, info.ConnID)

	observability.IncWSActive()
	observability.IncWSEvent("ws_connect")
	h.publishLifecycleEvent(ctx, info, "ws_connect", "")

	go h.readLoop(conn, info)
}

func (h *SocketHandler) readLoop(conn *websocket.Conn, info ConnInfo) {
	ctx := context.Background()
	var closeReason string
	defer func() {
		// Disconnect cleanup is idempotent and independent of any in-flight
		// session operation.
		h.hub.RemoveConnection(conn)
		h.registry.RemoveConnection(ctx, info.ConnID)
		observability.DecWSActive()
		observability.IncWSEvent("ws_disconnect")
		h.publishLifecycleEvent(ctx, info, "ws_disconnect", closeReason)
		conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			closeReason = err.Error()
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				observability.IncWSEvent("ws_error")
			}
			return
		}

		var frame clientFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			log.Printf("bad client frame from %s: %v", info.UserID, err)
			continue
		}
		h.handleFrame(ctx, conn, info, frame)
	}
}

func (h *SocketHandler) handleFrame(ctx context.Context, conn *websocket.Conn, info ConnInfo, frame clientFrame) {
	switch frame.Action {
	case "subscribe":
		if frame.SessionID == "" {
			return
		}
		member, err := h.chats.IsParticipant(ctx, frame.SessionID, info.UserID)
		if err != nil || !member {
			log.Printf("subscribe rejected for %s on session %s", info.UserID, frame.SessionID)
			return
		}
		h.hub.Subscribe(conn, SessionChannel(frame.SessionID))
	case "unsubscribe":
		if frame.SessionID == "" {
			return
		}
		h.hub.Unsubscribe(conn, SessionChannel(frame.SessionID))
	case "typing":
		if frame.SessionID == "" {
			return
		}
		member, err := h.chats.IsParticipant(ctx, frame.SessionID, info.UserID)
		if err != nil || !member {
			log.Printf("typing rejected for %s on session %s", info.UserID, frame.SessionID)
			return
		}
		h.registry.SendTyping(info.UserID, frame.SessionID, frame.IsTyping)
	case "heartbeat":
		if err := h.store.Touch(ctx, info.UserID, time.Now()); err != nil {
			log.Printf("heartbeat touch failed for %s: %v", info.UserID, err)
		}
	default:
		log.Printf("unknown ws action %q from %s", frame.Action, info.UserID)
	}
}

func (h *SocketHandler) publishLifecycleEvent(ctx context.Context, info ConnInfo, event, reason string) {
	payload := map[string]interface{}{
		"ws": map[string]interface{}{
			"event":       event,
			"conn_id":     info.ConnID,
			"duration_ms": time.Since(info.ConnectedAt).Milliseconds(),
			"reason":      reason,
		},
		"identity": map[string]interface{}{
			"user_id":   info.UserID,
			"device_id": info.DeviceID,
			"ip":        info.IP,
		},
	}
	_ = observability.MirrorEvent(ctx, observability.RoutingWSLifecycle,
		observability.NewWSEnvelope(event, payload),
		observability.BuildHeaders(info.RequestID, info.TraceID))
}

func (h *SocketHandler) validateToken(header string) (string, error) {
	parts := strings.Split(header, " ")
	if len(parts) == 2 {
		return h.validator.ValidateToken(parts[1])
	}
	return "", middleware.ErrInvalidToken
}
