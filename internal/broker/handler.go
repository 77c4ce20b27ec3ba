package broker

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"counselchat/pkg/types"
)

var upgrader = websocket.Upgrader{
	// Dashboard and CLI clients connect cross-origin in development.
	CheckOrigin:      func(r *http.Request) bool { return true },
	HandshakeTimeout: 10 * time.Second,
}

// Handler upgrades /ws requests and feeds the hub.
type Handler struct {
	hub    *Hub
	logger *zap.Logger
}

// NewHandler creates the WebSocket handler for the hub.
func NewHandler(hub *Hub, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{hub: hub, logger: logger}
}

// ServeWS handles GET /ws?username=<userId>. Validation happens before
// the upgrade so rejected requests get proper HTTP status codes.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	username := r.URL.Query().Get("username")
	if username == "" {
		http.Error(w, "missing required query parameter: username", http.StatusBadRequest)
		return
	}
	if !types.IsValidUserID(username) {
		http.Error(w, "invalid username format", http.StatusBadRequest)
		return
	}

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	conn := newConn(ws, username)
	if err := h.hub.Register(conn); err != nil {
		_ = conn.Close()
		return
	}

	// Handshake ack: the channel treats the connection as Open only
	// after this frame.
	if err := conn.enqueue(types.Frame{Kind: types.FrameConnected}); err != nil {
		h.hub.Unregister(conn)
		return
	}

	go h.readLoop(conn)
}

// readLoop pumps inbound frames into the hub until the client drops.
func (h *Handler) readLoop(conn *Conn) {
	defer h.hub.Unregister(conn)

	for {
		var frame types.Frame
		if err := conn.ws.ReadJSON(&frame); err != nil {
			return
		}
		if err := h.hub.Dispatch(conn, frame); err != nil {
			return
		}
	}
}
