package realtime

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"topup-store/internal/auth"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
)

// Handler upgrades authenticated requests to websockets and streams the
// caller's own order and deposit changes. Clients never choose channels.
type Handler struct {
	broker   Broker
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

// NewHandler builds a websocket handler. checkOrigin may be nil to accept any origin.
func NewHandler(b Broker, logger *slog.Logger, checkOrigin func(*http.Request) bool) *Handler {
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	return &Handler{
		broker: b,
		logger: logger.With("component", "realtime_ws"),
		upgrader: websocket.Upgrader{
			HandshakeTimeout: 10 * time.Second,
			CheckOrigin:      checkOrigin,
		},
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.FromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("websocket upgrade failed", "error", err)
		return
	}

	sub := h.broker.Subscribe(UserChannels(p.UserID)...)
	h.logger.Info("realtime subscriber connected", "user_id", p.UserID)

	done := make(chan struct{})
	go h.readLoop(conn, done)
	h.writeLoop(conn, sub, done)

	sub.Close()
	_ = conn.Close()
	h.logger.Info("realtime subscriber disconnected", "user_id", p.UserID, "dropped", sub.Dropped())
}

// readLoop only services control frames; clients have nothing to send.
func (h *Handler) readLoop(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Handler) writeLoop(conn *websocket.Conn, sub *Subscription, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case msg, ok := <-sub.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "subscriber too slow"))
				return
			}
			if err := conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
