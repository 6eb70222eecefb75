package ws

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/webitel/im-realtime-gateway/infra/server/http/middleware"
	"github.com/webitel/im-realtime-gateway/internal/domain/registry"
	"github.com/webitel/im-realtime-gateway/internal/service"
)

const (
	writeWait      = 10 * time.Second
	pingWait       = time.Second
	maxMessageSize = 64 << 10
)

type Settings struct {
	// AllowedOrigins limits the Origin header of upgrades. Empty allows any.
	AllowedOrigins []string
}

type WSHandler struct {
	logger   *slog.Logger
	gateway  service.Gateway
	upgrader websocket.Upgrader
}

func NewWSHandler(logger *slog.Logger, gateway service.Gateway, s Settings) *WSHandler {
	allowed := make(map[string]struct{}, len(s.AllowedOrigins))
	for _, o := range s.AllowedOrigins {
		allowed[o] = struct{}{}
	}
	return &WSHandler{
		logger:  logger,
		gateway: gateway,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				if len(allowed) == 0 {
					return true
				}
				_, ok := allowed[r.Header.Get("Origin")]
				return ok
			},
		},
	}
}

// transport adapts a gorilla connection for the registry. WriteControl and
// Close are safe to call next to the write pump.
type transport struct {
	ws *websocket.Conn
}

func (t transport) Ping() error {
	return t.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(pingWait))
}

func (t transport) Close() error {
	_ = t.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(pingWait))
	return t.ws.Close()
}

func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// 1. IDENTITY (verified by the auth middleware before upgrade)
	id, ok := middleware.GetIdentity(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	// 2. UPGRADE TO WEBSOCKET
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("WS_UPGRADE_FAILED", slog.Any("err", err))
		return
	}
	ws.SetReadLimit(maxMessageSize)

	// 3. REGISTER
	ctx := context.WithoutCancel(r.Context())
	conn, err := h.gateway.Connect(ctx, id, transport{ws: ws})
	if err != nil {
		h.logger.Error("WS_CONNECT_FAILED", slog.String("user_id", id.UserID), slog.Any("err", err))
		_ = ws.Close()
		return
	}
	defer h.gateway.Disconnect(ctx, conn)

	ws.SetPongHandler(func(string) error {
		conn.Pong()
		return nil
	})

	go h.writePump(ws, conn)
	h.readPump(ctx, ws, conn)
}

// readPump owns every read of the socket. It returns on the first read error,
// which is also how closes initiated elsewhere surface here.
func (h *WSHandler) readPump(ctx context.Context, ws *websocket.Conn, conn registry.Connector) {
	for {
		kind, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				h.logger.Debug("WS_READ_FAILED", slog.String("conn_id", conn.GetID().String()), slog.Any("err", err))
			}
			return
		}
		if kind != websocket.TextMessage {
			continue
		}
		h.gateway.Handle(ctx, conn, data)
	}
}

// writePump is the only writer of data frames.
func (h *WSHandler) writePump(ws *websocket.Conn, conn registry.Connector) {
	for {
		select {
		case <-conn.Done():
			return
		case f := <-conn.Recv():
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.TextMessage, f.Data); err != nil {
				h.logger.Debug("WS_WRITE_FAILED", slog.String("conn_id", conn.GetID().String()), slog.Any("err", err))
				conn.Close()
				return
			}
		}
	}
}
