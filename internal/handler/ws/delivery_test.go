package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/webitel/im-realtime-gateway/infra/server/http/middleware"
	"github.com/webitel/im-realtime-gateway/internal/adapter/broadcast"
	"github.com/webitel/im-realtime-gateway/internal/adapter/membership"
	"github.com/webitel/im-realtime-gateway/internal/domain/model"
	"github.com/webitel/im-realtime-gateway/internal/domain/registry"
	wsmarshaller "github.com/webitel/im-realtime-gateway/internal/handler/marshaller/ws"
	"github.com/webitel/im-realtime-gateway/internal/service"
)

const secret = "ws-test-secret"

type nopIngester struct{}

func (nopIngester) SendMessage(context.Context, *model.Identity, model.SendFrame) error {
	return nil
}
func (nopIngester) React(context.Context, *model.Identity, model.ReactionFrame) error { return nil }
func (nopIngester) Reply(context.Context, *model.Identity, model.ReplyFrame) error    { return nil }

type node struct {
	srv *httptest.Server
	reg *registry.Registry
	bus *broadcast.Bus
}

func newNode(t *testing.T) *node {
	t.Helper()
	logger := slog.Default()
	bus := broadcast.NewBus()

	reg := registry.New(bus.Node(64), wsmarshaller.NewEncoder(), registry.WithLogger(logger))
	require.NoError(t, reg.Start(context.Background()))

	auther, err := service.NewJWTAuther(service.AuthConfig{Secret: secret})
	require.NoError(t, err)

	gw := service.NewGatewayService(reg, membership.NewMemoryStore(), nopIngester{}, wsmarshaller.NewEncoder(), logger, 16)

	r := chi.NewRouter()
	r.With(middleware.NewAuthMiddleware(auther, logger)).Get("/ws", NewWSHandler(logger, gw, Settings{}).ServeHTTP)
	srv := httptest.NewServer(r)

	t.Cleanup(func() {
		srv.Close()
		reg.Stop()
	})
	return &node{srv: srv, reg: reg, bus: bus}
}

func (n *node) url(query string) string {
	return "ws" + strings.TrimPrefix(n.srv.URL, "http") + "/ws" + query
}

func token(t *testing.T, user string) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"id":  user,
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(secret))
	require.NoError(t, err)
	return tok
}

func readFrame(t *testing.T, c *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, c.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := c.ReadMessage()
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

func TestHandshakeRequiresToken(t *testing.T) {
	n := newNode(t)

	for _, q := range []string{"", "?token=garbage"} {
		_, resp, err := websocket.DefaultDialer.Dial(n.url(q), nil)
		require.Error(t, err)
		require.NotNil(t, resp)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	}

	conns, err := n.reg.Connections(context.Background())
	require.NoError(t, err)
	assert.Empty(t, conns)
}

func TestJoinThenDeliver(t *testing.T) {
	n := newNode(t)

	header := http.Header{}
	header.Set("Authorization", "Bearer "+token(t, "alice"))
	c, _, err := websocket.DefaultDialer.Dial(n.url(""), header)
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.WriteJSON(map[string]any{"type": "join", "roomId": " 5 "}))
	joined := readFrame(t, c)
	assert.Equal(t, model.FrameRoomJoined, joined["type"])
	assert.Equal(t, "5", joined["payload"].(map[string]any)["roomId"])

	env, err := json.Marshal(model.Envelope{
		Type:   model.FrameMessage,
		RoomID: "5",
		Data:   json.RawMessage(`{"id":"m1","roomId":"5","senderId":"bob","content":"hi"}`),
	})
	require.NoError(t, err)
	require.NoError(t, n.bus.Node(4).Publish(context.Background(), "room:5", env))

	msg := readFrame(t, c)
	assert.Equal(t, model.FrameMessage, msg["type"])
	assert.Equal(t, "m1", msg["data"].(map[string]any)["id"])

	require.NoError(t, c.WriteJSON(map[string]any{"type": "ping"}))
	assert.Equal(t, model.FramePong, readFrame(t, c)["type"])
}

func TestClientCloseDetaches(t *testing.T) {
	n := newNode(t)

	c, _, err := websocket.DefaultDialer.Dial(n.url("?token="+token(t, "alice")), nil)
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		conns, err := n.reg.Connections(context.Background())
		return err == nil && len(conns) == 1
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, c.Close())

	assert.Eventually(t, func() bool {
		conns, err := n.reg.Connections(context.Background())
		return err == nil && len(conns) == 0
	}, 2*time.Second, 10*time.Millisecond)
}
