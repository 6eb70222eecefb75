package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/webitel/im-realtime-gateway/internal/adapter/broadcast"
	"github.com/webitel/im-realtime-gateway/internal/adapter/membership"
	"github.com/webitel/im-realtime-gateway/internal/domain/model"
	"github.com/webitel/im-realtime-gateway/internal/domain/registry"
	wsmarshaller "github.com/webitel/im-realtime-gateway/internal/handler/marshaller/ws"
)

type nopTransport struct{}

func (nopTransport) Ping() error  { return nil }
func (nopTransport) Close() error { return nil }

type stubIngester struct {
	err   error
	sends []model.SendFrame
}

func (s *stubIngester) SendMessage(_ context.Context, _ *model.Identity, f model.SendFrame) error {
	s.sends = append(s.sends, f)
	return s.err
}

func (s *stubIngester) React(context.Context, *model.Identity, model.ReactionFrame) error {
	return s.err
}

func (s *stubIngester) Reply(context.Context, *model.Identity, model.ReplyFrame) error {
	return s.err
}

type gatewayFixture struct {
	gw     *GatewayService
	reg    *registry.Registry
	store  *membership.MemoryStore
	ingest *stubIngester
}

func newGatewayFixture(t *testing.T) *gatewayFixture {
	t.Helper()
	reg := registry.New(broadcast.NewBus().Node(64), wsmarshaller.NewEncoder())
	require.NoError(t, reg.Start(context.Background()))
	t.Cleanup(reg.Stop)

	f := &gatewayFixture{
		reg:    reg,
		store:  membership.NewMemoryStore(),
		ingest: &stubIngester{},
	}
	f.gw = NewGatewayService(reg, f.store, f.ingest, wsmarshaller.NewEncoder(), slog.Default(), 16)
	return f
}

func (f *gatewayFixture) connect(t *testing.T, user string) registry.Connector {
	t.Helper()
	conn, err := f.gw.Connect(context.Background(), &model.Identity{UserID: user, Type: model.SenderHuman}, nopTransport{})
	require.NoError(t, err)
	return conn
}

func next(t *testing.T, conn registry.Connector) (string, map[string]any) {
	t.Helper()
	select {
	case fr := <-conn.Recv():
		var body map[string]any
		require.NoError(t, json.Unmarshal(fr.Data, &body))
		payload, _ := body["payload"].(map[string]any)
		return fr.Type, payload
	default:
		t.Fatal("no frame queued")
		return "", nil
	}
}

func TestConnectAutoJoinsKnownRooms(t *testing.T) {
	f := newGatewayFixture(t)
	f.store.Seed(" 7 ", "alice")
	f.store.Seed("9", "alice")
	f.store.Seed("11", "bob")

	f.connect(t, "alice")

	subs, err := f.reg.Subscriptions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"room.events", "room:7", "room:9"}, subs)

	_, touched := f.store.TouchedAt("alice")
	assert.True(t, touched)
}

func TestJoinRepliesWithRoster(t *testing.T) {
	f := newGatewayFixture(t)
	f.store.Seed("7", "bob")
	conn := f.connect(t, "alice")

	f.gw.Handle(context.Background(), conn, []byte(`{"type":"join","roomId":" 7 "}`))

	typ, payload := next(t, conn)
	assert.Equal(t, model.FrameRoomJoined, typ)
	assert.Equal(t, "7", payload["roomId"])
	assert.Equal(t, []any{"alice", "bob"}, payload["members"])

	member, err := f.store.IsMember(context.Background(), "7", "alice")
	require.NoError(t, err)
	assert.True(t, member)

	f.gw.Handle(context.Background(), conn, []byte(`{"type":"leave","roomId":"7"}`))
	subs, err := f.reg.Subscriptions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"room.events"}, subs)
}

func TestHandleRejectsBadFrames(t *testing.T) {
	f := newGatewayFixture(t)
	conn := f.connect(t, "alice")

	f.gw.Handle(context.Background(), conn, []byte(`{"type":"join","roomId":"   "}`))
	typ, payload := next(t, conn)
	assert.Equal(t, model.FrameError, typ)
	assert.Equal(t, MsgInvalidRoom, payload["message"])

	f.gw.Handle(context.Background(), conn, []byte(`not json`))
	f.gw.Handle(context.Background(), conn, []byte(`{"type":"teleport"}`))
	assert.Empty(t, conn.Recv())
}

func TestSendFailureCarriesTempID(t *testing.T) {
	f := newGatewayFixture(t)
	conn := f.connect(t, "alice")

	f.gw.Handle(context.Background(), conn, []byte(`{"type":"message.send","roomId":"7","content":"hi","tempId":"t1"}`))
	assert.Empty(t, conn.Recv())
	require.Len(t, f.ingest.sends, 1)
	assert.Equal(t, "7", f.ingest.sends[0].RoomID)

	f.ingest.err = errors.New("bus down")
	f.gw.Handle(context.Background(), conn, []byte(`{"type":"message.send","roomId":"7","content":"hi","tempId":"t2"}`))
	typ, payload := next(t, conn)
	assert.Equal(t, model.FrameError, typ)
	assert.Equal(t, MsgSendFailed, payload["message"])
	assert.Equal(t, "t2", payload["tempId"])

	f.gw.Handle(context.Background(), conn, []byte(`{"type":"message.reaction","roomId":"7","messageId":"m1","emoji":"+1","action":"add"}`))
	typ, payload = next(t, conn)
	assert.Equal(t, model.FrameError, typ)
	assert.Equal(t, MsgReactionFailed, payload["message"])
	assert.NotContains(t, payload, "tempId")
}

func TestPingAndDisconnect(t *testing.T) {
	f := newGatewayFixture(t)
	conn := f.connect(t, "alice")

	assert.True(t, conn.Probe())
	assert.False(t, conn.Probe())
	f.gw.Handle(context.Background(), conn, []byte(`{"type":"ping"}`))
	typ, _ := next(t, conn)
	assert.Equal(t, model.FramePong, typ)
	assert.True(t, conn.Probe())

	f.gw.Disconnect(context.Background(), conn)
	assert.False(t, conn.IsOpen())
	conns, err := f.reg.Connections(context.Background())
	require.NoError(t, err)
	assert.Empty(t, conns)

	// Second disconnect from the other close path is a no-op.
	f.gw.Disconnect(context.Background(), conn)
}
