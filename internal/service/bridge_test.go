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
	"github.com/webitel/im-realtime-gateway/internal/domain/event"
	"github.com/webitel/im-realtime-gateway/internal/domain/model"
)

type failingPublisher struct{}

func (failingPublisher) Publish(context.Context, string, []byte) error {
	return errors.New("redis down")
}

func TestFanoutNormalizesRoom(t *testing.T) {
	ctx := context.Background()
	bus := broadcast.NewBus()
	listener := bus.Node(4)
	require.NoError(t, listener.Subscribe(ctx, "room:42"))

	b := NewBridge(bus.Node(4), model.DefaultChannels(), slog.Default())

	raw := []byte(`{"id":"m1","roomId":" 42 ","senderId":"alice","content":"hi"}`)
	ev := &event.MessageCreated{}
	require.NoError(t, json.Unmarshal(raw, ev))
	require.NoError(t, b.Fanout(ctx, ev, raw))

	require.Len(t, listener.Messages(), 1)
	d := <-listener.Messages()
	assert.Equal(t, "room:42", d.Channel)

	var env model.Envelope
	require.NoError(t, json.Unmarshal(d.Payload, &env))
	assert.Equal(t, model.FrameMessage, env.Type)
	assert.Equal(t, "42", env.RoomID)
	assert.JSONEq(t, `{"id":"m1","roomId":"42","senderId":"alice","content":"hi"}`, string(env.Data))
}

func TestFanoutStreamChannel(t *testing.T) {
	ctx := context.Background()
	bus := broadcast.NewBus()
	listener := bus.Node(4)
	require.NoError(t, listener.Subscribe(ctx, "ar-room:5"))
	require.NoError(t, listener.Subscribe(ctx, "room:5"))

	b := NewBridge(bus.Node(4), model.DefaultChannels(), slog.Default())
	raw := []byte(`{"streamId":"s1","messageId":"m1","roomId":"5","chunkIndex":3}`)
	ev := &event.StreamChunk{}
	require.NoError(t, json.Unmarshal(raw, ev))
	require.NoError(t, b.Fanout(ctx, ev, raw))

	require.Len(t, listener.Messages(), 1)
	assert.Equal(t, "ar-room:5", (<-listener.Messages()).Channel)
}

func TestFanoutErrors(t *testing.T) {
	ctx := context.Background()
	b := NewBridge(failingPublisher{}, model.DefaultChannels(), slog.Default())

	ev := &event.MessageCreated{ID: "m1", RoomID: "1", SenderID: "u"}
	err := b.Fanout(ctx, ev, []byte(`{"id":"m1","roomId":"1","senderId":"u"}`))
	require.Error(t, err)
	assert.NotErrorIs(t, err, event.ErrValidation)

	err = b.Fanout(ctx, &event.MessageCreated{RoomID: "  "}, []byte(`{}`))
	assert.ErrorIs(t, err, event.ErrValidation)

	err = b.Fanout(ctx, ev, []byte(`[1,2]`))
	assert.ErrorIs(t, err, event.ErrValidation)
}
