package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/webitel/im-realtime-gateway/internal/domain/event"
	"github.com/webitel/im-realtime-gateway/internal/domain/model"
)

// ChannelPublisher is the publishing half of the broadcast fabric.
type ChannelPublisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// Fanouter republishes a consumed bus event to every node.
type Fanouter interface {
	Fanout(ctx context.Context, ev event.Eventer, raw []byte) error
}

var _ Fanouter = (*Bridge)(nil)

type Bridge struct {
	pub      ChannelPublisher
	channels model.Channels
	logger   *slog.Logger
}

func NewBridge(pub ChannelPublisher, channels model.Channels, logger *slog.Logger) *Bridge {
	return &Bridge{pub: pub, channels: channels, logger: logger}
}

// Fanout normalizes the room id, wraps raw into a broadcast envelope and
// publishes it on the room's channel. Having no subscribers is not an error.
func (b *Bridge) Fanout(ctx context.Context, ev event.Eventer, raw []byte) error {
	roomID, err := model.NormalizeRoomID(ev.GetRoomID())
	if err != nil {
		return fmt.Errorf("%w: %v", event.ErrValidation, err)
	}

	data, err := withRoomID(raw, roomID)
	if err != nil {
		return fmt.Errorf("%w: %v", event.ErrValidation, err)
	}

	payload, err := json.Marshal(model.Envelope{Type: ev.GetFrameType(), RoomID: roomID, Data: data})
	if err != nil {
		return err
	}

	channel := b.channels.For(ev.GetStream(), roomID)
	if err := b.pub.Publish(ctx, channel, payload); err != nil {
		return fmt.Errorf("bridge: publish %s: %w", channel, err)
	}

	b.logger.Debug("EVENT_FANNED_OUT",
		slog.String("channel", channel),
		slog.String("type", ev.GetFrameType()),
		slog.String("event_id", ev.GetID()))
	return nil
}

// withRoomID rewrites the roomId field of a JSON object.
func withRoomID(raw []byte, roomID string) (json.RawMessage, error) {
	obj := map[string]json.RawMessage{}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, err
	}
	id, _ := json.Marshal(roomID)
	obj["roomId"] = id
	return json.Marshal(obj)
}
