package bus

import (
	"context"
	"log/slog"

	"github.com/webitel/im-realtime-gateway/internal/domain/event"
)

// [ON_MESSAGE_CREATED]
func (h *MessageHandler) OnMessageCreated(ctx context.Context, ev *event.MessageCreated, raw []byte) error {
	return h.bridge.Fanout(ctx, ev, raw)
}

// [ON_REACTION_CREATED]
func (h *MessageHandler) OnReactionCreated(ctx context.Context, ev *event.ReactionCreated, raw []byte) error {
	return h.bridge.Fanout(ctx, ev, raw)
}

// [ON_REACTION_REMOVED]
func (h *MessageHandler) OnReactionRemoved(ctx context.Context, ev *event.ReactionRemoved, raw []byte) error {
	return h.bridge.Fanout(ctx, ev, raw)
}

// [ON_REPLY_CREATED]
func (h *MessageHandler) OnReplyCreated(ctx context.Context, ev *event.ReplyCreated, raw []byte) error {
	return h.bridge.Fanout(ctx, ev, raw)
}

// [ON_STREAM_CHUNK]
// Chunks travel on the agent stream channel of the room.
func (h *MessageHandler) OnStreamChunk(ctx context.Context, ev *event.StreamChunk, raw []byte) error {
	if err := h.bridge.Fanout(ctx, ev, raw); err != nil {
		return err
	}
	if ev.IsFinal {
		h.logger.Debug("STREAM_COMPLETED", slog.String("stream_id", ev.StreamID), slog.Int("chunks", ev.ChunkIndex+1))
	}
	return nil
}
