package event

import (
	"fmt"
	"strings"

	"github.com/webitel/im-realtime-gateway/internal/domain/model"
)

var (
	_ Eventer = (*MessageCreated)(nil)
	_ Eventer = (*ReactionCreated)(nil)
	_ Eventer = (*ReactionRemoved)(nil)
	_ Eventer = (*ReplyCreated)(nil)
	_ Eventer = (*StreamChunk)(nil)
)

// MessageCreated is the header of a persisted chat message. Content may be
// empty for attachment-only messages, so it is not required.
type MessageCreated struct {
	ID       string `json:"id"`
	RoomID   string `json:"roomId"`
	SenderID string `json:"senderId"`
}

func (e *MessageCreated) GetID() string           { return e.ID }
func (e *MessageCreated) GetRoomID() string       { return e.RoomID }
func (e *MessageCreated) GetFrameType() string    { return model.FrameMessage }
func (e *MessageCreated) GetStream() model.Stream { return model.StreamChat }
func (e *MessageCreated) Validate() error {
	return requireFields("message-created", "id", e.ID, "roomId", e.RoomID, "senderId", e.SenderID)
}

// ReactionCreated is published after a reaction was stored.
type ReactionCreated struct {
	MessageID string `json:"messageId"`
	RoomID    string `json:"roomId"`
}

func (e *ReactionCreated) GetID() string           { return e.MessageID }
func (e *ReactionCreated) GetRoomID() string       { return e.RoomID }
func (e *ReactionCreated) GetFrameType() string    { return model.FrameReactionCreated }
func (e *ReactionCreated) GetStream() model.Stream { return model.StreamChat }
func (e *ReactionCreated) Validate() error {
	return requireFields("reaction-created", "messageId", e.MessageID, "roomId", e.RoomID)
}

// ReactionRemoved is published after a reaction was deleted.
type ReactionRemoved struct {
	MessageID string `json:"messageId"`
	RoomID    string `json:"roomId"`
}

func (e *ReactionRemoved) GetID() string           { return e.MessageID }
func (e *ReactionRemoved) GetRoomID() string       { return e.RoomID }
func (e *ReactionRemoved) GetFrameType() string    { return model.FrameReactionRemoved }
func (e *ReactionRemoved) GetStream() model.Stream { return model.StreamChat }
func (e *ReactionRemoved) Validate() error {
	return requireFields("reaction-removed", "messageId", e.MessageID, "roomId", e.RoomID)
}

// ReplyCreated is a persisted message that quotes another one.
type ReplyCreated struct {
	MessageID        string `json:"messageId"`
	RoomID           string `json:"roomId"`
	ReplyToMessageID string `json:"replyToMessageId"`
}

func (e *ReplyCreated) GetID() string           { return e.MessageID }
func (e *ReplyCreated) GetRoomID() string       { return e.RoomID }
func (e *ReplyCreated) GetFrameType() string    { return model.FrameReplyCreated }
func (e *ReplyCreated) GetStream() model.Stream { return model.StreamChat }
func (e *ReplyCreated) Validate() error {
	return requireFields("reply-created",
		"messageId", e.MessageID, "roomId", e.RoomID, "replyToMessageId", e.ReplyToMessageID)
}

// StreamChunk is one piece of an agent answer streamed to AR rooms. It travels
// on the stream channel so it never mixes with chat events of the same room.
type StreamChunk struct {
	StreamID   string `json:"streamId"`
	MessageID  string `json:"messageId"`
	RoomID     string `json:"roomId"`
	ChunkIndex int    `json:"chunkIndex"`
	IsFinal    bool   `json:"isFinal"`
}

func (e *StreamChunk) GetID() string           { return fmt.Sprintf("%s/%d", e.StreamID, e.ChunkIndex) }
func (e *StreamChunk) GetRoomID() string       { return e.RoomID }
func (e *StreamChunk) GetFrameType() string    { return model.FrameStreamChunk }
func (e *StreamChunk) GetStream() model.Stream { return model.StreamAgent }
func (e *StreamChunk) Validate() error {
	return requireFields("ar-stream-chunk",
		"streamId", e.StreamID, "messageId", e.MessageID, "roomId", e.RoomID)
}

// requireFields checks name/value pairs and reports the first blank field.
func requireFields(kind string, pairs ...string) error {
	for i := 0; i+1 < len(pairs); i += 2 {
		if strings.TrimSpace(pairs[i+1]) == "" {
			return fmt.Errorf("%w: %s missing %s", ErrValidation, kind, pairs[i])
		}
	}
	return nil
}
