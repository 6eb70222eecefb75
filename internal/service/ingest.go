package service

import (
	"context"

	"github.com/webitel/im-realtime-gateway/internal/adapter/pubsub"
	"github.com/webitel/im-realtime-gateway/internal/domain/model"
)

// Ingester republishes client originated content onto the event bus. Nothing
// is delivered locally; clients see their content once it comes back through
// the bus.
type Ingester interface {
	SendMessage(ctx context.Context, id *model.Identity, f model.SendFrame) error
	React(ctx context.Context, id *model.Identity, f model.ReactionFrame) error
	Reply(ctx context.Context, id *model.Identity, f model.ReplyFrame) error
}

type IngestTopics struct {
	Message  string
	Reaction string
	Reply    string
}

func DefaultIngestTopics() IngestTopics {
	return IngestTopics{
		Message:  "message-ingest",
		Reaction: "message-reaction-ingest",
		Reply:    "message-reply-ingest",
	}
}

var _ Ingester = (*IngestService)(nil)

type IngestService struct {
	dispatcher pubsub.EventDispatcher
	topics     IngestTopics
	nodeID     string
}

func NewIngestService(dispatcher pubsub.EventDispatcher, topics IngestTopics, nodeID string) *IngestService {
	return &IngestService{dispatcher: dispatcher, topics: topics, nodeID: nodeID}
}

func (s *IngestService) SendMessage(ctx context.Context, id *model.Identity, f model.SendFrame) error {
	return s.dispatcher.Publish(ctx, model.NewOutboundEvent(s.topics.Message, f.RoomID, s.nodeID, model.MessageIngest{
		RoomID:           f.RoomID,
		Content:          f.Content,
		SenderID:         id.UserID,
		SenderType:       id.Type,
		TempID:           f.TempID,
		ReplyToMessageID: f.ReplyToMessageID,
	}))
}

func (s *IngestService) React(ctx context.Context, id *model.Identity, f model.ReactionFrame) error {
	return s.dispatcher.Publish(ctx, model.NewOutboundEvent(s.topics.Reaction, f.RoomID, s.nodeID, model.ReactionIngest{
		RoomID:    f.RoomID,
		MessageID: f.MessageID,
		UserID:    id.UserID,
		Emoji:     f.Emoji,
		Action:    f.Action,
	}))
}

// Reply carries the client temp id as the dedupe key so that downstream
// persistence can drop retransmissions.
func (s *IngestService) Reply(ctx context.Context, id *model.Identity, f model.ReplyFrame) error {
	return s.dispatcher.Publish(ctx, model.NewOutboundEvent(s.topics.Reply, f.RoomID, s.nodeID, model.ReplyIngest{
		RoomID:           f.RoomID,
		SenderID:         id.UserID,
		SenderType:       id.Type,
		Content:          f.Content,
		ReplyToMessageID: f.ReplyToMessageID,
		Attachments:      f.Attachments,
		SenderName:       f.SenderName,
		DedupeKey:        f.TempID,
	}))
}
