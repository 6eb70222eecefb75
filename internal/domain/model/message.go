package model

import "encoding/json"

// [INGEST_PAYLOADS]
// Client-originated content republished onto the event bus. Persistence and
// business rules live downstream; the gateway never delivers these locally.

// MessageIngest is the body of the message-ingest topic.
type MessageIngest struct {
	RoomID           string `json:"roomId"`
	Content          string `json:"content"`
	SenderID         string `json:"senderId"`
	SenderType       string `json:"senderType"`
	TempID           string `json:"tempId,omitempty"`
	ReplyToMessageID string `json:"replyToMessageId,omitempty"`
}

// ReactionIngest is the body of the message-reaction-ingest topic.
type ReactionIngest struct {
	RoomID    string `json:"roomId"`
	MessageID string `json:"messageId"`
	UserID    string `json:"userId"`
	Emoji     string `json:"emoji"`
	Action    string `json:"action"`
}

// ReplyIngest is the body of the message-reply-ingest topic.
type ReplyIngest struct {
	RoomID           string          `json:"roomId"`
	SenderID         string          `json:"senderId"`
	SenderType       string          `json:"senderType"`
	Content          string          `json:"content"`
	ReplyToMessageID string          `json:"replyToMessageId"`
	Attachments      json.RawMessage `json:"attachments,omitempty"`
	SenderName       string          `json:"senderName,omitempty"`
	DedupeKey        string          `json:"dedupeKey,omitempty"`
}
