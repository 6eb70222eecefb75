package model

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMalformedFrame marks client frames that cannot be decoded or miss required fields.
var ErrMalformedFrame = errors.New("malformed frame")

// InboundType is the "type" discriminator of client frames.
type InboundType string

const (
	InboundJoin     InboundType = "join"
	InboundLeave    InboundType = "leave"
	InboundSend     InboundType = "message.send"
	InboundReaction InboundType = "message.reaction"
	InboundReply    InboundType = "message.reply"
	InboundPing     InboundType = "ping"
)

// Inbound is the tagged union of client frames. Values are validated by
// DecodeInbound before any handler sees them.
type Inbound interface {
	Kind() InboundType
}

type JoinFrame struct {
	RoomID   string `json:"roomId"`
	IsARRoom bool   `json:"isARRoom,omitempty"`
}

type LeaveFrame struct {
	RoomID string `json:"roomId"`
}

type SendFrame struct {
	RoomID           string `json:"roomId"`
	Content          string `json:"content"`
	TempID           string `json:"tempId,omitempty"`
	ReplyToMessageID string `json:"replyToMessageId,omitempty"`
}

type ReactionFrame struct {
	RoomID    string `json:"roomId"`
	MessageID string `json:"messageId"`
	Emoji     string `json:"emoji"`
	Action    string `json:"action"` // add | remove
}

type ReplyFrame struct {
	RoomID           string          `json:"roomId"`
	Content          string          `json:"content"`
	ReplyToMessageID string          `json:"replyToMessageId"`
	Attachments      json.RawMessage `json:"attachments,omitempty"`
	SenderName       string          `json:"senderName,omitempty"`
	TempID           string          `json:"tempId,omitempty"`
}

type PingFrame struct{}

func (JoinFrame) Kind() InboundType     { return InboundJoin }
func (LeaveFrame) Kind() InboundType    { return InboundLeave }
func (SendFrame) Kind() InboundType     { return InboundSend }
func (ReactionFrame) Kind() InboundType { return InboundReaction }
func (ReplyFrame) Kind() InboundType    { return InboundReply }
func (PingFrame) Kind() InboundType     { return InboundPing }

// DecodeInbound parses a raw client frame into its concrete type. Room ids are
// returned normalized.
func DecodeInbound(raw []byte) (Inbound, error) {
	var head struct {
		Type InboundType `json:"type"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}

	switch head.Type {
	case InboundPing:
		return PingFrame{}, nil
	case InboundJoin:
		f := JoinFrame{}
		if err := decodeRoomFrame(raw, &f, &f.RoomID); err != nil {
			return nil, err
		}
		return f, nil
	case InboundLeave:
		f := LeaveFrame{}
		if err := decodeRoomFrame(raw, &f, &f.RoomID); err != nil {
			return nil, err
		}
		return f, nil
	case InboundSend:
		f := SendFrame{}
		if err := decodeRoomFrame(raw, &f, &f.RoomID); err != nil {
			return nil, err
		}
		return f, nil
	case InboundReaction:
		f := ReactionFrame{}
		if err := decodeRoomFrame(raw, &f, &f.RoomID); err != nil {
			return nil, err
		}
		if f.MessageID == "" || f.Emoji == "" {
			return nil, fmt.Errorf("%w: reaction requires messageId and emoji", ErrMalformedFrame)
		}
		if f.Action != "add" && f.Action != "remove" {
			return nil, fmt.Errorf("%w: unknown reaction action %q", ErrMalformedFrame, f.Action)
		}
		return f, nil
	case InboundReply:
		f := ReplyFrame{}
		if err := decodeRoomFrame(raw, &f, &f.RoomID); err != nil {
			return nil, err
		}
		if f.ReplyToMessageID == "" {
			return nil, fmt.Errorf("%w: reply requires replyToMessageId", ErrMalformedFrame)
		}
		return f, nil
	default:
		return nil, fmt.Errorf("%w: unknown type %q", ErrMalformedFrame, head.Type)
	}
}

func decodeRoomFrame(raw []byte, dst any, roomID *string) error {
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	id, err := NormalizeRoomID(*roomID)
	if err != nil {
		return err
	}
	*roomID = id
	return nil
}
