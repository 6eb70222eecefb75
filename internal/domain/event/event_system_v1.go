package event

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/webitel/im-realtime-gateway/internal/domain/model"
)

// RoomEventKind is the "type" of messages carried on the room events channel.
type RoomEventKind string

const (
	RoomMemberAdded   RoomEventKind = "room.member.added"
	RoomMemberRemoved RoomEventKind = "room.member.removed"
	RoomCreated       RoomEventKind = "room.created"
	RoomDeleted       RoomEventKind = "room.deleted"
	UserDisconnected  RoomEventKind = "user.disconnected"
)

// RoomEvent is the envelope of the room lifecycle and presence channel.
// Room services publish membership and lifecycle changes; gateways publish
// presence loss.
type RoomEvent struct {
	Type            RoomEventKind `json:"type"`
	RoomID          string        `json:"roomId,omitempty"`
	ParticipantID   string        `json:"participantId,omitempty"`
	ParticipantType string        `json:"participantType,omitempty"`
	CreatedBy       string        `json:"createdBy,omitempty"`
	UserID          string        `json:"userId,omitempty"`
	Members         []string      `json:"members,omitempty"`
	Timestamp       string        `json:"timestamp,omitempty"`
}

// DecodeRoomEvent parses a room events message. The room id is normalized for
// every kind except presence, which is user scoped.
func DecodeRoomEvent(raw []byte) (*RoomEvent, error) {
	ev := &RoomEvent{}
	if err := json.Unmarshal(raw, ev); err != nil {
		return nil, fmt.Errorf("%w: room event: %v", ErrValidation, err)
	}

	switch ev.Type {
	case UserDisconnected:
		return ev, nil
	case RoomMemberAdded, RoomMemberRemoved, RoomCreated, RoomDeleted:
		id, err := model.NormalizeRoomID(ev.RoomID)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrValidation, ev.Type, err)
		}
		ev.RoomID = id
		return ev, nil
	default:
		return nil, fmt.Errorf("%w: unknown room event %q", ErrValidation, ev.Type)
	}
}

// NewUserDisconnected builds the presence-lost event published after the
// disconnect grace period.
func NewUserDisconnected(userID string, at time.Time) *RoomEvent {
	return &RoomEvent{
		Type:      UserDisconnected,
		UserID:    userID,
		Timestamp: at.UTC().Format(time.RFC3339),
	}
}

// Action maps membership kinds onto the client facing action.
func (e *RoomEvent) Action() string {
	if e.Type == RoomMemberRemoved {
		return "left"
	}
	return "joined"
}

// MembershipPayload is the payload of the room.membership frame.
type MembershipPayload struct {
	RoomID        string   `json:"roomId"`
	ParticipantID string   `json:"participantId"`
	Action        string   `json:"action"`
	Members       []string `json:"members"`
}

// CreatedPayload is the payload of the room.created frame.
type CreatedPayload struct {
	RoomID    string   `json:"roomId"`
	CreatedBy string   `json:"createdBy,omitempty"`
	Members   []string `json:"members"`
	Timestamp string   `json:"timestamp,omitempty"`
}

// DeletedPayload is the payload of the room.deleted frame.
type DeletedPayload struct {
	RoomID string `json:"roomId"`
}

// JoinedPayload is the roster reply to a join.
type JoinedPayload struct {
	RoomID  string   `json:"roomId"`
	Members []string `json:"members"`
}

// ErrorPayload is the payload of the error frame.
type ErrorPayload struct {
	Message string `json:"message"`
	TempID  string `json:"tempId,omitempty"`
}

// Membership projects the event onto its frame payload. Members is never nil
// so clients always get an array.
func (e *RoomEvent) Membership() MembershipPayload {
	return MembershipPayload{
		RoomID:        e.RoomID,
		ParticipantID: e.ParticipantID,
		Action:        e.Action(),
		Members:       nonNil(e.Members),
	}
}

func (e *RoomEvent) Created() CreatedPayload {
	return CreatedPayload{
		RoomID:    e.RoomID,
		CreatedBy: e.CreatedBy,
		Members:   nonNil(e.Members),
		Timestamp: e.Timestamp,
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
