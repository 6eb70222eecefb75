package model

// FramePriority orders frames when a socket's send queue is saturated.
type FramePriority int32

const (
	PriorityLow    FramePriority = 10
	PriorityNormal FramePriority = 20
	PriorityHigh   FramePriority = 30
)

// Outbound frame types written to client sockets.
const (
	FrameMessage         = "message"
	FrameReactionCreated = "message.reaction.created"
	FrameReactionRemoved = "message.reaction.removed"
	FrameReplyCreated    = "message.reply.created"
	FrameStreamChunk     = "ar-stream-chunk"
	FrameRoomJoined      = "room.joined"
	FrameRoomMembership  = "room.membership"
	FrameRoomCreated     = "room.created"
	FrameRoomDeleted     = "room.deleted"
	FramePong            = "pong"
	FrameError           = "error"
)

// Frame is an outbound packet already encoded for the wire.
//
// [MARSHAL_ONCE]
// A broadcast is encoded a single time and the same bytes are pushed to every
// local socket of the room.
type Frame struct {
	Type     string
	Priority FramePriority
	Data     []byte
}

// PriorityOf returns the queueing priority of an outbound frame type.
// Streamed chunks are superseded quickly and are shed first.
func PriorityOf(frameType string) FramePriority {
	switch frameType {
	case FrameStreamChunk, FramePong:
		return PriorityLow
	case FrameRoomDeleted, FrameRoomJoined, FrameError:
		return PriorityHigh
	default:
		return PriorityNormal
	}
}
