package event

import (
	"errors"

	"github.com/webitel/im-realtime-gateway/internal/domain/model"
)

// ErrValidation marks bus events that miss a required field. Such events are
// dropped and acknowledged, never redelivered.
var ErrValidation = errors.New("event validation failed")

// Eventer defines the contract for every event consumed from the bus and
// handed to the fan-out bridge.
type Eventer interface {
	GetID() string
	// GetRoomID returns the raw, not yet normalized room id.
	GetRoomID() string
	// GetFrameType is the outbound frame type sockets receive.
	GetFrameType() string
	GetStream() model.Stream
	Validate() error
}
