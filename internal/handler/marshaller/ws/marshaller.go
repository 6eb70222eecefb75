package wsmarshaller

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/webitel/im-realtime-gateway/internal/domain/event"
	"github.com/webitel/im-realtime-gateway/internal/domain/model"
)

var ErrBadEnvelope = errors.New("bad broadcast envelope")

// ChatFrame carries bus originated events to the client.
type ChatFrame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// SystemFrame carries room lifecycle and protocol replies.
type SystemFrame struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// Encoder turns broadcast envelopes and system payloads into wire frames.
type Encoder struct{}

func NewEncoder() *Encoder { return &Encoder{} }

// Broadcast decodes a room envelope and re-encodes it as a client frame.
func (Encoder) Broadcast(payload []byte) (*model.Frame, error) {
	var env model.Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadEnvelope, err)
	}
	if env.Type == "" || len(env.Data) == 0 {
		return nil, fmt.Errorf("%w: missing type or data", ErrBadEnvelope)
	}

	data, err := json.Marshal(ChatFrame{Type: env.Type, Data: env.Data})
	if err != nil {
		return nil, err
	}
	return &model.Frame{Type: env.Type, Priority: model.PriorityOf(env.Type), Data: data}, nil
}

// System encodes a {type, payload} frame.
func (Encoder) System(frameType string, payload any) (*model.Frame, error) {
	data, err := json.Marshal(SystemFrame{Type: frameType, Payload: payload})
	if err != nil {
		return nil, err
	}
	return &model.Frame{Type: frameType, Priority: model.PriorityOf(frameType), Data: data}, nil
}

// Pong answers an application level ping.
func (e Encoder) Pong() *model.Frame {
	f, _ := e.System(model.FramePong, nil)
	return f
}

// Error builds the generic failure frame. TempID lets clients reconcile an
// optimistic message with its failure.
func (e Encoder) Error(message, tempID string) *model.Frame {
	f, _ := e.System(model.FrameError, event.ErrorPayload{Message: message, TempID: tempID})
	return f
}
