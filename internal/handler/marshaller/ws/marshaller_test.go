package wsmarshaller

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/webitel/im-realtime-gateway/internal/domain/model"
)

func TestBroadcast(t *testing.T) {
	enc := NewEncoder()

	f, err := enc.Broadcast([]byte(`{"type":"message","roomId":"7","data":{"id":"m1","roomId":"7"}}`))
	require.NoError(t, err)

	assert.Equal(t, model.FrameMessage, f.Type)
	assert.Equal(t, model.PriorityNormal, f.Priority)
	assert.JSONEq(t, `{"type":"message","data":{"id":"m1","roomId":"7"}}`, string(f.Data))

	_, err = enc.Broadcast([]byte(`{"roomId":"7"}`))
	assert.ErrorIs(t, err, ErrBadEnvelope)

	_, err = enc.Broadcast([]byte(`nope`))
	assert.ErrorIs(t, err, ErrBadEnvelope)
}

func TestSystemFrames(t *testing.T) {
	enc := NewEncoder()

	assert.JSONEq(t, `{"type":"pong"}`, string(enc.Pong().Data))
	assert.JSONEq(t,
		`{"type":"error","payload":{"message":"message.send failed","tempId":"t1"}}`,
		string(enc.Error("message.send failed", "t1").Data))

	f := enc.Error("Invalid roomId", "")
	assert.Equal(t, model.PriorityHigh, f.Priority)
	assert.JSONEq(t, `{"type":"error","payload":{"message":"Invalid roomId"}}`, string(f.Data))
}
