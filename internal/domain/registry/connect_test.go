package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/webitel/im-realtime-gateway/internal/domain/model"
)

func frame(p model.FramePriority) *model.Frame {
	return &model.Frame{Type: "t", Priority: p}
}

func TestSendBackpressure(t *testing.T) {
	c := NewConnector(&model.Identity{UserID: "u"}, &fakeTransport{}, 2)

	assert.True(t, c.Send(frame(model.PriorityNormal)))
	assert.True(t, c.Send(frame(model.PriorityNormal)))

	// Full queue sheds low priority frames first.
	assert.False(t, c.Send(frame(model.PriorityLow)))
	assert.EqualValues(t, 1, c.Dropped())

	// A high priority frame evicts a normal one.
	assert.True(t, c.Send(frame(model.PriorityHigh)))
	assert.EqualValues(t, 2, c.Dropped())

	// Only high priority frames left in front, a normal one cannot evict them.
	assert.True(t, c.Send(frame(model.PriorityHigh)))
	assert.False(t, c.Send(frame(model.PriorityNormal)))

	queued := drain(c)
	assert.Len(t, queued, 2)
	for _, f := range queued {
		assert.Equal(t, model.PriorityHigh, f.Priority)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	tr := &fakeTransport{}
	c := NewConnector(&model.Identity{UserID: "u"}, tr, 1)

	assert.True(t, c.IsOpen())
	c.Close()
	c.Close()

	assert.False(t, c.IsOpen())
	assert.True(t, tr.closed.Load())
	assert.False(t, c.Send(frame(model.PriorityHigh)))
	assert.ErrorIs(t, c.Ping(), ErrConnectionClosed)

	select {
	case <-c.Done():
	default:
		t.Fatal("done not signalled")
	}
}

func TestProbe(t *testing.T) {
	c := NewConnector(&model.Identity{UserID: "u"}, &fakeTransport{}, 1)
	assert.True(t, c.Probe())
	assert.False(t, c.Probe())
	c.Pong()
	assert.True(t, c.Probe())
}
