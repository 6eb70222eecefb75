package pubsub

import (
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/webitel/im-realtime-gateway/infra/pubsub/factory"
	"github.com/webitel/im-realtime-gateway/internal/domain/model"
)

func TestDispatcherMetadata(t *testing.T) {
	ch := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 4}, watermill.NopLogger{})
	defer ch.Close()

	msgs, err := ch.Subscribe(context.Background(), "message-ingest")
	require.NoError(t, err)

	d := NewEventDispatcher(ch)
	ev := model.NewOutboundEvent("message-ingest", "42", "node-1", model.MessageIngest{
		RoomID: "42", Content: "hi", SenderID: "alice", SenderType: model.SenderHuman, TempID: "t1",
	})
	ctx := context.WithValue(context.Background(), TraceIDKey{}, "trace-1")
	require.NoError(t, d.Publish(ctx, ev))

	select {
	case msg := <-msgs:
		msg.Ack()
		assert.Equal(t, ev.ID, msg.UUID)
		assert.Equal(t, "42", msg.Metadata.Get(factory.MetadataPartitionKey))
		assert.Equal(t, "node-1", msg.Metadata.Get(MetadataNodeID))
		assert.Equal(t, "trace-1", msg.Metadata.Get(MetadataTraceID))
		assert.NotEmpty(t, msg.Metadata.Get(MetadataReceivedAt))
		assert.JSONEq(t,
			`{"roomId":"42","content":"hi","senderId":"alice","senderType":"human","tempId":"t1"}`,
			string(msg.Payload))
	case <-time.After(2 * time.Second):
		t.Fatal("message not published")
	}

	assert.Error(t, d.Publish(ctx, nil))
}
