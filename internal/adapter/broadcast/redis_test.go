package broadcast

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/webitel/im-realtime-gateway/internal/domain/model"
)

func TestRedisBroker(t *testing.T) {
	ctx := context.Background()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	defer client.Close()

	node1 := NewRedisBroker(client, slog.Default(), 16)
	node2 := NewRedisBroker(client, slog.Default(), 16)
	defer node1.Close()
	defer node2.Close()

	require.NoError(t, node1.Subscribe(ctx, "room:7"))

	var got model.Delivery
	require.Eventually(t, func() bool {
		_ = node2.Publish(ctx, "room:7", []byte(`{"type":"message"}`))
		select {
		case got = <-node1.Messages():
			return true
		default:
			return false
		}
	}, 3*time.Second, 25*time.Millisecond)

	assert.Equal(t, "room:7", got.Channel)
	assert.JSONEq(t, `{"type":"message"}`, string(got.Payload))
	assert.Empty(t, node2.Messages())
}
