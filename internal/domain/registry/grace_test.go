package registry

import (
	"context"
	"testing"
	"testing/synctest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/webitel/im-realtime-gateway/internal/adapter/broadcast"
	"github.com/webitel/im-realtime-gateway/internal/domain/event"
)

func presenceLost(t *testing.T, observer *broadcast.Node) []string {
	t.Helper()
	var users []string
	for {
		select {
		case d := <-observer.Messages():
			ev, err := event.DecodeRoomEvent(d.Payload)
			require.NoError(t, err)
			if ev.Type == event.UserDisconnected {
				users = append(users, ev.UserID)
			}
		default:
			return users
		}
	}
}

func TestReconnectWithinGracePublishesNothing(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		ctx := context.Background()
		bus := broadcast.NewBus()
		observer := bus.Node(16)
		defer observer.Close()
		require.NoError(t, observer.Subscribe(ctx, "room.events"))

		r := startRegistry(t, bus, WithGracePeriod(10*time.Second))
		defer r.Stop()

		c, _ := attach(t, r, "alice")
		require.NoError(t, r.Detach(ctx, c.GetID()))

		time.Sleep(3 * time.Second)
		attach(t, r, "alice")

		time.Sleep(20 * time.Second)
		synctest.Wait()
		assert.Empty(t, presenceLost(t, observer))

		st, err := r.Stats(ctx)
		require.NoError(t, err)
		assert.Zero(t, st.PendingGrace)
	})
}

func TestGraceExpiryPublishesOnce(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		ctx := context.Background()
		bus := broadcast.NewBus()
		observer := bus.Node(16)
		defer observer.Close()
		require.NoError(t, observer.Subscribe(ctx, "room.events"))

		r := startRegistry(t, bus, WithGracePeriod(10*time.Second))
		defer r.Stop()

		phone, _ := attach(t, r, "alice")
		laptop, _ := attach(t, r, "alice")
		join(t, r, phone, "7", false)

		// Not the last connection, no timer yet.
		require.NoError(t, r.Detach(ctx, phone.GetID()))
		time.Sleep(15 * time.Second)
		synctest.Wait()
		assert.Empty(t, presenceLost(t, observer))

		require.NoError(t, r.Detach(ctx, laptop.GetID()))
		time.Sleep(11 * time.Second)
		synctest.Wait()
		assert.Equal(t, []string{"alice"}, presenceLost(t, observer))

		attach(t, r, "alice")
		time.Sleep(30 * time.Second)
		synctest.Wait()
		assert.Empty(t, presenceLost(t, observer))
	})
}
