package registry

import (
	"context"
	"log/slog"
	"testing"
	"testing/synctest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/webitel/im-realtime-gateway/internal/adapter/broadcast"
	"github.com/webitel/im-realtime-gateway/internal/domain/model"
)

func TestHeartbeatTerminatesSilentConnections(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		ctx := context.Background()
		r := startRegistry(t, broadcast.NewBus())
		defer r.Stop()

		healthyTr := &fakeTransport{}
		healthy := NewConnector(&model.Identity{UserID: "alice"}, healthyTr, 8)
		healthyTr.onPing = healthy.Pong
		require.NoError(t, r.Attach(ctx, healthy))
		join(t, r, healthy, "7", false)

		silent, silentTr := attach(t, r, "bob")
		join(t, r, silent, "7", false)
		join(t, r, silent, "9", false)

		m := NewMonitor(r, 30*time.Second, slog.Default())
		m.Start()
		defer m.Stop()

		time.Sleep(31 * time.Second)
		synctest.Wait()
		conns, err := r.Connections(ctx)
		require.NoError(t, err)
		assert.Len(t, conns, 2)
		assert.EqualValues(t, 1, silentTr.pings.Load())

		time.Sleep(30 * time.Second)
		synctest.Wait()
		conns, err = r.Connections(ctx)
		require.NoError(t, err)
		require.Len(t, conns, 1)
		assert.Equal(t, healthy.GetID(), conns[0].GetID())
		assert.True(t, silentTr.closed.Load())
		assert.False(t, healthyTr.closed.Load())
		assert.EqualValues(t, 2, healthyTr.pings.Load())

		subs, err := r.Subscriptions(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"room.events", "room:7"}, subs)

		st, err := r.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, []model.RoomStats{{RoomID: "7", Sockets: 1, OpenSockets: 1}}, st.Rooms)
	})
}

func TestSweep(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		ctx := context.Background()
		r := startRegistry(t, broadcast.NewBus())
		defer r.Stop()

		attach(t, r, "bob")
		m := NewMonitor(r, time.Minute, nil)

		assert.Zero(t, m.Sweep(ctx))
		assert.Equal(t, 1, m.Sweep(ctx))
		assert.Zero(t, m.Sweep(ctx))
	})
}

func TestSweepDoesNotSerializeStalledPings(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		ctx := context.Background()
		r := startRegistry(t, broadcast.NewBus())
		defer r.Stop()

		var transports []*fakeTransport
		for _, user := range []string{"alice", "bob", "carol"} {
			tr := &fakeTransport{stall: 10 * time.Second}
			require.NoError(t, r.Attach(ctx, NewConnector(&model.Identity{UserID: user}, tr, 8)))
			transports = append(transports, tr)
		}

		m := NewMonitor(r, time.Minute, nil)
		start := time.Now()
		assert.Zero(t, m.Sweep(ctx))
		assert.Equal(t, 10*time.Second, time.Since(start))
		for _, tr := range transports {
			assert.EqualValues(t, 1, tr.pings.Load())
		}

		assert.Equal(t, 3, m.Sweep(ctx))
		conns, err := r.Connections(ctx)
		require.NoError(t, err)
		assert.Empty(t, conns)
	})
}
