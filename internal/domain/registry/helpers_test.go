package registry

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/webitel/im-realtime-gateway/internal/adapter/broadcast"
	"github.com/webitel/im-realtime-gateway/internal/domain/model"
	wsmarshaller "github.com/webitel/im-realtime-gateway/internal/handler/marshaller/ws"
)

type fakeTransport struct {
	pings  atomic.Int32
	closed atomic.Bool
	onPing func()
	stall  time.Duration
}

func (f *fakeTransport) Ping() error {
	f.pings.Add(1)
	if f.stall > 0 {
		time.Sleep(f.stall)
	}
	if f.onPing != nil {
		f.onPing()
	}
	return nil
}

func (f *fakeTransport) Close() error {
	f.closed.Store(true)
	return nil
}

func startRegistry(t *testing.T, bus *broadcast.Bus, opts ...Option) *Registry {
	t.Helper()
	r := New(bus.Node(64), wsmarshaller.NewEncoder(), opts...)
	require.NoError(t, r.Start(context.Background()))
	return r
}

func attach(t *testing.T, r *Registry, user string) (Connector, *fakeTransport) {
	t.Helper()
	tr := &fakeTransport{}
	c := NewConnector(&model.Identity{UserID: user}, tr, 8)
	require.NoError(t, r.Attach(context.Background(), c))
	return c, tr
}

func join(t *testing.T, r *Registry, c Connector, room string, stream bool) {
	t.Helper()
	require.NoError(t, r.Join(context.Background(), c.GetID(), room, stream))
}

func envelope(t *testing.T, frameType, room string, data any) []byte {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	b, err := json.Marshal(model.Envelope{Type: frameType, RoomID: room, Data: raw})
	require.NoError(t, err)
	return b
}

// drain returns every frame currently queued on c.
func drain(c Connector) []*model.Frame {
	var out []*model.Frame
	for {
		select {
		case f := <-c.Recv():
			out = append(out, f)
		default:
			return out
		}
	}
}

func frameTypes(frames []*model.Frame) []string {
	out := make([]string, 0, len(frames))
	for _, f := range frames {
		out = append(out, f.Type)
	}
	return out
}
