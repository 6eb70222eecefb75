package broadcast

import (
	"context"
	"sync"

	"github.com/webitel/im-realtime-gateway/internal/domain/model"
)

var _ Broker = (*Node)(nil)

// Bus is an in-process pub/sub fabric. Each Node behaves like one gateway
// process attached to a shared Redis or NATS server.
type Bus struct {
	mu    sync.RWMutex
	nodes map[*Node]struct{}
}

func NewBus() *Bus {
	return &Bus{nodes: make(map[*Node]struct{})}
}

// NewMemoryBroker returns a single node on a private bus.
func NewMemoryBroker() *Node {
	return NewBus().Node(DefaultBufferSize)
}

// Node attaches a new subscriber to the bus.
func (b *Bus) Node(bufferSize int) *Node {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	n := &Node{
		bus:  b,
		subs: make(map[string]struct{}),
		out:  make(chan model.Delivery, bufferSize),
		done: make(chan struct{}),
	}
	b.mu.Lock()
	b.nodes[n] = struct{}{}
	b.mu.Unlock()
	return n
}

func (b *Bus) publish(ctx context.Context, channel string, payload []byte) error {
	b.mu.RLock()
	targets := make([]*Node, 0, len(b.nodes))
	for n := range b.nodes {
		if n.subscribed(channel) {
			targets = append(targets, n)
		}
	}
	b.mu.RUnlock()

	d := model.Delivery{Channel: channel, Payload: payload}
	for _, n := range targets {
		select {
		case n.out <- d:
		case <-n.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Node is one member of a Bus.
type Node struct {
	bus       *Bus
	mu        sync.RWMutex
	subs      map[string]struct{}
	out       chan model.Delivery
	done      chan struct{}
	closeOnce sync.Once
}

func (n *Node) Publish(ctx context.Context, channel string, payload []byte) error {
	select {
	case <-n.done:
		return ErrClosed
	default:
	}
	return n.bus.publish(ctx, channel, payload)
}

func (n *Node) Subscribe(_ context.Context, channel string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.subs[channel] = struct{}{}
	return nil
}

func (n *Node) Unsubscribe(_ context.Context, channel string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.subs, channel)
	return nil
}

func (n *Node) Messages() <-chan model.Delivery { return n.out }

// Channels lists current subscriptions.
func (n *Node) Channels() []string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make([]string, 0, len(n.subs))
	for ch := range n.subs {
		out = append(out, ch)
	}
	return out
}

func (n *Node) subscribed(channel string) bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	_, ok := n.subs[channel]
	return ok
}

func (n *Node) Close() error {
	n.closeOnce.Do(func() {
		close(n.done)
		n.bus.mu.Lock()
		delete(n.bus.nodes, n)
		n.bus.mu.Unlock()
	})
	return nil
}
