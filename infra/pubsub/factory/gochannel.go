package factory

import (
	"context"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// GoChannelFactory runs the bus inside the process. Subscribers of a topic
// compete for one shared stream, the way members of a consumer group share
// a queue, so every message is handled by exactly one of them.
type GoChannelFactory struct {
	ch *gochannel.GoChannel

	mu      sync.Mutex
	streams map[string]<-chan *message.Message
}

func NewGoChannelFactory(logger watermill.LoggerAdapter) *GoChannelFactory {
	return &GoChannelFactory{
		ch:      gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 256}, logger),
		streams: make(map[string]<-chan *message.Message),
	}
}

func (f *GoChannelFactory) BuildPublisher() (message.Publisher, error) { return f.ch, nil }

func (f *GoChannelFactory) BuildSubscriber(string) (message.Subscriber, error) {
	return &groupMember{f: f}, nil
}

func (f *GoChannelFactory) Close() error { return f.ch.Close() }

// stream returns the topic's shared stream, subscribing on first use. The
// stream lives until the factory is closed.
func (f *GoChannelFactory) stream(topic string) (<-chan *message.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if s, ok := f.streams[topic]; ok {
		return s, nil
	}
	s, err := f.ch.Subscribe(context.Background(), topic)
	if err != nil {
		return nil, err
	}
	f.streams[topic] = s
	return s, nil
}

// groupMember is one consumer of the in-process group. Each subscription
// gets its own channel fed from the shared stream and closed when the
// subscription context ends or the member is closed.
type groupMember struct {
	f *GoChannelFactory

	mu      sync.Mutex
	cancels []context.CancelFunc
}

func (m *groupMember) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	shared, err := m.f.stream(topic)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	m.mu.Lock()
	m.cancels = append(m.cancels, cancel)
	m.mu.Unlock()

	out := make(chan *message.Message)
	go forward(ctx, shared, out)
	return out, nil
}

func (m *groupMember) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, cancel := range m.cancels {
		cancel()
	}
	m.cancels = nil
	return nil
}

// forward hands shared messages to one member. A message taken while the
// member is stopping is nacked so another member receives it.
func forward(ctx context.Context, shared <-chan *message.Message, out chan<- *message.Message) {
	defer close(out)
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-shared:
			if !ok {
				return
			}
			select {
			case out <- msg:
			case <-ctx.Done():
				msg.Nack()
				return
			}
		}
	}
}
