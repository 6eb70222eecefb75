package broadcast

import (
	"context"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/webitel/im-realtime-gateway/internal/domain/model"
)

var _ Broker = (*RedisBroker)(nil)

// RedisBroker multiplexes every channel of the node over one PubSub
// connection. Publishing uses the regular client pool.
type RedisBroker struct {
	client redis.UniversalClient
	ps     *redis.PubSub
	logger *slog.Logger

	out       chan model.Delivery
	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

func NewRedisBroker(client redis.UniversalClient, logger *slog.Logger, bufferSize int) *RedisBroker {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	b := &RedisBroker{
		client: client,
		ps:     client.Subscribe(context.Background()),
		logger: logger,
		out:    make(chan model.Delivery, bufferSize),
		done:   make(chan struct{}),
	}

	b.wg.Add(1)
	go b.pump(bufferSize)
	return b
}

func (b *RedisBroker) pump(size int) {
	defer b.wg.Done()

	in := b.ps.Channel(redis.WithChannelSize(size))
	for {
		select {
		case <-b.done:
			return
		case msg, ok := <-in:
			if !ok {
				return
			}
			select {
			case b.out <- model.Delivery{Channel: msg.Channel, Payload: []byte(msg.Payload)}:
			case <-b.done:
				return
			}
		}
	}
}

func (b *RedisBroker) Publish(ctx context.Context, channel string, payload []byte) error {
	return b.client.Publish(ctx, channel, payload).Err()
}

func (b *RedisBroker) Subscribe(ctx context.Context, channel string) error {
	return b.ps.Subscribe(ctx, channel)
}

func (b *RedisBroker) Unsubscribe(ctx context.Context, channel string) error {
	return b.ps.Unsubscribe(ctx, channel)
}

func (b *RedisBroker) Messages() <-chan model.Delivery { return b.out }

func (b *RedisBroker) Close() error {
	var err error
	b.closeOnce.Do(func() {
		close(b.done)
		err = b.ps.Close()
		b.wg.Wait()
		b.logger.Info("BROADCAST_CLOSED", slog.String("driver", DriverRedis))
	})
	return err
}
