package broadcast

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/nats-io/nats.go"
	"github.com/webitel/im-realtime-gateway/internal/domain/model"
)

var _ Broker = (*NATSBroker)(nil)

const upperhex = "0123456789ABCDEF"

// subjectToken encodes a channel as exactly one subject token. Bytes outside
// [A-Za-z0-9_:-] become %XX, so distinct channels never share a subject and
// no room id can introduce wildcards or token separators.
func subjectToken(channel string) string {
	var b strings.Builder
	b.Grow(len(channel))
	for i := 0; i < len(channel); i++ {
		c := channel[i]
		switch {
		case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9',
			c == '_', c == ':', c == '-':
			b.WriteByte(c)
		default:
			b.WriteByte('%')
			b.WriteByte(upperhex[c>>4])
			b.WriteByte(upperhex[c&0x0f])
		}
	}
	return b.String()
}

// NATSBroker maps each channel onto a core NATS subject. Every node receives
// every message of the subjects it subscribed, there is no queue group here.
type NATSBroker struct {
	nc     *nats.Conn
	prefix string
	logger *slog.Logger

	mu   sync.Mutex
	subs map[string]*nats.Subscription

	out       chan model.Delivery
	done      chan struct{}
	closeOnce sync.Once
}

func NewNATSBroker(nc *nats.Conn, subjectPrefix string, logger *slog.Logger, bufferSize int) *NATSBroker {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &NATSBroker{
		nc:     nc,
		prefix: subjectPrefix,
		logger: logger,
		subs:   make(map[string]*nats.Subscription),
		out:    make(chan model.Delivery, bufferSize),
		done:   make(chan struct{}),
	}
}

// Subject returns the NATS subject used for a channel.
func (b *NATSBroker) Subject(channel string) string {
	return b.prefix + subjectToken(channel)
}

func (b *NATSBroker) Publish(_ context.Context, channel string, payload []byte) error {
	return b.nc.Publish(b.Subject(channel), payload)
}

func (b *NATSBroker) Subscribe(_ context.Context, channel string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subs[channel]; ok {
		return nil
	}
	sub, err := b.nc.Subscribe(b.Subject(channel), func(m *nats.Msg) {
		select {
		case b.out <- model.Delivery{Channel: channel, Payload: m.Data}:
		case <-b.done:
		}
	})
	if err != nil {
		return err
	}
	b.subs[channel] = sub
	return nil
}

func (b *NATSBroker) Unsubscribe(_ context.Context, channel string) error {
	b.mu.Lock()
	sub, ok := b.subs[channel]
	delete(b.subs, channel)
	b.mu.Unlock()

	if !ok {
		return nil
	}
	return sub.Unsubscribe()
}

func (b *NATSBroker) Messages() <-chan model.Delivery { return b.out }

// Close drops every subscription. The connection is owned by the caller.
func (b *NATSBroker) Close() error {
	b.closeOnce.Do(func() {
		close(b.done)

		b.mu.Lock()
		for ch, sub := range b.subs {
			if err := sub.Unsubscribe(); err != nil {
				b.logger.Warn("NATS_UNSUBSCRIBE_FAILED", slog.String("channel", ch), slog.Any("err", err))
			}
			delete(b.subs, ch)
		}
		b.mu.Unlock()
		b.logger.Info("BROADCAST_CLOSED", slog.String("driver", DriverNATS))
	})
	return nil
}
