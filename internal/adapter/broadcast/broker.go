package broadcast

import (
	"context"
	"errors"

	"github.com/webitel/im-realtime-gateway/internal/domain/model"
)

const DefaultBufferSize = 1024

var ErrClosed = errors.New("broker closed")

// Broker is a fleet wide pub/sub fabric keyed by channel name. Deliveries for
// every subscribed channel arrive on one stream; the stream is never closed,
// consumers stop on their own signal.
type Broker interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) error
	Unsubscribe(ctx context.Context, channel string) error
	Messages() <-chan model.Delivery
	Close() error
}

// Driver names accepted by configuration.
const (
	DriverRedis  = "redis"
	DriverNATS   = "nats"
	DriverMemory = "memory"
)
