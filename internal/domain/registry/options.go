package registry

import (
	"log/slog"
	"time"

	"github.com/webitel/im-realtime-gateway/internal/domain/model"
)

const (
	DefaultGracePeriod       = 10 * time.Second
	DefaultHeartbeatInterval = 30 * time.Second
	DefaultInboxSize         = 256
)

type config struct {
	nodeID      string
	gracePeriod time.Duration
	inboxSize   int
	channels    model.Channels
}

// Option defines a functional configuration type for the Registry.
type Option func(*Registry)

// WithNodeID tags logs and stats with the node identity.
func WithNodeID(id string) Option {
	return func(r *Registry) {
		r.config.nodeID = id
	}
}

// WithGracePeriod sets the [QUIET_PERIOD] between a user's last socket
// closing and the presence-lost announcement.
func WithGracePeriod(d time.Duration) Option {
	return func(r *Registry) {
		if d > 0 {
			r.config.gracePeriod = d
		}
	}
}

// WithInboxSize sets the capacity of the actor inbox.
func WithInboxSize(size int) Option {
	return func(r *Registry) {
		if size > 0 {
			r.config.inboxSize = size
		}
	}
}

// WithChannels overrides broadcast channel naming.
func WithChannels(ch model.Channels) Option {
	return func(r *Registry) {
		if ch.RoomPrefix != "" && ch.Events != "" {
			r.config.channels = ch
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}

func WithMetrics(m Metrics) Option {
	return func(r *Registry) {
		if m != nil {
			r.metrics = m
		}
	}
}
