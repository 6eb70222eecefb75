package clientdi

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
)

type RedisSettings struct {
	Addrs      []string
	Username   string
	Password   string
	DB         int
	MasterName string
}

type NATSSettings struct {
	URL  string
	Name string
}

type Settings struct {
	Redis RedisSettings
	NATS  NATSSettings
}

// Clients hands out the shared network clients. Each one is created on first
// use, so a node configured without NATS never dials it.
type Clients struct {
	s      Settings
	logger *slog.Logger

	mu    sync.Mutex
	redis redis.UniversalClient
	nats  *nats.Conn
}

func New(s Settings, logger *slog.Logger) *Clients {
	return &Clients{s: s, logger: logger}
}

// Redis returns the shared client. Sentinel is used when a master name is set,
// a cluster client when several addresses are given.
func (c *Clients) Redis() redis.UniversalClient {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.redis == nil {
		c.redis = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:      c.s.Redis.Addrs,
			Username:   c.s.Redis.Username,
			Password:   c.s.Redis.Password,
			DB:         c.s.Redis.DB,
			MasterName: c.s.Redis.MasterName,
			// [RETRY_POLICY] min(attempt*50ms, 2s)
			MaxRetries:      3,
			MinRetryBackoff: 50 * time.Millisecond,
			MaxRetryBackoff: 2 * time.Second,
		})
		c.logger.Info("REDIS_CLIENT_CREATED", slog.String("addrs", strings.Join(c.s.Redis.Addrs, ",")))
	}
	return c.redis
}

// NATS dials the configured server on first call.
func (c *Clients) NATS() (*nats.Conn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.nats != nil {
		return c.nats, nil
	}
	nc, err := nats.Connect(c.s.NATS.URL,
		nats.Name(c.s.NATS.Name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			c.logger.Warn("NATS_DISCONNECTED", slog.Any("err", err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			c.logger.Info("NATS_RECONNECTED", slog.String("url", nc.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, err
	}
	c.nats = nc
	return nc, nil
}

func (c *Clients) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var errs []error
	if c.nats != nil {
		errs = append(errs, c.nats.Drain())
		c.nats = nil
	}
	if c.redis != nil {
		errs = append(errs, c.redis.Close())
		c.redis = nil
	}
	return errors.Join(errs...)
}

var Module = fx.Module(
	"clients",

	fx.Provide(New),

	// [LIFECYCLE] Ensures connection pools are closed gracefully on app shutdown
	fx.Invoke(func(lc fx.Lifecycle, clients *Clients) {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				return clients.Close()
			},
		})
	}),
)
