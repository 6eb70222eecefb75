package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/webitel/im-realtime-gateway/config"
	clientdi "github.com/webitel/im-realtime-gateway/infra/client/di"
	"github.com/webitel/im-realtime-gateway/internal/adapter/broadcast"
	"github.com/webitel/im-realtime-gateway/internal/adapter/membership"
	"github.com/webitel/im-realtime-gateway/internal/adapter/pubsub"
	"github.com/webitel/im-realtime-gateway/internal/domain/registry"
	wsmarshaller "github.com/webitel/im-realtime-gateway/internal/handler/marshaller/ws"
	"github.com/webitel/im-realtime-gateway/internal/service"
	"go.uber.org/fx"
	"gopkg.in/natefinch/lumberjack.v2"
)

// ProvideLogger builds the process logger and installs it as the default.
func ProvideLogger(cfg *config.Config) *slog.Logger {
	var out io.Writer = os.Stdout
	if cfg.Log.File != "" {
		out = io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   cfg.Log.File,
			MaxSize:    cfg.Log.MaxSizeMB,
			MaxBackups: cfg.Log.MaxBackups,
			MaxAge:     cfg.Log.MaxAgeDays,
			Compress:   true,
		})
	}

	opts := &slog.HandlerOptions{Level: cfg.LogLevel}
	var h slog.Handler
	if cfg.Log.Format == "text" {
		h = slog.NewTextHandler(out, opts)
	} else {
		h = slog.NewJSONHandler(out, opts)
	}

	logger := slog.New(h).With(
		slog.String("service", ServiceName),
		slog.String("node_id", cfg.Node.ID),
		slog.String("version", version),
	)
	slog.SetDefault(logger)
	return logger
}

type encoderOut struct {
	fx.Out

	Registry registry.FrameEncoder
	Service  service.FrameEncoder
}

// ProvideEncoder shares one wire encoder between the registry and the gateway.
func ProvideEncoder() encoderOut {
	enc := wsmarshaller.NewEncoder()
	return encoderOut{Registry: enc, Service: enc}
}

type brokerOut struct {
	fx.Out

	Broker    broadcast.Broker
	Registry  registry.Broker
	Publisher service.ChannelPublisher
}

// ProvideBroker selects the broadcast fabric.
func ProvideBroker(lc fx.Lifecycle, cfg *config.Config, clients *clientdi.Clients, logger *slog.Logger) (brokerOut, error) {
	var b broadcast.Broker
	switch cfg.Broadcast.Driver {
	case broadcast.DriverRedis:
		b = broadcast.NewRedisBroker(clients.Redis(), logger, cfg.Broadcast.BufferSize)
	case broadcast.DriverNATS:
		nc, err := clients.NATS()
		if err != nil {
			return brokerOut{}, fmt.Errorf("broadcast: %w", err)
		}
		b = broadcast.NewNATSBroker(nc, cfg.Broadcast.NATSSubjectPrefix, logger, cfg.Broadcast.BufferSize)
	case broadcast.DriverMemory:
		b = broadcast.NewBus().Node(cfg.Broadcast.BufferSize)
	default:
		return brokerOut{}, fmt.Errorf("broadcast: unknown driver %q", cfg.Broadcast.Driver)
	}

	logger.Info("BROADCAST_DRIVER_SELECTED", slog.String("driver", cfg.Broadcast.Driver))
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error { return b.Close() },
	})
	return brokerOut{Broker: b, Registry: b, Publisher: b}, nil
}

// ProvideMembershipStore wraps the selected store with retry and a breaker.
func ProvideMembershipStore(cfg *config.Config, clients *clientdi.Clients, logger *slog.Logger) membership.Store {
	var store membership.Store
	if cfg.Membership.Driver == "memory" {
		store = membership.NewMemoryStore()
	} else {
		store = membership.NewRedisStore(clients.Redis(), cfg.MembershipKeys(), cfg.Membership.UserRoomsTTL)
	}
	return membership.NewResilient(store, cfg.MembershipRetry(), logger)
}

func ProvideEventDispatcher(pp *pubsub.PublisherProvider) (pubsub.EventDispatcher, error) {
	pub, err := pp.Build()
	if err != nil {
		return nil, err
	}
	return pubsub.NewEventDispatcher(pub), nil
}
