package service

import (
	"context"
	"log/slog"

	"github.com/webitel/im-realtime-gateway/internal/adapter/membership"
	"github.com/webitel/im-realtime-gateway/internal/adapter/pubsub"
	"github.com/webitel/im-realtime-gateway/internal/domain/model"
	"github.com/webitel/im-realtime-gateway/internal/domain/registry"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
)

// Settings is the service slice of the configuration.
type Settings struct {
	NodeID     string
	SendBuffer int
	Auth       AuthConfig
	Topics     IngestTopics
	Channels   model.Channels
}

var Module = fx.Module(
	"service",

	fx.Provide(
		// Domain services
		newAuther,
		fx.Annotate(
			func(pub ChannelPublisher, s Settings, l *slog.Logger) *Bridge {
				return NewBridge(pub, s.Channels, l)
			},
			fx.As(new(Fanouter)),
		),
		fx.Annotate(
			func(d pubsub.EventDispatcher, s Settings) *IngestService {
				return NewIngestService(d, s.Topics, s.NodeID)
			},
			fx.As(new(Ingester)),
		),
		fx.Annotate(
			func(r registry.Registrar, st membership.Store, in Ingester, enc FrameEncoder, l *slog.Logger, s Settings) *GatewayService {
				return NewGatewayService(r, st, in, enc, l, s.SendBuffer)
			},
			fx.As(new(Gateway)),
		),
	),

	// [DECORATION_LAYER] Intercept Ingester to add cross-cutting concerns
	fx.Decorate(func(orig Ingester, logger *slog.Logger, tracer trace.Tracer) Ingester {
		return NewIngestMiddleware(orig, logger, tracer)
	}),
)

func newAuther(lc fx.Lifecycle, s Settings) (Auther, error) {
	a, err := NewJWTAuther(s.Auth)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			a.Close()
			return nil
		},
	})
	return a, nil
}
