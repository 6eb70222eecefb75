package pubsub

import (
	"context"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/webitel/im-realtime-gateway/infra/pubsub/factory"
	"go.uber.org/fx"
)

// Provider owns the bus factory for the whole process.
type Provider struct {
	factory factory.Factory
}

func NewProvider(cfg factory.Config, logger *slog.Logger) (*Provider, error) {
	f, err := factory.New(cfg, watermill.NewSlogLogger(logger))
	if err != nil {
		return nil, err
	}
	logger.Info("PUBSUB_DRIVER_SELECTED",
		slog.String("driver", cfg.Driver),
		slog.String("consumer_group", cfg.ConsumerGroup))
	return &Provider{factory: f}, nil
}

func (p *Provider) GetFactory() factory.Factory { return p.factory }

var Module = fx.Module("pubsub",
	fx.Provide(NewProvider),
	fx.Invoke(func(lc fx.Lifecycle, p *Provider) {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				return p.factory.Close()
			},
		})
	}),
)
