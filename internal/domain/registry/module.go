package registry

import (
	"context"
	"log/slog"
	"time"

	"github.com/webitel/im-realtime-gateway/internal/domain/model"
	"go.uber.org/fx"
)

// Settings is the registry slice of the service configuration.
type Settings struct {
	NodeID            string
	GracePeriod       time.Duration
	HeartbeatInterval time.Duration
	InboxSize         int
	Channels          model.Channels
}

type Params struct {
	fx.In

	Settings Settings
	Broker   Broker
	Encoder  FrameEncoder
	Logger   *slog.Logger
	Metrics  Metrics `optional:"true"`
}

var Module = fx.Module("registry",
	fx.Provide(
		// [CLEAN_INJECTION] Configure Registry using Functional Options
		func(p Params) *Registry {
			return New(p.Broker, p.Encoder,
				WithNodeID(p.Settings.NodeID),
				WithGracePeriod(p.Settings.GracePeriod),
				WithInboxSize(p.Settings.InboxSize),
				WithChannels(p.Settings.Channels),
				WithLogger(p.Logger),
				WithMetrics(p.Metrics),
			)
		},
		func(r *Registry) Registrar { return r },
		func(r *Registry, s Settings, l *slog.Logger) *Monitor {
			return NewMonitor(r, s.HeartbeatInterval, l)
		},
	),
	fx.Invoke(func(lc fx.Lifecycle, r *Registry, m *Monitor) {
		lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				if err := r.Start(ctx); err != nil {
					return err
				}
				m.Start()
				return nil
			},
			OnStop: func(ctx context.Context) error {
				m.Stop()
				r.Stop() // [GRACEFUL_SHUTDOWN] Stop the actor and close sockets
				return nil
			},
		})
	}),
)
