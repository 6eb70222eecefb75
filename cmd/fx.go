package cmd

import (
	"log/slog"

	"github.com/webitel/im-realtime-gateway/config"
	clientdi "github.com/webitel/im-realtime-gateway/infra/client/di"
	"github.com/webitel/im-realtime-gateway/infra/metrics"
	infraotel "github.com/webitel/im-realtime-gateway/infra/otel"
	infrapubsub "github.com/webitel/im-realtime-gateway/infra/pubsub"
	httpserver "github.com/webitel/im-realtime-gateway/infra/server/http"
	"github.com/webitel/im-realtime-gateway/internal/domain/registry"
	"github.com/webitel/im-realtime-gateway/internal/handler/bus"
	"github.com/webitel/im-realtime-gateway/internal/handler/status"
	"github.com/webitel/im-realtime-gateway/internal/handler/ws"
	"github.com/webitel/im-realtime-gateway/internal/service"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
)

func NewApp(cfg *config.Config) *fx.App {
	return fx.New(
		fx.Provide(
			func() *config.Config { return cfg },
			cfg.RegistrySettings,
			cfg.ServiceSettings,
			cfg.BusSettings,
			cfg.PubSubConfig,
			cfg.ClientSettings,
			cfg.TracingSettings,
			cfg.HTTPSettings,
			cfg.SocketSettings,

			ProvideLogger,
			ProvideEncoder,
			ProvideBroker,
			ProvideMembershipStore,
			ProvideEventDispatcher,
		),
		fx.WithLogger(func(l *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: l}
		}),

		clientdi.Module,
		infraotel.Module,
		metrics.Module,
		infrapubsub.Module,
		registry.Module,
		service.Module,
		bus.Module,
		ws.Module,
		status.Module,
		httpserver.Module,
	)
}
