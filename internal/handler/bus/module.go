package bus

import (
	"context"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill/message"
	pubsubadapter "github.com/webitel/im-realtime-gateway/internal/adapter/pubsub"
	"github.com/webitel/im-realtime-gateway/internal/service"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
)

type Params struct {
	fx.In

	Settings Settings
	Bridge   service.Fanouter
	Logger   *slog.Logger
	Metrics  Metrics      `optional:"true"`
	Tracer   trace.Tracer `optional:"true"`
}

func newMessageHandler(p Params) *MessageHandler {
	return NewMessageHandler(p.Bridge, p.Logger, p.Metrics, p.Tracer, p.Settings)
}

var Module = fx.Module("bus-handler",
	fx.Provide(
		pubsubadapter.NewPublisherProvider,
		pubsubadapter.NewSubscriberProvider,

		newMessageHandler,
		NewWatermillRouter,
	),

	fx.Invoke(
		func(h *MessageHandler, router *message.Router, sp *pubsubadapter.SubscriberProvider) error {
			return h.RegisterHandlers(router, sp)
		},
		runRouter,
	),
)

// runRouter starts consuming once the rest of the graph is up and drains
// in-flight handlers on stop.
func runRouter(lc fx.Lifecycle, router *message.Router, logger *slog.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := router.Run(context.Background()); err != nil {
					logger.Error("BUS_ROUTER_STOPPED", slog.Any("err", err))
				}
			}()
			select {
			case <-router.Running():
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
		OnStop: func(context.Context) error {
			return router.Close()
		},
	})
}
