package bus

import (
	"log/slog"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/webitel/im-realtime-gateway/internal/adapter/pubsub"
	"github.com/webitel/im-realtime-gateway/internal/service"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Topics names the consumed bus topics. An empty topic disables its handler.
type Topics struct {
	MessageCreated  string
	ReactionCreated string
	ReactionRemoved string
	ReplyCreated    string
	StreamChunk     string
}

func DefaultTopics() Topics {
	return Topics{
		MessageCreated:  "message-created",
		ReactionCreated: "reaction-created",
		ReactionRemoved: "reaction-removed",
		ReplyCreated:    "reply-created",
		StreamChunk:     "ar-stream-chunk",
	}
}

// Settings tunes the consumer pipeline.
type Settings struct {
	Topics        Topics
	Retry         RetryPolicy
	Throttle      int64 // messages per second per handler, 0 disables
	Timeout       time.Duration
	CloseTimeout  time.Duration
	ConsumerGroup string
}

func DefaultSettings() Settings {
	return Settings{
		Topics:        DefaultTopics(),
		Retry:         DefaultRetryPolicy(),
		Throttle:      100,
		Timeout:       30 * time.Second,
		CloseTimeout:  30 * time.Second,
		ConsumerGroup: "realtime-gateway-group",
	}
}

type MessageHandler struct {
	bridge   service.Fanouter
	logger   *slog.Logger
	metrics  Metrics
	tracer   trace.Tracer
	settings Settings
}

func NewMessageHandler(bridge service.Fanouter, logger *slog.Logger, metrics Metrics, tracer trace.Tracer, settings Settings) *MessageHandler {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("")
	}
	return &MessageHandler{bridge: bridge, logger: logger, metrics: metrics, tracer: tracer, settings: settings}
}

func NewWatermillRouter(s Settings, logger *slog.Logger) (*message.Router, error) {
	return message.NewRouter(message.RouterConfig{CloseTimeout: s.CloseTimeout}, watermill.NewSlogLogger(logger))
}

// [REGISTRATION_PIPELINE]
func (h *MessageHandler) RegisterHandlers(router *message.Router, subProvider *pubsub.SubscriberProvider) error {
	t := h.settings.Topics
	configs := []struct {
		name    string
		topic   string
		handler message.NoPublishHandlerFunc
	}{
		{"ON_MESSAGE_CREATED", t.MessageCreated, Bind(h, t.MessageCreated, h.OnMessageCreated)},
		{"ON_REACTION_CREATED", t.ReactionCreated, Bind(h, t.ReactionCreated, h.OnReactionCreated)},
		{"ON_REACTION_REMOVED", t.ReactionRemoved, Bind(h, t.ReactionRemoved, h.OnReactionRemoved)},
		{"ON_REPLY_CREATED", t.ReplyCreated, Bind(h, t.ReplyCreated, h.OnReplyCreated)},
		{"ON_STREAM_CHUNK", t.StreamChunk, Bind(h, t.StreamChunk, h.OnStreamChunk)},
	}

	registered := 0
	for _, c := range configs {
		if c.topic == "" {
			continue
		}

		// [SHARED_CONSUMER_GROUP]
		// Every node joins the same group, each event is handled once fleet wide.
		sub, err := subProvider.Build(c.topic)
		if err != nil {
			return err
		}

		handler := router.AddConsumerHandler(c.name, c.topic, sub, c.handler)
		handler.AddMiddleware(h.middlewares()...)
		registered++
	}

	h.logger.Info("BUS_PIPELINE_READY",
		slog.String("consumer_group", h.settings.ConsumerGroup),
		slog.Int("handlers", registered))
	return nil
}

func (h *MessageHandler) middlewares() []message.HandlerMiddleware {
	chain := []message.HandlerMiddleware{
		TraceIDMiddleware,
		TracingMiddleware(h.tracer),
		LoggingMiddleware(h.logger),
		NewRetryMiddleware(h.settings.Retry, h.logger).Middleware,
	}
	if h.settings.Throttle > 0 {
		chain = append(chain, middleware.NewThrottle(h.settings.Throttle, time.Second).Middleware)
	}
	if h.settings.Timeout > 0 {
		chain = append(chain, middleware.Timeout(h.settings.Timeout))
	}
	return chain
}
