package bus

import (
	"context"
	"log/slog"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/google/uuid"
	"github.com/webitel/im-realtime-gateway/internal/adapter/pubsub"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// [TRACE_ID_MIDDLEWARE]
// Ensures TraceID persistence through the call chain.
func TraceIDMiddleware(h message.HandlerFunc) message.HandlerFunc {
	return func(msg *message.Message) ([]*message.Message, error) {
		traceID := msg.Metadata.Get(pubsub.MetadataTraceID)
		if traceID == "" {
			traceID = uuid.NewString()
			msg.Metadata.Set(pubsub.MetadataTraceID, traceID)
		}

		ctx := context.WithValue(msg.Context(), pubsub.TraceIDKey{}, traceID)
		msg.SetContext(ctx)

		return h(msg)
	}
}

// [TRACING_MIDDLEWARE]
// One consumer span per delivery attempt.
func TracingMiddleware(tracer trace.Tracer) message.HandlerMiddleware {
	return func(h message.HandlerFunc) message.HandlerFunc {
		return func(msg *message.Message) ([]*message.Message, error) {
			topic := message.SubscribeTopicFromCtx(msg.Context())
			ctx, span := tracer.Start(msg.Context(), "bus.consume "+topic,
				trace.WithSpanKind(trace.SpanKindConsumer),
				trace.WithAttributes(
					attribute.String("messaging.destination.name", topic),
					attribute.String("messaging.message.id", msg.UUID),
					attribute.String("gateway.trace_id", msg.Metadata.Get(pubsub.MetadataTraceID)),
				))
			defer span.End()
			msg.SetContext(ctx)

			msgs, err := h(msg)
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
			}
			return msgs, err
		}
	}
}

// [LOGGING_MIDDLEWARE]
// Structured logging with latency and TraceID.
func LoggingMiddleware(logger *slog.Logger) message.HandlerMiddleware {
	return func(h message.HandlerFunc) message.HandlerFunc {
		return func(msg *message.Message) ([]*message.Message, error) {
			start := time.Now()
			msgs, err := h(msg)

			logger.Debug("MESSAGE_HANDLED",
				slog.String("msg_id", msg.UUID),
				slog.String("handler", message.HandlerNameFromCtx(msg.Context())),
				slog.String("trace_id", msg.Metadata.Get(pubsub.MetadataTraceID)),
				slog.Int64("duration_ms", time.Since(start).Milliseconds()),
				slog.Bool("success", err == nil),
			)
			return msgs, err
		}
	}
}

// RetryPolicy bounds in-process retries before a message is nacked.
type RetryPolicy struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:      3,
		InitialInterval: 2 * time.Second,
		MaxInterval:     15 * time.Second,
	}
}

// [RETRY_MIDDLEWARE]
func NewRetryMiddleware(p RetryPolicy, logger *slog.Logger) middleware.Retry {
	return middleware.Retry{
		MaxRetries:      p.MaxRetries,
		InitialInterval: p.InitialInterval,
		MaxInterval:     p.MaxInterval,
		Multiplier:      2.0,
		OnRetryHook: func(attempt int, delay time.Duration) {
			logger.Debug("HANDLER_RETRY", slog.Int("attempt", attempt), slog.Duration("delay", delay))
		},
	}
}
