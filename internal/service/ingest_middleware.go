package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/webitel/im-realtime-gateway/internal/domain/model"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ingestMiddleware implements [DECORATOR_PATTERN] to add observability
// to ingest publishing without touching business logic.
type ingestMiddleware struct {
	next   Ingester
	logger *slog.Logger
	tracer trace.Tracer
}

// NewIngestMiddleware creates a logging and tracing decorator for the Ingester.
func NewIngestMiddleware(next Ingester, logger *slog.Logger, tracer trace.Tracer) Ingester {
	return &ingestMiddleware{next: next, logger: logger, tracer: tracer}
}

func (m *ingestMiddleware) SendMessage(ctx context.Context, id *model.Identity, f model.SendFrame) error {
	return m.observe(ctx, "ingest.message.send", id, f.RoomID, func(ctx context.Context) error {
		return m.next.SendMessage(ctx, id, f)
	})
}

func (m *ingestMiddleware) React(ctx context.Context, id *model.Identity, f model.ReactionFrame) error {
	return m.observe(ctx, "ingest.message.reaction", id, f.RoomID, func(ctx context.Context) error {
		return m.next.React(ctx, id, f)
	})
}

func (m *ingestMiddleware) Reply(ctx context.Context, id *model.Identity, f model.ReplyFrame) error {
	return m.observe(ctx, "ingest.message.reply", id, f.RoomID, func(ctx context.Context) error {
		return m.next.Reply(ctx, id, f)
	})
}

func (m *ingestMiddleware) observe(ctx context.Context, op string, id *model.Identity, roomID string, fn func(context.Context) error) error {
	ctx, span := m.tracer.Start(ctx, op, trace.WithAttributes(
		attribute.String("room.id", roomID),
		attribute.String("user.id", id.UserID),
	))
	defer span.End()

	start := time.Now()
	err := fn(ctx)

	// [OBSERVABILITY] Scoped logging for performance auditing
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		m.logger.Error("INGEST_PUBLISH_FAILED",
			slog.String("op", op),
			slog.String("room_id", roomID),
			slog.String("user_id", id.UserID),
			slog.Int64("duration_ms", time.Since(start).Milliseconds()),
			slog.Any("err", err))
		return err
	}

	m.logger.Debug("INGEST_PUBLISHED",
		slog.String("op", op),
		slog.String("room_id", roomID),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()))
	return nil
}
