package pubsub

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
	"github.com/webitel/im-realtime-gateway/infra/pubsub/factory"
	"github.com/webitel/im-realtime-gateway/internal/domain/model"
	"go.opentelemetry.io/otel/trace"
)

// Metadata keys attached to every outbound message.
const (
	MetadataEventID    = "event_id"
	MetadataNodeID     = "node_id"
	MetadataReceivedAt = "received_at"
	MetadataTraceID    = "trace_id"
)

// EventDispatcher defines the high-level contract for outgoing events.
// This allows the service to stay agnostic of the transport implementation.
type EventDispatcher interface {
	Publish(ctx context.Context, ev model.OutboundEventer) error
}

// eventDispatcher is the concrete implementation (private).
type eventDispatcher struct {
	publisher message.Publisher
}

// NewEventDispatcher returns the interface instead of the pointer to the struct.
func NewEventDispatcher(pub message.Publisher) EventDispatcher {
	return &eventDispatcher{publisher: pub}
}

func (d *eventDispatcher) Publish(ctx context.Context, ev model.OutboundEventer) error {
	if ev == nil {
		return fmt.Errorf("event dispatcher: cannot publish nil event")
	}

	payload, err := ev.ToJSON()
	if err != nil {
		return fmt.Errorf("event dispatcher: marshal failure: %w", err)
	}

	msg := message.NewMessage(ev.GetID(), payload)
	msg.SetContext(ctx)
	msg.Metadata.Set(MetadataEventID, ev.GetID())
	msg.Metadata.Set(MetadataTraceID, traceID(ctx))
	msg.Metadata.Set(factory.MetadataPartitionKey, ev.GetPartitionKey())

	if o, ok := ev.(*model.OutboundEvent); ok {
		msg.Metadata.Set(MetadataNodeID, o.NodeID)
		msg.Metadata.Set(MetadataReceivedAt, o.ReceivedAt.UTC().Format(time.RFC3339Nano))
	}

	if err := d.publisher.Publish(ev.GetTopic(), msg); err != nil {
		return fmt.Errorf("event dispatcher: failed to publish to topic %s: %w", ev.GetTopic(), err)
	}
	return nil
}

// traceID prefers the active span, then the id carried by bus middleware.
func traceID(ctx context.Context) string {
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		return sc.TraceID().String()
	}
	if id, ok := ctx.Value(TraceIDKey{}).(string); ok && id != "" {
		return id
	}
	return uuid.NewString()
}

// TraceIDKey is the context key bus middleware stores the trace id under.
type TraceIDKey struct{}
