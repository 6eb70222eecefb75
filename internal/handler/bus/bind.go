package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/webitel/im-realtime-gateway/internal/domain/event"
)

// ErrPanic wraps a recovered handler panic. The message is nacked.
var ErrPanic = errors.New("handler panic")

// Outcomes reported per consumed message.
const (
	OutcomeDelivered = "delivered"
	OutcomeInvalid   = "invalid"
	OutcomeFailed    = "failed"
	OutcomePanic     = "panic"
)

// [INFRASTRUCTURE_BRIDGE]
// Bind connects Watermill to domain logic: panic recovery, decoding and
// validation. fn receives the validated event and the raw payload it was
// decoded from. The returned error decides between ack (nil) and nack.
func Bind[T any, PT interface {
	*T
	event.Eventer
}](h *MessageHandler, topic string, fn func(ctx context.Context, ev PT, raw []byte) error) message.NoPublishHandlerFunc {
	return func(msg *message.Message) (err error) {
		// [PANIC_RECOVERY]
		// The consumer survives, the message goes back for redelivery.
		defer func() {
			if r := recover(); r != nil {
				h.logger.Error("PANIC_RECOVERED",
					slog.Any("err", r),
					slog.String("stack", string(debug.Stack())),
					slog.String("msg_id", msg.UUID))
				h.metrics.BusEvent(topic, OutcomePanic)
				err = fmt.Errorf("%w: %v", ErrPanic, r)
			}
		}()

		// [DECODING]
		ev := PT(new(T))
		if err := json.Unmarshal(msg.Payload, ev); err != nil {
			h.logger.Warn("DECODE_FAILED", slog.String("topic", topic), slog.String("msg_id", msg.UUID), slog.Any("err", err))
			h.metrics.BusEvent(topic, OutcomeInvalid)
			return nil // ACK: poison pill protection.
		}

		if err := ev.Validate(); err != nil {
			h.logger.Warn("VALIDATION_FAILED", slog.String("topic", topic), slog.String("msg_id", msg.UUID), slog.Any("err", err))
			h.metrics.BusEvent(topic, OutcomeInvalid)
			return nil // ACK: redelivery cannot fix a bad payload.
		}

		// [EXECUTION]
		if err := fn(msg.Context(), ev, msg.Payload); err != nil {
			if errors.Is(err, event.ErrValidation) {
				h.logger.Warn("EVENT_REJECTED", slog.String("topic", topic), slog.String("event_id", ev.GetID()), slog.Any("err", err))
				h.metrics.BusEvent(topic, OutcomeInvalid)
				return nil
			}
			h.metrics.BusEvent(topic, OutcomeFailed)
			return err // NACK: transient failure triggers the retry policy.
		}

		h.metrics.BusEvent(topic, OutcomeDelivered)
		return nil
	}
}
