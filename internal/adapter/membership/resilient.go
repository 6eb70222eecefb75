package membership

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/sony/gobreaker"
)

var _ Store = (*Resilient)(nil)

// RetryPolicy bounds how hard a single store call tries before giving up, and
// when the breaker stops calling the store at all.
type RetryPolicy struct {
	MaxTries        uint
	InitialInterval time.Duration
	MaxInterval     time.Duration
	// FailureThreshold consecutive failures open the breaker.
	FailureThreshold uint32
	// OpenTimeout is how long the breaker stays open before a trial call.
	OpenTimeout time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxTries:         3,
		InitialInterval:  50 * time.Millisecond,
		MaxInterval:      2 * time.Second,
		FailureThreshold: 5,
		OpenTimeout:      10 * time.Second,
	}
}

// Resilient wraps a Store with bounded exponential retry inside a circuit
// breaker. An open breaker fails fast with ErrStoreUnavailable.
type Resilient struct {
	next   Store
	cb     *gobreaker.CircuitBreaker
	policy RetryPolicy
	logger *slog.Logger
}

func NewResilient(next Store, policy RetryPolicy, logger *slog.Logger) *Resilient {
	if policy.MaxTries == 0 {
		policy.MaxTries = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	threshold := policy.FailureThreshold
	if threshold == 0 {
		threshold = DefaultRetryPolicy().FailureThreshold
	}

	r := &Resilient{next: next, policy: policy, logger: logger}
	r.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "membership",
		MaxRequests: 1,
		Timeout:     policy.OpenTimeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			// Caller cancellations say nothing about store health.
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("STORE_BREAKER_STATE",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()))
		},
	})
	return r
}

// State exposes the breaker state for health reporting.
func (r *Resilient) State() gobreaker.State { return r.cb.State() }

func (r *Resilient) IsMember(ctx context.Context, roomID, userID string) (bool, error) {
	return call(ctx, r, "is_member", func(ctx context.Context) (bool, error) {
		return r.next.IsMember(ctx, roomID, userID)
	})
}

func (r *Resilient) AddMember(ctx context.Context, roomID, userID string) error {
	_, err := call(ctx, r, "add_member", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, r.next.AddMember(ctx, roomID, userID)
	})
	return err
}

func (r *Resilient) Members(ctx context.Context, roomID string) ([]string, error) {
	return call(ctx, r, "members", func(ctx context.Context) ([]string, error) {
		return r.next.Members(ctx, roomID)
	})
}

func (r *Resilient) UserRooms(ctx context.Context, userID string) ([]string, error) {
	return call(ctx, r, "user_rooms", func(ctx context.Context) ([]string, error) {
		return r.next.UserRooms(ctx, userID)
	})
}

func (r *Resilient) Touch(ctx context.Context, userID string) error {
	_, err := call(ctx, r, "touch", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, r.next.Touch(ctx, userID)
	})
	return err
}

func call[T any](ctx context.Context, r *Resilient, op string, fn func(context.Context) (T, error)) (T, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.policy.InitialInterval
	b.MaxInterval = r.policy.MaxInterval

	attempt := 0
	return backoff.Retry(ctx, func() (T, error) {
		attempt++
		var zero T

		v, err := r.cb.Execute(func() (any, error) { return fn(ctx) })
		switch {
		case err == nil:
			return v.(T), nil
		case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
			return zero, backoff.Permanent(fmt.Errorf("%w: %s", ErrStoreUnavailable, op))
		case ctx.Err() != nil:
			return zero, backoff.Permanent(err)
		}

		r.logger.Debug("STORE_CALL_FAILED",
			slog.String("op", op),
			slog.Int("attempt", attempt),
			slog.Any("err", err))
		return zero, err
	}, backoff.WithBackOff(b), backoff.WithMaxTries(r.policy.MaxTries))
}
