package registry

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/webitel/im-realtime-gateway/internal/domain/event"
)

const presencePublishTimeout = 5 * time.Second

// graceTimer is the cancellable handle protecting one user's presence.
type graceTimer struct {
	userID string
	timer  *time.Timer
}

func (g *graceTimer) stop() bool { return g.timer.Stop() }

// scheduleGrace arms the presence-lost timer of a user whose last local
// connection just closed. The callback only posts to the inbox; the expiry
// decision runs on the loop.
func (r *Registry) scheduleGrace(userID string) {
	r.cancelGrace(userID)

	g := &graceTimer{userID: userID}
	g.timer = time.AfterFunc(r.config.gracePeriod, func() {
		r.post(func() { r.expireGrace(g) })
	})
	r.grace[userID] = g

	r.logger.Debug("GRACE_SCHEDULED", slog.String("user_id", userID), slog.Duration("after", r.config.gracePeriod))
}

// cancelGrace stops and forgets the user's timer. It reports whether one
// was pending.
func (r *Registry) cancelGrace(userID string) bool {
	g, ok := r.grace[userID]
	if !ok {
		return false
	}
	g.stop()
	delete(r.grace, userID)
	return true
}

// expireGrace publishes presence loss if g is still the user's current handle
// and the user has no live connection on this node.
func (r *Registry) expireGrace(g *graceTimer) {
	if r.grace[g.userID] != g {
		// Cancelled or replaced while the callback was in flight.
		return
	}
	delete(r.grace, g.userID)

	if len(r.users[g.userID]) > 0 {
		return
	}

	payload, err := json.Marshal(event.NewUserDisconnected(g.userID, time.Now()))
	if err != nil {
		r.logger.Error("PRESENCE_ENCODE_FAILED", slog.String("user_id", g.userID), slog.Any("err", err))
		return
	}

	// Publishing is I/O; keep it off the loop.
	r.bgWg.Add(1)
	go func() {
		defer r.bgWg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), presencePublishTimeout)
		defer cancel()

		if err := r.broker.Publish(ctx, r.config.channels.Events, payload); err != nil {
			r.logger.Error("PRESENCE_PUBLISH_FAILED", slog.String("user_id", g.userID), slog.Any("err", err))
			return
		}
		r.metrics.PresencePublished()
		r.logger.Info("USER_DISCONNECTED", slog.String("user_id", g.userID))
	}()
}
