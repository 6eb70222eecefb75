package status

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/webitel/im-realtime-gateway/internal/domain/model"
	"github.com/webitel/im-realtime-gateway/internal/domain/registry"
	"go.uber.org/fx"
)

// StatsReader is the read side of the registry needed here.
type StatsReader interface {
	Stats(ctx context.Context) (*model.HubStats, error)
}

type Handler struct {
	stats  StatsReader
	logger *slog.Logger
}

func NewHandler(stats StatsReader, logger *slog.Logger) *Handler {
	return &Handler{stats: stats, logger: logger}
}

// Health answers liveness probes.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Stats serves the node-local registry snapshot.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	st, err := h.stats.Stats(r.Context())
	if err != nil {
		code := http.StatusInternalServerError
		if errors.Is(err, registry.ErrStopped) {
			code = http.StatusServiceUnavailable
		}
		h.logger.Warn("STATS_FAILED", slog.Any("err", err))
		http.Error(w, err.Error(), code)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(st)
}

var Module = fx.Module("status-handler",
	fx.Provide(func(r registry.Registrar, logger *slog.Logger) *Handler {
		return NewHandler(r, logger)
	}),
)
