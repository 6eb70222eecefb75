package httpserver

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/webitel/im-realtime-gateway/infra/metrics"
	"github.com/webitel/im-realtime-gateway/infra/server/http/middleware"
	"github.com/webitel/im-realtime-gateway/internal/handler/status"
	"github.com/webitel/im-realtime-gateway/internal/handler/ws"
	"github.com/webitel/im-realtime-gateway/internal/service"
	"go.uber.org/fx"
)

// Route paths served by the node.
const (
	PathSocket  = "/ws"
	PathHealth  = "/healthz"
	PathStats   = "/stats"
	PathMetrics = "/metrics"
)

type Settings struct {
	Addr              string
	ReadHeaderTimeout time.Duration
	ShutdownTimeout   time.Duration
}

// NewRouter mounts the socket endpoint behind the handshake check and the
// operational endpoints next to it.
func NewRouter(
	socket *ws.WSHandler,
	st *status.Handler,
	auther service.Auther,
	collector *metrics.Collector,
	logger *slog.Logger,
) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RealIP, chimw.Recoverer)

	r.With(middleware.NewAuthMiddleware(auther, logger)).Get(PathSocket, socket.ServeHTTP)
	r.Get(PathHealth, st.Health)
	r.Get(PathStats, st.Stats)
	if collector != nil {
		r.Method(http.MethodGet, PathMetrics, collector.Handler())
	}
	return r
}

type Server struct {
	srv    *http.Server
	s      Settings
	logger *slog.Logger
}

func NewServer(s Settings, h http.Handler, logger *slog.Logger) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              s.Addr,
			Handler:           h,
			ReadHeaderTimeout: s.ReadHeaderTimeout,
		},
		s:      s,
		logger: logger,
	}
}

// Start binds the listener synchronously so that address errors fail startup.
func (s *Server) Start(context.Context) error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return err
	}
	s.logger.Info("HTTP_SERVER_LISTENING", slog.String("addr", ln.Addr().String()))

	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP_SERVER_FAILED", slog.Any("err", err))
		}
	}()
	return nil
}

// Stop stops accepting handshakes. Hijacked sockets are closed by the registry.
func (s *Server) Stop(ctx context.Context) error {
	if s.s.ShutdownTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.s.ShutdownTimeout)
		defer cancel()
	}
	return s.srv.Shutdown(ctx)
}

type routerParams struct {
	fx.In

	Socket    *ws.WSHandler
	Status    *status.Handler
	Auther    service.Auther
	Collector *metrics.Collector `optional:"true"`
	Logger    *slog.Logger
}

var Module = fx.Module("http-server",
	fx.Provide(
		func(p routerParams) http.Handler {
			return NewRouter(p.Socket, p.Status, p.Auther, p.Collector, p.Logger)
		},
		NewServer,
	),
	fx.Invoke(func(lc fx.Lifecycle, s *Server) {
		lc.Append(fx.Hook{OnStart: s.Start, OnStop: s.Stop})
	}),
)
