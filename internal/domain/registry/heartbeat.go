package registry

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// probeConcurrency bounds the pings and closes in flight during one sweep.
const probeConcurrency = 64

// Monitor probes every local connection on a fixed interval. A connection that
// left the previous probe unanswered is terminated and detached.
type Monitor struct {
	reg      *Registry
	interval time.Duration
	logger   *slog.Logger

	stopCh   chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

func NewMonitor(reg *Registry, interval time.Duration, logger *slog.Logger) *Monitor {
	if interval <= 0 {
		interval = DefaultHeartbeatInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{
		reg:      reg,
		interval: interval,
		logger:   logger,
		stopCh:   make(chan struct{}),
	}
}

func (m *Monitor) Start() {
	m.wg.Add(1)
	go m.run()
}

func (m *Monitor) Stop() {
	m.stopOnce.Do(func() {
		close(m.stopCh)
		m.wg.Wait()
	})
}

func (m *Monitor) run() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.Sweep(context.Background())
		}
	}
}

// Sweep runs one probe round and returns the number of terminated connections.
// Probes run concurrently so a stalled socket only delays itself.
func (m *Monitor) Sweep(ctx context.Context) int {
	conns, err := m.reg.Connections(ctx)
	if err != nil {
		return 0
	}

	var (
		terminated atomic.Int32
		g          errgroup.Group
	)
	g.SetLimit(probeConcurrency)
	for _, c := range conns {
		g.Go(func() error {
			if m.probe(ctx, c) {
				terminated.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()
	return int(terminated.Load())
}

// probe pings a live connection, or terminates one that left the previous
// round unanswered. It reports whether the connection was terminated.
func (m *Monitor) probe(ctx context.Context, c Connector) bool {
	if c.Probe() {
		if err := c.Ping(); err != nil {
			m.logger.Debug("HEARTBEAT_PING_FAILED", slog.String("conn_id", c.GetID().String()), slog.Any("err", err))
		}
		return false
	}

	// [ZOMBIE] no pong since the last round.
	m.logger.Info("HEARTBEAT_TERMINATE",
		slog.String("conn_id", c.GetID().String()),
		slog.String("user_id", c.GetUserID()))
	c.Close()
	if err := m.reg.Detach(ctx, c.GetID()); err != nil {
		return false
	}
	m.reg.metrics.HeartbeatTerminated()
	return true
}
