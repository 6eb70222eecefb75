package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/webitel/im-realtime-gateway/internal/domain/registry"
	"github.com/webitel/im-realtime-gateway/internal/handler/bus"
	"go.uber.org/fx"
)

const namespace = "gateway"

var (
	_ registry.Metrics = (*Collector)(nil)
	_ bus.Metrics      = (*Collector)(nil)
)

// Collector owns every Prometheus metric of the node.
type Collector struct {
	reg *prometheus.Registry

	connections prometheus.Gauge
	rooms       prometheus.Gauge
	channels    prometheus.Gauge

	delivered *prometheus.CounterVec // by frame type
	dropped   *prometheus.CounterVec // by frame type
	busEvents *prometheus.CounterVec // by topic, outcome

	presence   prometheus.Counter
	terminated prometheus.Counter
}

func New() (*Collector, error) {
	c := &Collector{
		reg: prometheus.NewRegistry(),

		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "registry",
			Name:      "connections",
			Help:      "Sockets currently attached to this node",
		}),
		rooms: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "registry",
			Name:      "rooms",
			Help:      "Rooms with at least one local socket",
		}),
		channels: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "broadcast",
			Name:      "channels",
			Help:      "Broadcast channels this node is subscribed to",
		}),
		delivered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "registry",
			Name:      "frames_delivered_total",
			Help:      "Frames enqueued to local sockets",
		}, []string{"type"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "registry",
			Name:      "frames_dropped_total",
			Help:      "Frames shed by socket backpressure",
		}, []string{"type"}),
		busEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bus",
			Name:      "events_total",
			Help:      "Consumed bus events by topic and outcome",
		}, []string{"topic", "outcome"}),
		presence: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "presence",
			Name:      "disconnects_published_total",
			Help:      "user.disconnected events published after the grace period",
		}),
		terminated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "heartbeat",
			Name:      "terminations_total",
			Help:      "Sockets terminated for missing heartbeats",
		}),
	}

	for _, col := range []prometheus.Collector{
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		c.connections, c.rooms, c.channels,
		c.delivered, c.dropped, c.busEvents,
		c.presence, c.terminated,
	} {
		if err := c.reg.Register(col); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{Registry: c.reg})
}

func (c *Collector) SetConnections(n int)            { c.connections.Set(float64(n)) }
func (c *Collector) SetRooms(n int)                  { c.rooms.Set(float64(n)) }
func (c *Collector) SetChannels(n int)               { c.channels.Set(float64(n)) }
func (c *Collector) FrameDelivered(frameType string) { c.delivered.WithLabelValues(frameType).Inc() }
func (c *Collector) FrameDropped(frameType string)   { c.dropped.WithLabelValues(frameType).Inc() }
func (c *Collector) PresencePublished()              { c.presence.Inc() }
func (c *Collector) HeartbeatTerminated()            { c.terminated.Inc() }

func (c *Collector) BusEvent(topic, outcome string) {
	c.busEvents.WithLabelValues(topic, outcome).Inc()
}

var Module = fx.Module("metrics",
	fx.Provide(
		New,
		func(c *Collector) registry.Metrics { return c },
		func(c *Collector) bus.Metrics { return c },
	),
)
