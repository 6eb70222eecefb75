package registry

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/webitel/im-realtime-gateway/internal/domain/model"
)

// Interface guard
var _ Connector = (*connect)(nil)

// Transport is the socket underneath a connector. Ping sends a liveness probe
// and must be safe to call concurrently with the writer.
type Transport interface {
	Ping() error
	Close() error
}

// [CONNECTOR] THE INTERFACE FOR EXTERNAL LAYERS (REGISTRY/HANDLERS)
type Connector interface {
	GetID() uuid.UUID
	GetUserID() string
	GetIdentity() *model.Identity
	// Send never blocks. It reports false when the frame was shed.
	Send(f *model.Frame) bool
	Recv() <-chan *model.Frame
	Done() <-chan struct{}
	IsOpen() bool
	// Probe clears the liveness flag and reports whether it was set, i.e.
	// whether the previous probe was answered.
	Probe() bool
	Pong()
	Ping() error
	Close()
	Dropped() uint64
	CreatedAt() time.Time
}

// [CONNECT] CONCRETE IMPLEMENTATION (UNEXPORTED TO FORCE INTERFACE USAGE)
type connect struct {
	id        uuid.UUID
	identity  *model.Identity
	transport Transport
	createdAt time.Time
	ctx       context.Context
	cancelFn  context.CancelFunc
	sendCh    chan *model.Frame
	closeOnce sync.Once // [PROTECTION]
	open      atomic.Bool
	alive     atomic.Bool
	dropped   atomic.Uint64
}

// NewConnector wraps an authenticated transport. The connector starts OPEN and
// alive.
func NewConnector(identity *model.Identity, transport Transport, bufferSize int) Connector {
	if bufferSize <= 0 {
		bufferSize = 1
	}
	ctx, cancel := context.WithCancel(context.Background())

	c := &connect{
		id:        uuid.New(),
		identity:  identity,
		transport: transport,
		createdAt: time.Now(),
		ctx:       ctx,
		cancelFn:  cancel,
		sendCh:    make(chan *model.Frame, bufferSize),
	}
	c.open.Store(true)
	c.alive.Store(true)
	return c
}

func (c *connect) GetID() uuid.UUID             { return c.id }
func (c *connect) GetUserID() string            { return c.identity.UserID }
func (c *connect) GetIdentity() *model.Identity { return c.identity }
func (c *connect) Recv() <-chan *model.Frame    { return c.sendCh }
func (c *connect) Done() <-chan struct{}        { return c.ctx.Done() }
func (c *connect) IsOpen() bool                 { return c.open.Load() }
func (c *connect) Probe() bool                  { return c.alive.Swap(false) }
func (c *connect) Pong()                        { c.alive.Store(true) }
func (c *connect) Dropped() uint64              { return c.dropped.Load() }
func (c *connect) CreatedAt() time.Time         { return c.createdAt }

func (c *connect) Ping() error {
	if !c.IsOpen() {
		return ErrConnectionClosed
	}
	return c.transport.Ping()
}

// Send attempts to push a frame into the queue. If the queue is full, it tries
// to evict a lower priority frame to make room.
func (c *connect) Send(f *model.Frame) bool {
	select {
	// 1. [LIFECYCLE_GATE] Abort if the transport is already dead.
	case <-c.ctx.Done():
		return false
	default:
	}

	select {
	// 2. [PRIMARY_DELIVERY]
	case c.sendCh <- f:
		return true
	// 3. [BACKPRESSURE_THRESHOLD] The writer is not keeping up.
	default:
		return c.handleBackpressure(f)
	}
}

// handleBackpressure manages full buffers by dropping low-priority frames.
func (c *connect) handleBackpressure(f *model.Frame) bool {
	if f.Priority <= model.PriorityLow {
		c.dropped.Add(1)
		return false
	}

	select {
	case old := <-c.sendCh:
		if old.Priority < f.Priority {
			// Replaced a lower priority frame; the old one is lost.
			c.dropped.Add(1)
			select {
			case c.sendCh <- f:
				return true
			default:
			}
			c.dropped.Add(1)
			return false
		}
		// Same or higher priority, put it back (best effort).
		select {
		case c.sendCh <- old:
		default:
			c.dropped.Add(1)
		}
	default:
		// The writer drained the queue in the meantime.
		select {
		case c.sendCh <- f:
			return true
		default:
		}
	}

	c.dropped.Add(1)
	return false
}

// Close terminates the session. The send queue is never closed; writers stop
// on Done.
func (c *connect) Close() {
	// [IDEMPOTENCY_SHIELD]
	c.closeOnce.Do(func() {
		c.open.Store(false)
		c.cancelFn()
		if c.transport != nil {
			_ = c.transport.Close()
		}
	})
}
