/*
Package registry owns the node-local connection state of the gateway.

Key Architectural Concepts:
  - Single Actor: one goroutine owns RoomLocalSet, UserConnectionSet, the
    refcounted broadcast subscriptions and the disconnect grace timers. Socket
    handlers, the heartbeat monitor, timers and broadcast deliveries all talk
    to it through its inbox, so no state is shared between goroutines.
  - Refcounted Subscriptions: a room channel is subscribed on the 0->1
    transition of its local set and unsubscribed on 1->0.
  - Marshal Once: a broadcast is encoded a single time and the same frame is
    queued on every local socket of the room.
  - Non-blocking Delivery: sockets have bounded queues with priority eviction,
    a slow reader never stalls the actor.
*/
package registry

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/webitel/im-realtime-gateway/internal/domain/event"
	"github.com/webitel/im-realtime-gateway/internal/domain/model"
)

var (
	ErrStopped           = errors.New("registry stopped")
	ErrUnknownConnection = errors.New("unknown connection")
	ErrConnectionClosed  = errors.New("connection closed")
)

// Broker is the pub/sub fabric shared by the fleet.
type Broker interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) error
	Unsubscribe(ctx context.Context, channel string) error
	Messages() <-chan model.Delivery
}

// FrameEncoder produces wire frames for local sockets.
type FrameEncoder interface {
	Broadcast(payload []byte) (*model.Frame, error)
	System(frameType string, payload any) (*model.Frame, error)
}

// Registrar is the API the socket layer and the heartbeat monitor use.
type Registrar interface {
	Attach(ctx context.Context, conn Connector) error
	Detach(ctx context.Context, connID uuid.UUID) error
	Join(ctx context.Context, connID uuid.UUID, roomID string, stream bool) error
	Leave(ctx context.Context, connID uuid.UUID, roomID string) error
	Connections(ctx context.Context) ([]Connector, error)
	Subscriptions(ctx context.Context) ([]string, error)
	Stats(ctx context.Context) (*model.HubStats, error)
}

var _ Registrar = (*Registry)(nil)

type member struct {
	conn Connector
	// rooms maps joined room ids to whether the agent stream was requested.
	rooms map[string]bool
}

type roomSet map[uuid.UUID]struct{}

// Registry implements the node-local actor.
type Registry struct {
	config  config
	broker  Broker
	encoder FrameEncoder
	logger  *slog.Logger
	metrics Metrics

	inbox    chan func()
	done     chan struct{}
	stopOnce sync.Once
	loopWg   sync.WaitGroup
	bgWg     sync.WaitGroup
	started  time.Time

	// [ACTOR_STATE] touched only by the loop goroutine.
	conns   map[uuid.UUID]*member
	users   map[string]roomSet
	rooms   map[string]roomSet
	streams map[string]roomSet
	subs    map[string]struct{}
	grace   map[string]*graceTimer
}

func New(broker Broker, encoder FrameEncoder, opts ...Option) *Registry {
	r := &Registry{
		config: config{
			gracePeriod: DefaultGracePeriod,
			inboxSize:   DefaultInboxSize,
			channels:    model.DefaultChannels(),
		},
		broker:  broker,
		encoder: encoder,
		logger:  slog.Default(),
		metrics: noopMetrics{},
		done:    make(chan struct{}),
		conns:   make(map[uuid.UUID]*member),
		users:   make(map[string]roomSet),
		rooms:   make(map[string]roomSet),
		streams: make(map[string]roomSet),
		subs:    make(map[string]struct{}),
		grace:   make(map[string]*graceTimer),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.inbox = make(chan func(), r.config.inboxSize)
	return r
}

// Start subscribes the room events channel and runs the actor loop.
func (r *Registry) Start(ctx context.Context) error {
	if err := r.broker.Subscribe(ctx, r.config.channels.Events); err != nil {
		return err
	}
	r.subs[r.config.channels.Events] = struct{}{}
	r.started = time.Now()

	r.loopWg.Add(1)
	go r.loop()

	r.logger.Info("REGISTRY_STARTED",
		slog.String("node_id", r.config.nodeID),
		slog.Duration("grace", r.config.gracePeriod))
	return nil
}

// Stop terminates the loop, cancels timers and closes every local socket.
func (r *Registry) Stop() {
	r.stopOnce.Do(func() {
		close(r.done)
		r.loopWg.Wait()

		for user, g := range r.grace {
			g.stop()
			delete(r.grace, user)
		}
		for _, m := range r.conns {
			m.conn.Close()
		}
		r.bgWg.Wait()

		r.logger.Info("REGISTRY_STOPPED", slog.Int("connections", len(r.conns)))
	})
}

func (r *Registry) loop() {
	defer r.loopWg.Done()

	msgs := r.broker.Messages()
	for {
		select {
		case <-r.done:
			return
		case cmd := <-r.inbox:
			cmd()
		case d, ok := <-msgs:
			if !ok {
				r.logger.Warn("BROADCAST_STREAM_CLOSED")
				msgs = nil
				continue
			}
			r.dispatch(d)
		}
	}
}

// exec runs fn on the loop and waits for it to finish.
func (r *Registry) exec(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	select {
	case r.inbox <- func() { fn(); close(finished) }:
	case <-r.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-finished:
		return nil
	case <-r.done:
		// The loop may exit before picking a buffered command.
		select {
		case <-finished:
			return nil
		default:
			return ErrStopped
		}
	}
}

// post enqueues fn without waiting for it.
func (r *Registry) post(fn func()) {
	select {
	case r.inbox <- fn:
	case <-r.done:
	}
}

// Attach registers an authenticated connection and cancels any pending
// presence-lost timer of its user.
func (r *Registry) Attach(ctx context.Context, conn Connector) error {
	return r.exec(ctx, func() {
		id, user := conn.GetID(), conn.GetUserID()
		r.conns[id] = &member{conn: conn, rooms: make(map[string]bool)}

		set, ok := r.users[user]
		if !ok {
			set = make(roomSet)
			r.users[user] = set
		}
		set[id] = struct{}{}

		if r.cancelGrace(user) {
			r.logger.Debug("GRACE_CANCELLED", slog.String("user_id", user))
		}
		r.reportGauges()
	})
}

// Detach removes a connection from every room it joined. It is the close path
// for both client disconnects and heartbeat terminations.
func (r *Registry) Detach(ctx context.Context, connID uuid.UUID) error {
	var err error
	execErr := r.exec(ctx, func() {
		m, ok := r.conns[connID]
		if !ok {
			err = ErrUnknownConnection
			return
		}
		m.conn.Close()

		for roomID := range m.rooms {
			r.removeFromRoom(ctx, m, roomID)
		}
		delete(r.conns, connID)

		user := m.conn.GetUserID()
		if set, ok := r.users[user]; ok {
			delete(set, connID)
			if len(set) == 0 {
				delete(r.users, user)
				r.scheduleGrace(user)
			}
		}
		r.reportGauges()
	})
	if execErr != nil {
		return execErr
	}
	return err
}

// Join adds a connection to a room. The room id must already be normalized.
// Joining twice is a no-op; requesting the stream on a later join adds it.
func (r *Registry) Join(ctx context.Context, connID uuid.UUID, roomID string, stream bool) error {
	var err error
	execErr := r.exec(ctx, func() {
		m, ok := r.conns[connID]
		if !ok || !m.conn.IsOpen() {
			err = ErrUnknownConnection
			return
		}

		joined, had := m.rooms[roomID]
		if !had {
			if err = r.addTo(ctx, r.rooms, model.StreamChat, roomID, connID); err != nil {
				return
			}
			m.rooms[roomID] = false
		}
		if stream && !joined {
			if err = r.addTo(ctx, r.streams, model.StreamAgent, roomID, connID); err != nil {
				if !had {
					r.removeFromRoom(ctx, m, roomID)
				}
				return
			}
			m.rooms[roomID] = true
		}
		r.reportGauges()
	})
	if execErr != nil {
		return execErr
	}
	return err
}

// Leave removes a connection from a single room.
func (r *Registry) Leave(ctx context.Context, connID uuid.UUID, roomID string) error {
	var err error
	execErr := r.exec(ctx, func() {
		m, ok := r.conns[connID]
		if !ok {
			err = ErrUnknownConnection
			return
		}
		if _, ok := m.rooms[roomID]; ok {
			r.removeFromRoom(ctx, m, roomID)
			r.reportGauges()
		}
	})
	if execErr != nil {
		return execErr
	}
	return err
}

// Connections returns a snapshot of every local connection.
func (r *Registry) Connections(ctx context.Context) ([]Connector, error) {
	var out []Connector
	err := r.exec(ctx, func() {
		out = make([]Connector, 0, len(r.conns))
		for _, m := range r.conns {
			out = append(out, m.conn)
		}
	})
	return out, err
}

// Subscriptions returns the sorted broadcast channels this node listens on.
func (r *Registry) Subscriptions(ctx context.Context) ([]string, error) {
	var out []string
	err := r.exec(ctx, func() {
		out = make([]string, 0, len(r.subs))
		for ch := range r.subs {
			out = append(out, ch)
		}
	})
	sort.Strings(out)
	return out, err
}

func (r *Registry) Stats(ctx context.Context) (*model.HubStats, error) {
	var st *model.HubStats
	err := r.exec(ctx, func() {
		st = &model.HubStats{
			NodeID:           r.config.nodeID,
			TotalUsers:       len(r.users),
			TotalConnections: len(r.conns),
			Channels:         len(r.subs),
			PendingGrace:     len(r.grace),
			Uptime:           time.Since(r.started),
			Rooms:            make([]model.RoomStats, 0, len(r.rooms)),
		}
		for roomID, set := range r.rooms {
			rs := model.RoomStats{RoomID: roomID, Sockets: len(set)}
			for id := range set {
				if r.conns[id].conn.IsOpen() {
					rs.OpenSockets++
				}
			}
			st.Rooms = append(st.Rooms, rs)
		}
	})
	if st != nil {
		sort.Slice(st.Rooms, func(i, j int) bool { return st.Rooms[i].RoomID < st.Rooms[j].RoomID })
	}
	return st, err
}

// addTo inserts connID into sets[roomID], subscribing the channel on the
// first member. On subscribe failure the set is left untouched.
func (r *Registry) addTo(ctx context.Context, sets map[string]roomSet, stream model.Stream, roomID string, connID uuid.UUID) error {
	set, ok := sets[roomID]
	if !ok || len(set) == 0 {
		channel := r.config.channels.For(stream, roomID)
		if err := r.broker.Subscribe(ctx, channel); err != nil {
			r.logger.Error("CHANNEL_SUBSCRIBE_FAILED", slog.String("channel", channel), slog.Any("err", err))
			return err
		}
		r.subs[channel] = struct{}{}
		set = make(roomSet)
		sets[roomID] = set
		r.logger.Debug("CHANNEL_SUBSCRIBED", slog.String("channel", channel))
	}
	set[connID] = struct{}{}
	return nil
}

func (r *Registry) removeFrom(ctx context.Context, sets map[string]roomSet, stream model.Stream, roomID string, connID uuid.UUID) {
	set, ok := sets[roomID]
	if !ok {
		return
	}
	delete(set, connID)
	if len(set) > 0 {
		return
	}
	delete(sets, roomID)
	r.unsubscribe(ctx, r.config.channels.For(stream, roomID))
}

func (r *Registry) removeFromRoom(ctx context.Context, m *member, roomID string) {
	id := m.conn.GetID()
	r.removeFrom(ctx, r.rooms, model.StreamChat, roomID, id)
	r.removeFrom(ctx, r.streams, model.StreamAgent, roomID, id)
	delete(m.rooms, roomID)
}

// unsubscribe drops the channel from local state even when the broker call
// fails; a stale subscription only costs filtered traffic.
func (r *Registry) unsubscribe(ctx context.Context, channel string) {
	if _, ok := r.subs[channel]; !ok {
		return
	}
	delete(r.subs, channel)
	if err := r.broker.Unsubscribe(context.WithoutCancel(ctx), channel); err != nil {
		r.logger.Warn("CHANNEL_UNSUBSCRIBE_FAILED", slog.String("channel", channel), slog.Any("err", err))
		return
	}
	r.logger.Debug("CHANNEL_UNSUBSCRIBED", slog.String("channel", channel))
}

// dispatch routes one broadcast delivery to local sockets.
func (r *Registry) dispatch(d model.Delivery) {
	if d.Channel == r.config.channels.Events {
		r.handleRoomEvent(d.Payload)
		return
	}

	roomID, stream, ok := r.config.channels.Parse(d.Channel)
	if !ok {
		r.logger.Debug("BROADCAST_UNKNOWN_CHANNEL", slog.String("channel", d.Channel))
		return
	}

	set := r.rooms[roomID]
	if stream == model.StreamAgent {
		set = r.streams[roomID]
	}
	if len(set) == 0 {
		// Another node owns the live sockets.
		return
	}

	f, err := r.encoder.Broadcast(d.Payload)
	if err != nil {
		r.logger.Warn("BROADCAST_DECODE_FAILED", slog.String("channel", d.Channel), slog.Any("err", err))
		return
	}
	r.fanout(set, f)
}

// fanout queues f on every OPEN connection of set.
func (r *Registry) fanout(set roomSet, f *model.Frame) int {
	sent := 0
	for id := range set {
		m, ok := r.conns[id]
		if !ok || !m.conn.IsOpen() {
			continue
		}
		if m.conn.Send(f) {
			sent++
			r.metrics.FrameDelivered(f.Type)
		} else {
			r.metrics.FrameDropped(f.Type)
		}
	}
	return sent
}

func (r *Registry) handleRoomEvent(payload []byte) {
	ev, err := event.DecodeRoomEvent(payload)
	if err != nil {
		r.logger.Warn("ROOM_EVENT_DROPPED", slog.Any("err", err))
		return
	}

	switch ev.Type {
	case event.RoomMemberAdded, event.RoomMemberRemoved:
		set := r.rooms[ev.RoomID]
		if len(set) == 0 {
			return
		}
		if f := r.system(model.FrameRoomMembership, ev.Membership()); f != nil {
			r.fanout(set, f)
		}

	case event.RoomCreated:
		f := r.system(model.FrameRoomCreated, ev.Created())
		if f == nil {
			return
		}
		all := make(roomSet, len(r.conns))
		for id := range r.conns {
			all[id] = struct{}{}
		}
		sent := r.fanout(all, f)
		r.logger.Info("ROOM_CREATED_BROADCAST", slog.String("room_id", ev.RoomID), slog.Int("sent", sent))

	case event.RoomDeleted:
		r.deleteRoom(ev.RoomID)

	case event.UserDisconnected:
		// Presence is consumed by room services.
	}
}

// deleteRoom notifies the room's sockets and drops the room from local state.
func (r *Registry) deleteRoom(roomID string) {
	affected := make(roomSet)
	for id := range r.rooms[roomID] {
		affected[id] = struct{}{}
	}
	for id := range r.streams[roomID] {
		affected[id] = struct{}{}
	}
	if len(affected) == 0 {
		return
	}

	if f := r.system(model.FrameRoomDeleted, event.DeletedPayload{RoomID: roomID}); f != nil {
		r.fanout(affected, f)
	}

	ctx := context.Background()
	for id := range affected {
		if m, ok := r.conns[id]; ok {
			r.removeFromRoom(ctx, m, roomID)
		}
	}
	r.reportGauges()
	r.logger.Info("ROOM_DELETED", slog.String("room_id", roomID), slog.Int("connections", len(affected)))
}

func (r *Registry) system(frameType string, payload any) *model.Frame {
	f, err := r.encoder.System(frameType, payload)
	if err != nil {
		r.logger.Error("FRAME_ENCODE_FAILED", slog.String("type", frameType), slog.Any("err", err))
		return nil
	}
	return f
}

func (r *Registry) reportGauges() {
	r.metrics.SetConnections(len(r.conns))
	r.metrics.SetRooms(len(r.rooms))
	r.metrics.SetChannels(len(r.subs))
}
