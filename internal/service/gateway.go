package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/webitel/im-realtime-gateway/internal/adapter/membership"
	"github.com/webitel/im-realtime-gateway/internal/domain/event"
	"github.com/webitel/im-realtime-gateway/internal/domain/model"
	"github.com/webitel/im-realtime-gateway/internal/domain/registry"
	"golang.org/x/sync/errgroup"
)

// Client facing failure messages.
const (
	MsgInvalidRoom    = "Invalid roomId"
	MsgJoinFailed     = "join failed"
	MsgSendFailed     = "message.send failed"
	MsgReactionFailed = "message.reaction failed"
	MsgReplyFailed    = "message.reply failed"
)

// FrameEncoder adds protocol replies to the registry encoder.
type FrameEncoder interface {
	registry.FrameEncoder
	Pong() *model.Frame
	Error(message, tempID string) *model.Frame
}

// [GATEWAY_SERVICE] PRIMARY INTERFACE FOR THE SOCKET HANDLER
type Gateway interface {
	// Connect registers an authenticated socket and joins it to the rooms
	// recorded for its user.
	Connect(ctx context.Context, id *model.Identity, transport registry.Transport) (registry.Connector, error)
	// Handle processes one client frame.
	Handle(ctx context.Context, conn registry.Connector, raw []byte)
	// Disconnect is the close path of a socket.
	Disconnect(ctx context.Context, conn registry.Connector)
}

var _ Gateway = (*GatewayService)(nil)

type GatewayService struct {
	registry   registry.Registrar
	store      membership.Store
	ingest     Ingester
	encoder    FrameEncoder
	logger     *slog.Logger
	bufferSize int
}

func NewGatewayService(
	reg registry.Registrar,
	store membership.Store,
	ingest Ingester,
	encoder FrameEncoder,
	logger *slog.Logger,
	bufferSize int,
) *GatewayService {
	return &GatewayService{
		registry:   reg,
		store:      store,
		ingest:     ingest,
		encoder:    encoder,
		logger:     logger,
		bufferSize: bufferSize,
	}
}

func (s *GatewayService) Connect(ctx context.Context, id *model.Identity, transport registry.Transport) (registry.Connector, error) {
	conn := registry.NewConnector(id, transport, s.bufferSize)
	if err := s.registry.Attach(ctx, conn); err != nil {
		conn.Close()
		return nil, err
	}

	// [CONCURRENCY_OPTIMIZATION] Room lookup and expiry refresh are independent.
	var rooms []string
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		rooms, err = s.store.UserRooms(gCtx, id.UserID)
		return err
	})
	g.Go(func() error {
		return s.store.Touch(gCtx, id.UserID)
	})
	if err := g.Wait(); err != nil {
		// Auto-join is best effort, the client can still join explicitly.
		s.logger.Warn("AUTO_JOIN_LOOKUP_FAILED", slog.String("user_id", id.UserID), slog.Any("err", err))
	}

	joined := 0
	for _, raw := range rooms {
		roomID, err := model.NormalizeRoomID(raw)
		if err != nil {
			continue
		}
		if err := s.registry.Join(ctx, conn.GetID(), roomID, false); err != nil {
			s.logger.Warn("AUTO_JOIN_FAILED", slog.String("room_id", roomID), slog.Any("err", err))
			continue
		}
		joined++
	}

	s.logger.Info("CONNECTION_OPENED",
		slog.String("conn_id", conn.GetID().String()),
		slog.String("user_id", id.UserID),
		slog.Int("auto_joined", joined))
	return conn, nil
}

func (s *GatewayService) Handle(ctx context.Context, conn registry.Connector, raw []byte) {
	in, err := model.DecodeInbound(raw)
	switch {
	case errors.Is(err, model.ErrInvalidRoom):
		conn.Send(s.encoder.Error(MsgInvalidRoom, ""))
		return
	case err != nil:
		s.logger.Debug("FRAME_DROPPED", slog.String("conn_id", conn.GetID().String()), slog.Any("err", err))
		return
	}

	id := conn.GetIdentity()
	switch f := in.(type) {
	case model.PingFrame:
		conn.Pong()
		conn.Send(s.encoder.Pong())
		if err := s.store.Touch(ctx, id.UserID); err != nil {
			s.logger.Debug("TOUCH_FAILED", slog.String("user_id", id.UserID), slog.Any("err", err))
		}

	case model.JoinFrame:
		s.join(ctx, conn, f)

	case model.LeaveFrame:
		if err := s.registry.Leave(ctx, conn.GetID(), f.RoomID); err != nil {
			s.logger.Debug("LEAVE_FAILED", slog.String("room_id", f.RoomID), slog.Any("err", err))
		}

	case model.SendFrame:
		if err := s.ingest.SendMessage(ctx, id, f); err != nil {
			conn.Send(s.encoder.Error(MsgSendFailed, f.TempID))
		}

	case model.ReactionFrame:
		if err := s.ingest.React(ctx, id, f); err != nil {
			conn.Send(s.encoder.Error(MsgReactionFailed, ""))
		}

	case model.ReplyFrame:
		if err := s.ingest.Reply(ctx, id, f); err != nil {
			conn.Send(s.encoder.Error(MsgReplyFailed, f.TempID))
		}
	}
}

// join never blocks on the membership check: a membership granted a moment
// ago may not be visible yet.
func (s *GatewayService) join(ctx context.Context, conn registry.Connector, f model.JoinFrame) {
	user := conn.GetUserID()

	member, err := s.store.IsMember(ctx, f.RoomID, user)
	switch {
	case err != nil:
		s.logger.Warn("MEMBERSHIP_CHECK_FAILED", slog.String("room_id", f.RoomID), slog.Any("err", err))
	case !member:
		s.logger.Warn("JOIN_WITHOUT_MEMBERSHIP", slog.String("room_id", f.RoomID), slog.String("user_id", user))
	}

	if err := s.store.AddMember(ctx, f.RoomID, user); err != nil {
		s.logger.Warn("MEMBERSHIP_ADD_FAILED", slog.String("room_id", f.RoomID), slog.Any("err", err))
	}

	if err := s.registry.Join(ctx, conn.GetID(), f.RoomID, f.IsARRoom); err != nil {
		if !errors.Is(err, registry.ErrUnknownConnection) {
			conn.Send(s.encoder.Error(MsgJoinFailed, ""))
		}
		return
	}

	members, err := s.store.Members(ctx, f.RoomID)
	if err != nil {
		s.logger.Warn("ROSTER_LOOKUP_FAILED", slog.String("room_id", f.RoomID), slog.Any("err", err))
	}
	if members == nil {
		members = []string{}
	}

	reply, err := s.encoder.System(model.FrameRoomJoined, event.JoinedPayload{RoomID: f.RoomID, Members: members})
	if err != nil {
		return
	}
	conn.Send(reply)
}

func (s *GatewayService) Disconnect(ctx context.Context, conn registry.Connector) {
	conn.Close()
	err := s.registry.Detach(context.WithoutCancel(ctx), conn.GetID())
	if err != nil && !errors.Is(err, registry.ErrUnknownConnection) {
		s.logger.Warn("DETACH_FAILED", slog.String("conn_id", conn.GetID().String()), slog.Any("err", err))
		return
	}
	s.logger.Info("CONNECTION_CLOSED",
		slog.String("conn_id", conn.GetID().String()),
		slog.String("user_id", conn.GetUserID()),
		slog.Uint64("dropped", conn.Dropped()))
}
