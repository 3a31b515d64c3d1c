package services

import (
	"context"
	"fmt"
	"log/slog"
	"project-hub/contract"
	"project-hub/domain"
	"project-hub/errors"
)

// IRealtimeService is what the transport and the internal API talk to.
type IRealtimeService interface {
	OnUserConnected(ctx context.Context, userID domain.UserID, conn contract.Connection)
	OnUserDisconnected(userID domain.UserID, conn contract.Connection)
	NotifyRoom(roomID domain.RoomID, name domain.EventName, payload any) error
	NotifyUser(userID domain.UserID, name domain.EventName, payload any) error
	JoinRoom(ctx context.Context, userID domain.UserID, roomID domain.RoomID) error
}

type RealtimeService struct {
	log         *slog.Logger
	registry    contract.IRegistry
	membership  contract.IMembership
	broadcaster contract.IBroadcaster
}

func NewRealtimeService(log *slog.Logger, registry contract.IRegistry,
	membership contract.IMembership, broadcaster contract.IBroadcaster) IRealtimeService {
	return &RealtimeService{
		log:         log,
		registry:    registry,
		membership:  membership,
		broadcaster: broadcaster,
	}
}

// OnUserConnected makes conn the user's current connection and restores its rooms.
func (s *RealtimeService) OnUserConnected(ctx context.Context, userID domain.UserID, conn contract.Connection) {
	s.registry.Register(userID, conn)
	s.log.Info("User connected", "user_id", userID, "connection_id", conn.ID())
	s.membership.OnConnect(ctx, userID, conn)
}

// OnUserDisconnected forgets conn unless the user already reconnected elsewhere.
func (s *RealtimeService) OnUserDisconnected(userID domain.UserID, conn contract.Connection) {
	if s.registry.Unregister(userID, conn) {
		s.log.Info("User disconnected", "user_id", userID, "connection_id", conn.ID())
		return
	}
	s.log.Debug("Stale connection closed", "user_id", userID, "connection_id", conn.ID())
}

func (s *RealtimeService) NotifyRoom(roomID domain.RoomID, name domain.EventName, payload any) error {
	if roomID == "" {
		return fmt.Errorf("%w: room id is required", errors.ErrInvalidInput)
	}
	if !name.IsKnown() {
		return fmt.Errorf("%w: %q", errors.ErrUnknownEvent, name)
	}
	s.broadcaster.BroadcastToRoom(roomID, name, payload)
	return nil
}

func (s *RealtimeService) NotifyUser(userID domain.UserID, name domain.EventName, payload any) error {
	if userID == "" {
		return fmt.Errorf("%w: user id is required", errors.ErrInvalidInput)
	}
	if !name.IsKnown() {
		return fmt.Errorf("%w: %q", errors.ErrUnknownEvent, name)
	}
	s.broadcaster.SendToUser(userID, name, payload)
	return nil
}

func (s *RealtimeService) JoinRoom(ctx context.Context, userID domain.UserID, roomID domain.RoomID) error {
	if userID == "" || roomID == "" {
		return fmt.Errorf("%w: user and room are required", errors.ErrInvalidInput)
	}
	return s.membership.Join(ctx, userID, roomID)
}
