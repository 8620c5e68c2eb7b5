// Package room implements the room coordination operations: lifecycle,
// seats, the waiting queue, moderation and chat. Every mutation runs as
// load, mutate, save on the aggregate under a per-room lock, then fans
// the resulting events out through the gateway.
package room

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gorilla/websocket"

	"github.com/voiceroom/server/internal/domain/fault"
	"github.com/voiceroom/server/internal/domain/room"
	roomrepo "github.com/voiceroom/server/internal/repository/room"
	"github.com/voiceroom/server/internal/service/broadcast"
)

type iRoomRepo interface {
	SetRoom(ctx context.Context, rm *room.Room) error
	GetRoom(ctx context.Context, roomID string) (*room.Room, error)
	IsRoomExists(ctx context.Context, roomID string) (bool, error)
	RemoveRoom(ctx context.Context, roomID string) error
}

type iGateway interface {
	Subscribe(conn *websocket.Conn, userID, roomID string) error
	Unsubscribe(conn *websocket.Conn) (userID, roomID string, err error)
	Presence(roomID string) []string
	SendToConn(ctx context.Context, conn *websocket.Conn, event broadcast.Event) error
	Broadcast(ctx context.Context, roomID string, event broadcast.Event)
	BroadcastExcept(ctx context.Context, roomID, exceptUserID string, event broadcast.Event)
}

type iLocker interface {
	Lock(key string)
	Unlock(key string)
}

type iFilter interface {
	Sanitize(text string) string
}

type service struct {
	roomRepo     iRoomRepo
	gateway      iGateway
	locker       iLocker
	filter       iFilter
	membersLimit int
	logger       *slog.Logger
}

func NewService(roomRepo iRoomRepo, gateway iGateway, locker iLocker, filter iFilter, membersLimit int, logger *slog.Logger) *service {
	return &service{
		roomRepo:     roomRepo,
		gateway:      gateway,
		locker:       locker,
		filter:       filter,
		membersLimit: membersLimit,
		logger:       logger,
	}
}

// update runs fn on the aggregate under the room's lock and persists
// the result. fn returning an error leaves the stored room untouched.
func (s service) update(ctx context.Context, roomID string, fn func(*room.Room) error) (*room.Room, error) {
	s.locker.Lock(roomID)
	defer s.locker.Unlock(roomID)

	r, err := s.roomRepo.GetRoom(ctx, roomID)
	if err != nil {
		return nil, mapRepoErr(err)
	}
	if r.Status == room.StatusEnded {
		return nil, room.ErrRoomEnded
	}

	if err := fn(r); err != nil {
		return nil, err
	}

	if err := s.roomRepo.SetRoom(ctx, r); err != nil {
		return nil, fmt.Errorf("failed to save room: %w", err)
	}

	return r, nil
}

func (s service) getRoom(ctx context.Context, roomID string) (*room.Room, error) {
	r, err := s.roomRepo.GetRoom(ctx, roomID)
	if err != nil {
		return nil, mapRepoErr(err)
	}

	return r, nil
}

func mapRepoErr(err error) error {
	if errors.Is(err, roomrepo.ErrRoomNotFound) {
		return fault.NotFound("room not found")
	}

	return err
}
