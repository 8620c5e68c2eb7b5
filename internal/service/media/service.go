// Package media implements shared playback: the room playlist, the
// at-most-one active content, drift-corrected play/pause/seek and the
// periodic resync broadcast that keeps late clients honest.
package media

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/voiceroom/server/internal/domain/fault"
	"github.com/voiceroom/server/internal/domain/media"
	"github.com/voiceroom/server/internal/domain/room"
	mediarepo "github.com/voiceroom/server/internal/repository/media"
	roomrepo "github.com/voiceroom/server/internal/repository/room"
	"github.com/voiceroom/server/internal/service/broadcast"
	"github.com/voiceroom/server/pkg/randstr"
)

type iMediaRepo interface {
	SetContent(ctx context.Context, c *media.Content) error
	GetContent(ctx context.Context, roomID, contentID string) (*media.Content, error)
	GetContentIDs(ctx context.Context, roomID string) ([]string, error)
	RemoveContent(ctx context.Context, roomID, contentID string) error
	SetActiveContentID(ctx context.Context, roomID, contentID string) error
	GetActiveContentID(ctx context.Context, roomID string) (string, error)
	ClearActiveContentID(ctx context.Context, roomID string) error
}

type iRoomRepo interface {
	GetRoom(ctx context.Context, roomID string) (*room.Room, error)
}

type iGateway interface {
	Broadcast(ctx context.Context, roomID string, event broadcast.Event)
}

type iLocker interface {
	Lock(key string)
	Unlock(key string)
}

type iGenerator interface {
	GenerateRandomString(length int) string
}

const contentIDLength = 12

type service struct {
	mediaRepo    iMediaRepo
	roomRepo     iRoomRepo
	gateway      iGateway
	locker       iLocker
	generator    iGenerator
	syncInterval time.Duration
	logger       *slog.Logger

	mu        sync.Mutex
	syncTasks map[string]context.CancelFunc
	wg        sync.WaitGroup
}

func NewService(mediaRepo iMediaRepo, roomRepo iRoomRepo, gateway iGateway, locker iLocker, syncInterval time.Duration, logger *slog.Logger) *service {
	letterBytes := []byte("abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789")

	return &service{
		mediaRepo:    mediaRepo,
		roomRepo:     roomRepo,
		gateway:      gateway,
		locker:       locker,
		generator:    randstr.New(letterBytes),
		syncInterval: syncInterval,
		logger:       logger,
		syncTasks:    make(map[string]context.CancelFunc),
	}
}

// media state is serialized per room, independently of seat operations
func (s *service) lockKey(roomID string) string {
	return "media:" + roomID
}

func (s *service) getContent(ctx context.Context, roomID, contentID string) (*media.Content, error) {
	c, err := s.mediaRepo.GetContent(ctx, roomID, contentID)
	if err != nil {
		return nil, mapRepoErr(err)
	}

	return c, nil
}

// authorize allows the action when the content grants it or when the
// caller holds the room's media-management permission.
func (s *service) authorize(ctx context.Context, c *media.Content, userID string, action media.ControlAction) error {
	if c.CanControl(userID, action) {
		return nil
	}

	r, err := s.roomRepo.GetRoom(ctx, c.RoomID)
	if err != nil {
		if errors.Is(err, roomrepo.ErrRoomNotFound) {
			return fault.NotFound("room not found")
		}
		return err
	}
	if !r.HasPermission(userID, room.PermManageMedia) {
		return media.ErrControlDenied
	}

	return nil
}

func (s *service) saveAndBroadcast(ctx context.Context, c *media.Content, eventType string) error {
	if err := s.mediaRepo.SetContent(ctx, c); err != nil {
		return fmt.Errorf("failed to save content: %w", err)
	}

	s.gateway.Broadcast(ctx, c.RoomID, broadcast.NewEvent(eventType, statePayload(c, time.Now())))

	return nil
}

func mapRepoErr(err error) error {
	switch {
	case errors.Is(err, mediarepo.ErrContentNotFound):
		return media.ErrContentNotFound
	case errors.Is(err, mediarepo.ErrNoActiveContent):
		return media.ErrContentNotFound
	}

	return err
}
