package media

import (
	"context"
	"errors"
	"time"

	"github.com/voiceroom/server/internal/domain/media"
	mediarepo "github.com/voiceroom/server/internal/repository/media"
	"github.com/voiceroom/server/internal/service/broadcast"
)

type StartParams struct {
	UserID    string
	RoomID    string
	ContentID string
	Position  float64
}

// Start activates the content and begins the resync loop. Any other
// active content in the room is force-stopped first so at most one
// content plays per room.
func (s *service) Start(ctx context.Context, params *StartParams) error {
	s.locker.Lock(s.lockKey(params.RoomID))
	defer s.locker.Unlock(s.lockKey(params.RoomID))

	c, err := s.getContent(ctx, params.RoomID, params.ContentID)
	if err != nil {
		return err
	}
	if err := s.authorize(ctx, c, params.UserID, media.ActionPlay); err != nil {
		return err
	}

	if err := s.stopActive(ctx, params.RoomID, params.ContentID); err != nil {
		return err
	}

	if err := c.Start(params.Position, time.Now()); err != nil {
		return err
	}
	if err := s.saveAndBroadcast(ctx, c, EventMediaStarted); err != nil {
		return err
	}
	if err := s.mediaRepo.SetActiveContentID(ctx, params.RoomID, params.ContentID); err != nil {
		return err
	}

	s.startSync(params.RoomID)

	return nil
}

// stopActive force-stops whatever is currently active, unless it is the
// content about to start.
func (s *service) stopActive(ctx context.Context, roomID, exceptContentID string) error {
	activeID, err := s.mediaRepo.GetActiveContentID(ctx, roomID)
	if err != nil {
		if errors.Is(err, mediarepo.ErrNoActiveContent) {
			return nil
		}
		return err
	}
	if activeID == exceptContentID {
		return nil
	}

	active, err := s.getContent(ctx, roomID, activeID)
	if err != nil {
		if errors.Is(err, media.ErrContentNotFound) {
			return s.mediaRepo.ClearActiveContentID(ctx, roomID)
		}
		return err
	}

	s.stopSync(roomID)
	active.Stop(time.Now())
	if err := s.saveAndBroadcast(ctx, active, EventMediaStopped); err != nil {
		return err
	}

	return s.mediaRepo.ClearActiveContentID(ctx, roomID)
}

type PauseParams struct {
	UserID    string
	RoomID    string
	ContentID string
}

// Pause freezes playback at the drift-corrected position and cancels
// the room's resync loop.
func (s *service) Pause(ctx context.Context, params *PauseParams) error {
	s.locker.Lock(s.lockKey(params.RoomID))
	defer s.locker.Unlock(s.lockKey(params.RoomID))

	c, err := s.getContent(ctx, params.RoomID, params.ContentID)
	if err != nil {
		return err
	}
	if err := s.authorize(ctx, c, params.UserID, media.ActionPause); err != nil {
		return err
	}

	if err := c.Pause(time.Now()); err != nil {
		return err
	}

	s.stopSync(params.RoomID)

	return s.saveAndBroadcast(ctx, c, EventMediaPaused)
}

type StopParams struct {
	UserID    string
	RoomID    string
	ContentID string
}

func (s *service) Stop(ctx context.Context, params *StopParams) error {
	s.locker.Lock(s.lockKey(params.RoomID))
	defer s.locker.Unlock(s.lockKey(params.RoomID))

	c, err := s.getContent(ctx, params.RoomID, params.ContentID)
	if err != nil {
		return err
	}
	if err := s.authorize(ctx, c, params.UserID, media.ActionPlay); err != nil {
		return err
	}

	s.stopSync(params.RoomID)
	c.Stop(time.Now())
	if err := s.saveAndBroadcast(ctx, c, EventMediaStopped); err != nil {
		return err
	}

	activeID, err := s.mediaRepo.GetActiveContentID(ctx, params.RoomID)
	if err == nil && activeID == params.ContentID {
		return s.mediaRepo.ClearActiveContentID(ctx, params.RoomID)
	}

	return nil
}

type SeekParams struct {
	UserID    string
	RoomID    string
	ContentID string
	Position  float64
}

func (s *service) Seek(ctx context.Context, params *SeekParams) error {
	s.locker.Lock(s.lockKey(params.RoomID))
	defer s.locker.Unlock(s.lockKey(params.RoomID))

	c, err := s.getContent(ctx, params.RoomID, params.ContentID)
	if err != nil {
		return err
	}
	if err := s.authorize(ctx, c, params.UserID, media.ActionSeek); err != nil {
		return err
	}

	if err := c.Seek(params.Position, time.Now()); err != nil {
		return err
	}

	return s.saveAndBroadcast(ctx, c, EventMediaSeeked)
}

type SetVolumeParams struct {
	UserID    string
	RoomID    string
	ContentID string
	Volume    int
}

func (s *service) SetVolume(ctx context.Context, params *SetVolumeParams) error {
	s.locker.Lock(s.lockKey(params.RoomID))
	defer s.locker.Unlock(s.lockKey(params.RoomID))

	c, err := s.getContent(ctx, params.RoomID, params.ContentID)
	if err != nil {
		return err
	}
	if err := s.authorize(ctx, c, params.UserID, media.ActionVolume); err != nil {
		return err
	}

	c.SetVolume(params.Volume)

	return s.saveAndBroadcast(ctx, c, EventMediaVolumeChanged)
}

type MarkErrorParams struct {
	RoomID    string
	ContentID string
	Reason    string
}

// MarkError puts the content into the error state. Only Reset leaves
// it.
func (s *service) MarkError(ctx context.Context, params *MarkErrorParams) error {
	s.locker.Lock(s.lockKey(params.RoomID))
	defer s.locker.Unlock(s.lockKey(params.RoomID))

	c, err := s.getContent(ctx, params.RoomID, params.ContentID)
	if err != nil {
		return err
	}

	s.stopSync(params.RoomID)
	c.MarkError(time.Now())

	s.logger.WarnContext(ctx, "content errored",
		"room_id", params.RoomID,
		"content_id", params.ContentID,
		"reason", params.Reason,
	)

	return s.saveAndBroadcast(ctx, c, EventMediaError)
}

type ResetParams struct {
	UserID    string
	RoomID    string
	ContentID string
}

func (s *service) Reset(ctx context.Context, params *ResetParams) error {
	s.locker.Lock(s.lockKey(params.RoomID))
	defer s.locker.Unlock(s.lockKey(params.RoomID))

	c, err := s.getContent(ctx, params.RoomID, params.ContentID)
	if err != nil {
		return err
	}
	if err := s.authorize(ctx, c, params.UserID, media.ActionPlay); err != nil {
		return err
	}

	if err := c.Reset(time.Now()); err != nil {
		return err
	}

	return s.saveAndBroadcast(ctx, c, EventMediaReset)
}

type RateParams struct {
	UserID    string
	RoomID    string
	ContentID string
	Rating    int
}

type RateResponse struct {
	AverageRating float64
	RatingCount   int
}

func (s *service) Rate(ctx context.Context, params *RateParams) (RateResponse, error) {
	s.locker.Lock(s.lockKey(params.RoomID))
	defer s.locker.Unlock(s.lockKey(params.RoomID))

	c, err := s.getContent(ctx, params.RoomID, params.ContentID)
	if err != nil {
		return RateResponse{}, err
	}

	if err := c.AddRating(params.Rating); err != nil {
		return RateResponse{}, err
	}
	if err := s.mediaRepo.SetContent(ctx, c); err != nil {
		return RateResponse{}, err
	}

	s.gateway.Broadcast(ctx, params.RoomID, broadcast.NewEvent(EventMediaRated, RatedPayload{
		ContentID:     c.ContentID,
		AverageRating: c.Stats.AverageRating,
		RatingCount:   c.Stats.RatingCount,
	}))

	return RateResponse{
		AverageRating: c.Stats.AverageRating,
		RatingCount:   c.Stats.RatingCount,
	}, nil
}

type GrantControlParams struct {
	UserID    string
	RoomID    string
	ContentID string
	TargetID  string
	Actions   []media.ControlAction
}

// GrantControl lets the controller delegate specific actions.
func (s *service) GrantControl(ctx context.Context, params *GrantControlParams) error {
	s.locker.Lock(s.lockKey(params.RoomID))
	defer s.locker.Unlock(s.lockKey(params.RoomID))

	c, err := s.getContent(ctx, params.RoomID, params.ContentID)
	if err != nil {
		return err
	}
	if c.Controls.ControlledBy != params.UserID {
		return media.ErrControlDenied
	}

	c.Grant(params.TargetID, params.Actions...)

	return s.mediaRepo.SetContent(ctx, c)
}
