package media

import (
	"context"
	"errors"
	"time"

	"github.com/voiceroom/server/internal/domain/media"
	"github.com/voiceroom/server/internal/service/broadcast"
)

// startSync launches the room's resync loop. A room has at most one
// loop; starting a new one cancels its predecessor.
func (s *service) startSync(roomID string) {
	ctx, cancel := context.WithCancel(context.Background())

	s.mu.Lock()
	if prev, ok := s.syncTasks[roomID]; ok {
		prev()
	}
	s.syncTasks[roomID] = cancel
	s.mu.Unlock()

	s.wg.Add(1)
	go s.syncLoop(ctx, roomID)
}

// stopSync cancels the room's resync loop, if any.
func (s *service) stopSync(roomID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cancel, ok := s.syncTasks[roomID]; ok {
		cancel()
		delete(s.syncTasks, roomID)
	}
}

// syncLoop periodically advances the active content's stored position
// and broadcasts the drift-corrected state. A transient persistence
// failure skips the tick; a terminal condition (content gone, playback
// no longer active) ends the loop.
func (s *service) syncLoop(ctx context.Context, roomID string) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.syncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if done := s.syncTick(ctx, roomID); done {
				return
			}
		}
	}
}

func (s *service) syncTick(ctx context.Context, roomID string) bool {
	s.locker.Lock(s.lockKey(roomID))
	defer s.locker.Unlock(s.lockKey(roomID))

	activeID, err := s.mediaRepo.GetActiveContentID(ctx, roomID)
	if err != nil {
		return s.isTerminal(ctx, roomID, err, "failed to get active content id")
	}

	c, err := s.mediaRepo.GetContent(ctx, roomID, activeID)
	if err != nil {
		return s.isTerminal(ctx, roomID, err, "failed to get active content")
	}

	if c.Status != media.StatusActive || !c.Playback.IsPlaying {
		return true
	}

	now := time.Now()
	c.Resync(now)
	if err := s.mediaRepo.SetContent(ctx, c); err != nil {
		s.logger.WarnContext(ctx, "failed to persist resynced position, skipping tick",
			"room_id", roomID,
			"content_id", c.ContentID,
			"error", err,
		)
		return false
	}

	s.gateway.Broadcast(ctx, roomID, broadcast.NewEvent(EventMediaSync, statePayload(c, now)))

	return false
}

// isTerminal decides whether a tick error ends the loop. Missing state
// is terminal; anything else is treated as transient and retried on the
// next tick.
func (s *service) isTerminal(ctx context.Context, roomID string, err error, msg string) bool {
	mapped := mapRepoErr(err)
	if errors.Is(mapped, media.ErrContentNotFound) {
		return true
	}

	s.logger.WarnContext(ctx, msg+", skipping tick",
		"room_id", roomID,
		"error", err,
	)

	return false
}

// Shutdown cancels every resync loop and waits for them to exit.
func (s *service) Shutdown() {
	s.mu.Lock()
	for roomID, cancel := range s.syncTasks {
		cancel()
		delete(s.syncTasks, roomID)
	}
	s.mu.Unlock()

	s.wg.Wait()
}
