package room

import (
	"context"

	"github.com/voiceroom/server/internal/domain/room"
)

// RoomState returns the full snapshot for read-only consumers.
func (s service) RoomState(ctx context.Context, roomID, userID string) (Snapshot, error) {
	r, err := s.getRoom(ctx, roomID)
	if err != nil {
		return Snapshot{}, err
	}

	return s.snapshot(r, userID), nil
}

func (s service) MicStats(ctx context.Context, roomID string) (room.MicStats, error) {
	r, err := s.getRoom(ctx, roomID)
	if err != nil {
		return room.MicStats{}, err
	}

	return r.MicStats(), nil
}

func (s service) RoomExists(ctx context.Context, roomID string) (bool, error) {
	return s.roomRepo.IsRoomExists(ctx, roomID)
}
