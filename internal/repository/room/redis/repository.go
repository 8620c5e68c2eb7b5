// Package redis persists the room aggregate as a single JSON document
// per room, so the per-room lock in the service layer is the only
// serialization point. Keys are refreshed on every access; rooms
// abandoned past the expiration are evicted by redis.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	domain "github.com/voiceroom/server/internal/domain/room"
	"github.com/voiceroom/server/internal/repository/room"
)

type repo struct {
	rc             *redis.Client
	expireDuration time.Duration
}

func NewRepo(rc *redis.Client, expireDuration time.Duration) *repo {
	return &repo{
		rc:             rc,
		expireDuration: expireDuration,
	}
}

func (r repo) getRoomKey(roomID string) string {
	return "room:" + roomID
}

func (r repo) SetRoom(ctx context.Context, rm *domain.Room) error {
	data, err := json.Marshal(rm)
	if err != nil {
		return fmt.Errorf("failed to marshal room: %w", err)
	}

	if err := r.rc.Set(ctx, r.getRoomKey(rm.ID), data, r.expireDuration).Err(); err != nil {
		return fmt.Errorf("failed to set room: %w", err)
	}

	return nil
}

func (r repo) GetRoom(ctx context.Context, roomID string) (*domain.Room, error) {
	roomKey := r.getRoomKey(roomID)
	data, err := r.rc.Get(ctx, roomKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, room.ErrRoomNotFound
		}
		return nil, fmt.Errorf("failed to get room: %w", err)
	}

	var rm domain.Room
	if err := json.Unmarshal(data, &rm); err != nil {
		return nil, fmt.Errorf("failed to unmarshal room: %w", err)
	}

	r.rc.Expire(ctx, roomKey, r.expireDuration)

	return &rm, nil
}

func (r repo) IsRoomExists(ctx context.Context, roomID string) (bool, error) {
	res, err := r.rc.Exists(ctx, r.getRoomKey(roomID)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check if room exists: %w", err)
	}

	return res > 0, nil
}

func (r repo) RemoveRoom(ctx context.Context, roomID string) error {
	res, err := r.rc.Del(ctx, r.getRoomKey(roomID)).Result()
	if err != nil {
		return fmt.Errorf("failed to remove room: %w", err)
	}

	if res == 0 {
		return room.ErrRoomNotFound
	}

	return nil
}
