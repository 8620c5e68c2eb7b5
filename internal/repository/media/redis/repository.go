// Package redis stores each media content as a JSON document, the
// room's content ordering in a sorted set scored by added-at, and the
// at-most-one active content as a pointer key per room.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	domain "github.com/voiceroom/server/internal/domain/media"
	"github.com/voiceroom/server/internal/repository/media"
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

func (r repo) getContentKey(roomID, contentID string) string {
	return "room:" + roomID + ":media:" + contentID
}

func (r repo) getContentListKey(roomID string) string {
	return "room:" + roomID + ":media-list"
}

func (r repo) getActiveContentKey(roomID string) string {
	return "room:" + roomID + ":media-active"
}

func (r repo) SetContent(ctx context.Context, c *domain.Content) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal content: %w", err)
	}

	pipe := r.rc.TxPipeline()
	contentKey := r.getContentKey(c.RoomID, c.ContentID)
	pipe.Set(ctx, contentKey, data, r.expireDuration)

	listKey := r.getContentListKey(c.RoomID)
	pipe.ZAdd(ctx, listKey, redis.Z{
		Score:  float64(c.AddedAt.UnixMilli()),
		Member: c.ContentID,
	})
	pipe.Expire(ctx, listKey, r.expireDuration)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to set content: %w", err)
	}

	return nil
}

func (r repo) GetContent(ctx context.Context, roomID, contentID string) (*domain.Content, error) {
	contentKey := r.getContentKey(roomID, contentID)
	data, err := r.rc.Get(ctx, contentKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, media.ErrContentNotFound
		}
		return nil, fmt.Errorf("failed to get content: %w", err)
	}

	var c domain.Content
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to unmarshal content: %w", err)
	}

	r.rc.Expire(ctx, contentKey, r.expireDuration)

	return &c, nil
}

func (r repo) GetContentIDs(ctx context.Context, roomID string) ([]string, error) {
	ids, err := r.rc.ZRange(ctx, r.getContentListKey(roomID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get content ids: %w", err)
	}

	return ids, nil
}

func (r repo) RemoveContent(ctx context.Context, roomID, contentID string) error {
	pipe := r.rc.TxPipeline()
	delCmd := pipe.Del(ctx, r.getContentKey(roomID, contentID))
	pipe.ZRem(ctx, r.getContentListKey(roomID), contentID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to remove content: %w", err)
	}

	if delCmd.Val() == 0 {
		return media.ErrContentNotFound
	}

	activeID, err := r.rc.Get(ctx, r.getActiveContentKey(roomID)).Result()
	if err == nil && activeID == contentID {
		r.rc.Del(ctx, r.getActiveContentKey(roomID))
	}

	return nil
}

func (r repo) SetActiveContentID(ctx context.Context, roomID, contentID string) error {
	if err := r.rc.Set(ctx, r.getActiveContentKey(roomID), contentID, r.expireDuration).Err(); err != nil {
		return fmt.Errorf("failed to set active content id: %w", err)
	}

	return nil
}

func (r repo) GetActiveContentID(ctx context.Context, roomID string) (string, error) {
	id, err := r.rc.Get(ctx, r.getActiveContentKey(roomID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", media.ErrNoActiveContent
		}
		return "", fmt.Errorf("failed to get active content id: %w", err)
	}

	return id, nil
}

func (r repo) ClearActiveContentID(ctx context.Context, roomID string) error {
	if err := r.rc.Del(ctx, r.getActiveContentKey(roomID)).Err(); err != nil {
		return fmt.Errorf("failed to clear active content id: %w", err)
	}

	return nil
}
