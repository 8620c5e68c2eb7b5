package media

import (
	"context"
	"errors"
	"time"

	"github.com/voiceroom/server/internal/domain/fault"
	"github.com/voiceroom/server/internal/domain/media"
	mediarepo "github.com/voiceroom/server/internal/repository/media"
	"github.com/voiceroom/server/internal/service/broadcast"
)

type AddYouTubeContentParams struct {
	UserID      string
	RoomID      string
	Title       string
	VideoID     string
	ChannelName string
	Duration    int
}

type AddContentResponse struct {
	Content *media.Content
}

func (s *service) AddYouTubeContent(ctx context.Context, params *AddYouTubeContentParams) (AddContentResponse, error) {
	if params.VideoID == "" {
		return AddContentResponse{}, fault.Validation("video id is required")
	}

	c := s.newContent(params.RoomID, params.UserID, params.Title, media.TypeYouTube)
	c.YouTube = &media.YouTubeData{
		VideoID:     params.VideoID,
		ChannelName: params.ChannelName,
		Duration:    params.Duration,
	}

	return s.addContent(ctx, c)
}

type AddAudioContentParams struct {
	UserID   string
	RoomID   string
	Title    string
	FileName string
	Duration float64
	Bitrate  int
	Format   string
}

// AddAudioContent registers an uploaded audio file. The duration,
// bitrate and format triple comes from the upload pipeline's probe.
func (s *service) AddAudioContent(ctx context.Context, params *AddAudioContentParams) (AddContentResponse, error) {
	if params.FileName == "" {
		return AddContentResponse{}, fault.Validation("file name is required")
	}
	if params.Duration <= 0 {
		return AddContentResponse{}, fault.Validation("duration must be positive")
	}

	c := s.newContent(params.RoomID, params.UserID, params.Title, media.TypeAudioFile)
	c.Audio = &media.AudioData{
		FileName: params.FileName,
		Duration: params.Duration,
		Bitrate:  params.Bitrate,
		Format:   params.Format,
	}

	return s.addContent(ctx, c)
}

type AddPlaylistParams struct {
	UserID     string
	RoomID     string
	Title      string
	RepeatMode string
	ContentIDs []string
}

func (s *service) AddPlaylist(ctx context.Context, params *AddPlaylistParams) (AddContentResponse, error) {
	items := make([]media.PlaylistItem, 0, len(params.ContentIDs))
	for i, id := range params.ContentIDs {
		if _, err := s.getContent(ctx, params.RoomID, id); err != nil {
			return AddContentResponse{}, err
		}
		items = append(items, media.PlaylistItem{
			ContentID: id,
			Order:     i + 1,
			AddedBy:   params.UserID,
		})
	}

	c := s.newContent(params.RoomID, params.UserID, params.Title, media.TypePlaylist)
	c.Playlist = &media.PlaylistData{
		Items:      items,
		RepeatMode: params.RepeatMode,
	}

	return s.addContent(ctx, c)
}

func (s *service) newContent(roomID, userID, title string, contentType media.Type) *media.Content {
	now := time.Now()

	return &media.Content{
		ContentID: s.generator.GenerateRandomString(contentIDLength),
		RoomID:    roomID,
		Type:      contentType,
		Title:     title,
		AddedBy:   userID,
		Playback: media.PlaybackState{
			Volume:      50,
			Speed:       1,
			LastUpdated: now,
		},
		Controls: media.Controls{ControlledBy: userID},
		// stays loading until the first start or stop
		Status: media.StatusLoading,
		AddedAt:  now,
	}
}

func (s *service) addContent(ctx context.Context, c *media.Content) (AddContentResponse, error) {
	s.locker.Lock(s.lockKey(c.RoomID))
	defer s.locker.Unlock(s.lockKey(c.RoomID))

	if err := s.saveAndBroadcast(ctx, c, EventMediaAdded); err != nil {
		return AddContentResponse{}, err
	}

	s.logger.InfoContext(ctx, "content added",
		"room_id", c.RoomID,
		"content_id", c.ContentID,
		"type", c.Type,
	)

	return AddContentResponse{Content: c}, nil
}

type DeleteContentParams struct {
	UserID    string
	RoomID    string
	ContentID string
}

// DeleteContent removes the content. Deleting the active content stops
// the sync loop first.
func (s *service) DeleteContent(ctx context.Context, params *DeleteContentParams) error {
	s.locker.Lock(s.lockKey(params.RoomID))
	defer s.locker.Unlock(s.lockKey(params.RoomID))

	c, err := s.getContent(ctx, params.RoomID, params.ContentID)
	if err != nil {
		return err
	}
	if err := s.authorize(ctx, c, params.UserID, media.ActionSkip); err != nil {
		return err
	}

	activeID, err := s.mediaRepo.GetActiveContentID(ctx, params.RoomID)
	if err == nil && activeID == params.ContentID {
		s.stopSync(params.RoomID)
	}

	if err := s.mediaRepo.RemoveContent(ctx, params.RoomID, params.ContentID); err != nil {
		return mapRepoErr(err)
	}

	s.gateway.Broadcast(ctx, params.RoomID, broadcast.NewEvent(EventMediaRemoved, RemovedPayload{ContentID: params.ContentID}))

	return nil
}

// ContentList returns the room's contents in added order.
func (s *service) ContentList(ctx context.Context, roomID string) ([]*media.Content, error) {
	ids, err := s.mediaRepo.GetContentIDs(ctx, roomID)
	if err != nil {
		return nil, err
	}

	contents := make([]*media.Content, 0, len(ids))
	for _, id := range ids {
		c, err := s.mediaRepo.GetContent(ctx, roomID, id)
		if err != nil {
			// ids and documents expire independently
			if errors.Is(err, mediarepo.ErrContentNotFound) {
				continue
			}
			return nil, err
		}
		contents = append(contents, c)
	}

	return contents, nil
}

// ActiveContent returns the room's active content, or ErrContentNotFound
// when nothing is active.
func (s *service) ActiveContent(ctx context.Context, roomID string) (*media.Content, error) {
	id, err := s.mediaRepo.GetActiveContentID(ctx, roomID)
	if err != nil {
		return nil, mapRepoErr(err)
	}

	return s.getContent(ctx, roomID, id)
}
