package media

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/voiceroom/server/internal/domain/media"
	roomDomain "github.com/voiceroom/server/internal/domain/room"
	mediaRedis "github.com/voiceroom/server/internal/repository/media/redis"
	roomRedis "github.com/voiceroom/server/internal/repository/room/redis"
	"github.com/voiceroom/server/internal/service/broadcast"
	"github.com/voiceroom/server/pkg/keylock"
)

type fakeGateway struct {
	mu     sync.Mutex
	events []broadcast.Event
}

func (g *fakeGateway) Broadcast(_ context.Context, _ string, event broadcast.Event) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.events = append(g.events, event)
}

func (g *fakeGateway) count(eventType string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for _, ev := range g.events {
		if ev.Type == eventType {
			n++
		}
	}
	return n
}

func (g *fakeGateway) last(eventType string) (broadcast.Event, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for i := len(g.events) - 1; i >= 0; i-- {
		if g.events[i].Type == eventType {
			return g.events[i], true
		}
	}
	return broadcast.Event{}, false
}

func newTestService(t *testing.T, syncInterval time.Duration) (*service, *fakeGateway, string) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rc := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	roomRepo := roomRedis.NewRepo(rc, time.Hour)
	mediaRepo := mediaRedis.NewRepo(rc, time.Hour)
	gateway := &fakeGateway{}

	s := NewService(mediaRepo, roomRepo, gateway, keylock.New(), syncInterval, slog.Default())
	t.Cleanup(s.Shutdown)

	r, err := roomDomain.New("room1", "owner", "r", 6, false, time.Now())
	require.NoError(t, err)
	require.NoError(t, roomRepo.SetRoom(context.Background(), r))

	return s, gateway, "room1"
}

func TestAddAndStartContent(t *testing.T) {
	s, gateway, roomID := newTestService(t, time.Hour)
	ctx := context.Background()

	addResp, err := s.AddYouTubeContent(ctx, &AddYouTubeContentParams{
		UserID:      "u1",
		RoomID:      roomID,
		Title:       "some video",
		VideoID:     "abc123",
		ChannelName: "some channel",
		Duration:    240,
	})
	require.NoError(t, err)
	c := addResp.Content
	assert.NotEmpty(t, c.ContentID)
	assert.Equal(t, domain.StatusLoading, c.Status, "added content loads until first start")
	assert.Equal(t, "u1", c.Controls.ControlledBy, "adder controls the content")
	assert.Equal(t, 1, gateway.count(EventMediaAdded))

	require.NoError(t, s.Start(ctx, &StartParams{UserID: "u1", RoomID: roomID, ContentID: c.ContentID}))

	active, err := s.ActiveContent(ctx, roomID)
	require.NoError(t, err)
	assert.Equal(t, c.ContentID, active.ContentID)
	assert.Equal(t, domain.StatusActive, active.Status)
	assert.True(t, active.Playback.IsPlaying)
	assert.Equal(t, 1, active.Stats.TotalPlays)
	assert.Equal(t, 1, gateway.count(EventMediaStarted))
}

func TestStartForcesStopOfActiveContent(t *testing.T) {
	s, gateway, roomID := newTestService(t, time.Hour)
	ctx := context.Background()

	first, err := s.AddAudioContent(ctx, &AddAudioContentParams{
		UserID: "u1", RoomID: roomID, Title: "a", FileName: "a.mp3", Duration: 180, Bitrate: 320, Format: "mp3",
	})
	require.NoError(t, err)
	second, err := s.AddAudioContent(ctx, &AddAudioContentParams{
		UserID: "u1", RoomID: roomID, Title: "b", FileName: "b.mp3", Duration: 200, Bitrate: 320, Format: "mp3",
	})
	require.NoError(t, err)

	require.NoError(t, s.Start(ctx, &StartParams{UserID: "u1", RoomID: roomID, ContentID: first.Content.ContentID}))
	require.NoError(t, s.Start(ctx, &StartParams{UserID: "u1", RoomID: roomID, ContentID: second.Content.ContentID}))

	assert.Equal(t, 1, gateway.count(EventMediaStopped), "starting the second must stop the first")

	active, err := s.ActiveContent(ctx, roomID)
	require.NoError(t, err)
	assert.Equal(t, second.Content.ContentID, active.ContentID)

	stopped, err := s.getContent(ctx, roomID, first.Content.ContentID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusStopped, stopped.Status)
	assert.Zero(t, stopped.Playback.Position, "stop rewinds")
}

func TestPauseFreezesPosition(t *testing.T) {
	s, _, roomID := newTestService(t, time.Hour)
	ctx := context.Background()

	addResp, err := s.AddYouTubeContent(ctx, &AddYouTubeContentParams{
		UserID: "u1", RoomID: roomID, Title: "v", VideoID: "id", Duration: 600,
	})
	require.NoError(t, err)
	contentID := addResp.Content.ContentID

	err = s.Pause(ctx, &PauseParams{UserID: "u1", RoomID: roomID, ContentID: contentID})
	assert.ErrorIs(t, err, domain.ErrNotPlaying, "pausing content that is not playing is rejected")

	require.NoError(t, s.Start(ctx, &StartParams{UserID: "u1", RoomID: roomID, ContentID: contentID, Position: 30}))
	require.NoError(t, s.Pause(ctx, &PauseParams{UserID: "u1", RoomID: roomID, ContentID: contentID}))

	c, err := s.getContent(ctx, roomID, contentID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPaused, c.Status)
	assert.False(t, c.Playback.IsPlaying)
	assert.GreaterOrEqual(t, c.Playback.Position, 30.0)
	assert.Less(t, c.Playback.Position, 31.0)
}

func TestSyncLoopBroadcastsAndStopsOnPause(t *testing.T) {
	s, gateway, roomID := newTestService(t, 10*time.Millisecond)
	ctx := context.Background()

	addResp, err := s.AddYouTubeContent(ctx, &AddYouTubeContentParams{
		UserID: "u1", RoomID: roomID, Title: "v", VideoID: "id", Duration: 600,
	})
	require.NoError(t, err)
	contentID := addResp.Content.ContentID

	require.NoError(t, s.Start(ctx, &StartParams{UserID: "u1", RoomID: roomID, ContentID: contentID}))

	assert.Eventually(t, func() bool {
		return gateway.count(EventMediaSync) >= 2
	}, time.Second, 5*time.Millisecond, "sync loop must broadcast periodically")

	ev, ok := gateway.last(EventMediaSync)
	require.True(t, ok)
	payload := ev.Payload.(StatePayload)
	assert.Equal(t, contentID, payload.ContentID)
	assert.True(t, payload.IsPlaying)

	require.NoError(t, s.Pause(ctx, &PauseParams{UserID: "u1", RoomID: roomID, ContentID: contentID}))

	// no further syncs once paused
	time.Sleep(30 * time.Millisecond)
	after := gateway.count(EventMediaSync)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, after, gateway.count(EventMediaSync), "pause must cancel the sync loop")
}

func TestControlPermissions(t *testing.T) {
	s, _, roomID := newTestService(t, time.Hour)
	ctx := context.Background()

	addResp, err := s.AddYouTubeContent(ctx, &AddYouTubeContentParams{
		UserID: "u1", RoomID: roomID, Title: "v", VideoID: "id", Duration: 600,
	})
	require.NoError(t, err)
	contentID := addResp.Content.ContentID

	err = s.Start(ctx, &StartParams{UserID: "intruder", RoomID: roomID, ContentID: contentID})
	assert.ErrorIs(t, err, domain.ErrControlDenied)

	// the room owner holds manage-media and may start anyway
	require.NoError(t, s.Start(ctx, &StartParams{UserID: "owner", RoomID: roomID, ContentID: contentID}))

	// an explicit grant covers only the granted actions
	require.NoError(t, s.GrantControl(ctx, &GrantControlParams{
		UserID: "u1", RoomID: roomID, ContentID: contentID, TargetID: "dj",
		Actions: []domain.ControlAction{domain.ActionSeek},
	}))
	require.NoError(t, s.Seek(ctx, &SeekParams{UserID: "dj", RoomID: roomID, ContentID: contentID, Position: 42}))
	err = s.SetVolume(ctx, &SetVolumeParams{UserID: "dj", RoomID: roomID, ContentID: contentID, Volume: 80})
	assert.ErrorIs(t, err, domain.ErrControlDenied)
}

func TestErrorStateRequiresReset(t *testing.T) {
	s, gateway, roomID := newTestService(t, time.Hour)
	ctx := context.Background()

	addResp, err := s.AddYouTubeContent(ctx, &AddYouTubeContentParams{
		UserID: "u1", RoomID: roomID, Title: "v", VideoID: "id", Duration: 600,
	})
	require.NoError(t, err)
	contentID := addResp.Content.ContentID

	require.NoError(t, s.MarkError(ctx, &MarkErrorParams{RoomID: roomID, ContentID: contentID, Reason: "decode failed"}))
	assert.Equal(t, 1, gateway.count(EventMediaError))

	err = s.Start(ctx, &StartParams{UserID: "u1", RoomID: roomID, ContentID: contentID})
	assert.ErrorIs(t, err, domain.ErrContentErrored)

	require.NoError(t, s.Reset(ctx, &ResetParams{UserID: "u1", RoomID: roomID, ContentID: contentID}))
	c, err := s.getContent(ctx, roomID, contentID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusStopped, c.Status)

	require.NoError(t, s.Start(ctx, &StartParams{UserID: "u1", RoomID: roomID, ContentID: contentID}))
}

func TestRateKeepsRunningMean(t *testing.T) {
	s, _, roomID := newTestService(t, time.Hour)
	ctx := context.Background()

	addResp, err := s.AddYouTubeContent(ctx, &AddYouTubeContentParams{
		UserID: "u1", RoomID: roomID, Title: "v", VideoID: "id", Duration: 600,
	})
	require.NoError(t, err)
	contentID := addResp.Content.ContentID

	resp, err := s.Rate(ctx, &RateParams{UserID: "a", RoomID: roomID, ContentID: contentID, Rating: 4})
	require.NoError(t, err)
	assert.Equal(t, 4.0, resp.AverageRating)

	resp, err = s.Rate(ctx, &RateParams{UserID: "b", RoomID: roomID, ContentID: contentID, Rating: 2})
	require.NoError(t, err)
	assert.Equal(t, 3.0, resp.AverageRating)
	assert.Equal(t, 2, resp.RatingCount)

	_, err = s.Rate(ctx, &RateParams{UserID: "c", RoomID: roomID, ContentID: contentID, Rating: 6})
	assert.ErrorIs(t, err, domain.ErrInvalidRating)
}

func TestDeleteContentClearsActive(t *testing.T) {
	s, gateway, roomID := newTestService(t, time.Hour)
	ctx := context.Background()

	addResp, err := s.AddYouTubeContent(ctx, &AddYouTubeContentParams{
		UserID: "u1", RoomID: roomID, Title: "v", VideoID: "id", Duration: 600,
	})
	require.NoError(t, err)
	contentID := addResp.Content.ContentID

	require.NoError(t, s.Start(ctx, &StartParams{UserID: "u1", RoomID: roomID, ContentID: contentID}))
	require.NoError(t, s.DeleteContent(ctx, &DeleteContentParams{UserID: "u1", RoomID: roomID, ContentID: contentID}))

	assert.Equal(t, 1, gateway.count(EventMediaRemoved))

	_, err = s.ActiveContent(ctx, roomID)
	assert.ErrorIs(t, err, domain.ErrContentNotFound)

	list, err := s.ContentList(ctx, roomID)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestContentListKeepsAddedOrder(t *testing.T) {
	s, _, roomID := newTestService(t, time.Hour)
	ctx := context.Background()

	var ids []string
	for _, title := range []string{"first", "second", "third"} {
		resp, err := s.AddYouTubeContent(ctx, &AddYouTubeContentParams{
			UserID: "u1", RoomID: roomID, Title: title, VideoID: title, Duration: 60,
		})
		require.NoError(t, err)
		ids = append(ids, resp.Content.ContentID)
		// added-at scores must differ for the ordering to be observable
		time.Sleep(2 * time.Millisecond)
	}

	list, err := s.ContentList(ctx, roomID)
	require.NoError(t, err)
	require.Len(t, list, 3)
	for i := range ids {
		assert.Equal(t, ids[i], list[i].ContentID)
	}
}
