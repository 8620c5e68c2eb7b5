// Package media models one piece of shared room media (a YouTube video,
// an uploaded audio file or a playlist) and its synchronized playback
// state. Methods are pure; persistence and broadcasting live in the
// media service.
package media

import (
	"time"
)

type Type string

const (
	TypeYouTube   Type = "youtube"
	TypeAudioFile Type = "audio_file"
	TypePlaylist  Type = "playlist"
)

type Status string

const (
	StatusLoading Status = "loading"
	StatusActive  Status = "active"
	StatusPaused  Status = "paused"
	StatusStopped Status = "stopped"
	StatusError   Status = "error"
)

type ControlAction string

const (
	ActionPlay       ControlAction = "play"
	ActionPause      ControlAction = "pause"
	ActionSeek       ControlAction = "seek"
	ActionVolume     ControlAction = "volume"
	ActionSkip       ControlAction = "skip"
	ActionAddToQueue ControlAction = "add_to_queue"
)

// YouTubeData describes a youtube item.
type YouTubeData struct {
	VideoID     string `json:"video_id" redis:"yt_video_id"`
	ChannelName string `json:"channel_name" redis:"yt_channel_name"`
	Duration    int    `json:"duration" redis:"yt_duration"`
}

// AudioData carries the metadata triple produced by the upload
// collaborator for an uploaded file.
type AudioData struct {
	FileName string  `json:"file_name" redis:"audio_file_name"`
	Duration float64 `json:"duration" redis:"audio_duration"`
	Bitrate  int     `json:"bitrate" redis:"audio_bitrate"`
	Format   string  `json:"format" redis:"audio_format"`
}

type PlaylistItem struct {
	ContentID string `json:"content_id"`
	Order     int    `json:"order"`
	AddedBy   string `json:"added_by"`
}

type PlaylistData struct {
	Items      []PlaylistItem `json:"items"`
	RepeatMode string         `json:"repeat_mode"`
}

type PlaybackState struct {
	IsPlaying bool `json:"is_playing"`
	// Position is in seconds.
	Position    float64   `json:"position"`
	Volume      int       `json:"volume"`
	Speed       float64   `json:"speed"`
	LastUpdated time.Time `json:"last_updated"`
}

// EffectivePosition projects the stored position forward by the wall
// time elapsed since the last update, scaled by playback speed. While
// paused the stored position is authoritative.
func (p PlaybackState) EffectivePosition(now time.Time) float64 {
	if !p.IsPlaying {
		return p.Position
	}

	return p.Position + now.Sub(p.LastUpdated).Seconds()*p.Speed
}

type ControllerGrant struct {
	UserID  string          `json:"user_id"`
	Actions []ControlAction `json:"actions"`
}

type Controls struct {
	ControlledBy string            `json:"controlled_by"`
	Grants       []ControllerGrant `json:"grants,omitempty"`
	IsLocked     bool              `json:"is_locked"`
}

type Stats struct {
	TotalPlays     int        `json:"total_plays"`
	TotalListeners int        `json:"total_listeners"`
	AverageRating  float64    `json:"average_rating"`
	RatingCount    int        `json:"rating_count"`
	LastPlayed     *time.Time `json:"last_played,omitempty"`
}

type Content struct {
	ContentID string `json:"content_id"`
	RoomID    string `json:"room_id"`
	Type      Type   `json:"type"`
	Title     string `json:"title"`
	AddedBy   string `json:"added_by"`

	// exactly one of these matches Type
	YouTube  *YouTubeData  `json:"youtube,omitempty"`
	Audio    *AudioData    `json:"audio,omitempty"`
	Playlist *PlaylistData `json:"playlist,omitempty"`

	Playback PlaybackState `json:"playback"`
	Controls Controls      `json:"controls"`
	Status   Status        `json:"status"`
	Stats    Stats         `json:"stats"`

	AddedAt time.Time `json:"added_at"`
}

// CanControl reports whether the user may perform the action: the
// controller owner always may, others need an explicit grant. A locked
// content accepts the controller owner only.
func (c *Content) CanControl(userID string, action ControlAction) bool {
	if c.Controls.ControlledBy == userID {
		return true
	}
	if c.Controls.IsLocked {
		return false
	}
	for _, g := range c.Controls.Grants {
		if g.UserID != userID {
			continue
		}
		for _, a := range g.Actions {
			if a == action {
				return true
			}
		}
	}

	return false
}

// Grant replaces the user's allowed actions.
func (c *Content) Grant(userID string, actions ...ControlAction) {
	for i := range c.Controls.Grants {
		if c.Controls.Grants[i].UserID == userID {
			c.Controls.Grants[i].Actions = actions
			return
		}
	}

	c.Controls.Grants = append(c.Controls.Grants, ControllerGrant{UserID: userID, Actions: actions})
}

// Start moves the content to active at the given position. The caller
// must have force-stopped any other active content in the room first.
func (c *Content) Start(position float64, now time.Time) error {
	if c.Status == StatusError {
		return ErrContentErrored
	}

	c.Status = StatusActive
	c.Playback.IsPlaying = true
	c.Playback.Position = position
	c.Playback.LastUpdated = now
	c.Stats.TotalPlays++
	c.Stats.LastPlayed = &now

	return nil
}

// Pause freezes playback at its drift-corrected position.
func (c *Content) Pause(now time.Time) error {
	if c.Status != StatusActive {
		return ErrNotPlaying
	}

	c.Playback.Position = c.Playback.EffectivePosition(now)
	c.Playback.IsPlaying = false
	c.Playback.LastUpdated = now
	c.Status = StatusPaused

	return nil
}

// Stop forces the content back to stopped and rewinds it.
func (c *Content) Stop(now time.Time) {
	c.Status = StatusStopped
	c.Playback.IsPlaying = false
	c.Playback.Position = 0
	c.Playback.LastUpdated = now
}

// Seek repositions playback without changing the play/pause status.
func (c *Content) Seek(position float64, now time.Time) error {
	if position < 0 {
		return ErrInvalidPosition
	}

	c.Playback.Position = position
	c.Playback.LastUpdated = now

	return nil
}

// SetVolume clamps to [0,100].
func (c *Content) SetVolume(volume int) int {
	c.Playback.Volume = min(100, max(0, volume))

	return c.Playback.Volume
}

// MarkError records a failure; only Reset leaves the error state.
func (c *Content) MarkError(now time.Time) {
	c.Status = StatusError
	c.Playback.IsPlaying = false
	c.Playback.LastUpdated = now
}

// Reset returns errored content to stopped. This is the only way out of
// the error state.
func (c *Content) Reset(now time.Time) error {
	if c.Status != StatusError {
		return ErrNotErrored
	}

	c.Stop(now)

	return nil
}

// AddRating folds a rating in [1,5] into the running mean.
func (c *Content) AddRating(rating int) error {
	if rating < 1 || rating > 5 {
		return ErrInvalidRating
	}

	total := c.Stats.AverageRating*float64(c.Stats.RatingCount) + float64(rating)
	c.Stats.RatingCount++
	c.Stats.AverageRating = total / float64(c.Stats.RatingCount)

	return nil
}

// Resync advances the stored position to the drift-corrected value so
// persisted state never drifts unbounded between broadcasts.
func (c *Content) Resync(now time.Time) float64 {
	c.Playback.Position = c.Playback.EffectivePosition(now)
	c.Playback.LastUpdated = now

	return c.Playback.Position
}
