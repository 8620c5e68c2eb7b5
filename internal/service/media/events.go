package media

import (
	"time"

	"github.com/voiceroom/server/internal/domain/media"
)

const (
	EventMediaAdded         = "media_added"
	EventMediaRemoved       = "media_removed"
	EventMediaStarted       = "media_started"
	EventMediaPaused        = "media_paused"
	EventMediaStopped       = "media_stopped"
	EventMediaSeeked        = "media_seeked"
	EventMediaVolumeChanged = "media_volume_changed"
	EventMediaError         = "media_error"
	EventMediaReset         = "media_reset"
	EventMediaRated         = "media_rated"
	EventMediaSync          = "media_sync"
)

// StatePayload carries the playback state every media event and sync
// tick broadcasts. Position is drift-corrected at send time.
type StatePayload struct {
	ContentID string       `json:"content_id"`
	Type      media.Type   `json:"type"`
	Title     string       `json:"title"`
	Status    media.Status `json:"status"`
	IsPlaying bool         `json:"is_playing"`
	Position  float64      `json:"position"`
	Volume    int          `json:"volume"`
	Speed     float64      `json:"speed"`
	SentAt    time.Time    `json:"sent_at"`
}

type RemovedPayload struct {
	ContentID string `json:"content_id"`
}

type RatedPayload struct {
	ContentID     string  `json:"content_id"`
	AverageRating float64 `json:"average_rating"`
	RatingCount   int     `json:"rating_count"`
}

func statePayload(c *media.Content, now time.Time) StatePayload {
	return StatePayload{
		ContentID: c.ContentID,
		Type:      c.Type,
		Title:     c.Title,
		Status:    c.Status,
		IsPlaying: c.Playback.IsPlaying,
		Position:  c.Playback.EffectivePosition(now),
		Volume:    c.Playback.Volume,
		Speed:     c.Playback.Speed,
		SentAt:    now,
	}
}
