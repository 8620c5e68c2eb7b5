package room

import (
	"time"

	"github.com/voiceroom/server/internal/domain/room"
)

// Event names sent over the gateway. The joiner receives the full
// room_joined snapshot; everyone else gets deltas.
const (
	EventRoomJoined      = "room_joined"
	EventUserJoined      = "user_joined"
	EventUserLeft        = "user_left"
	EventMicUpdate       = "mic_update"
	EventMicCountChanged = "mic_count_changed"
	EventQueueUpdate     = "queue_update"
	EventUserBanned      = "user_banned"
	EventUserUnbanned    = "user_unbanned"
	EventRoleChanged     = "role_changed"
	EventChatMessage     = "chat_message"
	EventRoomEnded       = "room_ended"
)

// Snapshot is the full room state a joiner needs to render the room.
type Snapshot struct {
	RoomID       string            `json:"room_id"`
	Title        string            `json:"title"`
	OwnerID      string            `json:"owner_id"`
	IsPrivate    bool              `json:"is_private"`
	Status       room.Status       `json:"status"`
	Layout       room.Layout       `json:"layout"`
	Seats        []room.Seat       `json:"seats"`
	WaitingQueue []room.QueueEntry `json:"waiting_queue"`
	MicStats     room.MicStats     `json:"mic_stats"`
	Presence     []string          `json:"presence"`
	You          UserView          `json:"you"`
}

type UserView struct {
	UserID string    `json:"user_id"`
	Role   room.Role `json:"role"`
}

type UserJoinedPayload struct {
	UserID string    `json:"user_id"`
	Role   room.Role `json:"role"`
}

type UserLeftPayload struct {
	UserID string `json:"user_id"`
}

// MicUpdatePayload is the delta broadcast after any seat or queue
// mutation.
type MicUpdatePayload struct {
	Seats        []room.Seat       `json:"seats"`
	WaitingQueue []room.QueueEntry `json:"waiting_queue"`
	MicStats     room.MicStats     `json:"mic_stats"`
}

type MicCountChangedPayload struct {
	TotalMics    int               `json:"total_mics"`
	VIPMics      int               `json:"vip_mics"`
	GuestMics    int               `json:"guest_mics"`
	Layout       room.Layout       `json:"layout"`
	PrevSeats    []room.Seat       `json:"prev_seats"`
	Seats        []room.Seat       `json:"seats"`
	WaitingQueue []room.QueueEntry `json:"waiting_queue"`
	Overflow     []string          `json:"overflow,omitempty"`
}

type UserBannedPayload struct {
	UserID    string     `json:"user_id"`
	BannedBy  string     `json:"banned_by"`
	Reason    string     `json:"reason,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

type UserUnbannedPayload struct {
	UserID string `json:"user_id"`
}

type RoleChangedPayload struct {
	UserID string    `json:"user_id"`
	Role   room.Role `json:"role"`
}

type RoomEndedPayload struct {
	RoomID  string `json:"room_id"`
	EndedBy string `json:"ended_by"`
}

type ChatMessagePayload struct {
	UserID string    `json:"user_id"`
	Text   string    `json:"text"`
	SentAt time.Time `json:"sent_at"`
}

func micUpdatePayload(r *room.Room) MicUpdatePayload {
	return MicUpdatePayload{
		Seats:        r.Seats,
		WaitingQueue: r.WaitingQueue,
		MicStats:     r.MicStats(),
	}
}
