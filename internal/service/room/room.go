package room

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/voiceroom/server/internal/domain/fault"
	"github.com/voiceroom/server/internal/domain/room"
	"github.com/voiceroom/server/internal/service/broadcast"
)

type CreateRoomParams struct {
	OwnerID   string
	Title     string
	TotalMics int
	IsPrivate bool
}

type CreateRoomResponse struct {
	RoomID string
	Room   *room.Room
}

func (s service) CreateRoom(ctx context.Context, params *CreateRoomParams) (CreateRoomResponse, error) {
	roomID := uuid.NewString()

	r, err := room.New(roomID, params.OwnerID, params.Title, params.TotalMics, params.IsPrivate, time.Now())
	if err != nil {
		return CreateRoomResponse{}, err
	}

	if err := s.roomRepo.SetRoom(ctx, r); err != nil {
		return CreateRoomResponse{}, err
	}

	s.logger.InfoContext(ctx, "room created",
		"room_id", roomID,
		"owner_id", params.OwnerID,
		"total_mics", params.TotalMics,
	)

	return CreateRoomResponse{RoomID: roomID, Room: r}, nil
}

type JoinRoomParams struct {
	Conn   *websocket.Conn
	UserID string
	RoomID string
}

type JoinRoomResponse struct {
	Snapshot Snapshot
}

// JoinRoom registers the user as a listener, subscribes their
// connection and sends them the full snapshot. Everyone already in the
// room gets a user_joined delta.
func (s service) JoinRoom(ctx context.Context, params *JoinRoomParams) (JoinRoomResponse, error) {
	r, err := s.update(ctx, params.RoomID, func(r *room.Room) error {
		if s.membersLimit > 0 && r.ParticipantCount() >= s.membersLimit && r.RoleOf(params.UserID) == room.RoleGuest {
			return fault.Conflict("room is full")
		}

		return r.AddListener(params.UserID, time.Now())
	})
	if err != nil {
		return JoinRoomResponse{}, err
	}

	if err := s.gateway.Subscribe(params.Conn, params.UserID, params.RoomID); err != nil {
		return JoinRoomResponse{}, err
	}

	snapshot := s.snapshot(r, params.UserID)
	if err := s.gateway.SendToConn(ctx, params.Conn, broadcast.NewEvent(EventRoomJoined, snapshot)); err != nil {
		return JoinRoomResponse{}, err
	}

	s.gateway.BroadcastExcept(ctx, params.RoomID, params.UserID, broadcast.NewEvent(EventUserJoined, UserJoinedPayload{
		UserID: params.UserID,
		Role:   r.RoleOf(params.UserID),
	}))

	return JoinRoomResponse{Snapshot: snapshot}, nil
}

type LeaveRoomParams struct {
	UserID string
	RoomID string
}

// LeaveRoom removes the user from the room entirely: their seat, queue
// slot and listener entry. The freed seat is offered to the queue head.
func (s service) LeaveRoom(ctx context.Context, params *LeaveRoomParams) error {
	seated := false
	r, err := s.update(ctx, params.RoomID, func(r *room.Room) error {
		now := time.Now()
		if _, ok := r.LeaveSeat(params.UserID); ok {
			seated = true
			s.seatQueueHead(r, now)
		}
		r.RemoveFromQueue(params.UserID)
		r.RemoveListener(params.UserID)

		return nil
	})
	if err != nil {
		return err
	}

	s.gateway.Broadcast(ctx, params.RoomID, broadcast.NewEvent(EventUserLeft, UserLeftPayload{UserID: params.UserID}))
	if seated {
		s.gateway.Broadcast(ctx, params.RoomID, broadcast.NewEvent(EventMicUpdate, micUpdatePayload(r)))
	}

	return nil
}

// Disconnect is the connection-drop hook: unsubscribe first so the
// departure delta does not target the dead connection, then apply the
// same state transition as an explicit leave.
func (s service) Disconnect(ctx context.Context, conn *websocket.Conn) error {
	userID, roomID, err := s.gateway.Unsubscribe(conn)
	if err != nil {
		return err
	}
	if roomID == "" {
		return nil
	}

	return s.LeaveRoom(ctx, &LeaveRoomParams{UserID: userID, RoomID: roomID})
}

type EndRoomParams struct {
	UserID string
	RoomID string
}

// EndRoom marks the room ended. Owner only.
func (s service) EndRoom(ctx context.Context, params *EndRoomParams) error {
	s.locker.Lock(params.RoomID)
	r, err := s.roomRepo.GetRoom(ctx, params.RoomID)
	if err != nil {
		s.locker.Unlock(params.RoomID)
		return mapRepoErr(err)
	}
	if r.OwnerID != params.UserID {
		s.locker.Unlock(params.RoomID)
		return room.ErrNotOwner
	}

	r.End(time.Now())
	err = s.roomRepo.SetRoom(ctx, r)
	s.locker.Unlock(params.RoomID)
	if err != nil {
		return err
	}

	s.gateway.Broadcast(ctx, params.RoomID, broadcast.NewEvent(EventRoomEnded, RoomEndedPayload{
		RoomID:  params.RoomID,
		EndedBy: params.UserID,
	}))

	return nil
}

type ChangeMicCountParams struct {
	UserID    string
	RoomID    string
	TotalMics int
}

type ChangeMicCountResponse struct {
	Overflow []string
}

// ChangeMicCount rebuilds the seat grid for the new count. Owner only.
func (s service) ChangeMicCount(ctx context.Context, params *ChangeMicCountParams) (ChangeMicCountResponse, error) {
	var (
		prevSeats []room.Seat
		overflow  []string
	)
	r, err := s.update(ctx, params.RoomID, func(r *room.Room) error {
		if r.OwnerID != params.UserID {
			return room.ErrNotOwner
		}

		var err error
		prevSeats, overflow, err = r.Rearrange(params.TotalMics, time.Now())

		return err
	})
	if err != nil {
		return ChangeMicCountResponse{}, err
	}

	layout, _ := room.LayoutFor(params.TotalMics)
	s.gateway.Broadcast(ctx, params.RoomID, broadcast.NewEvent(EventMicCountChanged, MicCountChangedPayload{
		TotalMics:    r.TotalMics,
		VIPMics:      r.VIPMics,
		GuestMics:    r.GuestMics,
		Layout:       layout,
		PrevSeats:    prevSeats,
		Seats:        r.Seats,
		WaitingQueue: r.WaitingQueue,
		Overflow:     overflow,
	}))

	s.logger.InfoContext(ctx, "mic count changed",
		"room_id", params.RoomID,
		"total_mics", params.TotalMics,
		"overflow", len(overflow),
	)

	return ChangeMicCountResponse{Overflow: overflow}, nil
}

type SendMessageParams struct {
	UserID string
	RoomID string
	Text   string
}

// SendMessage runs the text through the profanity filter and broadcasts
// it. Banned users and guests cannot chat.
func (s service) SendMessage(ctx context.Context, params *SendMessageParams) error {
	text := strings.TrimSpace(params.Text)
	if text == "" {
		return fault.Validation("message is empty")
	}

	now := time.Now()
	_, err := s.update(ctx, params.RoomID, func(r *room.Room) error {
		if r.IsBanned(params.UserID, now) {
			return room.ErrBanned
		}
		if r.RoleOf(params.UserID) == room.RoleGuest {
			return fault.PermissionDenied("join the room before chatting")
		}

		r.RecordMessage(now)

		return nil
	})
	if err != nil {
		return err
	}

	if s.filter != nil {
		text = s.filter.Sanitize(text)
	}

	s.gateway.Broadcast(ctx, params.RoomID, broadcast.NewEvent(EventChatMessage, ChatMessagePayload{
		UserID: params.UserID,
		Text:   text,
		SentAt: now,
	}))

	return nil
}

func (s service) snapshot(r *room.Room, userID string) Snapshot {
	layout, _ := room.LayoutFor(r.TotalMics)

	return Snapshot{
		RoomID:       r.ID,
		Title:        r.Title,
		OwnerID:      r.OwnerID,
		IsPrivate:    r.IsPrivate,
		Status:       r.Status,
		Layout:       layout,
		Seats:        r.Seats,
		WaitingQueue: r.WaitingQueue,
		MicStats:     r.MicStats(),
		Presence:     s.gateway.Presence(r.ID),
		You: UserView{
			UserID: userID,
			Role:   r.RoleOf(userID),
		},
	}
}

// seatQueueHead promotes the waiting-queue head into the freed seat, if
// anyone is waiting and a seat they may take is open.
func (s service) seatQueueHead(r *room.Room, now time.Time) {
	head, ok := r.PopQueue()
	if !ok {
		return
	}

	for _, seat := range r.Seats {
		if seat.Occupied() || seat.IsLocked {
			continue
		}
		if err := r.JoinSeat(head.UserID, seat.SeatNumber, now); err == nil {
			return
		}
	}

	// no seat fit, put them back with their original slot
	r.AddToQueue(head.UserID, head.Priority, head.RequestedAt)
}
