package room

import (
	"context"
	"time"

	"github.com/voiceroom/server/internal/domain/fault"
	"github.com/voiceroom/server/internal/domain/room"
	"github.com/voiceroom/server/internal/service/broadcast"
)

type JoinSeatParams struct {
	UserID     string
	RoomID     string
	SeatNumber int
}

func (s service) JoinSeat(ctx context.Context, params *JoinSeatParams) error {
	r, err := s.update(ctx, params.RoomID, func(r *room.Room) error {
		return r.JoinSeat(params.UserID, params.SeatNumber, time.Now())
	})
	if err != nil {
		return err
	}

	s.gateway.Broadcast(ctx, params.RoomID, broadcast.NewEvent(EventMicUpdate, micUpdatePayload(r)))

	return nil
}

type LeaveSeatParams struct {
	UserID string
	RoomID string
}

// LeaveSeat vacates the user's seat and returns them to the listener
// set. The freed seat is offered to the waiting-queue head.
func (s service) LeaveSeat(ctx context.Context, params *LeaveSeatParams) error {
	r, err := s.update(ctx, params.RoomID, func(r *room.Room) error {
		now := time.Now()
		if _, ok := r.LeaveSeat(params.UserID); !ok {
			return fault.Conflict("user is not seated")
		}
		if err := r.AddListener(params.UserID, now); err != nil {
			return err
		}
		s.seatQueueHead(r, now)

		return nil
	})
	if err != nil {
		return err
	}

	s.gateway.Broadcast(ctx, params.RoomID, broadcast.NewEvent(EventMicUpdate, micUpdatePayload(r)))

	return nil
}

type RequestMicParams struct {
	UserID   string
	RoomID   string
	Priority int
}

// RequestMic enqueues the user for a seat. Requests are idempotent; a
// repeated request keeps the original priority and timestamp.
func (s service) RequestMic(ctx context.Context, params *RequestMicParams) error {
	r, err := s.update(ctx, params.RoomID, func(r *room.Room) error {
		now := time.Now()
		if r.IsBanned(params.UserID, now) {
			return room.ErrBanned
		}
		if r.SeatOf(params.UserID) != nil {
			return fault.Conflict("user is already seated")
		}

		r.AddToQueue(params.UserID, params.Priority, now)

		return nil
	})
	if err != nil {
		return err
	}

	s.gateway.Broadcast(ctx, params.RoomID, broadcast.NewEvent(EventQueueUpdate, micUpdatePayload(r)))

	return nil
}

type CancelMicRequestParams struct {
	UserID string
	RoomID string
}

func (s service) CancelMicRequest(ctx context.Context, params *CancelMicRequestParams) error {
	r, err := s.update(ctx, params.RoomID, func(r *room.Room) error {
		if !r.RemoveFromQueue(params.UserID) {
			return fault.NotFound("user is not in the queue")
		}

		return nil
	})
	if err != nil {
		return err
	}

	s.gateway.Broadcast(ctx, params.RoomID, broadcast.NewEvent(EventQueueUpdate, micUpdatePayload(r)))

	return nil
}

type SetSeatMutedParams struct {
	UserID     string
	RoomID     string
	SeatNumber int
	IsMuted    bool
}

// SetSeatMuted mutes or unmutes an occupied seat. Speakers may mute
// themselves; muting others needs the mute permission.
func (s service) SetSeatMuted(ctx context.Context, params *SetSeatMutedParams) error {
	r, err := s.update(ctx, params.RoomID, func(r *room.Room) error {
		seat := r.SeatOf(params.UserID)
		self := seat != nil && seat.SeatNumber == params.SeatNumber
		if !self && !r.HasPermission(params.UserID, room.PermMute) {
			return fault.PermissionDenied("not allowed to mute this seat")
		}

		return r.SetSeatMuted(params.SeatNumber, params.IsMuted)
	})
	if err != nil {
		return err
	}

	s.gateway.Broadcast(ctx, params.RoomID, broadcast.NewEvent(EventMicUpdate, micUpdatePayload(r)))

	return nil
}

type SetSeatLockedParams struct {
	UserID     string
	RoomID     string
	SeatNumber int
	IsLocked   bool
}

func (s service) SetSeatLocked(ctx context.Context, params *SetSeatLockedParams) error {
	r, err := s.update(ctx, params.RoomID, func(r *room.Room) error {
		if !r.HasPermission(params.UserID, room.PermManageSeats) {
			return fault.PermissionDenied("not allowed to manage seats")
		}

		return r.SetSeatLocked(params.SeatNumber, params.IsLocked)
	})
	if err != nil {
		return err
	}

	s.gateway.Broadcast(ctx, params.RoomID, broadcast.NewEvent(EventMicUpdate, micUpdatePayload(r)))

	return nil
}
