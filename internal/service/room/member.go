package room

import (
	"context"
	"time"

	"github.com/voiceroom/server/internal/domain/fault"
	"github.com/voiceroom/server/internal/domain/room"
	"github.com/voiceroom/server/internal/service/broadcast"
)

type BanMemberParams struct {
	UserID   string
	RoomID   string
	TargetID string
	Reason   string
	// Duration 0 means permanent.
	Duration time.Duration
}

// BanMember records the ban and cascades it: the target loses their
// seat, queue slot and listener entry in the same write.
func (s service) BanMember(ctx context.Context, params *BanMemberParams) error {
	var expiresAt *time.Time
	r, err := s.update(ctx, params.RoomID, func(r *room.Room) error {
		if !r.HasPermission(params.UserID, room.PermKick) {
			return fault.PermissionDenied("not allowed to ban")
		}
		// admins cannot ban each other, only the owner may
		if r.RoleOf(params.TargetID) == room.RoleAdmin && r.RoleOf(params.UserID) != room.RoleOwner {
			return fault.PermissionDenied("only the owner can ban an admin")
		}

		return r.Ban(params.TargetID, params.UserID, params.Reason, params.Duration, time.Now())
	})
	if err != nil {
		return err
	}

	for i := range r.BannedUsers {
		if r.BannedUsers[i].UserID == params.TargetID {
			expiresAt = r.BannedUsers[i].ExpiresAt
		}
	}

	s.gateway.Broadcast(ctx, params.RoomID, broadcast.NewEvent(EventUserBanned, UserBannedPayload{
		UserID:    params.TargetID,
		BannedBy:  params.UserID,
		Reason:    params.Reason,
		ExpiresAt: expiresAt,
	}))
	s.gateway.Broadcast(ctx, params.RoomID, broadcast.NewEvent(EventMicUpdate, micUpdatePayload(r)))

	s.logger.InfoContext(ctx, "user banned",
		"room_id", params.RoomID,
		"target_id", params.TargetID,
		"banned_by", params.UserID,
	)

	return nil
}

type UnbanMemberParams struct {
	UserID   string
	RoomID   string
	TargetID string
}

func (s service) UnbanMember(ctx context.Context, params *UnbanMemberParams) error {
	_, err := s.update(ctx, params.RoomID, func(r *room.Room) error {
		if !r.HasPermission(params.UserID, room.PermKick) {
			return fault.PermissionDenied("not allowed to unban")
		}
		if !r.Unban(params.TargetID) {
			return fault.NotFound("user is not banned")
		}

		return nil
	})
	if err != nil {
		return err
	}

	s.gateway.Broadcast(ctx, params.RoomID, broadcast.NewEvent(EventUserUnbanned, UserUnbannedPayload{UserID: params.TargetID}))

	return nil
}

type PromoteMemberParams struct {
	UserID   string
	RoomID   string
	TargetID string
}

// PromoteMember grants admin with the default permission set. Owner
// only.
func (s service) PromoteMember(ctx context.Context, params *PromoteMemberParams) error {
	_, err := s.update(ctx, params.RoomID, func(r *room.Room) error {
		if r.OwnerID != params.UserID {
			return room.ErrNotOwner
		}

		return r.PromoteAdmin(params.TargetID, params.UserID, time.Now())
	})
	if err != nil {
		return err
	}

	s.gateway.Broadcast(ctx, params.RoomID, broadcast.NewEvent(EventRoleChanged, RoleChangedPayload{
		UserID: params.TargetID,
		Role:   room.RoleAdmin,
	}))

	return nil
}

type DemoteMemberParams struct {
	UserID   string
	RoomID   string
	TargetID string
}

func (s service) DemoteMember(ctx context.Context, params *DemoteMemberParams) error {
	var role room.Role
	_, err := s.update(ctx, params.RoomID, func(r *room.Room) error {
		if r.OwnerID != params.UserID {
			return room.ErrNotOwner
		}
		if !r.DemoteAdmin(params.TargetID) {
			return fault.NotFound("user is not an admin")
		}

		role = r.RoleOf(params.TargetID)

		return nil
	})
	if err != nil {
		return err
	}

	s.gateway.Broadcast(ctx, params.RoomID, broadcast.NewEvent(EventRoleChanged, RoleChangedPayload{
		UserID: params.TargetID,
		Role:   role,
	}))

	return nil
}

type KickMemberParams struct {
	UserID   string
	RoomID   string
	TargetID string
}

// KickMember removes the target from the room without recording a ban;
// they may rejoin.
func (s service) KickMember(ctx context.Context, params *KickMemberParams) error {
	r, err := s.update(ctx, params.RoomID, func(r *room.Room) error {
		if !r.HasPermission(params.UserID, room.PermKick) {
			return fault.PermissionDenied("not allowed to kick")
		}
		if params.TargetID == r.OwnerID {
			return room.ErrOwnerImmune
		}

		now := time.Now()
		if _, ok := r.LeaveSeat(params.TargetID); ok {
			s.seatQueueHead(r, now)
		}
		r.RemoveFromQueue(params.TargetID)
		r.RemoveListener(params.TargetID)

		return nil
	})
	if err != nil {
		return err
	}

	s.gateway.Broadcast(ctx, params.RoomID, broadcast.NewEvent(EventUserLeft, UserLeftPayload{UserID: params.TargetID}))
	s.gateway.Broadcast(ctx, params.RoomID, broadcast.NewEvent(EventMicUpdate, micUpdatePayload(r)))

	return nil
}
