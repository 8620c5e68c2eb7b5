package room

import "github.com/voiceroom/server/internal/domain/fault"

var (
	ErrInvalidMicCount  = fault.Validation("mic count must be one of 2, 6, 12, 16, 20")
	ErrSeatNotFound     = fault.NotFound("seat not found")
	ErrSeatTaken        = fault.Conflict("seat is already taken")
	ErrSeatLocked       = fault.Conflict("seat is locked")
	ErrVIPSeatForbidden = fault.PermissionDenied("vip seats are reserved for the owner and admins")
	ErrBanned           = fault.PermissionDenied("user is banned from this room")
	ErrNotOwner         = fault.PermissionDenied("only the room owner may do this")
	ErrAlreadyBanned    = fault.Conflict("user is already banned")
	ErrAlreadyAdmin     = fault.Conflict("user is already an admin")
	ErrOwnerImmune      = fault.Conflict("the room owner cannot be targeted")
	ErrRoomEnded        = fault.Conflict("room has ended")
)
