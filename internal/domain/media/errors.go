package media

import "github.com/voiceroom/server/internal/domain/fault"

var (
	ErrContentNotFound = fault.NotFound("content not found")
	ErrContentErrored  = fault.Conflict("content is in error state, reset it first")
	ErrNotErrored      = fault.Conflict("content is not in error state")
	ErrNotPlaying      = fault.Conflict("content is not playing")
	ErrInvalidRating   = fault.Validation("rating must be between 1 and 5")
	ErrInvalidPosition = fault.Validation("position must not be negative")
	ErrControlDenied   = fault.PermissionDenied("no control permission for this action")
)
