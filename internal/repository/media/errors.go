package media

import "errors"

var (
	ErrContentNotFound = errors.New("content not found")
	ErrNoActiveContent = errors.New("no active content")
)
