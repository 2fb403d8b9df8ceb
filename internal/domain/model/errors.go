package model

import "errors"

// Sentinel kinds for input validation. The whole batch is rejected on any of them.
var (
	ErrInvalidMatch      = errors.New("invalid match result")
	ErrInvalidRecord     = errors.New("invalid match record")
	ErrInconsistentMatch = errors.New("match rows disagree on timestamp")
)
