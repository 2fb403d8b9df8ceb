package csvio

import "errors"

// Sentinel errors for malformed input.
var (
	ErrHeader = errors.New("csv header")
	ErrRow    = errors.New("csv row")
)
