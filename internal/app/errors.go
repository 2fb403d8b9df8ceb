package app

import "errors"

// ErrRecordMismatch is returned when a record disagrees with the result of
// its match.
var ErrRecordMismatch = errors.New("record does not match its result")
