package rating

import "errors"

// Sentinel errors returned by the engine.
var (
	ErrOutOfOrder      = errors.New("match precedes the replay watermark")
	ErrStateNotEmpty   = errors.New("rating state already populated")
	ErrUnknownPolicy   = errors.New("unknown initial rating policy")
	ErrInvalidAnchor   = errors.New("anchor rank must be positive")
	ErrInvalidSnapshot = errors.New("invalid rating snapshot")
)
