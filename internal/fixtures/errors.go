package fixtures

import "errors"

// ErrInvalidConfig is returned for unusable generation parameters.
var ErrInvalidConfig = errors.New("invalid fixture config")
