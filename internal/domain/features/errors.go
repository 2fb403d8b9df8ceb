package features

import "errors"

// Sentinel errors returned by the aggregator.
var (
	ErrUnknownColumn  = errors.New("column not in table schema")
	ErrUnknownVariant = errors.New("unknown aggregation variant")
	ErrInvalidSpec    = errors.New("invalid aggregate spec")
)
