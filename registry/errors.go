package registry

import "errors"

var (
	ErrDuplicateNode     = errors.New("duplicate node")
	ErrUnknownNode       = errors.New("unknown node")
	ErrStaleSnapshot     = errors.New("stale snapshot")
	ErrDimensionMismatch = errors.New("dimension mismatch")
	ErrInvalidNode       = errors.New("invalid node")
)
