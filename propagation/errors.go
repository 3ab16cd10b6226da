package propagation

import "errors"

var (
	ErrDimensionMismatch     = errors.New("dimension mismatch")
	ErrPropagationDivergence = errors.New("propagation diverged")
)
