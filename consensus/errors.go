package consensus

import "errors"

var (
	ErrProposalCountMismatch = errors.New("proposal count does not match node count")
	ErrMissingProposalKey    = errors.New("missing proposal key")
	ErrProposalNodeMismatch  = errors.New("proposal does not belong to the node")
	ErrInvalidValue          = errors.New("invalid proposal value")
)
