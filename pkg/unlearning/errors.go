package unlearning

import "errors"

var (
	// ErrUnknownTask indicates an unlearn task other than node, edge or feature.
	ErrUnknownTask = errors.New("unlearning: unknown unlearn task")
	// ErrInvalidRatio indicates an unlearn ratio outside (0, 1].
	ErrInvalidRatio = errors.New("unlearning: unlearn ratio must be in (0, 1]")
	// ErrNilGraph indicates a missing graph or feature matrix.
	ErrNilGraph = errors.New("unlearning: graph and features are required")
)
