package gif

import "errors"

var (
	// ErrUnknownMethod indicates an influence method other than GIF or IF.
	ErrUnknownMethod = errors.New("gif: unknown method")
	// ErrUnknownSolver indicates a solver name missing from the registry.
	ErrUnknownSolver = errors.New("gif: unknown solver")
	// ErrZeroScale indicates a zero scale hyperparameter.
	ErrZeroScale = errors.New("gif: scale must be nonzero")
	// ErrNegativeIterations indicates a negative iteration count.
	ErrNegativeIterations = errors.New("gif: iterations must not be negative")
)
