package utils

import "errors"

// Sentinel errors shared by every package, matched with errors.Is
var (
	// ErrConfiguration marks invalid space construction: bad axes, bad
	// padding, unsupported dtype for a basis family
	ErrConfiguration = errors.New("spectral: configuration error")

	// ErrUnimplementedPath marks a request the library recognizes but
	// does not support (e.g. coupled boundary values on several ranks)
	ErrUnimplementedPath = errors.New("spectral: unimplemented path")

	// ErrShapeMismatch marks a caller array whose shape or dtype does
	// not match a transform buffer
	ErrShapeMismatch = errors.New("spectral: shape mismatch")

	// ErrNotPlanned marks use of a basis transform before Plan
	ErrNotPlanned = errors.New("spectral: basis not planned")

	// ErrCommunicator marks a failed collective or process grid
	ErrCommunicator = errors.New("spectral: communicator error")
)
