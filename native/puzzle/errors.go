package puzzle

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthorized marks callers that fail authentication or lack admin
	// membership.
	ErrUnauthorized = errors.New("puzzle: unauthorized")
	// ErrNotFound marks references to puzzle ids that do not exist.
	ErrNotFound = errors.New("puzzle: not found")
	// ErrInvalidOperation marks requests that are well formed but not permitted
	// in the current state, e.g. removing the last admin.
	ErrInvalidOperation = errors.New("puzzle: invalid operation")
	// ErrMalformedCredential marks permits whose structure, signature, chain id
	// or token binding is invalid. It wraps ErrUnauthorized.
	ErrMalformedCredential = fmt.Errorf("%w: malformed credential", ErrUnauthorized)
	// ErrUnknownMessage marks payloads that do not decode into a known variant.
	ErrUnknownMessage = errors.New("puzzle: unknown message")

	ErrNotInstantiated     = errors.New("puzzle: contract not instantiated")
	ErrAlreadyInstantiated = errors.New("puzzle: contract already instantiated")

	errNilStore = errors.New("puzzle: state not configured")
)
