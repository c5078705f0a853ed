package rpc

import (
	"errors"
	"net/http"

	"puzzlechain/core"
	"puzzlechain/native/puzzle"
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeServerError    = -32000
	codeUnauthorized   = -32001
	codeNotFound       = -32004
	codeUnavailable    = -32005
	codeRateLimited    = -32020
)

// classify maps contract and host errors onto an HTTP status and JSON-RPC
// code. The error message itself is returned to the caller unchanged.
func classify(err error) (int, int) {
	switch {
	case errors.Is(err, puzzle.ErrUnauthorized):
		return http.StatusForbidden, codeUnauthorized
	case errors.Is(err, puzzle.ErrNotFound):
		return http.StatusNotFound, codeNotFound
	case errors.Is(err, puzzle.ErrNotInstantiated):
		return http.StatusServiceUnavailable, codeUnavailable
	case errors.Is(err, puzzle.ErrInvalidOperation),
		errors.Is(err, puzzle.ErrUnknownMessage),
		errors.Is(err, puzzle.ErrAlreadyInstantiated),
		errors.Is(err, core.ErrBadNonce),
		errors.Is(err, core.ErrChainIDMismatch),
		errors.Is(err, core.ErrInvalidTransaction):
		return http.StatusBadRequest, codeInvalidParams
	default:
		return http.StatusInternalServerError, codeServerError
	}
}
