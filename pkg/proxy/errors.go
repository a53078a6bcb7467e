// ABOUTME: Error kinds returned by the proxy facades
// ABOUTME: Maps sentinel errors onto the closed result set
package proxy

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidArguments reports caller misuse: bad address, config, flag or handle
	ErrInvalidArguments = errors.New("invalid arguments")

	// ErrInvalidState reports a violated precondition or a failed transport call
	ErrInvalidState = errors.New("invalid state")

	// ErrNotSupported reports an operation this proxy does not implement
	ErrNotSupported = errors.New("not supported")

	// ErrConfigMismatch rejects a transport whose config differs from the stream's
	ErrConfigMismatch = fmt.Errorf("%w: stream config mismatch", ErrInvalidArguments)
)

// Result is the outcome kind exposed to the platform-facing layer
type Result int

const (
	ResultOK Result = iota
	ResultInvalidArguments
	ResultInvalidState
	ResultNotSupported
)

func (r Result) String() string {
	switch r {
	case ResultOK:
		return "OK"
	case ResultInvalidArguments:
		return "INVALID_ARGUMENTS"
	case ResultInvalidState:
		return "INVALID_STATE"
	case ResultNotSupported:
		return "NOT_SUPPORTED"
	default:
		return fmt.Sprintf("Result(%d)", int(r))
	}
}

// ResultOf classifies an error returned by this package. Unknown errors
// are treated as INVALID_STATE.
func ResultOf(err error) Result {
	switch {
	case err == nil:
		return ResultOK
	case errors.Is(err, ErrInvalidArguments):
		return ResultInvalidArguments
	case errors.Is(err, ErrNotSupported):
		return ResultNotSupported
	default:
		return ResultInvalidState
	}
}
