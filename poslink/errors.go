package poslink

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidArgument reports a request that failed local validation.
	// Such a request is never written to the wire.
	ErrInvalidArgument = errors.New("poslink: invalid argument")

	// ErrProtocol reports a malformed frame, or an error reported by the terminal.
	ErrProtocol = errors.New("poslink: protocol error")
)

// ProtocolError is an error reported by the terminal in an ERR frame.
//
// It matches ErrProtocol with errors.Is.
type ProtocolError struct {
	Code    ResponseCode
	Display string
}

// Error implements the error interface.
func (e *ProtocolError) Error() string {
	return fmt.Sprintf("poslink: terminal error %s (%s): %s", string(e.Code), e.Code.Description(), e.Display)
}

// Is reports whether target is ErrProtocol.
func (e *ProtocolError) Is(target error) bool {
	return target == ErrProtocol
}

func invalidArg(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrInvalidArgument}, args...)...)
}
