package pinpad

import (
	"errors"
	"fmt"

	"github.com/arloliu/go-poslink/poslink"
)

// Errors returned by Client. Validation and terminal-reported failures are
// reported with poslink.ErrInvalidArgument and poslink.ErrProtocol.
var (
	// ErrNacked reports a frame rejected by the terminal.
	ErrNacked = errors.New("pinpad: frame not acknowledged")
	// ErrDeviceBusy reports a busy terminal, or one that did not answer in time.
	ErrDeviceBusy = errors.New("pinpad: device busy")
	// ErrConnection reports that no connection to the terminal could be made.
	// Nothing was sent to the terminal.
	ErrConnection = errors.New("pinpad: unable to connect to terminal")
	// ErrUnexpectedResponse reports a response of the wrong type or reference.
	ErrUnexpectedResponse = errors.New("pinpad: unexpected response")
	// ErrNoTransactionInProgress reports a cancel sent to an idle terminal.
	ErrNoTransactionInProgress = errors.New("pinpad: no transaction in progress")
	// ErrTransactionFailure reports that the outcome of a request could not be determined.
	ErrTransactionFailure = errors.New("pinpad: transaction failure")
	// ErrUnhandledQuery reports an operator prompt with no query handler configured.
	ErrUnhandledQuery = errors.New("pinpad: no handler for operator query")
	// ErrClosed reports a request aborted or refused by Client.Close.
	ErrClosed = errors.New("pinpad: client closed")

	// ErrInvalidAnswer is returned by Query.Answer for an answer that is not allowed.
	ErrInvalidAnswer = errors.New("pinpad: answer not allowed")
	// ErrQueryAnswered is returned by Query.Answer when the query already has an answer.
	ErrQueryAnswered = errors.New("pinpad: query already answered")

	// errLinkFault marks a failed write to the transport.
	errLinkFault = errors.New("pinpad: link fault")
	// errRejected marks a frame the terminal NAKed on every write.
	errRejected = errors.New("pinpad: frame rejected")
)

// UnexpectedResponseError carries a response the engine did not expect.
//
// It matches ErrUnexpectedResponse with errors.Is.
type UnexpectedResponseError struct {
	Response poslink.Response
	Reason   string
}

// Error implements the error interface.
func (e *UnexpectedResponseError) Error() string {
	return fmt.Sprintf("pinpad: unexpected response %s (reference %q): %s",
		e.Response.MessageType(), e.Response.Reference(), e.Reason)
}

// Is reports whether target is ErrUnexpectedResponse.
func (e *UnexpectedResponseError) Is(target error) bool {
	return target == ErrUnexpectedResponse
}
