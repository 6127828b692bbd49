package domain

import "errors"

// The error texts double as class names so remote callers can match on them.
var (
	// ErrMalformedRequest is returned for empty input or an envelope without a function name.
	ErrMalformedRequest = errors.New("MalformedRequest")

	// ErrInvalidEncoding is returned when the envelope cannot be decoded.
	ErrInvalidEncoding = errors.New("InvalidEncoding")

	// ErrUnknownFunction is matched by *UnknownFunctionError.
	ErrUnknownFunction = errors.New("UnknownFunction")

	// ErrInvalidArguments is returned when arguments cannot be bound to a command's parameters.
	ErrInvalidArguments = errors.New("InvalidArguments")

	// ErrSessionNotFound is returned when no active driver exists for a session ID.
	ErrSessionNotFound = errors.New("SessionNotFound")

	// ErrSessionConflict is returned when a session ID already owns a driver.
	ErrSessionConflict = errors.New("SessionConflict")

	// ErrDriverOperationFailed wraps any failure surfaced by the automation driver.
	ErrDriverOperationFailed = errors.New("DriverOperationFailed")

	// ErrTransportFailure wraps connection-level faults.
	ErrTransportFailure = errors.New("TransportFailure")
)

// UnknownFunctionError reports a request for a command that is not registered.
type UnknownFunctionError struct {
	Name string
}

func (e *UnknownFunctionError) Error() string {
	return "Unknown function: " + e.Name
}

// Is makes errors.Is(err, ErrUnknownFunction) hold.
func (e *UnknownFunctionError) Is(target error) bool {
	return target == ErrUnknownFunction
}
