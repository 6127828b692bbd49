package domain

const (
	// SessionParam is the named argument that routes a request to a session.
	// It is never part of a command's declared parameters.
	SessionParam = "_run_test_id"

	// DefaultSessionID is used when a request does not carry SessionParam.
	DefaultSessionID = "1"

	// IntrospectionFunction is the reserved function name answered directly by
	// the dispatcher with the list of registered commands.
	IntrospectionFunction = "list_available_methods"

	// HandleName is the receiver used by replay statements in place of any
	// session-routing expression.
	HandleName = "driver"
)
