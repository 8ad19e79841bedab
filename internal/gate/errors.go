package gate

import "errors"

// Domain errors. Use errors.Is() to check for these in calling code.
var (
	// ErrUnknownCommand is returned when a command name is outside the supported set.
	ErrUnknownCommand = errors.New("gate: unknown command")

	// ErrEmptyStatus is returned when a status report carries no status value.
	ErrEmptyStatus = errors.New("gate: status is required")
)
