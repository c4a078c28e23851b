package api

import "errors"

// Error taxonomy for the saga. Callers classify failures with errors.Is;
// the concrete messages wrap these sentinels with context.
var (
	// ErrDefinitionNotFound means the target process definition is not
	// registered. This is a configuration error: it is surfaced to the
	// caller and must not be retried by the transport layer.
	ErrDefinitionNotFound = errors.New("process definition not found")

	// ErrInstanceNotFound is returned when a process instance is not found.
	ErrInstanceNotFound = errors.New("process instance not found")

	// ErrTaskNotFound is returned when a task is not found or is no longer
	// in the active set.
	ErrTaskNotFound = errors.New("task not found")

	// ErrConflict is returned to the loser of a concurrent claim race.
	// It is surfaced to the caller, never retried automatically.
	ErrConflict = errors.New("task already claimed")

	// ErrMissingVariable means a step read a variable that is absent or nil.
	ErrMissingVariable = errors.New("missing variable")

	// ErrTypeMismatch means a variable holds a value that cannot be coerced
	// to the requested type.
	ErrTypeMismatch = errors.New("variable type mismatch")

	// ErrDuplicateStart means a process instance already exists for the
	// event's order id. Redelivered events hit this guard instead of
	// starting a second saga.
	ErrDuplicateStart = errors.New("process already started for order")

	// ErrUserNotFound and ErrGroupNotFound are the read-side "absent"
	// results of the identity directory.
	ErrUserNotFound  = errors.New("user not found")
	ErrGroupNotFound = errors.New("group not found")
)
