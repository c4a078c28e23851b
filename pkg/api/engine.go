package api

import "context"

// Engine is the workflow runtime: it owns process definitions, running
// instances, and the human task set. All instance mutation goes through it;
// mutations for one instance are serialized, unrelated instances proceed in
// parallel.
type Engine interface {
	// RegisterProcess registers a definition by key. Registering the same
	// key again with a higher Version replaces the active definition.
	RegisterProcess(def ProcessDefinition) error

	// StartProcess starts one instance of the named process with the given
	// seed variables and runs it until it ends, parks at a user step, or a
	// service step faults. A missing definition reports
	// ErrDefinitionNotFound. On a step fault the returned instance is
	// still usable for inspection alongside the error.
	StartProcess(ctx context.Context, processKey string, vars VariableBag) (*ProcessInstance, error)

	// StartOrderProcess starts the named process for an OrderCreated event.
	// It enforces the duplicate-start guard: if any instance (active or
	// ended) already exists for the event's orderId, it reports
	// ErrDuplicateStart and starts nothing.
	StartOrderProcess(ctx context.Context, processKey string, event OrderCreated) (*ProcessInstance, error)

	// GetInstance looks up a process instance by id.
	GetInstance(ctx context.Context, id string) (*ProcessInstance, error)

	// ListInstances returns instances matching the given options.
	ListInstances(ctx context.Context, opts InstanceListOptions) ([]*ProcessInstance, error)

	// InstanceVariables returns the instance's current variable bag.
	InstanceVariables(ctx context.Context, id string) (VariableBag, error)

	// InstanceStatus reports completed and currently active activities.
	InstanceStatus(ctx context.Context, id string) (*ProcessStatus, error)

	// ListTasks returns active (created or claimed) tasks matching the
	// filter. Completed tasks are never included.
	ListTasks(ctx context.Context, filter TaskFilter) ([]*Task, error)

	// GetTask looks up an active task by id.
	GetTask(ctx context.Context, taskID string) (*Task, error)

	// TaskVariables returns the owning instance's current variable bag.
	TaskVariables(ctx context.Context, taskID string) (VariableBag, error)

	// ClaimTask sets the task's assignee with a compare-and-set: it
	// succeeds when the task is unassigned or already assigned to userID,
	// and reports ErrConflict when another user holds it.
	ClaimTask(ctx context.Context, taskID, userID string) error

	// UnclaimTask clears the assignee, returning the task to its
	// candidate group.
	UnclaimTask(ctx context.Context, taskID string) error

	// CompleteTask merges the supplied variables (if non-empty) into the
	// owning instance, removes the task from the active set, and advances
	// the instance to its next step.
	CompleteTask(ctx context.Context, taskID string, vars VariableBag) error
}
