package api

import (
	"context"
	"time"
)

// InstanceStatus is the lifecycle state of a process instance.
type InstanceStatus string

const (
	// StatusActive means the instance has unfinished steps. An instance
	// parked at a user step, or stalled at a failed service step, is still
	// active.
	StatusActive InstanceStatus = "ACTIVE"

	// StatusEnded means every step completed.
	StatusEnded InstanceStatus = "ENDED"
)

// StepKind distinguishes automatic steps from steps that wait for a human.
type StepKind string

const (
	// StepService executes its function and auto-advances.
	StepService StepKind = "serviceTask"

	// StepUser parks the instance and enqueues a Task for the candidate
	// group; the instance advances when the task is completed.
	StepUser StepKind = "userTask"
)

// StepFunc is a single executable step. It receives the instance's variable
// bag and returns the variables it wants written back; returning nil means
// "no changes". Steps must be idempotent: the transport layer may redeliver
// the event that drives them.
type StepFunc func(ctx context.Context, vars VariableBag) (VariableBag, error)

// StepDefinition describes one step of a process. Steps are resolved into
// this registry at startup; the engine never dispatches by name at runtime.
type StepDefinition struct {
	// Key is the stable step identifier (taskDefinitionKey for user steps).
	Key string

	// Name is the human-readable label shown in task lists.
	Name string

	Kind StepKind

	// Execute is set for service steps only.
	Execute StepFunc

	// CandidateGroup is set for user steps only; any member of the group
	// may claim the resulting task.
	CandidateGroup string
}

// ProcessDefinition is a named, versioned, strictly linear sequence of steps.
type ProcessDefinition struct {
	Key     string
	Version int
	Name    string
	Steps   []StepDefinition
}

// ActivityRecord is one entry of an instance's execution history.
type ActivityRecord struct {
	StepKey   string    `json:"stepKey"`
	StepName  string    `json:"stepName"`
	Kind      StepKind  `json:"kind"`
	StartedAt time.Time `json:"startedAt"`
	EndedAt   time.Time `json:"endedAt"`
}

// ProcessInstance is one running execution of a process definition.
//
// CurrentStep semantics:
//   - while running or parked at step i: i
//   - after the last step completes: len(steps)
//
// A failed service step leaves CurrentStep at the failing index so operators
// can inspect the stalled instance; the engine never advances past a fault.
type ProcessInstance struct {
	ID          string         `json:"id"`
	ProcessKey  string         `json:"processKey"`
	Version     int            `json:"version"`
	Status      InstanceStatus `json:"status"`
	CurrentStep int            `json:"currentStep"`
	Variables   VariableBag    `json:"variables"`
	History     []ActivityRecord `json:"history,omitempty"`
	LastError   string         `json:"lastError,omitempty"`
	StartedAt   time.Time      `json:"startedAt"`
	EndedAt     time.Time      `json:"endedAt,omitzero"`
}

// InstanceListOptions controls how instances are listed.
// Zero values mean "no filter" for that field.
type InstanceListOptions struct {
	ProcessKey string
	Status     InstanceStatus
}

// ProcessStatus is the operator-facing view of an instance's progress:
// what already ran, what is currently pending, and whether it ended.
type ProcessStatus struct {
	InstanceID          string           `json:"instanceId"`
	CompletedActivities []ActivityRecord `json:"completedActivities"`
	ActiveActivities    []ActivityRecord `json:"activeActivities"`
	Ended               bool             `json:"ended"`
}
