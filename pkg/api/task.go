package api

import "time"

// Task is a pending human work item bound to exactly one process instance
// and user step. Lifecycle: created (unassigned, visible to its candidate
// group) -> claimed (one assignee) -> completed (removed from the active
// set). Unclaim returns a claimed task to created.
type Task struct {
	ID             string      `json:"id"`
	Name           string      `json:"name"`
	InstanceID     string      `json:"processInstanceId"`
	ProcessKey     string      `json:"processKey"`
	StepKey        string      `json:"taskDefinitionKey"`
	Assignee       string      `json:"assignee,omitempty"`
	CandidateGroup string      `json:"candidateGroup,omitempty"`
	CreatedAt      time.Time   `json:"createdAt"`
	DueAt          time.Time   `json:"dueAt,omitzero"`
	Variables      VariableBag `json:"variables,omitempty"`
}

// TaskFilter selects active tasks. Filters are applied in strict priority
// order: InstanceID, then Assignee, then CandidateGroup; the first non-empty
// field wins and the rest are ignored. All zero means "all active tasks".
type TaskFilter struct {
	InstanceID     string
	Assignee       string
	CandidateGroup string
}
