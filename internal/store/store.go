package store

import (
	"github.com/shoplane/fulfillment/pkg/api"
)

// DefinitionStore handles storage of process definitions.
// The active definition for a key is the one with the highest version.
type DefinitionStore interface {
	SaveDefinition(def api.ProcessDefinition) error
	// GetDefinition returns the latest version of the definition for key.
	GetDefinition(key string) (api.ProcessDefinition, error)
}

// InstanceFilter selects instances from the store.
// Empty string / zero status mean "no filter" for that field.
type InstanceFilter struct {
	ProcessKey string
	Status     api.InstanceStatus
}

// InstanceStore handles storage of process instances.
//
// Instances started for an order are indexed by order id so the engine can
// enforce the duplicate-start guard without scanning.
type InstanceStore interface {
	SaveInstance(inst *api.ProcessInstance) error
	UpdateInstance(inst *api.ProcessInstance) error
	GetInstance(id string) (*api.ProcessInstance, error)
	ListInstances(filter InstanceFilter) ([]*api.ProcessInstance, error)
	// FindInstanceByOrder returns the instance (active or ended) whose
	// orderId variable equals orderID, or api.ErrInstanceNotFound.
	FindInstanceByOrder(orderID int64) (*api.ProcessInstance, error)
}

// TaskStore handles storage of active human tasks. Completed tasks leave
// the store entirely; history lives on the owning instance.
type TaskStore interface {
	CreateTask(task *api.Task) error
	GetTask(id string) (*api.Task, error)
	// ListTasks applies the filter's priority order (instance > assignee >
	// candidate group > all) and returns tasks ordered by creation time.
	ListTasks(filter api.TaskFilter) ([]*api.Task, error)
	// ClaimTask atomically sets the assignee. It succeeds when the task is
	// unassigned or already assigned to userID; it reports api.ErrConflict
	// when another user holds the task.
	ClaimTask(id, userID string) error
	UnclaimTask(id string) error
	// RemoveTask deletes a completed task and returns it.
	RemoveTask(id string) (*api.Task, error)
}

// Stores bundles the three stores an engine needs.
type Stores struct {
	Definitions DefinitionStore
	Instances   InstanceStore
	Tasks       TaskStore
}
