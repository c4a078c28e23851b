package store

import (
	"sort"
	"sync"

	"github.com/shoplane/fulfillment/pkg/api"
)

// MemoryStore is a goroutine-safe implementation of DefinitionStore,
// InstanceStore, and TaskStore backed by maps. It is the default for tests
// and single-process deployments.
type MemoryStore struct {
	mu          sync.RWMutex
	definitions map[string]api.ProcessDefinition
	instances   map[string]*api.ProcessInstance
	byOrder     map[int64]string
	tasks       map[string]*api.Task
}

// NewMemoryStore creates a new MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		definitions: make(map[string]api.ProcessDefinition),
		instances:   make(map[string]*api.ProcessInstance),
		byOrder:     make(map[int64]string),
		tasks:       make(map[string]*api.Task),
	}
}

// Ensure MemoryStore implements the interfaces.
var (
	_ DefinitionStore = (*MemoryStore)(nil)
	_ InstanceStore   = (*MemoryStore)(nil)
	_ TaskStore       = (*MemoryStore)(nil)
)

func (s *MemoryStore) SaveDefinition(def api.ProcessDefinition) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.definitions[def.Key]; ok && existing.Version >= def.Version {
		return nil
	}
	s.definitions[def.Key] = def
	return nil
}

func (s *MemoryStore) GetDefinition(key string) (api.ProcessDefinition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	def, ok := s.definitions[key]
	if !ok {
		return api.ProcessDefinition{}, api.ErrDefinitionNotFound
	}
	return def, nil
}

func (s *MemoryStore) SaveInstance(inst *api.ProcessInstance) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// The order index doubles as a uniqueness reservation: checking and
	// inserting under the same lock means two racing saves for one order
	// cannot both get through.
	if id, err := orderIDOf(inst); err == nil {
		if existing, ok := s.byOrder[id]; ok && existing != inst.ID {
			return api.ErrDuplicateStart
		}
		s.byOrder[id] = inst.ID
	}
	s.instances[inst.ID] = cloneInstance(inst)
	return nil
}

func (s *MemoryStore) UpdateInstance(inst *api.ProcessInstance) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.instances[inst.ID]; !ok {
		return api.ErrInstanceNotFound
	}
	s.instances[inst.ID] = cloneInstance(inst)
	return nil
}

func (s *MemoryStore) GetInstance(id string) (*api.ProcessInstance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	inst, ok := s.instances[id]
	if !ok {
		return nil, api.ErrInstanceNotFound
	}
	return cloneInstance(inst), nil
}

func (s *MemoryStore) ListInstances(filter InstanceFilter) ([]*api.ProcessInstance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*api.ProcessInstance
	for _, inst := range s.instances {
		if filter.ProcessKey != "" && inst.ProcessKey != filter.ProcessKey {
			continue
		}
		if filter.Status != "" && inst.Status != filter.Status {
			continue
		}
		result = append(result, cloneInstance(inst))
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].StartedAt.Before(result[j].StartedAt)
	})
	return result, nil
}

func (s *MemoryStore) FindInstanceByOrder(orderID int64) (*api.ProcessInstance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byOrder[orderID]
	if !ok {
		return nil, api.ErrInstanceNotFound
	}
	inst, ok := s.instances[id]
	if !ok {
		return nil, api.ErrInstanceNotFound
	}
	return cloneInstance(inst), nil
}

// cloneInstance snapshots an instance under the store lock. Callers mutate
// their snapshot and write it back through UpdateInstance; the stored maps
// and slices are never shared outside the lock.
func cloneInstance(inst *api.ProcessInstance) *api.ProcessInstance {
	cp := *inst
	if inst.Variables != nil {
		cp.Variables = inst.Variables.Clone()
	}
	if inst.History != nil {
		cp.History = append([]api.ActivityRecord(nil), inst.History...)
	}
	return &cp
}

func cloneTask(task *api.Task) *api.Task {
	cp := *task
	if task.Variables != nil {
		cp.Variables = task.Variables.Clone()
	}
	return &cp
}

func (s *MemoryStore) CreateTask(task *api.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tasks[task.ID] = cloneTask(task)
	return nil
}

func (s *MemoryStore) GetTask(id string) (*api.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	task, ok := s.tasks[id]
	if !ok {
		return nil, api.ErrTaskNotFound
	}
	return cloneTask(task), nil
}

func (s *MemoryStore) ListTasks(filter api.TaskFilter) ([]*api.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*api.Task
	for _, task := range s.tasks {
		if !matchTask(task, filter) {
			continue
		}
		result = append(result, cloneTask(task))
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

func (s *MemoryStore) ClaimTask(id, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[id]
	if !ok {
		return api.ErrTaskNotFound
	}
	// Compare-and-set under the store lock: first writer wins, the same
	// user may re-claim.
	if task.Assignee != "" && task.Assignee != userID {
		return api.ErrConflict
	}
	task.Assignee = userID
	return nil
}

func (s *MemoryStore) UnclaimTask(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[id]
	if !ok {
		return api.ErrTaskNotFound
	}
	task.Assignee = ""
	return nil
}

func (s *MemoryStore) RemoveTask(id string) (*api.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[id]
	if !ok {
		return nil, api.ErrTaskNotFound
	}
	delete(s.tasks, id)
	return cloneTask(task), nil
}

// matchTask applies the filter's priority order: exactly one branch is
// evaluated.
func matchTask(task *api.Task, filter api.TaskFilter) bool {
	switch {
	case filter.InstanceID != "":
		return task.InstanceID == filter.InstanceID
	case filter.Assignee != "":
		return task.Assignee == filter.Assignee
	case filter.CandidateGroup != "":
		return task.CandidateGroup == filter.CandidateGroup
	default:
		return true
	}
}

// orderIDOf extracts the orderId seed variable, if present.
func orderIDOf(inst *api.ProcessInstance) (int64, error) {
	return inst.Variables.Int64(api.VarOrderID)
}
