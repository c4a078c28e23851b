// Package engine implements the linear process engine: an explicit step
// registry executed in order, one variable bag per instance, user steps
// that park the instance behind a human task.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/shoplane/fulfillment/internal/store"
	"github.com/shoplane/fulfillment/pkg/api"
)

// engineImpl is a synchronous, in-process engine implementation.
type engineImpl struct {
	definitions store.DefinitionStore
	instances   store.InstanceStore
	tasks       store.TaskStore

	locks    *keyedMutex
	observer api.Observer
}

// Config describes how to construct an engineImpl.
// Only used inside this package; external callers use the helper functions.
type Config struct {
	Stores   store.Stores
	Observer api.Observer
}

// NewInMemoryEngine returns an Engine backed entirely by in-memory stores.
func NewInMemoryEngine() api.Engine {
	return NewInMemoryEngineWithObserver(nil)
}

// NewInMemoryEngineWithObserver returns an in-memory Engine with the given
// Observer.
func NewInMemoryEngineWithObserver(obs api.Observer) api.Engine {
	mem := store.NewMemoryStore()
	return NewEngineWithConfig(Config{
		Stores: store.Stores{
			Definitions: mem,
			Instances:   mem,
			Tasks:       mem,
		},
		Observer: obs,
	})
}

// NewEngineWithConfig creates a new Engine using the given configuration.
func NewEngineWithConfig(cfg Config) api.Engine {
	obs := cfg.Observer
	if obs == nil {
		obs = api.NoopObserver{}
	}
	return &engineImpl{
		definitions: cfg.Stores.Definitions,
		instances:   cfg.Stores.Instances,
		tasks:       cfg.Stores.Tasks,
		locks:       newKeyedMutex(),
		observer:    obs,
	}
}

func (e *engineImpl) RegisterProcess(def api.ProcessDefinition) error {
	if def.Key == "" {
		return errors.New("process key is required")
	}
	if len(def.Steps) == 0 {
		return errors.New("process must have at least one step")
	}
	if def.Version <= 0 {
		def.Version = 1
	}
	for _, step := range def.Steps {
		switch step.Kind {
		case api.StepService:
			if step.Execute == nil {
				return fmt.Errorf("service step %q has no executor", step.Key)
			}
		case api.StepUser:
			if step.CandidateGroup == "" {
				return fmt.Errorf("user step %q has no candidate group", step.Key)
			}
		default:
			return fmt.Errorf("step %q has unknown kind %q", step.Key, step.Kind)
		}
	}
	return e.definitions.SaveDefinition(def)
}

func (e *engineImpl) StartProcess(ctx context.Context, processKey string, vars api.VariableBag) (*api.ProcessInstance, error) {
	def, err := e.definitions.GetDefinition(processKey)
	if err != nil {
		return nil, fmt.Errorf("start %q: %w", processKey, err)
	}

	if vars == nil {
		vars = api.VariableBag{}
	}
	inst := &api.ProcessInstance{
		ID:         uuid.NewString(),
		ProcessKey: def.Key,
		Version:    def.Version,
		Status:     api.StatusActive,
		Variables:  vars.Clone(),
		StartedAt:  time.Now().UTC(),
	}

	e.observer.OnInstanceStart(ctx, inst)

	if err := e.instances.SaveInstance(inst); err != nil {
		return nil, fmt.Errorf("persist instance: %w", err)
	}

	unlock := e.locks.Lock(inst.ID)
	defer unlock()

	if err := e.advance(ctx, def, inst); err != nil {
		return inst, err
	}
	return inst, nil
}

func (e *engineImpl) StartOrderProcess(ctx context.Context, processKey string, event api.OrderCreated) (*api.ProcessInstance, error) {
	if event.OrderID <= 0 {
		return nil, fmt.Errorf("order id %d: %w", event.OrderID, api.ErrMissingVariable)
	}

	// Duplicate-start guard: the event channel is at-least-once, so two
	// deliveries of the same OrderCreated must not start two sagas. The
	// check and the start are serialized per order id; the store backs this
	// up with a uniqueness guarantee on the order id, which covers racers
	// that do not share this engine.
	unlock := e.locks.Lock(orderLockKey(event.OrderID))
	defer unlock()

	if existing, err := e.instances.FindInstanceByOrder(event.OrderID); err == nil {
		return existing, fmt.Errorf("order %d already has instance %s: %w",
			event.OrderID, existing.ID, api.ErrDuplicateStart)
	} else if !errors.Is(err, api.ErrInstanceNotFound) {
		return nil, err
	}

	inst, err := e.StartProcess(ctx, processKey, event.SeedVariables())
	if errors.Is(err, api.ErrDuplicateStart) {
		// Another process reserved the order between our check and the
		// insert; hand back its instance like any other redelivery.
		existing, findErr := e.instances.FindInstanceByOrder(event.OrderID)
		if findErr != nil {
			return nil, fmt.Errorf("order %d lost the start race but has no instance: %w", event.OrderID, findErr)
		}
		return existing, fmt.Errorf("order %d already has instance %s: %w",
			event.OrderID, existing.ID, api.ErrDuplicateStart)
	}
	return inst, err
}

// orderLockKey namespaces order locks away from the instance-id locks that
// share the same keyedMutex.
func orderLockKey(orderID int64) string {
	return "order/" + strconv.FormatInt(orderID, 10)
}

func (e *engineImpl) GetInstance(ctx context.Context, id string) (*api.ProcessInstance, error) {
	return e.instances.GetInstance(id)
}

func (e *engineImpl) ListInstances(ctx context.Context, opts api.InstanceListOptions) ([]*api.ProcessInstance, error) {
	return e.instances.ListInstances(store.InstanceFilter{
		ProcessKey: opts.ProcessKey,
		Status:     opts.Status,
	})
}

func (e *engineImpl) InstanceVariables(ctx context.Context, id string) (api.VariableBag, error) {
	inst, err := e.instances.GetInstance(id)
	if err != nil {
		return nil, err
	}
	return inst.Variables.Clone(), nil
}

func (e *engineImpl) InstanceStatus(ctx context.Context, id string) (*api.ProcessStatus, error) {
	inst, err := e.instances.GetInstance(id)
	if err != nil {
		return nil, err
	}

	status := &api.ProcessStatus{
		InstanceID:          inst.ID,
		CompletedActivities: append([]api.ActivityRecord(nil), inst.History...),
		Ended:               inst.Status == api.StatusEnded,
	}
	if inst.Status == api.StatusEnded {
		return status, nil
	}

	def, err := e.definitions.GetDefinition(inst.ProcessKey)
	if err != nil {
		return nil, err
	}
	if inst.CurrentStep < len(def.Steps) {
		step := def.Steps[inst.CurrentStep]
		active := api.ActivityRecord{
			StepKey:  step.Key,
			StepName: step.Name,
			Kind:     step.Kind,
		}
		// A parked user step has a task whose creation time is the
		// activity start.
		if step.Kind == api.StepUser {
			if tasks, err := e.tasks.ListTasks(api.TaskFilter{InstanceID: inst.ID}); err == nil && len(tasks) > 0 {
				active.StartedAt = tasks[0].CreatedAt
			}
		}
		status.ActiveActivities = append(status.ActiveActivities, active)
	}
	return status, nil
}

func (e *engineImpl) ListTasks(ctx context.Context, filter api.TaskFilter) ([]*api.Task, error) {
	tasks, err := e.tasks.ListTasks(filter)
	if err != nil {
		return nil, err
	}
	for _, task := range tasks {
		e.attachVariables(task)
	}
	return tasks, nil
}

func (e *engineImpl) GetTask(ctx context.Context, taskID string) (*api.Task, error) {
	task, err := e.tasks.GetTask(taskID)
	if err != nil {
		return nil, err
	}
	e.attachVariables(task)
	return task, nil
}

func (e *engineImpl) TaskVariables(ctx context.Context, taskID string) (api.VariableBag, error) {
	task, err := e.tasks.GetTask(taskID)
	if err != nil {
		return nil, err
	}
	return e.InstanceVariables(ctx, task.InstanceID)
}

func (e *engineImpl) ClaimTask(ctx context.Context, taskID, userID string) error {
	if userID == "" {
		return errors.New("claim requires a user id")
	}
	return e.tasks.ClaimTask(taskID, userID)
}

func (e *engineImpl) UnclaimTask(ctx context.Context, taskID string) error {
	return e.tasks.UnclaimTask(taskID)
}

func (e *engineImpl) CompleteTask(ctx context.Context, taskID string, vars api.VariableBag) error {
	task, err := e.tasks.GetTask(taskID)
	if err != nil {
		return err
	}

	unlock := e.locks.Lock(task.InstanceID)
	defer unlock()

	inst, err := e.instances.GetInstance(task.InstanceID)
	if err != nil {
		return err
	}
	def, err := e.definitions.GetDefinition(inst.ProcessKey)
	if err != nil {
		return err
	}
	if inst.CurrentStep >= len(def.Steps) || def.Steps[inst.CurrentStep].Kind != api.StepUser {
		return fmt.Errorf("instance %s is not parked at a user step", inst.ID)
	}

	// Re-fetch under the instance lock so two concurrent completions of
	// the same task cannot both advance the instance.
	task, err = e.tasks.RemoveTask(taskID)
	if err != nil {
		return err
	}

	if len(vars) > 0 {
		inst.Variables.Merge(vars)
	}

	step := def.Steps[inst.CurrentStep]
	now := time.Now().UTC()
	inst.History = append(inst.History, api.ActivityRecord{
		StepKey:   step.Key,
		StepName:  step.Name,
		Kind:      api.StepUser,
		StartedAt: task.CreatedAt,
		EndedAt:   now,
	})
	e.observer.OnStepCompleted(ctx, inst, step.Key, inst.CurrentStep, nil, now.Sub(task.CreatedAt))

	inst.CurrentStep++
	if err := e.instances.UpdateInstance(inst); err != nil {
		return err
	}
	return e.advance(ctx, def, inst)
}

// advance runs the instance forward from its current step until it ends,
// parks at a user step, or a service step faults. The caller must hold the
// instance lock.
//
// A fault leaves the instance active at the failing index; the engine does
// not retry. Retry, if any, is the transport layer's responsibility.
func (e *engineImpl) advance(ctx context.Context, def api.ProcessDefinition, inst *api.ProcessInstance) error {
	for inst.CurrentStep < len(def.Steps) {
		step := def.Steps[inst.CurrentStep]

		if step.Kind == api.StepUser {
			return e.parkAtUserStep(ctx, step, inst)
		}

		select {
		case <-ctx.Done():
			inst.LastError = ctx.Err().Error()
			_ = e.instances.UpdateInstance(inst)
			return ctx.Err()
		default:
		}

		started := time.Now().UTC()
		e.observer.OnStepStart(ctx, inst, step.Key, inst.CurrentStep)

		delta, err := step.Execute(ctx, inst.Variables.Clone())

		ended := time.Now().UTC()
		e.observer.OnStepCompleted(ctx, inst, step.Key, inst.CurrentStep, err, ended.Sub(started))

		if err != nil {
			inst.LastError = err.Error()
			_ = e.instances.UpdateInstance(inst)
			return fmt.Errorf("step %q: %w", step.Key, err)
		}

		if len(delta) > 0 {
			inst.Variables.Merge(delta)
		}
		inst.History = append(inst.History, api.ActivityRecord{
			StepKey:   step.Key,
			StepName:  step.Name,
			Kind:      api.StepService,
			StartedAt: started,
			EndedAt:   ended,
		})
		inst.LastError = ""
		inst.CurrentStep++
		if err := e.instances.UpdateInstance(inst); err != nil {
			return err
		}
	}

	inst.Status = api.StatusEnded
	inst.EndedAt = time.Now().UTC()
	if err := e.instances.UpdateInstance(inst); err != nil {
		return err
	}
	e.observer.OnInstanceEnded(ctx, inst)
	return nil
}

func (e *engineImpl) parkAtUserStep(ctx context.Context, step api.StepDefinition, inst *api.ProcessInstance) error {
	e.observer.OnStepStart(ctx, inst, step.Key, inst.CurrentStep)

	task := &api.Task{
		ID:             uuid.NewString(),
		Name:           step.Name,
		InstanceID:     inst.ID,
		ProcessKey:     inst.ProcessKey,
		StepKey:        step.Key,
		CandidateGroup: step.CandidateGroup,
		CreatedAt:      time.Now().UTC(),
	}
	if err := e.tasks.CreateTask(task); err != nil {
		return fmt.Errorf("enqueue task for step %q: %w", step.Key, err)
	}
	if err := e.instances.UpdateInstance(inst); err != nil {
		return err
	}
	e.observer.OnTaskCreated(ctx, inst, task)
	return nil
}

// attachVariables resolves the owning instance's live variable bag onto the
// task snapshot, matching how the operator surface exposes tasks.
func (e *engineImpl) attachVariables(task *api.Task) {
	if inst, err := e.instances.GetInstance(task.InstanceID); err == nil {
		task.Variables = inst.Variables.Clone()
	}
}
