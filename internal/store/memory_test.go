package store

import (
	"errors"
	"testing"
	"time"

	"github.com/shoplane/fulfillment/pkg/api"
)

func TestMemoryStore_DefinitionVersioning(t *testing.T) {
	s := NewMemoryStore()

	v1 := api.ProcessDefinition{Key: "p", Version: 1, Name: "one"}
	v2 := api.ProcessDefinition{Key: "p", Version: 2, Name: "two"}

	if err := s.SaveDefinition(v2); err != nil {
		t.Fatalf("save v2: %v", err)
	}
	// A lower version never replaces a higher one.
	if err := s.SaveDefinition(v1); err != nil {
		t.Fatalf("save v1: %v", err)
	}

	got, err := s.GetDefinition("p")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Version != 2 || got.Name != "two" {
		t.Fatalf("got version %d (%q), want 2 (two)", got.Version, got.Name)
	}

	if _, err := s.GetDefinition("missing"); !errors.Is(err, api.ErrDefinitionNotFound) {
		t.Fatalf("missing definition = %v, want ErrDefinitionNotFound", err)
	}
}

func TestMemoryStore_FindInstanceByOrder(t *testing.T) {
	s := NewMemoryStore()

	inst := &api.ProcessInstance{
		ID:         "inst-1",
		ProcessKey: "order_process",
		Status:     api.StatusActive,
		Variables:  api.VariableBag{api.VarOrderID: api.Int64Value(101)},
		StartedAt:  time.Now().UTC(),
	}
	if err := s.SaveInstance(inst); err != nil {
		t.Fatalf("save: %v", err)
	}

	found, err := s.FindInstanceByOrder(101)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if found.ID != "inst-1" {
		t.Fatalf("found %q, want inst-1", found.ID)
	}

	if _, err := s.FindInstanceByOrder(999); !errors.Is(err, api.ErrInstanceNotFound) {
		t.Fatalf("unknown order = %v, want ErrInstanceNotFound", err)
	}
}

func TestMemoryStore_SaveInstanceReservesOrder(t *testing.T) {
	s := NewMemoryStore()

	mk := func(instID string, orderID int64) *api.ProcessInstance {
		return &api.ProcessInstance{
			ID:         instID,
			ProcessKey: "order_process",
			Status:     api.StatusActive,
			Variables:  api.VariableBag{api.VarOrderID: api.Int64Value(orderID)},
			StartedAt:  time.Now().UTC(),
		}
	}

	if err := s.SaveInstance(mk("inst-1", 101)); err != nil {
		t.Fatalf("first save: %v", err)
	}
	// A second instance for the same order must die in the store, not just
	// in a pre-save check.
	if err := s.SaveInstance(mk("inst-2", 101)); !errors.Is(err, api.ErrDuplicateStart) {
		t.Fatalf("second save = %v, want ErrDuplicateStart", err)
	}
	// Re-saving the holder itself is not a duplicate.
	if err := s.SaveInstance(mk("inst-1", 101)); err != nil {
		t.Fatalf("re-save holder: %v", err)
	}

	found, err := s.FindInstanceByOrder(101)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if found.ID != "inst-1" {
		t.Fatalf("order 101 owned by %q, want inst-1", found.ID)
	}
}

func TestMemoryStore_ReturnsSnapshots(t *testing.T) {
	s := NewMemoryStore()

	inst := &api.ProcessInstance{
		ID:         "inst-1",
		ProcessKey: "order_process",
		Status:     api.StatusActive,
		Variables:  api.VariableBag{api.VarOrderID: api.Int64Value(7)},
		History:    []api.ActivityRecord{{StepKey: "validate_order"}},
		StartedAt:  time.Now().UTC(),
	}
	if err := s.SaveInstance(inst); err != nil {
		t.Fatalf("save: %v", err)
	}

	// Mutating the caller's copy after Save must not reach the store.
	inst.Variables[api.VarUserID] = api.StringValue("smuggled")

	got, err := s.GetInstance("inst-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if _, ok := got.Variables[api.VarUserID]; ok {
		t.Fatal("post-save mutation leaked into the store")
	}

	// Mutating a read result must not reach the store either.
	got.Variables["scratch"] = api.BoolValue(true)
	got.History[0].StepKey = "tampered"
	got.Status = api.StatusEnded

	again, err := s.GetInstance("inst-1")
	if err != nil {
		t.Fatalf("re-get: %v", err)
	}
	if _, ok := again.Variables["scratch"]; ok {
		t.Fatal("variable written through a read snapshot")
	}
	if again.History[0].StepKey != "validate_order" {
		t.Fatalf("history entry = %q, want validate_order", again.History[0].StepKey)
	}
	if again.Status != api.StatusActive {
		t.Fatalf("status = %q, want ACTIVE", again.Status)
	}

	task := &api.Task{ID: "t1", InstanceID: "inst-1", CandidateGroup: "order_managers", CreatedAt: time.Now()}
	if err := s.CreateTask(task); err != nil {
		t.Fatalf("create task: %v", err)
	}
	read, err := s.GetTask("t1")
	if err != nil {
		t.Fatalf("get task: %v", err)
	}
	read.Assignee = "manager1"
	read.Variables = api.VariableBag{"scratch": api.BoolValue(true)}

	fresh, err := s.GetTask("t1")
	if err != nil {
		t.Fatalf("re-get task: %v", err)
	}
	if fresh.Assignee != "" || fresh.Variables != nil {
		t.Fatalf("task mutated through a read snapshot: %+v", fresh)
	}
}

func TestMemoryStore_ClaimIsCompareAndSet(t *testing.T) {
	s := NewMemoryStore()
	task := &api.Task{ID: "t1", InstanceID: "i1", CandidateGroup: "order_managers", CreatedAt: time.Now()}
	if err := s.CreateTask(task); err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := s.ClaimTask("t1", "manager1"); err != nil {
		t.Fatalf("first claim: %v", err)
	}
	// Same user re-claiming is a no-op, not a conflict.
	if err := s.ClaimTask("t1", "manager1"); err != nil {
		t.Fatalf("re-claim by owner: %v", err)
	}
	if err := s.ClaimTask("t1", "manager2"); !errors.Is(err, api.ErrConflict) {
		t.Fatalf("claim by other = %v, want ErrConflict", err)
	}

	if err := s.UnclaimTask("t1"); err != nil {
		t.Fatalf("unclaim: %v", err)
	}
	if err := s.ClaimTask("t1", "manager2"); err != nil {
		t.Fatalf("claim after unclaim: %v", err)
	}

	if err := s.ClaimTask("missing", "manager1"); !errors.Is(err, api.ErrTaskNotFound) {
		t.Fatalf("claim missing = %v, want ErrTaskNotFound", err)
	}
}

func TestMemoryStore_TaskFilterPriority(t *testing.T) {
	s := NewMemoryStore()
	base := time.Now().UTC()

	mk := func(id, inst, assignee, group string, offset time.Duration) {
		t.Helper()
		err := s.CreateTask(&api.Task{
			ID:             id,
			InstanceID:     inst,
			Assignee:       assignee,
			CandidateGroup: group,
			CreatedAt:      base.Add(offset),
		})
		if err != nil {
			t.Fatalf("create %s: %v", id, err)
		}
	}

	mk("t1", "i1", "manager1", "order_managers", 0)
	mk("t2", "i2", "", "order_managers", time.Second)
	mk("t3", "i2", "manager1", "finance_team", 2*time.Second)

	ids := func(tasks []*api.Task) []string {
		out := make([]string, len(tasks))
		for i, task := range tasks {
			out[i] = task.ID
		}
		return out
	}

	// Instance beats assignee and group when several filters are set.
	got, err := s.ListTasks(api.TaskFilter{InstanceID: "i2", Assignee: "manager1", CandidateGroup: "order_managers"})
	if err != nil {
		t.Fatalf("list by instance: %v", err)
	}
	if len(got) != 2 || got[0].ID != "t2" || got[1].ID != "t3" {
		t.Fatalf("instance filter returned %v, want [t2 t3]", ids(got))
	}

	got, err = s.ListTasks(api.TaskFilter{Assignee: "manager1", CandidateGroup: "finance_team"})
	if err != nil {
		t.Fatalf("list by assignee: %v", err)
	}
	if len(got) != 2 || got[0].ID != "t1" || got[1].ID != "t3" {
		t.Fatalf("assignee filter returned %v, want [t1 t3]", ids(got))
	}

	got, err = s.ListTasks(api.TaskFilter{CandidateGroup: "order_managers"})
	if err != nil {
		t.Fatalf("list by group: %v", err)
	}
	if len(got) != 2 || got[0].ID != "t1" || got[1].ID != "t2" {
		t.Fatalf("group filter returned %v, want [t1 t2]", ids(got))
	}

	got, err = s.ListTasks(api.TaskFilter{})
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("empty filter returned %d tasks, want 3", len(got))
	}
}

func TestMemoryStore_RemoveTask(t *testing.T) {
	s := NewMemoryStore()
	if err := s.CreateTask(&api.Task{ID: "t1", InstanceID: "i1", CreatedAt: time.Now()}); err != nil {
		t.Fatalf("create: %v", err)
	}

	removed, err := s.RemoveTask("t1")
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if removed.ID != "t1" {
		t.Fatalf("removed %q, want t1", removed.ID)
	}

	if _, err := s.GetTask("t1"); !errors.Is(err, api.ErrTaskNotFound) {
		t.Fatalf("get after remove = %v, want ErrTaskNotFound", err)
	}
	if _, err := s.RemoveTask("t1"); !errors.Is(err, api.ErrTaskNotFound) {
		t.Fatalf("second remove = %v, want ErrTaskNotFound", err)
	}
}
