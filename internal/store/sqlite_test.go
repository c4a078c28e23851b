package store

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/shoplane/fulfillment/pkg/api"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "store.db")
	db, err := sql.Open("sqlite", dsn)
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestSQLiteInstanceStore_RoundTrip(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)
	s, err := NewSQLiteInstanceStore(db)
	require.NoError(t, err)

	started := time.Now().UTC().Truncate(time.Millisecond)
	inst := &api.ProcessInstance{
		ID:          "inst-1",
		ProcessKey:  "order_process",
		Version:     1,
		Status:      api.StatusActive,
		CurrentStep: 1,
		Variables: api.VariableBag{
			api.VarOrderID:     api.Int64Value(55),
			api.VarUserID:      api.StringValue("user1"),
			api.VarTotalAmount: api.DecimalValue(mustDecimal(t, "49.98")),
		},
		History: []api.ActivityRecord{{
			StepKey:   "validate_order",
			StepName:  "Validate Order",
			Kind:      api.StepService,
			StartedAt: started,
			EndedAt:   started.Add(5 * time.Millisecond),
		}},
		StartedAt: started,
	}
	require.NoError(t, s.SaveInstance(inst))

	got, err := s.GetInstance("inst-1")
	require.NoError(t, err)
	require.Equal(t, "order_process", got.ProcessKey)
	require.Equal(t, api.StatusActive, got.Status)
	require.Equal(t, 1, got.CurrentStep)
	require.Len(t, got.History, 1)
	require.Equal(t, "validate_order", got.History[0].StepKey)

	orderID, err := got.Variables.Int64(api.VarOrderID)
	require.NoError(t, err)
	require.EqualValues(t, 55, orderID)

	total, err := got.Variables.Decimal(api.VarTotalAmount)
	require.NoError(t, err)
	require.True(t, total.Equal(mustDecimal(t, "49.98")), "total = %s", total)

	// Update: advance and end.
	got.Status = api.StatusEnded
	got.CurrentStep = 4
	got.EndedAt = started.Add(time.Second)
	require.NoError(t, s.UpdateInstance(got))

	ended, err := s.GetInstance("inst-1")
	require.NoError(t, err)
	require.Equal(t, api.StatusEnded, ended.Status)
	require.Equal(t, 4, ended.CurrentStep)
	require.False(t, ended.EndedAt.IsZero())

	_, err = s.GetInstance("missing")
	require.ErrorIs(t, err, api.ErrInstanceNotFound)

	err = s.UpdateInstance(&api.ProcessInstance{ID: "missing"})
	require.ErrorIs(t, err, api.ErrInstanceNotFound)
}

func TestSQLiteInstanceStore_FindByOrderAndList(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)
	s, err := NewSQLiteInstanceStore(db)
	require.NoError(t, err)

	now := time.Now().UTC()
	for i, orderID := range []int64{10, 11} {
		inst := &api.ProcessInstance{
			ID:         "inst-" + string(rune('a'+i)),
			ProcessKey: "order_process",
			Version:    1,
			Status:     api.StatusActive,
			Variables:  api.VariableBag{api.VarOrderID: api.Int64Value(orderID)},
			StartedAt:  now.Add(time.Duration(i) * time.Second),
		}
		require.NoError(t, s.SaveInstance(inst))
	}

	found, err := s.FindInstanceByOrder(11)
	require.NoError(t, err)
	require.Equal(t, "inst-b", found.ID)

	_, err = s.FindInstanceByOrder(999)
	require.ErrorIs(t, err, api.ErrInstanceNotFound)

	active, err := s.ListInstances(InstanceFilter{ProcessKey: "order_process", Status: api.StatusActive})
	require.NoError(t, err)
	require.Len(t, active, 2)
	require.Equal(t, "inst-a", active[0].ID, "list is ordered by start time")

	none, err := s.ListInstances(InstanceFilter{ProcessKey: "other"})
	require.NoError(t, err)
	require.Empty(t, none)
}

func TestSQLiteInstanceStore_DuplicateOrderRejected(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)
	s, err := NewSQLiteInstanceStore(db)
	require.NoError(t, err)

	mk := func(instID string, orderID int64) *api.ProcessInstance {
		return &api.ProcessInstance{
			ID:         instID,
			ProcessKey: "order_process",
			Version:    1,
			Status:     api.StatusActive,
			Variables:  api.VariableBag{api.VarOrderID: api.Int64Value(orderID)},
			StartedAt:  time.Now().UTC(),
		}
	}

	require.NoError(t, s.SaveInstance(mk("inst-1", 42)))
	// The unique order index kills the second insert even when the writers
	// are separate processes that never shared an engine lock.
	require.ErrorIs(t, s.SaveInstance(mk("inst-2", 42)), api.ErrDuplicateStart)

	// Instances without an order id are exempt from the reservation.
	require.NoError(t, s.SaveInstance(&api.ProcessInstance{
		ID:         "plain-1",
		ProcessKey: "order_process",
		Version:    1,
		Status:     api.StatusActive,
		Variables:  api.VariableBag{},
		StartedAt:  time.Now().UTC(),
	}))
	require.NoError(t, s.SaveInstance(&api.ProcessInstance{
		ID:         "plain-2",
		ProcessKey: "order_process",
		Version:    1,
		Status:     api.StatusActive,
		Variables:  api.VariableBag{},
		StartedAt:  time.Now().UTC(),
	}))

	found, err := s.FindInstanceByOrder(42)
	require.NoError(t, err)
	require.Equal(t, "inst-1", found.ID)
}

func TestSQLiteTaskStore_ClaimConflict(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)
	s, err := NewSQLiteTaskStore(db)
	require.NoError(t, err)

	task := &api.Task{
		ID:             "t1",
		Name:           "Review Order",
		InstanceID:     "inst-1",
		ProcessKey:     "order_process",
		StepKey:        "review_order",
		CandidateGroup: "order_managers",
		CreatedAt:      time.Now().UTC(),
	}
	require.NoError(t, s.CreateTask(task))

	require.NoError(t, s.ClaimTask("t1", "manager1"))
	require.NoError(t, s.ClaimTask("t1", "manager1"), "owner re-claim is idempotent")
	require.ErrorIs(t, s.ClaimTask("t1", "manager2"), api.ErrConflict)
	require.ErrorIs(t, s.ClaimTask("missing", "manager1"), api.ErrTaskNotFound)

	got, err := s.GetTask("t1")
	require.NoError(t, err)
	require.Equal(t, "manager1", got.Assignee)

	require.NoError(t, s.UnclaimTask("t1"))
	require.NoError(t, s.ClaimTask("t1", "manager2"))

	removed, err := s.RemoveTask("t1")
	require.NoError(t, err)
	require.Equal(t, "review_order", removed.StepKey)

	_, err = s.RemoveTask("t1")
	require.ErrorIs(t, err, api.ErrTaskNotFound)
}

func TestSQLiteTaskStore_ListFilters(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)
	s, err := NewSQLiteTaskStore(db)
	require.NoError(t, err)

	now := time.Now().UTC()
	tasks := []*api.Task{
		{ID: "t1", Name: "a", InstanceID: "i1", ProcessKey: "p", StepKey: "s", Assignee: "manager1", CandidateGroup: "order_managers", CreatedAt: now},
		{ID: "t2", Name: "b", InstanceID: "i2", ProcessKey: "p", StepKey: "s", CandidateGroup: "order_managers", CreatedAt: now.Add(time.Second)},
		{ID: "t3", Name: "c", InstanceID: "i2", ProcessKey: "p", StepKey: "s", Assignee: "manager1", CandidateGroup: "finance_team", CreatedAt: now.Add(2 * time.Second)},
	}
	for _, task := range tasks {
		require.NoError(t, s.CreateTask(task))
	}

	byInstance, err := s.ListTasks(api.TaskFilter{InstanceID: "i2", Assignee: "manager1"})
	require.NoError(t, err)
	require.Len(t, byInstance, 2, "instance filter wins over assignee")

	byAssignee, err := s.ListTasks(api.TaskFilter{Assignee: "manager1"})
	require.NoError(t, err)
	require.Len(t, byAssignee, 2)

	byGroup, err := s.ListTasks(api.TaskFilter{CandidateGroup: "finance_team"})
	require.NoError(t, err)
	require.Len(t, byGroup, 1)
	require.Equal(t, "t3", byGroup[0].ID)

	all, err := s.ListTasks(api.TaskFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Equal(t, "t1", all[0].ID, "list is ordered by creation time")
}

func mustDecimal(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("parse decimal %q: %v", s, err)
	}
	return d
}
