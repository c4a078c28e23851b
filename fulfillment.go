package fulfillment

import (
	"database/sql"

	"github.com/shoplane/fulfillment/internal/engine"
	"github.com/shoplane/fulfillment/internal/store"
	"github.com/shoplane/fulfillment/pkg/api"
)

// Re-export key types so users don't need to dig into pkg/api.

type (
	Engine              = api.Engine
	ProcessDefinition   = api.ProcessDefinition
	ProcessInstance     = api.ProcessInstance
	ProcessStatus       = api.ProcessStatus
	InstanceListOptions = api.InstanceListOptions
	InstanceStatus      = api.InstanceStatus
	StepDefinition      = api.StepDefinition
	StepFunc            = api.StepFunc
	Value               = api.Value
	VariableBag         = api.VariableBag
	Task                = api.Task
	TaskFilter          = api.TaskFilter
	OrderCreated        = api.OrderCreated
	OrderItem           = api.OrderItem
	User                = api.User
	Group               = api.Group
	Directory           = api.Directory
	Observer            = api.Observer
)

// Re-export status values and common helpers for convenience.

const (
	StatusActive = api.StatusActive
	StatusEnded  = api.StatusEnded

	OrderConfirmed = api.OrderConfirmed
)

var (
	Int64Value   = api.Int64Value
	DecimalValue = api.DecimalValue
	StringValue  = api.StringValue
	BoolValue    = api.BoolValue
	TimeValue    = api.TimeValue
	AsInt64      = api.AsInt64
	AsDecimal    = api.AsDecimal

	NewLoggingObserver   = api.NewLoggingObserver
	NewCompositeObserver = api.NewCompositeObserver
)

// Engine constructors
// These wrap the internal/engine package so external callers
// never need to import internal packages.

// NewInMemoryEngine returns an Engine backed entirely by in-memory stores.
func NewInMemoryEngine() Engine {
	return engine.NewInMemoryEngine()
}

// NewInMemoryEngineWithObserver returns an in-memory Engine with the given
// Observer.
func NewInMemoryEngineWithObserver(obs Observer) Engine {
	return engine.NewInMemoryEngineWithObserver(obs)
}

// NewSQLiteEngine returns an Engine that persists process instances and
// tasks in a SQLite database. Process definitions are kept in-memory: they
// are code, re-registered at startup.
func NewSQLiteEngine(db *sql.DB) (Engine, error) {
	return NewSQLiteEngineWithObserver(db, nil)
}

// NewSQLiteEngineWithObserver returns a SQLite-backed Engine with the given
// Observer.
func NewSQLiteEngineWithObserver(db *sql.DB, obs Observer) (Engine, error) {
	instances, err := store.NewSQLiteInstanceStore(db)
	if err != nil {
		return nil, err
	}
	tasks, err := store.NewSQLiteTaskStore(db)
	if err != nil {
		return nil, err
	}
	return engine.NewEngineWithConfig(engine.Config{
		Stores: store.Stores{
			Definitions: store.NewMemoryStore(),
			Instances:   instances,
			Tasks:       tasks,
		},
		Observer: obs,
	}), nil
}
