package api

import (
	"context"
	"log/slog"
	"time"
)

// Observer receives callbacks from the engine for logging and metrics.
//
// Implementations should be fast and non-blocking; heavy work should be done
// asynchronously so as not to delay step execution.
type Observer interface {
	// OnInstanceStart is called once when an instance is started, before
	// the first step runs.
	OnInstanceStart(ctx context.Context, inst *ProcessInstance)

	// OnInstanceEnded is called when the last step of an instance
	// completes.
	OnInstanceEnded(ctx context.Context, inst *ProcessInstance)

	// OnStepStart is called before a step executes or, for user steps,
	// before its task is enqueued. stepIndex is the 0-based index into
	// ProcessDefinition.Steps.
	OnStepStart(ctx context.Context, inst *ProcessInstance, stepKey string, stepIndex int)

	// OnStepCompleted is called after a service step returns or a user
	// step's task is completed, for both successes and failures.
	OnStepCompleted(ctx context.Context, inst *ProcessInstance, stepKey string, stepIndex int, err error, duration time.Duration)

	// OnTaskCreated is called when a user step enqueues a task.
	OnTaskCreated(ctx context.Context, inst *ProcessInstance, task *Task)
}

// NoopObserver is an Observer that does nothing.
// It is used as the default when no observer is configured.
type NoopObserver struct{}

func (NoopObserver) OnInstanceStart(ctx context.Context, inst *ProcessInstance) {}
func (NoopObserver) OnInstanceEnded(ctx context.Context, inst *ProcessInstance) {}
func (NoopObserver) OnStepStart(ctx context.Context, inst *ProcessInstance, stepKey string, idx int) {
}
func (NoopObserver) OnStepCompleted(ctx context.Context, inst *ProcessInstance, stepKey string, idx int, err error, d time.Duration) {
}
func (NoopObserver) OnTaskCreated(ctx context.Context, inst *ProcessInstance, task *Task) {}

// CompositeObserver fans out events to multiple observers.
type CompositeObserver struct {
	observers []Observer
}

// NewCompositeObserver creates an Observer that forwards events to each
// non-nil observer in obs.
func NewCompositeObserver(obs ...Observer) Observer {
	filtered := make([]Observer, 0, len(obs))
	for _, o := range obs {
		if o != nil {
			filtered = append(filtered, o)
		}
	}
	if len(filtered) == 0 {
		return NoopObserver{}
	}
	if len(filtered) == 1 {
		return filtered[0]
	}
	return &CompositeObserver{observers: filtered}
}

func (c *CompositeObserver) OnInstanceStart(ctx context.Context, inst *ProcessInstance) {
	for _, o := range c.observers {
		o.OnInstanceStart(ctx, inst)
	}
}

func (c *CompositeObserver) OnInstanceEnded(ctx context.Context, inst *ProcessInstance) {
	for _, o := range c.observers {
		o.OnInstanceEnded(ctx, inst)
	}
}

func (c *CompositeObserver) OnStepStart(ctx context.Context, inst *ProcessInstance, stepKey string, idx int) {
	for _, o := range c.observers {
		o.OnStepStart(ctx, inst, stepKey, idx)
	}
}

func (c *CompositeObserver) OnStepCompleted(ctx context.Context, inst *ProcessInstance, stepKey string, idx int, err error, d time.Duration) {
	for _, o := range c.observers {
		o.OnStepCompleted(ctx, inst, stepKey, idx, err, d)
	}
}

func (c *CompositeObserver) OnTaskCreated(ctx context.Context, inst *ProcessInstance, task *Task) {
	for _, o := range c.observers {
		o.OnTaskCreated(ctx, inst, task)
	}
}

// LoggingObserver writes structured logs using log/slog.
type LoggingObserver struct {
	Logger *slog.Logger
}

// NewLoggingObserver creates an Observer that logs instance / step lifecycle
// events using the provided slog.Logger. If logger is nil, slog.Default()
// is used.
func NewLoggingObserver(logger *slog.Logger) Observer {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingObserver{Logger: logger}
}

func (o *LoggingObserver) OnInstanceStart(ctx context.Context, inst *ProcessInstance) {
	o.Logger.InfoContext(ctx, "instance_start",
		slog.String("process", inst.ProcessKey),
		slog.String("instance_id", inst.ID),
	)
}

func (o *LoggingObserver) OnInstanceEnded(ctx context.Context, inst *ProcessInstance) {
	o.Logger.InfoContext(ctx, "instance_ended",
		slog.String("process", inst.ProcessKey),
		slog.String("instance_id", inst.ID),
		slog.Int("activities", len(inst.History)),
	)
}

func (o *LoggingObserver) OnStepStart(ctx context.Context, inst *ProcessInstance, stepKey string, idx int) {
	o.Logger.InfoContext(ctx, "step_start",
		slog.String("instance_id", inst.ID),
		slog.String("step", stepKey),
		slog.Int("index", idx),
	)
}

func (o *LoggingObserver) OnStepCompleted(ctx context.Context, inst *ProcessInstance, stepKey string, idx int, err error, d time.Duration) {
	if err != nil {
		o.Logger.ErrorContext(ctx, "step_failed",
			slog.String("instance_id", inst.ID),
			slog.String("step", stepKey),
			slog.Int("index", idx),
			slog.Duration("duration", d),
			slog.String("error", err.Error()),
		)
		return
	}
	o.Logger.InfoContext(ctx, "step_completed",
		slog.String("instance_id", inst.ID),
		slog.String("step", stepKey),
		slog.Int("index", idx),
		slog.Duration("duration", d),
	)
}

func (o *LoggingObserver) OnTaskCreated(ctx context.Context, inst *ProcessInstance, task *Task) {
	o.Logger.InfoContext(ctx, "task_created",
		slog.String("instance_id", inst.ID),
		slog.String("task_id", task.ID),
		slog.String("step", task.StepKey),
		slog.String("candidate_group", task.CandidateGroup),
	)
}
