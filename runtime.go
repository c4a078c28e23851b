package fulfillment

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/shoplane/fulfillment/internal/bus"
	"github.com/shoplane/fulfillment/internal/identity"
	"github.com/shoplane/fulfillment/internal/saga"
	"github.com/shoplane/fulfillment/pkg/consumer"
)

// Runtime bundles an in-memory Engine, an in-memory event bus, the saga
// trigger, and a Consumer into a simple process-local runner for
// development and tests.
//
// Typical usage:
//
//	rt := fulfillment.NewRuntime(nil)
//	_ = rt.StartConsumers(ctx, 2)
//	defer rt.Stop()
//
//	_ = rt.PublishOrderCreated(ctx, event)
type Runtime struct {
	// Engine is the in-memory workflow engine used by this runtime.
	Engine Engine

	// Bus is the in-memory event channel feeding the consumer.
	Bus *bus.MemoryBus

	// Directory is the seeded identity directory.
	Directory Directory

	// Consumer drives the saga trigger from Bus.
	Consumer *consumer.Consumer

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// NewRuntime constructs a Runtime with the order process registered and the
// bootstrap identity directory loaded. If logger is nil, slog.Default() is
// used.
func NewRuntime(logger *slog.Logger) *Runtime {
	if logger == nil {
		logger = slog.Default()
	}

	eng := NewInMemoryEngineWithObserver(NewLoggingObserver(logger))
	if err := eng.RegisterProcess(OrderProcess(logger)); err != nil {
		// Definitions are code; a bad one is a programming error.
		panic(err)
	}

	b := bus.NewMemoryBus(1024)
	trigger := saga.NewTrigger(eng, OrderProcessKey, logger)

	return &Runtime{
		Engine:    eng,
		Bus:       b,
		Directory: identity.Seed(),
		Consumer:  consumer.New(b, trigger, logger),
	}
}

// StartConsumers starts n consumer goroutines that run until Stop.
// Calling StartConsumers twice without Stop is an error.
func (r *Runtime) StartConsumers(ctx context.Context, n int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		return errors.New("fulfillment: Runtime already started")
	}
	if n <= 0 {
		n = 1
	}

	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.running = true

	r.wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer r.wg.Done()
			r.Consumer.Run(ctx)
		}()
	}
	return nil
}

// Stop cancels all consumer goroutines started by StartConsumers and waits
// for them to exit.
func (r *Runtime) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	cancel := r.cancel
	r.running = false
	r.cancel = nil
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	r.wg.Wait()
}

// PublishOrderCreated puts an OrderCreated event on the bus.
func (r *Runtime) PublishOrderCreated(ctx context.Context, event OrderCreated) error {
	env, err := bus.NewOrderCreated(event)
	if err != nil {
		return err
	}
	return r.Bus.Publish(ctx, env)
}
