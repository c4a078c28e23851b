package bus

import (
	"context"
)

// MemoryBus is a Bus backed by a buffered channel. A single channel keeps
// global publish order, which trivially satisfies per-key ordering. It is
// safe for concurrent use and intended for tests and single-process
// deployments.
type MemoryBus struct {
	ch chan Envelope
}

// NewMemoryBus creates a bus with the given capacity.
// For tests and small deployments, a modest capacity (e.g. 1024) is fine.
func NewMemoryBus(capacity int) *MemoryBus {
	if capacity <= 0 {
		capacity = 1024
	}
	return &MemoryBus{
		ch: make(chan Envelope, capacity),
	}
}

var _ Bus = (*MemoryBus)(nil)

func (b *MemoryBus) Publish(ctx context.Context, env Envelope) error {
	select {
	case b.ch <- env:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *MemoryBus) Consume(ctx context.Context) (*Envelope, error) {
	select {
	case env := <-b.ch:
		return &env, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Ack is a no-op: the channel receive in Consume is already destructive, so
// there is no pending state to clear.
func (b *MemoryBus) Ack(ctx context.Context, env *Envelope) error {
	return nil
}

func (b *MemoryBus) Len() int {
	return len(b.ch)
}
