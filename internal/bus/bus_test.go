package bus

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/shoplane/fulfillment/pkg/api"
)

func sampleEvent(orderID int64) api.OrderCreated {
	return api.OrderCreated{
		OrderID:     orderID,
		UserID:      "user1",
		Status:      api.OrderConfirmed,
		TotalAmount: decimal.RequireFromString("49.98"),
		Items: []api.OrderItem{
			{ID: 1, ProductID: "widget", Quantity: 2, Price: decimal.RequireFromString("49.98")},
		},
		CreatedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestOrderCreatedEnvelope(t *testing.T) {
	env, err := NewOrderCreated(sampleEvent(77))
	if err != nil {
		t.Fatalf("wrap: %v", err)
	}
	if env.Key != "order-77" {
		t.Fatalf("key = %q, want order-77", env.Key)
	}
	if env.Type != EventOrderCreated {
		t.Fatalf("type = %q, want %q", env.Type, EventOrderCreated)
	}
	if env.PublishedAt.IsZero() {
		t.Fatal("publishedAt not set")
	}

	event, err := DecodeOrderCreated(env)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if event.OrderID != 77 || event.UserID != "user1" {
		t.Fatalf("decoded event = %+v", event)
	}
	if !event.TotalAmount.Equal(decimal.RequireFromString("49.98")) {
		t.Fatalf("totalAmount = %s, want 49.98", event.TotalAmount)
	}
	if len(event.Items) != 1 || event.Items[0].ProductID != "widget" {
		t.Fatalf("items = %+v", event.Items)
	}
}

func TestDecodeOrderCreated_Malformed(t *testing.T) {
	env := Envelope{Key: "order-1", Type: EventOrderCreated, Body: []byte("{not json")}
	if _, err := DecodeOrderCreated(env); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestMemoryBus_PublishConsumeOrder(t *testing.T) {
	b := NewMemoryBus(8)
	ctx := context.Background()

	for _, orderID := range []int64{1, 2, 3} {
		env, err := NewOrderCreated(sampleEvent(orderID))
		if err != nil {
			t.Fatalf("wrap: %v", err)
		}
		if err := b.Publish(ctx, env); err != nil {
			t.Fatalf("publish: %v", err)
		}
	}
	if b.Len() != 3 {
		t.Fatalf("len = %d, want 3", b.Len())
	}

	for _, want := range []string{"order-1", "order-2", "order-3"} {
		env, err := b.Consume(ctx)
		if err != nil {
			t.Fatalf("consume: %v", err)
		}
		if env.Key != want {
			t.Fatalf("key = %q, want %q", env.Key, want)
		}
	}
	if b.Len() != 0 {
		t.Fatalf("len = %d, want 0", b.Len())
	}
}

func TestMemoryBus_ConsumeHonorsCancellation(t *testing.T) {
	b := NewMemoryBus(1)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		_, err := b.Consume(ctx)
		done <- err
	}()

	cancel()
	select {
	case err := <-done:
		if err == nil {
			t.Fatal("expected context error")
		}
	case <-time.After(time.Second):
		t.Fatal("consume did not return after cancel")
	}
}
