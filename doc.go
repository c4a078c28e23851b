// Package fulfillment coordinates the lifecycle of a customer order across
// cart assembly, order persistence, an asynchronous fulfillment workflow,
// and human task assignment to role-based groups.
//
// # Core Concepts
//
//  1. Engine — the workflow runtime. It owns process definitions, running
//     instances, and the human task set. The order process is a linear
//     sequence: validate → human review → payment → shipping.
//  2. VariableBag — the typed per-instance key/value store passed between
//     steps. Every read goes through explicit coercion (AsInt64/AsDecimal);
//     producers deliver numbers in whatever width or encoding they like,
//     and the bag normalizes them exactly once.
//  3. Bus — the event channel. Order creation publishes OrderCreated after
//     its transaction commits; the consumer side delivers at least once.
//  4. Trigger — starts exactly one process instance per order, with a
//     duplicate-start guard for redelivered events.
//  5. Task — a pending human step, visible to its candidate group, with
//     claim / unclaim / complete transitions. Claiming is a compare-and-set:
//     of two concurrent claimers exactly one wins.
//
// # Runtime
//
// Runtime bundles an in-memory engine, bus, trigger, and consumer into a
// single process-local helper for development and tests:
//
//	rt := fulfillment.NewRuntime(logger)
//	rt.StartConsumers(ctx, 2)
//	defer rt.Stop()
//
//	_ = rt.PublishOrderCreated(ctx, event)
//
// Production deployments compose the same pieces with SQLite stores and the
// Redis Streams bus; see cmd/server.
package fulfillment
