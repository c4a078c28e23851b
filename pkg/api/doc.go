// Package api defines the public contracts of the fulfillment saga: the
// Engine interface, process definitions and instances, the typed variable
// bag with its coercion rules, human tasks, the OrderCreated event, and
// the read-only identity directory.
//
// Application code normally imports the root fulfillment package, which
// re-exports these types together with engine constructors.
package api
