package fulfillment

import (
	"fmt"

	"github.com/shoplane/fulfillment/pkg/api"
)

// ProcessBuilder provides a fluent API for defining linear processes:
//
//	def := fulfillment.NewProcess("order_process", "Order Process").
//	    ServiceStep("validate_order", "Validate Order", validate).
//	    UserStep("review_order", "Review Order", "order_managers").
//	    ServiceStep("process_payment", "Process Payment", charge).
//	    Definition()
//
//	if err := engine.RegisterProcess(def); err != nil {
//	    log.Fatal(err)
//	}
type ProcessBuilder struct {
	def api.ProcessDefinition
}

// NewProcess creates a new process builder with the given key and display
// name.
func NewProcess(key, name string) *ProcessBuilder {
	return &ProcessBuilder{
		def: api.ProcessDefinition{
			Key:     key,
			Name:    name,
			Version: 1,
			Steps:   make([]api.StepDefinition, 0),
		},
	}
}

// Version sets the definition version (default 1).
func (b *ProcessBuilder) Version(v int) *ProcessBuilder {
	b.def.Version = v
	return b
}

// ServiceStep appends an automatic step.
func (b *ProcessBuilder) ServiceStep(key, name string, fn StepFunc) *ProcessBuilder {
	if key == "" {
		panic("fulfillment: step key must not be empty")
	}
	if fn == nil {
		panic(fmt.Sprintf("fulfillment: service step %q must have an executor", key))
	}
	b.def.Steps = append(b.def.Steps, api.StepDefinition{
		Key:     key,
		Name:    name,
		Kind:    api.StepService,
		Execute: fn,
	})
	return b
}

// UserStep appends a step that parks the process behind a human task
// routed to candidateGroup.
func (b *ProcessBuilder) UserStep(key, name, candidateGroup string) *ProcessBuilder {
	if key == "" {
		panic("fulfillment: step key must not be empty")
	}
	if candidateGroup == "" {
		panic(fmt.Sprintf("fulfillment: user step %q must have a candidate group", key))
	}
	b.def.Steps = append(b.def.Steps, api.StepDefinition{
		Key:            key,
		Name:           name,
		Kind:           api.StepUser,
		CandidateGroup: candidateGroup,
	})
	return b
}

// Definition returns the built ProcessDefinition.
func (b *ProcessBuilder) Definition() ProcessDefinition {
	return b.def
}

// MustRegister registers the definition on the engine, panicking on error.
// Intended for startup wiring where a bad definition is fatal anyway.
func (b *ProcessBuilder) MustRegister(eng Engine) {
	if err := eng.RegisterProcess(b.def); err != nil {
		panic(err)
	}
}
