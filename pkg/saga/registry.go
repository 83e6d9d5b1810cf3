// Copyright © 2025 jackelyj <dreamerlyj@gmail.com>
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.
//

package saga

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// StepFn is the side-effecting action bound to a saga transition. It receives
// the triggering event, the saga row (already advanced and persisted), and the
// freshly deserialized business payload. A returned error propagates to the
// caller; because the state row is updated before the step runs, a failed step
// leaves the saga ready to retry this step on the next delivery or replay.
type StepFn[T any] func(ctx context.Context, event *NotificationEvent, sg *Saga, payload *T) error

// StepRegistration is the immutable tuple binding a trigger pair to the next
// requested operation and its action. Built once at process start and never
// mutated afterward.
type StepRegistration[T any] struct {
	// TriggerEventType and TriggerOutcome key the registration.
	TriggerEventType EventType
	TriggerOutcome   EventOutcome

	// NextEventType is the operation the step requests; it becomes the
	// persisted saga state before the step runs.
	NextEventType EventType

	// Compensating flags a step that reverses a prior effect.
	Compensating bool

	// Step is the bound action.
	Step StepFn[T]
}

type triggerKey struct {
	eventType EventType
	outcome   EventOutcome
}

// StepRegistry is the frozen per-saga-type transition table. It also records
// the statically ordered list of trigger event types used by the position
// based idempotency check.
type StepRegistry[T any] struct {
	steps map[triggerKey]StepRegistration[T]
	order []EventType
}

// Lookup resolves the registration for a trigger pair.
func (r *StepRegistry[T]) Lookup(eventType EventType, outcome EventOutcome) (StepRegistration[T], bool) {
	reg, ok := r.steps[triggerKey{eventType: eventType, outcome: outcome}]
	return reg, ok
}

// Position returns the ordinal position of an event type within the ordered
// trigger list, or -1 when the type does not trigger any step.
func (r *StepRegistry[T]) Position(eventType EventType) int {
	for i, t := range r.order {
		if t == eventType {
			return i
		}
	}
	return -1
}

// TriggerOrder returns a copy of the ordered trigger event types.
func (r *StepRegistry[T]) TriggerOrder() []EventType {
	out := make([]EventType, len(r.order))
	copy(out, r.order)
	return out
}

// Len returns the number of registrations.
func (r *StepRegistry[T]) Len() int {
	return len(r.steps)
}

// StepRegistryBuilder assembles a StepRegistry through a fluent API. Errors
// are collected and surfaced by Build so registration chains stay readable.
//
// Position-based idempotency assumes each trigger event type appears at most
// once per saga graph; the builder enforces that constraint by rejecting a
// trigger type bound from two different prior positions. Multiple outcomes of
// the same trigger type are allowed and share one position.
type StepRegistryBuilder[T any] struct {
	registry *StepRegistry[T]
	next     map[EventType]EventType
	err      error
}

// NewStepRegistry starts a builder for a saga type's transition table.
func NewStepRegistry[T any]() *StepRegistryBuilder[T] {
	return &StepRegistryBuilder[T]{
		registry: &StepRegistry[T]{steps: make(map[triggerKey]StepRegistration[T])},
		next:     make(map[EventType]EventType),
	}
}

// Step registers a forward transition.
func (b *StepRegistryBuilder[T]) Step(trigger EventType, outcome EventOutcome, next EventType, fn StepFn[T]) *StepRegistryBuilder[T] {
	return b.register(StepRegistration[T]{
		TriggerEventType: trigger,
		TriggerOutcome:   outcome,
		NextEventType:    next,
		Step:             fn,
	})
}

// CompensatingStep registers a transition flagged as reversing a prior effect.
func (b *StepRegistryBuilder[T]) CompensatingStep(trigger EventType, outcome EventOutcome, next EventType, fn StepFn[T]) *StepRegistryBuilder[T] {
	return b.register(StepRegistration[T]{
		TriggerEventType: trigger,
		TriggerOutcome:   outcome,
		NextEventType:    next,
		Compensating:     true,
		Step:             fn,
	})
}

func (b *StepRegistryBuilder[T]) register(reg StepRegistration[T]) *StepRegistryBuilder[T] {
	if b.err != nil {
		return b
	}
	if reg.Step == nil {
		b.err = fmt.Errorf("step %s/%s: step function is nil", reg.TriggerEventType, reg.TriggerOutcome)
		return b
	}
	key := triggerKey{eventType: reg.TriggerEventType, outcome: reg.TriggerOutcome}
	if _, exists := b.registry.steps[key]; exists {
		b.err = fmt.Errorf("step %s/%s: %w", reg.TriggerEventType, reg.TriggerOutcome, ErrDuplicateRegistration)
		return b
	}
	if pos := b.registry.Position(reg.TriggerEventType); pos < 0 {
		b.registry.order = append(b.registry.order, reg.TriggerEventType)
	}
	b.registry.steps[key] = reg
	b.next[reg.TriggerEventType] = reg.NextEventType
	return b
}

// Build freezes and returns the registry.
func (b *StepRegistryBuilder[T]) Build() (*StepRegistry[T], error) {
	if b.err != nil {
		return nil, b.err
	}
	if len(b.registry.steps) == 0 {
		return nil, ErrNoSteps
	}
	// A next event type that is also a trigger must sit after its producer
	// in the ordered list, otherwise the position check would treat the
	// follow-up delivery as stale.
	for trigger, next := range b.next {
		np := b.registry.Position(next)
		if np >= 0 && np <= b.registry.Position(trigger) {
			return nil, fmt.Errorf("trigger %s precedes its producer %s: %w", next, trigger, ErrTriggerReused)
		}
	}
	return b.registry, nil
}

// Orchestrator is the saga-type-agnostic view of an engine, consumed by the
// reconciliation scheduler and the process-wide registry.
type Orchestrator interface {
	// SagaName returns the saga type this engine drives.
	SagaName() string

	// Topic returns the engine's inbound topic.
	Topic() string

	// HandleEvent advances the saga identified by the event, tolerating
	// duplicates and out-of-order delivery.
	HandleEvent(ctx context.Context, event *NotificationEvent) error

	// Replay re-drives a stalled saga from its durable event log.
	Replay(ctx context.Context, sg *Saga) error
}

// OrchestratorRegistry is the process-wide map of engines keyed by saga-type
// name. It is populated once at startup by iterating the concrete saga
// definitions and read concurrently afterward.
type OrchestratorRegistry struct {
	mu      sync.RWMutex
	engines map[string]Orchestrator
}

// NewOrchestratorRegistry returns an empty registry.
func NewOrchestratorRegistry() *OrchestratorRegistry {
	return &OrchestratorRegistry{engines: make(map[string]Orchestrator)}
}

// Register adds an engine; a second engine under the same saga name is rejected.
func (r *OrchestratorRegistry) Register(o Orchestrator) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.engines[o.SagaName()]; exists {
		return fmt.Errorf("%s: %w", o.SagaName(), ErrEngineExists)
	}
	r.engines[o.SagaName()] = o
	return nil
}

// Get resolves the engine for a saga-type name.
func (r *OrchestratorRegistry) Get(sagaName string) (Orchestrator, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, ok := r.engines[sagaName]
	return o, ok
}

// Names returns the registered saga-type names, sorted for stable iteration.
func (r *OrchestratorRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.engines))
	for name := range r.engines {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
