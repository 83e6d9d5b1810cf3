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
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/innovationmech/sagaflow/pkg/logger"
	"github.com/innovationmech/sagaflow/pkg/saga/messaging"
)

// EngineConfig carries the dependencies of one orchestrator engine.
type EngineConfig struct {
	// SagaName is the saga type this engine drives, e.g.
	// "PEN_REQUEST_COMPLETE_SAGA". Required.
	SagaName string

	// Topic is the engine's inbound topic on the event bus. Required.
	Topic string

	// Service is the transactional façade over the saga store. Required.
	Service *Service

	// Gateway publishes and subscribes on the event bus. Required.
	Gateway messaging.Gateway

	// Metrics collects engine activity. Optional; a no-op collector is used
	// when nil.
	Metrics MetricsCollector
}

// Validate checks the configuration.
func (c *EngineConfig) Validate() error {
	if c.SagaName == "" {
		return errors.New("saga name is required")
	}
	if c.Topic == "" {
		return errors.New("topic is required")
	}
	if c.Service == nil {
		return errors.New("service is required")
	}
	if c.Gateway == nil {
		return errors.New("gateway is required")
	}
	return nil
}

// Engine is the generic event-driven orchestrator runtime for one saga type.
// It matches inbound outcome events to registered steps, enforces idempotency
// and terminality, and invokes the bound step functions. The engine holds no
// saga state in memory between events; every event reloads the row from the
// store, which keeps the engine stateless and safely restartable.
//
// T is the business payload type carried opaquely in Saga.Payload and
// deserialized fresh on every step.
type Engine[T any] struct {
	name     string
	topic    string
	service  *Service
	gateway  messaging.Gateway
	registry *StepRegistry[T]
	metrics  MetricsCollector
	validate *validator.Validate
	log      *zap.Logger
}

// NewEngine builds an engine from its config and a frozen step registry.
func NewEngine[T any](cfg EngineConfig, registry *StepRegistry[T]) (*Engine[T], error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid engine config: %w", err)
	}
	if registry == nil || registry.Len() == 0 {
		return nil, ErrNoSteps
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = NoopMetricsCollector{}
	}
	return &Engine[T]{
		name:     cfg.SagaName,
		topic:    cfg.Topic,
		service:  cfg.Service,
		gateway:  cfg.Gateway,
		registry: registry,
		metrics:  metrics,
		validate: validator.New(),
		log:      logger.Named("saga.engine").With(zap.String("sagaName", cfg.SagaName)),
	}, nil
}

// SagaName returns the saga type this engine drives.
func (e *Engine[T]) SagaName() string {
	return e.name
}

// Topic returns the engine's inbound topic.
func (e *Engine[T]) Topic() string {
	return e.topic
}

// Subscribe attaches the engine to its inbound topic. Every delivered message
// is handled on its own goroutine so one slow saga never blocks the rest.
func (e *Engine[T]) Subscribe() error {
	return e.gateway.Subscribe(e.topic, func(data []byte) {
		go func() {
			evt, err := UnmarshalEvent(data)
			if err != nil {
				e.log.Error("discarding malformed event", zap.Error(err))
				return
			}
			if err := e.HandleEvent(context.Background(), evt); err != nil {
				e.log.Error("event handling failed",
					zap.String("sagaId", evt.SagaID),
					zap.String("eventType", string(evt.EventType)),
					zap.Error(err))
			}
		}()
	})
}

// StartSaga validates the payload, creates the durable saga row, and then
// publishes the initial INITIATED/INITIATE_SUCCESS event to the engine's own
// topic (persist-before-publish). Returns ErrSagaConflict when another saga
// is already in flight for the correlation id, or a validation error, both
// synchronously and before any row is created.
func (e *Engine[T]) StartSaga(ctx context.Context, payload *T, actor, correlationID string) (*Saga, error) {
	if err := e.validate.Struct(payload); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}

	sg, err := e.service.CreateSagaRecord(ctx, string(raw), e.name, actor, correlationID)
	if err != nil {
		return nil, err
	}
	e.metrics.RecordSagaStarted(e.name)

	evt := &NotificationEvent{
		EventType:     EventTypeInitiated,
		EventOutcome:  OutcomeInitiateSuccess,
		SagaID:        sg.ID,
		CorrelationID: correlationID,
	}
	if err := e.publish(ctx, e.topic, evt); err != nil {
		// The row is durable; reconciliation replays it if this initial
		// publish never lands.
		e.log.Warn("initial event publish failed, saga will be reconciled",
			zap.String("sagaId", sg.ID), zap.Error(err))
	}
	return sg, nil
}

// HandleEvent advances the saga identified by the event through at most one
// registered transition. Duplicates, terminal sagas, reserved notification
// events, and unregistered trigger pairs are all dropped without error so
// at-least-once delivery stays safe.
func (e *Engine[T]) HandleEvent(ctx context.Context, event *NotificationEvent) error {
	// Pure notifications never advance state.
	switch event.EventType {
	case EventTypeSagaStarted, EventTypeSagaCompleted, EventTypeSagaForceStopped:
		return nil
	}

	// Externally visible "saga started" broadcast; the sentinel replyTo on
	// the broadcast itself stops the echo from triggering another one.
	if event.EventType == EventTypeInitiated && event.ReplyTo != ReplyToBroadcast {
		e.broadcast(ctx, EventTypeSagaStarted, event.SagaID, event.CorrelationID)
	}

	sg, err := e.service.GetSaga(ctx, event.SagaID)
	if err != nil {
		if errors.Is(err, ErrSagaNotFound) {
			// The row must exist before the first event is published;
			// its absence is an inconsistency an operator has to see.
			e.log.Error("no saga row for inbound event",
				zap.String("sagaId", event.SagaID),
				zap.String("eventType", string(event.EventType)))
			return nil
		}
		return err
	}

	if sg.Status.IsTerminal() {
		e.log.Debug("dropping event for terminal saga",
			zap.String("sagaId", sg.ID),
			zap.String("status", string(sg.Status)))
		e.metrics.RecordDuplicateDropped(e.name)
		return nil
	}

	reg, ok := e.registry.Lookup(event.EventType, event.EventOutcome)
	if !ok {
		e.log.Error("no registered transition for event",
			zap.String("sagaId", sg.ID),
			zap.String("eventType", string(event.EventType)),
			zap.String("eventOutcome", string(event.EventOutcome)))
		e.metrics.RecordProtocolMismatch(e.name, event.EventType, event.EventOutcome)
		return nil
	}

	// Position-based idempotency: the persisted state names the awaited
	// trigger; anything ordered before it is a stale duplicate.
	incoming := e.registry.Position(event.EventType)
	awaited := e.registry.Position(EventType(sg.SagaState))
	if incoming < awaited {
		e.log.Debug("dropping stale duplicate event",
			zap.String("sagaId", sg.ID),
			zap.String("eventType", string(event.EventType)),
			zap.String("sagaState", sg.SagaState))
		e.metrics.RecordDuplicateDropped(e.name)
		return nil
	}

	e.metrics.RecordEventHandled(e.name, event.EventType)
	return e.process(ctx, event, sg, reg)
}

// Replay re-drives a stalled saga from its durable event log. With no events
// yet, the initial INITIATED/INITIATE_SUCCESS delivery is synthesized;
// otherwise the highest-step event is reconstructed and pushed through the
// same transition path. The scheduler's preconditions already exclude
// terminal sagas, so the status and idempotency checks are not repeated; the
// store-level de-duplication keeps the event log consistent when a replay
// races live delivery.
func (e *Engine[T]) Replay(ctx context.Context, sg *Saga) error {
	if sg.Status.IsTerminal() {
		return nil
	}

	events, err := e.service.GetSagaEvents(ctx, sg.ID)
	if err != nil {
		return err
	}

	evt := &NotificationEvent{
		EventType:     EventTypeInitiated,
		EventOutcome:  OutcomeInitiateSuccess,
		SagaID:        sg.ID,
		CorrelationID: sg.CorrelationID,
	}
	if len(events) > 0 {
		last := events[0]
		for _, cur := range events[1:] {
			if cur.StepNumber > last.StepNumber {
				last = cur
			}
		}
		evt.EventType = EventType(last.EventState)
		evt.EventOutcome = EventOutcome(last.EventOutcome)
		evt.EventPayload = last.EventResponse
	}

	reg, ok := e.registry.Lookup(evt.EventType, evt.EventOutcome)
	if !ok {
		e.log.Error("replay found no registered transition",
			zap.String("sagaId", sg.ID),
			zap.String("eventType", string(evt.EventType)),
			zap.String("eventOutcome", string(evt.EventOutcome)))
		e.metrics.RecordProtocolMismatch(e.name, evt.EventType, evt.EventOutcome)
		return nil
	}

	sg.RetryCount++
	e.metrics.RecordReplay(e.name)
	e.log.Info("replaying saga",
		zap.String("sagaId", sg.ID),
		zap.String("eventType", string(evt.EventType)),
		zap.Int("retryCount", sg.RetryCount))
	return e.process(ctx, evt, sg, reg)
}

// process appends the event row, advances the persisted state, and only then
// invokes the step. A step failure therefore leaves the saga ready to retry
// this same step on the next delivery or replay instead of skipping it.
func (e *Engine[T]) process(ctx context.Context, event *NotificationEvent, sg *Saga, reg StepRegistration[T]) error {
	payload := new(T)
	if sg.Payload != "" {
		if err := json.Unmarshal([]byte(sg.Payload), payload); err != nil {
			return fmt.Errorf("deserialize payload of saga %s: %w", sg.ID, err)
		}
	}

	sg.SagaState = string(reg.NextEventType)
	if sg.Status == StatusStarted {
		sg.Status = StatusInProgress
	}
	if reg.Compensating {
		sg.SagaCompensated = true
	}
	if err := e.service.UpdateAttachedSagaWithEvents(ctx, sg, event); err != nil {
		return err
	}

	start := time.Now()
	err := reg.Step(ctx, event, sg, payload)
	e.metrics.RecordStepInvoked(e.name, event.EventType, err == nil, time.Since(start))
	if err != nil {
		return fmt.Errorf("step %s/%s of saga %s: %w", event.EventType, event.EventOutcome, sg.ID, err)
	}
	return nil
}

// MarkCompleted finalizes the saga: terminal status, payload persisted, and
// the completion broadcast published. Terminal steps call this as their last
// action.
func (e *Engine[T]) MarkCompleted(ctx context.Context, sg *Saga, payload *T) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("serialize payload of saga %s: %w", sg.ID, err)
	}
	sg.Payload = string(raw)
	sg.Status = StatusCompleted
	sg.SagaState = string(EventTypeCompleted)
	if err := e.service.SaveSaga(ctx, sg); err != nil {
		return err
	}

	e.metrics.RecordSagaCompleted(e.name, time.Since(sg.CreatedAt))
	e.log.Info("saga completed", zap.String("sagaId", sg.ID))
	e.broadcast(ctx, EventTypeSagaCompleted, sg.ID, sg.CorrelationID)
	return nil
}

// ForceStop terminalizes one saga on behalf of a conflicting operation and
// broadcasts the reserved force-stop notification. Stray events for the saga
// are dropped by the terminal-status check from then on.
func (e *Engine[T]) ForceStop(ctx context.Context, sagaID, actor string) error {
	sg, err := e.service.GetSaga(ctx, sagaID)
	if err != nil {
		return err
	}
	if sg.Status.IsTerminal() {
		return nil
	}
	sg.Status = StatusForceStopped
	sg.UpdateUser = actor
	if err := e.service.SaveSaga(ctx, sg); err != nil {
		return err
	}
	e.log.Info("saga force-stopped", zap.String("sagaId", sg.ID), zap.String("actor", actor))
	e.broadcast(ctx, EventTypeSagaForceStopped, sg.ID, sg.CorrelationID)
	return nil
}

// PublishCommand sends a command event to a participant topic with the
// engine's inbound topic as the reply address.
func (e *Engine[T]) PublishCommand(ctx context.Context, topic string, event *NotificationEvent) error {
	event.ReplyTo = e.topic
	return e.publish(ctx, topic, event)
}

// SaveSaga persists header mutations made by a step function.
func (e *Engine[T]) SaveSaga(ctx context.Context, sg *Saga) error {
	return e.service.SaveSaga(ctx, sg)
}

// SaveSagaPayload serializes the mutated payload back onto the saga row and
// persists it.
func (e *Engine[T]) SaveSagaPayload(ctx context.Context, sg *Saga, payload *T) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("serialize payload of saga %s: %w", sg.ID, err)
	}
	sg.Payload = string(raw)
	return e.service.SaveSaga(ctx, sg)
}

func (e *Engine[T]) publish(ctx context.Context, topic string, event *NotificationEvent) error {
	data, err := event.Marshal()
	if err != nil {
		return err
	}
	return e.gateway.Publish(ctx, topic, data)
}

// broadcast emits a reserved notification event on the engine's own topic.
// The sentinel replyTo marks it so the engine's own subscription drops it.
func (e *Engine[T]) broadcast(ctx context.Context, eventType EventType, sagaID, correlationID string) {
	evt := &NotificationEvent{
		EventType:     eventType,
		SagaID:        sagaID,
		ReplyTo:       ReplyToBroadcast,
		CorrelationID: correlationID,
	}
	if err := e.publish(ctx, e.topic, evt); err != nil {
		e.log.Warn("notification broadcast failed",
			zap.String("sagaId", sagaID),
			zap.String("eventType", string(eventType)),
			zap.Error(err))
	}
}
