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

package saga_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/innovationmech/sagaflow/pkg/saga"
)

func noopStep(context.Context, *saga.NotificationEvent, *saga.Saga, *orderPayload) error {
	return nil
}

func TestStepRegistryBuilder_BuildsOrderedRegistry(t *testing.T) {
	registry, err := saga.NewStepRegistry[orderPayload]().
		Step(saga.EventTypeInitiated, saga.OutcomeInitiateSuccess, evReserve, noopStep).
		Step(evReserve, outReserved, evShip, noopStep).
		Step(evShip, outShipped, saga.EventTypeCompleted, noopStep).
		Build()
	require.NoError(t, err)

	assert.Equal(t, 3, registry.Len())
	assert.Equal(t, []saga.EventType{saga.EventTypeInitiated, evReserve, evShip}, registry.TriggerOrder())
	assert.Equal(t, 0, registry.Position(saga.EventTypeInitiated))
	assert.Equal(t, 2, registry.Position(evShip))
	assert.Equal(t, -1, registry.Position("NEVER_REGISTERED"))

	reg, ok := registry.Lookup(evReserve, outReserved)
	require.True(t, ok)
	assert.Equal(t, evShip, reg.NextEventType)
	assert.False(t, reg.Compensating)

	_, ok = registry.Lookup(evReserve, "UNKNOWN_OUTCOME")
	assert.False(t, ok)
}

func TestStepRegistryBuilder_MultipleOutcomesShareOnePosition(t *testing.T) {
	registry, err := saga.NewStepRegistry[orderPayload]().
		Step(saga.EventTypeInitiated, saga.OutcomeInitiateSuccess, evReserve, noopStep).
		Step(evReserve, outReserved, evShip, noopStep).
		CompensatingStep(evReserve, "STOCK_EXHAUSTED", evShip, noopStep).
		Step(evShip, outShipped, saga.EventTypeCompleted, noopStep).
		Build()
	require.NoError(t, err)

	assert.Equal(t, 4, registry.Len())
	assert.Len(t, registry.TriggerOrder(), 3)

	reg, ok := registry.Lookup(evReserve, "STOCK_EXHAUSTED")
	require.True(t, ok)
	assert.True(t, reg.Compensating)
}

func TestStepRegistryBuilder_RejectsDuplicateRegistration(t *testing.T) {
	_, err := saga.NewStepRegistry[orderPayload]().
		Step(saga.EventTypeInitiated, saga.OutcomeInitiateSuccess, evReserve, noopStep).
		Step(saga.EventTypeInitiated, saga.OutcomeInitiateSuccess, evShip, noopStep).
		Build()
	assert.ErrorIs(t, err, saga.ErrDuplicateRegistration)
}

func TestStepRegistryBuilder_RejectsNilStep(t *testing.T) {
	_, err := saga.NewStepRegistry[orderPayload]().
		Step(saga.EventTypeInitiated, saga.OutcomeInitiateSuccess, evReserve, nil).
		Build()
	assert.Error(t, err)
}

func TestStepRegistryBuilder_RejectsEmptyRegistry(t *testing.T) {
	_, err := saga.NewStepRegistry[orderPayload]().Build()
	assert.ErrorIs(t, err, saga.ErrNoSteps)
}

func TestStepRegistryBuilder_RejectsBackwardsOrdering(t *testing.T) {
	// evShip is registered before evReserve but evReserve requests it, so
	// the follow-up would sit behind its producer and always be dropped.
	_, err := saga.NewStepRegistry[orderPayload]().
		Step(evShip, outShipped, saga.EventTypeCompleted, noopStep).
		Step(evReserve, outReserved, evShip, noopStep).
		Build()
	assert.ErrorIs(t, err, saga.ErrTriggerReused)
}

func TestOrchestratorRegistry(t *testing.T) {
	engines := saga.NewOrchestratorRegistry()
	f := newEngineFixture(t)

	require.NoError(t, engines.Register(f.engine))
	assert.ErrorIs(t, engines.Register(f.engine), saga.ErrEngineExists)

	got, ok := engines.Get(testSagaName)
	require.True(t, ok)
	assert.Equal(t, testSagaName, got.SagaName())
	assert.Equal(t, testSagaTopic, got.Topic())

	_, ok = engines.Get("UNKNOWN")
	assert.False(t, ok)

	assert.Equal(t, []string{testSagaName}, engines.Names())
}
