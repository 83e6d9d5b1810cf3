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
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/innovationmech/sagaflow/pkg/saga"
	"github.com/innovationmech/sagaflow/pkg/saga/retry"
	"github.com/innovationmech/sagaflow/pkg/saga/storage"
)

func TestService_CreateSagaRecord(t *testing.T) {
	store := storage.NewMemoryStore()
	service := saga.NewService(store)

	sg, err := service.CreateSagaRecord(context.Background(), `{"k":"v"}`, "TEST_SAGA", "TESTER", uuid.NewString())
	require.NoError(t, err)
	assert.NotEmpty(t, sg.ID)
	assert.Equal(t, saga.StatusStarted, sg.Status)
	assert.Equal(t, string(saga.EventTypeInitiated), sg.SagaState)
	assert.Equal(t, "TESTER", sg.CreateUser)

	row, err := service.GetSaga(context.Background(), sg.ID)
	require.NoError(t, err)
	assert.Equal(t, sg.ID, row.ID)
}

func TestService_CreateSagaRecordDetectsConflict(t *testing.T) {
	store := storage.NewMemoryStore()
	service := saga.NewService(store)
	correlationID := uuid.NewString()

	_, err := service.CreateSagaRecord(context.Background(), "{}", "TEST_SAGA", "TESTER", correlationID)
	require.NoError(t, err)

	// Second saga for the same business request while the first is active.
	_, err = service.CreateSagaRecord(context.Background(), "{}", "TEST_SAGA", "TESTER", correlationID)
	assert.ErrorIs(t, err, saga.ErrSagaConflict)

	// Empty correlation ids never conflict with each other.
	_, err = service.CreateSagaRecord(context.Background(), "{}", "TEST_SAGA", "TESTER", "")
	require.NoError(t, err)
	_, err = service.CreateSagaRecord(context.Background(), "{}", "TEST_SAGA", "TESTER", "")
	assert.NoError(t, err)
}

func TestService_CreateSagaRecordAllowsAfterTerminal(t *testing.T) {
	store := storage.NewMemoryStore()
	service := saga.NewService(store)
	correlationID := uuid.NewString()

	first, err := service.CreateSagaRecord(context.Background(), "{}", "TEST_SAGA", "TESTER", correlationID)
	require.NoError(t, err)

	first.Status = saga.StatusCompleted
	require.NoError(t, service.SaveSaga(context.Background(), first))

	_, err = service.CreateSagaRecord(context.Background(), "{}", "TEST_SAGA", "TESTER", correlationID)
	assert.NoError(t, err)
}

func TestService_UpdateAttachedSagaWithEventsRetriesTransientFailures(t *testing.T) {
	store := storage.NewMemoryStore()
	service := saga.NewService(store)

	sg, err := service.CreateSagaRecord(context.Background(), "{}", "TEST_SAGA", "TESTER", "")
	require.NoError(t, err)

	attempts := 0
	store.FailUpdate = func() error {
		attempts++
		if attempts <= 2 {
			return errors.New("deadlock detected")
		}
		return nil
	}

	err = service.UpdateAttachedSagaWithEvents(context.Background(), sg, &saga.NotificationEvent{
		EventType:    saga.EventTypeInitiated,
		EventOutcome: saga.OutcomeInitiateSuccess,
		SagaID:       sg.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)

	events, err := service.GetSagaEvents(context.Background(), sg.ID)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestService_UpdateAttachedSagaWithEventsExhaustsRetries(t *testing.T) {
	store := storage.NewMemoryStore()
	service := saga.NewService(store)

	sg, err := service.CreateSagaRecord(context.Background(), "{}", "TEST_SAGA", "TESTER", "")
	require.NoError(t, err)

	boom := errors.New("database gone")
	store.FailUpdate = func() error { return boom }

	err = service.UpdateAttachedSagaWithEvents(context.Background(), sg, &saga.NotificationEvent{
		EventType:    saga.EventTypeInitiated,
		EventOutcome: saga.OutcomeInitiateSuccess,
		SagaID:       sg.ID,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, retry.ErrAttemptsExhausted)
	assert.ErrorIs(t, err, boom)

	var storageErr *saga.StorageError
	assert.ErrorAs(t, err, &storageErr)
}

func TestService_ForceStopActiveSagas(t *testing.T) {
	store := storage.NewMemoryStore()
	service := saga.NewService(store)
	correlationID := uuid.NewString()

	first, err := service.CreateSagaRecord(context.Background(), "{}", "TEST_SAGA", "TESTER", correlationID)
	require.NoError(t, err)

	done, err := service.CreateSagaRecord(context.Background(), "{}", "TEST_SAGA", "TESTER", "")
	require.NoError(t, err)
	done.CorrelationID = correlationID
	done.Status = saga.StatusCompleted
	require.NoError(t, service.SaveSaga(context.Background(), done))

	stopped, err := service.ForceStopActiveSagas(context.Background(), correlationID, "ADMIN")
	require.NoError(t, err)
	require.Len(t, stopped, 1)
	assert.Equal(t, first.ID, stopped[0].ID)

	row, err := service.GetSaga(context.Background(), first.ID)
	require.NoError(t, err)
	assert.Equal(t, saga.StatusForceStopped, row.Status)
	assert.Equal(t, "ADMIN", row.UpdateUser)

	// Completed rows stay untouched.
	row, err = service.GetSaga(context.Background(), done.ID)
	require.NoError(t, err)
	assert.Equal(t, saga.StatusCompleted, row.Status)
}
