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

package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/innovationmech/sagaflow/pkg/saga"
	"github.com/innovationmech/sagaflow/pkg/saga/lock"
	"github.com/innovationmech/sagaflow/pkg/saga/storage"
)

type fakeOrchestrator struct {
	mu       sync.Mutex
	name     string
	replayed []string
	fail     bool
}

func (f *fakeOrchestrator) SagaName() string { return f.name }
func (f *fakeOrchestrator) Topic() string    { return "TEST_TOPIC" }

func (f *fakeOrchestrator) HandleEvent(context.Context, *saga.NotificationEvent) error {
	return nil
}

func (f *fakeOrchestrator) Replay(_ context.Context, sg *saga.Saga) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("replay boom")
	}
	f.replayed = append(f.replayed, sg.ID)
	return nil
}

func (f *fakeOrchestrator) replayedIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string{}, f.replayed...)
}

func saveSagaAt(t *testing.T, store *storage.MemoryStore, sg *saga.Saga, at time.Time) {
	t.Helper()
	store.Now = func() time.Time { return at }
	require.NoError(t, store.SaveSaga(context.Background(), sg))
	store.Now = nil
}

func TestReconciler_ReplaysOnlyStaleSagas(t *testing.T) {
	store := storage.NewMemoryStore()
	service := saga.NewService(store)
	engines := saga.NewOrchestratorRegistry()
	orch := &fakeOrchestrator{name: "PEN_REQUEST_COMPLETE_SAGA"}
	require.NoError(t, engines.Register(orch))

	stale := &saga.Saga{
		ID:       uuid.NewString(),
		SagaName: orch.name,
		Status:   saga.StatusInProgress,
	}
	saveSagaAt(t, store, stale, time.Now().Add(-10*time.Minute))

	fresh := &saga.Saga{
		ID:       uuid.NewString(),
		SagaName: orch.name,
		Status:   saga.StatusInProgress,
	}
	saveSagaAt(t, store, fresh, time.Now().Add(-time.Minute))

	r := NewReconciler(ReconcilerConfig{StaleAfter: 5 * time.Minute}, service, engines, lock.NewMemoryLock(), nil)

	replayed := r.RunOnce(context.Background())
	assert.Equal(t, 1, replayed)
	assert.Equal(t, []string{stale.ID}, orch.replayedIDs())
}

func TestReconciler_SkipsTerminalSagas(t *testing.T) {
	store := storage.NewMemoryStore()
	service := saga.NewService(store)
	engines := saga.NewOrchestratorRegistry()
	orch := &fakeOrchestrator{name: "PEN_REQUEST_COMPLETE_SAGA"}
	require.NoError(t, engines.Register(orch))

	done := &saga.Saga{
		ID:       uuid.NewString(),
		SagaName: orch.name,
		Status:   saga.StatusCompleted,
	}
	saveSagaAt(t, store, done, time.Now().Add(-time.Hour))

	replayed := NewReconciler(ReconcilerConfig{}, service, engines, lock.NewMemoryLock(), nil).
		RunOnce(context.Background())
	assert.Zero(t, replayed)
	assert.Empty(t, orch.replayedIDs())
}

func TestReconciler_SkipsWhenLockHeld(t *testing.T) {
	store := storage.NewMemoryStore()
	service := saga.NewService(store)
	engines := saga.NewOrchestratorRegistry()
	orch := &fakeOrchestrator{name: "PEN_REQUEST_COMPLETE_SAGA"}
	require.NoError(t, engines.Register(orch))

	stale := &saga.Saga{
		ID:       uuid.NewString(),
		SagaName: orch.name,
		Status:   saga.StatusStarted,
	}
	saveSagaAt(t, store, stale, time.Now().Add(-time.Hour))

	l := lock.NewMemoryLock()
	held, err := l.Acquire(context.Background(), "sagaflow:reconciler", time.Minute)
	require.NoError(t, err)
	require.True(t, held)

	replayed := NewReconciler(ReconcilerConfig{}, service, engines, l, nil).
		RunOnce(context.Background())
	assert.Zero(t, replayed)
	assert.Empty(t, orch.replayedIDs())
}

func TestReconciler_ContinuesPastFailures(t *testing.T) {
	store := storage.NewMemoryStore()
	service := saga.NewService(store)
	engines := saga.NewOrchestratorRegistry()
	failing := &fakeOrchestrator{name: "STUDENT_PROFILE_COMPLETE_SAGA", fail: true}
	healthy := &fakeOrchestrator{name: "PEN_REQUEST_COMPLETE_SAGA"}
	require.NoError(t, engines.Register(failing))
	require.NoError(t, engines.Register(healthy))

	bad := &saga.Saga{ID: uuid.NewString(), SagaName: failing.name, Status: saga.StatusInProgress}
	saveSagaAt(t, store, bad, time.Now().Add(-time.Hour))

	orphan := &saga.Saga{ID: uuid.NewString(), SagaName: "RETIRED_SAGA", Status: saga.StatusInProgress}
	saveSagaAt(t, store, orphan, time.Now().Add(-time.Hour))

	good := &saga.Saga{ID: uuid.NewString(), SagaName: healthy.name, Status: saga.StatusInProgress}
	saveSagaAt(t, store, good, time.Now().Add(-time.Hour))

	replayed := NewReconciler(ReconcilerConfig{}, service, engines, lock.NewMemoryLock(), nil).
		RunOnce(context.Background())
	assert.Equal(t, 1, replayed)
	assert.Equal(t, []string{good.ID}, healthy.replayedIDs())
}

func TestReconciler_StartStop(t *testing.T) {
	store := storage.NewMemoryStore()
	service := saga.NewService(store)
	engines := saga.NewOrchestratorRegistry()

	r := NewReconciler(ReconcilerConfig{Interval: 10 * time.Millisecond}, service, engines, lock.NewMemoryLock(), nil)
	r.Start(context.Background())
	r.Start(context.Background()) // idempotent
	time.Sleep(30 * time.Millisecond)
	r.Stop()
	r.Stop() // idempotent
}

func TestPurger_RemovesAgedSagas(t *testing.T) {
	store := storage.NewMemoryStore()
	service := saga.NewService(store)

	old := &saga.Saga{ID: uuid.NewString(), SagaName: "PEN_REQUEST_COMPLETE_SAGA", Status: saga.StatusCompleted}
	old.CreatedAt = time.Now().AddDate(0, 0, -10)
	saveSagaAt(t, store, old, old.CreatedAt)

	recent := &saga.Saga{ID: uuid.NewString(), SagaName: "PEN_REQUEST_COMPLETE_SAGA", Status: saga.StatusCompleted}
	require.NoError(t, store.SaveSaga(context.Background(), recent))

	p := NewPurger(PurgerConfig{RetentionDays: 7}, service, lock.NewMemoryLock(), nil)

	purged := p.RunOnce(context.Background())
	assert.EqualValues(t, 1, purged)

	_, err := store.GetSaga(context.Background(), old.ID)
	assert.ErrorIs(t, err, saga.ErrSagaNotFound)
	_, err = store.GetSaga(context.Background(), recent.ID)
	assert.NoError(t, err)
}

func TestPurger_SkipsWhenLockHeld(t *testing.T) {
	store := storage.NewMemoryStore()
	service := saga.NewService(store)

	old := &saga.Saga{ID: uuid.NewString(), SagaName: "PEN_REQUEST_COMPLETE_SAGA", Status: saga.StatusCompleted}
	old.CreatedAt = time.Now().AddDate(0, 0, -10)
	saveSagaAt(t, store, old, old.CreatedAt)

	l := lock.NewMemoryLock()
	held, err := l.Acquire(context.Background(), "sagaflow:purger", time.Minute)
	require.NoError(t, err)
	require.True(t, held)

	purged := NewPurger(PurgerConfig{}, service, l, nil).RunOnce(context.Background())
	assert.Zero(t, purged)

	_, err = store.GetSaga(context.Background(), old.ID)
	assert.NoError(t, err)
}
