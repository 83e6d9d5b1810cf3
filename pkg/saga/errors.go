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
	"errors"
	"fmt"
)

var (
	// ErrSagaNotFound indicates no saga row exists for the given id.
	ErrSagaNotFound = errors.New("saga not found")

	// ErrSagaConflict indicates another saga is already in flight for the
	// same correlation id. Start calls surface this synchronously and no
	// duplicate row is created.
	ErrSagaConflict = errors.New("saga already in flight for correlation id")

	// ErrInvalidPayload indicates the business payload failed start-time
	// validation.
	ErrInvalidPayload = errors.New("invalid saga payload")

	// ErrMissingEventType indicates a wire envelope without an event type.
	ErrMissingEventType = errors.New("event type is required")

	// ErrDuplicateRegistration indicates a step was registered twice for the
	// same trigger pair.
	ErrDuplicateRegistration = errors.New("duplicate step registration")

	// ErrTriggerReused indicates a trigger event type was bound from more
	// than one prior state. Position-based idempotency requires each trigger
	// type to appear at most once per saga graph.
	ErrTriggerReused = errors.New("trigger event type reused across states")

	// ErrNoSteps indicates a registry was built without any registrations.
	ErrNoSteps = errors.New("step registry has no registrations")

	// ErrEngineExists indicates two engines were registered under one saga name.
	ErrEngineExists = errors.New("orchestrator already registered for saga name")

	// ErrEngineNotFound indicates no engine is registered for a saga name.
	ErrEngineNotFound = errors.New("no orchestrator registered for saga name")
)

// StorageError wraps a failed persistence operation with its operation name.
type StorageError struct {
	// Op is the store operation that failed.
	Op string

	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	return fmt.Sprintf("saga storage %s: %v", e.Op, e.Err)
}

// Unwrap exposes the underlying cause for errors.Is / errors.As.
func (e *StorageError) Unwrap() error {
	return e.Err
}

// NewStorageError wraps err as a StorageError for the given operation.
func NewStorageError(op string, err error) error {
	return &StorageError{Op: op, Err: err}
}
