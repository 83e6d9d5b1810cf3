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

// Package saga implements an event-driven orchestration engine for
// long-running business transactions spanning services that communicate over
// asynchronous messaging.
//
// Each saga type registers its transition table once at process start through
// a fluent builder; the resulting Engine advances a saga by exactly one
// registered step per accepted inbound outcome event. The design assumes
// at-least-once delivery and compensates with idempotent step application:
// duplicates are detected by a position check against the statically ordered
// trigger list, the append-only event log is de-duplicated per saga inside
// the store transaction, and sagas in a terminal status never mutate again.
//
// Saga headers and their event logs are durable rows owned exclusively by the
// engine; participants own their own domain data and interact only through
// wire events. Stalled sagas are re-driven from the durable log by the
// reconciliation scheduler, which makes the system self-healing across
// process restarts and horizontal scale-out.
package saga
