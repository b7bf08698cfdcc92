// Copyright 2024 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package executor is the bounded I/O executor thread pool the concurrency
// model requires: remote-client completion callbacks hop their
// continuations onto this pool so they never run, or block, on a thread
// owned by the backend client.
package executor

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Pool is a bounded executor of continuations. Submit never blocks the
// caller waiting for a free slot beyond ctx's deadline; work queued beyond
// capacity waits for a running task to finish.
type Pool struct {
	sem       *semaphore.Weighted
	workers   int64
	closed    chan struct{}
	closeOnce sync.Once
}

// New creates a pool with the given number of worker slots.
func New(workers int) *Pool {
	if workers <= 0 {
		workers = 1
	}
	return &Pool{
		sem:     semaphore.NewWeighted(int64(workers)),
		workers: int64(workers),
		closed:  make(chan struct{}),
	}
}

// Submit runs fn on the pool, blocking the caller's goroutine (not a
// worker thread) until a slot frees up or ctx is done. This is the hop
// point: a callback arriving on a backend-client-owned thread calls Submit
// with a short-lived context and returns immediately, letting fn run on a
// pool-owned goroutine. Submit on a closed pool returns immediately with
// an error.
func (p *Pool) Submit(ctx context.Context, fn func()) error {
	select {
	case <-p.closed:
		return context.Canceled
	default:
	}
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	go func() {
		defer p.sem.Release(1)
		fn()
	}()
	return nil
}

// Close marks the pool closed and blocks until every outstanding Submit
// has released its slot, i.e. every continuation already running has
// finished. It is idempotent. Callers in pkg/app rely on this to order
// teardown: shards and clients must stop issuing Submit before Close is
// called, or Close may race a final Submit past the closed check.
func (p *Pool) Close() error {
	p.closeOnce.Do(func() {
		close(p.closed)
	})
	if err := p.sem.Acquire(context.Background(), p.workers); err != nil {
		return err
	}
	p.sem.Release(p.workers)
	return nil
}

// Future wraps the result of one asynchronous operation submitted to a
// Pool. It is the coroutine-callback replacement described in the design
// notes: submit returns a Future immediately, and the value is delivered
// once by the continuation.
type Future[T any] struct {
	done chan struct{}
	val  T
	err  error
}

// NewFuture returns an unresolved Future.
func NewFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// Resolve completes the future exactly once. Later calls are no-ops.
func (f *Future[T]) Resolve(val T, err error) {
	select {
	case <-f.done:
		return
	default:
	}
	f.val, f.err = val, err
	close(f.done)
}

// Wait blocks until the future resolves or ctx is done.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Done reports whether the future has resolved, without blocking.
func (f *Future[T]) Done() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}
