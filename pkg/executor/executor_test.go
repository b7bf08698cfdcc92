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

package executor_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/eosfusex/cachecore/pkg/executor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolRunsSubmittedWork(t *testing.T) {
	p := executor.New(4)
	var n int64

	for i := 0; i < 20; i++ {
		require.NoError(t, p.Submit(context.Background(), func() {
			atomic.AddInt64(&n, 1)
		}))
	}

	assert.Eventually(t, func() bool { return atomic.LoadInt64(&n) == 20 }, time.Second, time.Millisecond)
}

func TestFutureResolveIsOnceAndWaitReturnsValue(t *testing.T) {
	f := executor.NewFuture[int]()

	go func() {
		f.Resolve(42, nil)
		f.Resolve(99, nil) // second resolve is a no-op
	}()

	v, err := f.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestFutureWaitRespectsContextCancellation(t *testing.T) {
	f := executor.NewFuture[int]()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := f.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCloseWaitsForOutstandingWorkThenRejectsSubmit(t *testing.T) {
	p := executor.New(2)
	started := make(chan struct{})
	release := make(chan struct{})
	var finished atomic.Bool

	require.NoError(t, p.Submit(context.Background(), func() {
		close(started)
		<-release
		finished.Store(true)
	}))

	<-started
	done := make(chan struct{})
	go func() {
		require.NoError(t, p.Close())
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("Close returned before the in-flight task finished")
	case <-time.After(20 * time.Millisecond):
	}
	close(release)
	<-done

	assert.True(t, finished.Load())
	assert.Error(t, p.Submit(context.Background(), func() {}))
}

func TestCloseIsIdempotent(t *testing.T) {
	p := executor.New(1)
	require.NoError(t, p.Close())
	require.NoError(t, p.Close())
}
