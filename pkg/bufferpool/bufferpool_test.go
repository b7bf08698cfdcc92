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

package bufferpool_test

import (
	"context"
	"testing"
	"time"

	"github.com/eosfusex/cachecore/pkg/bufferpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetReturnsZeroedBufferOfRequestedSize(t *testing.T) {
	p := bufferpool.New(bufferpool.Options{MaxInflightBytes: 1024, MaxInflightChunks: 4, GraceTimeout: time.Second, GraceWindow: time.Second})

	buf, ok, err := p.Get(context.Background(), 16, true)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, buf, 16)
	for _, b := range buf {
		assert.Zero(t, b)
	}
}

func TestPutRecyclesBuffer(t *testing.T) {
	p := bufferpool.New(bufferpool.Options{MaxInflightBytes: 1024, MaxInflightChunks: 4, GraceTimeout: time.Second, GraceWindow: time.Second})

	buf, _, err := p.Get(context.Background(), 16, true)
	require.NoError(t, err)
	buf[0] = 0xFF
	p.Put(buf)

	stats := p.Stats()
	assert.Equal(t, int64(0), stats.InflightBytes)
	assert.Equal(t, 1, stats.FreeBuffers)

	buf2, _, err := p.Get(context.Background(), 16, true)
	require.NoError(t, err)
	assert.Equal(t, byte(0), buf2[0], "reused buffer must come back zeroed")
}

func TestNonBlockingGetFailsWhenAtCapacity(t *testing.T) {
	p := bufferpool.New(bufferpool.Options{MaxInflightBytes: 16, MaxInflightChunks: 4, GraceTimeout: time.Second, GraceWindow: time.Second})

	_, ok, err := p.Get(context.Background(), 16, false)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = p.Get(context.Background(), 16, false)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBlockingGetUnblocksAfterPut(t *testing.T) {
	p := bufferpool.New(bufferpool.Options{MaxInflightBytes: 16, MaxInflightChunks: 4, GraceTimeout: time.Second, GraceWindow: time.Second})

	first, _, err := p.Get(context.Background(), 16, true)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, ok, err := p.Get(context.Background(), 16, true)
		assert.NoError(t, err)
		assert.True(t, ok)
	}()

	select {
	case <-done:
		t.Fatal("second Get should not have unblocked yet")
	case <-time.After(150 * time.Millisecond):
	}

	p.Put(first)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("second Get did not unblock after Put")
	}
}

func TestBlockingGetRespectsContextCancellation(t *testing.T) {
	p := bufferpool.New(bufferpool.Options{MaxInflightBytes: 16, MaxInflightChunks: 4, GraceTimeout: time.Second, GraceWindow: time.Second})
	_, _, err := p.Get(context.Background(), 16, true)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, ok, err := p.Get(ctx, 16, true)
	assert.False(t, ok)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestGraceWindowOpensExtraHeadroomUnderSustainedPressure(t *testing.T) {
	p := bufferpool.New(bufferpool.Options{MaxInflightBytes: 16, MaxInflightChunks: 4, GraceTimeout: 50 * time.Millisecond, GraceWindow: time.Second})

	_, _, err := p.Get(context.Background(), 16, true)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	buf, ok, err := p.Get(ctx, 16, true)
	require.NoError(t, err)
	assert.True(t, ok, "grace window should have allowed a second in-flight buffer")
	assert.NotNil(t, buf)
}
