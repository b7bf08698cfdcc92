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

package journal

import (
	"context"
	"testing"
	"time"

	"github.com/eosfusex/cachecore/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingNotifier struct {
	created int
	deleted int64
}

func (n *countingNotifier) JournalCreated()           { n.created++ }
func (n *countingNotifier) JournalDeleted(b int64)     { n.deleted += b }

func newAttached(t *testing.T, cap int64) *Cache {
	t.Helper()
	dir := t.TempDir()
	notifier := &countingNotifier{}
	c := New(dir, model.FileIdentifier(1), cap, notifier)
	require.NoError(t, c.Attach())
	t.Cleanup(func() { c.Close(false) })
	return c
}

func TestAttachOnFreshFileNotifiesCreated(t *testing.T) {
	dir := t.TempDir()
	notifier := &countingNotifier{}
	c := New(dir, model.FileIdentifier(1), 0, notifier)
	require.NoError(t, c.Attach())
	assert.Equal(t, 1, notifier.created)
}

func TestPwriteThenPreadFillsExactRange(t *testing.T) {
	c := newAttached(t, 0)

	n, err := c.Pwrite([]byte("hello"), 10)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	buf := make([]byte, 5)
	filled, err := c.Pread(buf, 10)
	require.NoError(t, err)
	require.Len(t, filled, 1)
	assert.Equal(t, int64(10), filled[0].Offset)
	assert.Equal(t, int64(5), filled[0].Length)
	assert.Equal(t, "hello", string(buf))
}

func TestPreadUncoveredRangeReportsNoFill(t *testing.T) {
	c := newAttached(t, 0)

	buf := make([]byte, 10)
	filled, err := c.Pread(buf, 0)
	require.NoError(t, err)
	assert.Empty(t, filled)
}

func TestOverlappingPwriteOverwritesInPlace(t *testing.T) {
	c := newAttached(t, 0)

	_, err := c.Pwrite([]byte("aaaaaaaaaa"), 0)
	require.NoError(t, err)
	_, err = c.Pwrite([]byte("bb"), 4)
	require.NoError(t, err)

	buf := make([]byte, 10)
	filled, err := c.Pread(buf, 0)
	require.NoError(t, err)
	assert.Equal(t, "aaaabbaaaa", string(buf))
	// The overlapping write should not have grown the tree by adding a
	// new disjoint interval on top of the original one.
	assert.Len(t, filled, 1)
}

func TestPwriteSpanningTwoExistingEntriesFillsGapBetween(t *testing.T) {
	c := newAttached(t, 0)

	_, err := c.Pwrite([]byte("AAA"), 0)
	require.NoError(t, err)
	_, err = c.Pwrite([]byte("BBB"), 10)
	require.NoError(t, err)

	_, err = c.Pwrite([]byte("0123456789012"), 0)
	require.NoError(t, err)

	buf := make([]byte, 13)
	filled, err := c.Pread(buf, 0)
	require.NoError(t, err)
	assert.Equal(t, "0123456789012", string(buf))
	assert.NotEmpty(t, filled)
}

func TestTruncatePositiveClampsReads(t *testing.T) {
	c := newAttached(t, 0)
	_, err := c.Pwrite([]byte("0123456789"), 0)
	require.NoError(t, err)

	require.NoError(t, c.Truncate(5, false))

	buf := make([]byte, 10)
	filled, err := c.Pread(buf, 0)
	require.NoError(t, err)
	require.Len(t, filled, 1)
	assert.Equal(t, int64(5), filled[0].Length)
}

func TestTruncateZeroWithoutInvalidateIsDistinctFromInvalidate(t *testing.T) {
	c := newAttached(t, 0)
	_, err := c.Pwrite([]byte("data"), 0)
	require.NoError(t, err)

	require.NoError(t, c.Truncate(0, false))
	buf := make([]byte, 4)
	filled, err := c.Pread(buf, 0)
	require.NoError(t, err)
	assert.Empty(t, filled, "truncate_size=0 means reads see nothing, but the journal entry is still on disk")

	require.NoError(t, c.Truncate(0, true))
	assert.Equal(t, int64(0), c.Size())
}

func TestPwriteBlocksAtCapAndUnblocksAfterRemoteSync(t *testing.T) {
	c := newAttached(t, 8)

	_, err := c.Pwrite([]byte("12345678"), 0)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := c.Pwrite([]byte("x"), 100)
		assert.NoError(t, err)
	}()

	select {
	case <-done:
		t.Fatal("pwrite should have blocked on the per-file cap")
	case <-time.After(100 * time.Millisecond):
	}

	require.NoError(t, c.RemoteSync(context.Background(), fakeSyncer{}))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("pwrite did not unblock after RemoteSync drained the journal")
	}
}

type fakeSyncer struct{}

func (fakeSyncer) WriteAt(ctx context.Context, offset int64, payload []byte) error { return nil }

func TestRemoteSyncClearsJournalAndTruncatesFile(t *testing.T) {
	c := newAttached(t, 0)
	_, err := c.Pwrite([]byte("abcdef"), 0)
	require.NoError(t, err)

	require.NoError(t, c.RemoteSync(context.Background(), fakeSyncer{}))
	assert.Equal(t, int64(0), c.Size())

	buf := make([]byte, 6)
	filled, err := c.Pread(buf, 0)
	require.NoError(t, err)
	assert.Empty(t, filled)
}

type fakeAsyncWriter struct {
	writes     []int64
	truncated  *int64
}

func (w *fakeAsyncWriter) ScheduleWrite(ctx context.Context, offset int64, payload []byte) error {
	w.writes = append(w.writes, offset)
	return nil
}

func (w *fakeAsyncWriter) ScheduleTruncate(ctx context.Context, size int64) error {
	w.truncated = &size
	return nil
}

func TestRemoteSyncAsyncSchedulesEachEntryAndPendingTruncate(t *testing.T) {
	c := newAttached(t, 0)
	_, err := c.Pwrite([]byte("AAA"), 0)
	require.NoError(t, err)
	_, err = c.Pwrite([]byte("BBB"), 10)
	require.NoError(t, err)
	require.NoError(t, c.Truncate(20, false))

	w := &fakeAsyncWriter{}
	require.NoError(t, c.RemoteSyncAsync(context.Background(), w))

	assert.Len(t, w.writes, 2)
	require.NotNil(t, w.truncated)
	assert.Equal(t, int64(20), *w.truncated)
}

func TestAttachReplaysExistingEntriesOnReopen(t *testing.T) {
	dir := t.TempDir()
	c1 := New(dir, model.FileIdentifier(7), 0, nil)
	require.NoError(t, c1.Attach())
	_, err := c1.Pwrite([]byte("persisted"), 0)
	require.NoError(t, err)
	require.NoError(t, c1.Close(false))

	c2 := New(dir, model.FileIdentifier(7), 0, nil)
	require.NoError(t, c2.Attach())
	buf := make([]byte, 9)
	filled, err := c2.Pread(buf, 0)
	require.NoError(t, err)
	require.NotEmpty(t, filled)
	assert.Equal(t, "persisted", string(buf))
}

func TestCloseWithRemoveNotifiesDeletedBytes(t *testing.T) {
	dir := t.TempDir()
	notifier := &countingNotifier{}
	c := New(dir, model.FileIdentifier(9), 0, notifier)
	require.NoError(t, c.Attach())
	_, err := c.Pwrite([]byte("abc"), 0)
	require.NoError(t, err)

	require.NoError(t, c.Close(true))
	assert.Positive(t, notifier.deleted)
}
