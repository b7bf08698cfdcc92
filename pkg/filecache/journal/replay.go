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

	"github.com/eosfusex/cachecore/pkg/apperror"
	"github.com/eosfusex/cachecore/pkg/model"
)

// Syncer issues one sequential write to the remote service on behalf of
// RemoteSync. It blocks until the write has completed or failed.
type Syncer interface {
	WriteAt(ctx context.Context, offset int64, payload []byte) error
}

// RemoteSync replays every live entry through syncer, in ascending offset
// order, and only on full success clears the journal and wakes any
// writers blocked on the per-file cap. A failed entry aborts the replay,
// leaving the journal untouched so a later retry can resume from scratch.
func (c *Cache) RemoteSync(ctx context.Context, syncer Syncer) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, iv := range c.tree.All() {
		payload := make([]byte, iv.High-iv.Low)
		if _, err := c.f.ReadAt(payload, iv.Val+model.HeaderLen); err != nil {
			return apperror.New(apperror.Unknown, "journal.RemoteSync.read", err)
		}
		if err := syncer.WriteAt(ctx, iv.Low, payload); err != nil {
			return apperror.New(apperror.TransientRemote, "journal.RemoteSync.write", err)
		}
	}

	c.tree.Clear()
	if err := c.f.Truncate(0); err != nil {
		return apperror.New(apperror.Unknown, "journal.RemoteSync.truncate", err)
	}
	c.fileSize = 0
	c.cachesize = 0
	c.cond.Broadcast()
	return nil
}

// AsyncWriter schedules a write or truncate against a remote proxy without
// blocking for completion; only scheduling failures are reported here.
type AsyncWriter interface {
	ScheduleWrite(ctx context.Context, offset int64, payload []byte) error
	ScheduleTruncate(ctx context.Context, size int64) error
}

// RemoteSyncAsync schedules every live entry as an asynchronous write
// against w, then schedules a pending truncate if one was set, and
// finally clears the tree. Unlike RemoteSync it does not wait for the
// writes to land, so it leaves the journal file itself untouched; the
// proxy's own completion path is responsible for durability.
func (c *Cache) RemoteSyncAsync(ctx context.Context, w AsyncWriter) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, iv := range c.tree.All() {
		payload := make([]byte, iv.High-iv.Low)
		if _, err := c.f.ReadAt(payload, iv.Val+model.HeaderLen); err != nil {
			return apperror.New(apperror.Unknown, "journal.RemoteSyncAsync.read", err)
		}
		if err := w.ScheduleWrite(ctx, iv.Low, payload); err != nil {
			return apperror.New(apperror.TransientRemote, "journal.RemoteSyncAsync.schedule", err)
		}
	}

	if c.truncateValid {
		if err := w.ScheduleTruncate(ctx, c.truncateSize); err != nil {
			return apperror.New(apperror.TransientRemote, "journal.RemoteSyncAsync.scheduleTruncate", err)
		}
	}

	c.tree.Clear()
	return nil
}
