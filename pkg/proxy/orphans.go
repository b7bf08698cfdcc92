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

package proxy

import "sync"

// orphanVector holds handlers whose owning proxy has already moved on
// because chunk_timeout elapsed without a callback. It is process-wide,
// not per-proxy, so a proxy can be fully torn down while a late callback
// still has somewhere to land. The slice is goroutine-safe; completed
// handlers are removed from it only when DrainOrphans is called, and
// nothing in this package calls it.
var orphans struct {
	mu    sync.Mutex
	items []*Handler
}

func addOrphan(h *Handler) {
	orphans.mu.Lock()
	orphans.items = append(orphans.items, h)
	orphans.mu.Unlock()
}

// DrainOrphans removes and returns every orphaned handler that has since
// completed, for background bookkeeping (telemetry, pool return) that
// doesn't need to happen inline with the timeout detection itself.
func DrainOrphans() []*Handler {
	orphans.mu.Lock()
	defer orphans.mu.Unlock()

	var remaining []*Handler
	var drained []*Handler
	for _, h := range orphans.items {
		if h.Done() {
			drained = append(drained, h)
		} else {
			remaining = append(remaining, h)
		}
	}
	orphans.items = remaining
	return drained
}

// OrphanCount reports how many handlers are currently parked in the
// process-wide orphan vector, for telemetry.
func OrphanCount() int {
	orphans.mu.Lock()
	defer orphans.mu.Unlock()
	return len(orphans.items)
}
