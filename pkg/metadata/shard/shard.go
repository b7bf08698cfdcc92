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

// Package shard implements MetadataProviderShard: one partition of the
// metadata cache, owning its own LRU, in-flight request coalescing and
// fetcher/backend connection.
package shard

import (
	"container/list"
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/eosfusex/cachecore/pkg/apperror"
	"github.com/eosfusex/cachecore/pkg/executor"
	"github.com/eosfusex/cachecore/pkg/metadata/fetcher"
	"github.com/eosfusex/cachecore/pkg/model"
)

// entry is one LRU slot. A tombstoned entry is kept in the index so a
// lookup can return not-found without re-fetching, but carries no data.
type entry struct {
	key       uint64
	file      *model.FileMetadata
	container *model.ContainerMetadata
	tombstone bool
}

// Shard is one partition of the metadata cache. All exported methods are
// safe for concurrent use.
type Shard struct {
	fetcher  *fetcher.Fetcher
	executor *executor.Pool

	group    singleflight.Group
	inFlight atomic.Int64

	mu       sync.Mutex
	capacity int
	order    *list.List
	byKey    map[uint64]*list.Element
}

// New creates a Shard with room for capacity live entries, fetching
// through f and hopping sub-request continuations onto pool.
func New(f *fetcher.Fetcher, pool *executor.Pool, capacity int) *Shard {
	if capacity <= 0 {
		capacity = 1
	}
	return &Shard{
		fetcher:  f,
		executor: pool,
		capacity: capacity,
		order:    list.New(),
		byKey:    make(map[uint64]*list.Element),
	}
}

func fileCacheKey(id model.FileIdentifier) uint64 { return uint64(id) << 1 }
func containerCacheKey(id model.ContainerIdentifier) uint64 { return uint64(id)<<1 | 1 }

func (s *Shard) touchLocked(key uint64, e *entry) {
	if el, ok := s.byKey[key]; ok {
		el.Value = e
		s.order.MoveToFront(el)
		return
	}
	el := s.order.PushFront(e)
	s.byKey[key] = el
	for s.order.Len() > s.capacity {
		oldest := s.order.Back()
		if oldest == nil {
			break
		}
		s.order.Remove(oldest)
		delete(s.byKey, oldest.Value.(*entry).key)
	}
}

func (s *Shard) lookupLocked(key uint64) (*entry, bool) {
	el, ok := s.byKey[key]
	if !ok {
		return nil, false
	}
	s.order.MoveToFront(el)
	return el.Value.(*entry), true
}

// GetFile returns a cached or freshly fetched file's metadata. Concurrent
// callers for the same id share one in-flight fetch and observe the
// identical *model.FileMetadata pointer.
func (s *Shard) GetFile(ctx context.Context, id model.FileIdentifier) (*model.FileMetadata, error) {
	if id.IsZero() {
		return nil, apperror.New(apperror.NotFound, "shard.GetFile", nil)
	}
	key := fileCacheKey(id)

	s.mu.Lock()
	if e, ok := s.lookupLocked(key); ok {
		s.mu.Unlock()
		if e.tombstone {
			return nil, apperror.New(apperror.NotFound, "shard.GetFile", nil)
		}
		return e.file, nil
	}
	s.mu.Unlock()

	s.inFlight.Add(1)
	defer s.inFlight.Add(-1)

	v, err, _ := s.group.Do(groupKey("file", key), func() (interface{}, error) {
		meta, err := s.fetcher.GetFile(ctx, id)
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		s.touchLocked(key, &entry{key: key, file: meta})
		s.mu.Unlock()
		return meta, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*model.FileMetadata), nil
}

// RetrieveContainer fetches a container's own record plus its file and
// container child maps in parallel on the shard's executor, then combines
// them into one ContainerMetadata, inserts it into the LRU and returns it.
func (s *Shard) RetrieveContainer(ctx context.Context, id model.ContainerIdentifier) (*model.ContainerMetadata, error) {
	if id.IsZero() {
		return nil, apperror.New(apperror.NotFound, "shard.RetrieveContainer", nil)
	}
	key := containerCacheKey(id)

	s.mu.Lock()
	if e, ok := s.lookupLocked(key); ok {
		s.mu.Unlock()
		if e.tombstone {
			return nil, apperror.New(apperror.NotFound, "shard.RetrieveContainer", nil)
		}
		return e.container, nil
	}
	s.mu.Unlock()

	s.inFlight.Add(1)
	defer s.inFlight.Add(-1)

	v, err, _ := s.group.Do(groupKey("container", key), func() (interface{}, error) {
		return s.fetchContainerParallel(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	return v.(*model.ContainerMetadata), nil
}

func (s *Shard) fetchContainerParallel(ctx context.Context, id model.ContainerIdentifier) (*model.ContainerMetadata, error) {
	type result struct {
		meta  *model.ContainerMetadata
		files map[string]model.FileIdentifier
		dirs  map[string]model.ContainerIdentifier
		errs  [3]error
	}
	var res result
	var wg sync.WaitGroup
	wg.Add(3)

	submit := func(i int, fn func() error) {
		err := s.executor.Submit(ctx, func() {
			defer wg.Done()
			res.errs[i] = fn()
		})
		if err != nil {
			res.errs[i] = err
			wg.Done()
		}
	}

	submit(0, func() error {
		meta, err := s.fetcher.GetContainer(ctx, id)
		if err != nil {
			return err
		}
		res.meta = meta
		return nil
	})
	submit(1, func() error {
		m, err := s.fetcher.GetFileMap(ctx, id)
		if err != nil {
			return err
		}
		res.files = m
		return nil
	})
	submit(2, func() error {
		m, err := s.fetcher.GetContainerMap(ctx, id)
		if err != nil {
			return err
		}
		res.dirs = m
		return nil
	})

	wg.Wait()
	for _, err := range res.errs {
		if err != nil {
			return nil, err
		}
	}

	combined := res.meta.Clone()
	combined.Files = res.files
	combined.Containers = res.dirs

	s.mu.Lock()
	s.touchLocked(containerCacheKey(id), &entry{key: containerCacheKey(id), container: combined})
	s.mu.Unlock()

	return combined, nil
}

// InsertFile places a locally created file's metadata directly into the
// LRU, skipping the backend.
func (s *Shard) InsertFile(meta *model.FileMetadata) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touchLocked(fileCacheKey(meta.ID), &entry{key: fileCacheKey(meta.ID), file: meta})
}

// InsertContainer places a locally created container's metadata directly
// into the LRU, skipping the backend.
func (s *Shard) InsertContainer(meta *model.ContainerMetadata) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touchLocked(containerCacheKey(meta.ID), &entry{key: containerCacheKey(meta.ID), container: meta})
}

// DropCachedFile removes a file's entry outright, rather than tombstoning
// it; used when a caller already holds authoritative newer data.
func (s *Shard) DropCachedFile(id model.FileIdentifier) {
	s.removeLocked(fileCacheKey(id))
}

// DropCachedContainer removes a container's entry outright.
func (s *Shard) DropCachedContainer(id model.ContainerIdentifier) {
	s.removeLocked(containerCacheKey(id))
}

// TombstoneFile marks a file as deleted so lookups return not-found
// instead of a stale cached object, without losing the LRU slot
// immediately.
func (s *Shard) TombstoneFile(id model.FileIdentifier) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touchLocked(fileCacheKey(id), &entry{key: fileCacheKey(id), tombstone: true})
}

// TombstoneContainer marks a container as deleted.
func (s *Shard) TombstoneContainer(id model.ContainerIdentifier) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touchLocked(containerCacheKey(id), &entry{key: containerCacheKey(id), tombstone: true})
}

func (s *Shard) removeLocked(key uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	el, ok := s.byKey[key]
	if !ok {
		return
	}
	s.order.Remove(el)
	delete(s.byKey, key)
}

// Stats reports cache occupancy, capacity and in-flight request count.
type Stats struct {
	Occupancy int
	Capacity  int
	InFlight  int
}

// Stats returns a snapshot of the shard's cache and coalescing state.
func (s *Shard) Stats() Stats {
	s.mu.Lock()
	occ := s.order.Len()
	capacity := s.capacity
	s.mu.Unlock()
	return Stats{Occupancy: occ, Capacity: capacity, InFlight: int(s.inFlight.Load())}
}

func groupKey(kind string, key uint64) string {
	return fmt.Sprintf("%s:%d", kind, key)
}
