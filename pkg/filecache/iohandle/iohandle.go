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

// Package iohandle composes the local caches and remote proxies a single
// open file needs into one per-inode handle.
package iohandle

import (
	"sync"

	"github.com/eosfusex/cachecore/pkg/filecache"
	"github.com/eosfusex/cachecore/pkg/filecache/journal"
)

// DefaultProxyKey identifies the primary proxy used by foreground
// operations. Other keys name replicas created during recovery.
const DefaultProxyKey = "default"

// Proxy is the minimal surface iohandle needs from a remote file handle;
// pkg/proxy.FileProxy satisfies it.
type Proxy interface {
	Close() error
}

// Handle is the per-inode composite of local caches and remote proxies.
type Handle struct {
	mu sync.RWMutex

	data    filecache.DataCache
	journal *journal.Cache

	readOnly  map[string]Proxy
	readWrite map[string]Proxy
}

// New creates a Handle. data and j may be nil; a Handle with neither
// local cache forces all I/O through a proxy.
func New(data filecache.DataCache, j *journal.Cache) *Handle {
	return &Handle{
		data:      data,
		journal:   j,
		readOnly:  make(map[string]Proxy),
		readWrite: make(map[string]Proxy),
	}
}

// Data returns the handle's data cache, or nil if caches are disabled.
func (h *Handle) Data() filecache.DataCache {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.data
}

// Journal returns the handle's journal cache, or nil if caches are
// disabled or none was configured.
func (h *Handle) Journal() *journal.Cache {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.journal
}

// DisableCaches drops both local caches; subsequent I/O must go through a
// proxy. It does not close the dropped caches — the caller owns their
// lifecycle.
func (h *Handle) DisableCaches() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.data = nil
	h.journal = nil
}

// SetReadOnlyProxy registers a read-only proxy under key, replacing any
// existing one.
func (h *Handle) SetReadOnlyProxy(key string, p Proxy) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.readOnly[key] = p
}

// SetReadWriteProxy registers a read-write proxy under key, replacing any
// existing one.
func (h *Handle) SetReadWriteProxy(key string, p Proxy) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.readWrite[key] = p
}

// ReadOnlyProxy returns the read-only proxy registered under key.
func (h *Handle) ReadOnlyProxy(key string) (Proxy, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	p, ok := h.readOnly[key]
	return p, ok
}

// ReadWriteProxy returns the read-write proxy registered under key.
func (h *Handle) ReadWriteProxy(key string) (Proxy, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	p, ok := h.readWrite[key]
	return p, ok
}

// DefaultReadWriteProxy returns the proxy registered under DefaultProxyKey.
func (h *Handle) DefaultReadWriteProxy() (Proxy, bool) {
	return h.ReadWriteProxy(DefaultProxyKey)
}

// Close closes every registered proxy, collecting the first error
// encountered but attempting every close regardless.
func (h *Handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	var firstErr error
	for _, p := range h.readOnly {
		if err := p.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	for _, p := range h.readWrite {
		if err := p.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if h.journal != nil {
		if err := h.journal.Close(false); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
