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

// Package memcache is the in-memory variant of the per-file data cache: a
// growable byte buffer with sparse-file read/write semantics, plus the
// xattr map every cache variant carries alongside file content.
package memcache

import (
	"sync"

	"github.com/eosfusex/cachecore/pkg/filecache"
)

var _ filecache.DataCache = (*Cache)(nil)

// Cache is a per-file random-access byte buffer with sparse-file growth
// semantics: writing past the end extends the buffer with zero fill,
// reading past the end returns zero bytes without error. Concurrent
// readers are allowed; a writer excludes all other readers and writers
// for the duration of its call.
type Cache struct {
	mu    sync.RWMutex
	buf   []byte
	xattr map[string]string
}

// New returns an empty memory cache.
func New() *Cache {
	return &Cache{xattr: make(map[string]string)}
}

// Attach is a no-op for the memory variant: there is no underlying
// resource to open or ref-count.
func (c *Cache) Attach() error { return nil }

// Detach is a no-op for the memory variant.
func (c *Cache) Detach() error { return nil }

// Pread copies up to len(buf) bytes starting at offset into buf and
// returns the number of bytes copied. Reading past the end of the stored
// content is not an error; it simply yields fewer bytes (zero past the
// true end rather than being clamped to a "hole", since the in-memory
// buffer has no concept of sparse holes beyond what Pwrite already
// zero-filled).
func (c *Cache) Pread(buf []byte, offset int64) (int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if offset < 0 || offset >= int64(len(c.buf)) {
		return 0, nil
	}
	n := copy(buf, c.buf[offset:])
	return n, nil
}

// Pwrite writes buf at offset, growing and zero-filling as needed so the
// buffer behaves like a sparse file.
func (c *Cache) Pwrite(buf []byte, offset int64) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	end := offset + int64(len(buf))
	if end > int64(len(c.buf)) {
		grown := make([]byte, end)
		copy(grown, c.buf)
		c.buf = grown
	}
	copy(c.buf[offset:end], buf)
	return len(buf), nil
}

// Truncate shrinks or extends the buffer to exactly n bytes, zero-filling
// any newly exposed region on growth.
func (c *Cache) Truncate(n int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case n < int64(len(c.buf)):
		c.buf = c.buf[:n]
	case n > int64(len(c.buf)):
		grown := make([]byte, n)
		copy(grown, c.buf)
		c.buf = grown
	}
	return nil
}

// Size returns the current buffer length.
func (c *Cache) Size() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return int64(len(c.buf))
}

// GetXattr returns the value and presence of a single extended attribute.
func (c *Cache) GetXattr(key string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.xattr[key]
	return v, ok
}

// SetXattr sets a single extended attribute.
func (c *Cache) SetXattr(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.xattr[key] = value
}

// RemoveXattr deletes a single extended attribute, if present.
func (c *Cache) RemoveXattr(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.xattr, key)
}

// ListXattr returns a snapshot of every extended attribute key and value.
func (c *Cache) ListXattr() map[string]string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]string, len(c.xattr))
	for k, v := range c.xattr {
		out[k] = v
	}
	return out
}
