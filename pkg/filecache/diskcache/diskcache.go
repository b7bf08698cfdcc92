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

// Package diskcache is the on-disk variant of the per-file data cache. It
// stores each file's content under a deterministically bucketed path below
// a configured root, enforces a per-file size cap by silently truncating
// reads and writes at its boundary, and invalidates itself when a stored
// locality cookie no longer matches the one the caller presents.
package diskcache

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/eosfusex/cachecore/pkg/apperror"
	"github.com/eosfusex/cachecore/pkg/filecache"
	"github.com/eosfusex/cachecore/pkg/model"
)

var _ filecache.DataCache = (*Cache)(nil)

// Path returns the bucketed on-disk path for id under root: a two-level
// directory layout of id/10000 and id, both formatted as zero-padded hex,
// so that no directory ends up with an unreasonable number of entries.
func Path(root string, id model.FileIdentifier) string {
	bucket := uint64(id) / 10000
	return filepath.Join(root, fmt.Sprintf("%08x", bucket), fmt.Sprintf("%08X", uint64(id)))
}

// Cache is the on-disk per-file cache. It is safe for concurrent use; a
// write excludes all other readers and writers.
type Cache struct {
	Root     string
	ID       model.FileIdentifier
	PrefixCap int64

	mu       sync.RWMutex
	f        *os.File
	refCount int
	cookie   model.Cookie
}

// New creates a Cache for id rooted at root, bounded to prefixCap bytes.
func New(root string, id model.FileIdentifier, prefixCap int64) *Cache {
	return &Cache{Root: root, ID: id, PrefixCap: prefixCap}
}

// Attach opens (creating if necessary) the backing file and increments the
// reference count. If cookie does not match the one persisted in the
// file's xattr, the file is truncated to zero and the result reports
// Stale; a fresh cookie is stored either way.
func (c *Cache) Attach(cookie model.Cookie) (model.AttachResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.refCount > 0 {
		c.refCount++
		return model.AttachResult{Stale: false}, nil
	}

	path := Path(c.Root, c.ID)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return model.AttachResult{}, apperror.New(apperror.Unknown, "diskcache.Attach.mkdir", err)
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return model.AttachResult{}, apperror.New(apperror.Unknown, "diskcache.Attach.open", err)
	}

	stored, hadCookie, err := readCookieXattr(path)
	if err != nil {
		f.Close()
		return model.AttachResult{}, apperror.New(apperror.Unknown, "diskcache.Attach.cookie", err)
	}

	stale := hadCookie && stored != cookie
	if stale {
		if err := f.Truncate(0); err != nil {
			f.Close()
			return model.AttachResult{}, apperror.New(apperror.Unknown, "diskcache.Attach.truncate", err)
		}
	}
	if err := writeCookieXattr(path, cookie); err != nil {
		f.Close()
		return model.AttachResult{}, apperror.New(apperror.Unknown, "diskcache.Attach.writeCookie", err)
	}

	c.f = f
	c.cookie = cookie
	c.refCount = 1
	return model.AttachResult{Stale: stale}, nil
}

// Detach decrements the reference count, closing the backing file once the
// last holder has released it.
func (c *Cache) Detach() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.refCount == 0 {
		return nil
	}
	c.refCount--
	if c.refCount > 0 {
		return nil
	}
	if c.f == nil {
		return nil
	}
	err := c.f.Close()
	c.f = nil
	if err != nil {
		return apperror.New(apperror.Unknown, "diskcache.Detach", err)
	}
	return nil
}

func (c *Cache) clampToCap(offset int64, want int) int {
	if c.PrefixCap <= 0 {
		return want
	}
	if offset >= c.PrefixCap {
		return 0
	}
	if offset+int64(want) > c.PrefixCap {
		return int(c.PrefixCap - offset)
	}
	return want
}

// Pread reads from the backing file at offset, silently clamping the
// requested length to the prefix cap.
func (c *Cache) Pread(buf []byte, offset int64) (int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.f == nil {
		return 0, apperror.New(apperror.InvalidArgument, "diskcache.Pread", nil)
	}
	n := c.clampToCap(offset, len(buf))
	if n <= 0 {
		return 0, nil
	}
	read, err := c.f.ReadAt(buf[:n], offset)
	if err != nil && read == 0 {
		return 0, apperror.New(apperror.Unknown, "diskcache.Pread", err)
	}
	return read, nil
}

// Pwrite writes to the backing file at offset, silently clamping the
// requested length to the prefix cap.
func (c *Cache) Pwrite(buf []byte, offset int64) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.f == nil {
		return 0, apperror.New(apperror.InvalidArgument, "diskcache.Pwrite", nil)
	}
	n := c.clampToCap(offset, len(buf))
	if n <= 0 {
		return 0, nil
	}
	written, err := c.f.WriteAt(buf[:n], offset)
	if err != nil {
		return written, apperror.New(apperror.Unknown, "diskcache.Pwrite", err)
	}
	return written, nil
}

// Truncate resizes the backing file.
func (c *Cache) Truncate(n int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.f == nil {
		return apperror.New(apperror.InvalidArgument, "diskcache.Truncate", nil)
	}
	if err := c.f.Truncate(n); err != nil {
		return apperror.New(apperror.Unknown, "diskcache.Truncate", err)
	}
	return nil
}

// Size returns the current on-disk file size.
func (c *Cache) Size() (int64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.f == nil {
		return 0, apperror.New(apperror.InvalidArgument, "diskcache.Size", nil)
	}
	st, err := c.f.Stat()
	if err != nil {
		return 0, apperror.New(apperror.Unknown, "diskcache.Size", err)
	}
	return st.Size(), nil
}

// Rescue renames the corrupted backing file aside to dst for offline
// inspection rather than deleting it outright, and closes this cache's
// handle to it.
func (c *Cache) Rescue(dst string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	path := Path(c.Root, c.ID)
	if c.f != nil {
		c.f.Close()
		c.f = nil
	}
	c.refCount = 0
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return apperror.New(apperror.Unknown, "diskcache.Rescue.mkdir", err)
	}
	if err := os.Rename(path, dst); err != nil {
		return apperror.New(apperror.Unknown, "diskcache.Rescue.rename", err)
	}
	return nil
}
