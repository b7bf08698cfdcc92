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

// Package handler owns the singleton table of open IoHandles, keyed by
// file id, and the DiskCache/JournalCache subsystems (directory roots,
// leveling, optional startup wipe) that back them.
package handler

import (
	"os"
	"sync"

	"github.com/eosfusex/cachecore/cfg"
	"github.com/eosfusex/cachecore/pkg/dircleaner"
	"github.com/eosfusex/cachecore/pkg/filecache"
	"github.com/eosfusex/cachecore/pkg/filecache/diskcache"
	"github.com/eosfusex/cachecore/pkg/filecache/iohandle"
	"github.com/eosfusex/cachecore/pkg/filecache/journal"
	"github.com/eosfusex/cachecore/pkg/filecache/memcache"
	"github.com/eosfusex/cachecore/pkg/model"
)

// Handler is the per-process singleton owning every open file's IoHandle.
type Handler struct {
	cfg cfg.Config

	cacheCleaner   *dircleaner.DirCleaner
	journalCleaner *dircleaner.DirCleaner

	mu      sync.Mutex
	refs    map[model.FileIdentifier]int
	handles map[model.FileIdentifier]*iohandle.Handle
}

// New constructs a Handler from c, wiring the DirCleaners for the data
// cache and journal roots. If c.Cache.CleanOnStartup or
// c.Journal.CleanOnStartup is set, that root directory is removed
// entirely before the handler is returned.
func New(c cfg.Config) (*Handler, error) {
	h := &Handler{
		cfg:     c,
		refs:    make(map[model.FileIdentifier]int),
		handles: make(map[model.FileIdentifier]*iohandle.Handle),
	}

	if c.Cache.Type == cfg.CacheTypeDisk && c.Cache.Location != "" {
		if c.Cache.CleanOnStartup {
			if err := os.RemoveAll(c.Cache.Location); err != nil {
				return nil, err
			}
		}
		h.cacheCleaner = dircleaner.New(c.Cache.Location)
		h.cacheCleaner.SizeCap = c.Cache.TotalBytes
		h.cacheCleaner.FileCap = c.Cache.TotalInodes
		if err := h.cacheCleaner.ScanAll(""); err != nil {
			return nil, err
		}
		h.cacheCleaner.StartLeveler("")
	}

	if c.Journal.Location != "" {
		if c.Journal.CleanOnStartup {
			if err := os.RemoveAll(c.Journal.Location); err != nil {
				return nil, err
			}
		}
		h.journalCleaner = dircleaner.New(c.Journal.Location)
		h.journalCleaner.SizeCap = c.Journal.TotalBytes
		h.journalCleaner.FileCap = c.Journal.TotalInodes
		if err := h.journalCleaner.ScanAll(".jc"); err != nil {
			return nil, err
		}
		h.journalCleaner.StartLeveler(".jc")
	}

	return h, nil
}

// journalNotifier adapts a DirCleaner into journal.Notifier.
type journalNotifier struct{ dc *dircleaner.DirCleaner }

func (n journalNotifier) JournalCreated() {
	if n.dc == nil {
		return
	}
	s := n.dc.Stats()
	n.dc.SetExternalHint(dircleaner.ExternalHint{Files: s.External.Files + 1, Bytes: s.External.Bytes})
}

func (n journalNotifier) JournalDeleted(bytes int64) {
	if n.dc == nil {
		return
	}
	s := n.dc.Stats()
	n.dc.SetExternalHint(dircleaner.ExternalHint{Files: s.External.Files - 1, Bytes: s.External.Bytes - bytes})
}

// Get returns the existing handle for ino, or constructs a new one backed
// by the configured data cache variant and, if a journal root is
// configured, a journal cache. Each call increments a reference count;
// callers must call Rm exactly once per Get.
func (h *Handler) Get(ino model.FileIdentifier) (*iohandle.Handle, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if existing, ok := h.handles[ino]; ok {
		h.refs[ino]++
		return existing, nil
	}

	var dc filecache.DataCache
	if h.cfg.Cache.Type == cfg.CacheTypeDisk && h.cfg.Cache.Location != "" {
		dc = diskcache.New(h.cfg.Cache.Location, ino, h.cfg.Cache.PerFileBytes)
	} else {
		dc = memcache.New()
	}

	var j *journal.Cache
	if h.cfg.Journal.Location != "" {
		j = journal.New(h.cfg.Journal.Location, ino, h.cfg.Journal.PerFileBytes, journalNotifier{dc: h.journalCleaner})
	}

	handle := iohandle.New(dc, j)
	h.handles[ino] = handle
	h.refs[ino] = 1
	return handle, nil
}

// Rm releases one reference to ino's handle, removing and closing it once
// the last holder has released.
func (h *Handler) Rm(ino model.FileIdentifier) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.refs[ino]--
	if h.refs[ino] > 0 {
		return nil
	}

	handle, ok := h.handles[ino]
	delete(h.handles, ino)
	delete(h.refs, ino)
	if !ok {
		return nil
	}
	return handle.Close()
}

// Shutdown stops the background DirCleaner levelers. It does not close any
// still-open handles; callers are expected to have released them first.
func (h *Handler) Shutdown() {
	if h.cacheCleaner != nil {
		h.cacheCleaner.Stop()
	}
	if h.journalCleaner != nil {
		h.journalCleaner.Stop()
	}
}
