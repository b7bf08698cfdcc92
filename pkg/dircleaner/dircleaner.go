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

// Package dircleaner keeps a disk cache directory tree under byte and
// file-count budgets. It tracks every file it knows about sorted by
// modification time, and evicts the oldest ones first once the tree grows
// past its caps; a background leveler additionally wipes the tree outright
// when the underlying filesystem's free space runs critically low.
package dircleaner

import (
	"container/list"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/eosfusex/cachecore/clock"
	"github.com/eosfusex/cachecore/pkg/logger"
	"golang.org/x/sys/unix"
)

const (
	scanInterval       = 15 * time.Second
	freeSpaceThreshold = 0.05
	forcedScanInterval = 60 * time.Minute
)

// ExternalHint lets a caller (the journal cache, for instance, which keeps
// its own on-disk tree outside the DirCleaner's direct bookkeeping) report
// space it knows is in use, so Trim counts it against SizeCap and FileCap
// without a full directory scan. The leveler's free-space check does not
// include it.
type ExternalHint struct {
	Files int64
	Bytes int64
}

type entry struct {
	path string
	size int64
}

// DirCleaner tracks files under Root and evicts least-recently-touched
// ones to keep the tree within its byte and file-count caps.
type DirCleaner struct {
	Root string

	// Clock stamps ScanAll completions and decides when a forced rescan is
	// due. Tests substitute a clock.SimulatedClock to advance time without
	// sleeping; a live process gets clock.RealClock.
	Clock clock.Clock

	// SizeCap and FileCap bound the tree Trim keeps it under, counting
	// both the files DirCleaner tracks directly and any ExternalHint
	// reported by another subsystem sharing the same root. Zero means
	// unbounded.
	SizeCap int64
	FileCap int64

	mu         sync.Mutex
	order      *list.List // least-recently-touched at front
	byPath     map[string]*list.Element
	totalBytes int64
	external   ExternalHint
	lastFull   time.Time
	stopCh     chan struct{}
	stopOnce   sync.Once
	wg         sync.WaitGroup
}

// New creates a DirCleaner rooted at root. Call ScanAll once to populate it
// from disk, then StartLeveler to run the background eviction loop.
func New(root string) *DirCleaner {
	return &DirCleaner{
		Root:   root,
		Clock:  clock.RealClock{},
		order:  list.New(),
		byPath: make(map[string]*list.Element),
		stopCh: make(chan struct{}),
	}
}

// ScanAll walks Root and registers every file whose name has the given
// suffix (empty suffix matches everything), ordered by modification time.
func (d *DirCleaner) ScanAll(suffix string) error {
	var found []entry
	mtimes := make(map[string]time.Time)
	err := filepath.Walk(d.Root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if info.IsDir() {
			return nil
		}
		if suffix != "" && filepath.Ext(path) != suffix {
			return nil
		}
		found = append(found, entry{path: path, size: info.Size()})
		mtimes[path] = info.ModTime()
		return nil
	})
	if err != nil {
		return err
	}
	sort.SliceStable(found, func(i, j int) bool {
		return mtimes[found[i].path].Before(mtimes[found[j].path])
	})

	d.mu.Lock()
	defer d.mu.Unlock()
	d.order.Init()
	d.byPath = make(map[string]*list.Element)
	d.totalBytes = 0
	for _, e := range found {
		el := d.order.PushBack(e)
		d.byPath[e.path] = el
		d.totalBytes += e.size
	}
	d.lastFull = d.Clock.Now()
	return nil
}

// Touch moves path to the most-recently-used end, registering it if it
// wasn't already known.
func (d *DirCleaner) Touch(path string, size int64) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if el, ok := d.byPath[path]; ok {
		e := el.Value.(entry)
		d.totalBytes += size - e.size
		el.Value = entry{path: path, size: size}
		d.order.MoveToBack(el)
		return
	}
	el := d.order.PushBack(entry{path: path, size: size})
	d.byPath[path] = el
	d.totalBytes += size
}

// Forget drops path from bookkeeping without touching the filesystem,
// used after a caller has already removed the file itself.
func (d *DirCleaner) Forget(path string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.removeLocked(path)
}

func (d *DirCleaner) removeLocked(path string) {
	el, ok := d.byPath[path]
	if !ok {
		return
	}
	e := el.Value.(entry)
	d.totalBytes -= e.size
	d.order.Remove(el)
	delete(d.byPath, path)
}

// SetExternalHint records space known to be used outside the DirCleaner's
// own bookkeeping; Trim adds it to the tracked totals when checking
// SizeCap and FileCap.
func (d *DirCleaner) SetExternalHint(h ExternalHint) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.external = h
}

func (d *DirCleaner) freeRatio() (float64, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(d.Root, &st); err != nil {
		return 0, err
	}
	total := st.Blocks * uint64(st.Bsize)
	free := st.Bavail * uint64(st.Bsize)
	if total == 0 {
		return 1, nil
	}
	return float64(free) / float64(total), nil
}

// Trim evicts least-recently-touched files while total size exceeds
// SizeCap or total file count exceeds FileCap (ExternalHint counted
// toward both), or unconditionally until there is nothing left to evict
// if force is true. A zero cap is treated as unbounded.
func (d *DirCleaner) Trim(force bool) (evicted int, freedBytes int64, err error) {
	for {
		d.mu.Lock()
		if !force && !d.overCapLocked() {
			d.mu.Unlock()
			return evicted, freedBytes, nil
		}

		front := d.order.Front()
		if front == nil {
			d.mu.Unlock()
			return evicted, freedBytes, nil
		}
		e := front.Value.(entry)
		d.order.Remove(front)
		delete(d.byPath, e.path)
		d.totalBytes -= e.size
		d.mu.Unlock()

		if rmErr := os.Remove(e.path); rmErr != nil && !os.IsNotExist(rmErr) {
			logger.Warnf("dircleaner: failed to remove %s: %v", e.path, rmErr)
			continue
		}
		evicted++
		freedBytes += e.size
	}
}

// overCapLocked reports whether the tree, combined with any external
// hint, is over SizeCap or FileCap. Must be called with d.mu held.
func (d *DirCleaner) overCapLocked() bool {
	if d.SizeCap > 0 && d.totalBytes+d.external.Bytes > d.SizeCap {
		return true
	}
	if d.FileCap > 0 && int64(d.order.Len())+d.external.Files > d.FileCap {
		return true
	}
	return false
}

// CleanAll removes every file it knows about, regardless of free space
// pressure, used for startup cleanup of abandoned cache trees.
func (d *DirCleaner) CleanAll(suffix string) error {
	if err := d.ScanAll(suffix); err != nil {
		return err
	}
	_, _, err := d.Trim(true)
	return err
}

// StartLeveler runs the background loop: every scanInterval it stats the
// filesystem and, if free space has dropped below 5% of total, wipes the
// tree with CleanAll; otherwise it trims to the configured caps. Every
// forcedScanInterval it performs a full ScanAll first to correct any drift
// in bookkeeping.
func (d *DirCleaner) StartLeveler(suffix string) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ticker := time.NewTicker(scanInterval)
		defer ticker.Stop()
		for {
			select {
			case <-d.stopCh:
				return
			case <-ticker.C:
				d.mu.Lock()
				needsFullScan := d.Clock.Now().Sub(d.lastFull) >= forcedScanInterval
				d.mu.Unlock()
				if needsFullScan {
					if err := d.ScanAll(suffix); err != nil {
						logger.Warnf("dircleaner: forced rescan of %s failed: %v", d.Root, err)
					}
				}

				ratio, ferr := d.freeRatio()
				switch {
				case ferr != nil:
					logger.Warnf("dircleaner: free-space check of %s failed: %v", d.Root, ferr)
				case ratio < freeSpaceThreshold:
					if err := d.CleanAll(suffix); err != nil {
						logger.Warnf("dircleaner: clean-all of %s failed: %v", d.Root, err)
					}
				default:
					if _, _, err := d.Trim(false); err != nil {
						logger.Warnf("dircleaner: trim of %s failed: %v", d.Root, err)
					}
				}
			}
		}
	}()
}

// Stop halts the background leveler loop and waits for it to exit.
func (d *DirCleaner) Stop() {
	d.stopOnce.Do(func() { close(d.stopCh) })
	d.wg.Wait()
}

// Stats reports the DirCleaner's current bookkeeping totals.
type Stats struct {
	Files      int
	Bytes      int64
	External   ExternalHint
}

// Stats returns a snapshot of current totals, including the external hint.
func (d *DirCleaner) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return Stats{Files: d.order.Len(), Bytes: d.totalBytes, External: d.external}
}
