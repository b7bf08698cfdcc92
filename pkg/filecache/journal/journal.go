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

// Package journal is the write-ahead log in front of the remote backend:
// every write lands here first, so a crash can replay pending writes and
// so reads observe writes that haven't reached the remote service yet.
//
// On disk it is a sequence of (header, payload) records that only ever
// grows during a session. An in-memory interval tree keyed on user-file
// byte ranges maps each live range back to the journal-file offset of its
// header, so overlapping writes can be folded into existing records
// instead of appending duplicate data forever.
package journal

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/eosfusex/cachecore/pkg/apperror"
	"github.com/eosfusex/cachecore/pkg/interval"
	"github.com/eosfusex/cachecore/pkg/model"
)

const maxAttachRetries = 10

// Notifier receives size/file-count deltas as journal files are created
// and removed, so a shared DirCleaner can throttle without a full rescan.
type Notifier interface {
	JournalCreated()
	JournalDeleted(bytes int64)
}

// FilledRange reports one sub-range of a Pread call that the journal was
// able to satisfy. Bytes outside every FilledRange were left untouched in
// the caller's buffer; the caller must fall back to another tier for them.
type FilledRange struct {
	Offset int64
	Length int64
}

// Cache is the per-file write journal.
type Cache struct {
	Root     string
	ID       model.FileIdentifier
	PerFileCap int64
	Notifier Notifier

	mu            sync.Mutex
	cond          *sync.Cond
	f             *os.File
	fileSize      int64
	cachesize     int64
	tree          *interval.Tree[int64] // value: journal-file offset of the entry's header
	truncateSize  int64
	truncateValid bool
}

// New creates a journal Cache for id rooted at root, bounded to
// perFileCap bytes of live payload.
func New(root string, id model.FileIdentifier, perFileCap int64, notifier Notifier) *Cache {
	c := &Cache{
		Root:       root,
		ID:         id,
		PerFileCap: perFileCap,
		Notifier:   notifier,
		tree:       interval.New[int64](),
	}
	c.cond = sync.NewCond(&c.mu)
	return c
}

// Path returns the on-disk path of the journal file for id. Unlike the
// block cache's id/10000 bucketing, the journal buckets on the file id's
// low 12 bits: the two tiers were intentionally given independent
// directory layouts rather than sharing one scheme.
func Path(root string, id model.FileIdentifier) string {
	return filepath.Join(root, pathBucket(id))
}

func pathBucket(id model.FileIdentifier) string {
	bucket := uint64(id) & 0xFFF
	return filepath.Join(fmt.Sprintf("%03x", bucket), fmt.Sprintf("%08X.jc", uint64(id)))
}

// Attach opens (creating if necessary) the journal file and replays its
// existing headers into the interval tree. Up to maxAttachRetries attempts
// are made in case the directory layout must be recreated, e.g. because a
// directory cleaner swept it out from under us.
func (c *Cache) Attach() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	path := Path(c.Root, c.ID)
	var lastErr error
	for attempt := 0; attempt < maxAttachRetries; attempt++ {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			lastErr = err
			continue
		}
		_, statErr := os.Stat(path)
		isNew := os.IsNotExist(statErr)

		f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
		if err != nil {
			lastErr = err
			continue
		}
		if err := c.loadLocked(f); err != nil {
			f.Close()
			lastErr = err
			continue
		}
		c.f = f
		if isNew && c.Notifier != nil {
			c.Notifier.JournalCreated()
		}
		return nil
	}
	return apperror.New(apperror.Unknown, "journal.Attach", lastErr)
}

func (c *Cache) loadLocked(f *os.File) error {
	c.tree.Clear()
	c.fileSize = 0
	c.cachesize = 0

	header := make([]byte, model.HeaderLen)
	var pos int64
	for {
		n, err := f.ReadAt(header, pos)
		if n < model.HeaderLen {
			break
		}
		if err != nil && n != model.HeaderLen {
			return err
		}
		entry := model.UnmarshalJournalEntry(header)
		headerPos := pos
		c.tree.Insert(int64(entry.Offset), int64(entry.Offset+entry.Size), headerPos)
		c.cachesize += int64(entry.Size)
		pos += model.HeaderLen + int64(entry.Size)
	}
	c.fileSize = pos
	return nil
}

func (c *Cache) capExceeded(additional int64) bool {
	if c.PerFileCap <= 0 {
		return false
	}
	return c.cachesize+additional > c.PerFileCap
}

// Pwrite folds buf into the journal at offset: overlapping live ranges are
// rewritten in place, and the uncovered remainder is appended as new
// records. If doing so would exceed the per-file cap, Pwrite blocks until
// RemoteSync or an invalidating Truncate(0, true) empties the journal.
func (c *Cache) Pwrite(buf []byte, offset int64) (int, error) {
	count := int64(len(buf))
	if count == 0 {
		return 0, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for c.capExceeded(count) {
		c.cond.Wait()
	}

	end := offset + count
	overlaps := c.tree.Query(offset, end)

	for _, iv := range overlaps {
		lo := maxI64(iv.Low, offset)
		hi := minI64(iv.High, end)
		if hi <= lo {
			continue
		}
		payloadStart := lo - iv.Low
		journalPos := iv.Val + model.HeaderLen + payloadStart
		if _, err := c.f.WriteAt(buf[lo-offset:hi-offset], journalPos); err != nil {
			return 0, apperror.New(apperror.Unknown, "journal.Pwrite.overwrite", err)
		}
	}

	cursor := offset
	for _, iv := range overlaps {
		if iv.Low > cursor {
			if err := c.appendLocked(buf[cursor-offset:iv.Low-offset], cursor); err != nil {
				return 0, err
			}
		}
		if iv.High > cursor {
			cursor = minI64(iv.High, end)
		}
	}
	if cursor < end {
		if err := c.appendLocked(buf[cursor-offset:end-offset], cursor); err != nil {
			return 0, err
		}
	}

	if c.truncateValid && c.truncateSize < end {
		c.truncateSize = end
	}

	return int(count), nil
}

func (c *Cache) appendLocked(payload []byte, userOffset int64) error {
	headerPos := c.fileSize
	entry := model.JournalEntry{Offset: uint64(userOffset), Size: uint64(len(payload))}
	if _, err := c.f.WriteAt(entry.Marshal(), headerPos); err != nil {
		return apperror.New(apperror.Unknown, "journal.append.header", err)
	}
	if _, err := c.f.WriteAt(payload, headerPos+model.HeaderLen); err != nil {
		return apperror.New(apperror.Unknown, "journal.append.payload", err)
	}
	c.tree.Insert(userOffset, userOffset+int64(len(payload)), headerPos)
	c.fileSize = headerPos + model.HeaderLen + int64(len(payload))
	c.cachesize += int64(len(payload))
	return nil
}

// Pread copies whatever live ranges overlap [offset, offset+len(buf)) into
// buf and reports which sub-ranges it actually filled. Bytes outside every
// returned FilledRange are left untouched.
func (c *Cache) Pread(buf []byte, offset int64) ([]FilledRange, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	length := int64(len(buf))
	if c.truncateValid {
		if offset >= c.truncateSize {
			return nil, nil
		}
		if offset+length > c.truncateSize {
			length = c.truncateSize - offset
		}
	}
	if length <= 0 {
		return nil, nil
	}

	overlaps := c.tree.Query(offset, offset+length)
	var filled []FilledRange
	for _, iv := range overlaps {
		lo := maxI64(iv.Low, offset)
		hi := minI64(iv.High, offset+length)
		if hi <= lo {
			continue
		}
		payloadStart := lo - iv.Low
		journalPos := iv.Val + model.HeaderLen + payloadStart
		n, err := c.f.ReadAt(buf[lo-offset:hi-offset], journalPos)
		if err != nil && n == 0 {
			return filled, apperror.New(apperror.Unknown, "journal.Pread", err)
		}
		filled = append(filled, FilledRange{Offset: lo, Length: hi - lo})
	}
	return filled, nil
}

// Truncate implements the journal's two distinct truncate semantics: a
// positive n narrows future reads without discarding entries a later
// write might still need; n == 0 with invalidate drops the journal
// entirely and is distinct from n == 0 without invalidate, which records
// "truncated to zero bytes" as a valid, still-consultable state.
func (c *Cache) Truncate(n int64, invalidate bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if n > 0 {
		c.truncateSize = n
		c.truncateValid = true
		return nil
	}

	if invalidate {
		c.tree.Clear()
		if c.f != nil {
			if err := c.f.Truncate(0); err != nil {
				return apperror.New(apperror.Unknown, "journal.Truncate.invalidate", err)
			}
		}
		c.fileSize = 0
		c.cachesize = 0
		c.truncateValid = false
		c.cond.Broadcast()
		return nil
	}

	c.truncateSize = 0
	c.truncateValid = true
	return nil
}

// Size returns the current allocated length of the journal file.
func (c *Cache) Size() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fileSize
}

// Close closes the backing file. If remove is true, the file is also
// deleted and the configured Notifier is informed of the reclaimed bytes.
func (c *Cache) Close(remove bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.f == nil {
		return nil
	}
	size := c.fileSize
	path := c.f.Name()
	err := c.f.Close()
	c.f = nil
	if remove {
		if rmErr := os.Remove(path); rmErr != nil && !os.IsNotExist(rmErr) {
			err = rmErr
		} else if c.Notifier != nil {
			c.Notifier.JournalDeleted(size)
		}
	}
	if err != nil {
		return apperror.New(apperror.Unknown, "journal.Close", err)
	}
	return nil
}

func maxI64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

func minI64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}

