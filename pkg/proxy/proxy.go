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

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/eosfusex/cachecore/pkg/bufferpool"
	"github.com/eosfusex/cachecore/pkg/executor"
	"github.com/eosfusex/cachecore/pkg/iostat"
	"github.com/eosfusex/cachecore/pkg/model"
	"github.com/eosfusex/cachecore/pkg/remotefile"
)

// chunkKind distinguishes read and write in-flight handlers.
type chunkKind int

const (
	chunkRead chunkKind = iota
	chunkWrite
)

// Handler is one in-flight read or write request. Callers receive a
// *Handler from the *_prepare calls and pass it back into wait_*/done_*;
// its identity (pointer value) is the key used for in-flight bookkeeping,
// mirroring the source's "keyed by handler address" scheme.
type Handler struct {
	kind      chunkKind
	offset    int64
	size      int64
	buf       []byte
	startedAt time.Time

	done     chan struct{}
	once     sync.Once
	err      error
	status   remotefile.Status
	bytesOut int
}

func newHandler(kind chunkKind, offset, size int64, buf []byte) *Handler {
	return &Handler{kind: kind, offset: offset, size: size, buf: buf, startedAt: timeNow(), done: make(chan struct{})}
}

func (h *Handler) complete(n int, status remotefile.Status, err error) {
	h.once.Do(func() {
		h.bytesOut = n
		h.status = status
		h.err = err
		close(h.done)
	})
}

// Buf exposes the handler's pooled buffer so a caller preparing a
// scheduled write can fill it directly, ahead of ScheduleWriteAsync.
func (h *Handler) Buf() []byte { return h.buf[:h.size] }

// Done reports whether h has completed, without blocking.
func (h *Handler) Done() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

// FaultInjector scales synthetic error injection for tests. The zero
// value injects nothing; only test code should construct a non-nil,
// non-zero one.
type FaultInjector struct {
	OpenSubmissionFailureEvery int64
	OpenResponseFailureEvery   int64
	ReadResponseFailureEvery   int64

	openSubmissionCount atomic.Int64
	openResponseCount   atomic.Int64
	readResponseCount   atomic.Int64
}

// OpenSubmissionShouldFail reports whether the Nth open submission
// (N = OpenSubmissionFailureEvery) should be injected as a failure. A nil
// receiver or a non-positive threshold never injects.
func (f *FaultInjector) OpenSubmissionShouldFail() bool {
	if f == nil || f.OpenSubmissionFailureEvery <= 0 {
		return false
	}
	return f.openSubmissionCount.Add(1)%f.OpenSubmissionFailureEvery == 0
}

// OpenResponseShouldFail reports whether the Nth open response should be
// injected as a failure.
func (f *FaultInjector) OpenResponseShouldFail() bool {
	if f == nil || f.OpenResponseFailureEvery <= 0 {
		return false
	}
	return f.openResponseCount.Add(1)%f.OpenResponseFailureEvery == 0
}

// ReadResponseShouldFail reports whether the Nth read response should be
// injected as a failure.
func (f *FaultInjector) ReadResponseShouldFail() bool {
	if f == nil || f.ReadResponseFailureEvery <= 0 {
		return false
	}
	return f.readResponseCount.Add(1)%f.ReadResponseFailureEvery == 0
}

// Options configures a new FileProxy.
type Options struct {
	URL          string
	Flags        int
	Mode         uint32
	Client       remotefile.Client
	Executor     *executor.Pool
	WriteBufPool *bufferpool.Pool
	ReadBufPool  *bufferpool.Pool
	ChunkTimeout time.Duration
	Readahead    ReadaheadOptions
	Faults       *FaultInjector

	// Stats, if non-nil, receives a mark for every completed read and
	// write under StatsKey (e.g. the owning application name).
	Stats    *iostat.Recorder
	StatsKey string
}

// FileProxy is a single asynchronous, coalescing connection to one open
// remote file.
type FileProxy struct {
	opts Options

	mu          sync.Mutex
	cond        *sync.Cond
	state       model.ProxyState
	protocolLog []transition

	client remotefile.Client
	handle remotefile.Handle
	openStatus remotefile.Status
	openErr    error

	inflight map[*Handler]struct{}
	scheduled []*Handler

	scheduledCount atomic.Int64
	directCount    atomic.Int64

	closeAfterWrite bool

	ra readaheadState
}

// New constructs a FileProxy in the Closed state. Call OpenAsync to begin
// opening the remote file.
func New(opts Options) *FileProxy {
	p := &FileProxy{
		opts:     opts,
		client:   opts.Client,
		state:    model.Closed,
		inflight: make(map[*Handler]struct{}),
		ra:       newReadaheadState(opts.Readahead),
	}
	p.cond = sync.NewCond(&p.mu)
	return p
}

// registerInflightLocked adds h to the in-flight map and, if configured,
// schedules orphan housekeeping once ChunkTimeout elapses without h
// completing.
func (p *FileProxy) registerInflightLocked(h *Handler) {
	p.inflight[h] = struct{}{}
	if p.opts.ChunkTimeout <= 0 {
		return
	}
	timeout := p.opts.ChunkTimeout
	go func() {
		select {
		case <-h.done:
		case <-time.After(timeout):
			p.orphan(h)
		}
	}()
}

func (p *FileProxy) unregisterInflightLocked(h *Handler) {
	delete(p.inflight, h)
}

// orphan moves a stuck handler into the process-wide orphan vector so
// this proxy can be torn down without waiting on a callback that may
// never arrive.
func (p *FileProxy) orphan(h *Handler) {
	p.mu.Lock()
	_, stillInflight := p.inflight[h]
	if stillInflight {
		delete(p.inflight, h)
	}
	p.mu.Unlock()

	if stillInflight {
		addOrphan(h)
	}
}

func (p *FileProxy) markRead(n int64) {
	if p.opts.Stats == nil {
		return
	}
	p.opts.Stats.RecordRead(p.opts.StatsKey, model.IoMark{At: timeNow(), Bytes: n})
}

func (p *FileProxy) markWrite(n int64) {
	if p.opts.Stats == nil {
		return
	}
	p.opts.Stats.RecordWrite(p.opts.StatsKey, model.IoMark{At: timeNow(), Bytes: n})
}

// InflightCount returns the number of handlers currently registered as
// in-flight.
func (p *FileProxy) InflightCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.inflight)
}

// ScheduledFraction returns the fraction of writes that went through
// schedule_write_async's batched path rather than write_async's direct
// submission, for telemetry.
func (p *FileProxy) ScheduledFraction() float64 {
	scheduled := p.scheduledCount.Load()
	direct := p.directCount.Load()
	total := scheduled + direct
	if total == 0 {
		return 0
	}
	return float64(scheduled) / float64(total)
}
