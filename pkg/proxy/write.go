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
	"context"
	"time"

	"github.com/eosfusex/cachecore/pkg/apperror"
	"github.com/eosfusex/cachecore/pkg/model"
)

// WriteAsyncPrepare reserves a pooled buffer of size bytes for a pending
// write at offset, subject to the write buffer pool's back-pressure.
func (p *FileProxy) WriteAsyncPrepare(ctx context.Context, offset int64, size int) (*Handler, error) {
	buf, ok, err := p.opts.WriteBufPool.Get(ctx, size, true)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperror.New(apperror.TransientRemote, "proxy.WriteAsyncPrepare", nil)
	}
	return newHandler(chunkWrite, offset, int64(size), buf), nil
}

// WriteAsync copies data into h's buffer, registers h under the in-flight
// map, and submits the write to the remote client; the handler is
// unregistered when the write completes, successfully or not.
func (p *FileProxy) WriteAsync(ctx context.Context, h *Handler, data []byte) error {
	n := copy(h.buf, data)
	h.size = int64(n)

	p.mu.Lock()
	if p.state != model.Open && p.state != model.WaitWrite {
		p.mu.Unlock()
		return apperror.New(apperror.InvalidArgument, "proxy.WriteAsync", nil)
	}
	p.registerInflightLocked(h)
	p.setStateLocked(model.WaitWrite, "write submitted")
	p.mu.Unlock()

	p.directCount.Add(1)

	go p.runWrite(ctx, h)
	return nil
}

func (p *FileProxy) runWrite(ctx context.Context, h *Handler) {
	n, status, err := p.client.Write(ctx, p.handle, h.buf[:h.size], h.offset)
	h.complete(n, status, err)
	p.markWrite(int64(n))

	p.mu.Lock()
	p.unregisterInflightLocked(h)
	p.opts.WriteBufPool.Put(h.buf)
	if !p.hasInflightWritesLocked() {
		next := model.Open
		if p.closeAfterWrite {
			next = model.Closing
		}
		p.setStateLocked(next, "write drained")
	}
	p.mu.Unlock()
}

// ScheduleWriteAsync queues h for batched submission via CollectWrites
// instead of submitting it immediately.
func (p *FileProxy) ScheduleWriteAsync(h *Handler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.scheduled = append(p.scheduled, h)
	p.scheduledCount.Add(1)
}

// CollectWrites drains the batched write queue and submits every entry,
// returning the handlers that were submitted.
func (p *FileProxy) CollectWrites(ctx context.Context) []*Handler {
	p.mu.Lock()
	batch := p.scheduled
	p.scheduled = nil
	for _, h := range batch {
		p.registerInflightLocked(h)
	}
	if len(batch) > 0 {
		p.setStateLocked(model.WaitWrite, "batched writes submitted")
	}
	p.mu.Unlock()

	for _, h := range batch {
		go p.runWrite(ctx, h)
	}
	return batch
}

// WaitWrite blocks until every currently in-flight write has completed.
func (p *FileProxy) WaitWrite(ctx context.Context) error {
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			p.mu.Lock()
			p.cond.Broadcast()
			p.mu.Unlock()
		case <-stop:
		}
	}()

	p.mu.Lock()
	defer p.mu.Unlock()
	for p.hasInflightWritesLocked() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		p.cond.Wait()
	}
	return ctx.Err()
}

func (p *FileProxy) hasInflightWritesLocked() bool {
	for h := range p.inflight {
		if h.kind == chunkWrite {
			return true
		}
	}
	return false
}

// CloseAfterWrite arms an automatic transition to Closing once the write
// queue drains. If nothing is in flight, the transition happens
// immediately.
func (p *FileProxy) CloseAfterWrite(ctx context.Context, timeout time.Duration) {
	p.mu.Lock()
	p.closeAfterWrite = true
	if !p.hasInflightWritesLocked() {
		p.setStateLocked(model.Closing, "close_after_write: queue already empty")
	}
	p.mu.Unlock()
}
