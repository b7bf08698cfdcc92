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

	"github.com/eosfusex/cachecore/pkg/apperror"
)

// Read is the synchronous read entry point: it may be served entirely
// from the read-ahead cache, or issue one remote read, depending on what
// ReadaheadOptions has already prefetched.
func (p *FileProxy) Read(ctx context.Context, offset int64, buf []byte) (int, error) {
	p.mu.Lock()
	hit, hitBytes := p.ra.consume(offset, int64(len(buf)), buf)
	p.mu.Unlock()

	if hit {
		p.recordRead(offset, hitBytes, hitBytes)
		return int(hitBytes), nil
	}

	n, status, err := p.client.Read(ctx, p.handle, buf, offset)
	if err != nil {
		return 0, apperror.New(apperror.TransientRemote, "proxy.Read", err)
	}
	if !status.OK() {
		return 0, apperror.WithRemoteStatus(apperror.TransientRemote, "proxy.Read", int32(status.Errno), nil)
	}
	p.recordRead(offset, int64(n), 0)
	return n, nil
}

func (p *FileProxy) recordRead(offset, n, raHit int64) {
	p.mu.Lock()
	p.ra.recordUserRead(offset, n, raHit)
	p.mu.Unlock()
	p.markRead(n)
}

// ReadAsyncPrepare allocates a read-ahead buffer from the configured pool,
// subject to back-pressure.
func (p *FileProxy) ReadAsyncPrepare(ctx context.Context, offset int64, size int, blocking bool) (*Handler, error) {
	buf, ok, err := p.opts.ReadBufPool.Get(ctx, size, blocking)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return newHandler(chunkRead, offset, int64(size), buf), nil
}

// PrereadAsync launches a speculative fetch into h's buffer.
func (p *FileProxy) PrereadAsync(ctx context.Context, h *Handler) {
	p.mu.Lock()
	p.registerInflightLocked(h)
	p.mu.Unlock()

	go func() {
		n, status, err := p.client.Read(ctx, p.handle, h.buf, h.offset)

		p.mu.Lock()
		p.unregisterInflightLocked(h)
		if err == nil && status.OK() && n > 0 {
			p.ra.recordSpeculativeFetch(h.offset, h.buf[:n])
		}
		p.mu.Unlock()

		h.complete(n, status, err)
	}()
}

// WaitRead blocks until h completes.
func (p *FileProxy) WaitRead(ctx context.Context, h *Handler) error {
	select {
	case <-h.done:
		return h.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ReadAsync copies the data h's fetch produced into buf, reporting how
// many bytes were copied.
func (p *FileProxy) ReadAsync(h *Handler, buf []byte) (int, error) {
	if !h.Done() {
		return 0, apperror.New(apperror.InvalidArgument, "proxy.ReadAsync", nil)
	}
	if h.err != nil {
		return 0, h.err
	}
	n := copy(buf, h.buf[:h.bytesOut])
	p.opts.ReadBufPool.Put(h.buf)
	return n, nil
}

// DoneAsync polls h without blocking.
func (p *FileProxy) DoneAsync(h *Handler) bool {
	return h.Done()
}
