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

// Package bufferpool is a bounded pool of reusable byte buffers used to
// stage data in flight between the local caches and the remote backend. A
// pool enforces two independent caps — total bytes in flight and total
// chunk count in flight — and blocks Get callers against either cap until
// a Put frees room, or until a grace window temporarily relaxes the cap so
// a straggling writer doesn't deadlock the whole pipeline.
package bufferpool

import (
	"context"
	"sync"
	"time"

	"github.com/eosfusex/cachecore/pkg/logger"
)

const pollInterval = 100 * time.Millisecond

// Options configures the back-pressure behavior of a Pool.
type Options struct {
	// MaxInflightBytes is the soft cap on the sum of all outstanding
	// buffer sizes.
	MaxInflightBytes int64
	// MaxInflightChunks is the soft cap on the number of outstanding
	// buffers, independent of their size.
	MaxInflightChunks int
	// GraceTimeout is how long a blocked Get waits against the normal
	// caps before the grace window kicks in.
	GraceTimeout time.Duration
	// GraceWindow is how long the relaxed cap (2x normal) stays in
	// effect once it activates.
	GraceWindow time.Duration
}

// DefaultOptions mirrors the external interface defaults.
func DefaultOptions() Options {
	return Options{
		MaxInflightBytes:  512 * 1024 * 1024,
		MaxInflightChunks: 16384,
		GraceTimeout:      200 * time.Second,
		GraceWindow:       60 * time.Second,
	}
}

// Pool is a bounded set of byte-slice buffers, reused across Get/Put
// cycles to avoid churning the allocator on the hot write/read-ahead path.
type Pool struct {
	opts Options

	mu             sync.Mutex
	inflightBytes  int64
	inflightChunks int
	free           [][]byte
	graceUntil     time.Time
}

// New creates a Pool governed by opts.
func New(opts Options) *Pool {
	return &Pool{opts: opts}
}

func (p *Pool) capMultiplier(now time.Time) int64 {
	if now.Before(p.graceUntil) {
		return 2
	}
	return 1
}

// Get returns a buffer of exactly size bytes, zeroed. If blocking is true
// and the pool is at capacity, Get polls every 100ms until room frees up,
// the grace window opens extra headroom, or ctx is done. If blocking is
// false, Get returns immediately with ok=false when the pool is at
// capacity.
func (p *Pool) Get(ctx context.Context, size int, blocking bool) (buf []byte, ok bool, err error) {
	deadlineForGrace := time.Now().Add(p.opts.GraceTimeout)

	for {
		p.mu.Lock()
		now := time.Now()
		mult := p.capMultiplier(now)
		withinBytes := p.inflightBytes+int64(size) <= p.opts.MaxInflightBytes*mult
		withinChunks := p.inflightChunks+1 <= p.opts.MaxInflightChunks*int(mult)

		if withinBytes && withinChunks {
			buf = p.takeLocked(size)
			p.inflightBytes += int64(size)
			p.inflightChunks++
			p.mu.Unlock()
			return buf, true, nil
		}
		p.mu.Unlock()

		if !blocking {
			return nil, false, nil
		}

		if time.Now().After(deadlineForGrace) && now.After(p.graceUntil) {
			p.mu.Lock()
			p.graceUntil = time.Now().Add(p.opts.GraceWindow)
			p.mu.Unlock()
			logger.Warnf("bufferpool: grace window opened after %s of backpressure", p.opts.GraceTimeout)
		}

		select {
		case <-ctx.Done():
			return nil, false, ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

func (p *Pool) takeLocked(size int) []byte {
	for i, b := range p.free {
		if cap(b) >= size {
			p.free[i] = p.free[len(p.free)-1]
			p.free = p.free[:len(p.free)-1]
			b = b[:size]
			for j := range b {
				b[j] = 0
			}
			return b
		}
	}
	return make([]byte, size)
}

// Put returns a buffer to the pool for reuse and releases its share of
// the in-flight accounting. The caller must not use buf after calling
// Put.
func (p *Pool) Put(buf []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.inflightBytes -= int64(len(buf))
	if p.inflightBytes < 0 {
		p.inflightBytes = 0
	}
	p.inflightChunks--
	if p.inflightChunks < 0 {
		p.inflightChunks = 0
	}
	p.free = append(p.free, buf)
}

// Stats reports current in-flight usage, for telemetry.
type Stats struct {
	InflightBytes  int64
	InflightChunks int
	FreeBuffers    int
	InGrace        bool
}

// Stats returns a snapshot of the pool's current usage.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{
		InflightBytes:  p.inflightBytes,
		InflightChunks: p.inflightChunks,
		FreeBuffers:    len(p.free),
		InGrace:        time.Now().Before(p.graceUntil),
	}
}
