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

import "github.com/eosfusex/cachecore/cfg"

// ReadaheadOptions configures a proxy's speculative prefetch behavior.
type ReadaheadOptions struct {
	// Strategy is one of cfg.ReadaheadNone, cfg.ReadaheadStatic,
	// cfg.ReadaheadDynamic.
	Strategy string

	Min     int64
	Nominal int64
	Max     int64

	BlocksMax int

	// SparseRatio is the hit ratio below which a dynamic window shrinks
	// and is eventually disabled.
	SparseRatio float64

	// MaxPosition bounds speculative fetches beyond what is known to
	// exist in the file. Zero means unbounded.
	MaxPosition int64
}

type raBuffer struct {
	offset int64
	data   []byte
}

// readaheadState tracks prefetched buffers and the hit-rate accounting
// used to drive the Static and Dynamic strategies. Callers hold the
// owning FileProxy's mutex for every method here; it is not independently
// synchronized.
type readaheadState struct {
	opts ReadaheadOptions

	buffers []raBuffer

	currentNominal     int64
	consecutiveSeqHits int
	lastReadEnd        int64

	totalBytes   int64
	raBytes      int64
	raHitBytes   int64
}

func newReadaheadState(opts ReadaheadOptions) readaheadState {
	return readaheadState{opts: opts, currentNominal: opts.Nominal}
}

// consume looks for a previously prefetched buffer covering
// [offset, offset+length) and, if found, copies the matching bytes into
// dst and reports a hit, letting the caller skip the remote round trip
// entirely. The consumed buffer is removed; a speculative fetch is used
// by at most one synchronous read.
func (r *readaheadState) consume(offset, length int64, dst []byte) (hit bool, hitBytes int64) {
	for i, b := range r.buffers {
		bEnd := b.offset + int64(len(b.data))
		if offset >= b.offset && offset+length <= bEnd {
			start := offset - b.offset
			copy(dst[:length], b.data[start:start+length])
			r.buffers = append(r.buffers[:i], r.buffers[i+1:]...)
			return true, length
		}
	}
	return false, 0
}

func (r *readaheadState) recordUserRead(offset, n, raHit int64) {
	r.totalBytes += n
	r.raHitBytes += raHit

	sequential := offset == r.lastReadEnd
	r.lastReadEnd = offset + n

	switch r.opts.Strategy {
	case cfg.ReadaheadDynamic:
		if sequential {
			r.consecutiveSeqHits++
			if r.currentNominal == 0 {
				r.currentNominal = r.opts.Min
			}
			r.currentNominal = minI64(r.currentNominal*2, r.opts.Max)
		} else {
			r.consecutiveSeqHits = 0
			if r.Efficiency() < r.opts.SparseRatio {
				r.currentNominal /= 2
			}
		}
	case cfg.ReadaheadStatic:
		if sequential {
			r.consecutiveSeqHits++
		} else {
			r.consecutiveSeqHits = 0
		}
	}
}

// recordSpeculativeFetch stores a copy of data, fetched speculatively at
// offset, for a later consume to serve a synchronous read from. data is
// copied rather than retained because it belongs to a pool-managed
// buffer the caller owns.
func (r *readaheadState) recordSpeculativeFetch(offset int64, data []byte) {
	r.raBytes += int64(len(data))
	buf := make([]byte, len(data))
	copy(buf, data)
	r.buffers = append(r.buffers, raBuffer{offset: offset, data: buf})
}

// NextWindow reports the next speculative fetch window, if the current
// strategy and access pattern call for one.
func (r *readaheadState) nextWindow() (offset, size int64, ok bool) {
	if r.opts.Strategy == cfg.ReadaheadNone || r.consecutiveSeqHits == 0 {
		return 0, 0, false
	}
	size = r.currentNominal
	if size <= 0 {
		size = r.opts.Nominal
	}
	if size <= 0 {
		return 0, 0, false
	}
	offset = r.lastReadEnd
	if r.opts.MaxPosition > 0 && offset >= r.opts.MaxPosition {
		return 0, 0, false
	}
	if r.opts.MaxPosition > 0 && offset+size > r.opts.MaxPosition {
		size = r.opts.MaxPosition - offset
	}
	return offset, size, size > 0
}

// Efficiency is ra_hit_bytes / total_bytes.
func (r *readaheadState) Efficiency() float64 {
	if r.totalBytes == 0 {
		return 0
	}
	return float64(r.raHitBytes) / float64(r.totalBytes)
}

// VolumeEfficiency is ra_hit_bytes / ra_bytes.
func (r *readaheadState) VolumeEfficiency() float64 {
	if r.raBytes == 0 {
		return 0
	}
	return float64(r.raHitBytes) / float64(r.raBytes)
}
