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

// Package iostat aggregates IoMark samples into per-key IoStatSummary
// snapshots over a rolling window. It is the receiver half of the
// instrumentation subsystem: a Recorder accumulates marks as they happen
// and periodically rotates into a Bin. The publisher and shaper threads
// that would consume a Bin are out of scope here.
package iostat

import (
	"math"
	"sync"
	"time"

	"github.com/eosfusex/cachecore/pkg/model"
)

// welford computes a running mean and variance in one pass, avoiding the
// numerical instability of a naive sum-of-squares approach.
type welford struct {
	n    int64
	mean float64
	m2   float64
}

func (w *welford) add(x float64) {
	w.n++
	d := x - w.mean
	w.mean += d / float64(w.n)
	w.m2 += d * (x - w.mean)
}

func (w *welford) stddev() float64 {
	if w.n < 2 {
		return 0
	}
	return math.Sqrt(w.m2 / float64(w.n-1))
}

func (w *welford) sample() *model.BandwidthSample {
	if w.n == 0 {
		return nil
	}
	return &model.BandwidthSample{Mean: w.mean, StdDev: w.stddev()}
}

type keyState struct {
	read  welford
	write welford
}

// Recorder accumulates IoMark samples keyed by an arbitrary dimension
// (an application name, a uid, a gid — callers keep one Recorder per
// dimension, mirroring the three parallel Bin maps described for the
// aggregation layer) and rotates them into a Bin on demand.
type Recorder struct {
	mu          sync.Mutex
	windowStart time.Time
	states      map[string]*keyState
	metrics     *Metrics
}

// New creates a Recorder whose first window starts at windowStart.
func New(windowStart time.Time) *Recorder {
	return &Recorder{windowStart: windowStart, states: make(map[string]*keyState)}
}

// SetMetrics attaches m so every recorded mark and rotated Bin also
// updates its Prometheus series. A nil m detaches instrumentation.
func (r *Recorder) SetMetrics(m *Metrics) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.metrics = m
}

func (r *Recorder) stateLocked(key string) *keyState {
	st, ok := r.states[key]
	if !ok {
		st = &keyState{}
		r.states[key] = st
	}
	return st
}

// RecordRead records a completed read of mark.Bytes bytes under key.
func (r *Recorder) RecordRead(key string, mark model.IoMark) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stateLocked(key).read.add(float64(mark.Bytes))
	r.metrics.recordMark(key, "read", mark.Bytes)
}

// RecordWrite records a completed write of mark.Bytes bytes under key.
func (r *Recorder) RecordWrite(key string, mark model.IoMark) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stateLocked(key).write.add(float64(mark.Bytes))
	r.metrics.recordMark(key, "write", mark.Bytes)
}

// Snapshot builds a Bin covering [windowStart, now) from the samples
// recorded so far, without resetting the Recorder.
func (r *Recorder) Snapshot(now time.Time) model.Bin {
	r.mu.Lock()
	defer r.mu.Unlock()
	bin := r.binLocked(now)
	r.metrics.observeBin(bin)
	return bin
}

// Rotate builds a Bin covering [windowStart, now) and resets the Recorder
// so the next window starts empty at now.
func (r *Recorder) Rotate(now time.Time) model.Bin {
	r.mu.Lock()
	defer r.mu.Unlock()
	bin := r.binLocked(now)
	r.metrics.observeBin(bin)
	r.states = make(map[string]*keyState)
	r.windowStart = now
	return bin
}

func (r *Recorder) binLocked(now time.Time) model.Bin {
	bin := model.NewBin(r.windowStart, now)
	window := now.Sub(r.windowStart)
	for key, st := range r.states {
		total := st.read.n + st.write.n
		var iops float64
		if window > 0 {
			iops = float64(total) / window.Seconds()
		}
		bin.Summaries[key] = model.IoStatSummary{
			Read:         st.read.sample(),
			Write:        st.write.sample(),
			ReadSamples:  st.read.n,
			WriteSamples: st.write.n,
			IOPS:         iops,
			Window:       window,
		}
	}
	return bin
}
