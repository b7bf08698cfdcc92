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

package model

import "time"

// IoMark is one recorded I/O operation. Immutable once created.
type IoMark struct {
	At    time.Time
	Bytes int64
}

// BandwidthSample is an optional (mean, stddev) pair, nil when no samples
// were collected for the corresponding direction.
type BandwidthSample struct {
	Mean   float64
	StdDev float64
}

// IoStatSummary aggregates read and write statistics over a window. A
// summary is Empty() when both sample counts are zero; callers that
// serialize this type must preserve the distinction between "empty" and
// "zero-valued but present" (e.g. a window with exactly one zero-byte
// read).
type IoStatSummary struct {
	Read  *BandwidthSample
	Write *BandwidthSample

	ReadSamples  int64
	WriteSamples int64

	IOPS float64

	Window time.Duration
}

// Empty reports whether this summary carries no samples at all.
func (s IoStatSummary) Empty() bool {
	return s.ReadSamples == 0 && s.WriteSamples == 0
}

// Bin is one time-bucket of per-application, per-uid, per-gid summaries
// used by the aggregation layer. Key is whatever dimension (app name, uid,
// gid) the caller is bucketing by; callers typically keep three parallel
// maps of Bin keyed by app, by uid and by gid.
type Bin struct {
	Start time.Time
	End   time.Time

	Summaries map[string]IoStatSummary
}

// NewBin creates an empty bin covering [start, end).
func NewBin(start, end time.Time) Bin {
	return Bin{Start: start, End: end, Summaries: make(map[string]IoStatSummary)}
}
