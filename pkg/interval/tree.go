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

// Package interval implements a non-overlapping [low, high) -> value map
// with range queries, used by the journal cache to track which byte ranges
// of a file have a pending local write and by write-coalescing logic to
// find what a new write would clobber.
package interval

import "sort"

// Interval is one entry: a half-open byte range and its associated value.
type Interval[V any] struct {
	Low  int64
	High int64
	Val  V
}

func (iv Interval[V]) overlaps(low, high int64) bool {
	return iv.Low < high && low < iv.High
}

// Tree stores pairwise-disjoint half-open intervals sorted by Low. It is
// backed by a sorted slice: journal-sized interval counts (thousands, not
// millions, per open file) make an O(log n) lookup plus O(n) splice
// perfectly adequate, and it keeps iteration order-by-offset for free,
// which the journal's replay path depends on.
type Tree[V any] struct {
	items []Interval[V]
}

// New returns an empty tree.
func New[V any]() *Tree[V] { return &Tree[V]{} }

// Len returns the number of disjoint intervals currently stored.
func (t *Tree[V]) Len() int { return len(t.items) }

// Insert adds [low, high) -> val. The caller is responsible for first
// removing or shrinking any intervals this would overlap; Insert panics if
// the new interval is not disjoint from what's already stored, since a
// violation here means a caller bug, not a runtime condition to recover
// from.
func (t *Tree[V]) Insert(low, high int64, val V) {
	if high <= low {
		return
	}
	idx := sort.Search(len(t.items), func(i int) bool { return t.items[i].Low >= low })
	if idx > 0 && t.items[idx-1].overlaps(low, high) {
		panic("interval.Tree: Insert would overlap an existing interval")
	}
	if idx < len(t.items) && t.items[idx].overlaps(low, high) {
		panic("interval.Tree: Insert would overlap an existing interval")
	}
	t.items = append(t.items, Interval[V]{})
	copy(t.items[idx+1:], t.items[idx:])
	t.items[idx] = Interval[V]{Low: low, High: high, Val: val}
}

// Erase removes the interval with exactly this [low, high) span, if
// present.
func (t *Tree[V]) Erase(low, high int64) {
	for i, iv := range t.items {
		if iv.Low == low && iv.High == high {
			t.items = append(t.items[:i], t.items[i+1:]...)
			return
		}
	}
}

// EraseAt removes the interval with bounds [low, high), typically one just
// returned by Query/All; it does the same as Erase.
func (t *Tree[V]) EraseAt(low, high int64) { t.Erase(low, high) }

// Query returns every interval overlapping [low, high), in ascending Low
// order.
func (t *Tree[V]) Query(low, high int64) []Interval[V] {
	if high <= low {
		return nil
	}
	start := sort.Search(len(t.items), func(i int) bool { return t.items[i].High > low })
	var out []Interval[V]
	for i := start; i < len(t.items) && t.items[i].Low < high; i++ {
		out = append(out, t.items[i])
	}
	return out
}

// Clear drops every interval.
func (t *Tree[V]) Clear() { t.items = nil }

// All returns every interval in ascending Low order. The returned slice
// must not be mutated by the caller.
func (t *Tree[V]) All() []Interval[V] { return t.items }
