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

// Exported test seams for readaheadState, which otherwise has no public
// surface: the proxy package deliberately keeps read-ahead bookkeeping
// private to FileProxy, and does not need its own package-external API.

func NewReadaheadStateForTest(opts ReadaheadOptions) readaheadState {
	return newReadaheadState(opts)
}

func (r *readaheadState) ConsumeForTest(offset, length int64) (bool, int64) {
	return r.consume(offset, length, make([]byte, length))
}

func (r *readaheadState) RecordUserReadForTest(offset, n, raHit int64) {
	r.recordUserRead(offset, n, raHit)
}

func (r *readaheadState) RecordSpeculativeFetchForTest(offset, n int64) {
	r.recordSpeculativeFetch(offset, make([]byte, n))
}

func (r *readaheadState) NextWindowForTest() (int64, int64, bool) {
	return r.nextWindow()
}
