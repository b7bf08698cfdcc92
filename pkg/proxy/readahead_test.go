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

package proxy_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/eosfusex/cachecore/cfg"
	"github.com/eosfusex/cachecore/pkg/proxy"
)

func TestReadaheadNoneStrategyNeverProposesAWindow(t *testing.T) {
	r := proxy.NewReadaheadStateForTest(proxy.ReadaheadOptions{Strategy: cfg.ReadaheadNone, Nominal: 4096})
	r.RecordUserReadForTest(0, 4096, 0)
	r.RecordUserReadForTest(4096, 4096, 0)
	_, _, ok := r.NextWindowForTest()
	assert.False(t, ok)
}

func TestReadaheadStaticProposesWindowAfterSequentialHit(t *testing.T) {
	r := proxy.NewReadaheadStateForTest(proxy.ReadaheadOptions{
		Strategy: cfg.ReadaheadStatic,
		Min:      4096,
		Nominal:  8192,
		Max:      16384,
	})
	r.RecordUserReadForTest(0, 4096, 0)
	r.RecordUserReadForTest(4096, 4096, 0)

	offset, size, ok := r.NextWindowForTest()
	assert.True(t, ok)
	assert.Equal(t, int64(8192), offset)
	assert.Equal(t, int64(8192), size)
}

func TestReadaheadDynamicDoublesWindowOnConsecutiveSequentialHits(t *testing.T) {
	r := proxy.NewReadaheadStateForTest(proxy.ReadaheadOptions{
		Strategy: cfg.ReadaheadDynamic,
		Min:      1024,
		Nominal:  1024,
		Max:      8192,
	})
	r.RecordUserReadForTest(0, 1024, 0)
	_, size1, _ := r.NextWindowForTest()

	r.RecordUserReadForTest(1024, 1024, 0)
	_, size2, _ := r.NextWindowForTest()

	assert.Greater(t, size2, size1)
	assert.LessOrEqual(t, size2, int64(8192))
}

func TestReadaheadDynamicResetsOnNonSequentialAccess(t *testing.T) {
	r := proxy.NewReadaheadStateForTest(proxy.ReadaheadOptions{
		Strategy: cfg.ReadaheadDynamic,
		Min:      1024,
		Nominal:  1024,
		Max:      8192,
	})
	r.RecordUserReadForTest(0, 1024, 0)
	r.RecordUserReadForTest(1024, 1024, 0)
	r.RecordUserReadForTest(999999, 1024, 0) // non-sequential jump

	_, _, ok := r.NextWindowForTest()
	assert.False(t, ok)
}

func TestReadaheadConsumeReportsHitForCoveredRange(t *testing.T) {
	r := proxy.NewReadaheadStateForTest(proxy.ReadaheadOptions{Strategy: cfg.ReadaheadStatic})
	r.RecordSpeculativeFetchForTest(100, 50)

	hit, hitBytes := r.ConsumeForTest(110, 10)
	assert.True(t, hit)
	assert.Equal(t, int64(10), hitBytes)

	// Consumed once; asking again for the same range finds nothing left.
	hit, _ = r.ConsumeForTest(110, 10)
	assert.False(t, hit)
}

func TestReadaheadEfficiencyAndVolumeEfficiency(t *testing.T) {
	r := proxy.NewReadaheadStateForTest(proxy.ReadaheadOptions{Strategy: cfg.ReadaheadStatic})
	r.RecordSpeculativeFetchForTest(0, 1000)
	r.RecordUserReadForTest(0, 500, 500)

	assert.InDelta(t, 1.0, r.Efficiency(), 0.001)
	assert.InDelta(t, 0.5, r.VolumeEfficiency(), 0.001)
}

func TestReadaheadMaxPositionBoundsSpeculativeWindow(t *testing.T) {
	r := proxy.NewReadaheadStateForTest(proxy.ReadaheadOptions{
		Strategy:    cfg.ReadaheadStatic,
		Min:         4096,
		Nominal:     8192,
		Max:         16384,
		MaxPosition: 5000,
	})
	r.RecordUserReadForTest(0, 4096, 0)
	r.RecordUserReadForTest(4096, 500, 0) // lastReadEnd now 4596, within bound

	offset, size, ok := r.NextWindowForTest()
	if ok {
		assert.LessOrEqual(t, offset+size, int64(5000))
	}
}
