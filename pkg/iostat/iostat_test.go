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

package iostat_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eosfusex/cachecore/pkg/iostat"
	"github.com/eosfusex/cachecore/pkg/model"
)

func TestSnapshotIsEmptyBinWithNoSamples(t *testing.T) {
	start := time.Now()
	r := iostat.New(start)
	bin := r.Snapshot(start.Add(time.Second))
	assert.Empty(t, bin.Summaries)
}

func TestRecordReadAndWriteProduceDistinctSummaries(t *testing.T) {
	start := time.Now()
	r := iostat.New(start)

	r.RecordRead("app1", model.IoMark{At: start, Bytes: 1000})
	r.RecordRead("app1", model.IoMark{At: start, Bytes: 2000})
	r.RecordWrite("app1", model.IoMark{At: start, Bytes: 500})

	bin := r.Snapshot(start.Add(10 * time.Second))
	summary, ok := bin.Summaries["app1"]
	require.True(t, ok)
	assert.False(t, summary.Empty())
	assert.Equal(t, int64(2), summary.ReadSamples)
	assert.Equal(t, int64(1), summary.WriteSamples)
	require.NotNil(t, summary.Read)
	assert.InDelta(t, 1500, summary.Read.Mean, 0.001)
	require.NotNil(t, summary.Write)
	assert.InDelta(t, 500, summary.Write.Mean, 0.001)
	assert.InDelta(t, 0.3, summary.IOPS, 0.001)
}

func TestRotateResetsAccumulatorsForNextWindow(t *testing.T) {
	start := time.Now()
	r := iostat.New(start)
	r.RecordRead("app1", model.IoMark{At: start, Bytes: 100})

	mid := start.Add(5 * time.Second)
	first := r.Rotate(mid)
	assert.Equal(t, int64(1), first.Summaries["app1"].ReadSamples)

	second := r.Snapshot(mid.Add(5 * time.Second))
	assert.Empty(t, second.Summaries)
}

func TestDistinctKeysTrackedIndependently(t *testing.T) {
	start := time.Now()
	r := iostat.New(start)
	r.RecordRead("uid:100", model.IoMark{At: start, Bytes: 4096})
	r.RecordRead("uid:200", model.IoMark{At: start, Bytes: 8192})

	bin := r.Snapshot(start.Add(time.Second))
	assert.Len(t, bin.Summaries, 2)
	assert.InDelta(t, 4096, bin.Summaries["uid:100"].Read.Mean, 0.001)
	assert.InDelta(t, 8192, bin.Summaries["uid:200"].Read.Mean, 0.001)
}
