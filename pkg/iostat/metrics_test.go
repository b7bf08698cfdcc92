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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eosfusex/cachecore/pkg/iostat"
	"github.com/eosfusex/cachecore/pkg/model"
)

func gatherNames(t *testing.T, registry *prometheus.Registry) []string {
	t.Helper()
	mfs, err := registry.Gather()
	require.NoError(t, err)
	names := make([]string, len(mfs))
	for i, mf := range mfs {
		names[i] = mf.GetName()
	}
	return names
}

func TestRecorderWithMetricsExportsBytesAndSamplesCounters(t *testing.T) {
	registry := prometheus.NewRegistry()
	r := iostat.New(time.Unix(0, 0))
	r.SetMetrics(iostat.NewMetrics(registry))

	r.RecordRead("stream-a", model.IoMark{At: time.Unix(1, 0), Bytes: 100})
	r.RecordWrite("stream-a", model.IoMark{At: time.Unix(1, 0), Bytes: 50})

	names := gatherNames(t, registry)
	assert.Contains(t, names, "cachecore_io_bytes_total")
	assert.Contains(t, names, "cachecore_io_samples_total")
}

func TestRecorderSnapshotPublishesIOPSAndBandwidthGauges(t *testing.T) {
	registry := prometheus.NewRegistry()
	r := iostat.New(time.Unix(0, 0))
	r.SetMetrics(iostat.NewMetrics(registry))

	r.RecordRead("stream-a", model.IoMark{At: time.Unix(1, 0), Bytes: 100})
	r.Snapshot(time.Unix(2, 0))

	names := gatherNames(t, registry)
	assert.Contains(t, names, "cachecore_io_iops")
	assert.Contains(t, names, "cachecore_io_bandwidth_bytes_mean")
	assert.Contains(t, names, "cachecore_io_bandwidth_bytes_stddev")
}

func TestRecorderWithoutMetricsDoesNotPanic(t *testing.T) {
	r := iostat.New(time.Unix(0, 0))
	r.RecordRead("stream-a", model.IoMark{At: time.Unix(1, 0), Bytes: 100})
	r.Rotate(time.Unix(2, 0))
}

func TestNilMetricsMethodsAreNoops(t *testing.T) {
	var m *iostat.Metrics
	r := iostat.New(time.Unix(0, 0))
	r.SetMetrics(m)
	r.RecordRead("stream-a", model.IoMark{At: time.Unix(1, 0), Bytes: 100})
	r.Snapshot(time.Unix(2, 0))
}
