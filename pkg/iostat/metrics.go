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

package iostat

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/eosfusex/cachecore/pkg/model"
)

// Metrics exports a Recorder's counters to Prometheus. All methods handle
// a nil receiver as a no-op, so a Recorder with no Metrics attached pays
// nothing for instrumentation.
type Metrics struct {
	// BytesTotal counts bytes moved, labeled by key and op=[read,write].
	BytesTotal *prometheus.CounterVec

	// SamplesTotal counts completed operations, same labels as BytesTotal.
	SamplesTotal *prometheus.CounterVec

	// IOPS and the bandwidth gauges reflect the most recent Snapshot/Rotate
	// for each key; they are gauges rather than counters because a bin's
	// mean/stddev/iops are not monotonically increasing quantities.
	IOPS           *prometheus.GaugeVec
	BandwidthMean  *prometheus.GaugeVec
	BandwidthStdev *prometheus.GaugeVec
}

// NewMetrics builds and registers a Metrics against registerer. If
// registerer is nil, prometheus.DefaultRegisterer is used.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		BytesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cachecore_io_bytes_total",
				Help: "Total bytes moved through the proxy, by key and operation.",
			},
			[]string{"key", "op"},
		),
		SamplesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cachecore_io_samples_total",
				Help: "Total completed read/write operations, by key and operation.",
			},
			[]string{"key", "op"},
		),
		IOPS: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "cachecore_io_iops",
				Help: "Operations per second over the current window, by key.",
			},
			[]string{"key"},
		),
		BandwidthMean: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "cachecore_io_bandwidth_bytes_mean",
				Help: "Mean bytes per operation over the current window, by key and operation.",
			},
			[]string{"key", "op"},
		),
		BandwidthStdev: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "cachecore_io_bandwidth_bytes_stddev",
				Help: "Bytes-per-operation standard deviation over the current window, by key and operation.",
			},
			[]string{"key", "op"},
		),
	}

	registerer.MustRegister(m.BytesTotal, m.SamplesTotal, m.IOPS, m.BandwidthMean, m.BandwidthStdev)
	return m
}

func (m *Metrics) recordMark(key, op string, bytes int64) {
	if m == nil {
		return
	}
	m.BytesTotal.WithLabelValues(key, op).Add(float64(bytes))
	m.SamplesTotal.WithLabelValues(key, op).Inc()
}

// observeBin replaces the IOPS/bandwidth gauges for bin's keys with its
// summaries, overwriting whatever the previous window left behind.
func (m *Metrics) observeBin(bin model.Bin) {
	if m == nil {
		return
	}
	for key, s := range bin.Summaries {
		m.IOPS.WithLabelValues(key).Set(s.IOPS)
		if s.Read != nil {
			m.BandwidthMean.WithLabelValues(key, "read").Set(s.Read.Mean)
			m.BandwidthStdev.WithLabelValues(key, "read").Set(s.Read.StdDev)
		}
		if s.Write != nil {
			m.BandwidthMean.WithLabelValues(key, "write").Set(s.Write.Mean)
			m.BandwidthStdev.WithLabelValues(key, "write").Set(s.Write.StdDev)
		}
	}
}
