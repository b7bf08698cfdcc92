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

// Package app is the composition root: it constructs every long-lived
// singleton the cache needs (the IoHandle table, the buffer pools, the
// continuation executor, the sharded metadata provider, the I/O statistics
// recorder) from one cfg.Config and wires them together, in place of a
// package-level var singleton for each.
package app

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/eosfusex/cachecore/cfg"
	"github.com/eosfusex/cachecore/pkg/bufferpool"
	"github.com/eosfusex/cachecore/pkg/executor"
	"github.com/eosfusex/cachecore/pkg/filecache/handler"
	"github.com/eosfusex/cachecore/pkg/iostat"
	"github.com/eosfusex/cachecore/pkg/metadata/provider"
	"github.com/eosfusex/cachecore/pkg/metadatastore"
	"github.com/eosfusex/cachecore/pkg/metadatastore/redisstore"
	"github.com/eosfusex/cachecore/pkg/proxy"
	"github.com/eosfusex/cachecore/pkg/remotefile"
	"github.com/eosfusex/cachecore/pkg/remotefile/httpclient"
)

// Core holds every singleton the running process needs, built once at
// startup and passed down explicitly from there.
type Core struct {
	Cfg cfg.Config

	Handler *handler.Handler

	// OpenBufPool, ReadBufPool and WriteBufPool back open/read/write
	// requests respectively, kept separate so a burst on one path can't
	// starve the others of buffer headroom.
	OpenBufPool  *bufferpool.Pool
	ReadBufPool  *bufferpool.Pool
	WriteBufPool *bufferpool.Pool

	// Executor is shared by the metadata provider's parallel container
	// fetches and by FileProxy's remote-completion continuations. It is
	// the last thing Close releases.
	Executor *executor.Pool

	Metadata *provider.Provider

	Stats *iostat.Recorder

	// Registry is non-nil when c.Metrics.Enabled, holding the registered
	// Stats series; MetricsHandler serves them.
	Registry *prometheus.Registry

	Client remotefile.Client

	Readahead proxy.ReadaheadOptions
}

// New wires a Core from c. The metadata store addresses in
// c.Remote.MetadataStoreAddrs are dialed one per shard, round-robining the
// list if it's shorter than c.Metadata.ShardCount.
func New(c cfg.Config) (*Core, error) {
	h, err := handler.New(c)
	if err != nil {
		return nil, err
	}

	pool := executor.New(c.Metadata.ExecutorThreads)

	clients := make([]metadatastore.Store, c.Metadata.ShardCount)
	addrs := c.Remote.MetadataStoreAddrs
	for i := range clients {
		addr := ""
		if len(addrs) > 0 {
			addr = addrs[i%len(addrs)]
		}
		clients[i] = redisstore.Dial(addr)
	}

	capacityPerShard := (c.Metadata.ContainerCacheEntries + c.Metadata.FileCacheEntries) / c.Metadata.ShardCount
	if capacityPerShard <= 0 {
		capacityPerShard = 1
	}
	metadata := provider.New(clients, pool, capacityPerShard)

	stats := iostat.New(time.Now())
	var registry *prometheus.Registry
	if c.Metrics.Enabled {
		registry = prometheus.NewRegistry()
		stats.SetMetrics(iostat.NewMetrics(registry))
	}

	return &Core{
		Cfg:          c,
		Handler:      h,
		OpenBufPool:  bufferpool.New(bufferpool.DefaultOptions()),
		ReadBufPool:  bufferpool.New(bufferpool.DefaultOptions()),
		WriteBufPool: bufferpool.New(bufferpool.DefaultOptions()),
		Executor:     pool,
		Metadata:     metadata,
		Stats:        stats,
		Registry:     registry,
		Client:       httpclient.New(c.Remote.FileServiceURL, nil),
		Readahead: proxy.ReadaheadOptions{
			Strategy:    c.Readahead.Strategy,
			Min:         c.Readahead.MinBytes,
			Nominal:     c.Readahead.NominalBytes,
			Max:         c.Readahead.MaxBytes,
			BlocksMax:   c.Readahead.BlocksMax,
			SparseRatio: c.Readahead.SparseRatio,
		},
	}, nil
}

// NewFileProxy builds a FileProxy against url using the Core's shared
// client, executor, buffer pools, read-ahead policy and stats recorder.
// statsKey identifies this proxy's stream in Stats snapshots.
func (c *Core) NewFileProxy(url string, flags int, mode uint32, chunkTimeout time.Duration, statsKey string) *proxy.FileProxy {
	return proxy.New(proxy.Options{
		URL:          url,
		Flags:        flags,
		Mode:         mode,
		Client:       c.Client,
		Executor:     c.Executor,
		WriteBufPool: c.WriteBufPool,
		ReadBufPool:  c.ReadBufPool,
		ChunkTimeout: chunkTimeout,
		Readahead:    c.Readahead,
		Stats:        c.Stats,
		StatsKey:     statsKey,
	})
}

// MetricsHandler returns the /metrics HTTP handler for this Core's
// Registry, for an embedder to mount on its own mux, or nil if
// c.Metrics.Enabled was false at construction.
func (c *Core) MetricsHandler() http.Handler {
	if c.Registry == nil {
		return nil
	}
	return promhttp.HandlerFor(c.Registry, promhttp.HandlerOpts{})
}

// Close tears Core down in dependency order: the metadata provider (which
// stops its refresh listener and closes every shard's backend client),
// then the cache handler's background levelers, and finally the shared
// executor, once nothing can submit to it anymore.
func (c *Core) Close() error {
	var firstErr error
	if err := c.Metadata.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	c.Handler.Shutdown()
	if err := c.Executor.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
