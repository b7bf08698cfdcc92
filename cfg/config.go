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

// Package cfg is the typed configuration surface for the caching core. It
// mirrors the option table in the external interfaces section: every field
// here is a flag/env-bindable knob the cache, journal, read-ahead and
// metadata layers read at construction time. Nothing in this package talks
// to a backend; it only describes how the backend-facing components are
// wired together.
package cfg

import (
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config is the root configuration object. Sub-structs group options by the
// component that consumes them.
type Config struct {
	Logging LoggingConfig `yaml:"logging"`

	Cache CacheConfig `yaml:"cache"`

	Journal JournalConfig `yaml:"journal"`

	Readahead ReadaheadConfig `yaml:"readahead"`

	Metadata MetadataConfig `yaml:"metadata"`

	Remote RemoteConfig `yaml:"remote"`

	Metrics MetricsConfig `yaml:"metrics"`
}

// LoggingConfig controls the ambient structured logger.
type LoggingConfig struct {
	Severity string `yaml:"severity"`

	Format string `yaml:"format"`

	LogRotate LogRotateLoggingConfig `yaml:"log-rotate"`
}

// LogRotateLoggingConfig configures rotation of the log file on disk.
type LogRotateLoggingConfig struct {
	BackupFileCount int `yaml:"backup-file-count"`

	Compress bool `yaml:"compress"`

	MaxFileSizeMb int64 `yaml:"max-file-size-mb"`
}

// CacheConfig holds the options read by the data cache tier: cache.type,
// cache.location, cache.total_bytes, cache.total_inodes, cache.per_file_bytes.
type CacheConfig struct {
	// Type selects memory or disk variant. One of CacheTypeMemory, CacheTypeDisk.
	Type string `yaml:"type"`

	Location string `yaml:"location"`

	TotalBytes int64 `yaml:"total-bytes"`

	TotalInodes int64 `yaml:"total-inodes"`

	PerFileBytes int64 `yaml:"per-file-bytes"`

	// CleanOnStartup deletes everything under Location before first use.
	CleanOnStartup bool `yaml:"clean-on-startup"`
}

// JournalConfig holds the options read by the write journal.
type JournalConfig struct {
	Location string `yaml:"location"`

	TotalBytes int64 `yaml:"total-bytes"`

	TotalInodes int64 `yaml:"total-inodes"`

	PerFileBytes int64 `yaml:"per-file-bytes"`

	CleanOnStartup bool `yaml:"clean-on-startup"`
}

// ReadaheadConfig holds the options read by the proxy's read-ahead engine:
// readahead.strategy, .min, .nominal, .max, .blocks_max, .sparse_ratio.
type ReadaheadConfig struct {
	// Strategy is one of ReadaheadNone, ReadaheadStatic, ReadaheadDynamic.
	Strategy string `yaml:"strategy"`

	MinBytes int64 `yaml:"min"`

	NominalBytes int64 `yaml:"nominal"`

	MaxBytes int64 `yaml:"max"`

	BlocksMax int `yaml:"blocks-max"`

	SparseRatio float64 `yaml:"sparse-ratio"`
}

// MetadataConfig holds the options read by the metadata provider:
// metadata.container_cache_entries, .file_cache_entries, .executor_threads.
type MetadataConfig struct {
	ContainerCacheEntries int `yaml:"container-cache-entries"`

	FileCacheEntries int `yaml:"file-cache-entries"`

	ExecutorThreads int `yaml:"executor-threads"`

	ShardCount int `yaml:"shard-count"`
}

// RemoteConfig holds the addresses of the two backend services the core
// talks to: the remote file service (§6's request-response protocol) and
// the metadata key/value store, one connection per shard.
type RemoteConfig struct {
	// FileServiceURL is the base URL passed to the remotefile.Client.
	FileServiceURL string `yaml:"file-service-url"`

	// MetadataStoreAddrs lists one backend address per metadata shard. If
	// metadata.shard-count exceeds len(MetadataStoreAddrs), the list is
	// reused round-robin across the shards.
	MetadataStoreAddrs []string `yaml:"metadata-store-addrs"`

	// ChunkTimeout bounds a single remote read/write round trip.
	ChunkTimeout int64 `yaml:"chunk-timeout-ms"`
}

// MetricsConfig holds the options read when exposing Prometheus metrics:
// metrics.enabled, .listen-addr.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`

	// ListenAddr is the address an embedder's /metrics HTTP server binds
	// to. Empty means the caller is responsible for mounting the handler
	// itself rather than this package starting a listener.
	ListenAddr string `yaml:"listen-addr"`
}

// BindFlags registers every configuration knob onto flagSet and binds it
// into viper, one flag per leaf field, immediately bound by dotted key.
func BindFlags(flagSet *pflag.FlagSet) error {
	flagSet.String("logging.severity", DefaultLoggingConfig().Severity, "Minimum severity logged: TRACE, DEBUG, INFO, WARNING, ERROR, OFF.")
	flagSet.String("logging.format", "text", "Log line format: text or json.")

	flagSet.String("cache.type", CacheTypeDisk, "Data cache variant: memory or disk.")
	flagSet.String("cache.location", "", "Root directory for the on-disk block cache.")
	flagSet.Int64("cache.total-bytes", 0, "Soft cap on total bytes held under cache.location.")
	flagSet.Int64("cache.total-inodes", 0, "Soft cap on total files held under cache.location.")
	flagSet.Int64("cache.per-file-bytes", DefaultCachePerFileBytes, "Prefix cap applied to every per-file block cache entry.")
	flagSet.Bool("cache.clean-on-startup", false, "Delete everything under cache.location before first use.")

	flagSet.String("journal.location", "", "Root directory for the write journal.")
	flagSet.Int64("journal.total-bytes", 0, "Soft cap on total bytes held under journal.location.")
	flagSet.Int64("journal.total-inodes", 0, "Soft cap on total files held under journal.location.")
	flagSet.Int64("journal.per-file-bytes", DefaultJournalPerFileBytes, "Cap on the size of a single file's journal.")
	flagSet.Bool("journal.clean-on-startup", false, "Delete everything under journal.location before first use.")

	flagSet.String("readahead.strategy", ReadaheadStatic, "Read-ahead strategy: none, static, dynamic.")
	flagSet.Int64("readahead.min", 0, "Smallest read-ahead block size.")
	flagSet.Int64("readahead.nominal", 0, "Starting read-ahead block size.")
	flagSet.Int64("readahead.max", 0, "Largest read-ahead block size.")
	flagSet.Int("readahead.blocks-max", 2, "Maximum number of prefetched blocks in flight.")
	flagSet.Float64("readahead.sparse-ratio", DefaultReadaheadSparseRatio, "Hit ratio below which a dynamic read-ahead window shrinks.")

	flagSet.Int("metadata.container-cache-entries", DefaultMetadataContainerEntries, "LRU capacity for cached container metadata.")
	flagSet.Int("metadata.file-cache-entries", DefaultMetadataFileEntries, "LRU capacity for cached file metadata.")
	flagSet.Int("metadata.executor-threads", DefaultMetadataExecutorThreads, "Size of the continuation executor pool.")
	flagSet.Int("metadata.shard-count", DefaultShardCount, "Number of metadata provider shards.")

	flagSet.String("remote.file-service-url", "", "Base URL of the remote file service.")
	flagSet.StringSlice("remote.metadata-store-addrs", nil, "Backend address per metadata shard; reused if fewer than metadata.shard-count.")
	flagSet.Int64("remote.chunk-timeout-ms", DefaultChunkTimeoutMs, "Timeout, in milliseconds, for a single remote read/write round trip.")

	flagSet.Bool("metrics.enabled", false, "Export io-stat counters/gauges to Prometheus.")
	flagSet.String("metrics.listen-addr", "", "Address for an embedder's /metrics HTTP server; empty leaves mounting the handler to the caller.")

	return viper.BindPFlags(flagSet)
}
