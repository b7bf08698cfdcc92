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

package cfg

// DefaultLoggingConfig returns the configuration used before any flag or
// config file has been parsed.
func DefaultLoggingConfig() LoggingConfig {
	return LoggingConfig{
		Severity: INFO,
		Format:   "text",
		LogRotate: LogRotateLoggingConfig{
			BackupFileCount: 10,
			Compress:        true,
			MaxFileSizeMb:   512,
		},
	}
}

// DefaultConfig returns a Config populated with the defaults documented on
// BindFlags, for callers that construct one without going through a flag set
// (tests, embedders).
func DefaultConfig() Config {
	return Config{
		Logging: DefaultLoggingConfig(),
		Cache: CacheConfig{
			Type:         CacheTypeDisk,
			PerFileBytes: DefaultCachePerFileBytes,
		},
		Journal: JournalConfig{
			PerFileBytes: DefaultJournalPerFileBytes,
		},
		Readahead: ReadaheadConfig{
			Strategy:    ReadaheadStatic,
			BlocksMax:   2,
			SparseRatio: DefaultReadaheadSparseRatio,
		},
		Metadata: MetadataConfig{
			ContainerCacheEntries: DefaultMetadataContainerEntries,
			FileCacheEntries:      DefaultMetadataFileEntries,
			ExecutorThreads:       DefaultMetadataExecutorThreads,
			ShardCount:            DefaultShardCount,
		},
		Remote: RemoteConfig{
			ChunkTimeout: DefaultChunkTimeoutMs,
		},
	}
}
