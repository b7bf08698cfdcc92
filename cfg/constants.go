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

const (
	// Logging-level constants.

	TRACE   string = "TRACE"
	DEBUG   string = "DEBUG"
	INFO    string = "INFO"
	WARNING string = "WARNING"
	ERROR   string = "ERROR"
	OFF     string = "OFF"
)

const (
	// Cache type constants (cache.type).

	CacheTypeMemory string = "memory"
	CacheTypeDisk   string = "disk"
)

const (
	// Read-ahead strategy constants (readahead.strategy).

	ReadaheadNone    string = "none"
	ReadaheadStatic  string = "static"
	ReadaheadDynamic string = "dynamic"
)

const (
	// Defaults taken from the component design and external interface sections.

	DefaultMetadataExecutorThreads  = 16
	DefaultMetadataContainerEntries = 64 * 1024
	DefaultMetadataFileEntries      = 256 * 1024
	DefaultShardCount               = 16

	DefaultBufferPoolMaxInflightBytes  int64 = 512 * 1024 * 1024
	DefaultBufferPoolMaxInflightChunks       = 16384
	DefaultBufferPoolGraceSeconds            = 200
	DefaultBufferPoolGraceWindowSecs         = 60

	DefaultJournalPerFileBytes int64 = 64 * 1024 * 1024
	DefaultCachePerFileBytes   int64 = 256 * 1024 * 1024

	DefaultReadaheadSparseRatio = 0.5

	DefaultChunkTimeoutMs int64 = 30_000
)
