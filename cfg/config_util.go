// Copyright 2024 Google LLC
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

import "runtime"

// DefaultExecutorThreads returns a thread count that scales with the host
// when the caller has not set metadata.executor-threads explicitly.
func DefaultExecutorThreads() int {
	return max(DefaultMetadataExecutorThreads, 2*runtime.NumCPU())
}

// IsDiskCacheEnabled reports whether the on-disk block cache should be
// constructed for a given configuration.
func IsDiskCacheEnabled(c *Config) bool {
	return c.Cache.Type == CacheTypeDisk && c.Cache.Location != ""
}

// IsJournalEnabled reports whether a write journal should be constructed.
func IsJournalEnabled(c *Config) bool {
	return c.Journal.Location != ""
}
