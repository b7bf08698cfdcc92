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

package model

// Cookie is the opaque locality hint persisted alongside a cached file. On
// attach it is compared against the cookie stored with the on-disk cache;
// a mismatch means the cache was populated by a different session and must
// be invalidated. Persisted under the extended attribute key CookieXattrKey.
type Cookie string

// CookieXattrKey is the literal extended-attribute key under which the
// cookie is persisted, per the external interfaces section.
const CookieXattrKey = "user.eos.cache.cookie"

// AttachResult reports the outcome of attaching a cache tier with a given
// cookie.
type AttachResult struct {
	// Stale is true when the stored cookie did not match and the cached
	// file was invalidated as a result.
	Stale bool
}
