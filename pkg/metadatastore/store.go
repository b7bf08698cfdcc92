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

// Package metadatastore is the narrow interface MetadataFetcher uses to
// talk to the remote metadata KV store, independent of transport.
package metadatastore

import "context"

// Message is one pub/sub notification delivered through a Subscription.
type Message struct {
	Channel string
	Payload string
}

// Subscription is a live pub/sub subscription. Callers range over
// Messages() until Close is called or the underlying connection drops.
type Subscription interface {
	Messages() <-chan Message
	Close() error
}

// Op is one write issued inside Exec's atomic batch.
type Op struct {
	// Hash is the key's hash-field, empty for a plain key Set.
	Hash  string
	Field string
	Value string
}

// Store is the remote KV backend MetadataFetcher builds requests against.
// A key maps to either a plain string value (Get/Set) or a hash of
// field→value pairs (HGet/HSet/HLen/HDel/Scan); callers never mix the two
// addressing modes on the same key.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error

	HGet(ctx context.Context, key, field string) (string, bool, error)
	HSet(ctx context.Context, key, field, value string) error
	HLen(ctx context.Context, key string) (int64, error)
	HDel(ctx context.Context, key, field string) error

	// Scan iterates every field→value pair of the hash at key, in
	// whatever order the backend preserves insertion order (used to
	// walk a container's name→id maps).
	Scan(ctx context.Context, key string) (map[string]string, error)

	// Exec applies every op in ops atomically against key.
	Exec(ctx context.Context, key string, ops []Op) error

	Subscribe(ctx context.Context, channel string) (Subscription, error)

	Close() error
}
