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

// Package redisstore backs metadatastore.Store with a Redis client.
package redisstore

import (
	"context"

	"github.com/redis/go-redis/v9"

	"github.com/eosfusex/cachecore/pkg/metadatastore"
)

// Store implements metadatastore.Store on top of a *redis.Client.
type Store struct {
	rdb *redis.Client
}

var _ metadatastore.Store = (*Store)(nil)

// New wraps an already-configured redis.Client.
func New(rdb *redis.Client) *Store {
	return &Store{rdb: rdb}
}

// Dial connects to addr using sane defaults, equivalent to
// redis.NewClient(&redis.Options{Addr: addr}).
func Dial(addr string) *Store {
	return New(redis.NewClient(&redis.Options{Addr: addr}))
}

func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := s.rdb.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (s *Store) Set(ctx context.Context, key, value string) error {
	return s.rdb.Set(ctx, key, value, 0).Err()
}

func (s *Store) HGet(ctx context.Context, key, field string) (string, bool, error) {
	v, err := s.rdb.HGet(ctx, key, field).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (s *Store) HSet(ctx context.Context, key, field, value string) error {
	return s.rdb.HSet(ctx, key, field, value).Err()
}

func (s *Store) HLen(ctx context.Context, key string) (int64, error) {
	return s.rdb.HLen(ctx, key).Result()
}

func (s *Store) HDel(ctx context.Context, key, field string) error {
	return s.rdb.HDel(ctx, key, field).Err()
}

func (s *Store) Scan(ctx context.Context, key string) (map[string]string, error) {
	return s.rdb.HGetAll(ctx, key).Result()
}

// Exec applies every op against key inside a single Redis transaction
// pipeline, so concurrent readers never observe a partial batch.
func (s *Store) Exec(ctx context.Context, key string, ops []metadatastore.Op) error {
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, op := range ops {
			if op.Hash != "" {
				pipe.HSet(ctx, key, op.Field, op.Value)
				continue
			}
			pipe.Set(ctx, key, op.Value, 0)
		}
		return nil
	})
	return err
}

type subscription struct {
	pubsub *redis.PubSub
	out    chan metadatastore.Message
	done   chan struct{}
}

func (s *Store) Subscribe(ctx context.Context, channel string) (metadatastore.Subscription, error) {
	pubsub := s.rdb.Subscribe(ctx, channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, err
	}

	sub := &subscription{
		pubsub: pubsub,
		out:    make(chan metadatastore.Message, 64),
		done:   make(chan struct{}),
	}

	go func() {
		defer close(sub.out)
		ch := pubsub.Channel()
		for {
			select {
			case msg, ok := <-ch:
				if !ok {
					return
				}
				select {
				case sub.out <- metadatastore.Message{Channel: msg.Channel, Payload: msg.Payload}:
				case <-sub.done:
					return
				}
			case <-sub.done:
				return
			}
		}
	}()

	return sub, nil
}

func (sub *subscription) Messages() <-chan metadatastore.Message { return sub.out }

func (sub *subscription) Close() error {
	close(sub.done)
	return sub.pubsub.Close()
}

func (s *Store) Close() error {
	return s.rdb.Close()
}
