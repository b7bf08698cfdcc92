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

// Package provider routes metadata lookups to one of a fixed number of
// independently-owned MetadataProviderShards, and runs the backend
// invalidation listener that keeps their LRUs coherent.
package provider

import (
	"context"
	"encoding/binary"
	"strconv"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/eosfusex/cachecore/pkg/executor"
	"github.com/eosfusex/cachecore/pkg/metadata/fetcher"
	"github.com/eosfusex/cachecore/pkg/metadata/shard"
	"github.com/eosfusex/cachecore/pkg/metadatastore"
	"github.com/eosfusex/cachecore/pkg/model"
)

// Channel names the backend publishes invalidation notices on. Payloads are
// the decimal ASCII identifier of the file or container that changed.
const (
	FileInvalidationChannel      = "file-invalidation"
	ContainerInvalidationChannel = "container-invalidation"
)

// Provider fans every lookup out to one of len(clients) shards, chosen by a
// stable hash of the identifier, so no two shards ever contend on the same
// backend connection.
type Provider struct {
	shards  []*shard.Shard
	clients []metadatastore.Store

	// executor is shared by every shard's parallel container fetch. It
	// must outlive the shards and clients: a completion callback queued
	// on it may still reference a client after Close begins tearing
	// shards down, so it is only released once both have stopped using
	// it.
	executor *executor.Pool

	listenerCancel context.CancelFunc
	listenerWG     sync.WaitGroup
}

// New builds a Provider with one shard per client in clients, each with
// room for capacityPerShard live entries, hopping parallel sub-fetches onto
// pool.
func New(clients []metadatastore.Store, pool *executor.Pool, capacityPerShard int) *Provider {
	shards := make([]*shard.Shard, len(clients))
	for i, c := range clients {
		shards[i] = shard.New(fetcher.New(c), pool, capacityPerShard)
	}
	return &Provider{shards: shards, clients: clients, executor: pool}
}

func shardIndex(id uint64, n int) int {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], id)
	return int(xxhash.Sum64(buf[:]) % uint64(n))
}

func (p *Provider) shardForFile(id model.FileIdentifier) *shard.Shard {
	return p.shards[shardIndex(uint64(id), len(p.shards))]
}

func (p *Provider) shardForContainer(id model.ContainerIdentifier) *shard.Shard {
	return p.shards[shardIndex(uint64(id), len(p.shards))]
}

// GetFile routes to id's shard.
func (p *Provider) GetFile(ctx context.Context, id model.FileIdentifier) (*model.FileMetadata, error) {
	return p.shardForFile(id).GetFile(ctx, id)
}

// RetrieveContainer routes to id's shard.
func (p *Provider) RetrieveContainer(ctx context.Context, id model.ContainerIdentifier) (*model.ContainerMetadata, error) {
	return p.shardForContainer(id).RetrieveContainer(ctx, id)
}

// InsertFile routes to id's shard.
func (p *Provider) InsertFile(meta *model.FileMetadata) {
	p.shardForFile(meta.ID).InsertFile(meta)
}

// InsertContainer routes to id's shard.
func (p *Provider) InsertContainer(meta *model.ContainerMetadata) {
	p.shardForContainer(meta.ID).InsertContainer(meta)
}

// DropCachedFile routes to id's shard.
func (p *Provider) DropCachedFile(id model.FileIdentifier) {
	p.shardForFile(id).DropCachedFile(id)
}

// DropCachedContainer routes to id's shard.
func (p *Provider) DropCachedContainer(id model.ContainerIdentifier) {
	p.shardForContainer(id).DropCachedContainer(id)
}

// TombstoneFile routes to id's shard.
func (p *Provider) TombstoneFile(id model.FileIdentifier) {
	p.shardForFile(id).TombstoneFile(id)
}

// TombstoneContainer routes to id's shard.
func (p *Provider) TombstoneContainer(id model.ContainerIdentifier) {
	p.shardForContainer(id).TombstoneContainer(id)
}

// Stats aggregates every shard's occupancy, capacity and in-flight count.
type Stats struct {
	Occupancy int
	Capacity  int
	InFlight  int
	Shards    int
}

// Stats sums every shard's Stats.
func (p *Provider) Stats() Stats {
	out := Stats{Shards: len(p.shards)}
	for _, s := range p.shards {
		st := s.Stats()
		out.Occupancy += st.Occupancy
		out.Capacity += st.Capacity
		out.InFlight += st.InFlight
	}
	return out
}

// StartRefreshListener subscribes to the file- and container-invalidation
// channels on listener and, for every message received, drops the named
// id's entry from its owning shard so the next lookup re-fetches. It
// returns once both subscriptions are confirmed; the listening itself runs
// in the background until ctx is cancelled or Close is called.
func (p *Provider) StartRefreshListener(ctx context.Context, listener metadatastore.Store) error {
	ctx, cancel := context.WithCancel(ctx)

	fileSub, err := listener.Subscribe(ctx, FileInvalidationChannel)
	if err != nil {
		cancel()
		return err
	}
	containerSub, err := listener.Subscribe(ctx, ContainerInvalidationChannel)
	if err != nil {
		_ = fileSub.Close()
		cancel()
		return err
	}

	p.listenerCancel = cancel
	p.listenerWG.Add(2)
	go p.drainFileInvalidations(ctx, fileSub)
	go p.drainContainerInvalidations(ctx, containerSub)
	return nil
}

func (p *Provider) drainFileInvalidations(ctx context.Context, sub metadatastore.Subscription) {
	defer p.listenerWG.Done()
	defer sub.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-sub.Messages():
			if !ok {
				return
			}
			n, err := strconv.ParseUint(msg.Payload, 10, 64)
			if err != nil {
				continue
			}
			p.DropCachedFile(model.FileIdentifier(n))
		}
	}
}

func (p *Provider) drainContainerInvalidations(ctx context.Context, sub metadatastore.Subscription) {
	defer p.listenerWG.Done()
	defer sub.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-sub.Messages():
			if !ok {
				return
			}
			n, err := strconv.ParseUint(msg.Payload, 10, 64)
			if err != nil {
				continue
			}
			p.DropCachedContainer(model.ContainerIdentifier(n))
		}
	}
}

// Close tears down the refresh listener, then every shard's backend client
// connection. The executor is not owned by Provider — pkg/app.Core shares
// one executor across the metadata and data-cache paths and closes it
// itself, last, after every client stops issuing Submit.
func (p *Provider) Close() error {
	if p.listenerCancel != nil {
		p.listenerCancel()
		p.listenerWG.Wait()
	}

	var firstErr error
	for _, c := range p.clients {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
